package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"framecast/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var bind string
	var development bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the framecast daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if strings.TrimSpace(bind) != "" {
				cfg.Paths.APIBind = strings.TrimSpace(bind)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				Version:     version,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().StringVar(&bind, "bind", "", "Override paths.api_bind")
	cmd.Flags().BoolVar(&development, "dev", false, "Development logging (source locations)")
	return cmd
}
