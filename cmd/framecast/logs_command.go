package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"framecast/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon's current log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			path := logs.CurrentPath(cfg.Paths.LogDir)
			out := cmd.OutOrStdout()

			opts := logs.TailOptions{Offset: -1, Limit: lines, Filter: filter}
			for {
				res, err := logs.Tail(cmd.Context(), path, opts)
				if err != nil {
					if follow && errors.Is(err, cmd.Context().Err()) {
						return nil
					}
					return err
				}
				for _, line := range res.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					return nil
				}
				opts = logs.TailOptions{Offset: res.Offset, Follow: true, Wait: 5 * time.Second, Filter: filter}
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVarP(&filter.ProjectID, "project", "p", "", "Only lines for this project")
	cmd.Flags().StringVar(&filter.OperationID, "operation", "", "Only lines for this operation")
	return cmd
}
