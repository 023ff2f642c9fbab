package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var remoteFlag string
	var tokenFlag string
	var jsonFlag bool

	ctx := newCommandContext(&configFlag, &remoteFlag, &tokenFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "framecast",
		Short:         "Framecast documentary pipeline CLI",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&remoteFlag, "remote", "", "Daemon base URL (e.g. http://127.0.0.1:7487); runs in-process when empty")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Bearer token for --remote (defaults to paths.api_token)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print raw JSON responses")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newStageCommand(ctx))
	rootCmd.AddCommand(newManifestCommand(ctx))
	rootCmd.AddCommand(newContextCommand(ctx))
	rootCmd.AddCommand(newOperationCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
