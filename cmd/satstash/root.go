package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"satstash/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "satstash",
		Short: "Satstash is an ecash-paid content-addressable blob host",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newPruneCmd(cfg),
		newPayoutCmd(cfg),
		newReportCmd(cfg),
		newConfigCmd(cfg),
		newAdminCmd(),
	)

	return cmd
}
