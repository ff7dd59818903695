package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"satstash/internal/config"
)

func newPruneCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired blobs and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			return newSweeper(rt, slog.Default()).Sweep(cmd.Context())
		},
	}
}
