package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"satstash/internal/config"
)

func newPayoutCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "payout",
		Short: "Settle collected tokens to the operator and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			authority, err := newAuthority(cfg)
			if err != nil {
				return err
			}
			reconciler, _, err := newReconciler(cfg, rt, authority, slog.Default())
			if err != nil {
				return err
			}
			return reconciler.Reconcile(cmd.Context())
		},
	}
}
