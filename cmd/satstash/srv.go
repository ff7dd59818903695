package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"satstash/internal/config"
	"satstash/internal/jobs"
	"satstash/internal/server"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the satstash blob host",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()

			rt, err := openRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			authority, err := newAuthority(cfg)
			if err != nil {
				return err
			}
			reconciler, payoutRequest, err := newReconciler(cfg, rt, authority, logger)
			if err != nil {
				return err
			}
			sweeper := newSweeper(rt, logger)

			upload := server.NewUploadService(rt.store, rt.blobs, authority, payoutRequest,
				cfg.PricePerByte, cfg.StorageDuration(), logger.With("component", "upload"))

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go jobs.Run(ctx, logger, "prune", cfg.PruneInterval(), sweeper.Sweep)
			go jobs.Run(ctx, logger, "payout", cfg.PayoutInterval(), reconciler.Reconcile)

			srv := server.New(server.Options{
				Addr:              cfg.ListenAddr,
				PublicURL:         cfg.PublicURL,
				Ledger:            rt.store,
				Blobs:             rt.blobs,
				Upload:            upload,
				PruneNow:          sweeper.Sweep,
				PayoutNow:         reconciler.Reconcile,
				PayoutThreshold:   cfg.PayoutThreshold,
				AdminPasswordHash: cfg.AdminPasswordHash,
				Logger:            logger.With("component", "server"),
			})
			return srv.ListenAndServe()
		},
	}
}
