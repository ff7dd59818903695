package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"satstash/internal/config"
	"satstash/internal/models"
)

// operatorReport is the YAML shape of `satstash report`.
type operatorReport struct {
	BlobCount int64                `yaml:"blob_count"`
	BlobBytes int64                `yaml:"blob_bytes"`
	Threshold uint64               `yaml:"payout_threshold"`
	Pending   []models.MintBalance `yaml:"pending"`
	Payable   []models.MintBalance `yaml:"payable"`
}

func newReportCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print stored blob and pending payout totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			count, bytes, err := rt.store.BlobStats(ctx)
			if err != nil {
				return err
			}
			pending, err := rt.store.MintBalances(ctx, 0)
			if err != nil {
				return err
			}
			payable, err := rt.store.MintBalances(ctx, cfg.PayoutThreshold)
			if err != nil {
				return err
			}

			report := operatorReport{
				BlobCount: count,
				BlobBytes: bytes,
				Threshold: cfg.PayoutThreshold,
				Pending:   pending,
				Payable:   payable,
			}
			encoder := yaml.NewEncoder(os.Stdout)
			encoder.SetIndent(2)
			defer encoder.Close()
			return encoder.Encode(report)
		},
	}
}
