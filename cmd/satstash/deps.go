package main

import (
	"fmt"
	"log/slog"

	"satstash/internal/blobstore"
	"satstash/internal/config"
	"satstash/internal/ecash"
	"satstash/internal/payout"
	"satstash/internal/prune"
	"satstash/internal/store"
)

// runtime bundles the storage collaborators shared by srv and the one-shot
// job commands.
type runtime struct {
	store *store.Store
	blobs *blobstore.Store
}

func openRuntime(cfg *config.Config) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	blobs, err := blobstore.New(cfg.BlobDir())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	return &runtime{store: st, blobs: blobs}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}

func newSweeper(rt *runtime, logger *slog.Logger) *prune.Sweeper {
	return prune.New(rt.store, rt.blobs, logger.With("component", "prune"))
}

// newReconciler wires the payout pipeline from config: the operator's payment
// request supplies the destination mints and transports, the wallet daemon
// performs the swaps.
func newReconciler(cfg *config.Config, rt *runtime, authority ecash.Authority, logger *slog.Logger) (*payout.Reconciler, ecash.PaymentRequest, error) {
	if cfg.PayoutRequest == "" {
		return nil, ecash.PaymentRequest{}, fmt.Errorf("payout_request is required")
	}
	request, err := ecash.DecodeRequest(cfg.PayoutRequest)
	if err != nil {
		return nil, ecash.PaymentRequest{}, fmt.Errorf("decode payout_request: %w", err)
	}

	payoutLogger := logger.With("component", "payout")
	transports := payout.BuildTransports(request.Transports, cfg.PayoutNostrKey, payoutLogger)
	if len(transports) == 0 {
		return nil, ecash.PaymentRequest{}, fmt.Errorf("payout_request carries no usable transports")
	}

	unit := request.Unit
	if unit == "" {
		unit = ecash.DefaultUnit
	}
	reconciler := payout.New(rt.store, authority, transports, request.ID, unit, cfg.PayoutThreshold, payoutLogger)
	return reconciler, request, nil
}

func newAuthority(cfg *config.Config) (*ecash.RemoteAuthority, error) {
	if cfg.WalletURL == "" {
		return nil, fmt.Errorf("wallet_url is required")
	}
	authority, err := ecash.NewRemoteAuthority(cfg.WalletURL)
	if err != nil {
		return nil, fmt.Errorf("wallet_url: %w", err)
	}
	return authority, nil
}
