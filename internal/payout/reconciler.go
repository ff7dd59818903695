// Package payout aggregates collected payment tokens and delivers them to the
// operator.
package payout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"satstash/internal/ecash"
	"satstash/internal/models"
)

const defaultTransportTimeout = 30 * time.Second

// Ledger is the pending-token bookkeeping the reconciler needs.
type Ledger interface {
	MintBalances(ctx context.Context, threshold uint64) ([]models.MintBalance, error)
	TokensByMint(ctx context.Context, mint string) ([]models.PendingToken, error)
	DeleteTokens(ctx context.Context, ids []int64) error
	ReplaceTokens(ctx context.Context, ids []int64, replacement *models.PendingToken) error
}

// Reconciler pays out per-mint token balances that crossed the threshold.
type Reconciler struct {
	ledger     Ledger
	authority  ecash.Authority
	transports []Transport

	requestID string
	unit      string
	threshold uint64

	transportTimeout time.Duration
	logger           *slog.Logger

	// running keeps an on-demand cycle from overlapping the scheduled one;
	// two interleaved cycles would deliver the same pending rows twice.
	running sync.Mutex
}

// New creates a reconciler. requestID and unit come from the operator's
// payout request and are echoed in every payload.
func New(ledger Ledger, authority ecash.Authority, transports []Transport, requestID, unit string, threshold uint64, logger *slog.Logger) *Reconciler {
	if unit == "" {
		unit = ecash.DefaultUnit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		ledger:           ledger,
		authority:        authority,
		transports:       transports,
		requestID:        requestID,
		unit:             unit,
		threshold:        threshold,
		transportTimeout: defaultTransportTimeout,
		logger:           logger,
	}
}

// Reconcile runs one payout cycle. Each mint at or above the threshold is
// settled independently; a failing mint is logged and does not stop the rest.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	if !r.running.TryLock() {
		r.logger.Info("payout cycle already running, skipping")
		return nil
	}
	defer r.running.Unlock()

	balances, err := r.ledger.MintBalances(ctx, r.threshold)
	if err != nil {
		return err
	}

	for _, balance := range balances {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.settleMint(ctx, balance); err != nil {
			r.logger.Error("payout failed", "mint", balance.Mint, "amount", balance.Amount, "error", err)
		}
	}
	return nil
}

// settleMint drives one mint's balance through consolidate, deliver, and
// finalize. Pending rows are only deleted once delivery is confirmed, or
// atomically replaced by the consolidated token when delivery fails after a
// successful swap, so the pending value for a mint never shrinks here.
func (r *Reconciler) settleMint(ctx context.Context, balance models.MintBalance) error {
	rows, err := r.ledger.TokensByMint(ctx, balance.Mint)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(rows))
	proofs := make([]ecash.Proof, 0, len(rows))
	for _, row := range rows {
		token, err := ecash.DecodeToken(row.Token)
		if err != nil {
			return fmt.Errorf("pending token %d: %w", row.ID, err)
		}
		ids = append(ids, row.ID)
		proofs = append(proofs, token.Proofs...)
	}

	r.logger.Info("processing payout", "mint", balance.Mint, "amount", balance.Amount, "tokens", len(rows))

	// Consolidate multi-token groups into one optimized proof set. The
	// original rows stay in place until the outcome is known.
	var swapped *ecash.RedeemResult
	if len(rows) > 1 {
		result, err := r.authority.Swap(ctx, balance.Mint, proofs)
		if err != nil {
			return fmt.Errorf("consolidate: %w", err)
		}
		swapped = &result
		proofs = result.Proofs
	}

	payload := Payload{ID: r.requestID, Mint: balance.Mint, Unit: r.unit, Proofs: proofs}

	if r.deliver(ctx, payload) {
		if err := r.ledger.DeleteTokens(ctx, ids); err != nil {
			return fmt.Errorf("clear settled tokens: %w", err)
		}
		r.logger.Info("payout settled", "mint", balance.Mint, "amount", payload.Amount())
		return nil
	}

	// Delivery failed everywhere. A completed swap spent the original
	// proofs, so persist the consolidated set in their place; otherwise the
	// untouched rows are simply retried next cycle.
	if swapped != nil {
		encoded, err := ecash.EncodeToken(ecash.Token{Mint: balance.Mint, Unit: r.unit, Proofs: swapped.Proofs})
		if err != nil {
			return fmt.Errorf("encode consolidated token: %w", err)
		}
		replacement := &models.PendingToken{Token: encoded, Mint: balance.Mint, Amount: swapped.Amount}
		if err := r.ledger.ReplaceTokens(ctx, ids, replacement); err != nil {
			return fmt.Errorf("persist consolidated token: %w", err)
		}
		r.logger.Warn("delivery failed, consolidated token saved for retry", "mint", balance.Mint, "amount", swapped.Amount)
	}

	return fmt.Errorf("all transports failed")
}

// deliver walks the transports in order and stops at the first success.
func (r *Reconciler) deliver(ctx context.Context, payload Payload) bool {
	for _, transport := range r.transports {
		attemptCtx, cancel := context.WithTimeout(ctx, r.transportTimeout)
		err := transport.Send(attemptCtx, payload)
		cancel()

		if err != nil {
			r.logger.Warn("transport failed", "kind", transport.Kind(), "mint", payload.Mint, "error", err)
			continue
		}
		r.logger.Info("payout delivered", "kind", transport.Kind(), "mint", payload.Mint, "amount", payload.Amount())
		return true
	}
	return false
}
