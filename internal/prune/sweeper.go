// Package prune removes blobs whose storage window has expired.
package prune

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"satstash/internal/blobstore"
	"satstash/internal/models"
)

// Ledger is the metadata access the sweeper needs.
type Ledger interface {
	ExpiredBlobs(ctx context.Context, before time.Time) ([]models.Blob, error)
	DeleteBlob(ctx context.Context, sha256 string) error
}

// BlobStore is the payload access the sweeper needs.
type BlobStore interface {
	Delete(ctx context.Context, digest string) error
}

// Sweeper deletes expired blobs from storage and ledger.
type Sweeper struct {
	ledger Ledger
	blobs  BlobStore
	logger *slog.Logger
	now    func() time.Time

	// running keeps an on-demand sweep from overlapping the scheduled one.
	running sync.Mutex
}

// New creates a sweeper.
func New(ledger Ledger, blobs BlobStore, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{ledger: ledger, blobs: blobs, logger: logger, now: time.Now}
}

// Sweep deletes every blob whose expiry has passed. The payload is removed
// before the ledger row: a failed payload delete leaves the row in place so
// the next sweep retries, while the reverse order could leak unreachable
// files forever. One failing blob does not stop the batch.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if !s.running.TryLock() {
		s.logger.Info("sweep already running, skipping")
		return nil
	}
	defer s.running.Unlock()

	expired, err := s.ledger.ExpiredBlobs(ctx, s.now())
	if err != nil {
		return err
	}

	pruned := 0
	for _, blob := range expired {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.blobs.Delete(ctx, blob.SHA256); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			s.logger.Error("prune blob payload", "sha256", blob.SHA256, "error", err)
			continue
		}
		if err := s.ledger.DeleteBlob(ctx, blob.SHA256); err != nil {
			s.logger.Error("prune blob record", "sha256", blob.SHA256, "error", err)
			continue
		}

		s.logger.Info("pruned expired blob", "sha256", blob.SHA256, "size", blob.Size)
		pruned++
	}

	if pruned > 0 {
		s.logger.Info("prune complete", "deleted", pruned, "candidates", len(expired))
	}
	return nil
}
