// Package jobs runs periodic background work on fixed intervals.
package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Run executes task once immediately and then on every tick of interval until
// ctx is cancelled. A failing run is logged and the schedule continues; the
// job never overlaps itself because ticks are consumed serially.
func Run(ctx context.Context, logger *slog.Logger, name string, interval time.Duration, task func(context.Context) error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("job", name)

	runOnce(ctx, logger, task)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("job stopped")
			return
		case <-ticker.C:
			runOnce(ctx, logger, task)
		}
	}
}

func runOnce(ctx context.Context, logger *slog.Logger, task func(context.Context) error) {
	start := time.Now()
	if err := task(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("job run failed", "error", err, "elapsed", time.Since(start))
		return
	}
	logger.Debug("job run complete", "elapsed", time.Since(start))
}
