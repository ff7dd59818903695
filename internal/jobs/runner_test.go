package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunExecutesImmediatelyAndOnTicks(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		Run(ctx, nil, "test", 10*time.Millisecond, func(context.Context) error {
			runs.Add(1)
			return nil
		})
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs before deadline", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestRunContinuesAfterFailure(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		Run(ctx, nil, "flaky", 10*time.Millisecond, func(context.Context) error {
			runs.Add(1)
			return errors.New("boom")
		})
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job did not survive failure, runs=%d", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
