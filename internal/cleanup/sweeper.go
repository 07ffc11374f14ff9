// Package cleanup runs the periodic garbage collection that deletes
// expired sessions, reset tokens and denylist entries. Deletions are
// idempotent, so overlapping runs (or a second replica sweeping the same
// rows) are harmless.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/priazovimpact/auth-service/internal/observability"
)

// Target is one expirable table: a name for logging/metrics, a sweep
// interval, and the idempotent delete.
type Target struct {
	Name     string
	Interval time.Duration
	Delete   func(ctx context.Context) (int64, error)
}

type Sweeper struct {
	targets []Target
	logger  *slog.Logger
}

func NewSweeper(logger *slog.Logger, targets ...Target) *Sweeper {
	return &Sweeper{targets: targets, logger: logger}
}

// Run sweeps every target on its own interval until ctx is cancelled.
// A failed sweep is logged and retried on the next tick; it never stops
// the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, target := range s.targets {
		g.Go(func() error {
			s.logger.Info("sweeper started", "target", target.Name, "interval", target.Interval)
			ticker := time.NewTicker(target.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					s.logger.Info("sweeper stopped", "target", target.Name)
					return nil
				case <-ticker.C:
					s.sweep(ctx, target)
				}
			}
		})
	}
	return g.Wait()
}

func (s *Sweeper) sweep(ctx context.Context, target Target) {
	deleted, err := target.Delete(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "target", target.Name, "error", err)
		return
	}
	observability.RecordCleanup(ctx, target.Name, deleted)
	if deleted > 0 {
		s.logger.Info("swept expired rows", "target", target.Name, "deleted", deleted)
	}
}
