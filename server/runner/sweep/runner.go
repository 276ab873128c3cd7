package sweep

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper deletes tags whose usage count dropped to zero.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

type Runner struct {
	sweeper  Sweeper
	interval time.Duration
}

// NewRunner creates a periodic zero-count sweep runner.
func NewRunner(sweeper Sweeper, interval time.Duration) *Runner {
	return &Runner{
		sweeper:  sweeper,
		interval: interval,
	}
}

// Run starts the background task. A non-positive interval disables it.
func (r *Runner) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}

	// Sweep once on startup
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("sweep runner stopped")
			return
		}
	}
}

// RunOnce sweeps once (for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) {
	swept, err := r.sweeper.Sweep(ctx)
	if err != nil {
		slog.Error("failed to sweep zero count tags", "error", err)
		return
	}
	if swept > 0 {
		slog.Info("swept zero count tags", "count", swept)
	}
}
