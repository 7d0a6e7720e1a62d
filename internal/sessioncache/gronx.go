package sessioncache

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// Sweeper runs a SQLite cache's Sweep on a cron schedule, holding a
// *gronx.Gronx and calling gronx.NextTickAfter to schedule its next run.
type Sweeper struct {
	cache  *SQLite
	expr   string
	gronx  *gronx.Gronx
	logger *slog.Logger
	stop   chan struct{}
}

// NewSweeper builds a sweeper for cache on the given cron expression
// (default "0 * * * *" — hourly).
func NewSweeper(cache *SQLite, expr string, logger *slog.Logger) *Sweeper {
	if expr == "" {
		expr = "0 * * * *"
	}
	return &Sweeper{cache: cache, expr: expr, gronx: gronx.New(), logger: logger, stop: make(chan struct{})}
}

// Run blocks, sweeping each time expr comes due, until ctx is canceled or
// Stop is called.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		next, err := s.gronx.NextTickAfter(s.expr, time.Now(), false)
		if err != nil {
			s.logger.Error("sweeper: invalid cron expression", "expr", s.expr, "error", err)
			return
		}
		wait := time.Until(next)
		if wait < 0 {
			wait = time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-time.After(wait):
			removed, err := s.cache.Sweep(ctx)
			LogSweepResult(s.logger, removed, err)
		}
	}
}

// Stop halts a running sweeper.
func (s *Sweeper) Stop() { close(s.stop) }
