package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is anything with a Ping method, such as a pgx pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck returns a CheckFunc that calls p.Ping. Used as the readiness
// check for the database behind the menu, order and credit repositories.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return errors.Wrap(p.Ping(ctx), "ping")
	}
}

// GoroutineCountCheck returns a CheckFunc that fails once the live goroutine
// count exceeds max. Liveness check: suggestion attachers and notification
// sends run on their own goroutines, so a leak there shows up here.
func GoroutineCountCheck(max int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > max {
			return errors.Errorf("%d goroutines running, limit %d", n, max)
		}
		return nil
	}
}

// GCPauseCheck returns a CheckFunc that fails when any recorded GC pause
// exceeds max. Liveness check for memory pressure.
func GCPauseCheck(max time.Duration) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		for _, pause := range stats.Pause {
			if pause > max {
				return errors.Errorf("GC pause %s over limit %s", pause, max)
			}
		}
		return nil
	}
}
