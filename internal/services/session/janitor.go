package session

import (
	"context"
	"log/slog"
	"time"
)

// RunJanitor prunes expired grants and sweeps scheduled evictions every
// interval until ctx is done
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pruned := r.PruneExpiredGrants()
			evicted := r.SweepEvictions()
			if pruned > 0 || evicted > 0 {
				r.logger.Debug("janitor pass",
					slog.Int("grants_pruned", pruned),
					slog.Int("connections_evicted", evicted))
			}
		}
	}
}
