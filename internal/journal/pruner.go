package journal

import (
	"context"
	"log/slog"
	"time"
)

// RunPruner deletes deliveries older than retention every interval until ctx
// is done. A non-positive retention disables pruning.
func (s *Store) RunPruner(ctx context.Context, retention, interval time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.pruneOnce(ctx, retention, logger)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Store) pruneOnce(ctx context.Context, retention time.Duration, logger *slog.Logger) {
	n, err := s.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("failed to prune journal", "error", err)
		}
		return
	}
	if n > 0 {
		logger.Info("pruned journal", "deleted", n, "retention", retention.String())
	}
}
