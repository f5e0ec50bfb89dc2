package journal

import (
	"context"
	"time"
)

const (
	DefaultRetention     = 7 * 24 * time.Hour
	DefaultCleanInterval = time.Hour
)

// RunCleaner prunes expired operations every interval until ctx is done.
func (s *Service) RunCleaner(ctx context.Context, interval, retention time.Duration) error {
	if interval <= 0 {
		interval = DefaultCleanInterval
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.cleanup(ctx, retention)
		}
	}
}

func (s *Service) cleanup(ctx context.Context, retention time.Duration) {
	n, err := s.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		s.logger.WithError(err).Warn("journal cleanup failed")
		return
	}
	if n > 0 {
		s.logger.WithField("removed", n).Info("journal cleanup")
	}
}
