package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionCleanup schedules the purge of sessions that expired more than
// retention ago. The returned cron is already started, stop it on shutdown.
func SessionCleanup(schedule string, retention time.Duration, s *Sessions) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := s.Purge(ctx, retention)
		if err != nil {
			zap.L().Error("Failed to purge expired sessions", zap.Error(err))
			return
		}

		if n > 0 {
			zap.L().Debug("Purged expired sessions", zap.Int64("count", n))
		}
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("Session cleanup attached", zap.String("schedule", schedule), zap.Duration("retention", retention))

	c.Start()
	return c, nil
}
