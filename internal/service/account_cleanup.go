package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AccountCleanup periodically deletes accounts that never verified their
// email within maxAge of registering. The returned cron must be stopped
// on shutdown.
func AccountCleanup(schedule string, maxAge time.Duration, a *Accounts) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		deleted, err := a.PurgeUnverified(ctx, maxAge)
		if err != nil {
			zap.L().Error("Failed to clean up unverified accounts", zap.Error(err))
			return
		}

		if len(deleted) > 0 {
			zap.L().Info("Unverified accounts cleaned up", zap.Int("deleted", len(deleted)))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q, %w", schedule, err)
	}

	zap.L().Debug("Account cleanup attached", zap.String("schedule", schedule), zap.Duration("max_age", maxAge))

	c.Start()
	return c, nil
}
