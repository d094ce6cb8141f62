package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/hearth/internal/backup"
	"github.com/dukerupert/hearth/internal/ratelimit"
	"github.com/dukerupert/hearth/internal/server"
)

// scheduleJobs registers the background maintenance jobs. memory is nil when
// rate limiting is backed by Redis, which expires its own keys. backups is nil
// when snapshots are disabled.
func scheduleJobs(srv *server.Server, memory *ratelimit.MemoryStore, backups *backup.Manager, backupSchedule string, logger *slog.Logger) (*cron.Cron, error) {
	logger = logger.With("component", "jobs")
	c := cron.New()

	if memory != nil {
		_, err := c.AddFunc("@every 1m", func() {
			if n := memory.Cleanup(); n > 0 {
				logger.Debug("rate limit buckets pruned", "count", n)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("schedule rate limit cleanup: %w", err)
		}
	}

	_, err := c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := srv.Invitations().ExpireStale(ctx, time.Now())
		if err != nil {
			logger.Error("expire invitations", "error", err)
			return
		}
		if n > 0 {
			logger.Info("invitations expired", "count", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule invitation expiry: %w", err)
	}

	if backups != nil {
		_, err := c.AddFunc(backupSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := backups.Run(ctx); err != nil {
				logger.Error("backup", "error", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("schedule backup: %w", err)
		}
		logger.Info("backups scheduled", "schedule", backupSchedule)
	}
	return c, nil
}
