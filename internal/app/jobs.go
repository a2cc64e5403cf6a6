package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	pkgcron "github.com/mx-space/blockdraft/internal/pkg/cron"
)

const (
	reapInterval  = 10 * time.Minute
	purgeInterval = 24 * time.Hour
)

// registerJobs registers the background jobs of the editor backend.
func registerJobs(sched *pkgcron.Scheduler, a *App) {
	log := a.logger.Named("CronService")

	if idle := a.cfg.Editor.SessionIdle; idle > 0 {
		sched.Register(pkgcron.Job{
			Name:        "reap_idle_sessions",
			Description: "close editor sessions idle for longer than the configured timeout",
			Interval:    reapInterval,
			Fn: func(context.Context) error {
				if n := a.hub.Reap(idle); n > 0 {
					log.Info("reaped idle editor sessions", zap.Int("count", n), zap.Int("open", a.hub.Len()))
				}
				return nil
			},
		})
	}

	if keep := a.cfg.DeletedRetention; keep > 0 {
		sched.Register(pkgcron.Job{
			Name:        "purge_deleted_drafts",
			Description: "remove drafts deleted longer ago than the retention window",
			Interval:    purgeInterval,
			Fn: func(ctx context.Context) error {
				_, err := a.drafts.PurgeDeleted(ctx, time.Now().Add(-keep))
				return err
			},
		})
	}
}
