// Package jobs runs the server's scheduled maintenance.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	sweepLockKey = "lock:session_sweep"
	sweepTimeout = 5 * time.Minute
)

type sweeper interface {
	SweepSessions(ctx context.Context) (int64, error)
}

// Cron schedules the session sweep. With several API replicas sharing one
// Redis, a short-lived lock keeps the sweep to one replica per tick.
type Cron struct {
	lg  *zap.SugaredLogger
	svc sweeper
	rdb *redis.Client
	c   *cron.Cron
}

func NewCron(spec string, svc sweeper, rdb *redis.Client, lg *zap.SugaredLogger) (*Cron, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	cr := &Cron{lg: lg, svc: svc, rdb: rdb, c: c}
	if _, err := c.AddFunc(spec, cr.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop waits for a running sweep to finish.
func (cr *Cron) Stop() { <-cr.c.Stop().Done() }

func (cr *Cron) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	cr.runOnce(ctx)
}

func (cr *Cron) runOnce(ctx context.Context) {
	if cr.rdb != nil {
		ok, err := cr.rdb.SetNX(ctx, sweepLockKey, "1", sweepTimeout).Result()
		if err != nil {
			cr.lg.Errorw("cron: lock error", "error", err)
			return
		}
		if !ok {
			cr.lg.Infow("cron: session sweep already running elsewhere")
			return
		}
		defer cr.rdb.Del(context.WithoutCancel(ctx), sweepLockKey)
	}
	n, err := cr.svc.SweepSessions(ctx)
	if err != nil {
		cr.lg.Errorw("cron: session sweep failed", "error", err)
		return
	}
	cr.lg.Infow("cron: session sweep", "deleted", n)
}
