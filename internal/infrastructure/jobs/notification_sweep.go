package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"notify-hub.backend/internal/usecases"
	"notify-hub.backend/pkg/logger"
	"notify-hub.backend/pkg/redis"
)

// SweepLockKey guards the delivery pass across replicas.
const SweepLockKey = "lock:notification-sweep"

// Sweeper runs one delivery pass.
type Sweeper interface {
	ProcessDue(ctx context.Context) (usecases.SweepReport, error)
}

// NotificationSweepJob periodically delivers due notifications
type NotificationSweepJob struct {
	sweeper  Sweeper
	lock     *redis.Store
	lockTTL  time.Duration
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewNotificationSweepJob creates a new sweep job. lock may be nil on single-replica deployments.
func NewNotificationSweepJob(sweeper Sweeper, lock *redis.Store, interval, lockTTL time.Duration) *NotificationSweepJob {
	if interval <= 0 {
		interval = time.Minute
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &NotificationSweepJob{
		sweeper:  sweeper,
		lock:     lock,
		lockTTL:  lockTTL,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (j *NotificationSweepJob) Start(ctx context.Context) {
	logger.Info(ctx, "Starting notification sweep job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Notification sweep job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Notification sweep job stopped")
			return
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

// Stop ends the loop started by Start. It is safe to call more than once.
func (j *NotificationSweepJob) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

func (j *NotificationSweepJob) tick(ctx context.Context) {
	report, ran, err := j.RunOnce(ctx)
	if err != nil {
		logger.Error(ctx, "Notification sweep failed", zap.Error(err))
		return
	}
	if !ran || report.Claimed == 0 {
		return
	}
	logger.Info(ctx, "Notification sweep finished",
		zap.Int("sent", report.Sent),
		zap.Int("suppressed", report.Suppressed),
		zap.Int("rescheduled", report.Rescheduled),
		zap.Int("failed", report.Failed),
		zap.Int("errors", report.Errors),
	)
}

// RunOnce runs a single pass. ran is false when another replica holds the sweep lock.
func (j *NotificationSweepJob) RunOnce(ctx context.Context) (report usecases.SweepReport, ran bool, err error) {
	if j.lock != nil {
		lease, ok, err := j.lock.Acquire(ctx, SweepLockKey, j.lockTTL)
		if err != nil {
			// row claims still prevent double sends
			logger.Warn(ctx, "Sweep lock unavailable, continuing without it", zap.Error(err))
		} else if !ok {
			logger.Debug(ctx, "Sweep lock held elsewhere, skipping pass")
			return report, false, nil
		} else {
			defer func() {
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
					logger.Warn(ctx, "Failed to release sweep lock", zap.Error(err))
				}
			}()
		}
	}

	report, err = j.sweeper.ProcessDue(ctx)
	return report, true, err
}
