package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/blob"
	"github.com/aussiebroadwan/docgate/internal/docgate/store"
	"github.com/cenkalti/backoff/v4"
)

const (
	orphanBatchSize = 100
	maxOrphanDelay  = 24 * time.Hour
)

// CounterSweeper drops expired rate-limit counters. ratelimit.MemoryStore
// implements it; shared stores expire keys on their own.
type CounterSweeper interface {
	Sweep(now time.Time) int
}

// HousekeepingService periodically sweeps in-memory rate-limit counters and
// retries deletion of orphaned blobs.
type HousekeepingService struct {
	Store    store.Store
	Blobs    blob.Store
	Counters CounterSweeper // optional
	Logger   *slog.Logger
	Interval time.Duration
	Timeout  time.Duration
	Clock    func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 5 minutes.
func NewHousekeepingService(st store.Store, blobs blob.Store, counters CounterSweeper, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &HousekeepingService{
		Store:    st,
		Blobs:    blobs,
		Counters: counters,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop() to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress run has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce performs one housekeeping pass. Each task is independent;
// failures in one won't stop the others.
func (s *HousekeepingService) RunOnce(ctx context.Context) {
	now := time.Now()
	if s.Clock != nil {
		now = s.Clock()
	}

	if s.Counters != nil {
		n := s.Counters.Sweep(now)
		s.Logger.Debug("swept rate limit counters", "removed", n)
	}

	removed, failed := s.retryOrphans(ctx, now)
	s.Logger.Info("housekeeping completed", "orphans_removed", removed, "orphans_failed", failed)
}

func (s *HousekeepingService) retryOrphans(ctx context.Context, now time.Time) (removed, failed int) {
	lctx, cancel := withTimeout(ctx, s.Timeout)
	due, err := s.Store.OrphanedBlobs().ListDueOrphanedBlobs(lctx, now, orphanBatchSize)
	cancel()
	if err != nil {
		s.Logger.Error("failed to list orphaned blobs", "error", err)
		return 0, 0
	}

	for _, orphan := range due {
		dctx, cancel := withTimeout(ctx, s.Timeout)
		err := s.Blobs.Delete(dctx, orphan.Key)
		cancel()

		rctx, cancel := withTimeout(ctx, s.Timeout)
		if err == nil {
			err = s.Store.OrphanedBlobs().DeleteOrphanedBlob(rctx, orphan.Key)
			removed++
		} else {
			failed++
			next := now.Add(s.orphanDelay(orphan.Attempts + 1))
			s.Logger.Warn("orphaned blob delete failed", "key", orphan.Key, "attempts", orphan.Attempts+1, "error", err)
			err = s.Store.OrphanedBlobs().RescheduleOrphanedBlob(rctx, orphan.Key, next, err.Error())
		}
		cancel()

		if err != nil {
			s.Logger.Error("failed to update orphaned blob", "key", orphan.Key, "error", err)
		}
	}
	return removed, failed
}

// orphanDelay doubles from the interval per attempt, capped at a day.
func (s *HousekeepingService) orphanDelay(attempts int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     s.Interval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxOrphanDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	d := b.NextBackOff()
	for range min(attempts, 32) {
		d = b.NextBackOff()
	}
	if d <= 0 {
		return maxOrphanDelay
	}
	return d
}
