// Package sweeper cancels QR orders whose payment window has passed.
package sweeper

import (
	"context"
	"github.com/ariefcatur/go-piano-orders/internal/orders"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"sync"
	"time"
)

const (
	DefaultInterval = 60 * time.Second
	ExpiryNote      = "auto-cancelled: QR payment window expired"
)

type Expirer interface {
	ExpireOverdue(ctx context.Context, now time.Time, note string) ([]orders.Order, error)
}

type Sweeper struct {
	Orders   Expirer
	Events   *orders.Events
	Redis    *redis.Client
	Interval time.Duration
	Now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	started   chan struct{}
	stopChan  chan struct{}
	doneChan  chan struct{}
}

func New(store Expirer, events *orders.Events, rdb *redis.Client, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		Orders:   store,
		Events:   events,
		Redis:    rdb,
		Interval: interval,
		started:  make(chan struct{}),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Start runs one sweep immediately, then one per interval until Stop or ctx ends.
// Later calls are no-ops.
func (s *Sweeper) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		close(s.started)
		zap.L().Info("expiry sweeper started", zap.Duration("interval", s.Interval))
		go s.pollLoop(ctx)
	})
}

// Stop waits for an in-flight sweep to finish. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		select {
		case <-s.started:
			<-s.doneChan
		default:
		}
		zap.L().Info("expiry sweeper stopped")
	})
}

func (s *Sweeper) pollLoop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if _, err := s.SweepOnce(ctx); err != nil {
		// next tick retries
		zap.L().Error("expiry sweep failed", zap.Error(err))
	}
}

// SweepOnce cancels every pending QR order whose deadline is before now in a
// single conditional update and returns the ids it cancelled.
func (s *Sweeper) SweepOnce(ctx context.Context) ([]int64, error) {
	expired, err := s.Orders.ExpireOverdue(ctx, s.now(), ExpiryNote)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(expired))
	for _, o := range expired {
		ids = append(ids, o.ID)
		orders.InvalidateStatus(ctx, s.Redis, o.ID)
		s.Events.Cancelled(o, "payment_expired")
	}
	if len(ids) > 0 {
		zap.L().Info("expired QR orders cancelled", zap.Int("count", len(ids)), zap.Int64s("order_ids", ids))
	}
	return ids, nil
}
