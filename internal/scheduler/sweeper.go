// Package scheduler は定期実行のジョブ（支払い期限切れ注文・期限切れホールドの掃除）。
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultInterval        = time.Hour
	DefaultPendingOrderTTL = 24 * time.Hour
)

type OrderExpirer interface {
	ExpirePendingOrders(ctx context.Context, cutoff time.Time) (int, error)
}

type HoldPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Sweeper struct {
	orders   OrderExpirer
	holds    HoldPurger
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewSweeper(orders OrderExpirer, holds HoldPurger, interval, pendingOrderTTL time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if pendingOrderTTL <= 0 {
		pendingOrderTTL = DefaultPendingOrderTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		orders:   orders,
		holds:    holds,
		interval: interval,
		ttl:      pendingOrderTTL,
		now:      time.Now,
		log:      log.Named("sweeper"),
	}
}

// ctx がキャンセルされるまでブロックする。起動直後に1回流す
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("sweeper started", zap.Duration("interval", s.interval), zap.Duration("pending_order_ttl", s.ttl))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

type Result struct {
	ExpiredOrders int
	PurgedHolds   int64
}

// 失敗はログに出すだけ。次の周期でまた拾う
func (s *Sweeper) RunOnce(ctx context.Context) Result {
	var res Result
	cutoff := s.now().Add(-s.ttl)

	n, err := s.orders.ExpirePendingOrders(ctx, cutoff)
	res.ExpiredOrders = n
	if err != nil {
		s.log.Error("expire pending orders failed", zap.Time("cutoff", cutoff), zap.Int("expired", n), zap.Error(err))
	}

	purged, err := s.holds.PurgeExpired(ctx)
	res.PurgedHolds = purged
	if err != nil {
		s.log.Error("purge expired holds failed", zap.Error(err))
	}

	if res.ExpiredOrders > 0 || res.PurgedHolds > 0 {
		s.log.Info("sweep finished", zap.Int("expired_orders", res.ExpiredOrders), zap.Int64("purged_holds", res.PurgedHolds))
	}
	return res
}
