package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type PurchaseExpirer interface {
	ExpirePurchases(ctx context.Context) (int64, error)
}

type StaleOrderCanceller interface {
	CancelStalePending(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MaintenanceWorker expires lapsed purchases and abandons orders whose
// checkout never completed.
type MaintenanceWorker struct {
	purchases  PurchaseExpirer
	orders     StaleOrderCanceller
	interval   time.Duration
	pendingTTL time.Duration
}

func NewMaintenanceWorker(purchases PurchaseExpirer, orders StaleOrderCanceller, interval, pendingTTL time.Duration) *MaintenanceWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &MaintenanceWorker{
		purchases:  purchases,
		orders:     orders,
		interval:   interval,
		pendingTTL: pendingTTL,
	}
}

// Start blocks until ctx is cancelled.
func (w *MaintenanceWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.WithField("interval", w.interval.String()).Info("maintenance worker started")

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			logrus.Info("maintenance worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *MaintenanceWorker) RunOnce(ctx context.Context) {
	expired, err := w.purchases.ExpirePurchases(ctx)
	if err != nil {
		logrus.WithError(err).Error("failed to expire purchases")
	} else if expired > 0 {
		logrus.WithField("count", expired).Info("purchases expired")
	}

	if w.pendingTTL <= 0 {
		return
	}
	cancelled, err := w.orders.CancelStalePending(ctx, w.pendingTTL)
	if err != nil {
		logrus.WithError(err).Error("failed to cancel stale orders")
		return
	}
	if cancelled > 0 {
		logrus.WithField("count", cancelled).Info("stale pending orders cancelled")
	}
}
