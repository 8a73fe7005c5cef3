package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/client"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/config"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/repository"
)

type ReconcileReport struct {
	Checked      int
	Completed    int
	StillPending int
	Repaired     int
	Expired      int
	Errors       int
}

// Reconciler converges orders whose webhook never arrived by asking the
// provider directly.
type Reconciler interface {
	RunOnce(ctx context.Context) (*ReconcileReport, error)
	Run(ctx context.Context) error
	ReconcileOrder(ctx context.Context, orderID string) (*TransitionResult, error)
}

type reconcilerImpl struct {
	cfg          config.Reconcile
	orderRepo    repository.OrderRepository
	paytrClient  client.PaytrClient
	orderService OrderService
	fulfillment  FulfillmentService
	logger       *slog.Logger
	now          func() time.Time
}

func NewReconciler(
	cfg config.Reconcile,
	orderRepo repository.OrderRepository,
	paytrClient client.PaytrClient,
	orderService OrderService,
	fulfillment FulfillmentService,
	logger *slog.Logger,
) Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = 15 * time.Minute
	}
	if cfg.MaxPendingAge <= 0 {
		cfg.MaxPendingAge = 24 * time.Hour
	}

	return &reconcilerImpl{
		cfg:          cfg,
		orderRepo:    orderRepo,
		paytrClient:  paytrClient,
		orderService: orderService,
		fulfillment:  fulfillment,
		logger:       logger,
		now:          time.Now,
	}
}

func (r *reconcilerImpl) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("reconciliation poller started",
		"interval", r.cfg.Interval,
		"pending_timeout", r.cfg.PendingTimeout,
		"max_pending_age", r.cfg.MaxPendingAge)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciliation poller stopped")
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("reconciliation cycle failed", "error", err)
			}
		}
	}
}

func (r *reconcilerImpl) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	cutoff := r.now().Add(-r.cfg.PendingTimeout)

	stale, err := r.orderRepo.ListStalePending(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list stale pending orders: %w", err)
	}

	var checked, completed, stillPending, expired, repaired, failures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, order := range stale {
		g.Go(func() error {
			checked.Add(1)

			res, err := r.reconcile(gctx, order)
			switch {
			case err != nil:
				failures.Add(1)
				r.logger.Warn("reconcile order failed, retrying next cycle",
					"order_id", order.OrderID, "error", err)
			case res.Applied && res.Order.Status == model.OrderStatusCompleted:
				completed.Add(1)
			case res.Applied && res.Order.Status == model.OrderStatusCancelled:
				expired.Add(1)
			case !res.Order.Status.Terminal():
				stillPending.Add(1)
			}
			// one order never aborts the batch
			return nil
		})
	}
	_ = g.Wait()

	orphans, err := r.orderRepo.ListCompletedWithoutPage(ctx, r.cfg.BatchSize)
	if err != nil {
		failures.Add(1)
		r.logger.Error("list completed orders without page", "error", err)
	}
	for _, order := range orphans {
		created, err := r.fulfillment.Repair(ctx, order)
		if err != nil {
			failures.Add(1)
			r.logger.Error("repair personal page", "order_id", order.OrderID, "error", err)
			continue
		}
		if created {
			repaired.Add(1)
		}
	}

	report := &ReconcileReport{
		Checked:      int(checked.Load()),
		Completed:    int(completed.Load()),
		StillPending: int(stillPending.Load()),
		Repaired:     int(repaired.Load()),
		Expired:      int(expired.Load()),
		Errors:       int(failures.Load()),
	}

	if report.Checked > 0 || report.Repaired > 0 || report.Errors > 0 {
		r.logger.Info("reconciliation cycle finished",
			"checked", report.Checked,
			"completed", report.Completed,
			"still_pending", report.StillPending,
			"repaired", report.Repaired,
			"expired", report.Expired,
			"errors", report.Errors,
		)
	}

	return report, nil
}

func (r *reconcilerImpl) ReconcileOrder(ctx context.Context, orderID string) (*TransitionResult, error) {
	order, err := r.orderRepo.FindByOrderID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	return r.reconcile(ctx, order)
}

func (r *reconcilerImpl) reconcile(ctx context.Context, order *model.Order) (*TransitionResult, error) {
	if order.Status.Terminal() {
		return &TransitionResult{Order: order}, nil
	}

	status, err := r.paytrClient.QueryStatus(ctx, order.OrderID)

	// every poll moves the order to the back of the queue, failed ones too
	if markErr := r.orderRepo.MarkReconciled(ctx, order.OrderID, r.now()); markErr != nil {
		r.logger.Warn("mark order reconciled", "order_id", order.OrderID, "error", markErr)
	}
	if err != nil {
		return nil, fmt.Errorf("query provider status for %s: %w", order.OrderID, err)
	}

	// absence of success is not a failure: the buyer may still be paying
	if !status.Settled {
		if order.CreatedAt.Before(r.now().Add(-r.cfg.MaxPendingAge)) {
			r.logger.Info("expiring abandoned order",
				"order_id", order.OrderID, "provider_status", status.Status, "created_at", order.CreatedAt)
			return r.orderService.ApplyTransition(ctx, Transition{
				OrderID:  order.OrderID,
				Status:   model.OrderStatusCancelled,
				Provider: "paytr",
				Raw:      status.Raw,
				Source:   SourceExpired,
			})
		}
		r.logger.Debug("order not settled at provider",
			"order_id", order.OrderID, "provider_status", status.Status)
		return &TransitionResult{Order: order}, nil
	}

	return r.orderService.ApplyTransition(ctx, Transition{
		OrderID:  order.OrderID,
		Status:   model.OrderStatusCompleted,
		Currency: status.Currency,
		Provider: "paytr",
		Raw:      status.Raw,
		Source:   SourceReconcile,
	})
}
