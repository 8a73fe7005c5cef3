package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error)
	// TransitionStatus moves the order from one status to another in a single
	// conditional update. It reports false when the order was not in from.
	TransitionStatus(ctx context.Context, tx *gorm.DB, orderID string, from, to model.OrderStatus, updates map[string]interface{}) (bool, error)
	RecordFulfillmentFailure(ctx context.Context, orderID string, cause error) error
	// ListStalePending returns pending orders created before createdBefore,
	// never-polled first, then least recently polled.
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Order, error)
	MarkReconciled(ctx context.Context, orderID string, at time.Time) error
	ListCompletedWithoutPage(ctx context.Context, limit int) ([]*model.Order, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperr.ErrStoreUnavailable, err)
}

func (r *orderRepoImpl) Create(ctx context.Context, order *model.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return storeError("create order", err)
	}
	return nil
}

func (r *orderRepoImpl) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.conn(tx).WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderID, apperr.ErrOrderNotFound)
		}
		return nil, storeError("find order", err)
	}

	return &order, nil
}

func (r *orderRepoImpl) TransitionStatus(
	ctx context.Context,
	tx *gorm.DB,
	orderID string,
	from, to model.OrderStatus,
	updates map[string]interface{},
) (bool, error) {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}

	result := r.conn(tx).WithContext(ctx).Model(&model.Order{}).
		Where(`
			order_id = ?
			AND status = ?
		`,
			orderID,
			from,
		).
		Updates(values)

	if result.Error != nil {
		return false, storeError("transition order", result.Error)
	}

	return result.RowsAffected == 1, nil
}

func (r *orderRepoImpl) RecordFulfillmentFailure(ctx context.Context, orderID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"fulfillment_attempts": gorm.Expr("fulfillment_attempts + ?", 1),
			"last_error":           msg,
			"updated_at":           time.Now(),
		}).Error
	if err != nil {
		return storeError("record fulfillment failure", err)
	}
	return nil
}

func (r *orderRepoImpl) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OrderStatusPending).
		Where("created_at < ?", createdBefore).
		Order("last_reconciled_at IS NOT NULL").
		Order("last_reconciled_at ASC").
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error

	if err != nil {
		return nil, storeError("list stale pending orders", err)
	}

	return orders, nil
}

func (r *orderRepoImpl) MarkReconciled(ctx context.Context, orderID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_id = ?", orderID).
		UpdateColumns(map[string]interface{}{
			"reconcile_attempts": gorm.Expr("reconcile_attempts + ?", 1),
			"last_reconciled_at": at,
		}).Error
	if err != nil {
		return storeError("mark order reconciled", err)
	}
	return nil
}

func (r *orderRepoImpl) ListCompletedWithoutPage(ctx context.Context, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("orders.*").
		Joins("LEFT JOIN personal_pages ON personal_pages.short_id = orders.short_id").
		Where("orders.status = ?", model.OrderStatusCompleted).
		Where("personal_pages.short_id IS NULL").
		Order("orders.completed_at ASC").
		Limit(limit).
		Find(&orders).Error

	if err != nil {
		return nil, storeError("list completed orders without page", err)
	}

	return orders, nil
}
