package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/repository"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/testutil"
)

func TestFindByOrderIDNotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db)

	_, err := repo.FindByOrderID(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)
}

func TestTransitionStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db)
	testutil.InsertOrder(t, db, testutil.PendingOrder("ord-1", "abcd1234", time.Now()))

	changed, err := repo.TransitionStatus(ctx, nil, "ord-1", model.OrderStatusPending, model.OrderStatusCompleted,
		map[string]interface{}{"payment_id": "pay-1"})
	require.NoError(t, err)
	assert.True(t, changed)

	// second CAS from pending loses
	changed, err = repo.TransitionStatus(ctx, nil, "ord-1", model.OrderStatusPending, model.OrderStatusFailed, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	order, err := repo.FindByOrderID(ctx, nil, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, order.Status)
	require.NotNil(t, order.PaymentID)
	assert.Equal(t, "pay-1", *order.PaymentID)
}

func TestRecordFulfillmentFailure(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db)
	testutil.InsertOrder(t, db, testutil.PendingOrder("ord-1", "abcd1234", time.Now()))

	require.NoError(t, repo.RecordFulfillmentFailure(ctx, "ord-1", errors.New("disk full")))
	require.NoError(t, repo.RecordFulfillmentFailure(ctx, "ord-1", errors.New("disk still full")))

	order, err := repo.FindByOrderID(ctx, nil, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, 2, order.FulfillmentAttempts)
	assert.Equal(t, "disk still full", order.LastError)
	assert.Equal(t, model.OrderStatusPending, order.Status)
}

func TestListStalePending(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db)
	now := time.Now()

	testutil.InsertOrder(t, db, testutil.PendingOrder("old", "old00001", now.Add(-time.Hour)))
	testutil.InsertOrder(t, db, testutil.PendingOrder("fresh", "fresh001", now))
	done := testutil.PendingOrder("done", "done0001", now.Add(-time.Hour))
	done.Status = model.OrderStatusCompleted
	testutil.InsertOrder(t, db, done)

	orders, err := repo.ListStalePending(ctx, now.Add(-15*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "old", orders[0].OrderID)
}

func TestListCompletedWithoutPage(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	orders := repository.NewOrderRepository(db)
	pages := repository.NewPersonalPageRepository(db)
	now := time.Now()

	for _, id := range []string{"a", "b"} {
		o := testutil.PendingOrder(id, id+"0000000", now)
		o.Status = model.OrderStatusCompleted
		o.CompletedAt = &now
		testutil.InsertOrder(t, db, o)
	}
	_, err := pages.CreateIfAbsent(ctx, nil, &model.PersonalPage{ShortID: "a0000000", OrderID: "a", TemplateID: "tpl", IsActive: true})
	require.NoError(t, err)

	missing, err := orders.ListCompletedWithoutPage(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "b", missing[0].OrderID)
	assert.Equal(t, "b0000000", missing[0].ShortID)
}

func TestCreateIfAbsentIdempotency(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	pages := repository.NewPersonalPageRepository(db)

	page := &model.PersonalPage{ShortID: "abcd1234", OrderID: "ord-1", TemplateID: "tpl", Message: "first", IsActive: true}
	created, err := pages.CreateIfAbsent(ctx, nil, page)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &model.PersonalPage{ShortID: "abcd1234", OrderID: "ord-1", TemplateID: "tpl", Message: "second", IsActive: true}
	created, err = pages.CreateIfAbsent(ctx, nil, dup)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := pages.FindByShortID(ctx, nil, "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Message)

	_, err = pages.FindByShortID(ctx, nil, "nope")
	assert.ErrorIs(t, err, apperr.ErrPageNotFound)
}

func TestListStalePendingRotatesPolledOrders(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := repository.NewOrderRepository(db)
	now := time.Now()

	testutil.InsertOrder(t, db, testutil.PendingOrder("oldest", "oldest01", now.Add(-3*time.Hour)))
	testutil.InsertOrder(t, db, testutil.PendingOrder("older", "older001", now.Add(-2*time.Hour)))
	testutil.InsertOrder(t, db, testutil.PendingOrder("newer", "newer001", now.Add(-time.Hour)))

	require.NoError(t, repo.MarkReconciled(ctx, "oldest", now.Add(-time.Minute)))
	require.NoError(t, repo.MarkReconciled(ctx, "older", now.Add(-2*time.Minute)))

	orders, err := repo.ListStalePending(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "newer", orders[0].OrderID)
	assert.Equal(t, "older", orders[1].OrderID)
	assert.Equal(t, "oldest", orders[2].OrderID)
	assert.Equal(t, 1, orders[2].ReconcileAttempts)
	require.NotNil(t, orders[2].LastReconciledAt)
}
