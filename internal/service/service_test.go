package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/config"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/dto"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/repository"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/service"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/signature"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/testutil"
)

var paytrCfg = config.Paytr{MerchantID: "M1", MerchantKey: "K", MerchantSalt: "S"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	db           *gorm.DB
	orderRepo    repository.OrderRepository
	pageRepo     repository.PersonalPageRepository
	fulfillment  service.FulfillmentService
	orderService service.OrderService
	webhooks     service.WebhookService
}

func newFixture(t *testing.T, pageRepo repository.PersonalPageRepository) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	orderRepo := repository.NewOrderRepository(db)
	if pageRepo == nil {
		pageRepo = repository.NewPersonalPageRepository(db)
	}
	logger := discardLogger()

	fulfillment := service.NewFulfillmentService(db, pageRepo, nil, "https://gizlimesaj.test", logger)
	orderService := service.NewOrderService(db, orderRepo, fulfillment, logger)

	return &fixture{
		db:           db,
		orderRepo:    orderRepo,
		pageRepo:     pageRepo,
		fulfillment:  fulfillment,
		orderService: orderService,
		webhooks:     service.NewWebhookService(&paytrCfg, orderService, logger),
	}
}

func (f *fixture) pageCount(t *testing.T, orderID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.PersonalPage{}).Where("order_id = ?", orderID).Count(&n).Error)
	return n
}

func (f *fixture) status(t *testing.T, orderID string) model.OrderStatus {
	t.Helper()
	order, err := f.orderRepo.FindByOrderID(context.Background(), nil, orderID)
	require.NoError(t, err)
	return order.Status
}

func signedWebhook(orderID, status, paymentID string) *model.WebhookNotification {
	fields := signature.WebhookFields(paytrCfg.MerchantID, orderID, status, paymentID)
	return &model.WebhookNotification{
		OrderID:   orderID,
		Status:    status,
		PaymentID: paymentID,
		Provider:  "paytr",
		Token:     signature.ComputeToken(fields, paytrCfg.MerchantKey, paytrCfg.MerchantSalt),
	}
}

// failingPageRepo cannot store pages.
type failingPageRepo struct{}

func (failingPageRepo) FindByShortID(context.Context, *gorm.DB, string) (*model.PersonalPage, error) {
	return nil, apperr.ErrPageNotFound
}

func (failingPageRepo) CreateIfAbsent(context.Context, *gorm.DB, *model.PersonalPage) (bool, error) {
	return false, errors.New("page storage offline")
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, nil)

	order, err := f.orderService.CreateOrder(context.Background(), &dto.CreateOrderRequest{
		TemplateID: "tpl-love",
		Amount:     "34.99",
		Currency:   "TL",
		TextFields: []byte(`{"headline":"Seni seviyorum"}`),
	})
	require.NoError(t, err)

	// doubles as the provider merchant_oid, which must be alphanumeric
	assert.Regexp(t, `^[0-9a-f]{32}$`, order.OrderID)
	assert.Len(t, order.ShortID, 8)
	assert.Equal(t, "TRY", order.Currency)
	assert.Equal(t, model.OrderStatusPending, f.status(t, order.OrderID))
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.orderService.CreateOrder(ctx, &dto.CreateOrderRequest{Amount: "10"})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = f.orderService.CreateOrder(ctx, &dto.CreateOrderRequest{TemplateID: "tpl", Amount: "-1"})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestApplyTransitionUnknownOrder(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orderService.ApplyTransition(context.Background(), service.Transition{
		OrderID: "missing", Status: model.OrderStatusCompleted,
	})
	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)
}

func TestCompletionIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	testutil.InsertOrder(t, f.db, testutil.PendingOrder("ord-1", "short001", time.Now()))

	tr := service.Transition{OrderID: "ord-1", Status: model.OrderStatusCompleted, PaymentID: "pay-1", Source: "test"}

	first, err := f.orderService.ApplyTransition(ctx, tr)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	require.NotNil(t, first.Page)
	assert.Equal(t, "short001", first.Page.ShortID)
	require.NotNil(t, first.Order.CompletedAt)

	second, err := f.orderService.ApplyTransition(ctx, tr)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.False(t, second.Conflict)

	assert.Equal(t, int64(1), f.pageCount(t, "ord-1"))
	assert.Equal(t, model.OrderStatusCompleted, f.status(t, "ord-1"))
}

func TestCompletedOrderNeverRegresses(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	testutil.InsertOrder(t, f.db, testutil.PendingOrder("ord-1", "short001", time.Now()))

	_, err := f.orderService.ApplyTransition(ctx, service.Transition{OrderID: "ord-1", Status: model.OrderStatusCompleted})
	require.NoError(t, err)

	for _, status := range []model.OrderStatus{model.OrderStatusFailed, model.OrderStatusCancelled, model.OrderStatusPending} {
		res, err := f.orderService.ApplyTransition(ctx, service.Transition{OrderID: "ord-1", Status: status})
		require.NoError(t, err)
		assert.False(t, res.Applied)
		assert.Equal(t, status != model.OrderStatusPending, res.Conflict, status)
	}

	assert.Equal(t, model.OrderStatusCompleted, f.status(t, "ord-1"))
	assert.Equal(t, int64(1), f.pageCount(t, "ord-1"))
}

func TestFailedOrderIsNotFulfilledLater(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	testutil.InsertOrder(t, f.db, testutil.PendingOrder("ord-1", "short001", time.Now()))

	res, err := f.orderService.ApplyTransition(ctx, service.Transition{OrderID: "ord-1", Status: model.OrderStatusFailed})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Nil(t, res.Page)

	res, err = f.orderService.ApplyTransition(ctx, service.Transition{OrderID: "ord-1", Status: model.OrderStatusCompleted})
	require.NoError(t, err)
	assert.True(t, res.Conflict)

	assert.Equal(t, model.OrderStatusFailed, f.status(t, "ord-1"))
	assert.Equal(t, int64(0), f.pageCount(t, "ord-1"))
}

func TestFulfillmentFailureKeepsOrderPending(t *testing.T) {
	f := newFixture(t, failingPageRepo{})
	ctx := context.Background()
	testutil.InsertOrder(t, f.db, testutil.PendingOrder("ord-1", "short001", time.Now()))

	_, err := f.orderService.ApplyTransition(ctx, service.Transition{OrderID: "ord-1", Status: model.OrderStatusCompleted})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrFulfillmentFailed)
	assert.True(t, apperr.Retryable(err))

	order, err := f.orderRepo.FindByOrderID(ctx, nil, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Nil(t, order.CompletedAt)
	assert.Equal(t, 1, order.FulfillmentAttempts)
	assert.Contains(t, order.LastError, "page storage offline")
}

func TestConcurrentCompletionsCreateOnePage(t *testing.T) {
	f := newFixture(t, nil)
	testutil.InsertOrder(t, f.db, testutil.PendingOrder("ord-1", "short001", time.Now()))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.orderService.ApplyTransition(context.Background(),
				service.Transition{OrderID: "ord-1", Status: model.OrderStatusCompleted})
			if !assert.NoError(t, err) {
				return
			}
			if res.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(1), f.pageCount(t, "ord-1"))
}

func TestProvisionReturnsExistingPage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := testutil.PendingOrder("ord-1", "short001", time.Now())
	testutil.InsertOrder(t, f.db, order)

	page, created, err := f.fulfillment.Provision(ctx, nil, order)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, page.IsActive)
	assert.Equal(t, order.Message, page.Message)

	again, created, err := f.fulfillment.Provision(ctx, nil, order)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, page.ShortID, again.ShortID)
}

func TestDuplicateWebhookEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	testutil.InsertOrder(t, f.db, testutil.PendingOrder("ord-123", "abc12345", time.Now()))

	n := signedWebhook("ord-123", "success", "pay-9")

	first, err := f.webhooks.HandleWebhook(ctx, n)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := f.webhooks.HandleWebhook(ctx, n)
	require.NoError(t, err)
	assert.False(t, second.Applied)

	order, err := f.orderRepo.FindByOrderID(ctx, nil, "ord-123")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, order.Status)
	require.NotNil(t, order.PaymentID)
	assert.Equal(t, "pay-9", *order.PaymentID)
	assert.NotContains(t, string(order.PaymentResponse), n.Token)
	assert.Equal(t, int64(1), f.pageCount(t, "ord-123"))
}

func TestWebhookRejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	testutil.InsertOrder(t, f.db, testutil.PendingOrder("ord-1", "short001", time.Now()))

	tampered := signedWebhook("ord-1", "success", "pay-1")
	tampered.PaymentID = "pay-2"
	_, err := f.webhooks.HandleWebhook(ctx, tampered)
	assert.ErrorIs(t, err, apperr.ErrAuthenticationFailed)

	missing := signedWebhook("ord-1", "success", "pay-1")
	missing.Token = ""
	_, err = f.webhooks.HandleWebhook(ctx, missing)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = f.webhooks.HandleWebhook(ctx, signedWebhook("ord-1", "refunded", "pay-1"))
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = f.webhooks.HandleWebhook(ctx, signedWebhook("nope", "success", "pay-1"))
	assert.ErrorIs(t, err, apperr.ErrOrderNotFound)

	assert.Equal(t, model.OrderStatusPending, f.status(t, "ord-1"))
}

func TestWebhookAmountAndStoredPayload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	testutil.InsertOrder(t, f.db, testutil.PendingOrder("ord-1", "short001", time.Now()))
	testutil.InsertOrder(t, f.db, testutil.PendingOrder("ord-2", "short002", time.Now()))

	negative := signedWebhook("ord-2", "success", "pay-2")
	minus := decimal.RequireFromString("-1")
	negative.Amount = &minus
	_, err := f.webhooks.HandleWebhook(ctx, negative)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	assert.Equal(t, model.OrderStatusPending, f.status(t, "ord-2"))

	n := signedWebhook("ord-1", "success", "pay-1")
	amount := decimal.RequireFromString("42.5")
	n.Amount = &amount

	res, err := f.webhooks.HandleWebhook(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, "42.50", res.Order.Amount.StringFixed(2))

	raw := string(res.Order.PaymentResponse)
	assert.Contains(t, raw, `"amount":"42.5"`)
	assert.NotContains(t, raw, `"token"`)
	assert.NotContains(t, raw, n.Token)
}

func TestWebhookSurvivesCancelledRequest(t *testing.T) {
	f := newFixture(t, nil)
	testutil.InsertOrder(t, f.db, testutil.PendingOrder("ord-1", "short001", time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.webhooks.HandleWebhook(ctx, signedWebhook("ord-1", "success", "pay-1"))
	require.NoError(t, err)
	assert.True(t, res.Applied)
}

func TestPaytrCallback(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	testutil.InsertOrder(t, f.db, testutil.PendingOrder("ord-1", "short001", time.Now()))

	cb := &model.PaytrCallback{
		MerchantOID: "ord-1",
		Status:      "success",
		TotalAmount: "3499",
		Currency:    "TL",
	}
	cb.Hash = signature.CallbackHash(cb.MerchantOID, cb.Status, cb.TotalAmount, "K", "S")

	res, err := f.webhooks.HandlePaytrCallback(ctx, cb)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, "34.99", res.Order.Amount.StringFixed(2))
	assert.Equal(t, "TRY", res.Order.Currency)

	cb.TotalAmount = "1"
	_, err = f.webhooks.HandlePaytrCallback(ctx, cb)
	assert.ErrorIs(t, err, apperr.ErrAuthenticationFailed)
}

func TestLivePage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	order := testutil.PendingOrder("ord-1", "short001", time.Now())
	past := time.Now().Add(-time.Hour)
	expired := testutil.PendingOrder("ord-2", "short002", time.Now())
	expired.ExpiresAt = &past
	testutil.InsertOrder(t, f.db, order)
	testutil.InsertOrder(t, f.db, expired)

	_, err := f.fulfillment.LivePage(ctx, "short001")
	assert.ErrorIs(t, err, apperr.ErrPageNotFound)

	for _, id := range []string{"ord-1", "ord-2"} {
		_, err := f.orderService.ApplyTransition(ctx, service.Transition{OrderID: id, Status: model.OrderStatusCompleted})
		require.NoError(t, err)
	}

	page, err := f.fulfillment.LivePage(ctx, "short001")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", page.OrderID)

	_, err = f.fulfillment.LivePage(ctx, "short002")
	assert.ErrorIs(t, err, apperr.ErrPageNotFound)
}
