package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/dto"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/repository"
)

const shortIDLength = 8

// Transition is a proposed status change coming from a webhook, a provider
// callback, or a status poll.
type Transition struct {
	OrderID   string
	Status    model.OrderStatus
	PaymentID string
	Amount    *decimal.Decimal
	Currency  string
	Provider  string
	Raw       []byte
	Source    string
}

type TransitionResult struct {
	Order *model.Order
	// Page is set when the order is completed by this call.
	Page *model.PersonalPage
	// Applied is false for idempotent no-ops.
	Applied bool
	// Conflict marks a terminal order contradicted by the proposal.
	Conflict bool
}

type OrderService interface {
	CreateOrder(ctx context.Context, req *dto.CreateOrderRequest) (*model.Order, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	ApplyTransition(ctx context.Context, t Transition) (*TransitionResult, error)
}

type orderServiceImpl struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	fulfillment FulfillmentService
	logger      *slog.Logger
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	fulfillment FulfillmentService,
	logger *slog.Logger,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		orderRepo:   orderRepo,
		fulfillment: fulfillment,
		logger:      logger,
	}
}

var errLostRace = errors.New("order left pending concurrently")

func (s *orderServiceImpl) CreateOrder(ctx context.Context, req *dto.CreateOrderRequest) (*model.Order, error) {
	if req.TemplateID == "" {
		return nil, fmt.Errorf("template_id is required: %w", apperr.ErrInvalidRequest)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be a positive decimal: %w", apperr.ErrInvalidRequest)
	}

	currency := model.NormalizeCurrency(req.Currency)
	if currency == "" {
		currency = "TRY"
	}

	shortID, err := gonanoid.New(shortIDLength)
	if err != nil {
		return nil, fmt.Errorf("generate short id: %w", err)
	}

	order := &model.Order{
		OrderID:       newOrderID(),
		Status:        model.OrderStatusPending,
		Amount:        amount,
		Currency:      currency,
		Provider:      "paytr",
		ShortID:       shortID,
		TemplateID:    req.TemplateID,
		RecipientName: req.RecipientName,
		SenderName:    req.SenderName,
		Message:       req.Message,
		BuyerEmail:    req.BuyerEmail,
		SpecialDate:   req.SpecialDate,
		ExpiresAt:     req.ExpiresAt,
		DesignStyle:   req.DesignStyle,
		BgAudioURL:    req.BgAudioURL,
		TextFields:    datatypes.JSON(req.TextFields),
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order created", "order_id", order.OrderID, "short_id", order.ShortID)
	return order, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return s.orderRepo.FindByOrderID(ctx, nil, orderID)
}

func (s *orderServiceImpl) ApplyTransition(ctx context.Context, t Transition) (*TransitionResult, error) {
	if t.OrderID == "" || !t.Status.Valid() {
		return nil, fmt.Errorf("transition %q to %q: %w", t.OrderID, t.Status, apperr.ErrInvalidRequest)
	}

	// always a fresh read: the terminal gate must never see a cached order
	order, err := s.orderRepo.FindByOrderID(ctx, nil, t.OrderID)
	if err != nil {
		return nil, err
	}

	if order.Status.Terminal() {
		return s.noop(order, t), nil
	}

	switch t.Status {
	case model.OrderStatusPending:
		return &TransitionResult{Order: order}, nil
	case model.OrderStatusCompleted:
		return s.complete(ctx, order, t)
	default:
		return s.terminate(ctx, order, t)
	}
}

func (s *orderServiceImpl) noop(order *model.Order, t Transition) *TransitionResult {
	res := &TransitionResult{Order: order}

	if t.Status != model.OrderStatusPending && t.Status != order.Status {
		res.Conflict = true
		s.logger.Warn("transition conflict: terminal order contradicted",
			"order_id", order.OrderID,
			"stored_status", order.Status,
			"proposed_status", t.Status,
			"source", t.Source,
			"error", apperr.ErrTransitionConflict,
		)
		return res
	}

	s.logger.Debug("duplicate transition ignored",
		"order_id", order.OrderID, "status", order.Status, "source", t.Source)
	return res
}

// complete marks the order completed and provisions its page in one database
// transaction. If provisioning fails the order stays pending.
func (s *orderServiceImpl) complete(ctx context.Context, order *model.Order, t Transition) (*TransitionResult, error) {
	var (
		completed *model.Order
		page      *model.PersonalPage
		created   bool
	)

	now := time.Now()
	updates := settlementUpdates(t)
	updates["completed_at"] = now
	updates["last_error"] = ""

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.orderRepo.TransitionStatus(ctx, tx, order.OrderID,
			model.OrderStatusPending, model.OrderStatusCompleted, updates)
		if err != nil {
			return err
		}
		if !changed {
			return errLostRace
		}

		completed, err = s.orderRepo.FindByOrderID(ctx, tx, order.OrderID)
		if err != nil {
			return err
		}

		page, created, err = s.fulfillment.Provision(ctx, tx, completed)
		return err
	})

	if errors.Is(err, errLostRace) {
		return s.reload(ctx, t)
	}

	if err != nil {
		if errors.Is(err, apperr.ErrFulfillmentFailed) {
			s.logger.Error("fulfillment failed, order kept pending",
				"order_id", order.OrderID, "source", t.Source, "error", err)
			if recErr := s.orderRepo.RecordFulfillmentFailure(ctx, order.OrderID, err); recErr != nil {
				s.logger.Error("record fulfillment failure", "order_id", order.OrderID, "error", recErr)
			}
		}
		return nil, fmt.Errorf("complete order %s: %w", order.OrderID, err)
	}

	s.logger.Info("order completed",
		"order_id", completed.OrderID,
		"short_id", completed.ShortID,
		"source", t.Source,
		"page_created", created,
	)

	if created {
		s.fulfillment.Notify(completed, page)
	}

	return &TransitionResult{Order: completed, Page: page, Applied: true}, nil
}

func (s *orderServiceImpl) terminate(ctx context.Context, order *model.Order, t Transition) (*TransitionResult, error) {
	changed, err := s.orderRepo.TransitionStatus(ctx, nil, order.OrderID,
		model.OrderStatusPending, t.Status, settlementUpdates(t))
	if err != nil {
		return nil, fmt.Errorf("mark order %s %s: %w", order.OrderID, t.Status, err)
	}
	if !changed {
		return s.reload(ctx, t)
	}

	updated, err := s.orderRepo.FindByOrderID(ctx, nil, order.OrderID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order closed without payment",
		"order_id", order.OrderID, "status", t.Status, "source", t.Source)

	return &TransitionResult{Order: updated, Applied: true}, nil
}

// reload handles a lost compare-and-swap: someone else moved the order out of
// pending, so the proposal is judged against the fresh terminal state.
func (s *orderServiceImpl) reload(ctx context.Context, t Transition) (*TransitionResult, error) {
	order, err := s.orderRepo.FindByOrderID(ctx, nil, t.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.Terminal() {
		return nil, fmt.Errorf("order %s still %s after lost update: %w", t.OrderID, order.Status, apperr.ErrStoreUnavailable)
	}
	return s.noop(order, t), nil
}

func settlementUpdates(t Transition) map[string]interface{} {
	updates := map[string]interface{}{}
	if t.PaymentID != "" {
		updates["payment_id"] = t.PaymentID
	}
	if t.Amount != nil {
		updates["amount"] = *t.Amount
	}
	if t.Currency != "" {
		updates["currency"] = model.NormalizeCurrency(t.Currency)
	}
	if t.Provider != "" {
		updates["provider"] = t.Provider
	}
	if len(t.Raw) > 0 {
		updates["payment_response"] = datatypes.JSON(t.Raw)
	}
	return updates
}

// newOrderID is also the PayTR merchant_oid, which must be alphanumeric.
func newOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
