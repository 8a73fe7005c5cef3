package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/client"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/repository"

	"gorm.io/gorm"
)

const notifyTimeout = 30 * time.Second

type FulfillmentService interface {
	// Provision creates the PersonalPage for order inside tx. It is safe to call
	// more than once: an existing page is returned with created=false.
	Provision(ctx context.Context, tx *gorm.DB, order *model.Order) (page *model.PersonalPage, created bool, err error)
	// Repair provisions the page of an order that is already completed.
	Repair(ctx context.Context, order *model.Order) (created bool, err error)
	// Notify dispatches the confirmation email without blocking the caller.
	Notify(order *model.Order, page *model.PersonalPage)
	// LivePage returns the page for shortID if it is active and not expired.
	LivePage(ctx context.Context, shortID string) (*model.PersonalPage, error)
}

type fulfillmentServiceImpl struct {
	db             *gorm.DB
	pageRepo       repository.PersonalPageRepository
	emailClient    client.EmailClient
	serviceBaseUrl string
	logger         *slog.Logger
}

func NewFulfillmentService(
	db *gorm.DB,
	pageRepo repository.PersonalPageRepository,
	emailClient client.EmailClient,
	serviceBaseUrl string,
	logger *slog.Logger,
) FulfillmentService {
	return &fulfillmentServiceImpl{
		db:             db,
		pageRepo:       pageRepo,
		emailClient:    emailClient,
		serviceBaseUrl: strings.TrimRight(serviceBaseUrl, "/"),
		logger:         logger,
	}
}

func fulfillmentError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperr.ErrFulfillmentFailed, err)
}

func (s *fulfillmentServiceImpl) Provision(ctx context.Context, tx *gorm.DB, order *model.Order) (*model.PersonalPage, bool, error) {
	if order.ShortID == "" {
		return nil, false, fulfillmentError("provision", fmt.Errorf("order %s has no short id", order.OrderID))
	}

	existing, err := s.pageRepo.FindByShortID(ctx, tx, order.ShortID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrPageNotFound) {
		return nil, false, fulfillmentError("check existing page", err)
	}

	page := snapshotPage(order)
	created, err := s.pageRepo.CreateIfAbsent(ctx, tx, page)
	if err != nil {
		return nil, false, fulfillmentError("create page", err)
	}

	if !created {
		// a concurrent provisioner got there first
		existing, err := s.pageRepo.FindByShortID(ctx, tx, order.ShortID)
		if err != nil {
			return nil, false, fulfillmentError("load concurrently created page", err)
		}
		return existing, false, nil
	}

	return page, true, nil
}

func (s *fulfillmentServiceImpl) Repair(ctx context.Context, order *model.Order) (bool, error) {
	if order.Status != model.OrderStatusCompleted {
		return false, nil
	}

	var (
		page    *model.PersonalPage
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		page, created, err = s.Provision(ctx, tx, order)
		return err
	})
	if err != nil {
		return false, err
	}

	if created {
		s.logger.Warn("repaired completed order without personal page",
			"order_id", order.OrderID, "short_id", order.ShortID)
		s.Notify(order, page)
	}

	return created, nil
}

func (s *fulfillmentServiceImpl) Notify(order *model.Order, page *model.PersonalPage) {
	if s.emailClient == nil || order.BuyerEmail == "" {
		return
	}

	msg := client.PaymentSuccessEmail{
		To:              order.BuyerEmail,
		OrderID:         order.OrderID,
		Amount:          order.Amount.StringFixed(2),
		Currency:        order.Currency,
		PersonalPageURL: fmt.Sprintf("%s/m/%s", s.serviceBaseUrl, page.ShortID),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		err := s.emailClient.SendPaymentSuccess(ctx, msg)
		switch {
		case errors.Is(err, client.ErrEmailNotConfigured):
			s.logger.Debug("email not configured, skipping payment success email", "order_id", msg.OrderID)
		case err != nil:
			s.logger.Error("send payment success email", "order_id", msg.OrderID, "error", err)
		}
	}()
}

func (s *fulfillmentServiceImpl) LivePage(ctx context.Context, shortID string) (*model.PersonalPage, error) {
	if shortID == "" {
		return nil, fmt.Errorf("empty short id: %w", apperr.ErrInvalidRequest)
	}

	page, err := s.pageRepo.FindByShortID(ctx, nil, shortID)
	if err != nil {
		return nil, err
	}
	if !page.Live(time.Now()) {
		return nil, fmt.Errorf("page %s inactive or expired: %w", shortID, apperr.ErrPageNotFound)
	}
	return page, nil
}

func snapshotPage(order *model.Order) *model.PersonalPage {
	designStyle := order.DesignStyle
	if designStyle == "" {
		designStyle = "modern"
	}

	return &model.PersonalPage{
		ShortID:       order.ShortID,
		OrderID:       order.OrderID,
		TemplateID:    order.TemplateID,
		RecipientName: order.RecipientName,
		SenderName:    order.SenderName,
		Message:       order.Message,
		SpecialDate:   order.SpecialDate,
		ExpiresAt:     order.ExpiresAt,
		DesignStyle:   designStyle,
		BgAudioURL:    order.BgAudioURL,
		TextFields:    order.TextFields,
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
}
