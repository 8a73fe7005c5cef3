package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/config"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/signature"
)

const (
	SourceWebhook       = "webhook"
	SourcePaytrCallback = "paytr_callback"
	SourceReconcile     = "reconcile"
	SourceExpired       = "reconcile_expired"
	SourceCheckout      = "checkout"
)

type WebhookService interface {
	HandleWebhook(ctx context.Context, n *model.WebhookNotification) (*TransitionResult, error)
	HandlePaytrCallback(ctx context.Context, cb *model.PaytrCallback) (*TransitionResult, error)
}

type webhookServiceImpl struct {
	merchantID   string
	merchantKey  string
	merchantSalt string
	orderService OrderService
	logger       *slog.Logger
}

func NewWebhookService(paytrCfg *config.Paytr, orderService OrderService, logger *slog.Logger) WebhookService {
	return &webhookServiceImpl{
		merchantID:   paytrCfg.MerchantID,
		merchantKey:  paytrCfg.MerchantKey,
		merchantSalt: paytrCfg.MerchantSalt,
		orderService: orderService,
		logger:       logger,
	}
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, n *model.WebhookNotification) (*TransitionResult, error) {
	if n == nil || n.OrderID == "" || n.Status == "" || n.Token == "" {
		return nil, fmt.Errorf("webhook missing order_id, status or token: %w", apperr.ErrInvalidRequest)
	}

	err := signature.VerifyWebhook(n.Token, s.merchantID, n.OrderID, n.Status, n.PaymentID, s.merchantKey, s.merchantSalt)
	if err != nil {
		s.rejected(SourceWebhook, n.OrderID, err)
		return nil, fmt.Errorf("verify webhook token: %w", err)
	}

	status, ok := model.ParseProviderStatus(n.Status)
	if !ok {
		return nil, fmt.Errorf("unknown provider status %q: %w", n.Status, apperr.ErrInvalidRequest)
	}

	t := Transition{
		OrderID:   n.OrderID,
		Status:    status,
		PaymentID: n.PaymentID,
		Amount:    n.Amount,
		Currency:  n.Currency,
		Provider:  n.Provider,
		Source:    SourceWebhook,
	}

	if n.Amount != nil && n.Amount.IsNegative() {
		return nil, fmt.Errorf("webhook amount %s: %w", n.Amount, apperr.ErrInvalidRequest)
	}

	// the token is a credential and never reaches the store
	raw := *n
	raw.Token = ""
	if t.Raw, err = json.Marshal(raw); err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}

	// an authenticated delivery runs to a definite outcome even if the sender hangs up
	return s.orderService.ApplyTransition(context.WithoutCancel(ctx), t)
}

func (s *webhookServiceImpl) HandlePaytrCallback(ctx context.Context, cb *model.PaytrCallback) (*TransitionResult, error) {
	if cb == nil || cb.MerchantOID == "" || cb.Status == "" || cb.Hash == "" {
		return nil, fmt.Errorf("callback missing merchant_oid, status or hash: %w", apperr.ErrInvalidRequest)
	}

	err := signature.VerifyCallback(cb.Hash, cb.MerchantOID, cb.Status, cb.TotalAmount, s.merchantKey, s.merchantSalt)
	if err != nil {
		s.rejected(SourcePaytrCallback, cb.MerchantOID, err)
		return nil, fmt.Errorf("verify paytr callback hash: %w", err)
	}

	status, ok := model.ParseProviderStatus(cb.Status)
	if !ok {
		return nil, fmt.Errorf("unknown paytr status %q: %w", cb.Status, apperr.ErrInvalidRequest)
	}

	t := Transition{
		OrderID:  cb.MerchantOID,
		Status:   status,
		Currency: cb.Currency,
		Provider: "paytr",
		Source:   SourcePaytrCallback,
	}

	// total_amount is sent in kuruş
	if cb.TotalAmount != "" {
		minor, err := decimal.NewFromString(cb.TotalAmount)
		if err != nil {
			return nil, fmt.Errorf("paytr total_amount %q: %w", cb.TotalAmount, apperr.ErrInvalidRequest)
		}
		amount := minor.Shift(-2)
		t.Amount = &amount
	}

	if status != model.OrderStatusCompleted {
		s.logger.Info("paytr reported unsuccessful payment",
			"order_id", cb.MerchantOID,
			"status", cb.Status,
			"reason", cb.ErrorMessage(),
		)
	}

	raw := *cb
	raw.Hash = ""
	if t.Raw, err = json.Marshal(raw); err != nil {
		return nil, fmt.Errorf("encode paytr callback payload: %w", err)
	}

	return s.orderService.ApplyTransition(context.WithoutCancel(ctx), t)
}

func (s *webhookServiceImpl) rejected(source, orderID string, err error) {
	level := slog.LevelWarn
	if !errors.Is(err, apperr.ErrAuthenticationFailed) {
		level = slog.LevelInfo
	}
	s.logger.Log(context.Background(), level, "payment notification rejected",
		"source", source,
		"order_id", orderID,
		"potential_attack", errors.Is(err, apperr.ErrAuthenticationFailed),
		"error", err,
	)
}
