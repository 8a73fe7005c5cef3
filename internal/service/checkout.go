package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/client"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/dto"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"
)

type CheckoutResult struct {
	Order *model.Order
	Token *model.PaymentToken
}

// CheckoutService creates an order and opens the provider's payment iFrame
// for it.
type CheckoutService interface {
	StartCheckout(ctx context.Context, req *dto.CreateOrderRequest, clientIP string) (*CheckoutResult, error)
}

type checkoutServiceImpl struct {
	orderService OrderService
	paytrClient  client.PaytrClient
	logger       *slog.Logger
}

func NewCheckoutService(orderService OrderService, paytrClient client.PaytrClient, logger *slog.Logger) CheckoutService {
	return &checkoutServiceImpl{
		orderService: orderService,
		paytrClient:  paytrClient,
		logger:       logger,
	}
}

func (s *checkoutServiceImpl) StartCheckout(ctx context.Context, req *dto.CreateOrderRequest, clientIP string) (*CheckoutResult, error) {
	if req == nil {
		return nil, fmt.Errorf("checkout: %w", apperr.ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(req.BuyerEmail); err != nil {
		return nil, fmt.Errorf("buyer_email is required: %w", apperr.ErrInvalidRequest)
	}

	order, err := s.orderService.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	userName := strings.TrimSpace(req.SenderName)
	if userName == "" {
		userName = order.BuyerEmail
	}

	token, err := s.paytrClient.GetPaymentToken(ctx, &model.PaymentTokenRequest{
		MerchantOID: order.OrderID,
		Email:       order.BuyerEmail,
		UserName:    userName,
		UserAddress: "Türkiye",
		UserPhone:   "0000000000",
		UserIP:      clientIP,
		Amount:      order.Amount,
		Basket: []model.BasketItem{{
			Name:     "Gizli Mesaj - " + order.TemplateID,
			Price:    order.Amount,
			Quantity: 1,
		}},
	})
	if err != nil {
		s.logger.Error("payment token request failed, cancelling order",
			"order_id", order.OrderID, "error", err)

		// nobody can pay this order, so the poller should not chase it
		_, cancelErr := s.orderService.ApplyTransition(context.WithoutCancel(ctx), Transition{
			OrderID: order.OrderID,
			Status:  model.OrderStatusCancelled,
			Source:  SourceCheckout,
		})
		if cancelErr != nil {
			s.logger.Error("cancel order after token failure", "order_id", order.OrderID, "error", cancelErr)
		}
		return nil, fmt.Errorf("open payment for order %s: %w", order.OrderID, err)
	}

	s.logger.Info("checkout started", "order_id", order.OrderID, "short_id", order.ShortID)
	return &CheckoutResult{Order: order, Token: token}, nil
}
