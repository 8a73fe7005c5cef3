package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/dto"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/service"
)

type OrderHandler struct {
	orderService     service.OrderService
	checkout         service.CheckoutService
	reconciler       service.Reconciler
	fulfillment      service.FulfillmentService
	baseUrl          string
	reconcileTimeout time.Duration
	renderTimeout    time.Duration
	logger           *slog.Logger
}

func NewOrderHandler(
	orderService service.OrderService,
	checkout service.CheckoutService,
	reconciler service.Reconciler,
	fulfillment service.FulfillmentService,
	baseUrl string,
	reconcileTimeout time.Duration,
	renderTimeout time.Duration,
	logger *slog.Logger,
) *OrderHandler {
	return &OrderHandler{
		orderService:     orderService,
		checkout:         checkout,
		reconciler:       reconciler,
		fulfillment:      fulfillment,
		baseUrl:          strings.TrimRight(baseUrl, "/"),
		reconcileTimeout: reconcileTimeout,
		renderTimeout:    renderTimeout,
		logger:           logger,
	}
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("decode order: %w", apperr.ErrInvalidRequest)
	}

	res, err := h.checkout.StartCheckout(c.Request().Context(), &req, c.RealIP())
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	return c.JSON(http.StatusCreated, dto.CreateOrderResponse{
		OrderID:      res.Order.OrderID,
		ShortID:      res.Order.ShortID,
		Status:       string(res.Order.Status),
		PaymentToken: res.Token.Token,
		IframeURL:    res.Token.IframeURL,
	})
}

// OrderStatus backs the status page. A pending order is reconciled on the
// spot so a lost webhook does not leave the buyer waiting for the poller.
func (h *OrderHandler) OrderStatus(c echo.Context) error {
	ctx := c.Request().Context()
	orderID := c.Param("orderID")

	order, err := h.orderService.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status == model.OrderStatusPending && h.reconciler != nil {
		rctx, cancel := context.WithTimeout(ctx, h.reconcileTimeout)
		res, err := h.reconciler.ReconcileOrder(rctx, orderID)
		cancel()

		if err != nil {
			h.logger.Warn("on-demand reconcile failed", "order_id", orderID, "error", err)
		} else {
			order = res.Order
		}
	}

	return c.JSON(http.StatusOK, h.statusResponse(order))
}

func (h *OrderHandler) PersonalPage(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.renderTimeout)
	defer cancel()

	page, err := h.fulfillment.LivePage(ctx, c.Param("shortID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.PersonalPageResponse{
		ShortID:       page.ShortID,
		TemplateID:    page.TemplateID,
		RecipientName: page.RecipientName,
		SenderName:    page.SenderName,
		Message:       page.Message,
		SpecialDate:   page.SpecialDate,
		ExpiresAt:     page.ExpiresAt,
		DesignStyle:   page.DesignStyle,
		BgAudioURL:    page.BgAudioURL,
		TextFields:    []byte(page.TextFields),
	})
}

func (h *OrderHandler) statusResponse(order *model.Order) dto.OrderStatusResponse {
	res := dto.OrderStatusResponse{
		OrderID:     order.OrderID,
		ShortID:     order.ShortID,
		Status:      string(order.Status),
		Amount:      order.Amount.StringFixed(2),
		Currency:    order.Currency,
		PaymentID:   order.PaymentID,
		CompletedAt: order.CompletedAt,
	}
	if order.Status == model.OrderStatusCompleted {
		res.PageURL = h.baseUrl + "/m/" + order.ShortID
	}
	return res
}
