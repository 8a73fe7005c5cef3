package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/service"
)

const defaultFailMessage = "Ödeme işlemi başarısız oldu"

type PaymentHandler struct {
	webhookService service.WebhookService
	orderService   service.OrderService
	baseUrl        string
	logger         *slog.Logger
}

func NewPaymentHandler(
	webhookService service.WebhookService,
	orderService service.OrderService,
	baseUrl string,
	logger *slog.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		webhookService: webhookService,
		orderService:   orderService,
		baseUrl:        strings.TrimRight(baseUrl, "/"),
		logger:         logger,
	}
}

// Webhook answers 200 only once the notification has been durably applied or
// recognised as a duplicate. Any other status makes the provider redeliver.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	var n model.WebhookNotification
	if err := c.Bind(&n); err != nil {
		return fmt.Errorf("decode webhook: %w", apperr.ErrInvalidRequest)
	}

	res, err := h.webhookService.HandleWebhook(c.Request().Context(), &n)
	if err != nil {
		return fmt.Errorf("handle webhook: %w", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  res.Order.Status,
	})
}

// PaytrCallback is PayTR's server-to-server notification. PayTR retries until
// it reads the literal body "OK".
func (h *PaymentHandler) PaytrCallback(c echo.Context) error {
	var cb model.PaytrCallback
	if err := c.Bind(&cb); err != nil {
		return fmt.Errorf("decode paytr callback: %w", apperr.ErrInvalidRequest)
	}

	if _, err := h.webhookService.HandlePaytrCallback(c.Request().Context(), &cb); err != nil {
		return fmt.Errorf("handle paytr callback: %w", err)
	}

	return c.String(http.StatusOK, "OK")
}

// PaytrReturn is the browser landing after checkout. It only reads state:
// query parameters here are unauthenticated.
func (h *PaymentHandler) PaytrReturn(c echo.Context) error {
	orderID := c.QueryParam("merchant_oid")
	if orderID == "" {
		return h.redirectFail(c, "Sipariş bulunamadı", "")
	}

	order, err := h.orderService.GetOrder(c.Request().Context(), orderID)
	if err != nil {
		if !errors.Is(err, apperr.ErrOrderNotFound) {
			h.logger.Error("load order for paytr return", "order_id", orderID, "error", err)
		}
		return h.redirectFail(c, "Sipariş bulunamadı", "")
	}

	switch {
	case order.Status == model.OrderStatusCompleted,
		order.Status == model.OrderStatusPending && c.QueryParam("status") == model.ProviderStatusSuccess:
		// a pending order's success page polls the status endpoint
		return c.Redirect(http.StatusSeeOther, h.baseUrl+"/success/"+url.PathEscape(order.ShortID))
	default:
		return h.redirectFail(c, "Ödeme başarısız", "")
	}
}

// Fail turns a provider failure post-back into a redirect to the error page.
// It never answers with an error status.
func (h *PaymentHandler) Fail(c echo.Context) error {
	message := firstValue(c, "message", "RESPONSE_DATA", "failed_reason_msg")
	code := firstValue(c, "code", "RESPONSE_CODE", "failed_reason_code")

	h.logger.Info("payment failed redirect", "message", message, "code", code)

	if message == "" {
		message = defaultFailMessage
	}
	return h.redirectFail(c, message, code)
}

func (h *PaymentHandler) redirectFail(c echo.Context, message, code string) error {
	if code == "" {
		code = "0"
	}

	target := fmt.Sprintf("%s/payment/error?reason=payment_failed&message=%s&code=%s",
		h.baseUrl, url.QueryEscape(message), url.QueryEscape(code))
	return c.Redirect(http.StatusSeeOther, target)
}

func firstValue(c echo.Context, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(c.FormValue(name)); v != "" {
			return v
		}
	}
	return ""
}
