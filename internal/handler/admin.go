package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/dto"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/service"
)

type AdminHandler struct {
	reconciler   service.Reconciler
	orderHandler *OrderHandler
}

func NewAdminHandler(reconciler service.Reconciler, orderHandler *OrderHandler) *AdminHandler {
	return &AdminHandler{
		reconciler:   reconciler,
		orderHandler: orderHandler,
	}
}

func (h *AdminHandler) Reconcile(c echo.Context) error {
	report, err := h.reconciler.RunOnce(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.ReconcileResponse{
		Checked:      report.Checked,
		Completed:    report.Completed,
		StillPending: report.StillPending,
		Repaired:     report.Repaired,
		Expired:      report.Expired,
		Errors:       report.Errors,
	})
}

func (h *AdminHandler) GetOrder(c echo.Context) error {
	order, err := h.orderHandler.orderService.GetOrder(c.Request().Context(), c.Param("orderID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.AdminOrderResponse{
		OrderStatusResponse: h.orderHandler.statusResponse(order),
		Provider:            order.Provider,
		TemplateID:          order.TemplateID,
		BuyerEmail:          order.BuyerEmail,
		FulfillmentAttempts: order.FulfillmentAttempts,
		LastError:           order.LastError,
		PaymentResponse:     []byte(order.PaymentResponse),
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	})
}
