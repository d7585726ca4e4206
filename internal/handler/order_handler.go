package handler

import (
	"net/http"

	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	svc service.OrderService
}

func NewOrderHandler(svc service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, g Guards) {
	e.POST("/orders", h.CreateOrder, g.Member)
	e.GET("/orders/me", h.ListMine, g.Member)
	e.GET("/orders/:id", h.GetOrder, g.Member)
	e.POST("/orders/:id/cancel", h.CancelOrder, g.Member)
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.svc.CreateOrderFromCart(c.Request().Context(), userID, service.CreateOrderInput{
		DiscountCode:  req.DiscountCode,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.OrderResultResponse{
		Order:    dto.ToOrderResponse(result.Order),
		Checkout: result.Checkout,
	})
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.svc.GetOrder(c.Request().Context(), userID, id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToOrderResponse(order))
}

func (h *OrderHandler) ListMine(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	orders, err := h.svc.ListUserOrders(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	out := make([]dto.OrderResponse, len(orders))
	for i := range orders {
		out[i] = dto.ToOrderResponse(&orders[i])
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.svc.CancelPendingOrder(c.Request().Context(), userID, id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToOrderResponse(order))
}
