package handler

import (
	"net/http"
	"strings"

	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/Eursukkul/studio-ledger/internal/middleware"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/labstack/echo/v4"
)

const HeaderSessionID = "X-Session-ID"

type CartHandler struct {
	svc service.CartService
}

func NewCartHandler(svc service.CartService) *CartHandler {
	return &CartHandler{svc: svc}
}

func (h *CartHandler) RegisterRoutes(e *echo.Echo, g Guards) {
	e.GET("/cart", h.GetCart, g.Optional)
	e.POST("/cart/items", h.AddItem, g.Optional)
	e.PATCH("/cart/items/:packageId", h.UpdateItem, g.Optional)
	e.DELETE("/cart/items/:packageId", h.RemoveItem, g.Optional)
	e.POST("/cart/merge", h.Merge, g.Member)
}

// cartSession prefers the signed-in member's cart over the anonymous header.
func cartSession(c echo.Context) (string, error) {
	if id, ok := middleware.UserID(c); ok {
		return service.UserSessionKey(id), nil
	}
	session := strings.TrimSpace(c.Request().Header.Get(HeaderSessionID))
	if session == "" || len(session) > 64 {
		return "", badRequest(HeaderSessionID + " header is required")
	}
	if service.IsMemberSession(session) {
		return "", toHTTPError(service.ErrReservedSession)
	}
	return session, nil
}

func (h *CartHandler) GetCart(c echo.Context) error {
	session, err := cartSession(c)
	if err != nil {
		return err
	}
	view, err := h.svc.GetCart(c.Request().Context(), session)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CartHandler) AddItem(c echo.Context) error {
	session, err := cartSession(c)
	if err != nil {
		return err
	}
	var req dto.AddCartItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	view, err := h.svc.AddItem(c.Request().Context(), session, req.PackageID, req.Quantity)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	session, err := cartSession(c)
	if err != nil {
		return err
	}
	packageID, err := parseID(c, "packageId")
	if err != nil {
		return err
	}
	var req dto.UpdateCartItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	view, err := h.svc.UpdateQuantity(c.Request().Context(), session, packageID, req.Quantity)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	session, err := cartSession(c)
	if err != nil {
		return err
	}
	packageID, err := parseID(c, "packageId")
	if err != nil {
		return err
	}
	view, err := h.svc.RemoveItem(c.Request().Context(), session, packageID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CartHandler) Merge(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.MergeCartRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if service.IsMemberSession(req.SessionID) && req.SessionID != service.UserSessionKey(userID) {
		return toHTTPError(service.ErrReservedSession)
	}
	view, err := h.svc.MergeCart(c.Request().Context(), req.SessionID, userID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}
