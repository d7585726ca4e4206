package handler

import (
	"net/http"
	"strings"

	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/labstack/echo/v4"
)

type RefundHandler struct {
	svc service.RefundService
}

func NewRefundHandler(svc service.RefundService) *RefundHandler {
	return &RefundHandler{svc: svc}
}

func (h *RefundHandler) RegisterRoutes(e *echo.Echo, g Guards) {
	e.POST("/refunds", h.RequestRefund, g.Member)
	e.GET("/refunds/me", h.ListMine, g.Member)

	e.POST("/admin/refunds", h.Adjudicate, g.Admin)
	e.GET("/admin/refunds", h.ListAll, g.Admin)
}

func (h *RefundHandler) RequestRefund(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateRefundRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	refund, err := h.svc.RequestRefund(c.Request().Context(), userID, req.PurchaseID, req.Reason)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, dto.ToRefundResponse(refund))
}

func (h *RefundHandler) ListMine(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	list, err := h.svc.ListUserRefunds(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToRefundList(list))
}

func (h *RefundHandler) Adjudicate(c echo.Context) error {
	adminID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AdjudicateRefundRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	refund, err := h.svc.Adjudicate(c.Request().Context(), adminID, service.AdjudicateInput{
		RefundID:     req.RefundID,
		Action:       service.RefundAction(req.Action),
		Notes:        req.Notes,
		CustomAmount: req.CustomAmount,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToRefundResponse(refund))
}

func (h *RefundHandler) ListAll(c echo.Context) error {
	var status *models.RefundStatus
	if s := strings.ToUpper(c.QueryParam("status")); s != "" {
		st := models.RefundStatus(s)
		switch st {
		case models.RefundPending, models.RefundProcessing, models.RefundRefunded, models.RefundRejected:
			status = &st
		default:
			return badRequest("unknown refund status")
		}
	}
	list, err := h.svc.ListRefunds(c.Request().Context(), status)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToRefundList(list))
}
