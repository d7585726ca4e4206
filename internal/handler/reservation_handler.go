package handler

import (
	"context"
	"net/http"

	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/labstack/echo/v4"
)

type PurchaseLister interface {
	ListPurchases(ctx context.Context, userID uint) ([]models.Purchase, error)
}

type ReservationHandler struct {
	svc       service.ReservationService
	purchases PurchaseLister
}

func NewReservationHandler(svc service.ReservationService, purchases PurchaseLister) *ReservationHandler {
	return &ReservationHandler{svc: svc, purchases: purchases}
}

func (h *ReservationHandler) RegisterRoutes(e *echo.Echo, g Guards) {
	e.POST("/reservations", h.CreateReservation, g.Member)
	e.DELETE("/reservations/:id", h.CancelReservation, g.Member)
	e.GET("/reservations/me", h.ListMine, g.Member)
	e.GET("/purchases/me", h.ListPurchases, g.Member)
	e.POST("/invitations/:token/respond", h.RespondToInvitation)
	e.GET("/admin/classes/:id/roster", h.ClassRoster, g.Admin)
}

func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateReservationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	in := service.CreateReservationInput{ClassID: req.ClassID, PurchaseID: req.PurchaseID}
	if req.Guest != nil {
		in.Guest = &service.GuestInput{Name: req.Guest.Name, Email: req.Guest.Email}
	}
	result, err := h.svc.CreateReservation(c.Request().Context(), userID, in)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationResult(result))
}

func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.CancelReservation(c.Request().Context(), id, userID); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	upcoming := c.QueryParam("upcoming") == "true"
	list, err := h.svc.ListUserReservations(c.Request().Context(), userID, upcoming)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationList(list))
}

func (h *ReservationHandler) ListPurchases(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	list, err := h.purchases.ListPurchases(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	out := make([]dto.PurchaseResponse, len(list))
	for i := range list {
		out[i] = dto.ToPurchaseResponse(&list[i])
	}
	return c.JSON(http.StatusOK, out)
}

// RespondToInvitation is unauthenticated; the token in the path is the
// guest's credential.
func (h *ReservationHandler) RespondToInvitation(c echo.Context) error {
	var req dto.RespondInvitationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.svc.RespondToInvitation(c.Request().Context(), c.Param("token"), *req.Accept)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationResponse(res))
}

func (h *ReservationHandler) ClassRoster(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	list, err := h.svc.ListClassRoster(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationList(list))
}
