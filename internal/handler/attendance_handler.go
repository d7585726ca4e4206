package handler

import (
	"net/http"

	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/labstack/echo/v4"
)

type AttendanceHandler struct {
	svc service.AttendanceService
}

func NewAttendanceHandler(svc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{svc: svc}
}

func (h *AttendanceHandler) RegisterRoutes(e *echo.Echo, g Guards) {
	e.POST("/admin/attendance/scan", h.Scan, g.Admin)
	e.POST("/admin/attendance/:reservationId", h.Manual, g.Admin)
	e.GET("/admin/classes/:id/attendance", h.Summary, g.Admin)
}

func (h *AttendanceHandler) Scan(c echo.Context) error {
	adminID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ScanAttendanceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	result, err := h.svc.CheckIn(c.Request().Context(), req.QRCode, req.ClassID, adminID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.CheckInResponse{
		ReservationID: result.Reservation.ID,
		ClassID:       result.Reservation.ClassID,
		UserID:        result.User.ID,
		Name:          result.User.Name,
		Email:         result.User.Email,
		CheckedInAt:   result.Reservation.CheckedInAt,
	})
}

// Manual sets or clears the check-in flag; clearing is the undo path.
func (h *AttendanceHandler) Manual(c echo.Context) error {
	adminID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "reservationId")
	if err != nil {
		return err
	}
	var req dto.ManualAttendanceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.svc.ManualCheckIn(c.Request().Context(), id, adminID, *req.CheckedIn)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToReservationResponse(res))
}

func (h *AttendanceHandler) Summary(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	s, err := h.svc.ClassAttendance(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.AttendanceSummaryResponse{
		ClassID:   s.ClassID,
		Confirmed: s.Confirmed,
		Guests:    s.Guests,
		CheckedIn: s.CheckedIn,
		Roster:    dto.ToReservationList(s.Roster),
	})
}
