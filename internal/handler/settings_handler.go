package handler

import (
	"net/http"

	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/labstack/echo/v4"
)

type SettingsHandler struct {
	svc service.SettingsService
}

func NewSettingsHandler(svc service.SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

func (h *SettingsHandler) RegisterRoutes(e *echo.Echo, g Guards) {
	e.GET("/admin/settings", h.Get, g.Admin)
	e.PUT("/admin/settings", h.Update, g.Admin)
}

func (h *SettingsHandler) Get(c echo.Context) error {
	s, err := h.svc.Get(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) Update(c echo.Context) error {
	var req dto.UpdateSettingsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	s, err := h.svc.Update(c.Request().Context(), service.StudioSettings{
		CancellationCutoffHours: req.CancellationCutoffHours,
		DefaultClassCapacity:    req.DefaultClassCapacity,
		RefundWindowDays:        req.RefundWindowDays,
		RefundAllowPartial:      req.RefundAllowPartial,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, s)
}
