package handler

import (
	"errors"
	"net/http"

	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/labstack/echo/v4"
)

type DiscountHandler struct {
	svc service.DiscountService
}

func NewDiscountHandler(svc service.DiscountService) *DiscountHandler {
	return &DiscountHandler{svc: svc}
}

func (h *DiscountHandler) RegisterRoutes(e *echo.Echo, g Guards) {
	e.POST("/discount/validate", h.Validate, g.Member)

	e.POST("/admin/discount-codes", h.CreateCode, g.Admin)
	e.GET("/admin/discount-codes", h.ListCodes, g.Admin)
	e.POST("/admin/discount-codes/:id/deactivate", h.DeactivateCode, g.Admin)
}

// Validate answers 200 for rejected codes so the checkout form can show the
// reason inline.
func (h *DiscountHandler) Validate(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ValidateDiscountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	v, err := h.svc.Validate(c.Request().Context(), req.Code, req.PackageIDs, userID)
	if err != nil {
		var de *service.DomainError
		if errors.As(err, &de) && de.Kind == service.KindValidation {
			return c.JSON(http.StatusOK, dto.DiscountValidationResponse{Valid: false, Error: de.Message, ErrorCode: de.Code})
		}
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.DiscountValidationResponse{Valid: true, Code: v.Code, Percentage: v.Percentage})
}

func (h *DiscountHandler) CreateCode(c echo.Context) error {
	var req dto.CreateDiscountCodeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	code, err := h.svc.CreateDiscountCode(c.Request().Context(), service.CreateDiscountInput{
		Code:         req.Code,
		Percentage:   req.Percentage,
		MaxUses:      req.MaxUses,
		ValidFrom:    req.ValidFrom,
		ValidUntil:   req.ValidUntil,
		ApplicableTo: req.ApplicableTo,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, dto.ToDiscountCodeResponse(code))
}

func (h *DiscountHandler) ListCodes(c echo.Context) error {
	codes, err := h.svc.ListDiscountCodes(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	out := make([]dto.DiscountCodeResponse, len(codes))
	for i := range codes {
		out[i] = dto.ToDiscountCodeResponse(&codes[i])
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DiscountHandler) DeactivateCode(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateDiscountCode(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
