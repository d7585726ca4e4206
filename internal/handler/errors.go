package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/Eursukkul/studio-ledger/internal/middleware"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/labstack/echo/v4"
)

func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindPolicy, service.KindForbidden:
		return http.StatusForbidden
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// toHTTPError maps domain failures to their status; anything else is an
// internal error whose detail stays in the logs.
func toHTTPError(err error) error {
	var de *service.DomainError
	if errors.As(err, &de) {
		return echo.NewHTTPError(statusFor(de.Kind), dto.ErrorResponse{Error: de.Message, Code: de.Code}).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error", Code: "INTERNAL"}).SetInternal(err)
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, dto.ErrorResponse{Error: msg, Code: service.ErrInvalidInput.Code})
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid " + name)
	}
	return uint(id), nil
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body")
	}
	return c.Validate(req)
}

func currentUser(c echo.Context) (uint, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, dto.ErrorResponse{Error: "authentication required", Code: "UNAUTHORIZED"})
	}
	return id, nil
}
