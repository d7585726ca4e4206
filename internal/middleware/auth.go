package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

var errMissingToken = errors.New("missing bearer token")

func unauthorized(msg string) error {
	return echo.NewHTTPError(http.StatusUnauthorized, dto.ErrorResponse{Error: msg, Code: "UNAUTHORIZED"})
}

// JWTAuth validates an HS256 bearer token and stores the numeric subject
// and role claim on the context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := authenticate(c, secret); err != nil {
				if errors.Is(err, errMissingToken) {
					return unauthorized(err.Error())
				}
				return unauthorized("invalid token")
			}
			return next(c)
		}
	}
}

// OptionalJWT authenticates when a bearer token is present and lets
// anonymous requests through. A malformed token is still rejected.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := authenticate(c, secret)
			if err != nil && !errors.Is(err, errMissingToken) {
				return unauthorized("invalid token")
			}
			return next(c)
		}
	}
}

func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[Role(c)] {
				return echo.NewHTTPError(http.StatusForbidden, dto.ErrorResponse{Error: "admin access required", Code: "FORBIDDEN"})
			}
			return next(c)
		}
	}
}

// UserID returns the authenticated member, or false for anonymous requests.
func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(ctxUserID).(uint)
	return id, ok && id > 0
}

func SetIdentity(c echo.Context, userID uint, role string) {
	c.Set(ctxUserID, userID)
	c.Set(ctxRole, role)
}

func Role(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}

func authenticate(c echo.Context, secret string) error {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return errMissingToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return errors.New("invalid token")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("invalid claims")
	}

	id, err := subjectID(claims["sub"])
	if err != nil {
		return err
	}
	role, _ := claims["role"].(string)
	if role != models.RoleAdmin {
		role = models.RoleUser
	}

	SetIdentity(c, id, role)
	return nil
}

// subjectID accepts both numeric and string subjects.
func subjectID(sub any) (uint, error) {
	switch v := sub.(type) {
	case float64:
		if v > 0 && v == float64(uint64(v)) {
			return uint(v), nil
		}
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err == nil && n > 0 {
			return uint(n), nil
		}
	}
	return 0, errors.New("invalid subject")
}
