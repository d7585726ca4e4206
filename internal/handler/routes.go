package handler

import (
	"github.com/Eursukkul/studio-ledger/internal/middleware"
	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/labstack/echo/v4"
)

// Guards are attached per route rather than per group so unknown paths
// still answer 404 instead of 401.
type Guards struct {
	Member   echo.MiddlewareFunc
	Optional echo.MiddlewareFunc
	Admin    echo.MiddlewareFunc
}

func NewGuards(secret string) Guards {
	auth := middleware.JWTAuth(secret)
	admin := middleware.RequireRole(models.RoleAdmin)
	return Guards{
		Member:   auth,
		Optional: middleware.OptionalJWT(secret),
		Admin: func(next echo.HandlerFunc) echo.HandlerFunc {
			return auth(admin(next))
		},
	}
}
