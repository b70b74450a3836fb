package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"visaconnect/internal/domain/entity"
)

// RequireProfile rejects callers that authenticated but never created a
// profile, so every use case sees a role.
func RequireProfile(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if role, _ := c.Get(ContextRole).(string); role == "" {
			return echo.NewHTTPError(http.StatusForbidden, "Create your profile first")
		}
		return next(c)
	}
}

// RequireRole lets through only the given roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ContextRole).(string)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}
			for _, r := range roles {
				if r == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "Your role cannot perform this action")
		}
	}
}

func AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return RequireRole(entity.RoleAdmin)(next)
}
