package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"visaconnect/internal/domain/repository"
	"visaconnect/internal/domain/service"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/logger"
)

const (
	ContextUID  = "uid"
	ContextRole = "role"
)

type AuthMiddleware struct {
	verifier service.TokenVerifier
	userRepo repository.UserRepository
}

func NewAuthMiddleware(verifier service.TokenVerifier, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		userRepo: userRepo,
	}
}

// Authenticate verifies the bearer token and stores the uid and the profile
// role in the context. A user without a profile gets an empty role and can
// only reach the profile routes.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		idToken, err := bearerToken(c)
		if err != nil {
			return err
		}

		// Verify the token
		uid, err := m.verifier.VerifyToken(c.Request().Context(), idToken)
		if err != nil {
			logger.Debug("Token rejected for %s: %v", c.Request().URL.Path, err)
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		role := ""
		user, err := m.userRepo.GetByID(c.Request().Context(), uid)
		switch {
		case err == nil:
			role = user.Role
		case !errors.Is(err, errors.CodeNotFound):
			logger.Error("Failed to load profile of %s: %v", uid, err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load user profile")
		}

		c.Set(ContextUID, uid)
		c.Set(ContextRole, role)

		return next(c)
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// a websocket handshake, so upgrades may pass the token as a query parameter.
func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if c.IsWebSocket() {
			if token := c.QueryParam("token"); token != "" {
				return token, nil
			}
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
	}
	return parts[1], nil
}
