package router

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/adapter/api/middleware"
	"visaconnect/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter, environment string) {
	v1 := e.Group("/v1")

	SetupUserRouter(v1, authMiddleware)
	SetupEscrowRouter(v1, authMiddleware, limiter)
	SetupCaseRouter(v1, authMiddleware, limiter)
	SetupVisaRequestRouter(v1, authMiddleware)
	SetupProposalRouter(v1, authMiddleware)
	SetupNotificationRouter(v1, authMiddleware)
	SetupDashboardRouter(v1, authMiddleware)
	SetupWebSocketRouter(v1, authMiddleware)
	SetupDevRouter(v1, environment)
	SetupHealthRouter(e)
}
