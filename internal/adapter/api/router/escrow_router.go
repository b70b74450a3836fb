package router

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/adapter/api/handler"
	"visaconnect/internal/adapter/api/middleware"
	"visaconnect/internal/domain/entity"
	"visaconnect/internal/infrastructure/ratelimit"
)

func SetupEscrowRouter(v1 *echo.Group, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	escrowHandler := handler.GetEscrowHandler()

	escrow := v1.Group("/escrow")
	escrow.Use(authMiddleware.Authenticate)
	escrow.Use(middleware.RequireProfile)

	escrow.GET("", escrowHandler.ListMine)
	escrow.GET("/:id", escrowHandler.Get)
	escrow.GET("/:id/status", escrowHandler.Status)

	escrow.POST("/fund", escrowHandler.Fund,
		middleware.RequireRole(entity.RoleClient),
		middleware.ActionRateLimit(limiter, ratelimit.ActionFund))

	mutate := middleware.ActionRateLimit(limiter, ratelimit.ActionEscrow)
	escrow.POST("/:id/release", escrowHandler.Release, mutate)
	escrow.POST("/:id/hold", escrowHandler.Hold, mutate)
	escrow.POST("/:id/dispute/escalate", escrowHandler.EscalateDispute, mutate)
	escrow.POST("/:id/dispute/resolve", escrowHandler.ResolveDispute, middleware.AdminOnly, mutate)
	escrow.POST("/:id/refund", escrowHandler.Refund,
		middleware.RequireRole(entity.RoleAgent, entity.RoleAdmin), mutate)
	escrow.POST("/:id/cancel", escrowHandler.Cancel,
		middleware.RequireRole(entity.RoleClient, entity.RoleAdmin), mutate)
}
