package router

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/adapter/api/handler"
	"visaconnect/internal/adapter/api/middleware"
	"visaconnect/internal/domain/entity"
	"visaconnect/internal/infrastructure/ratelimit"
)

func SetupCaseRouter(v1 *echo.Group, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	caseHandler := handler.GetCaseHandler()

	cases := v1.Group("/cases")
	cases.Use(authMiddleware.Authenticate)
	cases.Use(middleware.RequireProfile)

	cases.GET("", caseHandler.ListMine)
	cases.GET("/:id", caseHandler.Get)
	cases.POST("/:id/notes", caseHandler.AddNote)
	cases.POST("/:id/documents", caseHandler.UploadDocument,
		middleware.ActionRateLimit(limiter, ratelimit.ActionUpload))
	cases.PUT("/:id/status", caseHandler.SetStatus, middleware.AdminOnly)

	milestones := cases.Group("/:id/milestones/:index")
	milestones.Use(middleware.ActionRateLimit(limiter, ratelimit.ActionMilestone))

	milestones.PUT("", caseHandler.UpdateMilestone, middleware.RequireRole(entity.RoleAgent))
	milestones.PUT("/approve", caseHandler.ApproveMilestone, middleware.RequireRole(entity.RoleClient))
	milestones.PUT("/reject", caseHandler.RejectMilestone, middleware.RequireRole(entity.RoleClient))
}
