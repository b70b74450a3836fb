package router

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/adapter/api/handler"
	"visaconnect/internal/adapter/api/middleware"
	"visaconnect/internal/domain/entity"
)

func SetupProposalRouter(v1 *echo.Group, authMiddleware *middleware.AuthMiddleware) {
	proposalHandler := handler.GetProposalHandler()

	proposals := v1.Group("/proposals")
	proposals.Use(authMiddleware.Authenticate)
	proposals.Use(middleware.RequireProfile)

	proposals.POST("", proposalHandler.Create, middleware.RequireRole(entity.RoleAgent))
	proposals.GET("/mine", proposalHandler.ListMine)
	proposals.GET("/:id", proposalHandler.Get)
	proposals.PUT("/:id/reject", proposalHandler.Reject, middleware.RequireRole(entity.RoleClient))
	proposals.PUT("/:id/withdraw", proposalHandler.Withdraw, middleware.RequireRole(entity.RoleAgent))
}
