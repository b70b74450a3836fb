package router

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/adapter/api/handler"
	"visaconnect/internal/adapter/api/middleware"
	"visaconnect/internal/domain/entity"
)

func SetupVisaRequestRouter(v1 *echo.Group, authMiddleware *middleware.AuthMiddleware) {
	visaRequestHandler := handler.GetVisaRequestHandler()
	proposalHandler := handler.GetProposalHandler()

	requests := v1.Group("/visa-requests")
	requests.Use(authMiddleware.Authenticate)
	requests.Use(middleware.RequireProfile)

	requests.POST("", visaRequestHandler.Create, middleware.RequireRole(entity.RoleClient))
	requests.GET("", visaRequestHandler.ListMine)
	requests.GET("/open", visaRequestHandler.ListOpen, middleware.RequireRole(entity.RoleAgent, entity.RoleAdmin))
	requests.GET("/:id", visaRequestHandler.Get)
	requests.GET("/:id/proposals", proposalHandler.ListForVisaRequest)
}
