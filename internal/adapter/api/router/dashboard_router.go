package router

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/adapter/api/handler"
	"visaconnect/internal/adapter/api/middleware"
)

func SetupDashboardRouter(v1 *echo.Group, authMiddleware *middleware.AuthMiddleware) {
	dashboardHandler := handler.GetDashboardHandler()

	dashboard := v1.Group("/dashboard")
	dashboard.Use(authMiddleware.Authenticate)
	dashboard.Use(middleware.RequireProfile)

	dashboard.GET("/stats", dashboardHandler.Stats)
}
