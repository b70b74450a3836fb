package router

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/adapter/api/handler"
	"visaconnect/internal/adapter/api/middleware"
)

func SetupWebSocketRouter(v1 *echo.Group, authMiddleware *middleware.AuthMiddleware) {
	wsHandler := handler.GetWebSocketHandler()

	v1.GET("/ws", wsHandler.HandleWebSocket, authMiddleware.Authenticate, middleware.RequireProfile)
}
