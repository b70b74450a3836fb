package router

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/adapter/api/handler"
	"visaconnect/internal/adapter/api/middleware"
)

func SetupNotificationRouter(v1 *echo.Group, authMiddleware *middleware.AuthMiddleware) {
	notificationHandler := handler.GetNotificationHandler()

	notifications := v1.Group("/notifications")
	notifications.Use(authMiddleware.Authenticate)
	notifications.Use(middleware.RequireProfile)

	notifications.GET("", notificationHandler.List)
	notifications.GET("/unread-count", notificationHandler.CountUnread)
	notifications.PUT("/read-all", notificationHandler.MarkAllRead)
	notifications.PUT("/:id/read", notificationHandler.MarkRead)
}
