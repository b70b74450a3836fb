package router

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/adapter/api/handler"
	"visaconnect/internal/adapter/api/middleware"
)

// SetupUserRouter leaves out RequireProfile: these are the routes a user
// without a profile uses to create one.
func SetupUserRouter(v1 *echo.Group, authMiddleware *middleware.AuthMiddleware) {
	userHandler := handler.GetUserHandler()

	users := v1.Group("/users")
	users.Use(authMiddleware.Authenticate)

	users.GET("/me", userHandler.GetProfile)
	users.POST("/me", userHandler.CreateProfile)
	users.PATCH("/me", userHandler.UpdateProfile)
}
