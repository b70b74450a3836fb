package router

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/adapter/api/handler"
)

func SetupDevRouter(v1 *echo.Group, environment string) {
	if environment != "development" {
		return
	}
	devTokenHandler := handler.GetDevTokenHandler()
	if devTokenHandler == nil {
		return
	}

	v1.POST("/dev/token", devTokenHandler.GenerateToken)
	v1.GET("/dev/token/:role", devTokenHandler.GenerateRoleToken)
}
