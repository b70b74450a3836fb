package handler

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/usecase"
	"visaconnect/pkg/response"
)

type DashboardHandler struct {
	dashboardUseCase *usecase.DashboardUseCase
}

func NewDashboardHandler(dashboardUseCase *usecase.DashboardUseCase) *DashboardHandler {
	return &DashboardHandler{
		dashboardUseCase: dashboardUseCase,
	}
}

func (h *DashboardHandler) Stats(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	stats, err := h.dashboardUseCase.Stats(c.Request().Context(), actor)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, stats)
}
