package handler

import (
	"github.com/labstack/echo/v4"

	"visaconnect/internal/usecase"
	"visaconnect/pkg/response"
	"visaconnect/pkg/utils"
)

type NotificationHandler struct {
	notificationUseCase *usecase.NotificationUseCase
}

func NewNotificationHandler(notificationUseCase *usecase.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	p := utils.GetPaginationParams(c)
	unreadOnly := c.QueryParam("unread") == "true"
	notifications, total, err := h.notificationUseCase.List(c.Request().Context(), actor, unreadOnly, p.PageSize, p.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, notifications, total, p.Page, p.PageSize)
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	notification, err := h.notificationUseCase.MarkRead(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, notification)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	count, err := h.notificationUseCase.MarkAllRead(c.Request().Context(), actor)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"marked": count,
	})
}

func (h *NotificationHandler) CountUnread(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	count, err := h.notificationUseCase.CountUnread(c.Request().Context(), actor)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"unread": count,
	})
}
