package handlers

import (
	"estate-commission/internal/adapters/http/middleware"
	"estate-commission/internal/core/services"
	"estate-commission/internal/pkg/pagination"
	"estate-commission/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// NotificationHandler handles the caller's notification inbox
type NotificationHandler struct {
	notificationService *services.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// ListNotifications lists the caller's unexpired notifications
func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, page := pageParams(c)
	items, total, err := h.notificationService.List(c.Context(), middleware.Actor(c), page)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Notifications retrieved successfully", pagination.NewResponse(items, params, total))
}

// MarkRead marks one notification as read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.notificationService.MarkRead(c.Context(), middleware.Actor(c), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Notification marked as read", nil)
}
