package handlers

import (
	"estate-commission/internal/adapters/http/middleware"
	"estate-commission/internal/core/services"
	"estate-commission/internal/pkg/pagination"
	"estate-commission/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles login account endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers handles listing all users (Admin only)
// @Summary List all users
// @Description Get a paginated list of all users (Admin only)
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	params, page := pageParams(c)
	users, total, err := h.userService.ListUsers(c.Context(), middleware.Actor(c), page)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Users retrieved successfully", pagination.NewResponse(users, params, total))
}

// UpdateUser handles updating a user (Admin only)
// @Summary Update user
// @Description Change a user's email or deactivate the account (Admin only)
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body services.UpdateUserByAdminInput true "Update data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req services.UpdateUserByAdminInput
	if err := parseBody(c, &req); err != nil {
		return response.FromError(c, err)
	}

	user, err := h.userService.UpdateUserByAdmin(c.Context(), middleware.Actor(c), id, &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "User updated successfully", user)
}

// ChangePassword handles changing own password
// @Summary Change password
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.ChangePasswordInput true "Password data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /users/me/password [put]
func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	var req services.ChangePasswordInput
	if err := parseBody(c, &req); err != nil {
		return response.FromError(c, err)
	}

	if err := h.userService.ChangePassword(c.Context(), middleware.Actor(c), &req); err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Password changed successfully", nil)
}
