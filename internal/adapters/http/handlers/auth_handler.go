package handlers

import (
	"strings"
	"time"

	"estate-commission/internal/adapters/http/middleware"
	"estate-commission/internal/config"
	"estate-commission/internal/core/services"
	"estate-commission/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cfg:         cfg,
	}
}

// Login handles user login
// @Summary Login user
// @Description Authenticate user and return an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.LoginInput true "Login credentials"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req services.LoginInput
	if err := parseBody(c, &req); err != nil {
		return response.FromError(c, err)
	}
	req.Username = strings.TrimSpace(req.Username)

	result, err := h.authService.Login(c.Context(), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    result.AccessToken,
		Expires:  time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
		HTTPOnly: true,
		Secure:   h.cfg.IsProd(),
		SameSite: "Lax",
	})

	return response.Success(c, "Login successful", result)
}

// Logout clears the access token cookie
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.ClearCookie("access_token")
	return response.Success(c, "Logged out successfully", nil)
}

// Me returns the current user info
// @Summary Get current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.authService.Me(c.Context(), middleware.Actor(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User retrieved successfully", user)
}
