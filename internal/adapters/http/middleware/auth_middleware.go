package middleware

import (
	"errors"
	"strings"

	"estate-commission/internal/config"
	"estate-commission/internal/core/domain"
	"estate-commission/internal/pkg/jwt"
	"estate-commission/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const actorKey = "actor"

// AuthMiddleware creates authentication middleware
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Try to get token from cookie first
		accessToken := c.Cookies("access_token")

		// 2. If not in cookie, try Authorization header
		if accessToken == "" {
			authHeader := c.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				accessToken = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		// 3. No token found
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		// 4. Validate token
		claims, err := jwt.ValidateAccessToken(accessToken, cfg.JWT.Secret)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		// 5. Set caller in context
		c.Locals(actorKey, domain.Actor{
			UserID:  claims.UserID,
			AgentID: claims.AgentID,
			Role:    domain.Role(claims.Role),
		})
		c.Locals("username", claims.Username)

		return c.Next()
	}
}

// Actor returns the authenticated caller. The zero Actor has no role and
// fails every authorization check.
func Actor(c *fiber.Ctx) domain.Actor {
	actor, _ := c.Locals(actorKey).(domain.Actor)
	return actor
}

// RoleMiddleware creates role-based authorization middleware
func RoleMiddleware(allowedRoles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := c.Locals(actorKey).(domain.Actor)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		for _, role := range allowedRoles {
			if actor.Role == role {
				return c.Next()
			}
		}

		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// AdminOnly middleware allows only the admin role
func AdminOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleAdmin)
}
