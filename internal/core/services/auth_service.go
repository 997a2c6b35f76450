package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/config"
	"estate-commission/internal/core/domain"
	"estate-commission/internal/pkg/jwt"
	"estate-commission/internal/pkg/password"

	"gorm.io/gorm"
)

// ErrUserInactive is returned when a disabled account logs in
var ErrUserInactive = fmt.Errorf("%w: user account is inactive", domain.ErrForbidden)

// LoginInput represents login input
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User        *models.UserResponse `json:"user"`
	AccessToken string               `json:"access_token"`
	ExpiresIn   int                  `json:"expires_in"`
}

// AuthService handles authentication business logic
type AuthService struct {
	userRepo repositories.UserRepository
	cfg      config.JWTConfig
	log      *slog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo repositories.UserRepository, cfg config.JWTConfig, log *slog.Logger) *AuthService {
	return &AuthService{userRepo: userRepo, cfg: cfg, log: log}
}

// Login authenticates a user and issues an access token
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	// 1. Find user by username
	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	// 2. Check if user is active
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 3. Verify password
	if !password.Verify(input.Password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	// 4. Issue token
	token, err := jwt.GenerateAccessToken(user.ID, user.AgentID, user.Username, string(user.Role), s.cfg.Secret, s.cfg.AccessTokenMins)
	if err != nil {
		return nil, err
	}

	s.log.Info("user logged in", slog.String("username", user.Username), slog.String("role", string(user.Role)))

	return &AuthResponse{
		User:        user.ToResponse(),
		AccessToken: token,
		ExpiresIn:   s.cfg.AccessTokenMins * 60,
	}, nil
}

// ValidateAccessToken validates an access token
func (s *AuthService) ValidateAccessToken(accessToken string) (*jwt.Claims, error) {
	return jwt.ValidateAccessToken(accessToken, s.cfg.Secret)
}

// Me returns the current user
func (s *AuthService) Me(ctx context.Context, actor domain.Actor) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrUserNotFound)
	}
	return user.ToResponse(), nil
}
