package services

import (
	"context"
	"log/slog"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/core/domain"
	"estate-commission/internal/pkg/password"
)

// User service errors
var (
	ErrOldPasswordWrong     = domain.Validationf("old password is incorrect")
	ErrCannotDeactivateSelf = domain.Validationf("cannot deactivate your own account")
)

// UserService handles login account management
type UserService struct {
	userRepo repositories.UserRepository
	log      *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository, log *slog.Logger) *UserService {
	return &UserService{userRepo: userRepo, log: log}
}

// UpdateUserByAdminInput represents update user input (for admin)
type UpdateUserByAdminInput struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	IsActive *bool   `json:"is_active"`
}

// ChangePasswordInput represents change password input
type ChangePasswordInput struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ListUsers lists login accounts (admin only)
func (s *UserService) ListUsers(ctx context.Context, actor domain.Actor, page Page) ([]*models.UserResponse, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, domain.ErrForbidden
	}
	users, total, err := s.userRepo.List(ctx, page.Offset, page.Limit)
	if err != nil {
		return nil, 0, err
	}

	out := make([]*models.UserResponse, len(users))
	for i, u := range users {
		out[i] = u.ToResponse()
	}
	return out, total, nil
}

// UpdateUserByAdmin updates a user's email or active flag
func (s *UserService) UpdateUserByAdmin(ctx context.Context, actor domain.Actor, id uint, input *UpdateUserByAdminInput) (*models.UserResponse, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrUserNotFound)
	}

	// Prevent admin from locking themselves out
	if id == actor.UserID && input.IsActive != nil && !*input.IsActive {
		return nil, ErrCannotDeactivateSelf
	}

	if input.Email != nil {
		user.Email = *input.Email
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user updated", slog.Uint64("user_id", uint64(id)), slog.Bool("active", user.IsActive), slog.Uint64("by", uint64(actor.UserID)))
	return user.ToResponse(), nil
}

// ChangePassword changes the caller's password
func (s *UserService) ChangePassword(ctx context.Context, actor domain.Actor, input *ChangePasswordInput) error {
	user, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return repositories.Translate(err, domain.ErrUserNotFound)
	}

	// Verify old password
	if !password.Verify(input.OldPassword, user.Password) {
		return ErrOldPasswordWrong
	}

	// Validate new password
	if len(input.NewPassword) < 8 {
		return domain.Validationf("new password must be at least 8 characters")
	}

	hashedPassword, err := password.Hash(input.NewPassword)
	if err != nil {
		return err
	}

	user.Password = hashedPassword
	return s.userRepo.Update(ctx, user)
}
