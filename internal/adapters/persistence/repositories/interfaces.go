package repositories

import (
	"context"

	"estate-commission/internal/adapters/persistence/models"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByAgentID(ctx context.Context, agentID uint) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	CountByRole(ctx context.Context, role string) (int64, error)
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	Update(ctx context.Context, user *models.User) error
}
