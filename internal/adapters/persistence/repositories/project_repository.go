package repositories

import (
	"context"

	"estate-commission/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProjectRepository handles project and unit data access
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ProjectRepository) WithTx(tx *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: tx}
}

// CreateProject creates a project
func (r *ProjectRepository) CreateProject(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// CreateUnit creates a unit
func (r *ProjectRepository) CreateUnit(ctx context.Context, unit *models.Unit) error {
	return r.db.WithContext(ctx).Create(unit).Error
}

// GetUnit gets a unit by ID
func (r *ProjectRepository) GetUnit(ctx context.Context, id uint) (*models.Unit, error) {
	var unit models.Unit
	if err := r.db.WithContext(ctx).First(&unit, id).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

// ProjectRate returns the project-level commission rate, if any
func (r *ProjectRepository) ProjectRate(ctx context.Context, id uint) (decimal.NullDecimal, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Select("id", "commission_rate").First(&project, id).Error; err != nil {
		return decimal.NullDecimal{}, err
	}
	return project.CommissionRate, nil
}

// UnitRate returns the unit-level commission rate, if any
func (r *ProjectRepository) UnitRate(ctx context.Context, id uint) (decimal.NullDecimal, error) {
	var unit models.Unit
	if err := r.db.WithContext(ctx).Select("id", "commission_rate").First(&unit, id).Error; err != nil {
		return decimal.NullDecimal{}, err
	}
	return unit.CommissionRate, nil
}
