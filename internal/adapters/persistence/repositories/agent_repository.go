package repositories

import (
	"context"

	"estate-commission/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AgentRepository handles agent data access
type AgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *AgentRepository) WithTx(tx *gorm.DB) *AgentRepository {
	return &AgentRepository{db: tx}
}

// Create creates a new agent
func (r *AgentRepository) Create(ctx context.Context, agent *models.Agent) error {
	return r.db.WithContext(ctx).Create(agent).Error
}

// GetByID gets an agent by ID
func (r *AgentRepository) GetByID(ctx context.Context, id uint) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).First(&agent, id).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// GetByIDWithUplines gets an agent with both upline relations loaded
func (r *AgentRepository) GetByIDWithUplines(ctx context.Context, id uint) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).
		Preload("DirectUpline").
		Preload("IndirectUpline").
		First(&agent, id).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// GetByIDForUpdate gets an agent and locks its row for the transaction
func (r *AgentRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&agent, id).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// List lists agents with pagination
func (r *AgentRepository) List(ctx context.Context, offset, limit int) ([]*models.Agent, int64, error) {
	var agents []*models.Agent
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Agent{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&agents).Error

	return agents, total, err
}

// UpdateRates updates the three commission rates of an agent
func (r *AgentRepository) UpdateRates(ctx context.Context, id uint, self, direct, indirect decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"self_rate":            self,
			"direct_upline_rate":   direct,
			"indirect_upline_rate": indirect,
		}).Error
}

// UpdateUplines writes both upline references of an agent
func (r *AgentRepository) UpdateUplines(ctx context.Context, id uint, direct, indirect *uint) error {
	return r.db.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"direct_upline_id":   direct,
			"indirect_upline_id": indirect,
		}).Error
}

// SetIndirectUplineForDownlines rewrites the cached indirect upline of every
// direct downline of uplineID
func (r *AgentRepository) SetIndirectUplineForDownlines(ctx context.Context, uplineID uint, indirect *uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Agent{}).
		Where("direct_upline_id = ?", uplineID).
		Update("indirect_upline_id", indirect)
	return res.RowsAffected, res.Error
}

// ListDirectDownlines lists agents whose direct upline is id
func (r *AgentRepository) ListDirectDownlines(ctx context.Context, id uint) ([]*models.Agent, error) {
	var agents []*models.Agent
	err := r.db.WithContext(ctx).
		Where("direct_upline_id = ?", id).
		Order("id ASC").
		Find(&agents).Error
	return agents, err
}

// ListIndirectDownlines lists agents whose cached indirect upline is id
func (r *AgentRepository) ListIndirectDownlines(ctx context.Context, id uint) ([]*models.Agent, error) {
	var agents []*models.Agent
	err := r.db.WithContext(ctx).
		Where("indirect_upline_id = ?", id).
		Order("id ASC").
		Find(&agents).Error
	return agents, err
}

// AddTotals adds deltas to the denormalised commission counters
func (r *AgentRepository) AddTotals(ctx context.Context, id uint, commission, paid decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_commission": gorm.Expr("total_commission + ?", commission),
			"total_paid":       gorm.Expr("total_paid + ?", paid),
		}).Error
}

// SetTotals overwrites the denormalised commission counters
func (r *AgentRepository) SetTotals(ctx context.Context, id uint, commission, paid decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_commission": commission,
			"total_paid":       paid,
		}).Error
}
