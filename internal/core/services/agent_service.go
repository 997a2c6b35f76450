package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/config"
	"estate-commission/internal/core/domain"
	"estate-commission/internal/pkg/password"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateAgentInput represents create agent input. Unset rates take the
// configured defaults; Username and Password create a login for the agent.
type CreateAgentInput struct {
	Code               string           `json:"code" validate:"required,max=30"`
	FullName           string           `json:"full_name" validate:"required,max=150"`
	Email              string           `json:"email,omitempty" validate:"omitempty,email"`
	Phone              string           `json:"phone,omitempty" validate:"max=30"`
	SelfRate           *decimal.Decimal `json:"self_rate,omitempty"`
	DirectUplineRate   *decimal.Decimal `json:"direct_upline_rate,omitempty"`
	IndirectUplineRate *decimal.Decimal `json:"indirect_upline_rate,omitempty"`
	DirectUplineID     *uint            `json:"direct_upline_id,omitempty"`
	Username           string           `json:"username,omitempty" validate:"omitempty,min=3,max=50"`
	Password           string           `json:"password,omitempty" validate:"omitempty,min=8"`
}

// UpdateRatesInput represents a rate change
type UpdateRatesInput struct {
	SelfRate           decimal.Decimal `json:"self_rate"`
	DirectUplineRate   decimal.Decimal `json:"direct_upline_rate"`
	IndirectUplineRate decimal.Decimal `json:"indirect_upline_rate"`
}

// AgentResult is an agent plus any configuration warnings
type AgentResult struct {
	Agent    *models.Agent `json:"agent"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Downlines groups the agents below an agent
type Downlines struct {
	Direct   []*models.Agent `json:"direct"`
	Indirect []*models.Agent `json:"indirect"`
}

// AgentService manages agents and their commission configuration
type AgentService struct {
	db          *gorm.DB
	agentRepo   *repositories.AgentRepository
	payableRepo *repositories.PayableRepository
	hierarchy   *HierarchyService
	cfg         config.CommissionConfig
	log         *slog.Logger
}

// NewAgentService creates a new agent service
func NewAgentService(
	db *gorm.DB,
	agentRepo *repositories.AgentRepository,
	payableRepo *repositories.PayableRepository,
	hierarchy *HierarchyService,
	cfg config.CommissionConfig,
	log *slog.Logger,
) *AgentService {
	return &AgentService{
		db:          db,
		agentRepo:   agentRepo,
		payableRepo: payableRepo,
		hierarchy:   hierarchy,
		cfg:         cfg,
		log:         log,
	}
}

// CheckRates validates a rate triple. Each rate must lie in [0, 100] and the
// sum may not exceed 100; a sum outside the configured band only warns.
func (s *AgentService) CheckRates(self, direct, indirect decimal.Decimal) ([]string, error) {
	for name, r := range map[string]decimal.Decimal{"self_rate": self, "direct_upline_rate": direct, "indirect_upline_rate": indirect} {
		if r.IsNegative() || r.GreaterThan(domain.Hundred) {
			return nil, fmt.Errorf("%w (%s = %s)", domain.ErrInvalidRate, name, r.String())
		}
	}

	sum := self.Add(direct).Add(indirect)
	if sum.GreaterThan(domain.Hundred) {
		return nil, domain.Validationf("rates sum to %s%%, above 100%%", sum.String())
	}

	var warnings []string
	if sum.LessThan(s.cfg.RateSumWarnLow) || sum.GreaterThan(s.cfg.RateSumWarnHigh) {
		warnings = append(warnings, fmt.Sprintf("rates sum to %s%%, outside the expected %s%%-%s%%",
			sum.String(), s.cfg.RateSumWarnLow.String(), s.cfg.RateSumWarnHigh.String()))
	}
	return warnings, nil
}

// Create creates an agent, optionally placing it under a direct upline and
// giving it a login
func (s *AgentService) Create(ctx context.Context, actor domain.Actor, input *CreateAgentInput) (*AgentResult, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	agent := &models.Agent{
		Code:               strings.TrimSpace(input.Code),
		FullName:           strings.TrimSpace(input.FullName),
		Email:              input.Email,
		Phone:              input.Phone,
		SelfRate:           rateOr(input.SelfRate, s.cfg.DefaultSelfRate),
		DirectUplineRate:   rateOr(input.DirectUplineRate, s.cfg.DefaultDirectRate),
		IndirectUplineRate: rateOr(input.IndirectUplineRate, s.cfg.DefaultIndirectRate),
		IsActive:           true,
	}
	warnings, err := s.CheckRates(agent.SelfRate, agent.DirectUplineRate, agent.IndirectUplineRate)
	if err != nil {
		return nil, err
	}
	if (input.Username == "") != (input.Password == "") {
		return nil, domain.Validationf("username and password must be given together")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		agentRepo := s.agentRepo.WithTx(tx)
		if err := agentRepo.Create(ctx, agent); err != nil {
			return repositories.Translate(err, domain.ErrAgentNotFound)
		}
		if input.DirectUplineID != nil {
			if err := s.hierarchy.assignTx(ctx, agentRepo, agent.ID, input.DirectUplineID); err != nil {
				return err
			}
		}
		if input.Username != "" {
			return createAgentLogin(ctx, repositories.NewUserRepository(tx), agent, input.Username, input.Password)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("agent created", slog.Uint64("agent_id", uint64(agent.ID)), slog.String("code", agent.Code))
	created, err := s.agentRepo.GetByIDWithUplines(ctx, agent.ID)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}
	return &AgentResult{Agent: created, Warnings: warnings}, nil
}

// Get returns an agent visible to actor
func (s *AgentService) Get(ctx context.Context, actor domain.Actor, id uint) (*models.Agent, error) {
	if !actor.IsAdmin() && !actor.OwnsAgent(id) {
		return nil, domain.ErrForbidden
	}
	agent, err := s.agentRepo.GetByIDWithUplines(ctx, id)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}
	return agent, nil
}

// List lists agents
func (s *AgentService) List(ctx context.Context, actor domain.Actor, page Page) ([]*models.Agent, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, domain.ErrForbidden
	}
	return s.agentRepo.List(ctx, page.Offset, page.Limit)
}

// UpdateRates replaces an agent's rates. Existing payable records keep the
// rates they were computed with.
func (s *AgentService) UpdateRates(ctx context.Context, actor domain.Actor, id uint, input *UpdateRatesInput) (*AgentResult, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	warnings, err := s.CheckRates(input.SelfRate, input.DirectUplineRate, input.IndirectUplineRate)
	if err != nil {
		return nil, err
	}
	if _, err := s.agentRepo.GetByID(ctx, id); err != nil {
		return nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}
	if err := s.agentRepo.UpdateRates(ctx, id, input.SelfRate, input.DirectUplineRate, input.IndirectUplineRate); err != nil {
		return nil, err
	}

	for _, w := range warnings {
		s.log.Warn("agent rate configuration", slog.Uint64("agent_id", uint64(id)), slog.String("warning", w))
	}
	agent, err := s.agentRepo.GetByIDWithUplines(ctx, id)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}
	return &AgentResult{Agent: agent, Warnings: warnings}, nil
}

// AssignUpline sets or clears an agent's direct upline
func (s *AgentService) AssignUpline(ctx context.Context, actor domain.Actor, id uint, uplineID *uint) (*models.Agent, error) {
	return s.hierarchy.AssignDirectUpline(ctx, actor, id, uplineID)
}

// Downlines lists the agents directly and indirectly under an agent
func (s *AgentService) Downlines(ctx context.Context, actor domain.Actor, id uint) (*Downlines, error) {
	if !actor.IsAdmin() && !actor.OwnsAgent(id) {
		return nil, domain.ErrForbidden
	}
	direct, indirect, err := s.hierarchy.Downlines(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Downlines{Direct: direct, Indirect: indirect}, nil
}

// UplineCommissions lists the shares an agent earned from its downlines
func (s *AgentService) UplineCommissions(ctx context.Context, actor domain.Actor, id uint) ([]*models.UplineCommission, error) {
	if !actor.IsAdmin() && !actor.OwnsAgent(id) {
		return nil, domain.ErrForbidden
	}
	if _, err := s.agentRepo.GetByID(ctx, id); err != nil {
		return nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}
	return s.payableRepo.ListUplineCommissions(ctx, id)
}

func createAgentLogin(ctx context.Context, userRepo repositories.UserRepository, agent *models.Agent, username, plain string) error {
	exists, err := userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: username %s", domain.ErrDuplicateEntry, username)
	}

	hashed, err := password.Hash(plain)
	if err != nil {
		return err
	}
	return userRepo.Create(ctx, &models.User{
		Username: username,
		Email:    agent.Email,
		Password: hashed,
		Role:     domain.RoleAgent,
		AgentID:  &agent.ID,
		IsActive: true,
	})
}

func rateOr(v *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if v == nil {
		return def
	}
	return *v
}
