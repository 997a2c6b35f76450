package services

import (
	"context"
	"log/slog"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Hierarchy is the resolved upline chain of a selling agent
type Hierarchy struct {
	Agent          *models.Agent
	DirectUpline   *models.Agent
	DirectRate     decimal.Decimal
	IndirectUpline *models.Agent
	IndirectRate   decimal.Decimal
}

// HierarchyService resolves and maintains agent upline chains
type HierarchyService struct {
	db        *gorm.DB
	agentRepo *repositories.AgentRepository
	log       *slog.Logger
}

// NewHierarchyService creates a new hierarchy service
func NewHierarchyService(db *gorm.DB, agentRepo *repositories.AgentRepository, log *slog.Logger) *HierarchyService {
	return &HierarchyService{db: db, agentRepo: agentRepo, log: log}
}

// ResolveHierarchy returns the agent's direct upline and the direct upline's
// direct upline, read from the current chain
func (s *HierarchyService) ResolveHierarchy(ctx context.Context, agent *models.Agent) (*Hierarchy, error) {
	return s.resolveWith(ctx, s.agentRepo, agent)
}

func (s *HierarchyService) resolveWith(ctx context.Context, repo *repositories.AgentRepository, agent *models.Agent) (*Hierarchy, error) {
	h := &Hierarchy{Agent: agent}
	if agent.DirectUplineID == nil || *agent.DirectUplineID == agent.ID {
		return h, nil
	}

	direct, err := repo.GetByID(ctx, *agent.DirectUplineID)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}
	h.DirectUpline = direct
	h.DirectRate = agent.DirectUplineRate

	if direct.DirectUplineID != nil && *direct.DirectUplineID != agent.ID && *direct.DirectUplineID != direct.ID {
		indirect, err := repo.GetByID(ctx, *direct.DirectUplineID)
		if err != nil {
			return nil, repositories.Translate(err, domain.ErrAgentNotFound)
		}
		h.IndirectUpline = indirect
		h.IndirectRate = agent.IndirectUplineRate
	}

	if !sameUpline(agent.IndirectUplineID, h.IndirectUpline) {
		s.log.Warn("cached indirect upline is stale",
			slog.Uint64("agent_id", uint64(agent.ID)),
		)
	}
	return h, nil
}

// DeriveIndirectUpline returns the indirect upline implied by assigning
// newDirect as the agent's direct upline
func DeriveIndirectUpline(agent *models.Agent, newDirect *models.Agent) (*uint, error) {
	if newDirect == nil {
		return nil, nil
	}
	if newDirect.ID == agent.ID {
		return nil, domain.ErrSelfUpline
	}
	if newDirect.DirectUplineID == nil {
		return nil, nil
	}
	if *newDirect.DirectUplineID == agent.ID {
		return nil, domain.Validationf("agent %d would become its own indirect upline", agent.ID)
	}
	id := *newDirect.DirectUplineID
	return &id, nil
}

// AssignDirectUpline sets or clears an agent's direct upline, re-derives its
// indirect upline and refreshes the indirect upline of its direct downlines
func (s *HierarchyService) AssignDirectUpline(ctx context.Context, actor domain.Actor, agentID uint, uplineID *uint) (*models.Agent, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if uplineID != nil && *uplineID == agentID {
		return nil, domain.ErrSelfUpline
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.assignTx(ctx, s.agentRepo.WithTx(tx), agentID, uplineID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("direct upline assigned",
		slog.Uint64("agent_id", uint64(agentID)),
		slog.Any("upline_id", uplineID),
		slog.Uint64("by", uint64(actor.UserID)),
	)
	agent, err := s.agentRepo.GetByIDWithUplines(ctx, agentID)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}
	return agent, nil
}

func (s *HierarchyService) assignTx(ctx context.Context, repo *repositories.AgentRepository, agentID uint, uplineID *uint) error {
	agent, err := repo.GetByIDForUpdate(ctx, agentID)
	if err != nil {
		return repositories.Translate(err, domain.ErrAgentNotFound)
	}

	var direct *models.Agent
	if uplineID != nil {
		direct, err = repo.GetByID(ctx, *uplineID)
		if err != nil {
			return repositories.Translate(err, domain.ErrAgentNotFound)
		}
	}

	indirect, err := DeriveIndirectUpline(agent, direct)
	if err != nil {
		return err
	}

	if err := repo.UpdateUplines(ctx, agent.ID, uplineID, indirect); err != nil {
		return err
	}

	// Agents directly under this one now reach uplineID as their indirect upline
	if _, err := repo.SetIndirectUplineForDownlines(ctx, agent.ID, uplineID); err != nil {
		return err
	}
	return nil
}

// Downlines lists the direct and indirect downlines of an agent
func (s *HierarchyService) Downlines(ctx context.Context, agentID uint) (direct, indirect []*models.Agent, err error) {
	if _, err = s.agentRepo.GetByID(ctx, agentID); err != nil {
		return nil, nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}
	if direct, err = s.agentRepo.ListDirectDownlines(ctx, agentID); err != nil {
		return nil, nil, err
	}
	if indirect, err = s.agentRepo.ListIndirectDownlines(ctx, agentID); err != nil {
		return nil, nil, err
	}
	return direct, indirect, nil
}

func sameUpline(cached *uint, resolved *models.Agent) bool {
	if cached == nil || resolved == nil {
		return cached == nil && resolved == nil
	}
	return *cached == resolved.ID
}
