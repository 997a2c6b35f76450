package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/config"
	"estate-commission/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateSubmissionInput represents create submission input
type CreateSubmissionInput struct {
	AgentID         *uint                  `json:"agent_id,omitempty"`
	CustomerName    string                 `json:"customer_name" validate:"required,max=150"`
	CustomerPhone   string                 `json:"customer_phone,omitempty" validate:"max=30"`
	CustomerEmail   string                 `json:"customer_email,omitempty" validate:"omitempty,email"`
	PropertyAddress string                 `json:"property_address" validate:"required"`
	Kind            domain.TransactionKind `json:"kind" validate:"required,oneof=sale rental"`
	Price           decimal.Decimal        `json:"price"`
	ProjectID       *uint                  `json:"project_id,omitempty"`
	UnitID          *uint                  `json:"unit_id,omitempty"`
	Remark          string                 `json:"remark,omitempty"`
}

// AddDocumentInput represents an attached document
type AddDocumentInput struct {
	DocType  string `json:"doc_type" validate:"max=50"`
	FileName string `json:"file_name" validate:"required,max=255"`
}

// SubmissionListFilter represents submission list filters
type SubmissionListFilter struct {
	AgentID *uint
	Status  *domain.SubmissionStatus
}

// ApprovalResult is an approved submission and its distribution
type ApprovalResult struct {
	Submission      *models.Submission  `json:"submission"`
	Distribution    *DistributionResult `json:"distribution"`
	AlreadyApproved bool                `json:"already_approved"`
}

// SubmissionService handles the listing lifecycle
type SubmissionService struct {
	db             *gorm.DB
	submissionRepo *repositories.SubmissionRepository
	documentRepo   *repositories.DocumentRepository
	projectRepo    *repositories.ProjectRepository
	agentRepo      *repositories.AgentRepository
	distribution   *DistributionService
	notifier       *NotificationService
	cache          SummaryCache
	cfg            config.CommissionConfig
	retry          *retrier
	log            *slog.Logger
	now            func() time.Time
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(
	db *gorm.DB,
	submissionRepo *repositories.SubmissionRepository,
	documentRepo *repositories.DocumentRepository,
	projectRepo *repositories.ProjectRepository,
	agentRepo *repositories.AgentRepository,
	distribution *DistributionService,
	notifier *NotificationService,
	cache SummaryCache,
	cfg config.CommissionConfig,
	log *slog.Logger,
) *SubmissionService {
	if cache == nil {
		cache = noopCache{}
	}
	return &SubmissionService{
		db:             db,
		submissionRepo: submissionRepo,
		documentRepo:   documentRepo,
		projectRepo:    projectRepo,
		agentRepo:      agentRepo,
		distribution:   distribution,
		notifier:       notifier,
		cache:          cache,
		cfg:            cfg,
		retry:          newRetrier(cfg.TransientRetryAttempt, log),
		log:            log,
		now:            time.Now,
	}
}

// Create creates a draft submission. Agents file for themselves; admins
// must name the agent.
func (s *SubmissionService) Create(ctx context.Context, actor domain.Actor, input *CreateSubmissionInput) (*models.Submission, error) {
	// 1. Work out whose listing this is
	var agentID uint
	switch {
	case actor.IsAdmin() && input.AgentID != nil:
		agentID = *input.AgentID
	case actor.AgentID != nil:
		agentID = *actor.AgentID
	default:
		return nil, domain.Validationf("agent_id is required")
	}
	if _, err := s.agentRepo.GetByID(ctx, agentID); err != nil {
		return nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}

	// 2. Validate the sale context
	if !input.Price.IsPositive() {
		return nil, invalidPriceError(input.Price)
	}
	if input.Kind != domain.KindSale && input.Kind != domain.KindRental {
		return nil, domain.Validationf("kind must be sale or rental")
	}

	projectID := input.ProjectID
	if input.UnitID != nil {
		unit, err := s.projectRepo.GetUnit(ctx, *input.UnitID)
		if err != nil {
			return nil, repositories.Translate(err, domain.ErrUnitNotFound)
		}
		if projectID != nil && *projectID != unit.ProjectID {
			return nil, domain.ErrUnitOutsideProj
		}
		projectID = &unit.ProjectID
	} else if projectID != nil {
		if _, err := s.projectRepo.ProjectRate(ctx, *projectID); err != nil {
			return nil, repositories.Translate(err, domain.ErrProjectNotFound)
		}
	}

	sub := &models.Submission{
		AgentID:         agentID,
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerPhone:   input.CustomerPhone,
		CustomerEmail:   input.CustomerEmail,
		PropertyAddress: strings.TrimSpace(input.PropertyAddress),
		Kind:            input.Kind,
		Price:           input.Price,
		ProjectID:       projectID,
		UnitID:          input.UnitID,
		Status:          domain.SubmissionDraft,
		Remark:          input.Remark,
	}
	if err := s.submissionRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.log.Info("submission created", slog.Uint64("submission_id", uint64(sub.ID)), slog.Uint64("agent_id", uint64(agentID)))
	return sub, nil
}

// Get returns a submission visible to actor
func (s *SubmissionService) Get(ctx context.Context, actor domain.Actor, id uint) (*models.Submission, error) {
	sub, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrSubmissionNotFound)
	}
	if !actor.IsAdmin() && !actor.OwnsAgent(sub.AgentID) {
		return nil, domain.ErrForbidden
	}
	return sub, nil
}

// List lists submissions. Agents only see their own.
func (s *SubmissionService) List(ctx context.Context, actor domain.Actor, filter SubmissionListFilter, page Page) ([]*models.Submission, int64, error) {
	if !actor.IsAdmin() {
		if actor.AgentID == nil {
			return nil, 0, domain.ErrForbidden
		}
		filter.AgentID = actor.AgentID
	}
	return s.submissionRepo.List(ctx, repositories.SubmissionFilter{
		AgentID: filter.AgentID,
		Status:  filter.Status,
	}, page.Offset, page.Limit)
}

// AddDocument attaches a document to a draft or submitted listing
func (s *SubmissionService) AddDocument(ctx context.Context, actor domain.Actor, id uint, input *AddDocumentInput) (*models.SubmissionDocument, error) {
	sub, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.SubmissionDraft && sub.Status != domain.SubmissionSubmitted {
		return nil, domain.InvalidStatef("cannot attach documents to a %s submission", sub.Status)
	}

	doc := &models.SubmissionDocument{
		SubmissionID: sub.ID,
		DocType:      input.DocType,
		FileName:     input.FileName,
		UploadedBy:   actor.UserID,
	}
	if err := s.documentRepo.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Documents lists the documents of a submission
func (s *SubmissionService) Documents(ctx context.Context, actor domain.Actor, id uint) ([]*models.SubmissionDocument, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.documentRepo.ListBySubmission(ctx, id)
}

// Submit sends a draft for review and warns the owner about missing documents
func (s *SubmissionService) Submit(ctx context.Context, actor domain.Actor, id uint) (*models.Submission, error) {
	sub, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.SubmissionDraft {
		return nil, domain.InvalidStatef("submission %d is %s, not draft", sub.ID, sub.Status)
	}

	now := s.now()
	if err := s.transition(ctx, sub, map[string]interface{}{
		"status":       domain.SubmissionSubmitted,
		"submitted_at": now,
	}); err != nil {
		return nil, err
	}
	sub.Status = domain.SubmissionSubmitted
	sub.SubmittedAt = &now

	count, err := s.documentRepo.DocumentCount(ctx, sub.ID)
	if err != nil {
		s.log.Warn("document count failed", slog.Uint64("submission_id", uint64(sub.ID)), slog.String("error", err.Error()))
	} else if _, err := s.notifier.NotifyDocumentsIncomplete(ctx, sub, count, s.cfg.RequiredDocuments); err != nil {
		s.log.Warn("notification failed", slog.Uint64("submission_id", uint64(sub.ID)), slog.String("error", err.Error()))
	}

	s.log.Info("submission submitted", slog.Uint64("submission_id", uint64(sub.ID)))
	return sub, nil
}

// Approve approves a submitted listing and distributes its commission in the
// same transaction. Approving an approved listing returns its existing
// distribution.
func (s *SubmissionService) Approve(ctx context.Context, actor domain.Actor, id uint) (*ApprovalResult, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	res := &ApprovalResult{}
	err := s.retry.do(ctx, "approve submission", func() error {
		res = &ApprovalResult{}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			subRepo := s.submissionRepo.WithTx(tx)

			sub, err := subRepo.GetByIDForUpdate(ctx, id)
			if err != nil {
				return repositories.Translate(err, domain.ErrSubmissionNotFound)
			}

			switch sub.Status {
			case domain.SubmissionApproved:
				res.AlreadyApproved = true
			case domain.SubmissionSubmitted:
				now := s.now()
				sub.Status = domain.SubmissionApproved
				sub.ApprovedBy = &actor.UserID
				sub.ApprovedAt = &now
				if err := subRepo.Update(ctx, sub); err != nil {
					return err
				}
			default:
				return domain.InvalidStatef("submission %d is %s, not submitted", sub.ID, sub.Status)
			}

			dist, err := s.distribution.distributeTx(ctx, tx, sub.ID, actor.UserID)
			if errors.Is(err, domain.ErrAlreadyDistributed) && res.AlreadyApproved {
				return nil
			}
			if err != nil {
				return err
			}
			res.Distribution = dist
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if res.Distribution == nil {
		if res.Distribution, err = s.distribution.Existing(ctx, id); err != nil {
			return nil, err
		}
	}
	if res.Submission, err = s.submissionRepo.GetByID(ctx, id); err != nil {
		return nil, repositories.Translate(err, domain.ErrSubmissionNotFound)
	}

	if res.AlreadyApproved {
		s.log.Info("submission already approved", slog.Uint64("submission_id", uint64(id)))
		return res, nil
	}

	s.distribution.invalidate(ctx, res.Distribution.Records)
	if _, err := s.notifier.Notify(ctx, domain.EventSubmissionApproved, res.Submission, res.Submission.AgentID, map[string]string{
		"amount": res.Submission.CommissionAmount.StringFixed(2),
	}); err != nil {
		s.log.Warn("notification failed", slog.Uint64("submission_id", uint64(id)), slog.String("error", err.Error()))
	}

	s.log.Info("submission approved", slog.Uint64("submission_id", uint64(id)), slog.Uint64("by", uint64(actor.UserID)))
	return res, nil
}

// Reject rejects a submitted listing with a reason
func (s *SubmissionService) Reject(ctx context.Context, actor domain.Actor, id uint, reason string) (*models.Submission, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.Validationf("rejection reason is required")
	}

	sub, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrSubmissionNotFound)
	}
	if sub.Status != domain.SubmissionSubmitted {
		return nil, domain.InvalidStatef("submission %d is %s, not submitted", sub.ID, sub.Status)
	}

	now := s.now()
	if err := s.transition(ctx, sub, map[string]interface{}{
		"status":           domain.SubmissionRejected,
		"rejection_reason": reason,
		"rejected_at":      now,
	}); err != nil {
		return nil, err
	}
	sub.Status = domain.SubmissionRejected
	sub.RejectionReason = reason
	sub.RejectedAt = &now

	if _, err := s.notifier.Notify(ctx, domain.EventSubmissionRejected, sub, sub.AgentID, map[string]string{"reason": reason}); err != nil {
		s.log.Warn("notification failed", slog.Uint64("submission_id", uint64(id)), slog.String("error", err.Error()))
	}
	s.log.Info("submission rejected", slog.Uint64("submission_id", uint64(id)), slog.Uint64("by", uint64(actor.UserID)))
	return sub, nil
}

// ReturnToDraft reopens a rejected listing for editing
func (s *SubmissionService) ReturnToDraft(ctx context.Context, actor domain.Actor, id uint) (*models.Submission, error) {
	sub, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.SubmissionRejected {
		return nil, domain.InvalidStatef("submission %d is %s, not rejected", sub.ID, sub.Status)
	}

	if err := s.transition(ctx, sub, map[string]interface{}{
		"status":           domain.SubmissionDraft,
		"rejection_reason": "",
		"rejected_at":      nil,
		"submitted_at":     nil,
	}); err != nil {
		return nil, err
	}
	sub.Status = domain.SubmissionDraft
	sub.RejectionReason = ""
	sub.RejectedAt = nil
	sub.SubmittedAt = nil

	if _, err := s.notifier.Notify(ctx, domain.EventReturnedToDraft, sub, sub.AgentID, nil); err != nil {
		s.log.Warn("notification failed", slog.Uint64("submission_id", uint64(id)), slog.String("error", err.Error()))
	}
	return sub, nil
}

// transition moves sub out of the status it was read in. A concurrent change
// in between surfaces as an invalid state instead of being overwritten.
func (s *SubmissionService) transition(ctx context.Context, sub *models.Submission, values map[string]interface{}) error {
	ok, err := s.submissionRepo.Transition(ctx, sub.ID, sub.Status, values)
	if err != nil {
		return err
	}
	if !ok {
		return domain.InvalidStatef("submission %d changed while it was being updated", sub.ID)
	}
	return nil
}
