package repositories

import (
	"context"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionFilter narrows submission listings
type SubmissionFilter struct {
	AgentID *uint
	Status  *domain.SubmissionStatus
}

// SubmissionRepository handles submission data access
type SubmissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *SubmissionRepository) WithTx(tx *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: tx}
}

// Create creates a new submission
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// GetByID gets a submission by ID with relations
func (r *SubmissionRepository) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Agent").
		Preload("Project").
		Preload("Unit").
		First(&submission, id).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// GetByIDForUpdate gets a submission and locks its row for the transaction
func (r *SubmissionRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&submission, id).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// List lists submissions with pagination
func (r *SubmissionRepository) List(ctx context.Context, filter SubmissionFilter, offset, limit int) ([]*models.Submission, int64, error) {
	var submissions []*models.Submission
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Submission{})
	if filter.AgentID != nil {
		query = query.Where("agent_id = ?", *filter.AgentID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&submissions).Error

	return submissions, total, err
}

// Update updates a submission
func (r *SubmissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(submission).Error
}

// Transition writes values only while the submission is still in status from.
// It reports false when another writer moved the row first.
func (r *SubmissionRepository) Transition(ctx context.Context, id uint, from domain.SubmissionStatus, values map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AddPaidAmount adds delta to the denormalised paid counter
func (r *SubmissionRepository) AddPaidAmount(ctx context.Context, id uint, delta decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Update("paid_amount", gorm.Expr("paid_amount + ?", delta)).Error
}

// SetCounters overwrites the denormalised commission counters
func (r *SubmissionRepository) SetCounters(ctx context.Context, id uint, commission, paid decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"commission_amount": commission,
			"paid_amount":       paid,
		}).Error
}

// DocumentRepository handles submission document index access
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create records a document reference
func (r *DocumentRepository) Create(ctx context.Context, doc *models.SubmissionDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// ListBySubmission lists documents attached to a submission
func (r *DocumentRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]*models.SubmissionDocument, error) {
	var docs []*models.SubmissionDocument
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("id ASC").
		Find(&docs).Error
	return docs, err
}

// DocumentCount counts documents attached to a submission
func (r *DocumentRepository) DocumentCount(ctx context.Context, submissionID uint) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SubmissionDocument{}).
		Where("submission_id = ?", submissionID).
		Count(&count).Error
	return int(count), err
}
