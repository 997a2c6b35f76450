package repositories

import (
	"context"
	"time"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayableFilter narrows payable listings
type PayableFilter struct {
	Status        *domain.PayableStatus
	BeneficiaryID *uint
	SubmissionID  *uint
	ShareType     *domain.ShareType
}

// PayableTotals are ledger sums for one beneficiary keyed by share type and status
type PayableTotals map[domain.ShareType]map[domain.PayableStatus]decimal.Decimal

// PayableRepository handles the commission ledger
type PayableRepository struct {
	db *gorm.DB
}

// NewPayableRepository creates a new payable repository
func NewPayableRepository(db *gorm.DB) *PayableRepository {
	return &PayableRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *PayableRepository) WithTx(tx *gorm.DB) *PayableRepository {
	return &PayableRepository{db: tx}
}

// CreateBatch inserts ledger rows in one statement
func (r *PayableRepository) CreateBatch(ctx context.Context, records []*models.PayableRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

// GetByID gets a ledger row by ID
func (r *PayableRepository) GetByID(ctx context.Context, id uint) (*models.PayableRecord, error) {
	var record models.PayableRecord
	err := r.db.WithContext(ctx).
		Preload("Beneficiary").
		First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListBySubmission lists ledger rows of a submission
func (r *PayableRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]*models.PayableRecord, error) {
	var records []*models.PayableRecord
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// List lists ledger rows with pagination
func (r *PayableRepository) List(ctx context.Context, filter PayableFilter, offset, limit int) ([]*models.PayableRecord, int64, error) {
	var records []*models.PayableRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PayableRecord{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.BeneficiaryID != nil {
		query = query.Where("beneficiary_id = ?", *filter.BeneficiaryID)
	}
	if filter.SubmissionID != nil {
		query = query.Where("submission_id = ?", *filter.SubmissionID)
	}
	if filter.ShareType != nil {
		query = query.Where("share_type = ?", *filter.ShareType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Beneficiary").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error

	return records, total, err
}

// Transition moves a row to a new status if its current status is one of
// from. It returns false when no row matched.
func (r *PayableRepository) Transition(ctx context.Context, id uint, from []domain.PayableStatus, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PayableRecord{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPaidUpdates builds the column set written when a row is paid
func MarkPaidUpdates(method domain.PaymentMethod, ref, notes string, paidBy uint, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"status":          domain.PayablePaid,
		"payment_method":  method,
		"transaction_ref": ref,
		"notes":           notes,
		"paid_by":         paidBy,
		"payment_date":    at,
	}
}

// SumBySubmission sums the ledger of a submission, optionally for one status
func (r *PayableRepository) SumBySubmission(ctx context.Context, submissionID uint, status *domain.PayableStatus) (decimal.Decimal, error) {
	query := r.db.WithContext(ctx).Model(&models.PayableRecord{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("submission_id = ?", submissionID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var sum decimal.Decimal
	if err := query.Row().Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return domain.RoundMoney(sum), nil
}

// TotalsByBeneficiary sums a beneficiary's ledger grouped by share type and status
func (r *PayableRepository) TotalsByBeneficiary(ctx context.Context, beneficiaryID uint) (PayableTotals, error) {
	rows, err := r.db.WithContext(ctx).Model(&models.PayableRecord{}).
		Select("share_type, status, COALESCE(SUM(amount), 0)").
		Where("beneficiary_id = ?", beneficiaryID).
		Group("share_type, status").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := PayableTotals{}
	for rows.Next() {
		var (
			shareType string
			status    string
			sum       decimal.Decimal
		)
		if err := rows.Scan(&shareType, &status, &sum); err != nil {
			return nil, err
		}
		st := domain.ShareType(shareType)
		if totals[st] == nil {
			totals[st] = map[domain.PayableStatus]decimal.Decimal{}
		}
		totals[st][domain.PayableStatus(status)] = domain.RoundMoney(sum)
	}
	return totals, rows.Err()
}

// AffectedBeneficiaries lists beneficiary ids having rows on a submission
func (r *PayableRepository) AffectedBeneficiaries(ctx context.Context, submissionID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.PayableRecord{}).
		Where("submission_id = ?", submissionID).
		Distinct().
		Pluck("beneficiary_id", &ids).Error
	return ids, err
}

type uplineRow struct {
	PayableRecordID uint
	SubmissionID    uint
	BeneficiaryID   uint
	SellerID        uint
	ShareType       domain.ShareType
	CommissionRate  decimal.Decimal
	Amount          decimal.Decimal
	Status          domain.PayableStatus
	CreatedAt       time.Time
}

// ListUplineCommissions lists the direct and indirect shares earned by a
// beneficiary from its downlines' sales
func (r *PayableRepository) ListUplineCommissions(ctx context.Context, beneficiaryID uint) ([]*models.UplineCommission, error) {
	var rows []uplineRow
	err := r.db.WithContext(ctx).
		Table("payable_records AS p").
		Select(`p.id AS payable_record_id, p.submission_id, p.beneficiary_id,
			s.agent_id AS seller_id, p.share_type, p.rate AS commission_rate,
			p.amount, p.status, p.created_at`).
		Joins("JOIN submissions s ON s.id = p.submission_id").
		Where("p.beneficiary_id = ? AND p.share_type <> ?", beneficiaryID, domain.ShareSelf).
		Order("p.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*models.UplineCommission, 0, len(rows))
	for _, row := range rows {
		out = append(out, &models.UplineCommission{
			PayableRecordID: row.PayableRecordID,
			SubmissionID:    row.SubmissionID,
			BeneficiaryID:   row.BeneficiaryID,
			SellerID:        row.SellerID,
			CommissionType:  row.ShareType.CommissionType(),
			CommissionRate:  row.CommissionRate,
			Amount:          row.Amount,
			Status:          row.Status,
			CreatedAt:       row.CreatedAt,
		})
	}
	return out, nil
}

// CalculationRepository handles the commission audit rows
type CalculationRepository struct {
	db *gorm.DB
}

// NewCalculationRepository creates a new calculation repository
func NewCalculationRepository(db *gorm.DB) *CalculationRepository {
	return &CalculationRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *CalculationRepository) WithTx(tx *gorm.DB) *CalculationRepository {
	return &CalculationRepository{db: tx}
}

// Create inserts the audit row
func (r *CalculationRepository) Create(ctx context.Context, calc *models.CommissionCalculation) error {
	return r.db.WithContext(ctx).Create(calc).Error
}

// GetBySubmission gets the audit row of a submission
func (r *CalculationRepository) GetBySubmission(ctx context.Context, submissionID uint) (*models.CommissionCalculation, error) {
	var calc models.CommissionCalculation
	err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&calc).Error
	if err != nil {
		return nil, err
	}
	return &calc, nil
}

// ExistsForSubmission reports whether a submission was already distributed
func (r *CalculationRepository) ExistsForSubmission(ctx context.Context, submissionID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CommissionCalculation{}).
		Where("submission_id = ?", submissionID).
		Count(&count).Error
	return count > 0, err
}
