package repositories

import (
	"context"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/core/domain"

	"gorm.io/gorm"
)

// VoucherRepository handles voucher and email log data access
type VoucherRepository struct {
	db *gorm.DB
}

// NewVoucherRepository creates a new voucher repository
func NewVoucherRepository(db *gorm.DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

// Create creates a voucher
func (r *VoucherRepository) Create(ctx context.Context, voucher *models.Voucher) error {
	return r.db.WithContext(ctx).Create(voucher).Error
}

// GetByID gets a voucher with its beneficiary
func (r *VoucherRepository) GetByID(ctx context.Context, id uint) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Preload("Beneficiary").
		Preload("PayableRecord").
		First(&voucher, id).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// GetByPayableID gets the voucher of a payable record
func (r *VoucherRepository) GetByPayableID(ctx context.Context, payableID uint) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Preload("Beneficiary").
		Preload("PayableRecord").
		Where("payable_record_id = ?", payableID).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// UpdateEmailStatus records the outcome of a delivery attempt
func (r *VoucherRepository) UpdateEmailStatus(ctx context.Context, voucher *models.Voucher) error {
	return r.db.WithContext(ctx).Model(&models.Voucher{}).
		Where("id = ?", voucher.ID).
		Updates(map[string]interface{}{
			"email_status":   voucher.EmailStatus,
			"email_sent_at":  voucher.EmailSentAt,
			"email_error":    voucher.EmailError,
			"email_attempts": voucher.EmailAttempts,
		}).Error
}

// ListByEmailStatus lists vouchers in a delivery state, oldest first
func (r *VoucherRepository) ListByEmailStatus(ctx context.Context, status domain.EmailStatus, maxAttempts, limit int) ([]*models.Voucher, error) {
	var vouchers []*models.Voucher
	err := r.db.WithContext(ctx).
		Preload("Beneficiary").
		Preload("PayableRecord").
		Where("email_status = ? AND email_attempts < ?", status, maxAttempts).
		Order("id ASC").
		Limit(limit).
		Find(&vouchers).Error
	return vouchers, err
}

// CreateEmailLog appends an email audit entry
func (r *VoucherRepository) CreateEmailLog(ctx context.Context, entry *models.EmailLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListEmailLogs lists email audit entries of a voucher
func (r *VoucherRepository) ListEmailLogs(ctx context.Context, voucherID uint) ([]*models.EmailLog, error) {
	var logs []*models.EmailLog
	err := r.db.WithContext(ctx).
		Where("voucher_id = ?", voucherID).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}
