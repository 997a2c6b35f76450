package services

import (
	"context"
	"errors"
	"fmt"
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

var errNotPending = domain.InvalidStatef("payable record is not pending")

// MarkPaidInput represents a payment confirmation
type MarkPaidInput struct {
	Method         domain.PaymentMethod `json:"payment_method" validate:"required,oneof=bank_transfer cash cheque e_wallet"`
	TransactionRef string               `json:"transaction_ref,omitempty" validate:"max=100"`
	Notes          string               `json:"notes,omitempty"`
}

// MarkPaidResult is the paid record plus its voucher. Delivery problems are
// reported as warnings; they never undo the payment.
type MarkPaidResult struct {
	Record   *models.PayableRecord `json:"record"`
	Voucher  *models.Voucher       `json:"voucher,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
}

// Batch item outcomes
const (
	BatchPaid    = "paid"
	BatchSkipped = "skipped"
	BatchFailed  = "failed"
)

// BatchItem is the outcome for one id of a batch payment
type BatchItem struct {
	ID       uint     `json:"id"`
	Outcome  string   `json:"outcome"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// BatchResult summarises a batch payment
type BatchResult struct {
	Items   []BatchItem `json:"items"`
	Paid    int         `json:"paid"`
	Skipped int         `json:"skipped"`
	Failed  int         `json:"failed"`
}

// PayableListFilter represents payable list filters
type PayableListFilter struct {
	Status        *domain.PayableStatus
	BeneficiaryID *uint
	SubmissionID  *uint
	ShareType     *domain.ShareType
}

// PaymentService drives payable records through their payment lifecycle
type PaymentService struct {
	db             *gorm.DB
	payableRepo    *repositories.PayableRepository
	agentRepo      *repositories.AgentRepository
	submissionRepo *repositories.SubmissionRepository
	vouchers       *VoucherService
	notifier       *NotificationService
	cache          SummaryCache
	cfg            config.VoucherConfig
	retry          *retrier
	log            *slog.Logger
	now            func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	db *gorm.DB,
	payableRepo *repositories.PayableRepository,
	agentRepo *repositories.AgentRepository,
	submissionRepo *repositories.SubmissionRepository,
	vouchers *VoucherService,
	notifier *NotificationService,
	cache SummaryCache,
	cfg *config.Config,
	log *slog.Logger,
) *PaymentService {
	if cache == nil {
		cache = noopCache{}
	}
	return &PaymentService{
		db:             db,
		payableRepo:    payableRepo,
		agentRepo:      agentRepo,
		submissionRepo: submissionRepo,
		vouchers:       vouchers,
		notifier:       notifier,
		cache:          cache,
		cfg:            cfg.Voucher,
		retry:          newRetrier(cfg.Commission.TransientRetryAttempt, log),
		log:            log,
		now:            time.Now,
	}
}

// Get returns a payable record visible to actor
func (s *PaymentService) Get(ctx context.Context, actor domain.Actor, id uint) (*models.PayableRecord, error) {
	record, err := s.payableRepo.GetByID(ctx, id)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrPayableNotFound)
	}
	if !actor.IsAdmin() && !actor.OwnsAgent(record.BeneficiaryID) {
		return nil, domain.ErrForbidden
	}
	return record, nil
}

// List lists payable records. Agents only see their own.
func (s *PaymentService) List(ctx context.Context, actor domain.Actor, filter PayableListFilter, page Page) ([]*models.PayableRecord, int64, error) {
	if !actor.IsAdmin() {
		if actor.AgentID == nil {
			return nil, 0, domain.ErrForbidden
		}
		filter.BeneficiaryID = actor.AgentID
	}
	return s.payableRepo.List(ctx, repositories.PayableFilter{
		Status:        filter.Status,
		BeneficiaryID: filter.BeneficiaryID,
		SubmissionID:  filter.SubmissionID,
		ShareType:     filter.ShareType,
	}, page.Offset, page.Limit)
}

// MarkProcessing moves a pending record to processing
func (s *PaymentService) MarkProcessing(ctx context.Context, actor domain.Actor, id uint) (*models.PayableRecord, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	err := s.transition(ctx, id, []domain.PayableStatus{domain.PayablePending}, map[string]interface{}{
		"status": domain.PayableProcessing,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("payable processing", slog.Uint64("payable_id", uint64(id)), slog.Uint64("by", uint64(actor.UserID)))
	return s.reload(ctx, id)
}

// Reject rejects a pending record with a reason
func (s *PaymentService) Reject(ctx context.Context, actor domain.Actor, id uint, reason string) (*models.PayableRecord, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.Validationf("rejection reason is required")
	}

	var record *models.PayableRecord
	err := s.retry.do(ctx, "reject payable", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			payableRepo := s.payableRepo.WithTx(tx)
			if err := s.transitionWith(ctx, payableRepo, id, []domain.PayableStatus{domain.PayablePending}, map[string]interface{}{
				"status":           domain.PayableRejected,
				"rejection_reason": reason,
			}); err != nil {
				return err
			}
			var err error
			if record, err = payableRepo.GetByID(ctx, id); err != nil {
				return err
			}
			// Rejected rows no longer count towards the beneficiary's earnings
			return s.agentRepo.WithTx(tx).AddTotals(ctx, record.BeneficiaryID, record.Amount.Neg(), decimal.Zero)
		})
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, record.BeneficiaryID)
	s.log.Info("payable rejected", slog.Uint64("payable_id", uint64(id)), slog.Uint64("by", uint64(actor.UserID)))
	return record, nil
}

// MarkPaid settles a pending or processing record, then issues its voucher
func (s *PaymentService) MarkPaid(ctx context.Context, actor domain.Actor, id uint, input *MarkPaidInput) (*MarkPaidResult, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := validatePayment(input); err != nil {
		return nil, err
	}

	record, err := s.markPaid(ctx, actor, id, input, []domain.PayableStatus{domain.PayablePending, domain.PayableProcessing})
	if err != nil {
		return nil, err
	}
	return s.afterPaid(ctx, record), nil
}

// BatchMarkPaid pays every pending record in ids, each in its own
// transaction. Records in any other state are skipped.
func (s *PaymentService) BatchMarkPaid(ctx context.Context, actor domain.Actor, ids []uint, input *MarkPaidInput) (*BatchResult, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if len(ids) == 0 {
		return nil, domain.Validationf("ids are required")
	}
	if err := validatePayment(input); err != nil {
		return nil, err
	}

	res := &BatchResult{Items: make([]BatchItem, 0, len(ids))}
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		record, err := s.markPaid(ctx, actor, id, input, []domain.PayableStatus{domain.PayablePending})
		switch {
		case err == nil:
			paid := s.afterPaid(ctx, record)
			res.Items = append(res.Items, BatchItem{ID: id, Outcome: BatchPaid, Warnings: paid.Warnings})
			res.Paid++
		case errors.Is(err, domain.ErrInvalidState):
			res.Items = append(res.Items, BatchItem{ID: id, Outcome: BatchSkipped, Reason: err.Error()})
			res.Skipped++
		default:
			res.Items = append(res.Items, BatchItem{ID: id, Outcome: BatchFailed, Reason: err.Error()})
			res.Failed++
		}
	}

	s.log.Info("batch payment finished",
		slog.Int("paid", res.Paid),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.Uint64("by", uint64(actor.UserID)),
	)
	return res, nil
}

// markPaid writes the payment and the counters in one transaction
func (s *PaymentService) markPaid(ctx context.Context, actor domain.Actor, id uint, input *MarkPaidInput, from []domain.PayableStatus) (*models.PayableRecord, error) {
	var record *models.PayableRecord
	err := s.retry.do(ctx, "mark paid", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			payableRepo := s.payableRepo.WithTx(tx)

			updates := repositories.MarkPaidUpdates(input.Method, input.TransactionRef, input.Notes, actor.UserID, s.now())
			if err := s.transitionWith(ctx, payableRepo, id, from, updates); err != nil {
				return err
			}

			var err error
			if record, err = payableRepo.GetByID(ctx, id); err != nil {
				return err
			}
			if err := s.agentRepo.WithTx(tx).AddTotals(ctx, record.BeneficiaryID, decimal.Zero, record.Amount); err != nil {
				return err
			}
			return s.submissionRepo.WithTx(tx).AddPaidAmount(ctx, record.SubmissionID, record.Amount)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payable paid",
		slog.Uint64("payable_id", uint64(id)),
		slog.String("amount", record.Amount.StringFixed(2)),
		slog.String("method", string(input.Method)),
		slog.Uint64("by", uint64(actor.UserID)),
	)
	return record, nil
}

// afterPaid runs the post-commit side effects of a payment
func (s *PaymentService) afterPaid(ctx context.Context, record *models.PayableRecord) *MarkPaidResult {
	res := &MarkPaidResult{Record: record}
	s.cache.Invalidate(ctx, record.BeneficiaryID)

	if s.vouchers != nil && s.cfg.AutoGenerate {
		voucher, err := s.vouchers.GenerateVoucher(ctx, record)
		if err != nil {
			s.log.Error("voucher generation failed", slog.Uint64("payable_id", uint64(record.ID)), slog.String("error", err.Error()))
			res.Warnings = append(res.Warnings, fmt.Sprintf("voucher generation failed: %v", err))
		} else {
			res.Voucher = voucher
			if s.cfg.AutoEmail {
				if err := s.vouchers.SendVoucherEmail(ctx, voucher); err != nil {
					res.Warnings = append(res.Warnings, err.Error())
				}
			}
		}
	}

	if s.notifier != nil {
		sub, err := s.submissionRepo.GetByID(ctx, record.SubmissionID)
		if err == nil {
			_, err = s.notifier.Notify(ctx, domain.EventPayablePaid, sub, record.BeneficiaryID, map[string]string{
				"amount": record.Amount.StringFixed(2),
			})
		}
		if err != nil {
			s.log.Warn("payment notification failed", slog.Uint64("payable_id", uint64(record.ID)), slog.String("error", err.Error()))
		}
	}
	return res
}

func (s *PaymentService) transition(ctx context.Context, id uint, from []domain.PayableStatus, updates map[string]interface{}) error {
	return s.retry.do(ctx, "payable transition", func() error {
		return s.transitionWith(ctx, s.payableRepo, id, from, updates)
	})
}

// transitionWith applies a conditional status change and explains a miss
func (s *PaymentService) transitionWith(ctx context.Context, repo *repositories.PayableRepository, id uint, from []domain.PayableStatus, updates map[string]interface{}) error {
	ok, err := repo.Transition(ctx, id, from, updates)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	current, err := repo.GetByID(ctx, id)
	if err != nil {
		return repositories.Translate(err, domain.ErrPayableNotFound)
	}
	if len(from) == 1 && from[0] == domain.PayablePending && !current.Status.IsTerminal() {
		return fmt.Errorf("%w (record %d is %s)", errNotPending, id, current.Status)
	}
	return domain.InvalidStatef("payable record %d is %s", id, current.Status)
}

func (s *PaymentService) reload(ctx context.Context, id uint) (*models.PayableRecord, error) {
	record, err := s.payableRepo.GetByID(ctx, id)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrPayableNotFound)
	}
	return record, nil
}

// RecomputeAgentCounters rebuilds an agent's totals from the ledger
func (s *PaymentService) RecomputeAgentCounters(ctx context.Context, actor domain.Actor, agentID uint) (*models.Agent, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if _, err := s.agentRepo.GetByID(ctx, agentID); err != nil {
		return nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}

	totals, err := s.payableRepo.TotalsByBeneficiary(ctx, agentID)
	if err != nil {
		return nil, err
	}

	commission, paid := decimal.Zero, decimal.Zero
	for _, byStatus := range totals {
		for status, amount := range byStatus {
			if status == domain.PayableRejected {
				continue
			}
			commission = commission.Add(amount)
			if status == domain.PayablePaid {
				paid = paid.Add(amount)
			}
		}
	}

	if err := s.agentRepo.SetTotals(ctx, agentID, commission, paid); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, agentID)

	s.log.Info("agent counters recomputed",
		slog.Uint64("agent_id", uint64(agentID)),
		slog.String("total_commission", commission.StringFixed(2)),
		slog.String("total_paid", paid.StringFixed(2)),
	)
	agent, err := s.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}
	return agent, nil
}

// RecomputeSubmissionCounters rebuilds a submission's paid amount from the
// ledger
func (s *PaymentService) RecomputeSubmissionCounters(ctx context.Context, actor domain.Actor, submissionID uint) (*models.Submission, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	sub, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrSubmissionNotFound)
	}

	paidStatus := domain.PayablePaid
	paid, err := s.payableRepo.SumBySubmission(ctx, submissionID, &paidStatus)
	if err != nil {
		return nil, err
	}
	if err := s.submissionRepo.SetCounters(ctx, submissionID, sub.CommissionAmount, paid); err != nil {
		return nil, err
	}
	sub.PaidAmount = paid
	return sub, nil
}

func validatePayment(input *MarkPaidInput) error {
	if input == nil {
		return domain.Validationf("payment details are required")
	}
	switch input.Method {
	case domain.MethodBankTransfer, domain.MethodCash, domain.MethodCheque, domain.MethodEWallet:
		return nil
	default:
		return domain.Validationf("invalid payment method %q", input.Method)
	}
}
