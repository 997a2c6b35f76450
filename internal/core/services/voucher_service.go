package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/config"
	"estate-commission/internal/core/domain"
	"estate-commission/internal/pkg/mailer"

	"github.com/google/uuid"
)

// MaxVoucherEmailAttempts bounds the automatic retry of failed voucher emails
const MaxVoucherEmailAttempts = 5

var voucherTemplates = map[string]*template.Template{
	"plain": template.Must(template.New("plain").Parse(
		`Payment voucher {{.Number}}

Amount: {{.Amount}}
Paid on: {{.PaymentDate}}
`)),
	"detailed": template.Must(template.New("detailed").Parse(
		`{{.Company}}
Payment voucher {{.Number}}

Beneficiary: {{.Beneficiary}} ({{.AgentCode}})
Submission:  #{{.SubmissionID}}
Share:       {{.ShareType}} at {{.Rate}}%
Amount:      {{.Amount}}
Method:      {{.Method}}
Reference:   {{.Reference}}
Paid on:     {{.PaymentDate}}
`)),
	"receipt": template.Must(template.New("receipt").Parse(
		`{{.Company}}
RECEIPT {{.Number}}

Received by {{.Beneficiary}} the sum of {{.Amount}}
by {{.Method}}{{if .Reference}} (ref {{.Reference}}){{end}} on {{.PaymentDate}}.
`)),
}

type voucherView struct {
	Company      string
	Number       string
	Beneficiary  string
	AgentCode    string
	SubmissionID uint
	ShareType    string
	Rate         string
	Amount       string
	Method       string
	Reference    string
	PaymentDate  string
}

// VoucherService generates payment vouchers and emails them to beneficiaries
type VoucherService struct {
	voucherRepo *repositories.VoucherRepository
	mailer      mailer.Mailer
	cfg         config.VoucherConfig
	log         *slog.Logger
	now         func() time.Time
}

// NewVoucherService creates a new voucher service
func NewVoucherService(
	voucherRepo *repositories.VoucherRepository,
	m mailer.Mailer,
	cfg config.VoucherConfig,
	log *slog.Logger,
) *VoucherService {
	return &VoucherService{
		voucherRepo: voucherRepo,
		mailer:      m,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// NewVoucherNumber formats <prefix>-YYYYMMDD-<8 random hex>
func NewVoucherNumber(prefix string, at time.Time) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), random)
}

// GenerateVoucher creates the voucher of a paid record. A record that already
// has one gets it back unchanged.
func (s *VoucherService) GenerateVoucher(ctx context.Context, record *models.PayableRecord) (*models.Voucher, error) {
	if record.Status != domain.PayablePaid {
		return nil, domain.InvalidStatef("payable record %d is %s, not paid", record.ID, record.Status)
	}

	existing, err := s.voucherRepo.GetByPayableID(ctx, record.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(repositories.Translate(err, domain.ErrVoucherNotFound), domain.ErrNotFound) {
		return nil, err
	}

	paidAt := s.now()
	if record.PaymentDate != nil {
		paidAt = *record.PaymentDate
	}

	voucher := &models.Voucher{
		PayableRecordID: record.ID,
		BeneficiaryID:   record.BeneficiaryID,
		Amount:          record.Amount,
		PaymentMethod:   record.PaymentMethod,
		TransactionRef:  record.TransactionRef,
		PaymentDate:     paidAt,
		EmailStatus:     domain.EmailPending,
	}

	// A number collision is retried with a fresh suffix; a payable collision
	// means another caller generated it first
	for i := 0; i < 3; i++ {
		voucher.ID = 0
		voucher.Number = NewVoucherNumber(s.cfg.Prefix, s.now())
		err = s.voucherRepo.Create(ctx, voucher)
		if err == nil {
			break
		}
		if !repositories.IsDuplicate(err) {
			return nil, err
		}
		if existing, gerr := s.voucherRepo.GetByPayableID(ctx, record.ID); gerr == nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}

	voucher.PayableRecord = record
	voucher.Beneficiary = record.Beneficiary

	s.log.Info("voucher generated",
		slog.String("number", voucher.Number),
		slog.Uint64("payable_record_id", uint64(record.ID)),
	)
	return voucher, nil
}

// Render builds the email of a voucher with the configured template
func (s *VoucherService) Render(voucher *models.Voucher) (mailer.Message, error) {
	tmpl, ok := voucherTemplates[s.cfg.Template]
	if !ok {
		tmpl = voucherTemplates["plain"]
	}

	view := voucherView{
		Company:     s.cfg.CompanyName,
		Number:      voucher.Number,
		Amount:      voucher.Amount.StringFixed(2),
		Method:      string(voucher.PaymentMethod),
		Reference:   voucher.TransactionRef,
		PaymentDate: voucher.PaymentDate.Format("2006-01-02"),
	}
	var to []string
	if b := voucher.Beneficiary; b != nil {
		view.Beneficiary = b.FullName
		view.AgentCode = b.Code
		to = []string{b.Email}
	}
	if r := voucher.PayableRecord; r != nil {
		view.SubmissionID = r.SubmissionID
		view.ShareType = r.ShareType.CommissionType()
		view.Rate = r.Rate.String()
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return mailer.Message{}, fmt.Errorf("render voucher %s: %w", voucher.Number, err)
	}

	return mailer.Message{
		To:       to,
		Subject:  fmt.Sprintf("Payment voucher %s", voucher.Number),
		TextBody: buf.String(),
	}, nil
}

// SendVoucherEmail delivers a voucher and records the outcome on the voucher
// and in the email log. Delivery failures come back wrapped in
// domain.ErrDelivery.
func (s *VoucherService) SendVoucherEmail(ctx context.Context, voucher *models.Voucher) error {
	msg, sendErr := s.Render(voucher)
	if sendErr == nil {
		if voucher.Beneficiary == nil || strings.TrimSpace(voucher.Beneficiary.Email) == "" {
			sendErr = errors.New("beneficiary has no email address")
		} else {
			sendErr = s.mailer.Send(ctx, msg)
		}
	}

	voucher.EmailAttempts++
	entry := &models.EmailLog{
		VoucherID: &voucher.ID,
		Subject:   msg.Subject,
	}
	if len(msg.To) > 0 {
		entry.Recipient = msg.To[0]
	}

	if sendErr != nil {
		voucher.EmailStatus = domain.EmailFailed
		voucher.EmailError = sendErr.Error()
		entry.Status = domain.EmailFailed
		entry.Error = sendErr.Error()
	} else {
		at := s.now()
		voucher.EmailStatus = domain.EmailSent
		voucher.EmailSentAt = &at
		voucher.EmailError = ""
		entry.Status = domain.EmailSent
	}

	if err := s.voucherRepo.UpdateEmailStatus(ctx, voucher); err != nil {
		s.log.Error("failed to record voucher email status", slog.Uint64("voucher_id", uint64(voucher.ID)), slog.String("error", err.Error()))
	}
	if err := s.voucherRepo.CreateEmailLog(ctx, entry); err != nil {
		s.log.Error("failed to write email log", slog.Uint64("voucher_id", uint64(voucher.ID)), slog.String("error", err.Error()))
	}

	if sendErr != nil {
		s.log.Warn("voucher email failed",
			slog.String("number", voucher.Number),
			slog.Int("attempts", voucher.EmailAttempts),
			slog.String("error", sendErr.Error()),
		)
		return fmt.Errorf("%w: voucher %s: %v", domain.ErrDelivery, voucher.Number, sendErr)
	}

	s.log.Info("voucher emailed", slog.String("number", voucher.Number), slog.String("to", entry.Recipient))
	return nil
}

// Get returns a voucher visible to actor
func (s *VoucherService) Get(ctx context.Context, actor domain.Actor, id uint) (*models.Voucher, error) {
	voucher, err := s.voucherRepo.GetByID(ctx, id)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrVoucherNotFound)
	}
	if !actor.IsAdmin() && !actor.OwnsAgent(voucher.BeneficiaryID) {
		return nil, domain.ErrForbidden
	}
	return voucher, nil
}

// GetByPayable returns the voucher of a payable record visible to actor
func (s *VoucherService) GetByPayable(ctx context.Context, actor domain.Actor, payableID uint) (*models.Voucher, error) {
	voucher, err := s.voucherRepo.GetByPayableID(ctx, payableID)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrVoucherNotFound)
	}
	if !actor.IsAdmin() && !actor.OwnsAgent(voucher.BeneficiaryID) {
		return nil, domain.ErrForbidden
	}
	return voucher, nil
}

// Resend emails a voucher again on an admin's request
func (s *VoucherService) Resend(ctx context.Context, actor domain.Actor, id uint) (*models.Voucher, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	voucher, err := s.voucherRepo.GetByID(ctx, id)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrVoucherNotFound)
	}
	err = s.SendVoucherEmail(ctx, voucher)
	return voucher, err
}

// EmailLogs lists the delivery attempts of a voucher
func (s *VoucherService) EmailLogs(ctx context.Context, actor domain.Actor, id uint) ([]*models.EmailLog, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.voucherRepo.ListEmailLogs(ctx, id)
}

// RetryFailed re-sends up to limit vouchers whose email failed
func (s *VoucherService) RetryFailed(ctx context.Context, limit int) (sent, failed int, err error) {
	vouchers, err := s.voucherRepo.ListByEmailStatus(ctx, domain.EmailFailed, MaxVoucherEmailAttempts, limit)
	if err != nil {
		return 0, 0, err
	}
	for _, v := range vouchers {
		if ctx.Err() != nil {
			return sent, failed, ctx.Err()
		}
		if err := s.SendVoucherEmail(ctx, v); err != nil {
			failed++
			continue
		}
		sent++
	}
	return sent, failed, nil
}
