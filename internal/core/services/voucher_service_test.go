package services

import (
	"strings"
	"testing"
	"time"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVoucherNumber(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	a := NewVoucherNumber("PV", at)
	b := NewVoucherNumber("PV", at)

	assert.Regexp(t, `^PV-20260314-[0-9A-F]{8}$`, a)
	assert.NotEqual(t, a, b)
}

func TestGenerateVoucher(t *testing.T) {
	e := newTestEnv(t)
	_, _, _, self, direct := distributed(t, e)

	_, err := e.vouchers.GenerateVoucher(bg, direct)
	assert.ErrorIs(t, err, domain.ErrInvalidState, "pending records have no voucher")

	cfg := testConfig()
	cfg.Voucher.AutoGenerate = false
	e.payments.cfg = cfg.Voucher
	res, err := e.payments.MarkPaid(bg, adminActor, self.ID, bankTransfer)
	require.NoError(t, err)
	assert.Nil(t, res.Voucher)

	v1, err := e.vouchers.GenerateVoucher(bg, res.Record)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailPending, v1.EmailStatus)
	assert.True(t, v1.Amount.Equal(dec("5700")))

	// One voucher per paid record
	v2, err := e.vouchers.GenerateVoucher(bg, res.Record)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, v2.ID)
	assert.Equal(t, v1.Number, v2.Number)
}

func TestRender_Templates(t *testing.T) {
	e := newTestEnv(t)
	voucher := &models.Voucher{
		Number:         "PV-20260314-ABCDEF12",
		Amount:         dec("5700"),
		PaymentMethod:  domain.MethodBankTransfer,
		TransactionRef: "TRX-9",
		PaymentDate:    time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Beneficiary:    &models.Agent{FullName: "Malee", Code: "AG-1", Email: "malee@estate.test"},
		PayableRecord:  &models.PayableRecord{SubmissionID: 42, ShareType: domain.ShareDirectUpline, Rate: dec("5")},
	}

	for _, name := range []string{"plain", "detailed", "receipt"} {
		t.Run(name, func(t *testing.T) {
			e.vouchers.cfg.Template = name
			msg, err := e.vouchers.Render(voucher)
			require.NoError(t, err)
			assert.Equal(t, []string{"malee@estate.test"}, msg.To)
			assert.Contains(t, msg.Subject, voucher.Number)
			assert.Contains(t, msg.TextBody, "5700.00")
		})
	}

	e.vouchers.cfg.Template = "detailed"
	msg, err := e.vouchers.Render(voucher)
	require.NoError(t, err)
	assert.Contains(t, msg.TextBody, "direct at 5%")
	assert.Contains(t, msg.TextBody, "#42")

	e.vouchers.cfg.Template = "receipt"
	msg, err = e.vouchers.Render(voucher)
	require.NoError(t, err)
	assert.True(t, strings.Contains(msg.TextBody, "RECEIPT"))
	assert.Contains(t, msg.TextBody, "ref TRX-9")
}

func TestSendVoucherEmail_FailureThenRetry(t *testing.T) {
	e := newTestEnv(t)
	e.mail.err = errSMTPDown
	_, _, _, self, _ := distributed(t, e)

	res, err := e.payments.MarkPaid(bg, adminActor, self.ID, bankTransfer)
	require.NoError(t, err)
	require.NotNil(t, res.Voucher)
	assert.Equal(t, domain.EmailFailed, res.Voucher.EmailStatus)
	assert.Equal(t, 1, res.Voucher.EmailAttempts)

	e.mail.err = nil
	sent, failed, err := e.vouchers.RetryFailed(bg, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Zero(t, failed)

	stored, err := e.voucherRepo.GetByID(bg, res.Voucher.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailSent, stored.EmailStatus)
	assert.NotNil(t, stored.EmailSentAt)
	assert.Empty(t, stored.EmailError)
	assert.Equal(t, 2, stored.EmailAttempts)

	logs, err := e.voucherRepo.ListEmailLogs(bg, stored.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	// Nothing left to retry
	sent, failed, err = e.vouchers.RetryFailed(bg, 10)
	require.NoError(t, err)
	assert.Zero(t, sent+failed)
}

func TestSendVoucherEmail_NoAddress(t *testing.T) {
	e := newTestEnv(t)
	voucher := &models.Voucher{
		Number:        "PV-20260314-00000001",
		Amount:        dec("10"),
		PaymentDate:   time.Now(),
		EmailStatus:   domain.EmailPending,
		BeneficiaryID: 1,
	}
	require.NoError(t, e.voucherRepo.Create(bg, voucher))
	voucher.Beneficiary = &models.Agent{FullName: "No Mail"}

	err := e.vouchers.SendVoucherEmail(bg, voucher)
	assert.ErrorIs(t, err, domain.ErrDelivery)
	assert.Equal(t, domain.EmailFailed, voucher.EmailStatus)
	assert.Zero(t, e.mail.count())
}

func TestResend(t *testing.T) {
	e := newTestEnv(t)
	seller, _, _, self, _ := distributed(t, e)
	res, err := e.payments.MarkPaid(bg, adminActor, self.ID, bankTransfer)
	require.NoError(t, err)

	_, err = e.vouchers.Resend(bg, agentActor(seller.ID), res.Voucher.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	v, err := e.vouchers.Resend(bg, adminActor, res.Voucher.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailSent, v.EmailStatus)
	assert.Equal(t, 2, e.mail.count())

	// The beneficiary can read their voucher
	got, err := e.vouchers.GetByPayable(bg, agentActor(seller.ID), self.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Voucher.Number, got.Number)
}
