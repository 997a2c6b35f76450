package services

import (
	"testing"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestComputeShares(t *testing.T) {
	seller := &models.Agent{ID: 3, SelfRate: dec("90"), DirectUplineRate: dec("7"), IndirectUplineRate: dec("3")}
	direct := &models.Agent{ID: 2}
	indirect := &models.Agent{ID: 1}

	t.Run("three levels", func(t *testing.T) {
		h := &Hierarchy{Agent: seller, DirectUpline: direct, DirectRate: dec("7"), IndirectUpline: indirect, IndirectRate: dec("3")}
		shares, err := ComputeShares(dec("6000"), h)
		require.NoError(t, err)
		require.Len(t, shares, 3)
		assert.Equal(t, domain.ShareSelf, shares[0].Type)
		assert.True(t, shares[0].Amount.Equal(dec("5400")))
		assert.True(t, shares[1].Amount.Equal(dec("420")))
		assert.True(t, shares[2].Amount.Equal(dec("180")))
	})

	t.Run("missing uplines are not paid", func(t *testing.T) {
		shares, err := ComputeShares(dec("6000"), &Hierarchy{Agent: seller})
		require.NoError(t, err)
		require.Len(t, shares, 1)
		assert.True(t, shares[0].Amount.Equal(dec("5400")))
	})

	t.Run("zero rate share is dropped", func(t *testing.T) {
		a := &models.Agent{ID: 3, SelfRate: dec("95"), DirectUplineRate: dec("5")}
		h := &Hierarchy{Agent: a, DirectUpline: direct, DirectRate: dec("5"), IndirectUpline: indirect, IndirectRate: dec("0")}
		shares, err := ComputeShares(dec("6000"), h)
		require.NoError(t, err)
		assert.Len(t, shares, 2)
	})

	t.Run("rounding never exceeds total", func(t *testing.T) {
		a := &models.Agent{ID: 3, SelfRate: dec("50"), DirectUplineRate: dec("50")}
		h := &Hierarchy{Agent: a, DirectUpline: direct, DirectRate: dec("50")}
		shares, err := ComputeShares(dec("100.01"), h)
		require.NoError(t, err)
		require.Len(t, shares, 2)
		sum := shares[0].Amount.Add(shares[1].Amount)
		assert.True(t, sum.LessThanOrEqual(dec("100.01")), "sum %s", sum)
		assert.True(t, shares[1].Amount.Equal(dec("50.01")))
		assert.True(t, shares[0].Amount.Equal(dec("50.00")))
	})

	t.Run("rates above 100 are refused", func(t *testing.T) {
		a := &models.Agent{ID: 3, SelfRate: dec("96"), DirectUplineRate: dec("5")}
		h := &Hierarchy{Agent: a, DirectUpline: direct, DirectRate: dec("5")}
		_, err := ComputeShares(dec("6000"), h)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestDistribute_SaleWithDirectUpline(t *testing.T) {
	e := newTestEnv(t)
	upline := e.newAgent(t, "UP", "100", "0", "0", nil)
	seller := e.newAgent(t, "SELL", "95", "5", "0", &upline.ID)
	sub := e.newSubmission(t, seller.ID, domain.KindSale, "200000", domain.SubmissionApproved)

	res, err := e.distribution.Distribute(bg, adminActor, sub.ID)
	require.NoError(t, err)

	assert.True(t, res.Calculation.Amount.Equal(dec("6000")))
	assert.Equal(t, domain.RateSourceDefault, res.Calculation.RateSource)
	require.Len(t, res.Records, 2)

	self := findShare(res.Records, domain.ShareSelf)
	direct := findShare(res.Records, domain.ShareDirectUpline)
	require.NotNil(t, self)
	require.NotNil(t, direct)
	assert.Nil(t, findShare(res.Records, domain.ShareIndirectUpline))

	assert.Equal(t, seller.ID, self.BeneficiaryID)
	assert.True(t, self.Amount.Equal(dec("5700")))
	assert.Equal(t, upline.ID, direct.BeneficiaryID)
	assert.True(t, direct.Amount.Equal(dec("300")))
	assert.Equal(t, domain.PayablePending, self.Status)

	// Counters follow the ledger
	assert.True(t, e.reloadAgent(t, seller.ID).TotalCommission.Equal(dec("5700")))
	assert.True(t, e.reloadAgent(t, upline.ID).TotalCommission.Equal(dec("300")))
	stored, err := e.submissionRepo.GetByID(bg, sub.ID)
	require.NoError(t, err)
	assert.True(t, stored.CommissionAmount.Equal(dec("6000")))
}

func TestDistribute_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	upline := e.newAgent(t, "UP", "100", "0", "0", nil)
	seller := e.newAgent(t, "SELL", "95", "5", "0", &upline.ID)
	sub := e.newSubmission(t, seller.ID, domain.KindSale, "200000", domain.SubmissionApproved)

	first, err := e.distribution.Distribute(bg, adminActor, sub.ID)
	require.NoError(t, err)

	second, err := e.distribution.Distribute(bg, adminActor, sub.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyDistributed)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	require.NotNil(t, second)
	assert.Len(t, second.Records, len(first.Records))

	records, err := e.payableRepo.ListBySubmission(bg, sub.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.True(t, e.reloadAgent(t, seller.ID).TotalCommission.Equal(dec("5700")))
}

func TestDistribute_UniqueIndexes(t *testing.T) {
	e := newTestEnv(t)
	seller := e.newAgent(t, "SELL", "95", "5", "0", nil)
	sub := e.newSubmission(t, seller.ID, domain.KindSale, "200000", domain.SubmissionApproved)

	calc := func() *models.CommissionCalculation {
		return &models.CommissionCalculation{
			SubmissionID: sub.ID,
			Kind:         domain.KindSale,
			BaseAmount:   dec("200000"),
			Rate:         dec("3"),
			RateSource:   domain.RateSourceDefault,
			RawAmount:    dec("6000"),
			Amount:       dec("6000"),
			CalculatedBy: adminActor.UserID,
		}
	}
	require.NoError(t, e.calcRepo.Create(bg, calc()))
	err := e.calcRepo.Create(bg, calc())
	require.Error(t, err)
	assert.True(t, repositories.IsDuplicate(err))
	assert.ErrorIs(t, distributionWriteError(err), domain.ErrAlreadyDistributed)

	record := func() *models.PayableRecord {
		return &models.PayableRecord{
			SubmissionID:  sub.ID,
			BeneficiaryID: seller.ID,
			ShareType:     domain.ShareSelf,
			Rate:          dec("95"),
			Amount:        dec("5700"),
			Status:        domain.PayablePending,
		}
	}
	require.NoError(t, e.payableRepo.CreateBatch(bg, []*models.PayableRecord{record()}))
	err = e.payableRepo.CreateBatch(bg, []*models.PayableRecord{record()})
	require.Error(t, err)
	assert.True(t, repositories.IsDuplicate(err))
}

func TestDistribute_LedgerIndexBlocksSecondWrite(t *testing.T) {
	e := newTestEnv(t)
	seller := e.newAgent(t, "SELL", "95", "5", "0", nil)
	sub := e.newSubmission(t, seller.ID, domain.KindSale, "200000", domain.SubmissionApproved)

	// A ledger row without its audit row slips past the pre-check
	stray := &models.PayableRecord{
		SubmissionID:  sub.ID,
		BeneficiaryID: seller.ID,
		ShareType:     domain.ShareSelf,
		Rate:          dec("95"),
		Amount:        dec("5700"),
		Status:        domain.PayablePending,
	}
	require.NoError(t, e.payableRepo.CreateBatch(bg, []*models.PayableRecord{stray}))

	err := e.db.Transaction(func(tx *gorm.DB) error {
		_, err := e.distribution.distributeTx(bg, tx, sub.ID, adminActor.UserID)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyDistributed)

	// The audit row written before the clash rolled back with it
	exists, err := e.calcRepo.ExistsForSubmission(bg, sub.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, e.reloadAgent(t, seller.ID).TotalCommission.IsZero())
}

func TestDistribute_Conservation(t *testing.T) {
	e := newTestEnv(t)
	top := e.newAgent(t, "TOP", "100", "0", "0", nil)
	mid := e.newAgent(t, "MID", "95", "5", "0", &top.ID)
	seller := e.newAgent(t, "SELL", "88.5", "7.25", "3.25", &mid.ID)
	sub := e.newSubmission(t, seller.ID, domain.KindSale, "987654.32", domain.SubmissionApproved)

	res, err := e.distribution.Distribute(bg, adminActor, sub.ID)
	require.NoError(t, err)
	require.Len(t, res.Records, 3)

	total := sumAmounts(res.Records)
	assert.True(t, total.LessThanOrEqual(res.Calculation.Amount), "shares %s > total %s", total, res.Calculation.Amount)
	for _, r := range res.Records {
		assert.True(t, r.Amount.Equal(r.Amount.Round(2)))
	}
}

func TestDistribute_Errors(t *testing.T) {
	e := newTestEnv(t)
	seller := e.newAgent(t, "SELL", "95", "5", "0", nil)
	draft := e.newSubmission(t, seller.ID, domain.KindSale, "200000", domain.SubmissionSubmitted)

	_, err := e.distribution.Distribute(bg, adminActor, draft.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = e.distribution.Distribute(bg, adminActor, 999)
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)

	_, err = e.distribution.Distribute(bg, agentActor(seller.ID), draft.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	records, err := e.payableRepo.ListBySubmission(bg, draft.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDistribute_InvalidatesSummaryCache(t *testing.T) {
	e := newTestEnv(t)
	seller := e.newAgent(t, "SELL", "95", "5", "0", nil)
	e.cache.Set(bg, &CommissionSummary{AgentID: seller.ID})

	sub := e.newSubmission(t, seller.ID, domain.KindSale, "200000", domain.SubmissionApproved)
	_, err := e.distribution.Distribute(bg, adminActor, sub.ID)
	require.NoError(t, err)

	_, ok := e.cache.Get(bg, seller.ID)
	assert.False(t, ok)
}
