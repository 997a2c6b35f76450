package services

import (
	"context"
	"errors"
	"log/slog"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/config"
	"estate-commission/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Share is one beneficiary's slice of a commission
type Share struct {
	BeneficiaryID uint
	Type          domain.ShareType
	Rate          decimal.Decimal
	Amount        decimal.Decimal
}

// DistributionResult is the audit row and ledger rows of one distribution
type DistributionResult struct {
	Calculation *models.CommissionCalculation `json:"calculation"`
	Records     []*models.PayableRecord       `json:"records"`
}

// DistributionService splits an approved submission's commission into
// payable records
type DistributionService struct {
	db             *gorm.DB
	submissionRepo *repositories.SubmissionRepository
	agentRepo      *repositories.AgentRepository
	projectRepo    *repositories.ProjectRepository
	payableRepo    *repositories.PayableRepository
	calcRepo       *repositories.CalculationRepository
	hierarchy      *HierarchyService
	resolver       *RateResolver
	cache          SummaryCache
	retry          *retrier
	log            *slog.Logger
}

// NewDistributionService creates a new distribution service
func NewDistributionService(
	db *gorm.DB,
	submissionRepo *repositories.SubmissionRepository,
	agentRepo *repositories.AgentRepository,
	projectRepo *repositories.ProjectRepository,
	payableRepo *repositories.PayableRepository,
	calcRepo *repositories.CalculationRepository,
	hierarchy *HierarchyService,
	resolver *RateResolver,
	cache SummaryCache,
	cfg config.CommissionConfig,
	log *slog.Logger,
) *DistributionService {
	if cache == nil {
		cache = noopCache{}
	}
	return &DistributionService{
		db:             db,
		submissionRepo: submissionRepo,
		agentRepo:      agentRepo,
		projectRepo:    projectRepo,
		payableRepo:    payableRepo,
		calcRepo:       calcRepo,
		hierarchy:      hierarchy,
		resolver:       resolver,
		cache:          cache,
		retry:          newRetrier(cfg.TransientRetryAttempt, log),
		log:            log,
	}
}

// Distribute computes and records the commission split of an approved
// submission. A repeated call returns the existing rows together with
// domain.ErrAlreadyDistributed.
func (s *DistributionService) Distribute(ctx context.Context, actor domain.Actor, submissionID uint) (*DistributionResult, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	var res *DistributionResult
	err := s.retry.do(ctx, "distribute", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			res, err = s.distributeTx(ctx, tx, submissionID, actor.UserID)
			return err
		})
	})
	if errors.Is(err, domain.ErrAlreadyDistributed) {
		existing, lerr := s.Existing(ctx, submissionID)
		if lerr != nil {
			return nil, lerr
		}
		return existing, err
	}
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, res.Records)
	return res, nil
}

// Existing loads the distribution already recorded for a submission
func (s *DistributionService) Existing(ctx context.Context, submissionID uint) (*DistributionResult, error) {
	calc, err := s.calcRepo.GetBySubmission(ctx, submissionID)
	if err != nil {
		return nil, repositories.Translate(err, domain.InvalidStatef("submission %d has no distribution", submissionID))
	}
	records, err := s.payableRepo.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	return &DistributionResult{Calculation: calc, Records: records}, nil
}

// distributeTx does the work of Distribute inside tx. Every read goes through
// tx so callers can compose it with their own writes.
func (s *DistributionService) distributeTx(ctx context.Context, tx *gorm.DB, submissionID, actorID uint) (*DistributionResult, error) {
	subRepo := s.submissionRepo.WithTx(tx)
	agentRepo := s.agentRepo.WithTx(tx)
	payableRepo := s.payableRepo.WithTx(tx)
	calcRepo := s.calcRepo.WithTx(tx)

	// 1. Lock the submission and check it is eligible
	sub, err := subRepo.GetByIDForUpdate(ctx, submissionID)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrSubmissionNotFound)
	}
	if sub.Status != domain.SubmissionApproved {
		return nil, domain.InvalidStatef("submission %d is %s, not approved", sub.ID, sub.Status)
	}

	exists, err := calcRepo.ExistsForSubmission(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrAlreadyDistributed
	}

	// 2. Resolve the commission and the upline chain
	rate, err := s.resolver.ResolveRate(ctx, s.projectRepo.WithTx(tx), sub)
	if err != nil {
		return nil, err
	}

	seller, err := agentRepo.GetByID(ctx, sub.AgentID)
	if err != nil {
		return nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}
	h, err := s.hierarchy.resolveWith(ctx, agentRepo, seller)
	if err != nil {
		return nil, err
	}

	shares, err := ComputeShares(rate.Amount, h)
	if err != nil {
		return nil, err
	}

	// 3. Write the audit row and the ledger
	calc := &models.CommissionCalculation{
		SubmissionID: sub.ID,
		Kind:         sub.Kind,
		BaseAmount:   rate.BaseAmount,
		Rate:         rate.Rate,
		RateSource:   rate.Source,
		RawAmount:    rate.RawAmount,
		Amount:       rate.Amount,
		Capped:       rate.Capped,
		CalculatedBy: actorID,
	}
	if err := calcRepo.Create(ctx, calc); err != nil {
		return nil, distributionWriteError(err)
	}

	records := make([]*models.PayableRecord, 0, len(shares))
	for _, sh := range shares {
		records = append(records, &models.PayableRecord{
			SubmissionID:  sub.ID,
			BeneficiaryID: sh.BeneficiaryID,
			ShareType:     sh.Type,
			Rate:          sh.Rate,
			Amount:        sh.Amount,
			Status:        domain.PayablePending,
		})
	}
	if err := payableRepo.CreateBatch(ctx, records); err != nil {
		return nil, distributionWriteError(err)
	}

	// 4. Keep the denormalised counters in step with the ledger
	for _, sh := range shares {
		if err := agentRepo.AddTotals(ctx, sh.BeneficiaryID, sh.Amount, decimal.Zero); err != nil {
			return nil, err
		}
	}
	if err := subRepo.SetCounters(ctx, sub.ID, rate.Amount, sub.PaidAmount); err != nil {
		return nil, err
	}

	s.log.Info("commission distributed",
		slog.Uint64("submission_id", uint64(sub.ID)),
		slog.String("amount", rate.Amount.StringFixed(2)),
		slog.String("rate", rate.Rate.String()),
		slog.String("rate_source", string(rate.Source)),
		slog.Bool("capped", rate.Capped),
		slog.Int("records", len(records)),
	)

	return &DistributionResult{Calculation: calc, Records: records}, nil
}

func (s *DistributionService) invalidate(ctx context.Context, records []*models.PayableRecord) {
	ids := make([]uint, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.BeneficiaryID)
	}
	s.cache.Invalidate(ctx, ids...)
}

// ComputeShares splits total between the seller and the uplines present in
// h. Amounts are rounded to cents and never sum above total; zero shares are
// dropped.
func ComputeShares(total decimal.Decimal, h *Hierarchy) ([]Share, error) {
	agent := h.Agent

	sum := agent.SelfRate
	if h.DirectUpline != nil {
		sum = sum.Add(h.DirectRate)
	}
	if h.IndirectUpline != nil {
		sum = sum.Add(h.IndirectRate)
	}
	if sum.GreaterThan(domain.Hundred) {
		return nil, domain.Validationf("rates of agent %d sum to %s%%, above 100%%", agent.ID, sum.String())
	}

	var uplines []Share
	allocated := decimal.Zero
	if h.DirectUpline != nil {
		if sh, ok := share(total, h.DirectUpline.ID, domain.ShareDirectUpline, h.DirectRate); ok {
			uplines = append(uplines, sh)
			allocated = allocated.Add(sh.Amount)
		}
	}
	if h.IndirectUpline != nil {
		if sh, ok := share(total, h.IndirectUpline.ID, domain.ShareIndirectUpline, h.IndirectRate); ok {
			uplines = append(uplines, sh)
			allocated = allocated.Add(sh.Amount)
		}
	}

	shares := make([]Share, 0, len(uplines)+1)
	if self, ok := share(total, agent.ID, domain.ShareSelf, agent.SelfRate); ok {
		// Half-up rounding of every share can overshoot by a cent
		if rest := total.Sub(allocated); self.Amount.GreaterThan(rest) {
			self.Amount = rest
		}
		if self.Amount.IsPositive() {
			shares = append(shares, self)
		}
	}
	return append(shares, uplines...), nil
}

func share(total decimal.Decimal, beneficiaryID uint, t domain.ShareType, rate decimal.Decimal) (Share, bool) {
	amount := domain.RoundMoney(domain.PercentOf(total, rate))
	if !amount.IsPositive() {
		return Share{}, false
	}
	return Share{BeneficiaryID: beneficiaryID, Type: t, Rate: rate, Amount: amount}, true
}

func distributionWriteError(err error) error {
	if repositories.IsDuplicate(err) {
		return domain.ErrAlreadyDistributed
	}
	return err
}
