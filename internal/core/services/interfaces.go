package services

import (
	"context"

	"github.com/shopspring/decimal"
)

// DocumentCounter supplies the number of documents attached to a submission
type DocumentCounter interface {
	DocumentCount(ctx context.Context, submissionID uint) (int, error)
}

// RateLookup supplies project and unit commission rate overrides
type RateLookup interface {
	ProjectRate(ctx context.Context, projectID uint) (decimal.NullDecimal, error)
	UnitRate(ctx context.Context, unitID uint) (decimal.NullDecimal, error)
}

// SummaryCache caches per-agent commission summaries
type SummaryCache interface {
	Get(ctx context.Context, agentID uint) (*CommissionSummary, bool)
	Set(ctx context.Context, summary *CommissionSummary)
	Invalidate(ctx context.Context, agentIDs ...uint)
}

// Page is a page request
type Page struct {
	Offset int
	Limit  int
}

type noopCache struct{}

func (noopCache) Get(context.Context, uint) (*CommissionSummary, bool) { return nil, false }
func (noopCache) Set(context.Context, *CommissionSummary)              {}
func (noopCache) Invalidate(context.Context, ...uint)                  {}
