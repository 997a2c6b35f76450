package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// CommissionSummary aggregates an agent's ledger. Rejected rows are excluded
// from every total.
type CommissionSummary struct {
	AgentID      uint            `json:"agent_id"`
	OwnTotal     decimal.Decimal `json:"own_total"`
	UplineTotal  decimal.Decimal `json:"upline_total"`
	PaidTotal    decimal.Decimal `json:"paid_total"`
	PendingTotal decimal.Decimal `json:"pending_total"`
}

// SummaryService builds commission summaries
type SummaryService struct {
	agentRepo   *repositories.AgentRepository
	payableRepo *repositories.PayableRepository
	cache       SummaryCache
}

// NewSummaryService creates a new summary service
func NewSummaryService(agentRepo *repositories.AgentRepository, payableRepo *repositories.PayableRepository, cache SummaryCache) *SummaryService {
	if cache == nil {
		cache = noopCache{}
	}
	return &SummaryService{agentRepo: agentRepo, payableRepo: payableRepo, cache: cache}
}

// CommissionSummary returns the own, upline, paid and pending totals of an agent
func (s *SummaryService) CommissionSummary(ctx context.Context, actor domain.Actor, agentID uint) (*CommissionSummary, error) {
	if !actor.IsAdmin() && !actor.OwnsAgent(agentID) {
		return nil, domain.ErrForbidden
	}
	if cached, ok := s.cache.Get(ctx, agentID); ok {
		return cached, nil
	}

	if _, err := s.agentRepo.GetByID(ctx, agentID); err != nil {
		return nil, repositories.Translate(err, domain.ErrAgentNotFound)
	}
	totals, err := s.payableRepo.TotalsByBeneficiary(ctx, agentID)
	if err != nil {
		return nil, err
	}

	summary := Summarize(agentID, totals)
	s.cache.Set(ctx, summary)
	return summary, nil
}

// Summarize folds per share type and status totals into a summary
func Summarize(agentID uint, totals repositories.PayableTotals) *CommissionSummary {
	sum := &CommissionSummary{
		AgentID:      agentID,
		OwnTotal:     decimal.Zero,
		UplineTotal:  decimal.Zero,
		PaidTotal:    decimal.Zero,
		PendingTotal: decimal.Zero,
	}
	for shareType, byStatus := range totals {
		for status, amount := range byStatus {
			if status == domain.PayableRejected {
				continue
			}
			if shareType == domain.ShareSelf {
				sum.OwnTotal = sum.OwnTotal.Add(amount)
			} else {
				sum.UplineTotal = sum.UplineTotal.Add(amount)
			}
			switch status {
			case domain.PayablePaid:
				sum.PaidTotal = sum.PaidTotal.Add(amount)
			case domain.PayablePending, domain.PayableProcessing:
				sum.PendingTotal = sum.PendingTotal.Add(amount)
			}
		}
	}
	return sum
}

// RedisSummaryCache keeps summaries in redis for a fixed TTL
type RedisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedisSummaryCache creates a redis backed summary cache
func NewRedisSummaryCache(client *redis.Client, ttl time.Duration, log *slog.Logger) *RedisSummaryCache {
	return &RedisSummaryCache{client: client, ttl: ttl, log: log}
}

func summaryKey(agentID uint) string {
	return fmt.Sprintf("commission:summary:%d", agentID)
}

// Get returns a cached summary. Cache errors count as a miss.
func (c *RedisSummaryCache) Get(ctx context.Context, agentID uint) (*CommissionSummary, bool) {
	raw, err := c.client.Get(ctx, summaryKey(agentID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("summary cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	var summary CommissionSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, false
	}
	return &summary, true
}

// Set stores a summary
func (c *RedisSummaryCache) Set(ctx context.Context, summary *CommissionSummary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, summaryKey(summary.AgentID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("summary cache write failed", slog.String("error", err.Error()))
	}
}

// Invalidate drops the summaries of the given agents
func (c *RedisSummaryCache) Invalidate(ctx context.Context, agentIDs ...uint) {
	if len(agentIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(agentIDs))
	for _, id := range agentIDs {
		keys = append(keys, summaryKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("summary cache invalidation failed", slog.String("error", err.Error()))
	}
}
