package services

import (
	"context"
	"time"

	"estate-commission/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DashboardService builds the admin overview
type DashboardService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db, now: time.Now}
}

// ============================================================
// Admin Dashboard
// ============================================================

// AdminDashboardData represents admin dashboard data
type AdminDashboardData struct {
	// Agents
	TotalAgents int64 `json:"total_agents"`

	// Submissions
	Submissions          map[domain.SubmissionStatus]int64 `json:"submissions"`
	SubmissionsThisMonth int64                             `json:"submissions_this_month"`

	// Ledger
	Payables map[domain.PayableStatus]PayableStats `json:"payables"`

	// Activity
	RecentSubmissions []SubmissionSummary `json:"recent_submissions"`
	TopEarners        []EarnerStats       `json:"top_earners"`
}

// PayableStats counts and totals ledger rows in one status
type PayableStats struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// SubmissionSummary represents a recent submission
type SubmissionSummary struct {
	ID               uint                    `json:"id"`
	AgentCode        string                  `json:"agent_code"`
	Kind             domain.TransactionKind  `json:"kind"`
	Price            decimal.Decimal         `json:"price"`
	CommissionAmount decimal.Decimal         `json:"commission_amount"`
	Status           domain.SubmissionStatus `json:"status"`
	CreatedAt        time.Time               `json:"created_at"`
}

// EarnerStats represents an agent's lifetime commission
type EarnerStats struct {
	AgentID         uint            `json:"agent_id"`
	Code            string          `json:"code"`
	FullName        string          `json:"full_name"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
}

// GetAdminDashboard returns admin dashboard data
func (s *DashboardService) GetAdminDashboard(ctx context.Context, actor domain.Actor) (*AdminDashboardData, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	db := s.db.WithContext(ctx)
	data := &AdminDashboardData{
		Submissions: make(map[domain.SubmissionStatus]int64),
		Payables:    make(map[domain.PayableStatus]PayableStats),
	}

	if err := db.Table("agents").Count(&data.TotalAgents).Error; err != nil {
		return nil, err
	}

	// Submission counts by status
	var byStatus []struct {
		Status domain.SubmissionStatus
		Count  int64
	}
	err := db.Table("submissions").
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		data.Submissions[row.Status] = row.Count
	}

	// This month statistics
	now := s.now()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if err := db.Table("submissions").Where("created_at >= ?", startOfMonth).Count(&data.SubmissionsThisMonth).Error; err != nil {
		return nil, err
	}

	// Ledger by status
	var ledger []struct {
		Status domain.PayableStatus
		Count  int64
		Amount decimal.Decimal
	}
	err = db.Table("payable_records").
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("status").
		Scan(&ledger).Error
	if err != nil {
		return nil, err
	}
	for _, row := range ledger {
		data.Payables[row.Status] = PayableStats{Count: row.Count, Amount: row.Amount}
	}

	// Recent submissions
	data.RecentSubmissions = []SubmissionSummary{}
	err = db.Table("submissions").
		Select("submissions.id, agents.code AS agent_code, submissions.kind, submissions.price, submissions.commission_amount, submissions.status, submissions.created_at").
		Joins("LEFT JOIN agents ON submissions.agent_id = agents.id").
		Order("submissions.created_at DESC, submissions.id DESC").
		Limit(10).
		Scan(&data.RecentSubmissions).Error
	if err != nil {
		return nil, err
	}

	// Top earners
	data.TopEarners = []EarnerStats{}
	err = db.Table("agents").
		Select("id AS agent_id, code, full_name, total_commission, total_paid").
		Where("total_commission > 0").
		Order("total_commission DESC").
		Limit(5).
		Scan(&data.TopEarners).Error
	if err != nil {
		return nil, err
	}

	return data, nil
}
