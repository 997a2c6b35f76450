package models

import (
	"time"

	"estate-commission/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Auth
// ============================================================

// User represents users table
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email     string         `gorm:"size:100;not null" json:"email"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      domain.Role    `gorm:"size:20;default:'agent'" json:"role"`
	AgentID   *uint          `gorm:"index" json:"agent_id"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID       uint        `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
	AgentID  *uint       `json:"agent_id,omitempty"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		AgentID:  u.AgentID,
	}
}

// ============================================================
// Hierarchy
// ============================================================

// Agent represents agents table. IndirectUplineID is a cached derivation of
// DirectUpline.DirectUplineID and is only written by the hierarchy service.
type Agent struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	Code               string          `gorm:"size:30;uniqueIndex;not null" json:"code"`
	FullName           string          `gorm:"size:150;not null" json:"full_name"`
	Email              string          `gorm:"size:100" json:"email"`
	Phone              string          `gorm:"size:30" json:"phone"`
	SelfRate           decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"self_rate"`
	DirectUplineID     *uint           `gorm:"index" json:"direct_upline_id"`
	IndirectUplineID   *uint           `gorm:"index" json:"indirect_upline_id"`
	DirectUplineRate   decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"direct_upline_rate"`
	IndirectUplineRate decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"indirect_upline_rate"`
	TotalCommission    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total_commission"`
	TotalPaid          decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total_paid"`
	IsActive           bool            `gorm:"default:true" json:"is_active"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	DirectUpline   *Agent `gorm:"foreignKey:DirectUplineID" json:"direct_upline,omitempty"`
	IndirectUpline *Agent `gorm:"foreignKey:IndirectUplineID" json:"indirect_upline,omitempty"`
}

func (Agent) TableName() string {
	return "agents"
}

// RateSum returns self + direct + indirect rates
func (a *Agent) RateSum() decimal.Decimal {
	return a.SelfRate.Add(a.DirectUplineRate).Add(a.IndirectUplineRate)
}

// ============================================================
// Sale context
// ============================================================

// Project provides a project-level commission rate override
type Project struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	Code           string              `gorm:"size:30;uniqueIndex;not null" json:"code"`
	Name           string              `gorm:"size:150;not null" json:"name"`
	CommissionRate decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"commission_rate"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

// Unit belongs to a project and may override its rate
type Unit struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	ProjectID      uint                `gorm:"not null;index" json:"project_id"`
	UnitNo         string              `gorm:"size:30;not null" json:"unit_no"`
	CommissionRate decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"commission_rate"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`

	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

func (Unit) TableName() string {
	return "units"
}

// ============================================================
// Listings
// ============================================================

// Submission represents a sale or rental listing
type Submission struct {
	ID               uint                    `gorm:"primaryKey" json:"id"`
	AgentID          uint                    `gorm:"not null;index" json:"agent_id"`
	CustomerName     string                  `gorm:"size:150;not null" json:"customer_name"`
	CustomerPhone    string                  `gorm:"size:30" json:"customer_phone"`
	CustomerEmail    string                  `gorm:"size:100" json:"customer_email"`
	PropertyAddress  string                  `gorm:"type:text;not null" json:"property_address"`
	Kind             domain.TransactionKind  `gorm:"size:10;not null" json:"kind"`
	Price            decimal.Decimal         `gorm:"type:decimal(15,2);not null" json:"price"`
	ProjectID        *uint                   `gorm:"index" json:"project_id"`
	UnitID           *uint                   `gorm:"index" json:"unit_id"`
	CommissionAmount decimal.Decimal         `gorm:"type:decimal(15,2);not null;default:0" json:"commission_amount"`
	PaidAmount       decimal.Decimal         `gorm:"type:decimal(15,2);not null;default:0" json:"paid_amount"`
	Status           domain.SubmissionStatus `gorm:"size:20;not null;index" json:"status"`
	RejectionReason  string                  `gorm:"type:text" json:"rejection_reason"`
	Remark           string                  `gorm:"type:text" json:"remark"`
	SubmittedAt      *time.Time              `json:"submitted_at"`
	ApprovedBy       *uint                   `json:"approved_by"`
	ApprovedAt       *time.Time              `json:"approved_at"`
	RejectedAt       *time.Time              `json:"rejected_at"`
	CreatedAt        time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time               `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Agent   *Agent   `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Unit    *Unit    `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
}

func (Submission) TableName() string {
	return "submissions"
}

// SubmissionDocument indexes a document attached to a submission. File
// content and storage live outside this service.
type SubmissionDocument struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	DocType      string    `gorm:"size:50" json:"doc_type"`
	FileName     string    `gorm:"size:255;not null" json:"file_name"`
	UploadedBy   uint      `gorm:"not null" json:"uploaded_by"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SubmissionDocument) TableName() string {
	return "submission_documents"
}

// ============================================================
// Commission ledger
// ============================================================

// CommissionCalculation is the immutable audit row of one distribution
type CommissionCalculation struct {
	ID           uint                   `gorm:"primaryKey" json:"id"`
	SubmissionID uint                   `gorm:"uniqueIndex;not null" json:"submission_id"`
	Kind         domain.TransactionKind `gorm:"size:10;not null" json:"kind"`
	BaseAmount   decimal.Decimal        `gorm:"type:decimal(15,2);not null" json:"base_amount"`
	Rate         decimal.Decimal        `gorm:"type:decimal(7,2);not null" json:"rate"`
	RateSource   domain.RateSource      `gorm:"size:10;not null" json:"rate_source"`
	RawAmount    decimal.Decimal        `gorm:"type:decimal(15,2);not null" json:"raw_amount"`
	Amount       decimal.Decimal        `gorm:"type:decimal(15,2);not null" json:"amount"`
	Capped       bool                   `gorm:"not null" json:"capped"`
	CalculatedBy uint                   `gorm:"not null" json:"calculated_by"`
	CreatedAt    time.Time              `gorm:"autoCreateTime" json:"created_at"`
}

func (CommissionCalculation) TableName() string {
	return "commission_calculations"
}

// PayableRecord is one beneficiary's share of one submission's commission.
// (submission_id, beneficiary_id, share_type) is unique.
type PayableRecord struct {
	ID              uint                 `gorm:"primaryKey" json:"id"`
	SubmissionID    uint                 `gorm:"not null;uniqueIndex:idx_payable_share,priority:1" json:"submission_id"`
	BeneficiaryID   uint                 `gorm:"not null;uniqueIndex:idx_payable_share,priority:2;index" json:"beneficiary_id"`
	ShareType       domain.ShareType     `gorm:"size:20;not null;uniqueIndex:idx_payable_share,priority:3" json:"share_type"`
	Rate            decimal.Decimal      `gorm:"type:decimal(5,2);not null" json:"rate"`
	Amount          decimal.Decimal      `gorm:"type:decimal(15,2);not null" json:"amount"`
	Status          domain.PayableStatus `gorm:"size:20;not null;index" json:"status"`
	PaymentMethod   domain.PaymentMethod `gorm:"size:30" json:"payment_method"`
	TransactionRef  string               `gorm:"size:100" json:"transaction_ref"`
	PaymentDate     *time.Time           `json:"payment_date"`
	PaidBy          *uint                `json:"paid_by"`
	Notes           string               `gorm:"type:text" json:"notes"`
	RejectionReason string               `gorm:"type:text" json:"rejection_reason"`
	CreatedAt       time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time            `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Submission  *Submission `gorm:"foreignKey:SubmissionID" json:"submission,omitempty"`
	Beneficiary *Agent      `gorm:"foreignKey:BeneficiaryID" json:"beneficiary,omitempty"`
}

func (PayableRecord) TableName() string {
	return "payable_records"
}

// UplineCommission is the upline report view over payable_records
type UplineCommission struct {
	PayableRecordID uint                 `json:"payable_record_id"`
	SubmissionID    uint                 `json:"submission_id"`
	BeneficiaryID   uint                 `json:"beneficiary_id"`
	SellerID        uint                 `json:"seller_id"`
	CommissionType  string               `json:"commission_type"`
	CommissionRate  decimal.Decimal      `json:"commission_rate"`
	Amount          decimal.Decimal      `json:"amount"`
	Status          domain.PayableStatus `json:"status"`
	CreatedAt       time.Time            `json:"created_at"`
}

// ============================================================
// Vouchers & notifications
// ============================================================

// Voucher is the proof of payment of one paid payable record
type Voucher struct {
	ID              uint                 `gorm:"primaryKey" json:"id"`
	Number          string               `gorm:"size:40;uniqueIndex;not null" json:"number"`
	PayableRecordID uint                 `gorm:"uniqueIndex;not null" json:"payable_record_id"`
	BeneficiaryID   uint                 `gorm:"not null;index" json:"beneficiary_id"`
	Amount          decimal.Decimal      `gorm:"type:decimal(15,2);not null" json:"amount"`
	PaymentMethod   domain.PaymentMethod `gorm:"size:30" json:"payment_method"`
	TransactionRef  string               `gorm:"size:100" json:"transaction_ref"`
	PaymentDate     time.Time            `json:"payment_date"`
	EmailStatus     domain.EmailStatus   `gorm:"size:10;not null;index" json:"email_status"`
	EmailSentAt     *time.Time           `json:"email_sent_at"`
	EmailError      string               `gorm:"type:text" json:"email_error"`
	EmailAttempts   int                  `gorm:"not null;default:0" json:"email_attempts"`
	CreatedAt       time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time            `gorm:"autoUpdateTime" json:"updated_at"`

	PayableRecord *PayableRecord `gorm:"foreignKey:PayableRecordID" json:"payable_record,omitempty"`
	Beneficiary   *Agent         `gorm:"foreignKey:BeneficiaryID" json:"beneficiary,omitempty"`
}

func (Voucher) TableName() string {
	return "vouchers"
}

// EmailLog records every delivery attempt
type EmailLog struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	VoucherID      *uint              `gorm:"index" json:"voucher_id"`
	NotificationID *uint              `gorm:"index" json:"notification_id"`
	Recipient      string             `gorm:"size:100" json:"recipient"`
	Subject        string             `gorm:"size:255" json:"subject"`
	Status         domain.EmailStatus `gorm:"size:10;not null" json:"status"`
	Error          string             `gorm:"type:text" json:"error"`
	CreatedAt      time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

func (EmailLog) TableName() string {
	return "email_logs"
}

// Notification is an in-app notification addressed to an agent
type Notification struct {
	ID           uint                     `gorm:"primaryKey" json:"id"`
	AgentID      uint                     `gorm:"not null;index" json:"agent_id"`
	Event        domain.NotificationEvent `gorm:"size:40;not null" json:"event"`
	Title        string                   `gorm:"size:200;not null" json:"title"`
	Message      string                   `gorm:"type:text" json:"message"`
	Priority     domain.Priority          `gorm:"size:10;not null" json:"priority"`
	SubmissionID *uint                    `gorm:"index" json:"submission_id"`
	IsRead       bool                     `gorm:"default:false" json:"is_read"`
	ReadAt       *time.Time               `json:"read_at"`
	ExpiresAt    time.Time                `gorm:"not null;index" json:"expires_at"`
	CreatedAt    time.Time                `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// AutoMigrate creates or updates all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Agent{},
		&Project{},
		&Unit{},
		&Submission{},
		&SubmissionDocument{},
		&CommissionCalculation{},
		&PayableRecord{},
		&Voucher{},
		&EmailLog{},
		&Notification{},
	)
}
