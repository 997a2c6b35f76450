package domain

import "github.com/shopspring/decimal"

// Role represents the actor role carried in the access token
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID  uint
	AgentID *uint
	Role    Role
}

// IsAdmin reports whether the actor has the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// OwnsAgent reports whether the actor is the given agent
func (a Actor) OwnsAgent(agentID uint) bool {
	return a.AgentID != nil && *a.AgentID == agentID
}

// TransactionKind is the kind of property transaction a submission records
type TransactionKind string

const (
	KindSale   TransactionKind = "sale"
	KindRental TransactionKind = "rental"
)

// SubmissionStatus is the listing lifecycle state
type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionApproved  SubmissionStatus = "approved"
	SubmissionRejected  SubmissionStatus = "rejected"
)

// PayableStatus is the payment state of one ledger row
type PayableStatus string

const (
	PayablePending    PayableStatus = "pending"
	PayableProcessing PayableStatus = "processing"
	PayablePaid       PayableStatus = "paid"
	PayableRejected   PayableStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed
func (s PayableStatus) IsTerminal() bool {
	return s == PayablePaid || s == PayableRejected
}

// ShareType tags which beneficiary slot a ledger row pays
type ShareType string

const (
	ShareSelf           ShareType = "self"
	ShareDirectUpline   ShareType = "direct_upline"
	ShareIndirectUpline ShareType = "indirect_upline"
)

// CommissionType is the upline report label for a share
func (s ShareType) CommissionType() string {
	switch s {
	case ShareDirectUpline:
		return "direct"
	case ShareIndirectUpline:
		return "indirect"
	default:
		return "self"
	}
}

// RateSource records where a resolved commission rate came from
type RateSource string

const (
	RateSourceUnit    RateSource = "unit"
	RateSourceProject RateSource = "project"
	RateSourceDefault RateSource = "default"
)

// PaymentMethod is how a payable was settled
type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCash         PaymentMethod = "cash"
	MethodCheque       PaymentMethod = "cheque"
	MethodEWallet      PaymentMethod = "e_wallet"
)

// EmailStatus is the delivery state of a voucher email
type EmailStatus string

const (
	EmailPending EmailStatus = "pending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
)

// NotificationEvent names the transitions that produce notifications
type NotificationEvent string

const (
	EventSubmissionApproved  NotificationEvent = "submission_approved"
	EventSubmissionRejected  NotificationEvent = "submission_rejected"
	EventDocumentsIncomplete NotificationEvent = "documents_incomplete"
	EventReturnedToDraft     NotificationEvent = "status_returned_to_draft"
	EventPayablePaid         NotificationEvent = "payable_paid"
)

// Priority is the severity of a notification
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Hundred is used to turn percentages into fractions
var Hundred = decimal.NewFromInt(100)

// RoundMoney rounds an amount to two decimals for persistence
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// PercentOf returns amount * pct / 100 without rounding
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(Hundred)
}
