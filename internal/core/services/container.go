package services

import (
	"log/slog"

	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/config"
	"estate-commission/internal/pkg/mailer"

	"gorm.io/gorm"
)

// Services holds the wired application services
type Services struct {
	Auth          *AuthService
	Users         *UserService
	Agents        *AgentService
	Hierarchy     *HierarchyService
	Distribution  *DistributionService
	Submissions   *SubmissionService
	Payments      *PaymentService
	Vouchers      *VoucherService
	Notifications *NotificationService
	Summaries     *SummaryService
	Dashboard     *DashboardService
}

// NewServices wires repositories and services over db. A nil cache disables
// summary caching.
func NewServices(db *gorm.DB, cfg *config.Config, mail mailer.Mailer, cache SummaryCache, log *slog.Logger) *Services {
	// Repositories
	userRepo := repositories.NewUserRepository(db)
	agentRepo := repositories.NewAgentRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	submissionRepo := repositories.NewSubmissionRepository(db)
	documentRepo := repositories.NewDocumentRepository(db)
	payableRepo := repositories.NewPayableRepository(db)
	calcRepo := repositories.NewCalculationRepository(db)
	voucherRepo := repositories.NewVoucherRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	// Commission core
	resolver := NewRateResolver(cfg.Commission)
	hierarchy := NewHierarchyService(db, agentRepo, log)
	distribution := NewDistributionService(db, submissionRepo, agentRepo, projectRepo, payableRepo, calcRepo, hierarchy, resolver, cache, cfg.Commission, log)

	// Delivery
	vouchers := NewVoucherService(voucherRepo, mail, cfg.Voucher, log)
	notifications := NewNotificationService(notificationRepo, agentRepo, voucherRepo, mail, cfg.Notification, log)

	return &Services{
		Auth:          NewAuthService(userRepo, cfg.JWT, log),
		Users:         NewUserService(userRepo, log),
		Agents:        NewAgentService(db, agentRepo, payableRepo, hierarchy, cfg.Commission, log),
		Hierarchy:     hierarchy,
		Distribution:  distribution,
		Submissions:   NewSubmissionService(db, submissionRepo, documentRepo, projectRepo, agentRepo, distribution, notifications, cache, cfg.Commission, log),
		Payments:      NewPaymentService(db, payableRepo, agentRepo, submissionRepo, vouchers, notifications, cache, cfg, log),
		Vouchers:      vouchers,
		Notifications: notifications,
		Summaries:     NewSummaryService(agentRepo, payableRepo, cache),
		Dashboard:     NewDashboardService(db),
	}
}
