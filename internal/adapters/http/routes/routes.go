package routes

import (
	"estate-commission/internal/adapters/http/handlers"
	"estate-commission/internal/adapters/http/middleware"
	"estate-commission/internal/config"
	"estate-commission/internal/core/services"
	"estate-commission/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, svc *services.Services, cfg *config.Config) {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.AppMode)
	authHandler := handlers.NewAuthHandler(svc.Auth, cfg)
	agentHandler := handlers.NewAgentHandler(svc.Agents, svc.Summaries, svc.Payments)
	submissionHandler := handlers.NewSubmissionHandler(svc.Submissions, svc.Distribution, svc.Payments)
	payableHandler := handlers.NewPayableHandler(svc.Payments, svc.Vouchers)
	voucherHandler := handlers.NewVoucherHandler(svc.Vouchers)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	dashboardHandler := handlers.NewDashboardHandler(svc.Dashboard)
	userHandler := handlers.NewUserHandler(svc.Users)

	// ============================================================
	// Health check & root routes
	// ============================================================
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	api := app.Group("/api/v1")
	api.Get("/", healthHandler.APIInfo)

	auth := middleware.AuthMiddleware(cfg)
	adminOnly := middleware.AdminOnly()

	// ============================================================
	// Auth routes
	// ============================================================
	authRoutes := api.Group("/auth")
	authRoutes.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/me", auth, authHandler.Me)

	// ============================================================
	// User routes
	// ============================================================
	users := api.Group("/users", auth)
	users.Put("/me/password", userHandler.ChangePassword)
	users.Get("/", adminOnly, userHandler.ListUsers)
	users.Put("/:id", adminOnly, userHandler.UpdateUser)

	// ============================================================
	// Agent routes
	// ============================================================
	agents := api.Group("/agents", auth)
	agents.Post("/", adminOnly, agentHandler.CreateAgent)
	agents.Get("/", adminOnly, agentHandler.ListAgents)
	agents.Get("/:id", agentHandler.GetAgent)
	agents.Put("/:id/rates", adminOnly, agentHandler.UpdateRates)
	agents.Put("/:id/upline", adminOnly, agentHandler.AssignUpline)
	agents.Get("/:id/downlines", agentHandler.Downlines)
	agents.Get("/:id/upline-commissions", agentHandler.UplineCommissions)
	agents.Get("/:id/summary", agentHandler.Summary)
	agents.Post("/:id/recompute", adminOnly, agentHandler.Recompute)

	// ============================================================
	// Submission routes
	// ============================================================
	submissions := api.Group("/submissions", auth)
	submissions.Post("/", submissionHandler.CreateSubmission)
	submissions.Get("/", submissionHandler.ListSubmissions)
	submissions.Get("/:id", submissionHandler.GetSubmission)
	submissions.Post("/:id/submit", submissionHandler.Submit)
	submissions.Post("/:id/approve", adminOnly, submissionHandler.Approve)
	submissions.Post("/:id/distribute", adminOnly, submissionHandler.Distribute)
	submissions.Post("/:id/reject", adminOnly, submissionHandler.Reject)
	submissions.Post("/:id/draft", submissionHandler.ReturnToDraft)
	submissions.Post("/:id/documents", submissionHandler.AddDocument)
	submissions.Get("/:id/documents", submissionHandler.Documents)
	submissions.Post("/:id/recompute", adminOnly, submissionHandler.Recompute)

	// ============================================================
	// Payable routes
	// ============================================================
	payables := api.Group("/payables", auth)
	payables.Get("/", payableHandler.ListPayables)
	payables.Post("/batch-mark-paid", adminOnly, middleware.StrictRateLimiter(), payableHandler.BatchMarkPaid)
	payables.Get("/:id", payableHandler.GetPayable)
	payables.Post("/:id/processing", adminOnly, payableHandler.MarkProcessing)
	payables.Post("/:id/mark-paid", adminOnly, payableHandler.MarkPaid)
	payables.Post("/:id/reject", adminOnly, payableHandler.Reject)
	payables.Get("/:id/voucher", payableHandler.Voucher)

	// ============================================================
	// Voucher routes
	// ============================================================
	vouchers := api.Group("/vouchers", auth)
	vouchers.Get("/:id", voucherHandler.GetVoucher)
	vouchers.Get("/:id/email-logs", voucherHandler.EmailLogs)
	vouchers.Post("/:id/resend", adminOnly, voucherHandler.Resend)

	// ============================================================
	// Notification routes
	// ============================================================
	notifications := api.Group("/notifications", auth)
	notifications.Get("/", notificationHandler.ListNotifications)
	notifications.Post("/:id/read", notificationHandler.MarkRead)

	// ============================================================
	// Dashboard routes
	// ============================================================
	api.Get("/dashboard", auth, adminOnly, dashboardHandler.GetAdminDashboard)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return response.NotFound(c, "Route not found")
	})
}
