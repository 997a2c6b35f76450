package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"estate-commission/internal/config"

	"github.com/robfig/cron/v3"
)

// CronService runs the background housekeeping jobs
type CronService struct {
	cron          *cron.Cron
	notifications *NotificationService
	vouchers      *VoucherService
	cfg           config.CronConfig
	log           *slog.Logger
}

// NewCronService creates a new cron service
func NewCronService(notifications *NotificationService, vouchers *VoucherService, cfg config.CronConfig, log *slog.Logger) *CronService {
	return &CronService{
		cron:          cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		notifications: notifications,
		vouchers:      vouchers,
		cfg:           cfg,
		log:           log,
	}
}

// Start registers the jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.PurgeSpec, s.purgeNotifications); err != nil {
		return fmt.Errorf("schedule notification purge: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.EmailRetrySpec, s.retryVoucherEmails); err != nil {
		return fmt.Errorf("schedule voucher email retry: %w", err)
	}
	s.cron.Start()
	s.log.Info("cron service started",
		slog.String("purge", s.cfg.PurgeSpec),
		slog.String("email_retry", s.cfg.EmailRetrySpec),
	)
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("cron service stopped")
}

func (s *CronService) purgeNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.notifications.PurgeExpired(ctx); err != nil {
		s.log.Error("notification purge failed", slog.String("error", err.Error()))
	}
}

func (s *CronService) retryVoucherEmails() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sent, failed, err := s.vouchers.RetryFailed(ctx, s.cfg.EmailRetryBatch)
	if err != nil {
		s.log.Error("voucher email retry failed", slog.String("error", err.Error()))
		return
	}
	if sent+failed > 0 {
		s.log.Info("voucher email retry", slog.Int("sent", sent), slog.Int("failed", failed))
	}
}
