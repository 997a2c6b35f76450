package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/adapters/persistence/repositories"
	"estate-commission/internal/config"
	"estate-commission/internal/core/domain"
	"estate-commission/internal/pkg/mailer"
)

// NotificationService records in-app notifications for agents and optionally
// mirrors them by email
type NotificationService struct {
	notificationRepo *repositories.NotificationRepository
	agentRepo        *repositories.AgentRepository
	voucherRepo      *repositories.VoucherRepository
	mailer           mailer.Mailer
	cfg              config.NotificationConfig
	log              *slog.Logger
	now              func() time.Time
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	notificationRepo *repositories.NotificationRepository,
	agentRepo *repositories.AgentRepository,
	voucherRepo *repositories.VoucherRepository,
	m mailer.Mailer,
	cfg config.NotificationConfig,
	log *slog.Logger,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		agentRepo:        agentRepo,
		voucherRepo:      voucherRepo,
		mailer:           m,
		cfg:              cfg,
		log:              log,
		now:              time.Now,
	}
}

// DocumentPriority maps the number of attached documents to the priority of
// a documents_incomplete notification. ok is false when nothing is missing.
func DocumentPriority(count, required int) (p domain.Priority, ok bool) {
	if count >= required {
		return "", false
	}
	switch count {
	case 0:
		return domain.PriorityUrgent, true
	case 1:
		return domain.PriorityHigh, true
	default:
		return domain.PriorityNormal, true
	}
}

// Notify records a notification for agentID about a submission event. extra
// may carry "reason", "amount", "priority" and "missing".
func (s *NotificationService) Notify(ctx context.Context, event domain.NotificationEvent, sub *models.Submission, agentID uint, extra map[string]string) (*models.Notification, error) {
	title, message, priority := composeNotification(event, sub, extra)

	n := &models.Notification{
		AgentID:   agentID,
		Event:     event,
		Title:     title,
		Message:   message,
		Priority:  priority,
		ExpiresAt: s.now().Add(s.cfg.TTL),
	}
	if sub != nil {
		n.SubmissionID = &sub.ID
	}

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return nil, err
	}

	s.log.Info("notification created",
		slog.String("event", string(event)),
		slog.Uint64("agent_id", uint64(agentID)),
		slog.String("priority", string(priority)),
	)

	if s.cfg.EmailOnEvent {
		s.mirrorByEmail(ctx, n)
	}
	return n, nil
}

// NotifyDocumentsIncomplete notifies the owner of a submission with fewer than
// required documents. It returns nil when nothing is missing.
func (s *NotificationService) NotifyDocumentsIncomplete(ctx context.Context, sub *models.Submission, count, required int) (*models.Notification, error) {
	priority, ok := DocumentPriority(count, required)
	if !ok {
		return nil, nil
	}
	return s.Notify(ctx, domain.EventDocumentsIncomplete, sub, sub.AgentID, map[string]string{
		"priority": string(priority),
		"missing":  fmt.Sprintf("%d", required-count),
	})
}

// List lists the actor's unexpired notifications
func (s *NotificationService) List(ctx context.Context, actor domain.Actor, page Page) ([]*models.Notification, int64, error) {
	if actor.AgentID == nil {
		return []*models.Notification{}, 0, nil
	}
	return s.notificationRepo.ListActive(ctx, *actor.AgentID, s.now(), page.Offset, page.Limit)
}

// MarkRead marks one of the actor's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, actor domain.Actor, id uint) error {
	if actor.AgentID == nil {
		return domain.ErrForbidden
	}
	ok, err := s.notificationRepo.MarkRead(ctx, id, *actor.AgentID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: notification", domain.ErrNotFound)
	}
	return nil
}

// PurgeExpired deletes notifications past their expiry
func (s *NotificationService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.notificationRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired notifications purged", slog.Int64("count", n))
	}
	return n, nil
}

func (s *NotificationService) mirrorByEmail(ctx context.Context, n *models.Notification) {
	agent, err := s.agentRepo.GetByID(ctx, n.AgentID)
	if err != nil || strings.TrimSpace(agent.Email) == "" {
		return
	}

	msg := mailer.Message{To: []string{agent.Email}, Subject: n.Title, TextBody: n.Message}
	entry := &models.EmailLog{
		NotificationID: &n.ID,
		Recipient:      agent.Email,
		Subject:        n.Title,
		Status:         domain.EmailSent,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		entry.Status = domain.EmailFailed
		entry.Error = err.Error()
		s.log.Warn("notification email failed",
			slog.Uint64("notification_id", uint64(n.ID)),
			slog.String("error", err.Error()),
		)
	}
	if err := s.voucherRepo.CreateEmailLog(ctx, entry); err != nil {
		s.log.Error("failed to write email log", slog.String("error", err.Error()))
	}
}

func composeNotification(event domain.NotificationEvent, sub *models.Submission, extra map[string]string) (title, message string, priority domain.Priority) {
	ref := "your submission"
	if sub != nil {
		ref = fmt.Sprintf("submission #%d (%s)", sub.ID, sub.PropertyAddress)
	}

	switch event {
	case domain.EventSubmissionApproved:
		title = "Submission approved"
		message = fmt.Sprintf("Your %s has been approved.", ref)
		if amt := extra["amount"]; amt != "" {
			message += fmt.Sprintf(" Commission: %s.", amt)
		}
		priority = domain.PriorityNormal
	case domain.EventSubmissionRejected:
		title = "Submission rejected"
		message = fmt.Sprintf("Your %s has been rejected.", ref)
		if reason := extra["reason"]; reason != "" {
			message += " Reason: " + reason
		}
		priority = domain.PriorityHigh
	case domain.EventDocumentsIncomplete:
		title = "Documents incomplete"
		message = fmt.Sprintf("Your %s is missing %s document(s).", ref, extra["missing"])
		priority = domain.Priority(extra["priority"])
	case domain.EventReturnedToDraft:
		title = "Submission returned to draft"
		message = fmt.Sprintf("Your %s has been returned to draft and can be edited.", ref)
		priority = domain.PriorityNormal
	case domain.EventPayablePaid:
		title = "Commission paid"
		message = fmt.Sprintf("A commission payment for %s has been made.", ref)
		if amt := extra["amount"]; amt != "" {
			message = fmt.Sprintf("A commission payment of %s for %s has been made.", amt, ref)
		}
		priority = domain.PriorityLow
	default:
		title = string(event)
		message = ref
		priority = domain.PriorityNormal
	}

	if p := extra["priority"]; p != "" {
		priority = domain.Priority(p)
	}
	if priority == "" {
		priority = domain.PriorityNormal
	}
	return title, message, priority
}
