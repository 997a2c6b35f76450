package repositories

import (
	"context"
	"time"

	"estate-commission/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// NotificationRepository handles notification data access
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create creates a notification
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ListActive lists unexpired notifications of an agent, newest first
func (r *NotificationRepository) ListActive(ctx context.Context, agentID uint, now time.Time, offset, limit int) ([]*models.Notification, int64, error) {
	var items []*models.Notification
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("agent_id = ? AND expires_at > ?", agentID, now)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error

	return items, total, err
}

// MarkRead marks an agent's notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id, agentID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND agent_id = ?", id, agentID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

// DeleteExpired removes notifications whose expiry is at or before now
func (r *NotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
