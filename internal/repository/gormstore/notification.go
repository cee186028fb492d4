package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/repository"
)

var _ repository.NotificationRepository = (*NotificationDB)(nil)

// NotificationDB implements repository.NotificationRepository over the
// notifications and notification_preferences tables.
type NotificationDB struct {
	db *gorm.DB
}

// Create inserts one notification.
func (n *NotificationDB) Create(ctx context.Context, notification *model.Notification) error {
	if err := n.db.WithContext(ctx).Create(notification).Error; err != nil {
		return translate(err, "notification", notification.UserID, "creating")
	}
	return nil
}

// ListForUser returns userID's notifications, newest first.
func (n *NotificationDB) ListForUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Notification, error) {
	q := n.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC")
	q = paginate(q, opts.Limit, opts.Offset)

	var out []model.Notification
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err, "notification", userID, "listing")
	}
	return out, nil
}

// MarkRead flags one of userID's notifications. Another user's
// notification is reported as not found.
func (n *NotificationDB) MarkRead(ctx context.Context, userID, id string) error {
	res := n.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return translate(res.Error, "notification", id, "updating")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "notification", id, "updating")
	}
	return nil
}

// GetPreferences returns a not-found error when the user never saved any.
func (n *NotificationDB) GetPreferences(ctx context.Context, userID string) (*model.NotificationPreferences, error) {
	var prefs model.NotificationPreferences
	if err := n.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error; err != nil {
		return nil, translate(err, "notification preferences", userID, "getting")
	}
	return &prefs, nil
}

// SavePreferences inserts or replaces the row for prefs.UserID.
func (n *NotificationDB) SavePreferences(ctx context.Context, prefs *model.NotificationPreferences) error {
	prefs.UpdatedAt = time.Now()
	err := n.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email_enabled", "sms_enabled", "in_app_enabled", "updated_at"}),
	}).Create(prefs).Error
	if err != nil {
		return translate(err, "notification preferences", prefs.UserID, "saving")
	}
	return nil
}
