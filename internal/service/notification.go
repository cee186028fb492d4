package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/civic-complaints/internal/apperror"
	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/repository"
)

var _ StatusNotifier = (*NotificationService)(nil)

// NotificationService stores in-app notifications and each user's
// delivery preferences.
type NotificationService struct {
	repo   repository.NotificationRepository
	logger *slog.Logger
}

// NewNotificationService returns a service backed by repo.
func NewNotificationService(repo repository.NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

// ComplaintStatusChanged leaves an in-app message for the complaint owner
// unless they turned in-app delivery off. Anonymous complaints are skipped.
func (s *NotificationService) ComplaintStatusChanged(ctx context.Context, c *model.Complaint, previous model.Status) error {
	if c.IsAnonymous() {
		return nil
	}
	userID := *c.UserID

	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return err
	}
	if !prefs.InAppEnabled {
		s.logger.Debug("in-app notification disabled", slog.String("user_id", userID))
		return nil
	}

	complaintID := c.ID
	n := &model.Notification{
		UserID:      userID,
		ComplaintID: &complaintID,
		Type:        model.NotificationTypeStatusChanged,
		Message:     fmt.Sprintf("Your complaint %s changed from %s to %s", c.TrackingCode, previous, c.Status),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("recording notification for %s: %w", userID, err)
	}
	return nil
}

// List returns userID's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, limit, offset int) ([]model.Notification, error) {
	limit, offset = page(limit, offset)
	out, err := s.repo.ListForUser(ctx, userID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing notifications for %s: %w", userID, err)
	}
	return out, nil
}

// MarkRead flags one notification as read. A notification that belongs
// to someone else is reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkRead(ctx, userID, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMessage("Notification not found")
		}
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// Preferences returns the stored flags, or the defaults if none are stored.
func (s *NotificationService) Preferences(ctx context.Context, userID string) (*model.NotificationPreferences, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return model.DefaultNotificationPreferences(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading preferences for %s: %w", userID, err)
	}
	return prefs, nil
}

// PreferencesInput replaces all three flags at once.
type PreferencesInput struct {
	EmailEnabled bool `json:"emailEnabled"`
	SMSEnabled   bool `json:"smsEnabled"`
	InAppEnabled bool `json:"inAppEnabled"`
}

// UpdatePreferences replaces all three flags.
func (s *NotificationService) UpdatePreferences(ctx context.Context, userID string, in PreferencesInput) (*model.NotificationPreferences, error) {
	prefs := &model.NotificationPreferences{
		UserID:       userID,
		EmailEnabled: in.EmailEnabled,
		SMSEnabled:   in.SMSEnabled,
		InAppEnabled: in.InAppEnabled,
	}
	if err := s.repo.SavePreferences(ctx, prefs); err != nil {
		return nil, fmt.Errorf("saving preferences for %s: %w", userID, err)
	}
	return prefs, nil
}
