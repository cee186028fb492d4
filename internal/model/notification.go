package model

import (
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

const NotificationTypeStatusChanged = "complaint_status_changed"

// Notification is an in-app message for a user.
type Notification struct {
	ID          string    `gorm:"primaryKey;size:20"    json:"id"`
	UserID      string    `gorm:"size:20;not null;index" json:"userId"`
	ComplaintID *string   `gorm:"size:20;index"         json:"complaintId"`
	Type        string    `gorm:"size:64;not null"      json:"type"`
	Message     string    `gorm:"type:text;not null"    json:"message"`
	Read        bool      `gorm:"not null"              json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BeforeCreate assigns an xid when the id is empty.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = xid.New().String()
	}
	return nil
}

// NotificationPreferences are a user's delivery flags. A missing row means
// DefaultNotificationPreferences.
//
// The bool columns carry no gorm default tag: gorm skips zero values on
// insert when a default exists, which would turn an explicit false into true.
type NotificationPreferences struct {
	UserID       string    `gorm:"primaryKey;size:20" json:"-"`
	EmailEnabled bool      `gorm:"not null"           json:"emailEnabled"`
	SMSEnabled   bool      `gorm:"column:sms_enabled;not null" json:"smsEnabled"`
	InAppEnabled bool      `gorm:"not null"           json:"inAppEnabled"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DefaultNotificationPreferences is what a user has before saving any:
// email and in-app on, SMS off.
func DefaultNotificationPreferences(userID string) *NotificationPreferences {
	return &NotificationPreferences{
		UserID:       userID,
		EmailEnabled: true,
		SMSEnabled:   false,
		InAppEnabled: true,
	}
}
