// Package repository declares the persistence interfaces the service layer
// depends on. The gormstore package implements them.
//
// Lookups that find nothing return an error matching apperror.ErrNotFound;
// unique-constraint violations return one matching apperror.ErrConflict.
package repository

import (
	"context"

	"github.com/sakif/civic-complaints/internal/model"
)

// ListOptions pages a listing. Services clamp the values before they get
// here.
type ListOptions struct {
	Limit  int
	Offset int
}

// ComplaintFilter narrows a complaint listing. Zero-value fields are ignored.
type ComplaintFilter struct {
	UserID     string
	Status     model.Status
	Priority   model.Priority
	AgencyID   string
	CategoryID string
	ListOptions
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByAuth0ID(ctx context.Context, auth0ID string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	GetByID(ctx context.Context, id string) (*model.Category, error)
	List(ctx context.Context) ([]model.Category, error)
}

type AgencyRepository interface {
	Create(ctx context.Context, agency *model.Agency) error
	GetByID(ctx context.Context, id string) (*model.Agency, error)
	GetByName(ctx context.Context, name string) (*model.Agency, error)
	List(ctx context.Context) ([]model.Agency, error)
}

type ComplaintRepository interface {
	Create(ctx context.Context, complaint *model.Complaint) error
	// GetByID and GetByTrackingCode preload Category and Agency.
	GetByID(ctx context.Context, id string) (*model.Complaint, error)
	GetByTrackingCode(ctx context.Context, code string) (*model.Complaint, error)
	List(ctx context.Context, filter ComplaintFilter) ([]model.Complaint, error)
	// UpdateTriage persists status, priority, agency and staff notes only.
	UpdateTriage(ctx context.Context, complaint *model.Complaint) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListForUser(ctx context.Context, userID string, opts ListOptions) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	GetPreferences(ctx context.Context, userID string) (*model.NotificationPreferences, error)
	SavePreferences(ctx context.Context, prefs *model.NotificationPreferences) error
}
