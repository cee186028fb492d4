package model

import (
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

// Status is a complaint's position in its resolution lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
)

// Valid reports whether s is one of the four statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Priority is the triage priority set by staff.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is low, medium or high.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Complaint is a citizen report.
//
// Invariants:
//   - CategoryID is always set.
//   - UserID nil means the complaint is anonymous; ContactEmail and
//     ContactPhone may then carry the only way to reach the reporter.
//   - TrackingCode is unique and never rewritten after creation; update
//     paths in the repository select explicit columns that exclude it.
type Complaint struct {
	ID             string    `gorm:"primaryKey;size:20"`
	Title          string    `gorm:"size:200;not null"`
	Description    string    `gorm:"type:text;not null"`
	Location       *string   `gorm:"size:255"`
	SentimentScore *float64
	Language       *string   `gorm:"size:16"`
	Status         Status    `gorm:"size:20;not null;index"`
	Priority       Priority  `gorm:"size:10;not null"`
	TrackingCode   string    `gorm:"size:40;uniqueIndex;not null"`
	ContactEmail   *string   `gorm:"size:255"`
	ContactPhone   *string   `gorm:"size:32"`
	StaffNotes     *string   `gorm:"type:text"`

	UserID     *string   `gorm:"size:20;index"`
	User       *User     `gorm:"foreignKey:UserID"`
	CategoryID string    `gorm:"size:20;not null;index"`
	Category   Category  `gorm:"foreignKey:CategoryID"`
	AgencyID   *string   `gorm:"size:20;index"`
	Agency     *Agency   `gorm:"foreignKey:AgencyID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate assigns an xid when the id is empty.
func (c *Complaint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = xid.New().String()
	}
	return nil
}

// IsAnonymous reports whether the complaint has no owning user.
func (c *Complaint) IsAnonymous() bool {
	return c.UserID == nil || *c.UserID == ""
}

// ComplaintView is the flattened API representation of a complaint, with
// the category and agency names pulled up next to their ids.
type ComplaintView struct {
	ID             string    `json:"id"`
	TrackingCode   string    `json:"trackingCode"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Location       *string   `json:"location"`
	Status         Status    `json:"status"`
	Priority       Priority  `json:"priority"`
	SentimentScore *float64  `json:"sentimentScore"`
	Language       *string   `json:"language"`
	ContactEmail   *string   `json:"contactEmail,omitempty"`
	ContactPhone   *string   `json:"contactPhone,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	CategoryID     string    `json:"categoryId"`
	CategoryName   string    `json:"categoryName"`
	AgencyID       *string   `json:"agencyId"`
	AgencyName     *string   `json:"agencyName"`
	UserID         *string   `json:"userId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewComplaintView flattens c. Category and Agency must be preloaded for
// the names to be filled.
func NewComplaintView(c *Complaint) ComplaintView {
	v := ComplaintView{
		ID:             c.ID,
		TrackingCode:   c.TrackingCode,
		Title:          c.Title,
		Description:    c.Description,
		Location:       c.Location,
		Status:         c.Status,
		Priority:       c.Priority,
		SentimentScore: c.SentimentScore,
		Language:       c.Language,
		ContactEmail:   c.ContactEmail,
		ContactPhone:   c.ContactPhone,
		Notes:          c.StaffNotes,
		CategoryID:     c.CategoryID,
		CategoryName:   c.Category.Name,
		AgencyID:       c.AgencyID,
		UserID:         c.UserID,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.Agency != nil {
		name := c.Agency.Name
		v.AgencyName = &name
	}
	return v
}

// PublicComplaintView is the tracking-lookup projection: no contact
// details, staff notes or owner id.
func PublicComplaintView(c *Complaint) ComplaintView {
	v := NewComplaintView(c)
	v.ContactEmail = nil
	v.ContactPhone = nil
	v.Notes = nil
	v.UserID = nil
	return v
}

// NewComplaintViews flattens a slice of complaints.
func NewComplaintViews(cs []Complaint) []ComplaintView {
	views := make([]ComplaintView, 0, len(cs))
	for i := range cs {
		views = append(views, NewComplaintView(&cs[i]))
	}
	return views
}
