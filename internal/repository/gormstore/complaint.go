package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/repository"
)

var _ repository.ComplaintRepository = (*ComplaintDB)(nil)

// ComplaintDB implements repository.ComplaintRepository.
type ComplaintDB struct {
	db *gorm.DB
}

// Create inserts complaint. A tracking code collision surfaces as a
// conflict so the caller can regenerate.
func (c *ComplaintDB) Create(ctx context.Context, complaint *model.Complaint) error {
	err := c.db.WithContext(ctx).Omit("Category", "Agency", "User").Create(complaint).Error
	if err != nil {
		return translate(err, "complaint", complaint.TrackingCode, "creating")
	}
	return nil
}

func (c *ComplaintDB) withRefs(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx).Preload("Category").Preload("Agency")
}

// GetByID loads one complaint with its category and agency.
func (c *ComplaintDB) GetByID(ctx context.Context, id string) (*model.Complaint, error) {
	var complaint model.Complaint
	if err := c.withRefs(ctx).Where("id = ?", id).First(&complaint).Error; err != nil {
		return nil, translate(err, "complaint", id, "getting")
	}
	return &complaint, nil
}

// GetByTrackingCode expects an already normalized code.
func (c *ComplaintDB) GetByTrackingCode(ctx context.Context, code string) (*model.Complaint, error) {
	var complaint model.Complaint
	if err := c.withRefs(ctx).Where("tracking_code = ?", code).First(&complaint).Error; err != nil {
		return nil, translate(err, "complaint", code, "getting")
	}
	return &complaint, nil
}

// List returns complaints matching filter, newest first.
func (c *ComplaintDB) List(ctx context.Context, filter repository.ComplaintFilter) ([]model.Complaint, error) {
	q := c.withRefs(ctx)
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}
	if filter.AgencyID != "" {
		q = q.Where("agency_id = ?", filter.AgencyID)
	}
	if filter.CategoryID != "" {
		q = q.Where("category_id = ?", filter.CategoryID)
	}
	q = paginate(q.Order("created_at DESC").Order("id DESC"), filter.Limit, filter.Offset)

	var complaints []model.Complaint
	if err := q.Find(&complaints).Error; err != nil {
		return nil, translate(err, "complaint", "*", "listing")
	}
	return complaints, nil
}

// UpdateTriage writes the staff-controlled columns. The tracking code and
// reporter fields are never part of the statement.
func (c *ComplaintDB) UpdateTriage(ctx context.Context, complaint *model.Complaint) error {
	complaint.UpdatedAt = time.Now()
	res := c.db.WithContext(ctx).
		Model(&model.Complaint{}).
		Where("id = ?", complaint.ID).
		Updates(map[string]any{
			"status":      complaint.Status,
			"priority":    complaint.Priority,
			"agency_id":   complaint.AgencyID,
			"staff_notes": complaint.StaffNotes,
			"updated_at":  complaint.UpdatedAt,
		})
	if res.Error != nil {
		return translate(res.Error, "complaint", complaint.ID, "updating")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "complaint", complaint.ID, "updating")
	}
	return nil
}
