package gormstore

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/repository"
)

var (
	_ repository.CategoryRepository = (*CategoryDB)(nil)
	_ repository.AgencyRepository   = (*AgencyDB)(nil)
)

// CategoryDB implements repository.CategoryRepository.
type CategoryDB struct {
	db *gorm.DB
}

// Create inserts category. A taken name is a conflict.
func (c *CategoryDB) Create(ctx context.Context, category *model.Category) error {
	if err := c.db.WithContext(ctx).Create(category).Error; err != nil {
		return translate(err, "category", category.Name, "creating")
	}
	return nil
}

// GetByID loads one category.
func (c *CategoryDB) GetByID(ctx context.Context, id string) (*model.Category, error) {
	var category model.Category
	if err := c.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		return nil, translate(err, "category", id, "getting")
	}
	return &category, nil
}

// List orders categories by name.
func (c *CategoryDB) List(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := c.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, translate(err, "category", "*", "listing")
	}
	return categories, nil
}

// AgencyDB implements repository.AgencyRepository.
type AgencyDB struct {
	db *gorm.DB
}

// Create inserts agency. A taken name is a conflict.
func (a *AgencyDB) Create(ctx context.Context, agency *model.Agency) error {
	if err := a.db.WithContext(ctx).Create(agency).Error; err != nil {
		return translate(err, "agency", agency.Name, "creating")
	}
	return nil
}

// GetByID loads one agency.
func (a *AgencyDB) GetByID(ctx context.Context, id string) (*model.Agency, error) {
	var agency model.Agency
	if err := a.db.WithContext(ctx).Where("id = ?", id).First(&agency).Error; err != nil {
		return nil, translate(err, "agency", id, "getting")
	}
	return &agency, nil
}

// GetByName matches case-insensitively, since classifier output rarely
// reproduces the stored casing.
func (a *AgencyDB) GetByName(ctx context.Context, name string) (*model.Agency, error) {
	name = strings.TrimSpace(name)
	var agency model.Agency
	err := a.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		First(&agency).Error
	if err != nil {
		return nil, translate(err, "agency", name, "getting")
	}
	return &agency, nil
}

// List orders agencies by name.
func (a *AgencyDB) List(ctx context.Context) ([]model.Agency, error) {
	var agencies []model.Agency
	if err := a.db.WithContext(ctx).Order("name ASC").Find(&agencies).Error; err != nil {
		return nil, translate(err, "agency", "*", "listing")
	}
	return agencies, nil
}
