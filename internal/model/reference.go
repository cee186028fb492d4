package model

import (
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

// Category is static reference data. Every complaint references exactly one.
type Category struct {
	ID          string    `gorm:"primaryKey;size:20"             json:"id"`
	Name        string    `gorm:"size:120;uniqueIndex;not null"  json:"name"`
	Description *string   `gorm:"type:text"                      json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BeforeCreate assigns an xid when the id is empty.
func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = xid.New().String()
	}
	return nil
}

// Agency is a government department a complaint can be routed to.
type Agency struct {
	ID           string    `gorm:"primaryKey;size:20"             json:"id"`
	Name         string    `gorm:"size:160;uniqueIndex;not null"  json:"name"`
	ContactEmail string    `gorm:"size:255"                       json:"contactEmail"`
	Description  string    `gorm:"type:text"                      json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BeforeCreate assigns an xid when the id is empty.
func (a *Agency) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = xid.New().String()
	}
	return nil
}
