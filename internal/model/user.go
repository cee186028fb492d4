// Package model defines the persisted entities and the response projections
// built from them. Entities carry gorm tags for the relational schema and
// json tags for the API.
package model

import (
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

// Role is a user's authorization level.
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleDepartmentManager Role = "department_manager"
	RoleDepartmentStaff   Role = "department_staff"
	RoleCitizen           Role = "citizen"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDepartmentManager, RoleDepartmentStaff, RoleCitizen:
		return true
	}
	return false
}

// StaffRoles are the roles allowed on the complaint administration routes.
var StaffRoles = []Role{RoleAdmin, RoleDepartmentManager, RoleDepartmentStaff}

// User is a local account. It is created either by first-party
// registration (Password set) or lazily on first Auth0 login (Auth0ID set,
// Password nil).
//
// Password holds the bcrypt hash and is never serialized.
type User struct {
	ID          string    `gorm:"primaryKey;size:20"                  json:"id"`
	FullName    string    `gorm:"size:120;not null"                   json:"fullName"`
	Email       string    `gorm:"size:255;uniqueIndex;not null"       json:"email"`
	Password    *string   `gorm:"size:72"                             json:"-"`
	PhoneNumber *string   `gorm:"size:32"                             json:"phoneNumber"`
	City        *string   `gorm:"size:120"                            json:"city"`
	Role        Role      `gorm:"size:32;not null;default:'citizen'"  json:"role"`
	Auth0ID     *string   `gorm:"column:auth0_id;size:128;uniqueIndex" json:"auth0Id,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BeforeCreate assigns an xid when the caller did not set an ID.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = xid.New().String()
	}
	return nil
}

// HasRole reports whether the user's role is in roles.
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
