package gormstore

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/repository"
)

var _ repository.UserRepository = (*UserDB)(nil)

// UserDB implements repository.UserRepository.
type UserDB struct {
	db *gorm.DB
}

// Create inserts user. Emails are stored lower-cased; a taken email or
// auth0 id is a conflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := u.db.WithContext(ctx).Create(user).Error; err != nil {
		return translate(err, "user", user.Email, "creating")
	}
	return nil
}

// GetUserByID loads one user by primary key.
func (u *UserDB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := u.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err, "user", id, "getting")
	}
	return &user, nil
}

// GetByEmail matches on the lower-cased email.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user model.User
	if err := u.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err, "user", email, "getting")
	}
	return &user, nil
}

// GetByAuth0ID finds the account linked to an Auth0 subject.
func (u *UserDB) GetByAuth0ID(ctx context.Context, auth0ID string) (*model.User, error) {
	var user model.User
	if err := u.db.WithContext(ctx).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		return nil, translate(err, "user", auth0ID, "getting")
	}
	return &user, nil
}

// Update writes the mutable profile columns, role and auth0 link.
// Email and password hash are not touched.
func (u *UserDB) Update(ctx context.Context, user *model.User) error {
	res := u.db.WithContext(ctx).
		Model(user).
		Select("full_name", "phone_number", "city", "role", "auth0_id", "updated_at").
		Updates(user)
	if res.Error != nil {
		return translate(res.Error, "user", user.ID, "updating")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "user", user.ID, "updating")
	}
	return nil
}

// List orders users newest first.
func (u *UserDB) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	var users []model.User
	q := paginate(u.db.WithContext(ctx).Order("created_at DESC"), opts.Limit, opts.Offset)
	if err := q.Find(&users).Error; err != nil {
		return nil, translate(err, "user", "*", "listing")
	}
	return users, nil
}
