package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/civic-complaints/internal/apperror"
	"github.com/sakif/civic-complaints/internal/auth"
	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/repository"
)

var _ auth.UserLinker = (*AuthService)(nil)

const msgBadCredentials = "Invalid email or password"

// AuthService owns local accounts: registration, password login, the
// Auth0 account link, profiles and roles.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService wires the account logic. passwords decides the bcrypt
// cost; tests pass a cheap one. tokens may be nil when the caller only
// manages roles and never logs anyone in.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult is returned by every login path.
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// RegisterInput is the first-party sign-up form. Role is never taken
// from the caller: new accounts are citizens.
type RegisterInput struct {
	FullName    string `json:"fullName"    validate:"required,max=120"`
	Email       string `json:"email"       validate:"required,email,max=255"`
	Password    string `json:"password"    validate:"required,min=8,max=72"`
	PhoneNumber string `json:"phoneNumber" validate:"max=32"`
	City        string `json:"city"        validate:"max=120"`
}

// Register creates a citizen account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}

	user := &model.User{
		FullName:    in.FullName,
		Email:       in.Email,
		Password:    &hash,
		PhoneNumber: optional(in.PhoneNumber),
		City:        optional(in.City),
		Role:        model.RoleCitizen,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{Err: apperror.ErrConflict, Message: "Email already registered", Field: "email"}
		}
		return nil, fmt.Errorf("service/auth: creating user %s: %w", in.Email, err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks email and password. Unknown email, wrong password and
// password-less (Auth0-only) accounts all fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
		}
		s.passwords.VerifyNone(password)
		return nil, apperror.Unauthorized(msgBadCredentials)
	}
	if user.Password == nil {
		s.passwords.VerifyNone(password)
		return nil, apperror.Unauthorized(msgBadCredentials)
	}
	if err := s.passwords.Verify(*user.Password, password); err != nil {
		if !errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Error("password check failed", slog.String("userID", user.ID), slog.String("error", err.Error()))
		}
		return nil, apperror.Unauthorized(msgBadCredentials)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// LinkAuth0User maps an Auth0 identity onto a local user: by auth0 id,
// then by email (recording the link), else a new citizen account.
// Linking by email requires a verified email and an account not yet
// linked to any Auth0 identity.
func (s *AuthService) LinkAuth0User(ctx context.Context, id auth.Auth0Identity) (*model.User, error) {
	user, err := s.users.GetByAuth0ID(ctx, id.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up auth0 id: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return nil, apperror.Unauthorized("Auth0 token carries no email")
	}

	user, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !id.EmailVerified {
			s.logger.Warn("auth0 link refused, email not verified",
				slog.String("userID", user.ID), slog.String("subject", id.Subject))
			return nil, apperror.Unauthorized("Auth0 email is not verified")
		}
		if user.Auth0ID != nil {
			s.logger.Warn("auth0 link refused, account linked to another identity",
				slog.String("userID", user.ID), slog.String("subject", id.Subject))
			return nil, apperror.Unauthorized("Account is linked to a different Auth0 identity")
		}
		subject := id.Subject
		user.Auth0ID = &subject
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: linking auth0 id to %s: %w", user.ID, err)
		}
		s.logger.Info("auth0 identity linked", slog.String("userID", user.ID))
		return user, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	subject := id.Subject
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	user = &model.User{FullName: name, Email: email, Auth0ID: &subject, Role: model.RoleCitizen}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// A concurrent request created it first.
			return s.users.GetByAuth0ID(ctx, id.Subject)
		}
		return nil, fmt.Errorf("service/auth: creating auth0 user: %w", err)
	}
	s.logger.Info("user created from auth0", slog.String("userID", user.ID))
	return user, nil
}

// LoginAuth0 finishes the redirect flow with a local token.
func (s *AuthService) LoginAuth0(ctx context.Context, id auth.Auth0Identity) (*AuthResult, error) {
	user, err := s.LinkAuth0User(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// GetUserByID loads a user for the profile endpoint.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ProfileInput is a partial update. An empty phone number or city clears it.
type ProfileInput struct {
	FullName    *string `json:"fullName"    validate:"omitempty,min=1,max=120"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,max=32"`
	City        *string `json:"city"        validate:"omitempty,max=120"`
}

// UpdateProfile applies a partial profile change for userID and returns
// the stored result.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	if in.FullName != nil {
		trimmed := strings.TrimSpace(*in.FullName)
		if trimmed == "" {
			return nil, apperror.ValidationFailed("fullName", "fullName is required")
		}
		in.FullName = &trimmed
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		user.FullName = *in.FullName
	}
	if in.PhoneNumber != nil {
		user.PhoneNumber = optional(*in.PhoneNumber)
	}
	if in.City != nil {
		user.City = optional(*in.City)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: updating profile %s: %w", userID, err)
	}
	return user, nil
}

// ListUsers pages through every account, for admins.
func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
	limit, offset = page(limit, offset)
	users, err := s.users.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("service/auth: listing users: %w", err)
	}
	return users, nil
}

// SetRole changes userID's role.
func (s *AuthService) SetRole(ctx context.Context, userID, role string) (*model.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.setRole(ctx, user, role)
}

// SetRoleByEmail is SetRole for the operator CLI.
func (s *AuthService) SetRoleByEmail(ctx context.Context, email, role string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", email, err)
	}
	return s.setRole(ctx, user, role)
}

func (s *AuthService) setRole(ctx context.Context, user *model.User, role string) (*model.User, error) {
	r := model.Role(strings.TrimSpace(role))
	if !r.Valid() {
		return nil, apperror.ValidationFailed("role", "Invalid role")
	}
	previous := user.Role
	user.Role = r
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: setting role for %s: %w", user.ID, err)
	}
	s.logger.Info("role changed",
		slog.String("userID", user.ID),
		slog.String("from", string(previous)),
		slog.String("to", string(r)),
	)
	return user, nil
}
