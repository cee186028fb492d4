package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakif/civic-complaints/internal/apperror"
	"github.com/sakif/civic-complaints/internal/model"
)

// ErrNotApplicable is returned by a Strategy that does not recognise the
// token, so the Resolver moves on to the next one.
var ErrNotApplicable = errors.New("auth: strategy not applicable")

// Strategy maps a bearer token to a local user.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, token string) (*model.User, error)
}

// UserGetter is the slice of the user repository LocalStrategy needs.
type UserGetter interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// LocalStrategy accepts tokens issued by TokenService.
type LocalStrategy struct {
	tokens *TokenService
	users  UserGetter
}

// NewLocalStrategy accepts tokens from tokens and loads users from users.
func NewLocalStrategy(tokens *TokenService, users UserGetter) *LocalStrategy {
	return &LocalStrategy{tokens: tokens, users: users}
}

func (s *LocalStrategy) Name() string { return "local" }

// Resolve reloads the user so role changes apply to tokens already issued.
// A valid token for a deleted user is not applicable.
func (s *LocalStrategy) Resolve(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, ErrNotApplicable
	}
	user, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrNotApplicable
		}
		return nil, fmt.Errorf("auth: loading user %s: %w", claims.Subject, err)
	}
	return user, nil
}

// Resolver runs strategies in order.
type Resolver struct {
	strategies []Strategy
}

// NewResolver tries strategies in the given order.
func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// Resolve returns the first user a strategy yields. When none applies the
// error matches apperror.ErrUnauthorized. Any other strategy error stops
// the chain and is returned as is.
func (r *Resolver) Resolve(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperror.Unauthorized("Authentication required")
	}
	for _, s := range r.strategies {
		user, err := s.Resolve(ctx, token)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrNotApplicable) {
			return nil, err
		}
	}
	return nil, apperror.Unauthorized("Invalid or expired token")
}
