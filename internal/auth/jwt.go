// Package auth authenticates API callers.
//
// Two kinds of bearer token are accepted:
//   - local tokens, HS256-signed by TokenService after password login or
//     the Auth0 redirect flow;
//   - Auth0 access tokens, RS256-signed by the tenant and verified against
//     its JWKS (see auth0.go).
//
// A Resolver tries each Strategy in order and yields the local user the
// token belongs to. The HTTP middleware in middleware.go puts that user on
// the request context.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/civic-complaints/internal/model"
)

// Claims is the payload of a local token. Role and Email are informational;
// the authoritative values are reloaded from the database on every request.
type Claims struct {
	Role  model.Role `json:"role"`
	Email string     `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and validates local HS256 tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService rejects secrets shorter than 16 bytes and a
// non-positive ttl.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: JWT ttl must be positive")
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// TTL is the lifetime of issued tokens; handlers use it for cookie MaxAge.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Generate issues a token for user with the configured TTL.
func (s *TokenService) Generate(user *model.User) (string, error) {
	return s.generate(user, s.ttl)
}

func (s *TokenService) generate(user *model.User, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		Role:  user.Role,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, issuer and expiry and returns the claims.
// Tokens signed with any other algorithm are rejected.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	if c.Subject == "" {
		return nil, errors.New("auth: token has no subject")
	}
	return &c, nil
}
