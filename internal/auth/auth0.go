package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/civic-complaints/internal/model"
)

// Auth0Identity is what the tenant tells us about a caller.
// EmailVerified is the tenant's email_verified flag; an unverified email
// must never be used to find an existing account.
type Auth0Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// UserLinker finds or creates the local user for an Auth0 identity.
// service.AuthService implements it.
type UserLinker interface {
	LinkAuth0User(ctx context.Context, id Auth0Identity) (*model.User, error)
}

// Auth0Options tells Auth0Strategy which tokens to accept.
type Auth0Options struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// EmailClaim is a namespaced custom claim read when "email" is absent
	// from the access token, e.g. "https://api.example.gov/email". Its
	// verification flag is read from EmailClaim + "_verified".
	EmailClaim string
}

// Auth0OptionsForDomain derives the issuer and JWKS location Auth0 uses
// for a tenant domain.
func Auth0OptionsForDomain(domain, audience, emailClaim string) Auth0Options {
	issuer := "https://" + strings.TrimSuffix(domain, "/") + "/"
	return Auth0Options{
		Issuer:     issuer,
		Audience:   audience,
		JWKSURL:    issuer + ".well-known/jwks.json",
		EmailClaim: emailClaim,
	}
}

// Auth0Strategy accepts RS256 access tokens issued by an Auth0 tenant.
type Auth0Strategy struct {
	opts    Auth0Options
	keyfunc jwt.Keyfunc
	linker  UserLinker
}

// NewAuth0Strategy fetches the tenant JWKS and keeps it refreshed in the
// background until ctx is cancelled.
func NewAuth0Strategy(ctx context.Context, opts Auth0Options, linker UserLinker) (*Auth0Strategy, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{opts.JWKSURL})
	if err != nil {
		return nil, fmt.Errorf("auth: loading JWKS from %s: %w", opts.JWKSURL, err)
	}
	return newAuth0Strategy(opts, k.Keyfunc, linker), nil
}

func newAuth0Strategy(opts Auth0Options, kf jwt.Keyfunc, linker UserLinker) *Auth0Strategy {
	return &Auth0Strategy{opts: opts, keyfunc: kf, linker: linker}
}

func (s *Auth0Strategy) Name() string { return "auth0" }

// Resolve verifies the token and links it to a local user. Tokens that
// fail verification are not applicable; linker errors are returned.
func (s *Auth0Strategy) Resolve(ctx context.Context, token string) (*model.User, error) {
	id, err := s.Verify(token)
	if err != nil {
		return nil, ErrNotApplicable
	}
	return s.linker.LinkAuth0User(ctx, *id)
}

// Verify checks signature, issuer, audience and expiry.
func (s *Auth0Strategy) Verify(token string) (*Auth0Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, s.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.opts.Issuer),
		jwt.WithAudience(s.opts.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid auth0 token: %w", err)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("auth: auth0 token has no subject")
	}
	id := &Auth0Identity{Subject: sub}
	id.Email = stringClaim(claims, "email")
	id.EmailVerified = boolClaim(claims, "email_verified")
	if id.Email == "" && s.opts.EmailClaim != "" {
		id.Email = stringClaim(claims, s.opts.EmailClaim)
		id.EmailVerified = boolClaim(claims, s.opts.EmailClaim+"_verified")
	}
	id.Name = stringClaim(claims, "name")
	return id, nil
}

func stringClaim(c jwt.MapClaims, key string) string {
	v, _ := c[key].(string)
	return strings.TrimSpace(v)
}

// boolClaim is false unless the claim is a JSON true.
func boolClaim(c jwt.MapClaims, key string) bool {
	v, _ := c[key].(bool)
	return v
}
