package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/civic-complaints/internal/apperror"
	"github.com/sakif/civic-complaints/internal/auth"
	"github.com/sakif/civic-complaints/internal/service"
)

const stateCookie = "oauth_state"

// AuthService is what AuthHandler needs from the service layer.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	LoginAuth0(ctx context.Context, id auth.Auth0Identity) (*service.AuthResult, error)
}

// Auth0Login drives the Auth0 authorization-code redirect flow.
type Auth0Login interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Auth0Identity, error)
}

// CookieOptions controls the token cookie set on login.
type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

// AuthHandler serves registration, password login, the Auth0 redirect
// flow and logout. Every successful login also sets the token cookie so
// browser clients need not handle the bearer header.
type AuthHandler struct {
	auth        AuthService
	auth0       Auth0Login
	cookie      CookieOptions
	frontendURL string
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. auth0 may be nil, in which case
// the Auth0 routes answer 404.
func NewAuthHandler(svc AuthService, auth0 Auth0Login, cookie CookieOptions, frontendURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:        svc,
		auth0:       auth0,
		cookie:      cookie,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a citizen account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"fullName", "email", "password", "phoneNumber"?, "city"?}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, res)
}

// HandleLogin checks credentials and returns a token.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res)
}

// HandleLogout clears the token cookie. Tokens are stateless, so a copy
// held elsewhere stays valid until it expires.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleVerify reports the user behind the presented token. RequireAuth
// has already rejected bad tokens.
//
// HTTP: GET /api/auth/verify
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "user": user})
}

// HandleAuth0Login redirects the browser to Auth0's authorize page with a
// single-use state value stored in a short-lived cookie.
//
// HTTP: GET /api/auth/auth0/login
func (h *AuthHandler) HandleAuth0Login(w http.ResponseWriter, r *http.Request) {
	if h.auth0 == nil {
		http.NotFound(w, r)
		return
	}
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.auth0.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleAuth0Callback completes the Auth0 login: check state, exchange the
// code, link or create the local user, set the token cookie and send the
// browser back to the frontend.
//
// HTTP: GET /api/auth/auth0/callback?code=&state=
func (h *AuthHandler) HandleAuth0Callback(w http.ResponseWriter, r *http.Request) {
	if h.auth0 == nil {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || q.Get("state") != c.Value {
		h.logger.Warn("auth0 callback: state mismatch")
		writeError(w, h.logger, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth0 callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, h.frontendRedirect("denied"), http.StatusSeeOther)
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, h.logger, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	identity, err := h.auth0.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth0 callback: exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.frontendRedirect("failed"), http.StatusSeeOther)
		return
	}
	res, err := h.auth.LoginAuth0(r.Context(), *identity)
	if err != nil {
		h.logger.Error("auth0 callback: login failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.frontendRedirect("failed"), http.StatusSeeOther)
		return
	}

	h.logger.Info("user authenticated via auth0", slog.String("userID", res.User.ID))
	h.setTokenCookie(w, res.Token)
	http.Redirect(w, r, h.frontendURL, http.StatusSeeOther)
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// frontendRedirect appends auth=<outcome> to the frontend URL.
func (h *AuthHandler) frontendRedirect(outcome string) string {
	u, err := url.Parse(h.frontendURL)
	if err != nil {
		return h.frontendURL
	}
	q := u.Query()
	q.Set("auth", outcome)
	u.RawQuery = q.Encode()
	return u.String()
}
