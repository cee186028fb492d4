package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/civic-complaints/internal/apperror"
	"github.com/sakif/civic-complaints/internal/model"
)

// TokenCookie carries the local token set by the Auth0 redirect flow.
const TokenCookie = "token"

type contextKey string

const userKey contextKey = "user"

// TokenFromRequest reads "Authorization: Bearer <token>", falling back to
// the token cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth rejects requests without a resolvable token with 401 and
// otherwise stores the caller on the context (see UserFromContext).
func RequireAuth(resolver *Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.Resolve(r.Context(), TokenFromRequest(r))
			if err != nil {
				if errors.Is(err, apperror.ErrUnauthorized) {
					unauthorized(w, err.Error())
					return
				}
				logger.Error("resolving caller", slog.String("error", err.Error()))
				writeJSONError(w, http.StatusInternalServerError, apperror.KindInternal, "An internal error occurred")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireRole must run after RequireAuth. No caller is 401, a caller
// without one of roles is 403.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				unauthorized(w, "Authentication required")
				return
			}
			if !user.HasRole(roles...) {
				writeJSONError(w, http.StatusForbidden, apperror.KindForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequireRole(model.RoleAdmin).
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(model.RoleAdmin)
}

// WithUser stores the authenticated caller on ctx.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the caller stored by RequireAuth, if any.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

func unauthorized(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, apperror.KindUnauthorized, message)
}

func writeJSONError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}
