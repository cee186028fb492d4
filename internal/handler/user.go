package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/service"
)

// UserService is what UserHandler needs from the service layer.
type UserService interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, in service.ProfileInput) (*model.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]model.User, error)
	SetRole(ctx context.Context, userID, role string) (*model.User, error)
}

// UserHandler serves the caller's profile and the admin user routes.
type UserHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewUserHandler creates a handler over users.
func NewUserHandler(users UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleProfile returns the caller's account, reloaded so role changes
// made since the token was issued are visible.
//
// HTTP: GET /api/profile
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	fresh, err := h.users.GetUserByID(r.Context(), user.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fresh)
}

// HTTP: PATCH /api/profile
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	var in service.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	updated, err := h.users.UpdateProfile(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HTTP: GET /api/admin/users?limit=&offset=
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	users, err := h.users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type roleRequest struct {
	Role string `json:"role"`
}

// HandleSetRole changes a user's role.
//
// HTTP: PATCH /api/admin/users/{id}/role
// REQUEST BODY: {"role": "department_staff"}
func (h *UserHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	var in roleRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	updated, err := h.users.SetRole(r.Context(), chi.URLParam(r, "id"), in.Role)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
