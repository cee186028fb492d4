package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/civic-complaints/internal/model"
)

// ReferenceService is the read side of the reference data.
type ReferenceService interface {
	Categories(ctx context.Context) ([]model.Category, error)
	Agencies(ctx context.Context) ([]model.Agency, error)
}

// ReferenceHandler serves the public category and agency lists.
type ReferenceHandler struct {
	refs   ReferenceService
	logger *slog.Logger
}

// NewReferenceHandler creates a handler over refs.
func NewReferenceHandler(refs ReferenceService, logger *slog.Logger) *ReferenceHandler {
	return &ReferenceHandler{refs: refs, logger: logger}
}

// HTTP: GET /api/categories
func (h *ReferenceHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.refs.Categories(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// HTTP: GET /api/agencies
func (h *ReferenceHandler) HandleAgencies(w http.ResponseWriter, r *http.Request) {
	ags, err := h.refs.Agencies(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ags)
}
