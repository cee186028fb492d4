package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/civic-complaints/internal/apperror"
	"github.com/sakif/civic-complaints/internal/auth"
	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/service"
)

// ComplaintService is what ComplaintHandler needs from the service layer.
type ComplaintService interface {
	Create(ctx context.Context, userID string, in service.CreateComplaintInput) (*service.CreatedComplaint, error)
	CreateAnonymous(ctx context.Context, in service.AnonymousComplaintInput) (*service.AnonymousCreated, error)
	Track(ctx context.Context, code string) (*model.Complaint, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]model.Complaint, error)
	GetForUser(ctx context.Context, userID, id string) (*model.Complaint, error)
	ListAll(ctx context.Context, q service.ComplaintQuery) ([]model.Complaint, error)
	Update(ctx context.Context, id string, in service.UpdateComplaintInput) (*model.Complaint, error)
}

// ComplaintHandler serves the citizen, public and staff complaint routes.
type ComplaintHandler struct {
	complaints ComplaintService
	logger     *slog.Logger
}

// NewComplaintHandler creates a handler over complaints.
func NewComplaintHandler(complaints ComplaintService, logger *slog.Logger) *ComplaintHandler {
	return &ComplaintHandler{complaints: complaints, logger: logger}
}

// HandleCreate files a complaint for the authenticated caller.
//
// HTTP: POST /api/complaints
func (h *ComplaintHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	var in service.CreateComplaintInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	created, err := h.complaints.Create(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleCreateAnonymous files a complaint with no account. The response
// carries the classifier's suggestion, or null.
//
// HTTP: POST /api/complaints/anonymous
func (h *ComplaintHandler) HandleCreateAnonymous(w http.ResponseWriter, r *http.Request) {
	var in service.AnonymousComplaintInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	created, err := h.complaints.CreateAnonymous(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleTrack is the public status lookup. Contact details and staff notes
// are never included.
//
// HTTP: GET /api/complaints/track/{trackingCode}
func (h *ComplaintHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	c, err := h.complaints.Track(r.Context(), chi.URLParam(r, "trackingCode"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, model.PublicComplaintView(c))
}

// HandleListMine returns the caller's complaints, newest first.
//
// HTTP: GET /api/complaints?limit=&offset=
func (h *ComplaintHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset := pageParams(r)
	list, err := h.complaints.ListForUser(r.Context(), user.ID, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewComplaintViews(list))
}

// HandleGetMine returns one of the caller's complaints.
//
// HTTP: GET /api/complaints/{id}
func (h *ComplaintHandler) HandleGetMine(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	c, err := h.complaints.GetForUser(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewComplaintView(c))
}

// HandleListAll is the staff queue.
//
// HTTP: GET /api/admin/complaints?status=&priority=&agencyId=&categoryId=&limit=&offset=
func (h *ComplaintHandler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pageParams(r)
	list, err := h.complaints.ListAll(r.Context(), service.ComplaintQuery{
		Status:     q.Get("status"),
		Priority:   q.Get("priority"),
		AgencyID:   q.Get("agencyId"),
		CategoryID: q.Get("categoryId"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewComplaintViews(list))
}

// HandleUpdate applies staff triage to a complaint.
//
// HTTP: PATCH /api/admin/complaints/{id}
// REQUEST BODY: any of {"status", "priority", "agencyId", "notes"}
func (h *ComplaintHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateComplaintInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	c, err := h.complaints.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if user, ok := auth.UserFromContext(r.Context()); ok {
		h.logger.Info("complaint triaged",
			slog.String("complaint_id", c.ID),
			slog.String("by", user.ID),
		)
	}
	writeJSON(w, http.StatusOK, model.NewComplaintView(c))
}

// currentUser reads the user RequireAuth stored. It only fails when a
// route was wired without the middleware.
func currentUser(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, logger, apperror.Unauthorized("Authentication required"))
		return nil, false
	}
	return user, true
}
