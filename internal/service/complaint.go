package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/civic-complaints/internal/apperror"
	"github.com/sakif/civic-complaints/internal/classifier"
	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/notify"
	"github.com/sakif/civic-complaints/internal/repository"
	"github.com/sakif/civic-complaints/internal/tracking"
)

const (
	// maxTrackingAttempts bounds regeneration after a tracking code collision.
	maxTrackingAttempts = 3

	defaultLanguage  = "en"
	defaultAITimeout = 25 * time.Second
)

// Fixed client-facing messages.
const (
	msgInvalidCategory   = "Invalid category"
	msgInvalidAgency     = "Invalid agency"
	msgInvalidStatus     = "Invalid status"
	msgInvalidPriority   = "Invalid priority"
	msgComplaintNotFound = "Complaint not found"
)

// StatusNotifier records that a complaint's status changed for its owner.
type StatusNotifier interface {
	ComplaintStatusChanged(ctx context.Context, c *model.Complaint, previous model.Status) error
}

// ComplaintDeps collects the collaborators of ComplaintService. Classifier
// and Events may be nil; they fall back to a disabled classifier and a
// no-op publisher.
type ComplaintDeps struct {
	Complaints repository.ComplaintRepository
	Categories repository.CategoryRepository
	Agencies   repository.AgencyRepository
	Classifier classifier.Classifier
	Codes      *tracking.Generator
	Events     notify.Publisher
	Notifier   StatusNotifier

	// AITimeout bounds the classifier call for anonymous complaints.
	AITimeout time.Duration
	// AutoAssignThreshold is the confidence the classifier must exceed
	// (strictly) before its agency is applied.
	AutoAssignThreshold float64
}

// ComplaintService owns the complaint lifecycle: intake (with or without
// an account), public tracking, and staff triage.
type ComplaintService struct {
	deps   ComplaintDeps
	logger *slog.Logger
}

// NewComplaintService fills defaults into deps. Events is always wrapped
// so a failed publish is logged and never fails the request.
func NewComplaintService(deps ComplaintDeps, logger *slog.Logger) *ComplaintService {
	if deps.Classifier == nil {
		deps.Classifier = classifier.Disabled{}
	}
	if deps.Events == nil {
		deps.Events = notify.NopPublisher{}
	}
	deps.Events = notify.NewLogging(deps.Events, logger)
	if deps.AITimeout <= 0 {
		deps.AITimeout = defaultAITimeout
	}
	return &ComplaintService{deps: deps, logger: logger}
}

// CreateComplaintInput is the body of a complaint submission. Fields are
// trimmed before validation.
type CreateComplaintInput struct {
	Title       string `json:"title"       validate:"required,max=200"`
	Description string `json:"description" validate:"required,min=10,max=5000"`
	CategoryID  string `json:"categoryId"  validate:"required"`
	Location    string `json:"location"    validate:"max=255"`
}

func (in *CreateComplaintInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.Location = strings.TrimSpace(in.Location)
}

// AnonymousComplaintInput adds optional contact details. Without them the
// tracking code is the reporter's only handle on the complaint.
type AnonymousComplaintInput struct {
	CreateComplaintInput
	ContactEmail string `json:"contactEmail" validate:"omitempty,email,max=255"`
	ContactPhone string `json:"contactPhone" validate:"omitempty,max=32"`
}

// CreatedComplaint is what a reporter gets back after a submission.
type CreatedComplaint struct {
	ID           string `json:"id"`
	TrackingCode string `json:"trackingCode"`
}

// AnonymousCreated echoes the classifier answer; AISuggestions is null
// when classification failed.
type AnonymousCreated struct {
	CreatedComplaint
	AISuggestions *classifier.Suggestion `json:"aiSuggestions"`
}

// Create files a complaint for an authenticated user.
func (s *ComplaintService) Create(ctx context.Context, userID string, in CreateComplaintInput) (*CreatedComplaint, error) {
	in.normalize()
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	c := s.newComplaint(in)
	c.UserID = &userID

	if err := s.insert(ctx, c); err != nil {
		return nil, err
	}
	return &CreatedComplaint{ID: c.ID, TrackingCode: c.TrackingCode}, nil
}

// CreateAnonymous files a complaint with no owner. The classifier is asked
// for routing metadata; its failure never fails the request.
func (s *ComplaintService) CreateAnonymous(ctx context.Context, in AnonymousComplaintInput) (*AnonymousCreated, error) {
	in.normalize()
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	in.ContactPhone = strings.TrimSpace(in.ContactPhone)
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	c := s.newComplaint(in.CreateComplaintInput)
	c.ContactEmail = optional(in.ContactEmail)
	c.ContactPhone = optional(in.ContactPhone)

	suggestion := s.classify(ctx, in.CreateComplaintInput)
	s.applySuggestion(ctx, c, suggestion)

	if err := s.insert(ctx, c); err != nil {
		return nil, err
	}
	return &AnonymousCreated{
		CreatedComplaint: CreatedComplaint{ID: c.ID, TrackingCode: c.TrackingCode},
		AISuggestions:    suggestion,
	}, nil
}

func (s *ComplaintService) newComplaint(in CreateComplaintInput) *model.Complaint {
	return &model.Complaint{
		Title:       in.Title,
		Description: in.Description,
		Location:    optional(in.Location),
		CategoryID:  in.CategoryID,
		Status:      model.StatusPending,
		Priority:    model.PriorityMedium,
	}
}

func (s *ComplaintService) checkCategory(ctx context.Context, id string) error {
	if _, err := s.deps.Categories.GetByID(ctx, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("categoryId", msgInvalidCategory)
		}
		return fmt.Errorf("checking category %s: %w", id, err)
	}
	return nil
}

// classify returns nil on any failure, including timeout.
func (s *ComplaintService) classify(ctx context.Context, in CreateComplaintInput) *classifier.Suggestion {
	ctx, cancel := context.WithTimeout(ctx, s.deps.AITimeout)
	defer cancel()

	input := classifier.Input{
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
	}
	if cats, err := s.deps.Categories.List(ctx); err == nil {
		for _, c := range cats {
			input.Categories = append(input.Categories, c.Name)
		}
	}
	if ags, err := s.deps.Agencies.List(ctx); err == nil {
		for _, a := range ags {
			input.Agencies = append(input.Agencies, a.Name)
		}
	}

	suggestion, err := s.deps.Classifier.Classify(ctx, input)
	if err != nil {
		s.logger.Warn("classification failed, using defaults", slog.String("error", err.Error()))
		return nil
	}
	return suggestion
}

// applySuggestion fills sentiment and language and, above the threshold,
// the agency. Status is left pending either way.
func (s *ComplaintService) applySuggestion(ctx context.Context, c *model.Complaint, sug *classifier.Suggestion) {
	sentiment := 0.0
	language := defaultLanguage
	if sug != nil {
		sentiment = sug.SentimentScore
		if sug.Language != "" {
			language = sug.Language
		}
	}
	c.SentimentScore = &sentiment
	c.Language = &language

	if sug == nil || sug.Confidence <= s.deps.AutoAssignThreshold || sug.Agency == "" {
		return
	}
	agency, err := s.resolveAgency(ctx, sug.Agency)
	if err != nil {
		s.logger.Info("suggested agency not found",
			slog.String("agency", sug.Agency),
			slog.String("error", err.Error()),
		)
		return
	}
	c.AgencyID = &agency.ID
	s.logger.Info("complaint auto-assigned",
		slog.String("agency_id", agency.ID),
		slog.Float64("confidence", sug.Confidence),
	)
}

// resolveAgency accepts an agency id or a case-insensitive name.
func (s *ComplaintService) resolveAgency(ctx context.Context, ref string) (*model.Agency, error) {
	if a, err := s.deps.Agencies.GetByID(ctx, ref); err == nil {
		return a, nil
	}
	return s.deps.Agencies.GetByName(ctx, ref)
}

// insert assigns a tracking code and persists c, regenerating the code on
// a unique-index collision.
func (s *ComplaintService) insert(ctx context.Context, c *model.Complaint) error {
	for attempt := 1; ; attempt++ {
		code, err := s.deps.Codes.Next()
		if err != nil {
			return fmt.Errorf("generating tracking code: %w", err)
		}
		c.TrackingCode = code

		err = s.deps.Complaints.Create(ctx, c)
		if err == nil {
			break
		}
		if !errors.Is(err, apperror.ErrConflict) || attempt == maxTrackingAttempts {
			s.logger.Error("failed to create complaint",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("creating complaint: %w", err)
		}
		s.logger.Warn("tracking code collision, regenerating", slog.String("code", code))
	}

	s.logger.Info("complaint created",
		slog.String("id", c.ID),
		slog.String("tracking_code", c.TrackingCode),
		slog.Bool("anonymous", c.IsAnonymous()),
	)
	s.deps.Events.Publish(ctx, notify.NewEvent(notify.EventComplaintCreated, c))
	return nil
}

// Track looks a complaint up by its public tracking code. Malformed and
// unknown codes are both not found.
func (s *ComplaintService) Track(ctx context.Context, code string) (*model.Complaint, error) {
	code = tracking.Normalize(code)
	if !tracking.Valid(code) {
		return nil, apperror.NotFoundMessage(msgComplaintNotFound)
	}
	c, err := s.deps.Complaints.GetByTrackingCode(ctx, code)
	if err != nil {
		return nil, s.notFound(err)
	}
	return c, nil
}

// ListForUser returns userID's complaints, newest first.
func (s *ComplaintService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]model.Complaint, error) {
	limit, offset = page(limit, offset)
	out, err := s.deps.Complaints.List(ctx, repository.ComplaintFilter{
		UserID:      userID,
		ListOptions: repository.ListOptions{Limit: limit, Offset: offset},
	})
	if err != nil {
		return nil, fmt.Errorf("listing complaints for %s: %w", userID, err)
	}
	return out, nil
}

// GetForUser returns one of userID's complaints. Someone else's complaint
// is reported as not found.
func (s *ComplaintService) GetForUser(ctx context.Context, userID, id string) (*model.Complaint, error) {
	c, err := s.deps.Complaints.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, s.notFound(err)
	}
	if c.UserID == nil || *c.UserID != userID {
		return nil, apperror.NotFoundMessage(msgComplaintNotFound)
	}
	return c, nil
}

// ComplaintQuery holds the staff listing filters as received. Status and
// Priority are validated by ListAll; empty fields match everything.
type ComplaintQuery struct {
	Status     string
	Priority   string
	AgencyID   string
	CategoryID string
	Limit      int
	Offset     int
}

// ListAll is the staff view over every complaint.
func (s *ComplaintService) ListAll(ctx context.Context, q ComplaintQuery) ([]model.Complaint, error) {
	filter := repository.ComplaintFilter{
		Status:     model.Status(q.Status),
		Priority:   model.Priority(q.Priority),
		AgencyID:   q.AgencyID,
		CategoryID: q.CategoryID,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperror.ValidationFailed("status", msgInvalidStatus)
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, apperror.ValidationFailed("priority", msgInvalidPriority)
	}
	filter.Limit, filter.Offset = page(q.Limit, q.Offset)

	out, err := s.deps.Complaints.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing complaints: %w", err)
	}
	return out, nil
}

// UpdateComplaintInput is a partial update; nil fields are left alone.
// An empty AgencyID clears the agency, an empty Notes clears the notes.
type UpdateComplaintInput struct {
	Status   *string `json:"status"`
	Priority *string `json:"priority"`
	AgencyID *string `json:"agencyId"`
	Notes    *string `json:"notes"`
}

// Update applies staff triage. Every field is checked before anything is
// written, so a rejected request leaves the row unchanged.
func (s *ComplaintService) Update(ctx context.Context, id string, in UpdateComplaintInput) (*model.Complaint, error) {
	c, err := s.deps.Complaints.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, s.notFound(err)
	}
	previous := c.Status

	if in.Status != nil {
		st := model.Status(strings.TrimSpace(*in.Status))
		if !st.Valid() {
			return nil, apperror.ValidationFailed("status", msgInvalidStatus)
		}
		c.Status = st
	}
	if in.Priority != nil {
		p := model.Priority(strings.TrimSpace(*in.Priority))
		if !p.Valid() {
			return nil, apperror.ValidationFailed("priority", msgInvalidPriority)
		}
		c.Priority = p
	}
	if in.AgencyID != nil {
		agencyID := strings.TrimSpace(*in.AgencyID)
		if agencyID == "" {
			c.AgencyID = nil
		} else {
			if _, err := s.deps.Agencies.GetByID(ctx, agencyID); err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					return nil, apperror.ValidationFailed("agencyId", msgInvalidAgency)
				}
				return nil, fmt.Errorf("checking agency %s: %w", agencyID, err)
			}
			c.AgencyID = &agencyID
		}
	}
	if in.Notes != nil {
		c.StaffNotes = optional(*in.Notes)
	}

	if err := s.deps.Complaints.UpdateTriage(ctx, c); err != nil {
		return nil, fmt.Errorf("updating complaint %s: %w", c.ID, err)
	}

	updated, err := s.deps.Complaints.GetByID(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading complaint %s: %w", c.ID, err)
	}

	s.logger.Info("complaint updated",
		slog.String("id", updated.ID),
		slog.String("status", string(updated.Status)),
		slog.String("priority", string(updated.Priority)),
	)

	if updated.Status != previous {
		s.statusChanged(ctx, updated, previous)
	}
	return updated, nil
}

func (s *ComplaintService) statusChanged(ctx context.Context, c *model.Complaint, previous model.Status) {
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.ComplaintStatusChanged(ctx, c, previous); err != nil {
			s.logger.Warn("status notification failed",
				slog.String("complaint_id", c.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	e := notify.NewEvent(notify.EventComplaintStatusChanged, c)
	e.PreviousStatus = previous
	s.deps.Events.Publish(ctx, e)
}

func (s *ComplaintService) notFound(err error) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.NotFoundMessage(msgComplaintNotFound)
	}
	return fmt.Errorf("getting complaint: %w", err)
}
