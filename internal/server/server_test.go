package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/civic-complaints/internal/classifier"
	"github.com/sakif/civic-complaints/internal/config"
	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/notify"
)

type stubClassifier struct{ agency string }

func (s stubClassifier) Classify(_ context.Context, in classifier.Input) (*classifier.Suggestion, error) {
	return &classifier.Suggestion{
		Category:       in.Categories[0],
		Agency:         s.agency,
		Confidence:     91,
		SentimentScore: -0.5,
		Language:       "en",
	}, nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (m *memPublisher) Publish(_ context.Context, e notify.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memPublisher) count(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func testConfig() *config.Config {
	return &config.Config{
		Port:        8080,
		Env:         "test",
		FrontendURL: "http://localhost:5173",
		Database:    config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", AutoMigrate: true},
		Redis:       config.RedisConfig{Channel: "complaints.events"},
		JWT:         config.JWTConfig{Secret: "server-test-secret-0123456789", TTL: time.Hour, Issuer: "civic-complaints"},
		AI:          config.AIConfig{Timeout: time.Second, AutoAssignThreshold: 80},
		Tracking:    config.TrackingConfig{Prefix: "CMP"},
	}
}

type client struct {
	t *testing.T
	h http.Handler
}

func (c client) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type authResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func TestServer_EndToEnd(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := &memPublisher{}

	s, err := New(ctx, testConfig(), logger, WithClassifier(stubClassifier{agency: "public works"}), WithPublisher(events))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cat := &model.Category{Name: "Roads"}
	require.NoError(t, s.store.Categories().Create(ctx, cat))
	agency := &model.Agency{Name: "Public Works", ContactEmail: "works@city.gov"}
	require.NoError(t, s.store.Agencies().Create(ctx, agency))

	c := client{t: t, h: s.Handler()}

	// Health and public reference data.
	rec := c.do(http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	rec = c.do(http.MethodGet, "/api/categories", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeInto[[]model.Category](t, rec), 1)

	complaint := map[string]any{
		"title":       "Flooded underpass",
		"description": "The underpass floods every time it rains.",
		"categoryId":  cat.ID,
	}

	// Anonymous submission is classified and auto-assigned.
	rec = c.do(http.MethodPost, "/api/complaints/anonymous", complaint, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	anon := decodeInto[struct {
		TrackingCode  string                `json:"trackingCode"`
		AISuggestions classifier.Suggestion `json:"aiSuggestions"`
	}](t, rec)
	assert.InDelta(t, 91, anon.AISuggestions.Confidence, 1e-9)

	rec = c.do(http.MethodGet, "/api/complaints/track/"+strings.ToLower(anon.TrackingCode), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeInto[model.ComplaintView](t, rec)
	require.NotNil(t, view.AgencyID)
	assert.Equal(t, agency.ID, *view.AgencyID)
	assert.Equal(t, model.StatusPending, view.Status)
	assert.Equal(t, "Roads", view.CategoryName)
	assert.Equal(t, cat.ID, view.CategoryID)
	require.NotNil(t, view.AgencyName)
	assert.Equal(t, "Public Works", *view.AgencyName)

	rec = c.do(http.MethodGet, "/api/complaints/track/CMP-19990101-000000", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Citizen registers and files a complaint.
	rec = c.do(http.MethodPost, "/api/auth/register", map[string]string{
		"fullName": "Citizen Kane", "email": "kane@example.com", "password": "rosebud-rosebud",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	citizen := decodeInto[authResult](t, rec)

	rec = c.do(http.MethodPost, "/api/complaints", complaint, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodPost, "/api/complaints", complaint, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodPost, "/api/complaints", complaint, citizen.Token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	own := decodeInto[struct {
		ID           string `json:"id"`
		TrackingCode string `json:"trackingCode"`
	}](t, rec)

	// The token cookie works in place of the bearer header.
	req := httptest.NewRequest(http.MethodGet, "/api/complaints", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: citizen.Token})
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeInto[[]model.ComplaintView](t, rec), 1)

	rec = c.do(http.MethodGet, "/api/auth/verify", nil, citizen.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)

	// Citizens cannot reach staff routes.
	patch := map[string]string{"status": "in-progress", "priority": "high"}
	rec = c.do(http.MethodPatch, "/api/admin/complaints/"+own.ID, patch, citizen.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Staff triage notifies the owner.
	rec = c.do(http.MethodPost, "/api/auth/register", map[string]string{
		"fullName": "Staff Member", "email": "staff@example.com", "password": "staff-password",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	staff := decodeInto[authResult](t, rec)
	staffUser := staff.User
	staffUser.Role = model.RoleDepartmentStaff
	require.NoError(t, s.store.Users().Update(ctx, &staffUser))

	rec = c.do(http.MethodPatch, "/api/admin/complaints/"+own.ID, patch, staff.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeInto[model.ComplaintView](t, rec)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.Equal(t, own.TrackingCode, updated.TrackingCode)

	rec = c.do(http.MethodGet, "/api/admin/complaints?status=in-progress", nil, staff.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeInto[[]model.ComplaintView](t, rec), 1)

	rec = c.do(http.MethodGet, "/api/notifications", nil, citizen.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decodeInto[[]model.Notification](t, rec)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "from pending to in-progress")

	rec = c.do(http.MethodPatch, "/api/notifications/"+notes[0].ID+"/read", nil, citizen.Token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, 2, events.count(notify.EventComplaintCreated))
	assert.Equal(t, 1, events.count(notify.EventComplaintStatusChanged))

	// User administration is admin-only.
	rec = c.do(http.MethodGet, "/api/admin/users", nil, staff.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	staffUser.Role = model.RoleAdmin
	require.NoError(t, s.store.Users().Update(ctx, &staffUser))
	rec = c.do(http.MethodGet, "/api/admin/users", nil, staff.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeInto[[]model.User](t, rec), 2)

	rec = c.do(http.MethodPatch, "/api/admin/users/"+citizen.User.ID+"/role", map[string]string{"role": "emperor"}, staff.Token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid role")

	// Profile and preferences.
	rec = c.do(http.MethodPut, "/api/profile/notification-preferences", map[string]bool{"emailEnabled": true}, citizen.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodGet, "/api/profile/notification-preferences", nil, citizen.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeInto[model.NotificationPreferences](t, rec).InAppEnabled)

	rec = c.do(http.MethodGet, "/api/profile", nil, citizen.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "kane@example.com", decodeInto[model.User](t, rec).Email)

	// Auth0 login is not configured.
	rec = c.do(http.MethodGet, "/api/auth/auth0/login", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_HealthReportsDatabaseDown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(context.Background(), testConfig(), logger)
	require.NoError(t, err)
	h := s.Handler()

	require.NoError(t, s.store.Close())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNew_BadConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := testConfig()
	cfg.Database.Driver = "oracle"
	_, err := New(context.Background(), cfg, logger)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Redis.URL = "redis://127.0.0.1:1/0"
	_, err = New(context.Background(), cfg, logger)
	assert.Error(t, err, "unreachable redis fails startup")
}
