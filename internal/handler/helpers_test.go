package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/civic-complaints/internal/auth"
	"github.com/sakif/civic-complaints/internal/classifier"
	"github.com/sakif/civic-complaints/internal/config"
	"github.com/sakif/civic-complaints/internal/handler"
	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/repository/gormstore"
	"github.com/sakif/civic-complaints/internal/service"
	"github.com/sakif/civic-complaints/internal/tracking"
)

// testEnv is the real service stack over in-memory SQLite.
type testEnv struct {
	store      *gormstore.Store
	logger     *slog.Logger
	tokens     *auth.TokenService
	complaints *service.ComplaintService
	accounts   *service.AuthService
	notifs     *service.NotificationService
	refs       *service.ReferenceService
	category   *model.Category
	agency     *model.Agency
}

type stubClassifier struct {
	suggestion *classifier.Suggestion
	err        error
}

func (s stubClassifier) Classify(context.Context, classifier.Input) (*classifier.Suggestion, error) {
	return s.suggestion, s.err
}

func newTestEnv(t *testing.T, clf classifier.Classifier) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := gormstore.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	codes, err := tracking.NewGenerator("CMP")
	require.NoError(t, err)
	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", "civic-complaints", time.Hour)
	require.NoError(t, err)

	env := &testEnv{store: store, logger: logger, tokens: tokens}
	env.notifs = service.NewNotificationService(store.Notifications(), logger)
	env.refs = service.NewReferenceService(store.Categories(), store.Agencies(), logger)
	env.accounts = service.NewAuthService(store.Users(), tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), logger)
	env.complaints = service.NewComplaintService(service.ComplaintDeps{
		Complaints:          store.Complaints(),
		Categories:          store.Categories(),
		Agencies:            store.Agencies(),
		Classifier:          clf,
		Codes:               codes,
		Notifier:            env.notifs,
		AITimeout:           time.Second,
		AutoAssignThreshold: 80,
	}, logger)

	ctx := context.Background()
	env.category, err = env.refs.CreateCategory(ctx, service.CategoryInput{Name: "Roads"})
	require.NoError(t, err)
	env.agency, err = env.refs.CreateAgency(ctx, service.AgencyInput{Name: "Public Works", ContactEmail: "works@city.gov"})
	require.NoError(t, err)
	return env
}

// newUser stores a user with the given role directly through the repository.
func (e *testEnv) newUser(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{FullName: "Test " + string(role), Email: email, Role: role}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

// call routes a single request through a chi router holding pattern, so
// URL params resolve the way they do in production. A non-nil user is put
// on the context the way RequireAuth would.
func call(t *testing.T, method, pattern, target string, body any, user *model.User, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(auth.WithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	return decode[handler.ErrorResponse](t, rec)
}
