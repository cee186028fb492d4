package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/civic-complaints/internal/apperror"
	"github.com/sakif/civic-complaints/internal/classifier"
	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/notify"
	"github.com/sakif/civic-complaints/internal/repository"
)

// In-memory fakes for the repository interfaces. Stored values are copies
// so tests can't mutate state behind the service's back.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---- users ----

type fakeUserRepo struct {
	users     map[string]*model.User
	createErr error
	updateErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}}
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	u.Email = strings.ToLower(u.Email)
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperror.Conflict("user", u.Email)
		}
		if u.Auth0ID != nil && existing.Auth0ID != nil && *existing.Auth0ID == *u.Auth0ID {
			return apperror.Conflict("user", *u.Auth0ID)
		}
	}
	if u.ID == "" {
		u.ID = xid.New().String()
	}
	u.CreatedAt = time.Now()
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) GetByAuth0ID(_ context.Context, id string) (*model.User, error) {
	for _, u := range f.users {
		if u.Auth0ID != nil && *u.Auth0ID == id {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	existing, ok := f.users[u.ID]
	if !ok {
		return apperror.NotFound("user", u.ID)
	}
	stored := *u
	stored.Password = existing.Password
	stored.Email = existing.Email
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUserRepo) List(_ context.Context, opts repository.ListOptions) ([]model.User, error) {
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return applyPage(out, opts), nil
}

func applyPage[T any](in []T, opts repository.ListOptions) []T {
	if opts.Offset >= len(in) {
		return []T{}
	}
	in = in[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(in) {
		in = in[:opts.Limit]
	}
	return in
}

// ---- reference data ----

type fakeCategoryRepo struct {
	cats    map[string]*model.Category
	getErr  error
	listErr error
}

func newFakeCategoryRepo(names ...string) *fakeCategoryRepo {
	f := &fakeCategoryRepo{cats: map[string]*model.Category{}}
	for _, n := range names {
		f.Create(context.Background(), &model.Category{ID: "cat-" + strings.ToLower(n), Name: n})
	}
	return f
}

func (f *fakeCategoryRepo) Create(_ context.Context, c *model.Category) error {
	for _, existing := range f.cats {
		if existing.Name == c.Name {
			return apperror.Conflict("category", c.Name)
		}
	}
	if c.ID == "" {
		c.ID = xid.New().String()
	}
	stored := *c
	f.cats[c.ID] = &stored
	return nil
}

func (f *fakeCategoryRepo) GetByID(_ context.Context, id string) (*model.Category, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.cats[id]
	if !ok {
		return nil, apperror.NotFound("category", id)
	}
	out := *c
	return &out, nil
}

func (f *fakeCategoryRepo) List(context.Context) ([]model.Category, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Category, 0, len(f.cats))
	for _, c := range f.cats {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeAgencyRepo struct {
	agencies map[string]*model.Agency
}

func newFakeAgencyRepo(names ...string) *fakeAgencyRepo {
	f := &fakeAgencyRepo{agencies: map[string]*model.Agency{}}
	for _, n := range names {
		id := "ag-" + strings.ToLower(strings.ReplaceAll(n, " ", "-"))
		f.Create(context.Background(), &model.Agency{ID: id, Name: n})
	}
	return f
}

func (f *fakeAgencyRepo) Create(_ context.Context, a *model.Agency) error {
	for _, existing := range f.agencies {
		if existing.Name == a.Name {
			return apperror.Conflict("agency", a.Name)
		}
	}
	if a.ID == "" {
		a.ID = xid.New().String()
	}
	stored := *a
	f.agencies[a.ID] = &stored
	return nil
}

func (f *fakeAgencyRepo) GetByID(_ context.Context, id string) (*model.Agency, error) {
	a, ok := f.agencies[id]
	if !ok {
		return nil, apperror.NotFound("agency", id)
	}
	out := *a
	return &out, nil
}

func (f *fakeAgencyRepo) GetByName(_ context.Context, name string) (*model.Agency, error) {
	for _, a := range f.agencies {
		if strings.EqualFold(a.Name, strings.TrimSpace(name)) {
			out := *a
			return &out, nil
		}
	}
	return nil, apperror.NotFound("agency", name)
}

func (f *fakeAgencyRepo) List(context.Context) ([]model.Agency, error) {
	out := make([]model.Agency, 0, len(f.agencies))
	for _, a := range f.agencies {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- complaints ----

type fakeComplaintRepo struct {
	complaints map[string]*model.Complaint
	categories *fakeCategoryRepo
	agencies   *fakeAgencyRepo
	// conflicts makes the next N Create calls fail with a conflict.
	conflicts int
	creates   int
	updates   int
	createErr error
}

func newFakeComplaintRepo(cats *fakeCategoryRepo, ags *fakeAgencyRepo) *fakeComplaintRepo {
	return &fakeComplaintRepo{complaints: map[string]*model.Complaint{}, categories: cats, agencies: ags}
}

func (f *fakeComplaintRepo) Create(_ context.Context, c *model.Complaint) error {
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	if f.conflicts > 0 {
		f.conflicts--
		return apperror.Conflict("complaint", c.TrackingCode)
	}
	for _, existing := range f.complaints {
		if existing.TrackingCode == c.TrackingCode {
			return apperror.Conflict("complaint", c.TrackingCode)
		}
	}
	if c.ID == "" {
		c.ID = xid.New().String()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	stored := *c
	f.complaints[c.ID] = &stored
	return nil
}

// withRefs mimics the repository preload.
func (f *fakeComplaintRepo) withRefs(c *model.Complaint) *model.Complaint {
	out := *c
	if cat, ok := f.categories.cats[c.CategoryID]; ok {
		out.Category = *cat
	}
	out.Agency = nil
	if c.AgencyID != nil {
		if a, ok := f.agencies.agencies[*c.AgencyID]; ok {
			ag := *a
			out.Agency = &ag
		}
	}
	return &out
}

func (f *fakeComplaintRepo) GetByID(_ context.Context, id string) (*model.Complaint, error) {
	c, ok := f.complaints[id]
	if !ok {
		return nil, apperror.NotFound("complaint", id)
	}
	return f.withRefs(c), nil
}

func (f *fakeComplaintRepo) GetByTrackingCode(_ context.Context, code string) (*model.Complaint, error) {
	for _, c := range f.complaints {
		if c.TrackingCode == code {
			return f.withRefs(c), nil
		}
	}
	return nil, apperror.NotFound("complaint", code)
}

func (f *fakeComplaintRepo) List(_ context.Context, filter repository.ComplaintFilter) ([]model.Complaint, error) {
	var out []model.Complaint
	for _, c := range f.complaints {
		if filter.UserID != "" && (c.UserID == nil || *c.UserID != filter.UserID) {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && c.Priority != filter.Priority {
			continue
		}
		if filter.AgencyID != "" && (c.AgencyID == nil || *c.AgencyID != filter.AgencyID) {
			continue
		}
		if filter.CategoryID != "" && c.CategoryID != filter.CategoryID {
			continue
		}
		out = append(out, *f.withRefs(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return applyPage(out, filter.ListOptions), nil
}

func (f *fakeComplaintRepo) UpdateTriage(_ context.Context, c *model.Complaint) error {
	f.updates++
	existing, ok := f.complaints[c.ID]
	if !ok {
		return apperror.NotFound("complaint", c.ID)
	}
	existing.Status = c.Status
	existing.Priority = c.Priority
	existing.AgencyID = c.AgencyID
	existing.StaffNotes = c.StaffNotes
	existing.UpdatedAt = time.Now()
	return nil
}

// ---- notifications ----

type fakeNotificationRepo struct {
	notifications []model.Notification
	prefs         map[string]model.NotificationPreferences
	createErr     error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{prefs: map[string]model.NotificationPreferences{}}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	n.ID = xid.New().String()
	n.CreatedAt = time.Now()
	f.notifications = append(f.notifications, *n)
	return nil
}

func (f *fakeNotificationRepo) ListForUser(_ context.Context, userID string, opts repository.ListOptions) ([]model.Notification, error) {
	var out []model.Notification
	for i := len(f.notifications) - 1; i >= 0; i-- {
		if f.notifications[i].UserID == userID {
			out = append(out, f.notifications[i])
		}
	}
	return applyPage(out, opts), nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, userID, id string) error {
	for i := range f.notifications {
		if f.notifications[i].ID == id && f.notifications[i].UserID == userID {
			f.notifications[i].Read = true
			return nil
		}
	}
	return apperror.NotFound("notification", id)
}

func (f *fakeNotificationRepo) GetPreferences(_ context.Context, userID string) (*model.NotificationPreferences, error) {
	p, ok := f.prefs[userID]
	if !ok {
		return nil, apperror.NotFound("notification preferences", userID)
	}
	return &p, nil
}

func (f *fakeNotificationRepo) SavePreferences(_ context.Context, p *model.NotificationPreferences) error {
	f.prefs[p.UserID] = *p
	return nil
}

// ---- collaborators ----

type fakeClassifier struct {
	suggestion *classifier.Suggestion
	err        error
	// block waits for ctx to be done before returning, simulating a hang.
	block bool
	got   classifier.Input
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, in classifier.Input) (*classifier.Suggestion, error) {
	f.calls++
	f.got = in
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.suggestion, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type recordingNotifier struct {
	calls []model.Status
	err   error
}

func (r *recordingNotifier) ComplaintStatusChanged(_ context.Context, c *model.Complaint, previous model.Status) error {
	r.calls = append(r.calls, previous)
	return r.err
}
