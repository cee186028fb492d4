package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/civic-complaints/internal/handler"
	"github.com/sakif/civic-complaints/internal/model"
	"github.com/sakif/civic-complaints/internal/service"
)

func TestUserHandler_Profile(t *testing.T) {
	env := newTestEnv(t, nil)
	h := handler.NewUserHandler(env.accounts, env.logger)
	u := env.newUser(t, "p@example.com", model.RoleCitizen)

	rec := call(t, http.MethodPatch, "/profile", "/profile", map[string]any{"fullName": "Renamed", "city": "Sylhet"}, u, h.HandleUpdateProfile)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, http.MethodGet, "/profile", "/profile", nil, u, h.HandleProfile)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.User](t, rec)
	assert.Equal(t, "Renamed", got.FullName)
	require.NotNil(t, got.City)
	assert.Equal(t, "Sylhet", *got.City)

	rec = call(t, http.MethodPatch, "/profile", "/profile", map[string]any{"fullName": ""}, u, h.HandleUpdateProfile)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserHandler_AdminRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	h := handler.NewUserHandler(env.accounts, env.logger)
	admin := env.newUser(t, "admin@example.com", model.RoleAdmin)
	target := env.newUser(t, "t@example.com", model.RoleCitizen)

	rec := call(t, http.MethodGet, "/users", "/users", nil, admin, h.HandleList)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.User](t, rec), 2)

	rec = call(t, http.MethodPatch, "/users/{id}/role", "/users/"+target.ID+"/role", map[string]string{"role": "department_manager"}, admin, h.HandleSetRole)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.RoleDepartmentManager, decode[model.User](t, rec).Role)

	rec = call(t, http.MethodPatch, "/users/{id}/role", "/users/"+target.ID+"/role", map[string]string{"role": "superuser"}, admin, h.HandleSetRole)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid role", errorBody(t, rec).Message)

	rec = call(t, http.MethodPatch, "/users/{id}/role", "/users/missing/role", map[string]string{"role": "admin"}, admin, h.HandleSetRole)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	h := handler.NewNotificationHandler(env.notifs, env.logger)
	owner := env.newUser(t, "owner@example.com", model.RoleCitizen)
	other := env.newUser(t, "other@example.com", model.RoleCitizen)
	ctx := context.Background()

	created, err := env.complaints.Create(ctx, owner.ID, service.CreateComplaintInput{
		Title: "Noise", Description: "Construction noise every night.", CategoryID: env.category.ID,
	})
	require.NoError(t, err)
	status := "resolved"
	_, err = env.complaints.Update(ctx, created.ID, service.UpdateComplaintInput{Status: &status})
	require.NoError(t, err)

	rec := call(t, http.MethodGet, "/n", "/n", nil, owner, h.HandleList)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]model.Notification](t, rec)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Message, created.TrackingCode)
	assert.False(t, list[0].Read)

	rec = call(t, http.MethodPatch, "/n/{id}/read", "/n/"+list[0].ID+"/read", nil, other, h.HandleMarkRead)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, http.MethodPatch, "/n/{id}/read", "/n/"+list[0].ID+"/read", nil, owner, h.HandleMarkRead)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, http.MethodGet, "/p", "/p", nil, owner, h.HandlePreferences)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"emailEnabled":true,"smsEnabled":false,"inAppEnabled":true,"updatedAt":"0001-01-01T00:00:00Z"}`, rec.Body.String())

	rec = call(t, http.MethodPut, "/p", "/p", map[string]bool{"emailEnabled": false, "smsEnabled": true, "inAppEnabled": false}, owner, h.HandleUpdatePreferences)
	require.Equal(t, http.StatusOK, rec.Code)
	prefs := decode[model.NotificationPreferences](t, rec)
	assert.True(t, prefs.SMSEnabled)
	assert.False(t, prefs.InAppEnabled)
}

func TestReferenceHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	h := handler.NewReferenceHandler(env.refs, env.logger)

	rec := call(t, http.MethodGet, "/categories", "/categories", nil, nil, h.HandleCategories)
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[[]model.Category](t, rec)
	require.Len(t, cats, 1)
	assert.Equal(t, "Roads", cats[0].Name)

	rec = call(t, http.MethodGet, "/agencies", "/agencies", nil, nil, h.HandleAgencies)
	require.Equal(t, http.StatusOK, rec.Code)
	ags := decode[[]model.Agency](t, rec)
	require.Len(t, ags, 1)
	assert.Equal(t, "works@city.gov", ags[0].ContactEmail)
}
