package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusup/focusd/pkg/auth"
	"github.com/focusup/focusd/pkg/session"
	"github.com/focusup/focusd/pkg/user"
)

const (
	apiTestUserID  = "7b3e1f2a-0001-49c8-9f7d-000000000001"
	apiOtherUserID = "7b3e1f2a-0002-49c8-9f7d-000000000002"
)

var apiTestSecret = []byte("api-test-secret")

type apiEnv struct {
	server   *httptest.Server
	store    *session.MemoryStore
	users    *user.MemoryStore
	service  *session.Service
	verifier *auth.Verifier
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	store := session.NewMemoryStore()
	users := user.NewMemoryStore()
	users.Put(&user.User{ID: apiTestUserID, Email: "student@example.com"})
	users.Put(&user.User{ID: apiOtherUserID, Email: "other@example.com"})

	verifier, err := auth.NewVerifier(apiTestSecret)
	require.NoError(t, err)

	service := session.NewService(store, users, nil)
	handler := NewHandler(service, auth.Middleware(verifier), nil)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &apiEnv{
		server:   server,
		store:    store,
		users:    users,
		service:  service,
		verifier: verifier,
	}
}

// do issues an authenticated request and decodes the JSON response body.
func (e *apiEnv) do(t *testing.T, method, path, userID string, body any) (int, map[string]any) {
	t.Helper()

	var buf *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewBuffer(raw)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, buf)
	require.NoError(t, err)
	if userID != "" {
		token, err := e.verifier.Sign(userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (e *apiEnv) createSession(t *testing.T, userID string) *session.Session {
	t.Helper()

	sess, err := e.service.Create(context.Background(), userID, session.CreateParams{
		Subject:       "Math",
		TargetMinutes: 25,
	})
	require.NoError(t, err)
	return sess
}

func TestCreateSession(t *testing.T) {
	env := newAPIEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/sessions", apiTestUserID, map[string]any{
		"contentId":     "algebra-101",
		"subject":       "Math",
		"targetMinutes": 25,
	})
	require.Equal(t, http.StatusCreated, status)

	sess, ok := body["session"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, apiTestUserID, sess["userId"])
	assert.Equal(t, "Math", sess["subject"])
	assert.Equal(t, "algebra-101", sess["contentId"])
	assert.Equal(t, float64(25), sess["targetMinutes"])
	assert.Equal(t, "active", sess["status"])
	assert.NotEmpty(t, sess["id"])
}

func TestCreateSession_DefaultSubject(t *testing.T) {
	env := newAPIEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/sessions", apiTestUserID, map[string]any{
		"targetMinutes": 10,
	})
	require.Equal(t, http.StatusCreated, status)

	sess := body["session"].(map[string]any)
	assert.Equal(t, "General", sess["subject"])
}

func TestCreateSession_InvalidTarget(t *testing.T) {
	env := newAPIEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/sessions", apiTestUserID, map[string]any{
		"targetMinutes": 0,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid target minutes", body["error"])
}

func TestCreateSession_Unauthenticated(t *testing.T) {
	env := newAPIEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/sessions", "", map[string]any{
		"targetMinutes": 25,
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body["error"], "missing authentication token")
}

func TestGetSession(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession(t, apiTestUserID)

	status, body := env.do(t, http.MethodGet, "/api/sessions/"+sess.ID, apiTestUserID, nil)
	require.Equal(t, http.StatusOK, status)

	got := body["session"].(map[string]any)
	assert.Equal(t, sess.ID, got["id"])
}

func TestGetSession_Foreign(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession(t, apiOtherUserID)

	status, body := env.do(t, http.MethodGet, "/api/sessions/"+sess.ID, apiTestUserID, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not authorized to access this session", body["error"])
}

func TestGetSession_NotFound(t *testing.T) {
	env := newAPIEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/sessions/no-such-id", apiTestUserID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "session not found", body["error"])
}

func TestListSessions(t *testing.T) {
	env := newAPIEnv(t)
	env.createSession(t, apiTestUserID)
	env.createSession(t, apiTestUserID)
	env.createSession(t, apiOtherUserID)

	status, body := env.do(t, http.MethodGet, "/api/sessions", apiTestUserID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])
}

func TestListSessions_FilterAndLimit(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession(t, apiTestUserID)
	env.createSession(t, apiTestUserID)

	_, err := env.service.Finalize(context.Background(), sess.ID, apiTestUserID, session.StatusCompleted, session.Overrides{})
	require.NoError(t, err)

	status, body := env.do(t, http.MethodGet, "/api/sessions?status=completed", apiTestUserID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, body = env.do(t, http.MethodGet, "/api/sessions?limit=1", apiTestUserID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])
}

func TestListSessions_InvalidFilter(t *testing.T) {
	env := newAPIEnv(t)

	status, _ := env.do(t, http.MethodGet, "/api/sessions?status=bogus", apiTestUserID, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, "/api/sessions?limit=-1", apiTestUserID, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListSessions_EmptyIsArray(t *testing.T) {
	env := newAPIEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/sessions", apiTestUserID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["count"])

	sessions, ok := body["sessions"].([]any)
	require.True(t, ok, "sessions must encode as a JSON array, not null")
	assert.Empty(t, sessions)
}

func TestUpdateSession_Pause(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession(t, apiTestUserID)

	status, body := env.do(t, http.MethodPatch, "/api/sessions/"+sess.ID, apiTestUserID, map[string]any{
		"status": "paused",
		"notes":  "break time",
	})
	require.Equal(t, http.StatusOK, status)

	got := body["session"].(map[string]any)
	assert.Equal(t, "paused", got["status"])
	assert.Equal(t, "break time", got["notes"])
}

func TestUpdateSession_TerminalRejected(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession(t, apiTestUserID)

	_, err := env.service.Finalize(context.Background(), sess.ID, apiTestUserID, session.StatusCompleted, session.Overrides{})
	require.NoError(t, err)

	status, body := env.do(t, http.MethodPatch, "/api/sessions/"+sess.ID, apiTestUserID, map[string]any{
		"subject": "Physics",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "session already finalized", body["error"])
}

func TestEndSession_WithOverrides(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession(t, apiTestUserID)

	status, body := env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/end", apiTestUserID, map[string]any{
		"elapsedSeconds": 1500,
		"activeSeconds":  1500,
		"idleSeconds":    0,
		"tabSwitches":    0,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(100), body["focusScore"])

	got := body["session"].(map[string]any)
	assert.Equal(t, "completed", got["status"])
	assert.NotEmpty(t, got["endTime"])

	u, err := env.users.Get(context.Background(), apiTestUserID)
	require.NoError(t, err)
	assert.Equal(t, 100, u.FocusScore)
	assert.Equal(t, 1, u.Streak)
}

func TestEndSession_EmptyBody(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession(t, apiTestUserID)

	status, body := env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/end", apiTestUserID, nil)
	require.Equal(t, http.StatusOK, status)

	got := body["session"].(map[string]any)
	assert.Equal(t, "completed", got["status"])
}

func TestEndSession_Abandoned(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession(t, apiTestUserID)

	status, body := env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/end", apiTestUserID, map[string]any{
		"status": "abandoned",
	})
	require.Equal(t, http.StatusOK, status)

	got := body["session"].(map[string]any)
	assert.Equal(t, "abandoned", got["status"])

	u, err := env.users.Get(context.Background(), apiTestUserID)
	require.NoError(t, err)
	assert.Zero(t, u.Streak)
}

func TestEndSession_Twice(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession(t, apiTestUserID)

	status, _ := env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/end", apiTestUserID, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/end", apiTestUserID, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "session already finalized", body["error"])
}

func TestEndSession_NonTerminalStatus(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession(t, apiTestUserID)

	status, body := env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/end", apiTestUserID, map[string]any{
		"status": "paused",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid status", body["error"])
}

func TestDeleteSession(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession(t, apiTestUserID)

	status, _ := env.do(t, http.MethodDelete, "/api/sessions/"+sess.ID, apiTestUserID, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/api/sessions/"+sess.ID, apiTestUserID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDeleteSession_Foreign(t *testing.T) {
	env := newAPIEnv(t)
	sess := env.createSession(t, apiOtherUserID)

	status, _ := env.do(t, http.MethodDelete, "/api/sessions/"+sess.ID, apiTestUserID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// The owner's session is untouched.
	_, err := env.store.Get(context.Background(), sess.ID)
	assert.NoError(t, err)
}

func TestCreateSession_MalformedBody(t *testing.T) {
	env := newAPIEnv(t)

	token, err := env.verifier.Sign(apiTestUserID, time.Hour)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/sessions", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
