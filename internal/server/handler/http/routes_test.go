package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/atinyakov/BranchLift/internal/kv"
	"github.com/atinyakov/BranchLift/internal/lookup"
	"github.com/atinyakov/BranchLift/internal/models"
	handler "github.com/atinyakov/BranchLift/internal/server/handler/http"
	"github.com/atinyakov/BranchLift/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type app struct {
	router   http.Handler
	sessions *service.SessionStore
}

func newApp(t *testing.T) *app {
	t.Helper()
	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/facebook/react" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"id":10270250,"full_name":"facebook/react","html_url":"https://github.com/facebook/react","description":null}`)
	}))
	t.Cleanup(gh.Close)

	store := kv.NewMemory()
	sessions := service.NewSessionStore(store, nil, nil)
	ws := service.NewWorkspace(store, sessions, service.WorkspaceConfig{
		Lookup:     lookup.NewGitHub(gh.URL, time.Second),
		BuildDelay: 20 * time.Millisecond,
	})
	t.Cleanup(ws.Reset)

	router := handler.NewRouter(
		&handler.AuthHandler{Sessions: sessions, Workspace: ws},
		&handler.WorkspaceHandler{Workspace: ws},
		sessions,
		zap.NewNop(),
	)
	return &app{router: router, sessions: sessions}
}

func (a *app) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_FullFlow(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, "GET", "/api/repositories", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "workspace routes need a session")

	rec = a.do(t, "POST", "/api/signup", handler.SignupRequest{Name: "Ana", Email: "ana@x.com", Password: "Abcdef1", ConfirmPassword: "Abcdef1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess handler.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, handler.ViewDashboard, sess.View)
	require.NotNil(t, sess.Workspace)
	assert.Len(t, sess.Workspace.Branches, 2)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = a.do(t, "POST", "/api/repositories", handler.AddRepositoryRequest{Query: "facebook/react"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.do(t, "POST", "/api/repositories", handler.AddRepositoryRequest{Query: "facebook/react"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, "POST", "/api/repositories", handler.AddRepositoryRequest{Query: "nobody/nothing"})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	rec = a.do(t, "GET", "/api/repositories", nil)
	var repos []models.Repository
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &repos))
	assert.Len(t, repos, 1)

	rec = a.do(t, "POST", "/api/environments", handler.CreateEnvironmentRequest{Name: "preview-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var env models.Environment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, models.StatusBuilding, env.Status)

	require.Eventually(t, func() bool {
		rec := a.do(t, "GET", "/api/environments", nil)
		var envs []models.Environment
		if json.Unmarshal(rec.Body.Bytes(), &envs) != nil || len(envs) != 1 {
			return false
		}
		return envs[0].Status == models.StatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	rec = a.do(t, "DELETE", "/api/environments/"+strconv.FormatInt(env.ID, 10), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, "POST", "/api/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, a.sessions.Current())

	rec = a.do(t, "GET", "/api/session", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, handler.ViewLogin, sess.View)

	rec = a.do(t, "POST", "/api/login", handler.LoginRequest{Email: "ana@x.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, "POST", "/api/login", handler.LoginRequest{Email: "ana@x.com", Password: "Abcdef1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Len(t, sess.Workspace.Repositories, 1)
	assert.Empty(t, sess.Workspace.Environments)
}

func TestRouter_RejectsNonJSONBody(t *testing.T) {
	a := newApp(t)
	req := httptest.NewRequest("POST", "/api/login", bytes.NewBufferString("email=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_DuplicateSignup(t *testing.T) {
	a := newApp(t)
	body := handler.SignupRequest{Name: "Ana", Email: "ana@x.com", Password: "Abcdef1", ConfirmPassword: "Abcdef1"}

	require.Equal(t, http.StatusCreated, a.do(t, "POST", "/api/signup", body).Code)
	assert.Equal(t, http.StatusConflict, a.do(t, "POST", "/api/signup", body).Code)
}
