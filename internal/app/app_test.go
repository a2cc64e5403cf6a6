package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/mx-space/blockdraft/internal/config"
	"github.com/mx-space/blockdraft/internal/database"
	"github.com/mx-space/blockdraft/internal/pkg/jwt"
	pkgredis "github.com/mx-space/blockdraft/internal/pkg/redis"
)

type testApp struct {
	*App
	token string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(sqlite.Open("file::memory:"), logger.Silent)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	rc, err := pkgredis.Connect("redis://" + mr.Addr())
	require.NoError(t, err)

	cfg := &config.AppConfig{
		Port:             2333,
		Env:              "production",
		JWTSecret:        "app-test-secret",
		RateLimit:        1000,
		DeletedRetention: 24 * time.Hour,
		Editor: config.EditorConfig{
			CachePrefix:      "test:editor:",
			ActiveDraftKey:   "active-draft-id",
			CacheTTL:         time.Hour,
			AutosaveDebounce: time.Second,
			SessionIdle:      time.Hour,
		},
		Render: config.RenderConfig{
			HighlightStyle: "github",
			Sanitize:       true,
			CacheTTL:       time.Minute,
		},
	}
	a := build(zap.NewNop(), cfg, db, rc)
	t.Cleanup(a.Shutdown)

	token, err := jwt.Sign("user-1", time.Hour)
	require.NoError(t, err)
	return &testApp{App: a, token: token}
}

func (a *testApp) do(method, path, body string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func TestAppInfoAndNotFound(t *testing.T) {
	a := newTestApp(t)

	w := a.do(http.MethodGet, "/api/v2", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"blockdraft"`)

	w = a.do(http.MethodGet, "/api/v2/nope", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ":2333", a.Addr())
}

func TestPublicPageIsCachedAndPurgedOnChange(t *testing.T) {
	a := newTestApp(t)

	w := a.do(http.MethodPut, "/api/v2/drafts/post-1", `{"title":"First","blocks":[{"type":"text","data":"hello"}]}`, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = a.do(http.MethodPost, "/api/v2/drafts/post-1/publish", "", true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/api/v2/render/drafts/post-1", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "First")
	assert.Empty(t, w.Header().Get("x-blockdraft-cache"))

	w = a.do(http.MethodGet, "/api/v2/render/drafts/post-1", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hit", w.Header().Get("x-blockdraft-cache"))

	w = a.do(http.MethodPut, "/api/v2/drafts/post-1", `{"title":"Second"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/api/v2/render/drafts/post-1", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("x-blockdraft-cache"))
	assert.Contains(t, w.Body.String(), "Second")
}

func TestEditorSaveReachesDraftStore(t *testing.T) {
	a := newTestApp(t)

	w := a.do(http.MethodPost, "/api/v2/editor/notes/blocks", `{"type":"text","data":"from editor"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = a.do(http.MethodPost, "/api/v2/editor/notes/save", "", true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var saved struct {
		ID      string `json:"id"`
		Version int    `json:"version"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, 1, saved.Version)

	w = a.do(http.MethodGet, "/api/v2/drafts/"+saved.ID, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "from editor")
}

func TestJobsRoutes(t *testing.T) {
	a := newTestApp(t)

	w := a.do(http.MethodGet, "/api/v2/jobs", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodGet, "/api/v2/jobs", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "purge_deleted_drafts")
	assert.Contains(t, w.Body.String(), "reap_idle_sessions")

	w = a.do(http.MethodPost, "/api/v2/jobs/reap_idle_sessions/run", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"fulfill"`)

	w = a.do(http.MethodPost, "/api/v2/jobs/missing/run", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMatchOriginPattern(t *testing.T) {
	cases := []struct {
		pattern, origin string
		want            bool
	}{
		{"blog.example.com", "https://blog.example.com", true},
		{"https://blog.example.com/", "https://blog.example.com", true},
		{"*.example.com", "https://a.example.com", true},
		{"*.example.com", "https://example.org", false},
		{"localhost:*", "http://localhost:5173", true},
		{"localhost:*", "http://localhost.evil.com", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, matchOriginPattern(tc.pattern, extractOriginHost(tc.origin)), tc.pattern+" vs "+tc.origin)
	}
}

func TestCORSConfig(t *testing.T) {
	cfg := &config.AppConfig{Env: "production", AllowedOrigins: []string{"*.example.com"}}
	c := corsConfig(cfg)
	assert.True(t, c.AllowOriginFunc("https://www.example.com"))
	assert.False(t, c.AllowOriginFunc("https://evil.test"))

	cfg.Env = "development"
	assert.True(t, corsConfig(cfg).AllowOriginFunc("https://evil.test"))
}
