package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/blockdraft/internal/middleware"
	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/draftsync"
)

type mapLoader map[string]*draftsync.LoadedDraft

func (m mapLoader) Load(_ context.Context, id string) (*draftsync.LoadedDraft, error) {
	d, ok := m[id]
	if !ok {
		return nil, draftsync.ErrNotFound
	}
	return d, nil
}

func newRenderRouter(authenticated bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	loader := mapLoader{
		"pub": {
			ID:     "pub",
			Title:  "Public <post>",
			Status: models.DraftStatusPublished,
			Blocks: []models.Block{
				{Type: models.BlockHeading, Data: "Intro"},
				{Type: models.BlockText, Data: "hello **world**"},
			},
		},
		"wip":  {ID: "wip", Status: models.DraftStatusDraft, Blocks: []models.Block{{Type: models.BlockText, Data: "secret"}}},
		"gone": {ID: "gone", Status: models.DraftStatusDeleted},
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if authenticated {
			c.Set(middleware.ContextKeyUserID, "user-1")
		}
		c.Next()
	})
	requireUser := func(c *gin.Context) {
		if !middleware.IsAuthenticated(c) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
	NewHandler(loader, DefaultOptions(), nil).RegisterRoutes(r.Group("/api/v2"), requireUser)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRenderPublishedDraftPage(t *testing.T) {
	w := get(newRenderRouter(false), "/api/v2/render/drafts/pub")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<title>Public &lt;post&gt;</title>")
	assert.Contains(t, body, `id="block-0-heading"`)
	assert.Contains(t, body, "<strong>world</strong>")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestRenderVisibility(t *testing.T) {
	anon := newRenderRouter(false)
	assert.Equal(t, http.StatusForbidden, get(anon, "/api/v2/render/drafts/wip").Code)
	assert.Equal(t, http.StatusNotFound, get(anon, "/api/v2/render/drafts/gone").Code)
	assert.Equal(t, http.StatusNotFound, get(anon, "/api/v2/render/drafts/nope").Code)

	authed := newRenderRouter(true)
	assert.Equal(t, http.StatusOK, get(authed, "/api/v2/render/drafts/wip").Code)
	assert.Equal(t, http.StatusNotFound, get(authed, "/api/v2/render/drafts/gone").Code)
}

func TestRenderMarkdownAndTOC(t *testing.T) {
	r := newRenderRouter(false)

	w := get(r, "/api/v2/render/drafts/pub/markdown")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "# Public <post>\n\n## Intro"))

	w = get(r, "/api/v2/render/drafts/pub/toc")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"anchor":"block-0"`)
}

func TestRenderStylesheet(t *testing.T) {
	w := get(newRenderRouter(false), "/api/v2/render/highlight.css")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/css")
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))
}

func TestRenderPreviewRequiresAuth(t *testing.T) {
	payload := `{"title":"T","blocks":[{"type":"divider"}]}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v2/render/preview", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	newRenderRouter(false).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v2/render/preview", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	newRenderRouter(true).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<hr")
}
