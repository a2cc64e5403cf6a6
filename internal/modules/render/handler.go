package render

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mx-space/blockdraft/internal/middleware"
	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/draftsync"
	"github.com/mx-space/blockdraft/internal/pkg/highlight"
	"github.com/mx-space/blockdraft/internal/pkg/response"
)

// Loader is the load-draft contract the public pages read from.
type Loader interface {
	Load(ctx context.Context, id string) (*draftsync.LoadedDraft, error)
}

const stylesheetMaxAge = 24 * time.Hour

type Handler struct {
	loader Loader
	opts   Options
	log    *zap.Logger
}

func NewHandler(loader Loader, opts Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{loader: loader, opts: opts, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/render")
	g.GET("/drafts/:id", h.renderDraft)
	g.GET("/drafts/:id/markdown", h.exportMarkdown)
	g.GET("/drafts/:id/toc", h.toc)
	g.GET("/highlight.css", middleware.MaxAge(stylesheetMaxAge), h.stylesheet)
	g.POST("/preview", authMW, h.preview)
}

// renderDraft serves the public page of a published draft. Unpublished
// drafts are visible to authenticated users only.
func (h *Handler) renderDraft(c *gin.Context) {
	d, ok := h.loadVisible(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, h.page(d.Title, d.Blocks))
}

func (h *Handler) exportMarkdown(c *gin.Context) {
	d, ok := h.loadVisible(c)
	if !ok {
		return
	}
	body, err := ToMarkdown(d.Blocks)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if title := strings.TrimSpace(d.Title); title != "" {
		body = "# " + title + "\n\n" + body
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(body))
}

func (h *Handler) toc(c *gin.Context) {
	d, ok := h.loadVisible(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{
		"title":    d.Title,
		"headings": ExtractTOC(d.Blocks),
	})
}

func (h *Handler) stylesheet(c *gin.Context) {
	css, err := highlight.Stylesheet(h.opts.HighlightStyle)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/css; charset=utf-8", []byte(css))
}

type previewDTO struct {
	Title  string         `json:"title"`
	Blocks []models.Block `json:"blocks" binding:"required"`
}

func (h *Handler) preview(c *gin.Context) {
	var dto previewDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, h.page(dto.Title, dto.Blocks))
}

func (h *Handler) loadVisible(c *gin.Context) (*draftsync.LoadedDraft, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.NotFound(c)
		return nil, false
	}
	d, err := h.loader.Load(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, draftsync.ErrNotFound) {
			response.NotFound(c)
			return nil, false
		}
		h.log.Error("load draft for render", zap.String("id", id), zap.Error(err))
		response.InternalError(c, err)
		return nil, false
	}
	if d.Status == models.DraftStatusDeleted {
		response.NotFound(c)
		return nil, false
	}
	if d.Status != models.DraftStatusPublished && !middleware.IsAuthenticated(c) {
		response.Forbidden(c)
		return nil, false
	}
	return d, true
}

func (h *Handler) codeStyle() string {
	css, err := highlight.Stylesheet(h.opts.HighlightStyle)
	if err != nil {
		h.log.Warn("build highlight stylesheet", zap.Error(err))
		return ""
	}
	return css
}

func (h *Handler) page(title string, blocks []models.Block) string {
	escapedTitle := template.HTMLEscapeString(strings.TrimSpace(title))
	return `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>` + escapedTitle + `</title>
  <style>` + h.codeStyle() + `</style>
  <style>
    body { margin: 0; padding: 24px; font: 16px/1.7 -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; color: #222; background: #fff; }
    main { max-width: 860px; margin: 0 auto; }
    h1 { margin: 0 0 20px; font-size: 28px; }
    pre { white-space: pre-wrap; word-break: break-word; border: 1px solid #eee; border-radius: 8px; padding: 16px; background: #fafafa; }
    .block-placeholder { padding: 12px; border: 1px dashed #ccc; border-radius: 8px; color: #888; }
    .gallery-block { display: grid; gap: var(--gallery-gap); grid-template-columns: repeat(var(--gallery-columns), 1fr); }
    .gallery-block img { width: 100%; aspect-ratio: var(--gallery-ratio); object-fit: cover; }
    .gallery-lightbox-overlay { display: none; }
    .gallery-lightbox-overlay:target { display: flex; position: fixed; inset: 0; background: rgba(0,0,0,.85); }
  </style>
</head>
<body>
  <main>
    <h1>` + escapedTitle + `</h1>
    ` + string(RenderDocument(blocks, h.opts)) + `
  </main>
</body>
</html>`
}
