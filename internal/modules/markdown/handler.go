package markdown

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mx-space/blockdraft/internal/middleware"
	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/draft"
	"github.com/mx-space/blockdraft/internal/modules/render"
	"github.com/mx-space/blockdraft/internal/pkg/pagination"
	"github.com/mx-space/blockdraft/internal/pkg/response"
)

// Handler handles markdown import/export endpoints.
type Handler struct {
	drafts *draft.Service
	log    *zap.Logger
}

func NewHandler(drafts *draft.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{drafts: drafts, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/markdown", authMW)
	g.POST("/structure", h.structure)
	g.GET("/export", h.export)
	g.GET("/export/:id", h.exportOne)
	g.POST("/import", h.importMarkdown)
}

type structureDTO struct {
	Text string `json:"text" binding:"required"`
}

// POST /markdown/structure: the blocks and headings a markdown text would
// import as, without saving anything.
func (h *Handler) structure(c *gin.Context) {
	var dto structureDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	doc, err := Parse(dto.Text)
	if err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.OK(c, gin.H{
		"title":    doc.FrontMatter.Title,
		"blocks":   doc.Blocks,
		"headings": render.ExtractTOC(doc.Blocks),
	})
}

func exportOptions(c *gin.Context) ExportOptions {
	flag := func(name string) bool {
		v := c.Query(name)
		return v == "true" || v == "1"
	}
	return ExportOptions{ShowTitle: flag("show_title"), FrontMatter: flag("yaml")}
}

// GET /markdown/export?show_title=true&yaml=true
func (h *Handler) export(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	drafts, err := pagination.Collect(func(q pagination.Query) ([]models.DraftModel, response.Pagination, error) {
		return h.drafts.List(c.Request.Context(), userID, q, nil)
	})
	if err != nil {
		response.InternalError(c, err)
		return
	}

	archive, err := Archive(drafts, exportOptions(c))
	if err != nil {
		h.log.Error("build markdown archive", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	timestamp := time.Now().Format("20060102_150405")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="blockdraft-export-%s.zip"`, timestamp))
	c.Data(http.StatusOK, "application/zip", archive)
}

func (h *Handler) exportOne(c *gin.Context) {
	d, err := h.drafts.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, draft.ErrNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	userID := middleware.CurrentUserID(c)
	if d.UserID != userID && models.Deref(d.CoAuthorID) != userID {
		response.Forbidden(c)
		return
	}
	content, err := Export(d, exportOptions(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.md"`, d.ID))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(content))
}

// POST /markdown/import
type importDTO struct {
	Data []importItem `json:"data" binding:"required"`
}

type importItem struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type importFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

func (h *Handler) importMarkdown(c *gin.Context) {
	var dto importDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := middleware.CurrentUserID(c)
	ids := []string{}
	failed := []importFailure{}
	for i, item := range dto.Data {
		doc, err := Parse(item.Text)
		if err != nil {
			failed = append(failed, importFailure{Index: i, Error: err.Error()})
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = doc.FrontMatter.Title
		}
		in := draft.SaveInput{
			UserID:      userID,
			Title:       &title,
			Description: models.StringPtr(doc.FrontMatter.Description),
			Blocks:      doc.Blocks,
		}
		// re-importing an export updates the same draft
		if id := strings.TrimSpace(doc.FrontMatter.ID); id != "" {
			in.ID = &id
		}
		res, err := h.drafts.Save(c.Request.Context(), in)
		if err != nil {
			h.log.Warn("import markdown", zap.Int("index", i), zap.Error(err))
			failed = append(failed, importFailure{Index: i, Error: err.Error()})
			continue
		}
		ids = append(ids, res.Draft.ID)
	}

	response.OK(c, gin.H{"imported": len(ids), "ids": ids, "failed": failed})
}
