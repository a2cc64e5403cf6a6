package session

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mx-space/blockdraft/internal/middleware"
	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/draft"
	"github.com/mx-space/blockdraft/internal/modules/draftsync"
	"github.com/mx-space/blockdraft/internal/modules/editor"
	"github.com/mx-space/blockdraft/internal/modules/render"
	"github.com/mx-space/blockdraft/internal/pkg/response"
)

// contextHeader carries the identity of the draft the client navigated from.
const contextHeader = "X-Draft-Context"

type Handler struct {
	hub  *Hub
	opts render.Options
}

func NewHandler(hub *Hub, opts render.Options) *Handler {
	return &Handler{hub: hub, opts: opts}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/editor/:key", authMW)
	g.GET("", h.state)
	g.DELETE("", h.close)
	g.PATCH("/meta", h.meta)
	g.POST("/blocks", h.insert)
	g.PATCH("/blocks/:index", h.update)
	g.DELETE("/blocks/:index", h.remove)
	g.POST("/blocks/:index/retype", h.retype)
	g.POST("/blocks/:index/mode", h.toggleMode)
	g.POST("/move", h.move)
	g.GET("/preview", h.preview)
	g.GET("/toc", h.toc)
	g.POST("/save", h.save)
	g.POST("/publish", h.publish)
}

func (h *Handler) open(c *gin.Context) (*Session, bool) {
	s, err := h.hub.Open(c.Request.Context(), c.Param("key"), OpenOptions{
		ExplicitID: c.Query("id"),
		ContextID:  c.GetHeader(contextHeader),
		UserID:     middleware.CurrentUserID(c),
	})
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			response.BadRequest(c, err.Error())
			return nil, false
		}
		response.InternalError(c, err)
		return nil, false
	}
	return s, true
}

func indexParam(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.BadRequest(c, "invalid block index")
		return 0, false
	}
	return i, true
}

type mutationResponse struct {
	Changed bool `json:"changed"`
	State
}

func respond(c *gin.Context, s *Session, changed bool) {
	response.OK(c, mutationResponse{Changed: changed, State: s.State()})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnknownBlockType), errors.Is(err, ErrNotCodeBlock):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, ErrIndexOutOfRange):
		response.NotFoundMsg(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func (h *Handler) state(c *gin.Context) {
	s, ok := h.open(c)
	if !ok {
		return
	}
	response.OK(c, s.State())
}

func (h *Handler) close(c *gin.Context) {
	discard := c.Query("discard") == "true" || c.Query("discard") == "1"
	h.hub.Close(c.Request.Context(), middleware.CurrentUserID(c), c.Param("key"), discard)
	response.NoContent(c)
}

type metaDTO struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *Handler) meta(c *gin.Context) {
	var dto metaDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	s, ok := h.open(c)
	if !ok {
		return
	}
	s.SetMeta(dto.Title, dto.Description)
	response.OK(c, s.State())
}

type insertDTO struct {
	Type  models.BlockType `json:"type" binding:"required"`
	Index *int             `json:"index"`
	Data  string           `json:"data"`
}

func (h *Handler) insert(c *gin.Context) {
	var dto insertDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	s, ok := h.open(c)
	if !ok {
		return
	}
	index := -1
	if dto.Index != nil {
		index = *dto.Index
	}
	changed, err := s.Insert(c.Request.Context(), dto.Type, index, dto.Data)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, s, changed)
}

type updateDTO struct {
	Value    *string `json:"value"`
	Field    string  `json:"field"`
	Language *string `json:"language"`
}

func (h *Handler) update(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var dto updateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	field := editor.FieldData
	if dto.Field != "" {
		field = editor.Field(dto.Field)
	}
	if !field.Valid() {
		response.BadRequest(c, "field must be data or name")
		return
	}
	if dto.Value == nil && dto.Language == nil {
		response.BadRequest(c, "value or language is required")
		return
	}
	s, ok := h.open(c)
	if !ok {
		return
	}

	changed := false
	if dto.Language != nil {
		ch, err := s.SetLanguage(c.Request.Context(), index, *dto.Language)
		if err != nil {
			writeError(c, err)
			return
		}
		changed = ch
	}
	if dto.Value != nil {
		ch, err := s.Update(c.Request.Context(), index, *dto.Value, field)
		if err != nil {
			writeError(c, err)
			return
		}
		changed = changed || ch
	}
	respond(c, s, changed)
}

func (h *Handler) remove(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	s, ok := h.open(c)
	if !ok {
		return
	}
	respond(c, s, s.Remove(c.Request.Context(), index))
}

type retypeDTO struct {
	Type models.BlockType `json:"type" binding:"required"`
}

func (h *Handler) retype(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var dto retypeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	s, ok := h.open(c)
	if !ok {
		return
	}
	changed, err := s.Retype(c.Request.Context(), index, dto.Type)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, s, changed)
}

func (h *Handler) toggleMode(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	s, ok := h.open(c)
	if !ok {
		return
	}
	mode, err := s.ToggleMode(index)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"index": index, "mode": mode.String()})
}

type moveDTO struct {
	From *int `json:"from" binding:"required"`
	To   *int `json:"to" binding:"required"`
}

func (h *Handler) move(c *gin.Context) {
	var dto moveDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	s, ok := h.open(c)
	if !ok {
		return
	}
	respond(c, s, s.Move(c.Request.Context(), *dto.From, *dto.To))
}

func (h *Handler) preview(c *gin.Context) {
	s, ok := h.open(c)
	if !ok {
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(render.RenderDocument(s.Editor().Blocks(), h.opts)))
}

func (h *Handler) toc(c *gin.Context) {
	s, ok := h.open(c)
	if !ok {
		return
	}
	response.OK(c, render.ExtractTOC(s.Editor().Blocks()))
}

type saveResponse struct {
	draftsync.SaveResult
	State State `json:"state"`
}

func (h *Handler) save(c *gin.Context) {
	var dto metaDTO
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&dto); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	s, ok := h.open(c)
	if !ok {
		return
	}
	s.SetMeta(dto.Title, dto.Description)
	res, err := s.Save(c.Request.Context())
	if err != nil {
		draft.WriteStoreError(c, err, response.BadGateway)
		return
	}
	response.OK(c, saveResponse{SaveResult: res, State: s.State()})
}

func (h *Handler) publish(c *gin.Context) {
	s, ok := h.open(c)
	if !ok {
		return
	}
	res, err := s.Publish(c.Request.Context())
	if err != nil {
		draft.WriteStoreError(c, err, response.BadGateway)
		return
	}
	response.OK(c, saveResponse{SaveResult: res, State: s.State()})
}
