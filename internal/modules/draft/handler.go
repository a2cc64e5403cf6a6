package draft

import (
	"context"
	"errors"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gin-gonic/gin"

	"github.com/mx-space/blockdraft/internal/middleware"
	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/pkg/pagination"
	"github.com/mx-space/blockdraft/internal/pkg/response"
)

type saveDTO struct {
	ID          *string             `json:"id"`
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Blocks      []models.Block      `json:"blocks"`
	Status      *models.DraftStatus `json:"status"`
	CategoryID  *string             `json:"categoryId"`
	CoAuthorID  *string             `json:"coAuthorId"`
}

type draftResponse struct {
	models.DraftModel
	Published bool `json:"published"`
}

func toResponse(d *models.DraftModel) draftResponse {
	return draftResponse{
		DraftModel: *d,
		Published:  d.Status == models.DraftStatusPublished,
	}
}

type Handler struct {
	svc *Service
	// OnChange runs after a draft's public rendering may have changed.
	OnChange func(ctx context.Context, id string)
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/drafts", authMW)
	g.GET("", h.list)
	g.POST("", h.save)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.save)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/restore", h.restore)
	g.POST("/:id/lock", h.lock)
	g.DELETE("/:id/lock", h.unlock)
	g.POST("/:id/publish", h.publish)
	g.GET("/:id/history", h.history)
	g.GET("/:id/history/:version", h.historyVersion)
	g.POST("/:id/history/:version/restore", h.restoreVersion)
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	var status *models.DraftStatus
	if raw := c.Query("status"); raw != "" {
		s := models.DraftStatus(raw)
		status = &s
	}
	items, pag, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), q, status)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]draftResponse, len(items))
	for i := range items {
		out[i] = toResponse(&items[i])
	}
	response.Paged(c, out, pag)
}

func (h *Handler) get(c *gin.Context) {
	d, err := h.svc.owned(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, toResponse(d))
}

// save handles both POST /drafts and PUT /drafts/:id. Replaying the same
// request is safe: the stored draft is returned unchanged.
func (h *Handler) save(c *gin.Context) {
	var dto saveDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if id := c.Param("id"); id != "" {
		dto.ID = &id
	}
	res, err := h.svc.Save(c.Request.Context(), SaveInput{
		ID:          dto.ID,
		UserID:      middleware.CurrentUserID(c),
		Title:       dto.Title,
		Description: dto.Description,
		Blocks:      dto.Blocks,
		Status:      dto.Status,
		CategoryID:  dto.CategoryID,
		CoAuthorID:  dto.CoAuthorID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if res.Changed {
		h.changed(c, res.Draft.ID)
	}
	if res.Created {
		response.Created(c, toResponse(res.Draft))
		return
	}
	response.OK(c, toResponse(res.Draft))
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), id, middleware.CurrentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	h.changed(c, id)
	response.NoContent(c)
}

func (h *Handler) restore(c *gin.Context) {
	d, err := h.svc.Restore(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, toResponse(d))
}

func (h *Handler) lock(c *gin.Context) {
	d, err := h.svc.Lock(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, toResponse(d))
}

func (h *Handler) unlock(c *gin.Context) {
	d, err := h.svc.Unlock(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, toResponse(d))
}

func (h *Handler) publish(c *gin.Context) {
	d, err := h.svc.Publish(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.changed(c, d.ID)
	response.OK(c, toResponse(d))
}

func (h *Handler) history(c *gin.Context) {
	items, err := h.svc.History(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, items)
}

func (h *Handler) historyVersion(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		response.BadRequest(c, "invalid version")
		return
	}
	snap, err := h.svc.HistoryVersion(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), version)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, snap)
}

func (h *Handler) restoreVersion(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		response.BadRequest(c, "invalid version")
		return
	}
	d, err := h.svc.RestoreVersion(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), version)
	if err != nil {
		writeError(c, err)
		return
	}
	h.changed(c, d.ID)
	response.OK(c, toResponse(d))
}

func (h *Handler) changed(c *gin.Context, id string) {
	if h.OnChange != nil {
		h.OnChange(c.Request.Context(), id)
	}
}

func writeError(c *gin.Context, err error) {
	WriteStoreError(c, err, response.InternalError)
}

// WriteStoreError answers a draft store error with its dedicated status.
// Anything else goes to fallback.
func WriteStoreError(c *gin.Context, err error, fallback func(*gin.Context, error)) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		response.UnprocessableEntity(c, verrs.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrVersionNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrForbidden):
		response.ForbiddenMsg(c, err.Error())
	case errors.Is(err, ErrLocked):
		response.Locked(c, err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNothingToPublish):
		response.Conflict(c, err.Error())
	default:
		fallback(c, err)
	}
}
