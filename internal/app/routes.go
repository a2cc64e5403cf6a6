package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mx-space/blockdraft/internal/middleware"
	"github.com/mx-space/blockdraft/internal/modules/draft"
	"github.com/mx-space/blockdraft/internal/modules/markdown"
	"github.com/mx-space/blockdraft/internal/modules/render"
	"github.com/mx-space/blockdraft/internal/modules/session"
	"github.com/mx-space/blockdraft/internal/pkg/response"
)

const apiPrefix = "/api/v2"

var appInfo = gin.H{
	"name":    "blockdraft",
	"version": "1.0.0",
}

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth()

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	api := r.Group(apiPrefix)
	api.Use(middleware.OptionalAuth())
	if a.rc != nil {
		// Rate limiting and idempotence need Redis.
		api.Use(middleware.RateLimit(a.rc.Raw(), a.cfg.RateLimit, a.logger))
		api.Use(middleware.Idempotence(a.rc.Raw()))
	}

	api.GET("", func(c *gin.Context) { response.OK(c, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	renderOpts := render.Options{
		Sanitize:       a.cfg.Render.Sanitize,
		HighlightStyle: a.cfg.Render.HighlightStyle,
	}

	draftHandler := draft.NewHandler(a.drafts)
	draftHandler.OnChange = a.purgePages
	draftHandler.RegisterRoutes(api, authMW)

	markdown.NewHandler(a.drafts, a.logger.Named("MarkdownService")).RegisterRoutes(api, authMW)
	session.NewHandler(a.hub, renderOpts).RegisterRoutes(api, authMW)

	pages := api.Group("")
	pages.Use(middleware.HTTPCache(a.rawRedis(), middleware.HTTPCacheOptions{
		TTL:     a.cfg.Render.CacheTTL,
		Disable: a.cfg.IsDev(),
	}))
	render.NewHandler(draft.NewRemoteAdapter(a.drafts), renderOpts, a.logger.Named("RenderService")).
		RegisterRoutes(pages, authMW)

	jobs := api.Group("/jobs", authMW)
	jobs.GET("", func(c *gin.Context) { response.OK(c, a.sched.List()) })
	jobs.POST("/:name/run", a.runJob)
}

func (a *App) runJob(c *gin.Context) {
	name := c.Param("name")
	// Detached so a client disconnect does not cancel a half-done purge.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), time.Minute)
	defer cancel()
	if err := a.sched.Run(ctx, name); err != nil {
		response.NotFoundMsg(c, err.Error())
		return
	}
	item, err := a.sched.Status(name)
	if err != nil {
		response.NotFoundMsg(c, err.Error())
		return
	}
	response.OK(c, item)
}
