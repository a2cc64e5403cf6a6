package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mx-space/blockdraft/internal/config"
	"github.com/mx-space/blockdraft/internal/database"
	"github.com/mx-space/blockdraft/internal/middleware"
	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/draft"
	"github.com/mx-space/blockdraft/internal/modules/registry"
	"github.com/mx-space/blockdraft/internal/modules/session"
	pkgcron "github.com/mx-space/blockdraft/internal/pkg/cron"
	jwtpkg "github.com/mx-space/blockdraft/internal/pkg/jwt"
	"github.com/mx-space/blockdraft/internal/pkg/localcache"
	pkgredis "github.com/mx-space/blockdraft/internal/pkg/redis"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	logger *zap.Logger
	drafts *draft.Service
	hub    *session.Hub
	sched  *pkgcron.Scheduler
	cancel context.CancelFunc
}

// New initializes the application: config → DB → Redis → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var rc *pkgredis.Client
	if !cfg.Redis.Disable {
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	} else {
		logger.Warn("redis disabled, editor cache is in memory and request guards are off")
	}

	a := build(logger, cfg, db, rc)
	a.start()
	return a, nil
}

// build wires handlers and jobs onto already opened stores. A nil rc runs
// the in-memory fallbacks.
func build(logger *zap.Logger, cfg *config.AppConfig, db *gorm.DB, rc *pkgredis.Client) *App {
	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		jwtpkg.SetSecret(secret)
	} else {
		logger.Warn("jwt_secret is empty, using built-in default secret")
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	var cache localcache.Store = localcache.NewMemoryStore()
	if rc != nil {
		cache = localcache.NewRedisStore(rc, cfg.Editor.CachePrefix, cfg.Editor.CacheTTL)
	}

	drafts := draft.NewService(db, logger.Named("DraftService"))
	remote := draft.NewRemoteAdapter(drafts)
	hub := session.NewHub(cache, remote, registry.Default(), session.Config{
		ActiveKey:     cfg.Editor.ActiveDraftKey,
		AutosaveDelay: cfg.Editor.AutosaveDebounce,
		Autosave:      cfg.Editor.Autosave,
	}, logger)

	a := &App{
		cfg:    cfg,
		router: router,
		db:     db,
		rc:     rc,
		logger: logger,
		drafts: drafts,
		hub:    hub,
		sched:  pkgcron.New(logger),
	}
	remote.OnSaved = func(ctx context.Context, d *models.DraftModel) { a.purgePages(ctx, d.ID) }

	registerJobs(a.sched, a)
	a.registerRoutes()
	return a
}

func (a *App) start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.sched.Start(ctx)
}

// purgePages drops cached public pages of a draft after it changed.
func (a *App) purgePages(ctx context.Context, id string) {
	if a.rc == nil {
		return
	}
	if _, err := middleware.PurgeHTTPCache(ctx, a.rc.Raw(), id); err != nil {
		a.logger.Warn("purge page cache failed", zap.String("draft", id), zap.Error(err))
	}
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background jobs and pending autosaves, then closes the
// stores. Unsaved edits stay in the local cache.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
		a.sched.Wait()
	}
	a.hub.Shutdown()
	if a.rc != nil {
		_ = a.rc.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (a *App) rawRedis() *redis.Client {
	if a.rc == nil {
		return nil
	}
	return a.rc.Raw()
}
