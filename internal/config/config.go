package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int
	Env            string
	DSN            string // MySQL DSN
	RedisURL       string
	Database       DatabaseRuntimeConfig
	Redis          RedisRuntimeConfig
	Paths          RuntimePathsConfig
	LogKeepDays    int
	AllowedOrigins []string
	JWTSecret      string
	RateLimit      int64
	// DeletedRetention is how long deleted drafts are kept before the purge
	// job removes them. Zero disables the job.
	DeletedRetention time.Duration
	Editor           EditorConfig
	Render           RenderConfig
}

type DatabaseRuntimeConfig struct {
	DSN       string
	Host      string
	Port      int
	User      string
	Password  string
	Name      string
	Charset   string
	ParseTime bool
	Loc       string
	Params    map[string]string
}

type RedisRuntimeConfig struct {
	URL      string
	Host     string
	Port     int
	Username string
	Password string
	DB       int
	TLS      bool
	// Disable runs without redis: in-memory editor cache, no idempotence,
	// no rate limiting, no page cache.
	Disable bool
}

type RuntimePathsConfig struct {
	Logs string
}

// EditorConfig configures editor sessions and the local draft cache.
type EditorConfig struct {
	CachePrefix      string
	ActiveDraftKey   string
	CacheTTL         time.Duration
	AutosaveDebounce time.Duration
	Autosave         bool
	SessionIdle      time.Duration
}

// RenderConfig configures the preview renderer and the public pages.
type RenderConfig struct {
	HighlightStyle string
	Sanitize       bool
	CacheTTL       time.Duration
}

type rawAppConfig struct {
	Port               int               `yaml:"port"`
	Env                string            `yaml:"env"`
	DSN                string            `yaml:"dsn"`
	DatabaseURL        string            `yaml:"database_url"`
	RedisURL           string            `yaml:"redis_url"`
	Database           rawDatabaseConfig `yaml:"database"`
	Redis              rawRedisConfig    `yaml:"redis"`
	Paths              rawPathsConfig    `yaml:"paths"`
	LogDir             string            `yaml:"log_dir"`
	LogKeepDays        *int              `yaml:"log_keep_days"`
	AllowedOrigins     []string          `yaml:"allowed_origins"`
	CORSAllowedOrigins []string          `yaml:"cors_allowed_origins"`
	JWTSecret          string            `yaml:"jwt_secret"`
	RateLimit          *int64            `yaml:"rate_limit"`
	DeletedRetention   *time.Duration    `yaml:"deleted_retention"`
	Editor             rawEditorConfig   `yaml:"editor"`
	Render             rawRenderConfig   `yaml:"render"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
	Disable  *bool  `yaml:"disable"`
}

type rawPathsConfig struct {
	Logs string `yaml:"logs"`
}

type rawEditorConfig struct {
	CachePrefix      string         `yaml:"cache_prefix"`
	ActiveDraftKey   string         `yaml:"active_draft_key"`
	CacheTTL         *time.Duration `yaml:"cache_ttl"`
	AutosaveDebounce *time.Duration `yaml:"autosave_debounce"`
	Autosave         *bool          `yaml:"autosave"`
	SessionIdle      *time.Duration `yaml:"session_idle"`
}

type rawRenderConfig struct {
	HighlightStyle string         `yaml:"highlight_style"`
	Sanitize       *bool          `yaml:"sanitize"`
	CacheTTL       *time.Duration `yaml:"cache_ttl"`
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ResolvePath picks the config path: the flag value, then BLOCKDRAFT_CONFIG,
// then the default.
func ResolvePath(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" && v != DefaultConfigPath {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(EnvConfigPath)); v != "" {
		return v
	}
	return DefaultConfigPath
}

// Load reads the YAML file at configPath. A missing file at the default path
// yields the defaults, so a bare checkout runs with env overrides only.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	raw := rawAppConfig{}
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath:
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	applyRawAppConfig(&cfg, raw)
	applyEnv(&cfg)
	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port:             defaultPort,
		Env:              defaultEnv,
		LogKeepDays:      defaultLogKeep,
		RateLimit:        defaultRateLimit,
		DeletedRetention: defaultDeletedRetention,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Editor: EditorConfig{
			CachePrefix:      defaultCachePrefix,
			ActiveDraftKey:   defaultActiveDraftKey,
			CacheTTL:         defaultCacheTTL,
			AutosaveDebounce: defaultAutosaveDebounce,
			Autosave:         true,
			SessionIdle:      defaultSessionIdle,
		},
		Render: RenderConfig{
			HighlightStyle: defaultHighlightStyle,
			Sanitize:       true,
			CacheTTL:       defaultRenderCacheTTL,
		},
	}
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)

	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if raw.LogKeepDays != nil {
		cfg.LogKeepDays = *raw.LogKeepDays
	}
	if len(raw.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = raw.AllowedOrigins
	}
	if len(raw.CORSAllowedOrigins) > 0 {
		cfg.AllowedOrigins = raw.CORSAllowedOrigins
	}
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if raw.RateLimit != nil {
		cfg.RateLimit = *raw.RateLimit
	}
	if raw.DeletedRetention != nil {
		cfg.DeletedRetention = *raw.DeletedRetention
	}

	e := raw.Editor
	if v := strings.TrimSpace(e.CachePrefix); v != "" {
		cfg.Editor.CachePrefix = v
	}
	if v := strings.TrimSpace(e.ActiveDraftKey); v != "" {
		cfg.Editor.ActiveDraftKey = v
	}
	if e.CacheTTL != nil {
		cfg.Editor.CacheTTL = *e.CacheTTL
	}
	if e.AutosaveDebounce != nil {
		cfg.Editor.AutosaveDebounce = *e.AutosaveDebounce
	}
	if e.Autosave != nil {
		cfg.Editor.Autosave = *e.Autosave
	}
	if e.SessionIdle != nil {
		cfg.Editor.SessionIdle = *e.SessionIdle
	}

	r := raw.Render
	if v := strings.TrimSpace(r.HighlightStyle); v != "" {
		cfg.Render.HighlightStyle = v
	}
	if r.Sanitize != nil {
		cfg.Render.Sanitize = *r.Sanitize
	}
	if r.CacheTTL != nil {
		cfg.Render.CacheTTL = *r.CacheTTL
	}
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	cfg := current
	db := raw.Database

	for _, v := range []string{db.DSN, raw.DSN, raw.DatabaseURL} {
		if v = strings.TrimSpace(v); v != "" {
			cfg.DSN = v
		}
	}
	if v := strings.TrimSpace(db.Host); v != "" {
		cfg.Host = v
	}
	if db.Port != 0 {
		cfg.Port = db.Port
	}
	if v := strings.TrimSpace(db.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(db.Username); v != "" {
		cfg.User = v
	}
	if db.Password != "" {
		cfg.Password = db.Password
	}
	if v := strings.TrimSpace(db.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(db.Charset); v != "" {
		cfg.Charset = v
	}
	if db.ParseTime != nil {
		cfg.ParseTime = *db.ParseTime
	}
	if v := strings.TrimSpace(db.Loc); v != "" {
		cfg.Loc = v
	}
	if db.Params != nil {
		cfg.Params = copyStringMap(db.Params)
	}
	return cfg
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current
	r := raw.Redis

	if v := strings.TrimSpace(r.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(r.Host); v != "" {
		cfg.Host = v
	}
	if r.Port != 0 {
		cfg.Port = r.Port
	}
	if v := strings.TrimSpace(r.Username); v != "" {
		cfg.Username = v
	}
	if r.Password != "" {
		cfg.Password = r.Password
	}
	if r.DB != nil {
		cfg.DB = *r.DB
	}
	if r.TLS != nil {
		cfg.TLS = *r.TLS
	}
	if r.Disable != nil {
		cfg.Disable = *r.Disable
	}
	return cfg
}

// applyEnv lets BLOCKDRAFT_* variables override the file.
func applyEnv(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("BLOCKDRAFT_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("BLOCKDRAFT_ENV")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("BLOCKDRAFT_DSN")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("BLOCKDRAFT_REDIS_URL")); v != "" {
		cfg.Redis.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("BLOCKDRAFT_JWT_SECRET")); v != "" {
		cfg.JWTSecret = v
	}
}

func (c *AppConfig) finalize() error {
	c.Env = normalizeEnv(c.Env)
	c.AllowedOrigins = normalizeOrigins(c.AllowedOrigins)
	c.Database = normalizeDatabaseConfig(c.Database)
	c.Redis = normalizeRedisConfig(c.Redis)

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d, expected 1-65535", c.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port %d, expected 1-65535", c.Database.Port)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db %d, expected >= 0", c.Redis.DB)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit %d, expected >= 0", c.RateLimit)
	}
	if c.DeletedRetention < 0 {
		return fmt.Errorf("deleted_retention must not be negative")
	}
	if c.Editor.AutosaveDebounce <= 0 {
		return fmt.Errorf("editor.autosave_debounce must be positive")
	}

	dsn, err := c.Database.DSNValue()
	if err != nil {
		return err
	}
	c.DSN = dsn
	c.RedisURL = c.Redis.URLValue()
	return nil
}

func (c *AppConfig) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// LogDir resolves the log directory against the executable directory.
func (c *AppConfig) LogDir() string {
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

// ExecutableDir returns the directory where the current executable resides.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err == nil && strings.TrimSpace(exe) != "" {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// ResolveRuntimePath resolves a relative runtime directory against the
// executable directory.
func ResolveRuntimePath(raw, fallback string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = fallback
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(ExecutableDir(), target)
}

// DSNValue returns the explicit DSN after validating it, or builds one from
// the discrete fields.
func (c DatabaseRuntimeConfig) DSNValue() (string, error) {
	if c.DSN != "" {
		if _, err := mysql.ParseDSN(c.DSN); err != nil {
			return "", fmt.Errorf("database.dsn: %w", err)
		}
		return c.DSN, nil
	}

	loc, err := time.LoadLocation(c.Loc)
	if err != nil {
		return "", fmt.Errorf("database.loc: %w", err)
	}
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = netJoin(c.Host, c.Port)
	mc.DBName = c.Name
	mc.ParseTime = c.ParseTime
	mc.Loc = loc
	mc.Params = map[string]string{"charset": c.Charset}
	for k, v := range c.Params {
		mc.Params[k] = v
	}
	return mc.FormatDSN(), nil
}
