package config

import "time"

const (
	// DefaultConfigPath is used when neither --config nor BLOCKDRAFT_CONFIG is set.
	DefaultConfigPath = "config.yml"
	// EnvConfigPath names the environment variable that overrides the path.
	EnvConfigPath = "BLOCKDRAFT_CONFIG"

	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "blockdraft"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0
	defaultRateLimit  = 50
	defaultLogKeep    = 7

	defaultDeletedRetention = 30 * 24 * time.Hour

	defaultCachePrefix      = "blockdraft:editor:"
	defaultActiveDraftKey   = "active-draft-id"
	defaultCacheTTL         = 30 * 24 * time.Hour
	defaultAutosaveDebounce = 2 * time.Second
	defaultSessionIdle      = 2 * time.Hour
	defaultHighlightStyle   = "github"
	defaultRenderCacheTTL   = 15 * time.Second
)
