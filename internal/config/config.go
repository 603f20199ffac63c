package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/router-for-me/Storefront/internal/logging"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
	EnvBackendMode  = "BACKEND_MODE"
	EnvRedisAddr    = "REDIS_ADDR"

	EnvAppwriteEndpoint            = "APPWRITE_ENDPOINT"
	EnvAppwriteProjectID           = "APPWRITE_PROJECT_ID"
	EnvAppwriteDatabaseID          = "APPWRITE_DATABASE_ID"
	EnvAppwriteStorageID           = "APPWRITE_STORAGE_ID"
	EnvAppwriteUserCollectionID    = "APPWRITE_USER_COLLECTION_ID"
	EnvAppwriteBrandCollectionID   = "APPWRITE_BRAND_COLLECTION_ID"
	EnvAppwriteProductCollectionID = "APPWRITE_PRODUCT_COLLECTION_ID"
)

const (
	// ModeAppwrite talks to a hosted Appwrite project.
	ModeAppwrite = "appwrite"
	// ModeLocal runs the embedded backend on a SQL database.
	ModeLocal = "local"

	DefaultPort             = 8318
	DefaultAppwriteEndpoint = "https://cloud.appwrite.io/v1"
	DefaultMaxRetries       = 3

	defaultJWTExpiry       = 365 * 24 * time.Hour
	defaultShutdownTimeout = 10 * time.Second
	defaultBackendTimeout  = 30 * time.Second
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

var (
	// ErrMissingDatabaseDSN indicates the local backend has no database to open.
	ErrMissingDatabaseDSN = errors.New("missing database dsn (set `local.dsn` in config file or DB_CONNECTION)")
	// ErrMissingJWTSecret indicates the local backend cannot sign sessions.
	ErrMissingJWTSecret = errors.New("missing jwt secret (set `local.jwt.secret` in config file or JWT_SECRET)")
)

// Config is the storefront configuration file.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Local     LocalConfig     `yaml:"local"`
	RateLimit RateLimitConfig `yaml:"rate-limit"`
	Gate      GateConfig      `yaml:"gate"`
	Logging   logging.Config  `yaml:"logging"`
}

// ServerConfig controls the HTTP listener. A zero port defers to the -port flag.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	PublicURL       string        `yaml:"public-url"`
	SecureCookies   bool          `yaml:"secure-cookies"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
}

// BackendConfig selects the backend and its identifiers.
type BackendConfig struct {
	Mode                string        `yaml:"mode"`
	Endpoint            string        `yaml:"endpoint"`
	ProjectID           string        `yaml:"project-id"`
	DatabaseID          string        `yaml:"database-id"`
	StorageID           string        `yaml:"storage-id"`
	UserCollectionID    string        `yaml:"user-collection-id"`
	BrandCollectionID   string        `yaml:"brand-collection-id"`
	ProductCollectionID string        `yaml:"product-collection-id"`
	Timeout             time.Duration `yaml:"timeout"`
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// LocalConfig configures the embedded backend.
type LocalConfig struct {
	DSN               string        `yaml:"dsn"`
	JWT               JWTConfig     `yaml:"jwt"`
	RecoveryTTL       time.Duration `yaml:"recovery-ttl"`
	MaxFileSize       int64         `yaml:"max-file-size"`
	RequestsPerMinute int           `yaml:"requests-per-minute"`
	Burst             int           `yaml:"burst"`
}

// RateLimitConfig configures the backoff governor.
type RateLimitConfig struct {
	MaxRetries int         `yaml:"max-retries"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig enables shared governor state across instances.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// GateConfig configures the edge gate.
type GateConfig struct {
	SessionCookie string `yaml:"session-cookie"`
}

// Load reads the config file, applies environment overrides and defaults, and
// validates the result. A missing file is allowed when the environment supplies
// everything required.
func Load(configPath string) (Config, error) {
	var cfg Config
	data, errRead := os.ReadFile(configPath)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the parent directory.
func Save(configPath string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if errMkdir := os.MkdirAll(filepath.Dir(configPath), 0755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}
	if errWrite := os.WriteFile(configPath, data, 0600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}
	return nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&c.Backend.Mode, EnvBackendMode)
	override(&c.Backend.Endpoint, EnvAppwriteEndpoint)
	override(&c.Backend.ProjectID, EnvAppwriteProjectID)
	override(&c.Backend.DatabaseID, EnvAppwriteDatabaseID)
	override(&c.Backend.StorageID, EnvAppwriteStorageID)
	override(&c.Backend.UserCollectionID, EnvAppwriteUserCollectionID)
	override(&c.Backend.BrandCollectionID, EnvAppwriteBrandCollectionID)
	override(&c.Backend.ProductCollectionID, EnvAppwriteProductCollectionID)
	override(&c.Local.DSN, EnvDBConnection)
	override(&c.Local.JWT.Secret, EnvJWTSecret)
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			c.Local.JWT.Expiry = expiry
		}
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		c.RateLimit.Redis.Addr = addr
		c.RateLimit.Redis.Enabled = true
	}
}

func (c *Config) applyDefaults() {
	c.Server.PublicURL = strings.TrimRight(strings.TrimSpace(c.Server.PublicURL), "/")
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = defaultShutdownTimeout
	}

	c.Backend.Mode = strings.ToLower(strings.TrimSpace(c.Backend.Mode))
	if c.Backend.Mode == "" {
		// A DSN without an Appwrite project means the embedded backend.
		if strings.TrimSpace(c.Local.DSN) != "" && strings.TrimSpace(c.Backend.ProjectID) == "" {
			c.Backend.Mode = ModeLocal
		} else {
			c.Backend.Mode = ModeAppwrite
		}
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = defaultBackendTimeout
	}
	if c.Backend.Mode == ModeAppwrite && strings.TrimSpace(c.Backend.Endpoint) == "" {
		c.Backend.Endpoint = DefaultAppwriteEndpoint
	}
	if c.Backend.Mode == ModeLocal {
		defaultString(&c.Backend.DatabaseID, "storefront")
		defaultString(&c.Backend.StorageID, "images")
		defaultString(&c.Backend.UserCollectionID, "users")
		defaultString(&c.Backend.BrandCollectionID, "brands")
		defaultString(&c.Backend.ProductCollectionID, "products")
	}

	if c.Local.JWT.Expiry <= 0 {
		c.Local.JWT.Expiry = defaultJWTExpiry
	}
	if c.RateLimit.MaxRetries <= 0 {
		c.RateLimit.MaxRetries = DefaultMaxRetries
	}
}

func defaultString(dst *string, value string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = value
	}
}

// Validate reports the first missing or inconsistent setting.
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Backend.Mode {
	case ModeAppwrite:
		if strings.TrimSpace(c.Backend.ProjectID) == "" {
			return fmt.Errorf("missing backend project id (set `backend.project-id` or %s)", EnvAppwriteProjectID)
		}
		if strings.TrimSpace(c.Backend.DatabaseID) == "" {
			return fmt.Errorf("missing backend database id (set `backend.database-id` or %s)", EnvAppwriteDatabaseID)
		}
	case ModeLocal:
		if strings.TrimSpace(c.Local.DSN) == "" {
			return ErrMissingDatabaseDSN
		}
		if strings.TrimSpace(c.Local.JWT.Secret) == "" {
			return ErrMissingJWTSecret
		}
	default:
		return fmt.Errorf("unsupported backend mode %q", c.Backend.Mode)
	}
	ids := map[string]string{
		"storage-id":            c.Backend.StorageID,
		"user-collection-id":    c.Backend.UserCollectionID,
		"brand-collection-id":   c.Backend.BrandCollectionID,
		"product-collection-id": c.Backend.ProductCollectionID,
	}
	for _, key := range []string{"storage-id", "user-collection-id", "brand-collection-id", "product-collection-id"} {
		if strings.TrimSpace(ids[key]) == "" {
			return fmt.Errorf("missing `backend.%s`", key)
		}
	}
	return nil
}
