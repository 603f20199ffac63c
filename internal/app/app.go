package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/Storefront/internal/backend"
	"github.com/router-for-me/Storefront/internal/backend/appwrite"
	"github.com/router-for-me/Storefront/internal/backend/local"
	"github.com/router-for-me/Storefront/internal/config"
	"github.com/router-for-me/Storefront/internal/db"
	"github.com/router-for-me/Storefront/internal/gate"
	"github.com/router-for-me/Storefront/internal/http/api/front"
	"github.com/router-for-me/Storefront/internal/http/api/front/handlers"
	"github.com/router-for-me/Storefront/internal/logging"
	"github.com/router-for-me/Storefront/internal/ratelimit"
	"github.com/router-for-me/Storefront/internal/storefront"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// Migrate opens the local backend database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	fileCfg, err := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return err
	}
	if fileCfg.Backend.Mode != config.ModeLocal {
		return fmt.Errorf("migrate: backend mode %q has no local database", fileCfg.Backend.Mode)
	}
	conn, err := db.Open(fileCfg.Local.DSN)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// Components are the wired pieces of a running storefront.
type Components struct {
	Engine   *gin.Engine
	Service  *storefront.Service
	Governor *ratelimit.Governor

	closers []func()
}

// Close releases the database and governor state connections.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build wires the backend, governor, service and HTTP engine from cfg.
func Build(cfg config.Config) (*Components, error) {
	components := &Components{}
	built, errBackend := buildBackend(cfg)
	if errBackend != nil {
		return nil, errBackend
	}
	components.closers = append(components.closers, built.closers...)

	settings := ratelimit.StaticSettings(ratelimit.SettingsConfig{
		RedisEnabled:  cfg.RateLimit.Redis.Enabled,
		RedisAddr:     cfg.RateLimit.Redis.Addr,
		RedisPassword: cfg.RateLimit.Redis.Password,
		RedisDB:       cfg.RateLimit.Redis.DB,
		RedisPrefix:   cfg.RateLimit.Redis.Prefix,
	})
	manager := ratelimit.NewManager(settings, nil, redis.NewClient)
	components.closers = append(components.closers, func() {
		if errClose := manager.Close(); errClose != nil {
			log.WithError(errClose).Warn("close governor state")
		}
	})
	components.Governor = ratelimit.NewGovernor(manager, ratelimit.WithDefaultMaxRetries(cfg.RateLimit.MaxRetries))

	svc, errService := storefront.NewService(built.backend, components.Governor, storefront.Config{
		UserCollectionID:    cfg.Backend.UserCollectionID,
		BrandCollectionID:   cfg.Backend.BrandCollectionID,
		ProductCollectionID: cfg.Backend.ProductCollectionID,
		StorageID:           cfg.Backend.StorageID,
	})
	if errService != nil {
		components.Close()
		return nil, errService
	}
	components.Service = svc
	components.Engine = NewEngine(cfg, svc, built.previewer, built.healthCheck)
	return components, nil
}

// NewEngine builds the gin engine with the gate in front of every route.
func NewEngine(cfg config.Config, svc *storefront.Service, previewer handlers.Previewer, healthCheck func(context.Context) error) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.GinLogger("/healthz", "/assets"))
	engine.Use(gate.Middleware(gate.Config{SessionCookie: cfg.Gate.SessionCookie}))

	front.RegisterFrontRoutes(engine, svc, front.Options{
		Cookies: handlers.CookieConfig{
			SessionCookie: cfg.Gate.SessionCookie,
			Secure:        cfg.Server.SecureCookies,
		},
		PublicURL:   cfg.Server.PublicURL,
		Previewer:   previewer,
		HealthCheck: healthCheck,
	})
	return engine
}

type builtBackend struct {
	backend     backend.Backend
	previewer   handlers.Previewer
	healthCheck func(context.Context) error
	closers     []func()
}

func buildBackend(cfg config.Config) (builtBackend, error) {
	switch cfg.Backend.Mode {
	case config.ModeAppwrite:
		client, err := appwrite.New(appwrite.Config{
			Endpoint:   cfg.Backend.Endpoint,
			ProjectID:  cfg.Backend.ProjectID,
			DatabaseID: cfg.Backend.DatabaseID,
		}, &http.Client{Timeout: cfg.Backend.Timeout})
		if err != nil {
			return builtBackend{}, err
		}
		log.Infof("using appwrite backend at %s (project %s)", cfg.Backend.Endpoint, cfg.Backend.ProjectID)
		return builtBackend{backend: client}, nil
	case config.ModeLocal:
		conn, err := db.Open(cfg.Local.DSN)
		if err != nil {
			return builtBackend{}, err
		}
		if errMigrate := db.Migrate(conn); errMigrate != nil {
			closeDB(conn)
			return builtBackend{}, errMigrate
		}
		embedded, err := local.New(conn, local.Config{
			DatabaseID:     cfg.Backend.DatabaseID,
			JWTSecret:      cfg.Local.JWT.Secret,
			PublicURL:      cfg.Server.PublicURL,
			SessionTTL:     cfg.Local.JWT.Expiry,
			RecoveryTTL:    cfg.Local.RecoveryTTL,
			MaxFileSize:    cfg.Local.MaxFileSize,
			RequestsPerMin: cfg.Local.RequestsPerMinute,
			Burst:          cfg.Local.Burst,
		})
		if err != nil {
			closeDB(conn)
			return builtBackend{}, err
		}
		log.Infof("using local backend on %s", db.DialectName(conn))
		return builtBackend{
			backend:     embedded,
			previewer:   embedded,
			healthCheck: pingDB(conn),
			closers:     []func(){func() { closeDB(conn) }},
		}, nil
	default:
		return builtBackend{}, fmt.Errorf("unsupported backend mode %q", cfg.Backend.Mode)
	}
}

func pingDB(conn *gorm.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func closeDB(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.Errorf("sql db close error: %v", errClose)
	}
}

// RunServer loads the config file and serves the storefront until ctx ends.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	fileCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logCloser, errLog := logging.Setup(fileCfg.Logging, fileCfg.Debug)
	if errLog != nil {
		return errLog
	}
	defer func() { _ = logCloser.Close() }()

	if fileCfg.Server.Port <= 0 {
		if defaultPort <= 0 {
			defaultPort = config.DefaultPort
		}
		fileCfg.Server.Port = defaultPort
	}

	components, err := Build(fileCfg)
	if err != nil {
		return err
	}
	defer components.Close()

	addr := net.JoinHostPort(fileCfg.Server.Host, strconv.Itoa(fileCfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           components.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("starting storefront on %s with config=%s", addr, configPath)
	return serve(ctx, srv, fileCfg.Server.ShutdownTimeout)
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case errListen := <-errCh:
		if errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			return errListen
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		log.Errorf("server shutdown error: %v", errShutdown)
		return errShutdown
	}
	log.Info("storefront stopped")
	return nil
}
