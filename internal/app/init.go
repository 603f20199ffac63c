package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/Storefront/internal/config"
	"github.com/router-for-me/Storefront/internal/db"
	"github.com/router-for-me/Storefront/internal/security"
	log "github.com/sirupsen/logrus"
)

// InitRequest contains parameters for initial system setup.
type InitRequest struct {
	BackendMode string `json:"backend_mode"`
	PublicURL   string `json:"public_url"`

	DatabaseType     string `json:"database_type"`
	DatabaseHost     string `json:"database_host"`
	DatabasePort     int    `json:"database_port"`
	DatabaseUser     string `json:"database_user"`
	DatabasePassword string `json:"database_password"`
	DatabaseName     string `json:"database_name"`
	DatabasePath     string `json:"database_path"`
	DatabaseSSLMode  string `json:"database_ssl_mode"`

	AppwriteEndpoint    string `json:"appwrite_endpoint"`
	ProjectID           string `json:"project_id"`
	DatabaseID          string `json:"database_id"`
	StorageID           string `json:"storage_id"`
	UserCollectionID    string `json:"user_collection_id"`
	BrandCollectionID   string `json:"brand_collection_id"`
	ProductCollectionID string `json:"product_collection_id"`
}

// InitStatusResponse reports whether initialization is complete.
type InitStatusResponse struct {
	Initialized bool         `json:"initialized"`
	Prefill     *initPrefill `json:"prefill,omitempty"`
}

// defaultSQLitePath is the default SQLite database file name.
const defaultSQLitePath = "storefront.db"

// BuildDSN builds a database DSN from the init request.
func BuildDSN(req InitRequest) (string, error) {
	switch strings.ToLower(strings.TrimSpace(req.DatabaseType)) {
	case "", "sqlite":
		path := strings.TrimSpace(req.DatabasePath)
		if path == "" {
			path = defaultSQLitePath
		}
		return db.BuildSQLiteDSN(path), nil
	case "postgres":
		sslMode := req.DatabaseSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			req.DatabaseUser,
			req.DatabasePassword,
			req.DatabaseHost,
			req.DatabasePort,
			req.DatabaseName,
			sslMode,
		), nil
	default:
		return "", fmt.Errorf("unsupported database type")
	}
}

// TestDatabaseConnection validates that the DSN can connect, ping and migrate.
func TestDatabaseConnection(dsn string) error {
	conn, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer closeDB(conn)
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	if errPing := sqlDB.Ping(); errPing != nil {
		return errPing
	}
	return db.Migrate(conn)
}

// validateInitRequest normalizes and validates init input data.
func validateInitRequest(req *InitRequest) error {
	mode := strings.ToLower(strings.TrimSpace(req.BackendMode))
	if mode == "" {
		mode = config.ModeLocal
	}
	req.BackendMode = mode
	req.PublicURL = strings.TrimRight(strings.TrimSpace(req.PublicURL), "/")

	switch mode {
	case config.ModeLocal:
		return validateDatabaseFields(req)
	case config.ModeAppwrite:
		required := []struct {
			value string
			label string
		}{
			{req.ProjectID, "Project ID"},
			{req.DatabaseID, "Database ID"},
			{req.StorageID, "Storage bucket ID"},
			{req.UserCollectionID, "User collection ID"},
			{req.BrandCollectionID, "Brand collection ID"},
			{req.ProductCollectionID, "Product collection ID"},
		}
		for _, field := range required {
			if strings.TrimSpace(field.value) == "" {
				return fmt.Errorf("%s is required", field.label)
			}
		}
		if strings.TrimSpace(req.AppwriteEndpoint) == "" {
			req.AppwriteEndpoint = config.DefaultAppwriteEndpoint
		}
		return nil
	default:
		return fmt.Errorf("Unsupported backend mode")
	}
}

func validateDatabaseFields(req *InitRequest) error {
	dbType := strings.ToLower(strings.TrimSpace(req.DatabaseType))
	if dbType == "" {
		dbType = "sqlite"
	}
	req.DatabaseType = dbType

	switch dbType {
	case "postgres":
		if strings.TrimSpace(req.DatabaseHost) == "" {
			return fmt.Errorf("Database host is required")
		}
		if req.DatabasePort <= 0 {
			return fmt.Errorf("Invalid database port")
		}
		if strings.TrimSpace(req.DatabaseUser) == "" {
			return fmt.Errorf("Database username is required")
		}
		if strings.TrimSpace(req.DatabaseName) == "" {
			return fmt.Errorf("Database name is required")
		}
		if strings.TrimSpace(req.DatabasePassword) == "" {
			return fmt.Errorf("Database password is required")
		}
	case "sqlite":
		if strings.TrimSpace(req.DatabasePath) == "" {
			req.DatabasePath = defaultSQLitePath
		}
	default:
		return fmt.Errorf("Unsupported database type")
	}
	return nil
}

// generateJWTSecret creates a random JWT secret string.
func generateJWTSecret() string {
	secret, err := security.GenerateRandomString(32)
	if err != nil {
		return "change-me-to-a-secure-random-string"
	}
	return secret
}

// configFromInit builds the config file contents for a validated request.
func configFromInit(req InitRequest, dsn string, port int) config.Config {
	cfg := config.Config{
		Server: config.ServerConfig{
			Port:      port,
			PublicURL: req.PublicURL,
		},
		Backend: config.BackendConfig{Mode: req.BackendMode},
		RateLimit: config.RateLimitConfig{
			MaxRetries: config.DefaultMaxRetries,
		},
	}
	switch req.BackendMode {
	case config.ModeAppwrite:
		cfg.Backend.Endpoint = req.AppwriteEndpoint
		cfg.Backend.ProjectID = req.ProjectID
		cfg.Backend.DatabaseID = req.DatabaseID
		cfg.Backend.StorageID = req.StorageID
		cfg.Backend.UserCollectionID = req.UserCollectionID
		cfg.Backend.BrandCollectionID = req.BrandCollectionID
		cfg.Backend.ProductCollectionID = req.ProductCollectionID
	case config.ModeLocal:
		cfg.Local = config.LocalConfig{
			DSN: dsn,
			JWT: config.JWTConfig{
				Secret: generateJWTSecret(),
				Expiry: 365 * 24 * time.Hour,
			},
		}
	}
	return cfg
}

// ErrInitCompleted signals that initialization finished and the server should restart.
var ErrInitCompleted = errors.New("init completed")

// corsMiddleware enables permissive CORS for the init server.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// newInitEngine serves the setup API. done is closed once a config file is written.
func newInitEngine(configPath string, port int, done chan<- struct{}) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	engine.GET("/v0/init/status", func(c *gin.Context) {
		resp := InitStatusResponse{Initialized: ConfigExists(configPath)}
		if !resp.Initialized {
			resp.Prefill = initPrefillFromEnv(os.Getenv)
		}
		c.JSON(http.StatusOK, resp)
	})

	var (
		mu       sync.Mutex
		finished bool
	)
	engine.POST("/v0/init/setup", func(c *gin.Context) {
		mu.Lock()
		defer mu.Unlock()
		if finished || ConfigExists(configPath) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "System already initialized"})
			return
		}

		var req InitRequest
		if errBind := c.ShouldBindJSON(&req); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
			return
		}
		if errValidate := validateInitRequest(&req); errValidate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
			return
		}

		var dsn string
		if req.BackendMode == config.ModeLocal {
			built, errBuild := BuildDSN(req)
			if errBuild != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": errBuild.Error()})
				return
			}
			if errTest := TestDatabaseConnection(built); errTest != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Database connection failed: %v", errTest)})
				return
			}
			dsn = built
		}

		if errWrite := config.Save(configPath, configFromInit(req, dsn, port)); errWrite != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to write config: %v", errWrite)})
			return
		}

		finished = true
		c.JSON(http.StatusOK, gin.H{"message": "Initialization successful"})
		close(done)
	})

	engine.NoRoute(func(c *gin.Context) {
		if ConfigExists(configPath) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "System initializing, please restart the server"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "System not configured, POST /v0/init/setup"})
	})
	return engine
}

// RunInitServer starts the initialization server when config is missing.
func RunInitServer(ctx context.Context, cfg config.AppConfig, port int) error {
	gin.SetMode(gin.ReleaseMode)
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	initDone := make(chan struct{})
	addr := fmt.Sprintf(":%d", port)
	log.Infof("starting init server on %s (config not found at %s)", addr, configPath)

	srv := &http.Server{
		Addr:              addr,
		Handler:           newInitEngine(configPath, port, initDone),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-initDone:
			// Let the setup response flush before the listener closes.
			time.Sleep(500 * time.Millisecond)
			cancel()
		case <-serveCtx.Done():
		}
	}()

	if errServe := serve(serveCtx, srv, 5*time.Second); errServe != nil {
		return errServe
	}

	select {
	case <-initDone:
		return ErrInitCompleted
	default:
		return nil
	}
}
