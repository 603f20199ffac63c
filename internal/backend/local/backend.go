// Package local is an embedded backend-as-a-service stored through GORM. It
// serves the same contract as the hosted backend so the storefront can run
// self-contained on SQLite or PostgreSQL.
package local

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/router-for-me/Storefront/internal/backend"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	defaultDatabaseID      = "storefront"
	defaultSessionTTL      = 365 * 24 * time.Hour
	defaultRecoveryTTL     = time.Hour
	defaultMaxFileSize     = 10 << 20
	defaultRequestsPerMin  = 120
	defaultBurst           = 30
	rateLimitMessage       = "Rate limit for the current endpoint has been exceeded. Please try again after some time."
	unauthorizedMessage    = "The current user is not authorized to perform the requested action."
	invalidSessionMessage  = "User (role: guests) missing scope (account)"
	documentMissingMessage = "Document with the requested ID could not be found."
)

// Config controls the embedded backend.
type Config struct {
	DatabaseID     string
	JWTSecret      string
	PublicURL      string
	SessionTTL     time.Duration
	RecoveryTTL    time.Duration
	MaxFileSize    int64
	RequestsPerMin int // Per endpoint. Negative disables throttling.
	Burst          int
}

// RecoveryNotifier delivers a password recovery link.
type RecoveryNotifier func(ctx context.Context, email, link string)

// Option customizes a Backend.
type Option func(*Backend)

// WithClock overrides the time source.
func WithClock(nowFn func() time.Time) Option {
	return func(b *Backend) {
		if nowFn != nil {
			b.now = nowFn
		}
	}
}

// WithRecoveryNotifier replaces the default notifier, which logs the link.
func WithRecoveryNotifier(fn RecoveryNotifier) Option {
	return func(b *Backend) {
		if fn != nil {
			b.notify = fn
		}
	}
}

// Backend implements backend.Backend on a GORM database.
type Backend struct {
	db     *gorm.DB
	cfg    Config
	now    func() time.Time
	notify RecoveryNotifier

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var _ backend.Backend = (*Backend)(nil)

// New constructs the embedded backend. The schema must already be migrated.
func New(conn *gorm.DB, cfg Config, opts ...Option) (*Backend, error) {
	if conn == nil {
		return nil, fmt.Errorf("local backend: nil db")
	}
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("local backend: jwt secret is required")
	}
	cfg.DatabaseID = strings.TrimSpace(cfg.DatabaseID)
	if cfg.DatabaseID == "" {
		cfg.DatabaseID = defaultDatabaseID
	}
	cfg.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/")
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.RecoveryTTL <= 0 {
		cfg.RecoveryTTL = defaultRecoveryTTL
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.RequestsPerMin == 0 {
		cfg.RequestsPerMin = defaultRequestsPerMin
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}

	b := &Backend{
		db:       conn,
		cfg:      cfg,
		now:      time.Now,
		notify:   logRecoveryLink,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// throttle enforces the per-endpoint request rate.
func (b *Backend) throttle(endpoint string) error {
	if b.cfg.RequestsPerMin < 0 {
		return nil
	}
	b.mu.Lock()
	limiter, ok := b.limiters[endpoint]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(b.cfg.RequestsPerMin)/60), b.cfg.Burst)
		b.limiters[endpoint] = limiter
	}
	b.mu.Unlock()
	if !limiter.AllowN(b.now(), 1) {
		return newError(http.StatusTooManyRequests, backend.TypeRateLimitExceeded, rateLimitMessage)
	}
	return nil
}

func newError(code int, errType, message string) *backend.Error {
	return &backend.Error{Code: code, Type: errType, Message: message}
}

func internalError(op string, err error) error {
	log.WithError(err).Errorf("local backend: %s failed", op)
	return &backend.Error{Code: http.StatusInternalServerError, Type: "general_server_error", Message: "Server Error"}
}

func logRecoveryLink(_ context.Context, email, link string) {
	log.WithField("email", email).Infof("password recovery link: %s", link)
}

func isUniqueID(id string) bool {
	trimmed := strings.TrimSpace(id)
	return trimmed == "" || trimmed == "unique()"
}
