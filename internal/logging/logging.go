// Package logging configures logrus and the gin request logger.
package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// Config selects the log level, format and optional rotated file output.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
	// MaxSize is the size in megabytes that triggers rotation.
	MaxSize    int  `yaml:"max-size"`
	MaxBackups int  `yaml:"max-backups"`
	MaxAge     int  `yaml:"max-age"`
	Compress   bool `yaml:"compress"`
}

// Setup applies cfg to the standard logrus logger. debug forces the debug level.
// The returned closer releases the rotated log file, if any.
func Setup(cfg Config, debug bool) (io.Closer, error) {
	level := log.InfoLevel
	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		parsed, errParse := log.ParseLevel(raw)
		if errParse != nil {
			return nil, fmt.Errorf("logging: %w", errParse)
		}
		level = parsed
	}
	if debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	case "json":
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		return nil, fmt.Errorf("logging: unsupported format %q", cfg.Format)
	}

	path := strings.TrimSpace(cfg.File)
	if path == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}
	file := newFileWriter(path, cfg)
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	return file, nil
}

// newFileWriter returns a rotating writer for path. Zero limits take defaults.
func newFileWriter(path string, cfg Config) *lumberjack.Logger {
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	if writer.MaxSize <= 0 {
		writer.MaxSize = defaultMaxSizeMB
	}
	if writer.MaxBackups <= 0 {
		writer.MaxBackups = defaultMaxBackups
	}
	if writer.MaxAge <= 0 {
		writer.MaxAge = defaultMaxAgeDays
	}
	return writer
}

// GinLogger logs one entry per request through logrus. Paths under skipPrefixes
// are only logged when they fail.
func GinLogger(skipPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusInternalServerError && skipped(path, skipPrefixes) {
			return
		}
		entry := log.WithFields(log.Fields{
			"status":   status,
			"method":   c.Request.Method,
			"path":     path,
			"ip":       c.ClientIP(),
			"latency":  time.Since(start).String(),
			"bytes":    c.Writer.Size(),
			"redirect": c.Writer.Header().Get("Location"),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request")
		}
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func skipped(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
