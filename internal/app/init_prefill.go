package app

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/router-for-me/Storefront/internal/config"
)

// initPrefill seeds the setup form from the environment. Secrets are reported
// only as present or absent.
type initPrefill struct {
	BackendMode string `json:"backend_mode"`

	DatabaseType        string `json:"database_type,omitempty"`
	DatabaseHost        string `json:"database_host,omitempty"`
	DatabasePort        int    `json:"database_port,omitempty"`
	DatabaseUser        string `json:"database_user,omitempty"`
	DatabaseName        string `json:"database_name,omitempty"`
	DatabaseSSLMode     string `json:"database_ssl_mode,omitempty"`
	DatabasePath        string `json:"database_path,omitempty"`
	DatabasePasswordSet bool   `json:"database_password_set"`

	AppwriteEndpoint    string `json:"appwrite_endpoint,omitempty"`
	ProjectID           string `json:"project_id,omitempty"`
	DatabaseID          string `json:"database_id,omitempty"`
	StorageID           string `json:"storage_id,omitempty"`
	UserCollectionID    string `json:"user_collection_id,omitempty"`
	BrandCollectionID   string `json:"brand_collection_id,omitempty"`
	ProductCollectionID string `json:"product_collection_id,omitempty"`
}

// initPrefillFromEnv returns nil when the environment offers nothing to prefill.
func initPrefillFromEnv(getenv func(string) string) *initPrefill {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	prefill := initPrefill{
		AppwriteEndpoint:    env(config.EnvAppwriteEndpoint),
		ProjectID:           env(config.EnvAppwriteProjectID),
		DatabaseID:          env(config.EnvAppwriteDatabaseID),
		StorageID:           env(config.EnvAppwriteStorageID),
		UserCollectionID:    env(config.EnvAppwriteUserCollectionID),
		BrandCollectionID:   env(config.EnvAppwriteBrandCollectionID),
		ProductCollectionID: env(config.EnvAppwriteProductCollectionID),
	}
	if prefill.ProjectID != "" {
		prefill.BackendMode = config.ModeAppwrite
		return &prefill
	}

	if errDSN := prefill.applyDSN(env(config.EnvDBConnection)); errDSN != nil {
		return nil
	}
	prefill.BackendMode = config.ModeLocal
	return &prefill
}

// applyDSN splits a database DSN into form fields.
func (p *initPrefill) applyDSN(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("empty dsn")
	}

	if len(dsn) >= len("file:") && strings.EqualFold(dsn[:len("file:")], "file:") {
		path, _, _ := strings.Cut(dsn[len("file:"):], "?")
		p.DatabaseType = "sqlite"
		p.DatabasePath = strings.TrimSpace(path)
		return nil
	}

	u, errParse := url.Parse(dsn)
	if errParse != nil {
		return fmt.Errorf("parse dsn: %w", errParse)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "postgres" && scheme != "postgresql" {
		return fmt.Errorf("unsupported dsn scheme %q", u.Scheme)
	}

	p.DatabaseType = "postgres"
	p.DatabaseHost = u.Hostname()
	p.DatabasePort = 5432
	if rawPort := u.Port(); rawPort != "" {
		port, errPort := strconv.Atoi(rawPort)
		if errPort != nil {
			return fmt.Errorf("parse port: %w", errPort)
		}
		p.DatabasePort = port
	}
	if u.User != nil {
		p.DatabaseUser = u.User.Username()
		_, p.DatabasePasswordSet = u.User.Password()
	}
	p.DatabaseName = strings.TrimPrefix(u.Path, "/")
	p.DatabaseSSLMode = u.Query().Get("sslmode")
	if p.DatabaseSSLMode == "" {
		p.DatabaseSSLMode = "disable"
	}
	return nil
}
