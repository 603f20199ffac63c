package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func TestLoad_AppwriteFromFile(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9000
  public-url: https://shop.example.com/
backend:
  project-id: proj
  database-id: db
  storage-id: images
  user-collection-id: users
  brand-collection-id: brands
  product-collection-id: products
rate-limit:
  max-retries: 5
`)
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Backend.Mode != ModeAppwrite {
		t.Fatalf("expected mode=%q, got %q", ModeAppwrite, cfg.Backend.Mode)
	}
	if cfg.Backend.Endpoint != DefaultAppwriteEndpoint {
		t.Fatalf("expected default endpoint, got %q", cfg.Backend.Endpoint)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("expected port=9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.PublicURL != "https://shop.example.com" {
		t.Fatalf("expected trimmed public url, got %q", cfg.Server.PublicURL)
	}
	if cfg.RateLimit.MaxRetries != 5 {
		t.Fatalf("expected max-retries=5, got %d", cfg.RateLimit.MaxRetries)
	}
}

func TestLoad_AppwriteEnvOverride(t *testing.T) {
	t.Setenv(EnvAppwriteEndpoint, "https://appwrite.internal/v1")
	t.Setenv(EnvAppwriteProjectID, "env-proj")
	t.Setenv(EnvAppwriteDatabaseID, "env-db")
	t.Setenv(EnvAppwriteStorageID, "env-bucket")
	t.Setenv(EnvAppwriteUserCollectionID, "env-users")
	t.Setenv(EnvAppwriteBrandCollectionID, "env-brands")
	t.Setenv(EnvAppwriteProductCollectionID, "env-products")

	configPath := writeConfig(t, "backend:\n  project-id: file-proj\n")
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Backend.ProjectID != "env-proj" {
		t.Fatalf("expected project=%q, got %q", "env-proj", cfg.Backend.ProjectID)
	}
	if cfg.Backend.Endpoint != "https://appwrite.internal/v1" {
		t.Fatalf("expected env endpoint, got %q", cfg.Backend.Endpoint)
	}
	if cfg.Backend.ProductCollectionID != "env-products" {
		t.Fatalf("expected env products collection, got %q", cfg.Backend.ProductCollectionID)
	}
}

func TestLoad_LocalFromEnvWithoutFile(t *testing.T) {
	t.Setenv(EnvDBConnection, "file:storefront.db")
	t.Setenv(EnvJWTSecret, "env-secret")
	t.Setenv(EnvJWTExpiry, "2h")

	missingPath := filepath.Join(t.TempDir(), "missing.yaml")
	cfg, err := Load(missingPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Backend.Mode != ModeLocal {
		t.Fatalf("expected mode=%q, got %q", ModeLocal, cfg.Backend.Mode)
	}
	if cfg.Local.JWT.Secret != "env-secret" {
		t.Fatalf("expected secret=%q, got %q", "env-secret", cfg.Local.JWT.Secret)
	}
	if cfg.Local.JWT.Expiry != 2*time.Hour {
		t.Fatalf("expected expiry=%s, got %s", (2 * time.Hour).String(), cfg.Local.JWT.Expiry.String())
	}
	if cfg.Backend.UserCollectionID != "users" {
		t.Fatalf("expected default users collection, got %q", cfg.Backend.UserCollectionID)
	}
}

func TestLoad_LocalRequiresSecret(t *testing.T) {
	configPath := writeConfig(t, "backend:\n  mode: local\nlocal:\n  dsn: file:storefront.db\n")
	_, err := Load(configPath)
	if !errors.Is(err, ErrMissingJWTSecret) {
		t.Fatalf("expected ErrMissingJWTSecret, got %v", err)
	}
}

func TestLoad_LocalRequiresDSN(t *testing.T) {
	configPath := writeConfig(t, "backend:\n  mode: local\nlocal:\n  jwt:\n    secret: s\n")
	_, err := Load(configPath)
	if !errors.Is(err, ErrMissingDatabaseDSN) {
		t.Fatalf("expected ErrMissingDatabaseDSN, got %v", err)
	}
}

func TestLoad_RejectsUnknownMode(t *testing.T) {
	configPath := writeConfig(t, "backend:\n  mode: firebase\n")
	if _, err := Load(configPath); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestLoad_RedisEnvEnables(t *testing.T) {
	t.Setenv(EnvRedisAddr, "127.0.0.1:6379")
	t.Setenv(EnvDBConnection, "file:storefront.db")
	t.Setenv(EnvJWTSecret, "s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !cfg.RateLimit.Redis.Enabled || cfg.RateLimit.Redis.Addr != "127.0.0.1:6379" {
		t.Fatalf("expected redis enabled at env addr, got %+v", cfg.RateLimit.Redis)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Config{
		Backend: BackendConfig{Mode: ModeLocal},
		Local:   LocalConfig{DSN: "file:storefront.db", JWT: JWTConfig{Secret: "s", Expiry: time.Hour}},
	}
	if err := Save(configPath, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Local.DSN != want.Local.DSN || got.Local.JWT.Expiry != time.Hour {
		t.Fatalf("unexpected config after save: %+v", got.Local)
	}
}
