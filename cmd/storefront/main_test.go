package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/router-for-me/Storefront/internal/config"
)

func TestValidatePort(t *testing.T) {
	for _, port := range []int{0, -1, 65536} {
		if err := validatePort(port); err == nil {
			t.Fatalf("expected error for port %d", port)
		}
	}
	if err := validatePort(8318); err != nil {
		t.Fatalf("expected valid port, got %v", err)
	}
}

func TestRunRejectsBadPort(t *testing.T) {
	if err := run(context.Background(), []string{"-port", "70000"}); err == nil {
		t.Fatalf("expected invalid port error")
	}
}

func TestRunMigrate(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "storefront.db")
	t.Setenv(config.EnvDBConnection, "file:"+dbPath)
	t.Setenv(config.EnvJWTSecret, "test-secret")

	if err := run(context.Background(), []string{"-config", filepath.Join(dir, "config.yaml"), "-migrate"}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file, got %v", err)
	}
}

func TestConfiguredFromEnv(t *testing.T) {
	t.Setenv(config.EnvDBConnection, "")
	t.Setenv(config.EnvAppwriteProjectID, "")
	if configuredFromEnv() {
		t.Fatalf("expected no env configuration")
	}
	t.Setenv(config.EnvAppwriteProjectID, "proj")
	if !configuredFromEnv() {
		t.Fatalf("expected appwrite project to count as configured")
	}
}
