package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/router-for-me/Storefront/internal/config"
)

func localConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv(config.EnvDBConnection, "file:"+filepath.Join(t.TempDir(), "storefront.db"))
	t.Setenv(config.EnvJWTSecret, "test-secret")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestBuildLocalServesHealthAndGate(t *testing.T) {
	components, err := Build(localConfig(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer components.Close()

	w := httptest.NewRecorder()
	components.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	components.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected gate redirect, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/login?callbackUrl=%2Fdashboard" {
		t.Fatalf("unexpected redirect %q", got)
	}

	if components.Governor.IsRateLimited(context.Background(), "sign in") {
		t.Fatalf("expected fresh governor to allow sign in")
	}
}

func TestBuildRejectsUnknownMode(t *testing.T) {
	cfg := localConfig(t)
	cfg.Backend.Mode = "firebase"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected error for unknown backend mode")
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, time.Second) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, errDial := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if errDial == nil {
			_ = conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", errDial)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case errServe := <-done:
		if errServe != nil {
			t.Fatalf("expected clean shutdown, got %v", errServe)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}
