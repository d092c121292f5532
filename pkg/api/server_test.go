package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ggnet/ggnetd/pkg/images"
	"github.com/ggnet/ggnetd/pkg/orchestrator"
	"github.com/ggnet/ggnetd/pkg/store"
)

// testSetup creates an in-memory store, orchestrator, and APIConfig for
// testing.
func testSetup(t *testing.T, port int) (store.Store, *orchestrator.Orchestrator, *images.Store, APIConfig) {
	t.Helper()

	dbConfig := store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	}
	db, err := store.New(&dbConfig)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	imgs, err := images.New(images.Config{
		UploadDir: t.TempDir(),
		ImagesDir: t.TempDir(),
	}, db)
	if err != nil {
		t.Fatalf("Failed to create image store: %v", err)
	}

	orch := orchestrator.New(orchestrator.Config{IQNPrefix: "iqn.2025.ggnet"}, db, nil, nil, nil, nil)

	cfg := APIConfig{
		Port:         port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  10 * time.Second,
		JWT: JWTConfig{
			Secret:               "test-secret-key-for-testing-only-32chars",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
		},
	}

	return db, orch, imgs, cfg
}

func TestAPIServer_Lifecycle(t *testing.T) {
	db, orch, imgs, cfg := testSetup(t, 18080)

	server, err := NewServer(cfg, db, orch, imgs)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", cfg.Port))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", contentType)
	}

	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Expected nil on graceful shutdown, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shutdown in time")
	}
}

func TestAPIServer_Port(t *testing.T) {
	db, orch, imgs, cfg := testSetup(t, 9999)

	server, err := NewServer(cfg, db, orch, imgs)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if server.Port() != 9999 {
		t.Errorf("Expected port 9999, got %d", server.Port())
	}
}

func TestAPIServer_DefaultConfig(t *testing.T) {
	db, orch, imgs, _ := testSetup(t, 0)

	cfg := APIConfig{
		// Port and timeouts not set - should use defaults
		JWT: JWTConfig{
			Secret: "test-secret-key-for-testing-only-32chars",
		},
	}

	server, err := NewServer(cfg, db, orch, imgs)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if server.Port() != 8080 {
		t.Errorf("Expected default port 8080, got %d", server.Port())
	}
}

func TestAPIServer_HealthEndpoint(t *testing.T) {
	db, orch, imgs, cfg := testSetup(t, 18081)

	server, err := NewServer(cfg, db, orch, imgs)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = server.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", cfg.Port))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	resp2, err := http.Get(fmt.Sprintf("http://localhost:%d/health/ready", cfg.Port))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer func() { _ = resp2.Body.Close() }()

	if resp2.StatusCode != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, resp2.StatusCode)
	}
}

func TestAPIServer_RootRedirectsToHealth(t *testing.T) {
	db, orch, imgs, cfg := testSetup(t, 18082)

	server, err := NewServer(cfg, db, orch, imgs)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = server.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/", cfg.Port))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("Expected status %d, got %d", http.StatusTemporaryRedirect, resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location != "/health" {
		t.Errorf("Expected redirect to '/health', got '%s'", location)
	}
}

func TestAPIServer_StoresEndpoint(t *testing.T) {
	db, orch, imgs, cfg := testSetup(t, 18083)

	server, err := NewServer(cfg, db, orch, imgs)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = server.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health/stores", cfg.Port))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var response struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", response.Status)
	}
}

func TestAPIServer_InvalidJWTSecret(t *testing.T) {
	db, orch, imgs, _ := testSetup(t, 0)

	cfg := APIConfig{
		JWT: JWTConfig{
			Secret: "short", // Too short, should fail
		},
	}

	_, err := NewServer(cfg, db, orch, imgs)
	if err == nil {
		t.Fatal("Expected error for invalid JWT secret, got nil")
	}
}
