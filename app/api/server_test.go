package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/lysyi3m/social-comb/app/config"
	"github.com/lysyi3m/social-comb/app/database"
)

func newTestServer(t *testing.T, apiAccessKey string) http.Handler {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cache := config.NewCache(t.TempDir())
	if err := cache.Run(); err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	handler := NewHandler(cache, database.NewItemRepository(db),
		database.NewPostRepository(db), nil, nil, nil, nil, nil)
	return NewServer(handler, apiAccessKey)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	server := newTestServer(t, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/stats", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestAPIRequiresKey(t *testing.T) {
	server := newTestServer(t, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/items", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}
}

func TestAPIRejectsWrongKey(t *testing.T) {
	server := newTestServer(t, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/items", nil)
	req.Header.Set("X-API-Key", "wrong")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}
}

func TestAPIAcceptsValidKey(t *testing.T) {
	server := newTestServer(t, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/items", nil)
	req.Header.Set("X-API-Key", "secret")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid key, got %d", w.Code)
	}
}

func TestAPIAcceptsBearerToken(t *testing.T) {
	server := newTestServer(t, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/items", nil)
	req.Header.Set("Authorization", "Bearer secret")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", w.Code)
	}
}

func TestAPIDisabledWithoutKey(t *testing.T) {
	server := newTestServer(t, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/items", nil)
	server.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when API is disabled, got %d", w.Code)
	}
}

func TestCancelUnknownPost(t *testing.T) {
	server := newTestServer(t, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/posts/nope/cancel", nil)
	req.Header.Set("X-API-Key", "secret")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown post, got %d", w.Code)
	}
}
