package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/device-core/internal/audit"
	"github.com/nerrad567/device-core/internal/auth"
	"github.com/nerrad567/device-core/internal/device"
	"github.com/nerrad567/device-core/internal/infrastructure/config"
	"github.com/nerrad567/device-core/internal/infrastructure/logging"
	"github.com/nerrad567/device-core/internal/integration"
	"github.com/nerrad567/device-core/internal/removal"
	"github.com/nerrad567/device-core/internal/subsystem"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// approvingHandler is an integration handler whose removal hook always
// consents.
type approvingHandler struct {
	domain string
}

func (h *approvingHandler) Domain() string { return h.domain }

func (h *approvingHandler) RemoveConfigEntryDevice(_ context.Context, _ *subsystem.ConfigEntry, _ *device.DeviceEntry) (bool, error) {
	return true, nil
}

// vetoingHandler is an integration handler whose removal hook always
// rejects.
type vetoingHandler struct {
	domain string
}

func (h *vetoingHandler) Domain() string { return h.domain }

func (h *vetoingHandler) RemoveConfigEntryDevice(_ context.Context, _ *subsystem.ConfigEntry, _ *device.DeviceEntry) (bool, error) {
	return false, nil
}

// testEnv bundles the server and the stores behind it.
type testEnv struct {
	srv      *Server
	registry *device.Registry
	entries  *subsystem.Store
	handlers *integration.Registry
	users    auth.UserRepository
}

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_by_user TEXT,
			manufacturer TEXT,
			model TEXT,
			sw_version TEXT,
			hw_version TEXT,
			configuration_url TEXT,
			entry_type TEXT,
			area_id TEXT,
			disabled_by TEXT,
			via_device_id TEXT,
			connections TEXT NOT NULL DEFAULT '[]',
			identifiers TEXT NOT NULL DEFAULT '[]',
			config_entries TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE TABLE config_entries (
			id TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			title TEXT NOT NULL,
			supports_remove_device INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			disabled INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT,
			user_id TEXT,
			source TEXT NOT NULL,
			details TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testServer creates a Server over real stores backed by in-memory SQLite.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	ctx := context.Background()

	registry := device.NewRegistry(device.NewSQLiteRepository(db))
	if err := registry.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	entries := subsystem.NewStore(subsystem.NewSQLiteRepository(db))
	if err := entries.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	handlers := integration.NewRegistry()
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	remover := removal.NewCoordinator(registry, entries, handlers, log)
	users := auth.NewUserRepository(db)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         testJWTSecret,
				AccessTokenTTL: 15,
			},
		},
		Logger:   log,
		Registry: registry,
		Entries:  entries,
		Remover:  remover,
		Users:    users,
		Audit:    audit.NewSQLiteRepository(db),
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{
		srv:      srv,
		registry: registry,
		entries:  entries,
		handlers: handlers,
		users:    users,
	}
}

// createUser inserts a user with the given role and returns a bearer
// token for them.
func (e *testEnv) createUser(t *testing.T, username string, role auth.Role) (*auth.User, string) {
	t.Helper()

	hash, err := auth.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &auth.User{Username: username, PasswordHash: hash, Role: role}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create user: %v", err)
	}

	token, err := auth.GenerateAccessToken(user, testJWTSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	return user, token
}

// seedDevice registers a device through the registry and returns it.
func (e *testEnv) seedDevice(t *testing.T, configEntryID string) *device.DeviceEntry {
	t.Helper()

	entry, _, err := e.registry.GetOrCreate(context.Background(), &device.Seed{
		ConfigEntryID: configEntryID,
		Name:          "Thermostat",
		Manufacturer:  "Acme",
		Identifiers:   []device.Pair{{Kind: "serial", Value: "TH-" + configEntryID}},
	})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return entry
}

// seedEntry creates a config entry and registers its handler.
func (e *testEnv) seedEntry(t *testing.T, domain string, supportsRemove bool, handler integration.Handler) *subsystem.ConfigEntry {
	t.Helper()

	entry, err := e.entries.Create(context.Background(), &subsystem.ConfigEntry{
		Domain:               domain,
		SupportsRemoveDevice: supportsRemove,
	})
	if err != nil {
		t.Fatalf("Create entry: %v", err)
	}
	if handler != nil {
		if err := e.handlers.Register(handler); err != nil {
			t.Fatalf("Register handler: %v", err)
		}
	}
	return entry
}

// doRequest runs a request through the full router and returns the recorder.
func (e *testEnv) doRequest(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		data, _ := json.Marshal(body) //nolint:errcheck // test fixtures always marshal
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	env := testServer(t)

	w := env.doRequest(http.MethodGet, "/api/v1/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeBody(t, w)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_ContentType(t *testing.T) {
	env := testServer(t)

	w := env.doRequest(http.MethodGet, "/api/v1/health", "", nil)
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestNew_MissingDeps(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	tests := []struct {
		name string
		deps Deps
	}{
		{name: "no logger", deps: Deps{}},
		{name: "no registry", deps: Deps{Logger: log}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() succeeded with missing dependencies")
			}
		})
	}
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	env := testServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/devices"},
		{http.MethodGet, "/api/v1/devices/dev-1"},
		{http.MethodGet, "/api/v1/config-entries"},
		{http.MethodGet, "/api/v1/audit"},
		{http.MethodGet, "/api/v1/system/status"},
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPost, "/api/v1/auth/ws-ticket"},
	}

	for _, p := range paths {
		w := env.doRequest(p.method, p.path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d, want %d", p.method, p.path, w.Code, http.StatusUnauthorized)
		}
	}
}

func TestAdminRoutes_RejectViewer(t *testing.T) {
	env := testServer(t)
	_, token := env.createUser(t, "viewer", auth.RoleViewer)

	paths := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/v1/devices", map[string]any{}},
		{http.MethodPatch, "/api/v1/devices/dev-1", map[string]any{}},
		{http.MethodDelete, "/api/v1/devices/dev-1/config-entries/ce-1", nil},
		{http.MethodPost, "/api/v1/config-entries", map[string]any{}},
		{http.MethodDelete, "/api/v1/config-entries/ce-1", nil},
		{http.MethodGet, "/api/v1/audit", nil},
	}

	for _, p := range paths {
		w := env.doRequest(p.method, p.path, token, p.body)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s %s as viewer = %d, want %d", p.method, p.path, w.Code, http.StatusForbidden)
		}
	}
}

func TestSystemStatus(t *testing.T) {
	env := testServer(t)
	_, token := env.createUser(t, "viewer", auth.RoleViewer)

	w := env.doRequest(http.MethodGet, "/api/v1/system/status", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeBody(t, w)
	if resp["mqtt"] != "disabled" {
		t.Errorf("mqtt = %v, want disabled", resp["mqtt"])
	}
	if resp["telemetry"] != "disabled" {
		t.Errorf("telemetry = %v, want disabled", resp["telemetry"])
	}
	if resp["devices"] != float64(0) {
		t.Errorf("devices = %v, want 0", resp["devices"])
	}
}

func TestRequestID_Propagated(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req-fixed-42")
	w := httptest.NewRecorder()
	env.srv.buildRouter().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-fixed-42" {
		t.Errorf("X-Request-ID = %q, want req-fixed-42", got)
	}
}
