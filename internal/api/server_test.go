package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/geocontrol/geocontrol-core/internal/audit"
	"github.com/geocontrol/geocontrol-core/internal/auth"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/config"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/database"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/logging"
	"github.com/geocontrol/geocontrol-core/internal/measurement"
	"github.com/geocontrol/geocontrol-core/internal/topology"
	_ "github.com/geocontrol/geocontrol-core/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

type testEnv struct {
	srv      *Server
	router   http.Handler
	auth     *auth.Service
	recorder *audit.Recorder
}

// testServer creates a Server backed by a migrated SQLite database in a temp dir.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	topo := topology.NewSQLiteRepository(db.DB)
	authSvc := auth.NewService(auth.NewUserRepository(db.DB), testSecret, time.Hour)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, nil, 0)
	t.Cleanup(recorder.Close)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:       logging.Discard(),
		Topology:     topo,
		Measurements: measurement.NewService(topo, measurement.NewSQLiteRepository(db.DB)),
		Auth:         authSvc,
		Database:     db,
		Audit:        recorder,
		AuditLogs:    auditRepo,
		Metrics:      true,
		Version:      "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{srv: srv, router: srv.buildRouter(), auth: authSvc, recorder: recorder}
}

// tokenFor signs an access token for a synthetic user with the given role.
func tokenFor(t *testing.T, role auth.Role) string {
	t.Helper()
	token, err := auth.GenerateAccessToken(&auth.User{ID: "usr-" + string(role), Username: string(role), Role: role}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	return token
}

// do sends a request through the router. An empty token sends no Authorization header.
func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// mustDo is do plus a status assertion.
func (e *testEnv) mustDo(t *testing.T, method, path, token, body string, want int) *httptest.ResponseRecorder {
	t.Helper()
	w := e.do(t, method, path, token, body)
	if w.Code != want {
		t.Fatalf("%s %s status = %d, want %d; body: %s", method, path, w.Code, want, w.Body.String())
	}
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

// seedTopology creates NET01 -> GW01 -> {S01, S02} through the API.
func (e *testEnv) seedTopology(t *testing.T) {
	t.Helper()
	op := tokenFor(t, auth.RoleOperator)
	e.mustDo(t, http.MethodPost, "/api/v1/networks", op, `{"code":"NET01","name":"Alp Monitor"}`, http.StatusCreated)
	e.mustDo(t, http.MethodPost, "/api/v1/networks/NET01/gateways", op, `{"macAddress":"GW01"}`, http.StatusCreated)
	e.mustDo(t, http.MethodPost, "/api/v1/networks/NET01/gateways/GW01/sensors", op,
		`{"macAddress":"S01","variable":"temperature","unit":"C"}`, http.StatusCreated)
	e.mustDo(t, http.MethodPost, "/api/v1/networks/NET01/gateways/GW01/sensors", op, `{"macAddress":"S02"}`, http.StatusCreated)
}

// ─── Health & Middleware ───────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t)

	w := env.mustDo(t, http.MethodGet, "/api/v1/health", "", "", http.StatusOK)
	resp := decode[map[string]any](t, w)

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestRequestID(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/networks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want http://localhost:3000", got)
	}
}

func TestNotFoundRoute(t *testing.T) {
	env := testServer(t)
	env.mustDo(t, http.MethodGet, "/api/v1/nonexistent", "", "", http.StatusNotFound)
}

func TestMetricsEndpoint(t *testing.T) {
	env := testServer(t)
	env.do(t, http.MethodGet, "/api/v1/health", "", "")

	w := env.mustDo(t, http.MethodGet, "/api/v1/metrics", "", "", http.StatusOK)
	if !strings.Contains(w.Body.String(), "geocontrol_http_requests_total") {
		t.Error("metrics output should contain geocontrol_http_requests_total")
	}
}

// ─── Authentication & Authorisation ────────────────────────────────

func TestLogin(t *testing.T) {
	env := testServer(t)
	if _, err := env.auth.CreateUser(context.Background(), "alice", "password-1", auth.RoleViewer); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	w := env.mustDo(t, http.MethodPost, "/api/v1/auth", "", `{"username":"alice","password":"password-1"}`, http.StatusOK)
	resp := decode[loginResponse](t, w)
	if resp.Token == "" {
		t.Fatal("expected a token")
	}

	// The issued token opens read endpoints.
	env.mustDo(t, http.MethodGet, "/api/v1/networks", resp.Token, "", http.StatusOK)

	env.mustDo(t, http.MethodPost, "/api/v1/auth", "", `{"username":"alice","password":"wrong-pass"}`, http.StatusUnauthorized)
	env.mustDo(t, http.MethodPost, "/api/v1/auth", "", `{"username":"nobody","password":"password-1"}`, http.StatusUnauthorized)
	env.mustDo(t, http.MethodPost, "/api/v1/auth", "", `{"username":""}`, http.StatusBadRequest)
	env.mustDo(t, http.MethodPost, "/api/v1/auth", "", `not json`, http.StatusBadRequest)
}

func TestAuthMiddleware(t *testing.T) {
	env := testServer(t)

	env.mustDo(t, http.MethodGet, "/api/v1/networks", "", "", http.StatusUnauthorized)
	env.mustDo(t, http.MethodGet, "/api/v1/networks", "garbage", "", http.StatusUnauthorized)

	other, err := auth.GenerateAccessToken(&auth.User{ID: "usr-x", Role: auth.RoleAdmin}, "another-secret-that-is-long-enough", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	env.mustDo(t, http.MethodGet, "/api/v1/networks", other, "", http.StatusUnauthorized)
}

func TestRolePermissions(t *testing.T) {
	env := testServer(t)
	env.seedTopology(t)

	viewer := tokenFor(t, auth.RoleViewer)
	operator := tokenFor(t, auth.RoleOperator)
	admin := tokenFor(t, auth.RoleAdmin)

	env.mustDo(t, http.MethodGet, "/api/v1/networks/NET01", viewer, "", http.StatusOK)
	env.mustDo(t, http.MethodPost, "/api/v1/networks", viewer, `{"code":"NET02"}`, http.StatusForbidden)
	env.mustDo(t, http.MethodDelete, "/api/v1/networks/NET01", viewer, "", http.StatusForbidden)
	env.mustDo(t, http.MethodPost, "/api/v1/networks/NET01/gateways/GW01/sensors/S01/measurements", viewer,
		`[{"createdAt":"2025-02-18T15:00:00Z","value":1}]`, http.StatusForbidden)
	env.mustDo(t, http.MethodGet, "/api/v1/users", viewer, "", http.StatusForbidden)
	env.mustDo(t, http.MethodGet, "/api/v1/users", operator, "", http.StatusForbidden)
	env.mustDo(t, http.MethodGet, "/api/v1/users", admin, "", http.StatusOK)
}

func TestUsers(t *testing.T) {
	env := testServer(t)
	admin := tokenFor(t, auth.RoleAdmin)

	w := env.mustDo(t, http.MethodPost, "/api/v1/users", admin,
		`{"username":"bob","password":"password-1","role":"operator"}`, http.StatusCreated)
	created := decode[map[string]any](t, w)
	if created["username"] != "bob" || created["role"] != "operator" {
		t.Errorf("created = %v", created)
	}
	if _, leaked := created["passwordHash"]; leaked {
		t.Error("password hash must not be serialised")
	}

	env.mustDo(t, http.MethodPost, "/api/v1/users", admin,
		`{"username":"bob","password":"password-1","role":"viewer"}`, http.StatusConflict)
	env.mustDo(t, http.MethodPost, "/api/v1/users", admin,
		`{"username":"carol","password":"password-1","role":"owner"}`, http.StatusBadRequest)

	env.mustDo(t, http.MethodGet, "/api/v1/users/bob", admin, "", http.StatusOK)
	users := decode[[]map[string]any](t, env.mustDo(t, http.MethodGet, "/api/v1/users", admin, "", http.StatusOK))
	if len(users) != 1 {
		t.Errorf("users = %v, want one", users)
	}

	env.mustDo(t, http.MethodDelete, "/api/v1/users/bob", admin, "", http.StatusNoContent)
	env.mustDo(t, http.MethodGet, "/api/v1/users/bob", admin, "", http.StatusNotFound)
}
