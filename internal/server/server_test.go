package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"streamnest/internal/api"
	"streamnest/internal/auth"
	"streamnest/internal/observability/logging"
	"streamnest/internal/storage"
)

func newTestHandler(t *testing.T) *api.Handler {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	sessions, err := auth.NewSessionManager(store, tokens,
		auth.WithPasswordHasher(auth.NewPasswordHasher(bcrypt.MinCost)))
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return api.NewHandler(store, sessions)
}

func loginTestUser(t *testing.T, h *api.Handler) string {
	t.Helper()
	ctx := context.Background()
	if _, err := h.Sessions.Register(ctx, auth.RegisterParams{
		Username:  "alice",
		Email:     "alice@example.com",
		FullName:  "Alice Streams",
		Password:  "hunter22",
		AvatarURL: "https://cdn.example.com/avatars/alice.png",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	session, err := h.Sessions.Login(ctx, "alice", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return session.AccessToken
}

func TestAuthMiddlewareRouting(t *testing.T) {
	h := newTestHandler(t)
	token := loginTestUser(t, h)

	cases := []struct {
		name       string
		method     string
		target     string
		token      string
		wantNext   bool
		wantStatus int
	}{
		{name: "healthz is open", method: http.MethodGet, target: "/healthz", wantNext: true},
		{name: "login is open", method: http.MethodPost, target: "/api/auth/login", wantNext: true},
		{name: "logout needs a token", method: http.MethodPost, target: "/api/auth/logout", wantStatus: http.StatusUnauthorized},
		{name: "change password needs a token", method: http.MethodPost, target: "/api/auth/change-password", wantStatus: http.StatusUnauthorized},
		{name: "publishing needs a token", method: http.MethodPost, target: "/api/videos", wantStatus: http.StatusUnauthorized},
		{name: "browsing is open", method: http.MethodGet, target: "/api/videos", wantNext: true},
		{name: "watching is open", method: http.MethodGet, target: "/api/videos/abc123", wantNext: true},
		{name: "channel pages are open", method: http.MethodGet, target: "/api/users/alice", wantNext: true},
		{name: "stale token still browses", method: http.MethodGet, target: "/api/videos", token: "not-a-jwt", wantNext: true},
		{name: "stale token cannot publish", method: http.MethodPost, target: "/api/videos", token: "not-a-jwt", wantStatus: http.StatusUnauthorized},
		{name: "playlists need a token", method: http.MethodGet, target: "/api/playlists", wantStatus: http.StatusUnauthorized},
		{name: "valid token passes", method: http.MethodPost, target: "/api/videos", token: token, wantNext: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			nextCalled := false
			chain := authMiddleware(h, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
			}))
			req := httptest.NewRequest(tc.method, tc.target, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			chain.ServeHTTP(rec, req)

			if nextCalled != tc.wantNext {
				t.Fatalf("next called = %v, want %v", nextCalled, tc.wantNext)
			}
			if !tc.wantNext && rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestAuthMiddlewareInjectsUser(t *testing.T) {
	h := newTestHandler(t)
	token := loginTestUser(t, h)

	var username string
	chain := authMiddleware(h, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := api.UserFromContext(r.Context()); ok {
			username = user.Username
		}
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	chain.ServeHTTP(httptest.NewRecorder(), req)

	if username != "alice" {
		t.Fatalf("context user = %q, want alice", username)
	}
}

func TestAuthMiddlewareInvalidTokenStaysAnonymous(t *testing.T) {
	h := newTestHandler(t)

	sawUser := false
	chain := authMiddleware(h, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawUser = api.UserFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	chain.ServeHTTP(httptest.NewRecorder(), req)

	if sawUser {
		t.Fatal("invalid token must not resolve to a user")
	}
}

func TestAuditLogRecordsAuthenticatedUser(t *testing.T) {
	h := newTestHandler(t)
	token := loginTestUser(t, h)
	actor, ok := h.Store.GetUserByUsername("alice")
	if !ok {
		t.Fatal("alice not found")
	}

	var buf bytes.Buffer
	auditLogger := logging.New(logging.Config{Writer: &buf})
	chain := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	chain = auditMiddleware(auditLogger, chain)
	chain = authMiddleware(h, chain)

	req := httptest.NewRequest(http.MethodPost, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	chain.ServeHTTP(httptest.NewRecorder(), req)

	entry := buf.String()
	if !strings.Contains(entry, `"msg":"audit"`) {
		t.Fatalf("expected an audit entry, got %s", entry)
	}
	if !strings.Contains(entry, actor.ID) {
		t.Fatalf("audit entry missing the acting user: %s", entry)
	}
}

func TestRequestLogCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Writer: &buf})
	chain := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	chain = logging.RequestLogger(logging.RequestLoggerConfig{Logger: logger, DisableRemoteAddr: true})(chain)
	chain = requestIDMiddleware(logger, chain)

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("X-Request-Id", "req-42")
	chain.ServeHTTP(httptest.NewRecorder(), req)

	entry := buf.String()
	if !strings.Contains(entry, `"msg":"request completed"`) {
		t.Fatalf("expected a request log entry, got %s", entry)
	}
	if !strings.Contains(entry, `"request_id":"req-42"`) {
		t.Fatalf("request log missing the request id: %s", entry)
	}
}

func TestRequestIDMiddlewareEchoesHeader(t *testing.T) {
	logger := logging.New(logging.Config{Writer: io.Discard})
	chain := requestIDMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("X-Request-Id = %q, want req-42", got)
	}
}

func TestRequestIDMiddlewareGeneratesWhenMissing(t *testing.T) {
	logger := logging.New(logging.Config{Writer: io.Discard})
	chain := requestIDMiddlewareWithGenerator(logger, func() string { return "generated-id" },
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := rec.Header().Get("X-Request-Id"); got != "generated-id" {
		t.Fatalf("X-Request-Id = %q, want generated-id", got)
	}
}

func TestSecurityHeadersDefaults(t *testing.T) {
	chain := securityHeadersMiddleware(SecurityConfig{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	headers := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "no-referrer",
	}
	for name, want := range headers {
		if got := rec.Header().Get(name); got != want {
			t.Fatalf("%s = %q, want %q", name, got, want)
		}
	}
	if csp := rec.Header().Get("Content-Security-Policy"); csp == "" {
		t.Fatal("expected a Content-Security-Policy header")
	}
}

func TestCORSMiddleware(t *testing.T) {
	policy, err := newCORSPolicy(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})
	if err != nil {
		t.Fatalf("newCORSPolicy: %v", err)
	}
	logger := logging.New(logging.Config{Writer: io.Discard})
	chain := corsMiddleware(policy, logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
			t.Fatalf("Access-Control-Allow-Origin = %q", got)
		}
		if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Fatal("expected credentials to be allowed")
		}
	})

	t.Run("blocked origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/videos", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
		}
		if rec.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Fatal("expected Access-Control-Allow-Methods on preflight")
		}
	})

	t.Run("no origin passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/videos", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Fatal("unexpected CORS headers without an Origin")
		}
	})
}

func TestNewRejectsMalformedOrigin(t *testing.T) {
	h := newTestHandler(t)
	_, err := New(h, Config{CORS: CORSConfig{AllowedOrigins: []string{"app.example.com"}}})
	if err == nil {
		t.Fatal("expected an error for an origin without a scheme")
	}
}

func TestExtractClientIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		forwarded  string
		realIP     string
		want       string
	}{
		{name: "remote addr", remoteAddr: "203.0.113.9:4411", want: "203.0.113.9"},
		{name: "forwarded chain wins", remoteAddr: "10.0.0.1:80", forwarded: "198.51.100.7, 10.0.0.2", want: "198.51.100.7"},
		{name: "real ip fallback", remoteAddr: "10.0.0.1:80", realIP: "198.51.100.8", want: "198.51.100.8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := extractClientIP(req); got != tc.want {
				t.Fatalf("extractClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestShouldAudit(t *testing.T) {
	post := httptest.NewRequest(http.MethodPost, "/api/videos", nil)
	if !shouldAudit(post) {
		t.Fatal("POST /api/videos should be audited")
	}
	get := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	if shouldAudit(get) {
		t.Fatal("GET requests are not audited")
	}
	health := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	if shouldAudit(health) {
		t.Fatal("non-API paths are not audited")
	}
}
