// Package server hosts the StreamNest HTTP API behind a shared middleware
// chain of request IDs, request logging, CORS, security headers,
// authentication, and audit.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"streamnest/internal/api"
	"streamnest/internal/observability/logging"
)

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type Config struct {
	Addr        string
	TLS         TLSConfig
	CORS        CORSConfig
	Security    SecurityConfig
	Logger      *slog.Logger
	AuditLogger *slog.Logger
}

type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	auditLogger *slog.Logger
	tlsCertFile string
	tlsKeyFile  string
}

func New(handler *api.Handler, cfg Config) (*Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handler.Health)
	mux.HandleFunc("/api/auth/register", handler.Register)
	mux.HandleFunc("/api/auth/login", handler.Login)
	mux.HandleFunc("/api/auth/refresh", handler.Refresh)
	mux.HandleFunc("/api/auth/logout", handler.Logout)
	mux.HandleFunc("/api/auth/change-password", handler.ChangePassword)
	mux.HandleFunc("/api/auth/me", handler.CurrentUser)
	mux.HandleFunc("/api/users/", handler.Users)
	mux.HandleFunc("/api/videos", handler.Videos)
	mux.HandleFunc("/api/videos/", handler.Videos)
	mux.HandleFunc("/api/comments/", handler.Comments)
	mux.HandleFunc("/api/playlists", handler.Playlists)
	mux.HandleFunc("/api/playlists/", handler.Playlists)
	mux.HandleFunc("/api/subscriptions", handler.Subscriptions)
	mux.HandleFunc("/api/subscriptions/", handler.Subscriptions)

	corsPolicy, err := newCORSPolicy(cfg.CORS)
	if err != nil {
		return nil, err
	}

	// Audit sits inside auth so mutating requests are logged with the
	// authenticated user already on the context.
	handlerChain := http.Handler(mux)
	handlerChain = auditMiddleware(cfg.AuditLogger, handlerChain)
	handlerChain = authMiddleware(handler, handlerChain)
	handlerChain = securityHeadersMiddleware(cfg.Security, handlerChain)
	handlerChain = corsMiddleware(corsPolicy, cfg.Logger, handlerChain)
	if cfg.Logger != nil {
		handlerChain = logging.RequestLogger(logging.RequestLoggerConfig{
			Logger:            cfg.Logger,
			DisableRemoteAddr: true,
			AdditionalFields: func(r *http.Request, _ int, _ time.Duration) []any {
				return []any{"remote_ip", extractClientIP(r)}
			},
		})(handlerChain)
	}
	handlerChain = requestIDMiddleware(cfg.Logger, handlerChain)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlerChain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	srv := &Server{
		httpServer:  httpServer,
		logger:      cfg.Logger,
		auditLogger: cfg.AuditLogger,
		tlsCertFile: strings.TrimSpace(cfg.TLS.CertFile),
		tlsKeyFile:  strings.TrimSpace(cfg.TLS.KeyFile),
	}

	if srv.tlsCertFile != "" && srv.tlsKeyFile != "" {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return srv, nil
}

func (s *Server) Start() error {
	if s.httpServer == nil {
		return fmt.Errorf("http server is not configured")
	}

	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		return s.httpServer.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func auditMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := newStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(sr, r)
		if !shouldAudit(r) {
			return
		}
		duration := time.Since(start)
		user, ok := api.UserFromContext(r.Context())
		fields := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.status,
			"duration_ms", duration.Milliseconds(),
			"remote_ip", extractClientIP(r),
		}
		if ok {
			fields = append(fields, "user_id", user.ID)
		}
		loggerWithRequestContext(r.Context(), logger).Info("audit", fields...)
	})
}

func shouldAudit(r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}
	return clientIP(r.RemoteAddr)
}

func clientIP(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// authMiddleware resolves the access token once per request and stores the
// user in context. Public read endpoints pass through without a token so
// unauthenticated visitors can still browse published content.
func authMiddleware(handler *api.Handler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/healthz" || !strings.HasPrefix(path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		publicAuth := strings.HasPrefix(path, "/api/auth/") && path != "/api/auth/logout" && path != "/api/auth/change-password" && path != "/api/auth/me"
		optionalAuth := publicAuth || (r.Method == http.MethodGet &&
			(strings.HasPrefix(path, "/api/videos") || strings.HasPrefix(path, "/api/users/") || strings.HasPrefix(path, "/api/comments/")))

		token := api.ExtractToken(r)
		if token == "" {
			if optionalAuth {
				next.ServeHTTP(w, r)
				return
			}
			api.WriteError(w, http.StatusUnauthorized, fmt.Errorf("missing access token"))
			return
		}
		user, err := handler.AuthenticateRequest(r)
		if err != nil {
			if optionalAuth {
				next.ServeHTTP(w, r)
				return
			}
			api.WriteError(w, http.StatusUnauthorized, fmt.Errorf("invalid or expired access token"))
			return
		}
		ctx := api.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
