package api

import (
	"log/slog"
	"time"

	"streamnest/internal/auth"
	"streamnest/internal/observability/logging"
	"streamnest/internal/storage"
)

const timeFormat = time.RFC3339Nano

type Handler struct {
	Store               storage.Repository
	Sessions            *auth.SessionManager
	LoginLimiter        *auth.LoginLimiter
	SessionCookiePolicy SessionCookiePolicy
	Logger              *slog.Logger
}

func NewHandler(store storage.Repository, sessions *auth.SessionManager) *Handler {
	return &Handler{Store: store, Sessions: sessions}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return logging.WithComponent(logging.New(logging.Config{}), "api")
}
