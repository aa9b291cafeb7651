package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"streamnest/internal/models"
)

type contextKey string

const userContextKey contextKey = "authenticatedUser"

// ContextWithUser stores the authenticated user in the provided context.
func ContextWithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from context if present.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

// ExtractToken returns the access token carried by the request, preferring
// the Authorization header over the session cookie.
func ExtractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(accessCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthenticateRequest validates the access token on the request and returns the user.
func (h *Handler) AuthenticateRequest(r *http.Request) (models.User, error) {
	token := ExtractToken(r)
	if token == "" {
		return models.User{}, fmt.Errorf("missing access token")
	}
	return h.Sessions.Authenticate(r.Context(), token)
}

func (h *Handler) requireAuthenticatedUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return models.User{}, false
	}
	return user, true
}
