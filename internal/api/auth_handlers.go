package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"streamnest/internal/auth"
	"streamnest/internal/models"
)

const maxUploadedImageBytes = 8 << 20

type registerRequest struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	FullName      string `json:"fullName"`
	Password      string `json:"password"`
	AvatarURL     string `json:"avatarUrl"`
	CoverImageURL string `json:"coverImageUrl"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type userResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	FullName      string `json:"fullName"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	CoverImageURL string `json:"coverImageUrl,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

type sessionResponse struct {
	User             userResponse `json:"user"`
	AccessToken      string       `json:"accessToken"`
	AccessExpiresAt  string       `json:"accessExpiresAt"`
	RefreshToken     string       `json:"refreshToken"`
	RefreshExpiresAt string       `json:"refreshExpiresAt"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt.Format(timeFormat),
	}
}

func newSessionResponse(result auth.SessionResult) sessionResponse {
	return sessionResponse{
		User:             newUserResponse(result.User),
		AccessToken:      result.AccessToken,
		AccessExpiresAt:  result.AccessExpiresAt.UTC().Format(timeFormat),
		RefreshToken:     result.RefreshToken,
		RefreshExpiresAt: result.RefreshExpiresAt.UTC().Format(timeFormat),
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}

	params, err := h.registerParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := h.Sessions.Register(r.Context(), params)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger().Info("user registered", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": newUserResponse(user)})
}

func (h *Handler) registerParams(r *http.Request) (auth.RegisterParams, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType != "multipart/form-data" {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			return auth.RegisterParams{}, err
		}
		return auth.RegisterParams{
			Username:      req.Username,
			Email:         req.Email,
			FullName:      req.FullName,
			Password:      req.Password,
			AvatarURL:     req.AvatarURL,
			CoverImageURL: req.CoverImageURL,
		}, nil
	}

	if err := r.ParseMultipartForm(2 * maxUploadedImageBytes); err != nil {
		return auth.RegisterParams{}, fmt.Errorf("parse form: %w", err)
	}
	params := auth.RegisterParams{
		Username:      r.FormValue("username"),
		Email:         r.FormValue("email"),
		FullName:      r.FormValue("fullName"),
		Password:      r.FormValue("password"),
		AvatarURL:     r.FormValue("avatarUrl"),
		CoverImageURL: r.FormValue("coverImageUrl"),
	}

	avatarURL, err := h.storeFormImage(r, "avatar", "avatars")
	if err != nil {
		return auth.RegisterParams{}, err
	}
	if avatarURL != "" {
		params.AvatarURL = avatarURL
	}
	coverURL, err := h.storeFormImage(r, "coverImage", "covers")
	if err != nil {
		return auth.RegisterParams{}, err
	}
	if coverURL != "" {
		params.CoverImageURL = coverURL
	}
	return params, nil
}

// storeFormImage uploads the named multipart file to object storage and
// returns its public URL. A missing file or disabled storage yields an empty
// URL so callers can fall back to a form-supplied one.
func (h *Handler) storeFormImage(r *http.Request, field, prefix string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", field, err)
	}
	defer file.Close()

	if !h.Store.AssetStorageEnabled() {
		return "", nil
	}
	if header.Size > maxUploadedImageBytes {
		return "", fmt.Errorf("%s exceeds %d bytes", field, maxUploadedImageBytes)
	}
	body, err := io.ReadAll(io.LimitReader(file, maxUploadedImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", field, err)
	}
	if len(body) > maxUploadedImageBytes {
		return "", fmt.Errorf("%s exceeds %d bytes", field, maxUploadedImageBytes)
	}

	key := fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), strings.ToLower(path.Ext(header.Filename)))
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := h.Store.UploadAsset(r.Context(), key, contentType, body)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", field, err)
	}
	return url, nil
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Username)
	}
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("username or email is required"))
		return
	}

	if err := h.LoginLimiter.Check(r.Context(), identifier); err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.Sessions.Login(r.Context(), identifier, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) || errors.Is(err, auth.ErrNotFound) {
			if limitErr := h.LoginLimiter.RecordFailure(r.Context(), identifier); limitErr != nil {
				writeDomainError(w, limitErr)
				return
			}
			writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid credentials"))
			return
		}
		writeDomainError(w, err)
		return
	}
	if err := h.LoginLimiter.Reset(r.Context(), identifier); err != nil {
		h.logger().Warn("login limiter reset failed", "error", err)
	}

	h.setSessionCookies(w, r, result.AccessToken, result.AccessExpiresAt, result.RefreshToken, result.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, newSessionResponse(result))
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}

	token := ""
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		token = cookie.Value
	}
	if token == "" && r.Body != nil && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSONAllowUnknown(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		token = req.RefreshToken
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("refresh token is required"))
		return
	}

	result, err := h.Sessions.Refresh(r.Context(), token)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.setSessionCookies(w, r, result.AccessToken, result.AccessExpiresAt, result.RefreshToken, result.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, newSessionResponse(result))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	if err := h.Sessions.Logout(r.Context(), user.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	h.ClearSessionCookies(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Sessions.ChangePassword(r.Context(), user.ID, req.OldPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": newUserResponse(user)})
}
