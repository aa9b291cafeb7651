package api

import (
	"fmt"
	"net/http"
	"strings"

	"streamnest/internal/models"
	"streamnest/internal/storage"
)

type updateProfileRequest struct {
	FullName      *string `json:"fullName"`
	Email         *string `json:"email"`
	AvatarURL     *string `json:"avatarUrl"`
	CoverImageURL *string `json:"coverImageUrl"`
}

type channelResponse struct {
	User        userResponse `json:"user"`
	Subscribers int          `json:"subscribers"`
	VideoCount  int          `json:"videoCount"`
	Subscribed  bool         `json:"subscribed"`
}

type videoResponse struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"ownerId"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	VideoURL        string  `json:"videoUrl"`
	ThumbnailURL    string  `json:"thumbnailUrl,omitempty"`
	DurationSeconds float64 `json:"durationSeconds"`
	Views           int64   `json:"views"`
	Published       bool    `json:"published"`
	Likes           int     `json:"likes"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

func (h *Handler) newVideoResponse(video models.Video) videoResponse {
	return videoResponse{
		ID:              video.ID,
		OwnerID:         video.OwnerID,
		Title:           video.Title,
		Description:     video.Description,
		VideoURL:        video.VideoURL,
		ThumbnailURL:    video.ThumbnailURL,
		DurationSeconds: video.DurationSeconds,
		Views:           video.Views,
		Published:       video.Published,
		Likes:           h.Store.CountVideoLikes(video.ID),
		CreatedAt:       video.CreatedAt.Format(timeFormat),
		UpdatedAt:       video.UpdatedAt.Format(timeFormat),
	}
}

func (h *Handler) newVideoListResponse(videos []models.Video) []videoResponse {
	response := make([]videoResponse, 0, len(videos))
	for _, video := range videos {
		response = append(response, h.newVideoResponse(video))
	}
	return response
}

// Users routes /api/users/ requests: the caller's own profile under
// /api/users/me and public channel pages under /api/users/{username}.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/users/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("user path missing"))
		return
	}

	if parts[0] == "me" {
		h.handleOwnProfile(w, r, parts[1:])
		return
	}
	h.handleChannelPage(w, r, parts[0], parts[1:])
}

func (h *Handler) handleOwnProfile(w http.ResponseWriter, r *http.Request, rest []string) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]interface{}{"user": newUserResponse(user)})
		case http.MethodPatch:
			var req updateProfileRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			updated, err := h.Store.UpdateUserProfile(user.ID, storage.ProfileUpdate{
				FullName:      req.FullName,
				Email:         req.Email,
				AvatarURL:     req.AvatarURL,
				CoverImageURL: req.CoverImageURL,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"user": newUserResponse(updated)})
		default:
			methodNotAllowed(w, r, "GET, PATCH")
		}
		return
	}

	switch rest[0] {
	case "avatar":
		h.updateProfileImage(w, r, user, "avatar", "avatars")
	case "cover":
		h.updateProfileImage(w, r, user, "coverImage", "covers")
	case "history":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, "GET")
			return
		}
		videos, err := h.Store.ListWatchHistory(user.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"videos": h.newVideoListResponse(videos)})
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown profile path"))
	}
}

func (h *Handler) updateProfileImage(w http.ResponseWriter, r *http.Request, user models.User, field, prefix string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	if err := r.ParseMultipartForm(maxUploadedImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}
	url, err := h.storeFormImage(r, field, prefix)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if url == "" {
		url = strings.TrimSpace(r.FormValue(field + "Url"))
	}
	if url == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%s file is required", field))
		return
	}

	update := storage.ProfileUpdate{}
	if field == "avatar" {
		update.AvatarURL = &url
	} else {
		update.CoverImageURL = &url
	}
	updated, err := h.Store.UpdateUserProfile(user.ID, update)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": newUserResponse(updated)})
}

func (h *Handler) handleChannelPage(w http.ResponseWriter, r *http.Request, username string, rest []string) {
	channel, ok := h.Store.GetUserByUsername(username)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("channel %s not found", username))
		return
	}

	if len(rest) == 0 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, "GET")
			return
		}
		videos := h.Store.ListVideos(storage.ListVideosParams{OwnerID: channel.ID})
		response := channelResponse{
			User:        newUserResponse(channel.Sanitized()),
			Subscribers: h.Store.CountSubscribers(channel.ID),
			VideoCount:  len(videos),
		}
		if actor, ok := UserFromContext(r.Context()); ok {
			response.Subscribed = h.Store.IsSubscribed(actor.ID, channel.ID)
		}
		writeJSON(w, http.StatusOK, response)
		return
	}

	switch rest[0] {
	case "videos":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, "GET")
			return
		}
		params := storage.ListVideosParams{OwnerID: channel.ID}
		if actor, ok := UserFromContext(r.Context()); ok && actor.ID == channel.ID {
			params.IncludeHidden = true
		}
		videos := h.Store.ListVideos(params)
		writeJSON(w, http.StatusOK, map[string]interface{}{"videos": h.newVideoListResponse(videos)})
	case "subscribe":
		h.toggleSubscription(w, r, channel)
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown channel path"))
	}
}
