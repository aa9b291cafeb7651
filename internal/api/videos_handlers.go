package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"streamnest/internal/models"
	"streamnest/internal/storage"
)

const maxUploadedVideoBytes = 512 << 20

type createVideoRequest struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	VideoURL        string  `json:"videoUrl"`
	ThumbnailURL    string  `json:"thumbnailUrl"`
	DurationSeconds float64 `json:"durationSeconds"`
}

type updateVideoRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	ThumbnailURL *string `json:"thumbnailUrl"`
}

// Videos routes /api/videos requests: listing and publishing on the
// collection, playback and management on /api/videos/{id}.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/videos")
	path = strings.Trim(path, "/")
	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.listVideos(w, r)
		case http.MethodPost:
			h.createVideo(w, r)
		default:
			methodNotAllowed(w, r, "GET, POST")
		}
		return
	}

	parts := strings.Split(path, "/")
	if parts[0] == "liked" {
		h.listLikedVideos(w, r)
		return
	}
	videoID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.getVideo(w, r, videoID)
		case http.MethodPatch:
			h.updateVideo(w, r, videoID)
		case http.MethodDelete:
			h.deleteVideo(w, r, videoID)
		default:
			methodNotAllowed(w, r, "GET, PATCH, DELETE")
		}
		return
	}

	switch parts[1] {
	case "publish":
		h.togglePublish(w, r, videoID)
	case "like":
		h.toggleVideoLike(w, r, videoID)
	case "comments":
		h.videoComments(w, r, videoID)
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown video path"))
	}
}

func (h *Handler) listVideos(w http.ResponseWriter, r *http.Request) {
	params := storage.ListVideosParams{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		params.Limit = limit
	}
	if owner := strings.TrimSpace(r.URL.Query().Get("owner")); owner != "" {
		channel, ok := h.Store.GetUserByUsername(owner)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("channel %s not found", owner))
			return
		}
		params.OwnerID = channel.ID
		if actor, ok := UserFromContext(r.Context()); ok && actor.ID == channel.ID {
			params.IncludeHidden = true
		}
	}
	videos := h.Store.ListVideos(params)
	writeJSON(w, http.StatusOK, map[string]interface{}{"videos": h.newVideoListResponse(videos)})
}

func (h *Handler) createVideo(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	params, err := h.createVideoParams(r, actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	video, err := h.Store.CreateVideo(params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger().Info("video published", "video_id", video.ID, "owner_id", actor.ID)
	writeJSON(w, http.StatusCreated, h.newVideoResponse(video))
}

func (h *Handler) createVideoParams(r *http.Request, actor models.User) (storage.CreateVideoParams, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType != "multipart/form-data" {
		var req createVideoRequest
		if err := decodeJSON(r, &req); err != nil {
			return storage.CreateVideoParams{}, err
		}
		return storage.CreateVideoParams{
			OwnerID:         actor.ID,
			Title:           req.Title,
			Description:     req.Description,
			VideoURL:        req.VideoURL,
			ThumbnailURL:    req.ThumbnailURL,
			DurationSeconds: req.DurationSeconds,
		}, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return storage.CreateVideoParams{}, fmt.Errorf("parse form: %w", err)
	}
	params := storage.CreateVideoParams{
		OwnerID:      actor.ID,
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		VideoURL:     r.FormValue("videoUrl"),
		ThumbnailURL: r.FormValue("thumbnailUrl"),
	}
	if raw := strings.TrimSpace(r.FormValue("durationSeconds")); raw != "" {
		duration, err := strconv.ParseFloat(raw, 64)
		if err != nil || duration < 0 {
			return storage.CreateVideoParams{}, fmt.Errorf("invalid durationSeconds %q", raw)
		}
		params.DurationSeconds = duration
	}

	videoURL, err := h.storeFormVideo(r, "video")
	if err != nil {
		return storage.CreateVideoParams{}, err
	}
	if videoURL != "" {
		params.VideoURL = videoURL
	}
	thumbnailURL, err := h.storeFormImage(r, "thumbnail", "thumbnails")
	if err != nil {
		return storage.CreateVideoParams{}, err
	}
	if thumbnailURL != "" {
		params.ThumbnailURL = thumbnailURL
	}
	return params, nil
}

// storeFormVideo streams the uploaded media file into object storage. Unlike
// images the payload is not buffered through a size check first because video
// uploads dominate request volume by size; the limit reader caps it.
func (h *Handler) storeFormVideo(r *http.Request, field string) (string, error) {
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
	if header.Size > maxUploadedVideoBytes {
		return "", fmt.Errorf("%s exceeds %d bytes", field, maxUploadedVideoBytes)
	}
	body, err := io.ReadAll(io.LimitReader(file, maxUploadedVideoBytes+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", field, err)
	}
	if len(body) > maxUploadedVideoBytes {
		return "", fmt.Errorf("%s exceeds %d bytes", field, maxUploadedVideoBytes)
	}

	key := fmt.Sprintf("videos/%s%s", uuid.NewString(), strings.ToLower(path.Ext(header.Filename)))
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	url, err := h.Store.UploadAsset(r.Context(), key, contentType, body)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", field, err)
	}
	return url, nil
}

func (h *Handler) getVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	video, ok := h.Store.GetVideo(videoID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return
	}
	actor, authed := UserFromContext(r.Context())
	if !video.Published && (!authed || actor.ID != video.OwnerID) {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return
	}

	if updated, err := h.Store.IncrementViews(videoID); err == nil {
		video = updated
	}
	if authed {
		if err := h.Store.AddWatchHistory(actor.ID, videoID); err != nil {
			h.logger().Warn("watch history update failed", "video_id", videoID, "error", err)
		}
	}

	response := map[string]interface{}{"video": h.newVideoResponse(video)}
	if owner, err := h.Store.GetUser(r.Context(), video.OwnerID); err == nil {
		response["owner"] = newUserResponse(owner.Sanitized())
	}
	if authed {
		response["liked"] = h.Store.HasLikedVideo(videoID, actor.ID)
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) requireVideoOwner(w http.ResponseWriter, r *http.Request, videoID string) (models.Video, bool) {
	actor, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return models.Video{}, false
	}
	video, exists := h.Store.GetVideo(videoID)
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return models.Video{}, false
	}
	if video.OwnerID != actor.ID {
		writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
		return models.Video{}, false
	}
	return video, true
}

func (h *Handler) updateVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	if _, ok := h.requireVideoOwner(w, r, videoID); !ok {
		return
	}
	var req updateVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	video, err := h.Store.UpdateVideo(videoID, storage.VideoUpdate{
		Title:        req.Title,
		Description:  req.Description,
		ThumbnailURL: req.ThumbnailURL,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newVideoResponse(video))
}

func (h *Handler) deleteVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	if _, ok := h.requireVideoOwner(w, r, videoID); !ok {
		return
	}
	if err := h.Store.DeleteVideo(videoID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) togglePublish(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	if _, ok := h.requireVideoOwner(w, r, videoID); !ok {
		return
	}
	video, err := h.Store.TogglePublish(videoID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newVideoResponse(video))
}

func (h *Handler) listLikedVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	actor, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	videos := h.Store.ListLikedVideos(actor.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"videos": h.newVideoListResponse(videos)})
}
