package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"streamnest/internal/models"
)

type commentRequest struct {
	Content string `json:"content"`
}

type commentResponse struct {
	ID        string `json:"id"`
	VideoID   string `json:"videoId"`
	OwnerID   string `json:"ownerId"`
	Content   string `json:"content"`
	Likes     int    `json:"likes"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (h *Handler) newCommentResponse(comment models.Comment) commentResponse {
	return commentResponse{
		ID:        comment.ID,
		VideoID:   comment.VideoID,
		OwnerID:   comment.OwnerID,
		Content:   comment.Content,
		Likes:     h.Store.CountCommentLikes(comment.ID),
		CreatedAt: comment.CreatedAt.Format(timeFormat),
		UpdatedAt: comment.UpdatedAt.Format(timeFormat),
	}
}

func (h *Handler) videoComments(w http.ResponseWriter, r *http.Request, videoID string) {
	switch r.Method {
	case http.MethodGet:
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
				return
			}
			limit = parsed
		}
		comments, err := h.Store.ListComments(videoID, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		response := make([]commentResponse, 0, len(comments))
		for _, comment := range comments {
			response = append(response, h.newCommentResponse(comment))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"comments": response})
	case http.MethodPost:
		actor, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		var req commentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		comment, err := h.Store.CreateComment(videoID, actor.ID, req.Content)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, h.newCommentResponse(comment))
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

// Comments routes /api/comments/{id} requests for editing, deleting, and
// liking an existing comment.
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/comments/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("comment id missing"))
		return
	}
	commentID := parts[0]

	if len(parts) > 1 {
		if parts[1] == "like" {
			h.toggleCommentLike(w, r, commentID)
			return
		}
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown comment path"))
		return
	}

	actor, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	comment, exists := h.Store.GetComment(commentID)
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("comment %s not found", commentID))
		return
	}
	if comment.OwnerID != actor.ID {
		writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req commentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := h.Store.UpdateComment(commentID, req.Content)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.newCommentResponse(updated))
	case http.MethodDelete:
		if err := h.Store.DeleteComment(commentID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, "PATCH, DELETE")
	}
}
