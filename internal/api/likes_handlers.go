package api

import (
	"fmt"
	"net/http"
)

type likeStateResponse struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

func (h *Handler) toggleVideoLike(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	actor, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	liked, err := h.Store.ToggleVideoLike(videoID, actor.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likeStateResponse{
		Liked: liked,
		Likes: h.Store.CountVideoLikes(videoID),
	})
}

func (h *Handler) toggleCommentLike(w http.ResponseWriter, r *http.Request, commentID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	actor, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	if _, exists := h.Store.GetComment(commentID); !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("comment %s not found", commentID))
		return
	}
	liked, err := h.Store.ToggleCommentLike(commentID, actor.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likeStateResponse{
		Liked: liked,
		Likes: h.Store.CountCommentLikes(commentID),
	})
}
