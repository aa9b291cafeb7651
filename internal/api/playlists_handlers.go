package api

import (
	"fmt"
	"net/http"
	"strings"

	"streamnest/internal/models"
	"streamnest/internal/storage"
)

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updatePlaylistRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type playlistResponse struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"ownerId"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	VideoIDs    []string `json:"videoIds"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

func newPlaylistResponse(playlist models.Playlist) playlistResponse {
	return playlistResponse{
		ID:          playlist.ID,
		OwnerID:     playlist.OwnerID,
		Name:        playlist.Name,
		Description: playlist.Description,
		VideoIDs:    append([]string{}, playlist.VideoIDs...),
		CreatedAt:   playlist.CreatedAt.Format(timeFormat),
		UpdatedAt:   playlist.UpdatedAt.Format(timeFormat),
	}
}

// Playlists routes /api/playlists requests: the caller's collections, a
// single playlist by ID, and membership edits under /videos/{videoID}.
func (h *Handler) Playlists(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/playlists"), "/")
	if path == "" {
		switch r.Method {
		case http.MethodGet:
			playlists := h.Store.ListPlaylists(actor.ID)
			response := make([]playlistResponse, 0, len(playlists))
			for _, playlist := range playlists {
				response = append(response, newPlaylistResponse(playlist))
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"playlists": response})
		case http.MethodPost:
			var req createPlaylistRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			playlist, err := h.Store.CreatePlaylist(actor.ID, req.Name, req.Description)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, newPlaylistResponse(playlist))
		default:
			methodNotAllowed(w, r, "GET, POST")
		}
		return
	}

	parts := strings.Split(path, "/")
	playlist, exists := h.Store.GetPlaylist(parts[0])
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("playlist %s not found", parts[0]))
		return
	}
	if playlist.OwnerID != actor.ID {
		writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, newPlaylistResponse(playlist))
		case http.MethodPatch:
			var req updatePlaylistRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			updated, err := h.Store.UpdatePlaylist(playlist.ID, storage.PlaylistUpdate{
				Name:        req.Name,
				Description: req.Description,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, newPlaylistResponse(updated))
		case http.MethodDelete:
			if err := h.Store.DeletePlaylist(playlist.ID); err != nil {
				writeDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, r, "GET, PATCH, DELETE")
		}
		return
	}

	if len(parts) == 3 && parts[1] == "videos" {
		videoID := parts[2]
		switch r.Method {
		case http.MethodPost:
			updated, err := h.Store.AddVideoToPlaylist(playlist.ID, videoID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, newPlaylistResponse(updated))
		case http.MethodDelete:
			updated, err := h.Store.RemoveVideoFromPlaylist(playlist.ID, videoID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, newPlaylistResponse(updated))
		default:
			methodNotAllowed(w, r, "POST, DELETE")
		}
		return
	}

	writeError(w, http.StatusNotFound, fmt.Errorf("unknown playlist path"))
}
