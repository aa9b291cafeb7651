package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamnest/internal/auth"
	"streamnest/internal/models"
)

// Playlist operations

func (s *Storage) CreatePlaylist(ownerID, name, description string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[ownerID]; !ok {
		return models.Playlist{}, fmt.Errorf("%w: owner %s", auth.ErrNotFound, ownerID)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Playlist{}, fmt.Errorf("%w: playlist name is required", auth.ErrValidation)
	}

	now := time.Now().UTC()
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(description),
		VideoIDs:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.data.Playlists[playlist.ID] = playlist
	if err := s.persist(); err != nil {
		delete(s.data.Playlists, playlist.ID)
		return models.Playlist{}, err
	}

	return playlist, nil
}

func (s *Storage) GetPlaylist(id string) (models.Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playlist, ok := s.data.Playlists[id]
	if ok && playlist.VideoIDs == nil {
		playlist.VideoIDs = []string{}
	}
	return playlist, ok
}

func (s *Storage) ListPlaylists(ownerID string) []models.Playlist {
	s.mu.RLock()
	defer s.mu.RUnlock()

	playlists := make([]models.Playlist, 0)
	for _, playlist := range s.data.Playlists {
		if ownerID != "" && playlist.OwnerID != ownerID {
			continue
		}
		if playlist.VideoIDs == nil {
			playlist.VideoIDs = []string{}
		}
		playlists = append(playlists, playlist)
	}
	sort.Slice(playlists, func(i, j int) bool {
		return playlists[i].CreatedAt.Before(playlists[j].CreatedAt)
	})
	return playlists
}

func (s *Storage) UpdatePlaylist(id string, update PlaylistUpdate) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	playlist, ok := updatedData.Playlists[id]
	if !ok {
		return models.Playlist{}, fmt.Errorf("%w: playlist %s", auth.ErrNotFound, id)
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return models.Playlist{}, fmt.Errorf("%w: playlist name cannot be empty", auth.ErrValidation)
		}
		playlist.Name = name
	}
	if update.Description != nil {
		playlist.Description = strings.TrimSpace(*update.Description)
	}

	playlist.UpdatedAt = time.Now().UTC()
	updatedData.Playlists[id] = playlist
	if err := s.persistDataset(updatedData); err != nil {
		return models.Playlist{}, err
	}

	s.data = updatedData

	return playlist, nil
}

func (s *Storage) DeletePlaylist(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	if _, ok := updatedData.Playlists[id]; !ok {
		return fmt.Errorf("%w: playlist %s", auth.ErrNotFound, id)
	}

	delete(updatedData.Playlists, id)

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}

	s.data = updatedData

	return nil
}

// AddVideoToPlaylist appends the video when not already present. The
// operation is idempotent.
func (s *Storage) AddVideoToPlaylist(playlistID, videoID string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	playlist, ok := updatedData.Playlists[playlistID]
	if !ok {
		return models.Playlist{}, fmt.Errorf("%w: playlist %s", auth.ErrNotFound, playlistID)
	}
	if _, ok := updatedData.Videos[videoID]; !ok {
		return models.Playlist{}, fmt.Errorf("%w: video %s", auth.ErrNotFound, videoID)
	}

	for _, existing := range playlist.VideoIDs {
		if existing == videoID {
			return playlist, nil
		}
	}

	playlist.VideoIDs = append(playlist.VideoIDs, videoID)
	playlist.UpdatedAt = time.Now().UTC()
	updatedData.Playlists[playlistID] = playlist
	if err := s.persistDataset(updatedData); err != nil {
		return models.Playlist{}, err
	}

	s.data = updatedData

	return playlist, nil
}

// RemoveVideoFromPlaylist drops the video if present. The operation is
// idempotent.
func (s *Storage) RemoveVideoFromPlaylist(playlistID, videoID string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	playlist, ok := updatedData.Playlists[playlistID]
	if !ok {
		return models.Playlist{}, fmt.Errorf("%w: playlist %s", auth.ErrNotFound, playlistID)
	}

	filtered := make([]string, 0, len(playlist.VideoIDs))
	for _, existing := range playlist.VideoIDs {
		if existing == videoID {
			continue
		}
		filtered = append(filtered, existing)
	}
	if len(filtered) == len(playlist.VideoIDs) {
		return playlist, nil
	}

	playlist.VideoIDs = filtered
	playlist.UpdatedAt = time.Now().UTC()
	updatedData.Playlists[playlistID] = playlist
	if err := s.persistDataset(updatedData); err != nil {
		return models.Playlist{}, err
	}

	s.data = updatedData

	return playlist, nil
}
