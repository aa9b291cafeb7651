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

// Video operations

func (s *Storage) CreateVideo(params CreateVideoParams) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[params.OwnerID]; !ok {
		return models.Video{}, fmt.Errorf("%w: owner %s", auth.ErrNotFound, params.OwnerID)
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Video{}, fmt.Errorf("%w: title is required", auth.ErrValidation)
	}
	if len([]rune(title)) > MaxVideoTitleLength {
		return models.Video{}, fmt.Errorf("%w: title exceeds %d characters", auth.ErrValidation, MaxVideoTitleLength)
	}
	if strings.TrimSpace(params.VideoURL) == "" {
		return models.Video{}, fmt.Errorf("%w: video url is required", auth.ErrValidation)
	}

	now := time.Now().UTC()
	video := models.Video{
		ID:              uuid.NewString(),
		OwnerID:         params.OwnerID,
		Title:           title,
		Description:     strings.TrimSpace(params.Description),
		VideoURL:        strings.TrimSpace(params.VideoURL),
		ThumbnailURL:    strings.TrimSpace(params.ThumbnailURL),
		DurationSeconds: params.DurationSeconds,
		Published:       true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	s.data.Videos[video.ID] = video
	if err := s.persist(); err != nil {
		delete(s.data.Videos, video.ID)
		return models.Video{}, err
	}

	return video, nil
}

func (s *Storage) GetVideo(id string) (models.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.data.Videos[id]
	return video, ok
}

// ListVideos returns videos newest first. Unpublished videos are omitted
// unless IncludeHidden is set, which callers restrict to the owner's view.
func (s *Storage) ListVideos(params ListVideosParams) []models.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := foldKey(strings.TrimSpace(params.Query))
	videos := make([]models.Video, 0, len(s.data.Videos))
	for _, video := range s.data.Videos {
		if params.OwnerID != "" && video.OwnerID != params.OwnerID {
			continue
		}
		if !params.IncludeHidden && !video.Published {
			continue
		}
		if query != "" {
			haystack := foldKey(video.Title + " " + video.Description)
			if !strings.Contains(haystack, query) {
				continue
			}
		}
		videos = append(videos, video)
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
	if params.Limit > 0 && len(videos) > params.Limit {
		videos = videos[:params.Limit]
	}
	return videos
}

func (s *Storage) UpdateVideo(id string, update VideoUpdate) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	video, ok := updatedData.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("%w: video %s", auth.ErrNotFound, id)
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return models.Video{}, fmt.Errorf("%w: title cannot be empty", auth.ErrValidation)
		}
		if len([]rune(title)) > MaxVideoTitleLength {
			return models.Video{}, fmt.Errorf("%w: title exceeds %d characters", auth.ErrValidation, MaxVideoTitleLength)
		}
		video.Title = title
	}
	if update.Description != nil {
		video.Description = strings.TrimSpace(*update.Description)
	}
	if update.ThumbnailURL != nil {
		video.ThumbnailURL = strings.TrimSpace(*update.ThumbnailURL)
	}

	video.UpdatedAt = time.Now().UTC()
	updatedData.Videos[id] = video
	if err := s.persistDataset(updatedData); err != nil {
		return models.Video{}, err
	}

	s.data = updatedData

	return video, nil
}

// DeleteVideo removes a video along with its comments, likes, playlist
// references, and watch-history entries.
func (s *Storage) DeleteVideo(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	if _, ok := updatedData.Videos[id]; !ok {
		return fmt.Errorf("%w: video %s", auth.ErrNotFound, id)
	}

	delete(updatedData.Videos, id)
	delete(updatedData.VideoLikes, id)

	for commentID, comment := range updatedData.Comments {
		if comment.VideoID == id {
			delete(updatedData.Comments, commentID)
			delete(updatedData.CommentLikes, commentID)
		}
	}

	for playlistID, playlist := range updatedData.Playlists {
		filtered := make([]string, 0, len(playlist.VideoIDs))
		for _, videoID := range playlist.VideoIDs {
			if videoID == id {
				continue
			}
			filtered = append(filtered, videoID)
		}
		if len(filtered) != len(playlist.VideoIDs) {
			playlist.VideoIDs = filtered
			playlist.UpdatedAt = time.Now().UTC()
			updatedData.Playlists[playlistID] = playlist
		}
	}

	for userID, user := range updatedData.Users {
		filtered := make([]string, 0, len(user.WatchHistory))
		for _, videoID := range user.WatchHistory {
			if videoID == id {
				continue
			}
			filtered = append(filtered, videoID)
		}
		if len(filtered) != len(user.WatchHistory) {
			user.WatchHistory = filtered
			updatedData.Users[userID] = user
		}
	}

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}

	s.data = updatedData

	return nil
}

// TogglePublish flips the video between listed and hidden.
func (s *Storage) TogglePublish(id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	video, ok := updatedData.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("%w: video %s", auth.ErrNotFound, id)
	}

	video.Published = !video.Published
	video.UpdatedAt = time.Now().UTC()
	updatedData.Videos[id] = video
	if err := s.persistDataset(updatedData); err != nil {
		return models.Video{}, err
	}

	s.data = updatedData

	return video, nil
}

// IncrementViews bumps the view counter for a playback.
func (s *Storage) IncrementViews(id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	video, ok := updatedData.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("%w: video %s", auth.ErrNotFound, id)
	}

	video.Views++
	updatedData.Videos[id] = video
	if err := s.persistDataset(updatedData); err != nil {
		return models.Video{}, err
	}

	s.data = updatedData

	return video, nil
}
