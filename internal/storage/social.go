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

// Comment operations

func (s *Storage) CreateComment(videoID, ownerID, content string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return models.Comment{}, fmt.Errorf("%w: video %s", auth.ErrNotFound, videoID)
	}
	if _, ok := s.data.Users[ownerID]; !ok {
		return models.Comment{}, fmt.Errorf("%w: user %s", auth.ErrNotFound, ownerID)
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return models.Comment{}, fmt.Errorf("%w: comment content cannot be empty", auth.ErrValidation)
	}
	if len([]rune(trimmed)) > MaxCommentLength {
		return models.Comment{}, fmt.Errorf("%w: comment exceeds %d characters", auth.ErrValidation, MaxCommentLength)
	}

	now := time.Now().UTC()
	comment := models.Comment{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		OwnerID:   ownerID,
		Content:   trimmed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.data.Comments[comment.ID] = comment
	if err := s.persist(); err != nil {
		delete(s.data.Comments, comment.ID)
		return models.Comment{}, err
	}

	return comment, nil
}

func (s *Storage) GetComment(id string) (models.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comment, ok := s.data.Comments[id]
	return comment, ok
}

func (s *Storage) ListComments(videoID string, limit int) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return nil, fmt.Errorf("%w: video %s", auth.ErrNotFound, videoID)
	}

	comments := make([]models.Comment, 0)
	for _, comment := range s.data.Comments {
		if comment.VideoID == videoID {
			comments = append(comments, comment)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	if limit > 0 && len(comments) > limit {
		comments = comments[:limit]
	}
	return comments, nil
}

func (s *Storage) UpdateComment(id, content string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	comment, ok := updatedData.Comments[id]
	if !ok {
		return models.Comment{}, fmt.Errorf("%w: comment %s", auth.ErrNotFound, id)
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return models.Comment{}, fmt.Errorf("%w: comment content cannot be empty", auth.ErrValidation)
	}
	if len([]rune(trimmed)) > MaxCommentLength {
		return models.Comment{}, fmt.Errorf("%w: comment exceeds %d characters", auth.ErrValidation, MaxCommentLength)
	}

	comment.Content = trimmed
	comment.UpdatedAt = time.Now().UTC()
	updatedData.Comments[id] = comment
	if err := s.persistDataset(updatedData); err != nil {
		return models.Comment{}, err
	}

	s.data = updatedData

	return comment, nil
}

func (s *Storage) DeleteComment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	if _, ok := updatedData.Comments[id]; !ok {
		return fmt.Errorf("%w: comment %s", auth.ErrNotFound, id)
	}

	delete(updatedData.Comments, id)
	delete(updatedData.CommentLikes, id)

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}

	s.data = updatedData

	return nil
}

// Like operations

// ToggleVideoLike flips the user's like on a video and reports the new
// state.
func (s *Storage) ToggleVideoLike(videoID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return false, fmt.Errorf("%w: video %s", auth.ErrNotFound, videoID)
	}
	return s.toggleLikeLocked(s.data.VideoLikes, videoID, userID)
}

// ToggleCommentLike flips the user's like on a comment and reports the new
// state.
func (s *Storage) ToggleCommentLike(commentID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Comments[commentID]; !ok {
		return false, fmt.Errorf("%w: comment %s", auth.ErrNotFound, commentID)
	}
	return s.toggleLikeLocked(s.data.CommentLikes, commentID, userID)
}

func (s *Storage) toggleLikeLocked(likes map[string]map[string]time.Time, targetID, userID string) (bool, error) {
	if _, ok := s.data.Users[userID]; !ok {
		return false, fmt.Errorf("%w: user %s", auth.ErrNotFound, userID)
	}

	entry := likes[targetID]
	likedAt, liked := entry[userID]
	if liked {
		delete(entry, userID)
		if len(entry) == 0 {
			delete(likes, targetID)
		}
	} else {
		if entry == nil {
			entry = make(map[string]time.Time)
			likes[targetID] = entry
		}
		entry[userID] = time.Now().UTC()
	}

	if err := s.persist(); err != nil {
		// Undo the in-memory flip so memory and disk stay in agreement.
		if liked {
			if likes[targetID] == nil {
				likes[targetID] = make(map[string]time.Time)
			}
			likes[targetID][userID] = likedAt
		} else {
			delete(likes[targetID], userID)
			if len(likes[targetID]) == 0 {
				delete(likes, targetID)
			}
		}
		return false, err
	}

	return !liked, nil
}

func (s *Storage) CountVideoLikes(videoID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.VideoLikes[videoID])
}

func (s *Storage) CountCommentLikes(commentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.CommentLikes[commentID])
}

func (s *Storage) HasLikedVideo(videoID, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data.VideoLikes[videoID][userID]
	return ok
}

// ListLikedVideos returns the videos the user has liked, most recent like
// first.
func (s *Storage) ListLikedVideos(userID string) []models.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type pair struct {
		video models.Video
		when  time.Time
	}
	pairs := make([]pair, 0)
	for videoID, likes := range s.data.VideoLikes {
		likedAt, ok := likes[userID]
		if !ok {
			continue
		}
		video, exists := s.data.Videos[videoID]
		if !exists {
			continue
		}
		pairs = append(pairs, pair{video: video, when: likedAt})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].when.After(pairs[j].when)
	})
	videos := make([]models.Video, 0, len(pairs))
	for _, p := range pairs {
		videos = append(videos, p.video)
	}
	return videos
}

// Subscription operations

// ToggleSubscription flips the subscriber's relationship to the channel and
// reports the new state. Self-subscription is rejected.
func (s *Storage) ToggleSubscription(subscriberID, channelID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if subscriberID == channelID {
		return false, fmt.Errorf("%w: cannot subscribe to your own channel", auth.ErrValidation)
	}
	if _, ok := s.data.Users[subscriberID]; !ok {
		return false, fmt.Errorf("%w: user %s", auth.ErrNotFound, subscriberID)
	}
	if _, ok := s.data.Users[channelID]; !ok {
		return false, fmt.Errorf("%w: channel %s", auth.ErrNotFound, channelID)
	}

	updatedData := cloneDataset(s.data)
	channels := updatedData.Subscriptions[subscriberID]
	_, subscribed := channels[channelID]
	if subscribed {
		delete(channels, channelID)
		if len(channels) == 0 {
			delete(updatedData.Subscriptions, subscriberID)
		} else {
			updatedData.Subscriptions[subscriberID] = channels
		}
	} else {
		if channels == nil {
			channels = make(map[string]time.Time)
		}
		channels[channelID] = time.Now().UTC()
		updatedData.Subscriptions[subscriberID] = channels
	}

	if err := s.persistDataset(updatedData); err != nil {
		return false, err
	}

	s.data = updatedData

	return !subscribed, nil
}

// IsSubscribed reports whether the subscriber follows the channel.
func (s *Storage) IsSubscribed(subscriberID, channelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data.Subscriptions[subscriberID][channelID]
	return ok
}

// CountSubscribers returns the number of accounts subscribed to the channel.
func (s *Storage) CountSubscribers(channelID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, channels := range s.data.Subscriptions {
		if _, ok := channels[channelID]; ok {
			count++
		}
	}
	return count
}

// ListSubscribedChannels returns the channels the user subscribes to, most
// recent first. Results are sanitized.
func (s *Storage) ListSubscribedChannels(subscriberID string) []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectSubscriptionUsersLocked(s.data.Subscriptions[subscriberID])
}

// ListSubscribers returns the accounts subscribed to the channel, most
// recent first. Results are sanitized.
func (s *Storage) ListSubscribers(channelID string) []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make(map[string]time.Time)
	for subscriberID, channels := range s.data.Subscriptions {
		if when, ok := channels[channelID]; ok {
			members[subscriberID] = when
		}
	}
	return s.collectSubscriptionUsersLocked(members)
}

func (s *Storage) collectSubscriptionUsersLocked(members map[string]time.Time) []models.User {
	type pair struct {
		user models.User
		when time.Time
	}
	pairs := make([]pair, 0, len(members))
	for userID, when := range members {
		user, ok := s.data.Users[userID]
		if !ok {
			continue
		}
		pairs = append(pairs, pair{user: user.Sanitized(), when: when})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].when.After(pairs[j].when)
	})
	users := make([]models.User, 0, len(pairs))
	for _, p := range pairs {
		users = append(users, p.user)
	}
	return users
}
