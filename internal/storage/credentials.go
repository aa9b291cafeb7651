package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamnest/internal/auth"
	"streamnest/internal/models"
)

// User operations. These implement auth.CredentialStore so the session
// manager can run against the JSON dataset.

var _ auth.CredentialStore = (*Storage)(nil)

// CreateUser persists a new account. Usernames and emails are unique after
// case folding.
func (s *Storage) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usernameKey := foldKey(strings.TrimSpace(user.Username))
	emailKey := foldKey(strings.TrimSpace(user.Email))
	if usernameKey == "" || emailKey == "" {
		return models.User{}, fmt.Errorf("%w: username and email are required", auth.ErrValidation)
	}
	for _, existing := range s.data.Users {
		if foldKey(existing.Username) == usernameKey || foldKey(existing.Email) == emailKey {
			return models.User{}, fmt.Errorf("%w: username or email already registered", auth.ErrConflict)
		}
	}

	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	s.data.Users[user.ID] = user
	if err := s.persist(); err != nil {
		delete(s.data.Users, user.ID)
		return models.User{}, err
	}

	return user, nil
}

// FindUserByIdentifier looks an account up by username or email.
func (s *Storage) FindUserByIdentifier(_ context.Context, identifier string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := foldKey(strings.TrimSpace(identifier))
	for _, user := range s.data.Users {
		if foldKey(user.Username) == key || foldKey(user.Email) == key {
			return user, nil
		}
	}
	return models.User{}, fmt.Errorf("%w: user %s", auth.ErrNotFound, identifier)
}

// GetUser fetches an account by ID.
func (s *Storage) GetUser(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%w: user %s", auth.ErrNotFound, id)
	}
	return user, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Storage) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)
	user, ok := updatedData.Users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", auth.ErrNotFound, id)
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	updatedData.Users[id] = user

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}
	s.data = updatedData
	return nil
}

// SetRefreshToken overwrites the refresh-token slot unconditionally. An
// empty token clears the slot.
func (s *Storage) SetRefreshToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)
	user, ok := updatedData.Users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", auth.ErrNotFound, id)
	}
	user.RefreshToken = token
	user.UpdatedAt = time.Now().UTC()
	updatedData.Users[id] = user

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}
	s.data = updatedData
	return nil
}

// RotateRefreshToken swaps the slot to next only while it still holds
// presented. The check and the swap happen under one lock so concurrent
// refreshes against the same token produce a single winner.
func (s *Storage) RotateRefreshToken(_ context.Context, id, presented, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)
	user, ok := updatedData.Users[id]
	if !ok {
		return false, fmt.Errorf("%w: user %s", auth.ErrNotFound, id)
	}
	if user.RefreshToken == "" || user.RefreshToken != presented {
		return false, nil
	}
	user.RefreshToken = next
	user.UpdatedAt = time.Now().UTC()
	updatedData.Users[id] = user

	if err := s.persistDataset(updatedData); err != nil {
		return false, err
	}
	s.data = updatedData
	return true, nil
}

// GetUserByUsername resolves the public channel page for a username.
func (s *Storage) GetUserByUsername(username string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := foldKey(strings.TrimSpace(username))
	for _, user := range s.data.Users {
		if foldKey(user.Username) == key {
			return user, true
		}
	}
	return models.User{}, false
}

// UpdateUserProfile mutates account metadata while enforcing email
// uniqueness.
func (s *Storage) UpdateUserProfile(id string, update ProfileUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	user, ok := updatedData.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%w: user %s", auth.ErrNotFound, id)
	}

	if update.FullName != nil {
		name := strings.TrimSpace(*update.FullName)
		if name == "" {
			return models.User{}, fmt.Errorf("%w: full name cannot be empty", auth.ErrValidation)
		}
		user.FullName = name
	}
	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		if email == "" {
			return models.User{}, fmt.Errorf("%w: email cannot be empty", auth.ErrValidation)
		}
		emailKey := foldKey(email)
		for existingID, existing := range updatedData.Users {
			if existingID == user.ID {
				continue
			}
			if foldKey(existing.Email) == emailKey {
				return models.User{}, fmt.Errorf("%w: email %s already in use", auth.ErrConflict, email)
			}
		}
		user.Email = email
	}
	if update.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*update.AvatarURL)
	}
	if update.CoverImageURL != nil {
		user.CoverImageURL = strings.TrimSpace(*update.CoverImageURL)
	}

	user.UpdatedAt = time.Now().UTC()
	updatedData.Users[id] = user
	if err := s.persistDataset(updatedData); err != nil {
		return models.User{}, err
	}

	s.data = updatedData

	return user, nil
}

// AddWatchHistory appends a video to the user's history, moving it to the
// front when already present.
func (s *Storage) AddWatchHistory(userID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	user, ok := updatedData.Users[userID]
	if !ok {
		return fmt.Errorf("%w: user %s", auth.ErrNotFound, userID)
	}
	if _, ok := updatedData.Videos[videoID]; !ok {
		return fmt.Errorf("%w: video %s", auth.ErrNotFound, videoID)
	}

	history := make([]string, 0, len(user.WatchHistory)+1)
	history = append(history, videoID)
	for _, entry := range user.WatchHistory {
		if entry == videoID {
			continue
		}
		history = append(history, entry)
	}
	user.WatchHistory = history
	user.UpdatedAt = time.Now().UTC()
	updatedData.Users[userID] = user

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}
	s.data = updatedData
	return nil
}

// ListWatchHistory returns the videos in the user's history, most recent
// first. Videos deleted since they were watched are skipped.
func (s *Storage) ListWatchHistory(userID string) ([]models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.data.Users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", auth.ErrNotFound, userID)
	}

	videos := make([]models.Video, 0, len(user.WatchHistory))
	for _, videoID := range user.WatchHistory {
		if video, exists := s.data.Videos[videoID]; exists {
			videos = append(videos, video)
		}
	}
	return videos, nil
}
