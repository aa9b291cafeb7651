package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/cases"

	"streamnest/internal/models"
)

// Option mutates storage configuration.
type Option func(*Storage)

// WithObjectStorage configures the bucket used for uploaded assets. Without
// it the store runs with uploads disabled.
func WithObjectStorage(cfg ObjectStorageConfig) Option {
	return func(s *Storage) {
		s.objectStorage = cfg
	}
}

func NewStorage(path string, opts ...Option) (*Storage, error) {
	store := &Storage{filePath: path}
	for _, opt := range opts {
		opt(store)
	}
	store.objectClient = newObjectStorageClient(store.objectStorage)
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func newDataset() dataset {
	return dataset{
		Users:         make(map[string]models.User),
		Videos:        make(map[string]models.Video),
		Comments:      make(map[string]models.Comment),
		VideoLikes:    make(map[string]map[string]time.Time),
		CommentLikes:  make(map[string]map[string]time.Time),
		Playlists:     make(map[string]models.Playlist),
		Subscriptions: make(map[string]map[string]time.Time),
	}
}

func (s *Storage) ensureDatasetInitializedLocked() {
	if s.data.Users == nil {
		s.data.Users = make(map[string]models.User)
	}
	if s.data.Videos == nil {
		s.data.Videos = make(map[string]models.Video)
	}
	if s.data.Comments == nil {
		s.data.Comments = make(map[string]models.Comment)
	}
	if s.data.VideoLikes == nil {
		s.data.VideoLikes = make(map[string]map[string]time.Time)
	}
	if s.data.CommentLikes == nil {
		s.data.CommentLikes = make(map[string]map[string]time.Time)
	}
	if s.data.Playlists == nil {
		s.data.Playlists = make(map[string]models.Playlist)
	}
	if s.data.Subscriptions == nil {
		s.data.Subscriptions = make(map[string]map[string]time.Time)
	}
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	file, err := os.Open(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = newDataset()
		return nil
	} else if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("decode store file: %w", err)
	}

	s.ensureDatasetInitializedLocked()

	return nil
}

func (s *Storage) persist() error {
	return s.persistDataset(s.data)
}

func (s *Storage) persistDataset(data dataset) error {
	if s.persistOverride != nil {
		if err := s.persistOverride(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	success = true
	return nil
}

func cloneDataset(src dataset) dataset {
	clone := dataset{}

	if src.Users != nil {
		clone.Users = make(map[string]models.User, len(src.Users))
		for id, user := range src.Users {
			cloned := user
			if user.WatchHistory != nil {
				cloned.WatchHistory = append([]string(nil), user.WatchHistory...)
			}
			clone.Users[id] = cloned
		}
	}

	if src.Videos != nil {
		clone.Videos = make(map[string]models.Video, len(src.Videos))
		for id, video := range src.Videos {
			clone.Videos[id] = video
		}
	}

	if src.Comments != nil {
		clone.Comments = make(map[string]models.Comment, len(src.Comments))
		for id, comment := range src.Comments {
			clone.Comments[id] = comment
		}
	}

	if src.VideoLikes != nil {
		clone.VideoLikes = cloneLikeMap(src.VideoLikes)
	}
	if src.CommentLikes != nil {
		clone.CommentLikes = cloneLikeMap(src.CommentLikes)
	}

	if src.Playlists != nil {
		clone.Playlists = make(map[string]models.Playlist, len(src.Playlists))
		for id, playlist := range src.Playlists {
			cloned := playlist
			if playlist.VideoIDs != nil {
				cloned.VideoIDs = append([]string(nil), playlist.VideoIDs...)
			}
			clone.Playlists[id] = cloned
		}
	}

	if src.Subscriptions != nil {
		clone.Subscriptions = cloneLikeMap(src.Subscriptions)
	}

	return clone
}

func cloneLikeMap(src map[string]map[string]time.Time) map[string]map[string]time.Time {
	clone := make(map[string]map[string]time.Time, len(src))
	for outer, inner := range src {
		if inner == nil {
			clone[outer] = nil
			continue
		}
		cloned := make(map[string]time.Time, len(inner))
		for key, when := range inner {
			cloned[key] = when
		}
		clone[outer] = cloned
	}
	return clone
}

// foldKey normalizes usernames and emails for case-insensitive matching,
// including non-ASCII identifiers. A Caser is stateful, so each call builds
// its own.
func foldKey(value string) string {
	return cases.Fold().String(value)
}

// Ping reports whether the backing file is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	dir := filepath.Dir(s.filePath)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("storage ping: %w", err)
	}
	return nil
}
