package storage

import (
	"context"
	"sync"
	"time"

	"streamnest/internal/models"
)

const (
	// MaxCommentLength defines the maximum number of characters allowed for a
	// comment body.
	MaxCommentLength = 1000

	// MaxVideoTitleLength defines the maximum number of characters allowed
	// for a video title.
	MaxVideoTitleLength = 200
)

type dataset struct {
	Users         map[string]models.User          `json:"users"`
	Videos        map[string]models.Video         `json:"videos"`
	Comments      map[string]models.Comment       `json:"comments"`
	VideoLikes    map[string]map[string]time.Time `json:"videoLikes"`
	CommentLikes  map[string]map[string]time.Time `json:"commentLikes"`
	Playlists     map[string]models.Playlist      `json:"playlists"`
	Subscriptions map[string]map[string]time.Time `json:"subscriptions"`
}

type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
	objectStorage   ObjectStorageConfig
	objectClient    objectStorageClient
}

// ObjectStorageConfig describes the external bucket used for persisting
// uploaded video files, thumbnails, and profile images.
type ObjectStorageConfig struct {
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	Prefix         string
	PublicEndpoint string
	RequestTimeout time.Duration
}

type objectStorageClient interface {
	Enabled() bool
	Upload(ctx context.Context, key, contentType string, body []byte) (objectReference, error)
	Delete(ctx context.Context, key string) error
}

type objectReference struct {
	Key string
	URL string
}

const defaultObjectStorageRequestTimeout = 30 * time.Second

// ProfileUpdate describes the mutable account fields outside the credential
// lifecycle. Nil fields are left unchanged.
type ProfileUpdate struct {
	FullName      *string
	Email         *string
	AvatarURL     *string
	CoverImageURL *string
}

// CreateVideoParams captures the information required to publish a video.
type CreateVideoParams struct {
	OwnerID         string
	Title           string
	Description     string
	VideoURL        string
	ThumbnailURL    string
	DurationSeconds float64
}

// VideoUpdate describes the mutable fields of a video entry.
type VideoUpdate struct {
	Title        *string
	Description  *string
	ThumbnailURL *string
}

// ListVideosParams filters and bounds a video listing.
type ListVideosParams struct {
	OwnerID       string
	Query         string
	IncludeHidden bool
	Limit         int
}

// PlaylistUpdate describes the mutable fields of a playlist.
type PlaylistUpdate struct {
	Name        *string
	Description *string
}
