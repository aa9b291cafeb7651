package storage

import (
	"context"

	"streamnest/internal/auth"
	"streamnest/internal/models"
)

// Repository exposes the datastore operations required by API handlers. The
// credential lifecycle methods are inherited from auth.CredentialStore so a
// single backing store serves both the session manager and the content
// surface.
type Repository interface {
	auth.CredentialStore

	Ping(ctx context.Context) error

	GetUserByUsername(username string) (models.User, bool)
	UpdateUserProfile(id string, update ProfileUpdate) (models.User, error)
	AddWatchHistory(userID, videoID string) error
	ListWatchHistory(userID string) ([]models.Video, error)

	CreateVideo(params CreateVideoParams) (models.Video, error)
	GetVideo(id string) (models.Video, bool)
	ListVideos(params ListVideosParams) []models.Video
	UpdateVideo(id string, update VideoUpdate) (models.Video, error)
	DeleteVideo(id string) error
	TogglePublish(id string) (models.Video, error)
	IncrementViews(id string) (models.Video, error)

	CreateComment(videoID, ownerID, content string) (models.Comment, error)
	GetComment(id string) (models.Comment, bool)
	ListComments(videoID string, limit int) ([]models.Comment, error)
	UpdateComment(id, content string) (models.Comment, error)
	DeleteComment(id string) error

	ToggleVideoLike(videoID, userID string) (bool, error)
	ToggleCommentLike(commentID, userID string) (bool, error)
	CountVideoLikes(videoID string) int
	CountCommentLikes(commentID string) int
	HasLikedVideo(videoID, userID string) bool
	ListLikedVideos(userID string) []models.Video

	CreatePlaylist(ownerID, name, description string) (models.Playlist, error)
	GetPlaylist(id string) (models.Playlist, bool)
	ListPlaylists(ownerID string) []models.Playlist
	UpdatePlaylist(id string, update PlaylistUpdate) (models.Playlist, error)
	DeletePlaylist(id string) error
	AddVideoToPlaylist(playlistID, videoID string) (models.Playlist, error)
	RemoveVideoFromPlaylist(playlistID, videoID string) (models.Playlist, error)

	ToggleSubscription(subscriberID, channelID string) (bool, error)
	IsSubscribed(subscriberID, channelID string) bool
	CountSubscribers(channelID string) int
	ListSubscribedChannels(subscriberID string) []models.User
	ListSubscribers(channelID string) []models.User

	UploadAsset(ctx context.Context, key, contentType string, body []byte) (string, error)
	DeleteAsset(ctx context.Context, key string) error
	AssetStorageEnabled() bool
}

var _ Repository = (*Storage)(nil)
