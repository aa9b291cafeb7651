package models

import "time"

// User is a registered account. PasswordHash and RefreshToken are credential
// material: they are persisted by the datastore but must never appear in an
// API response (see Sanitized).
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	WatchHistory  []string  `json:"watchHistory,omitempty"`
	PasswordHash  string    `json:"passwordHash,omitempty"`
	RefreshToken  string    `json:"refreshToken,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Sanitized returns a copy of the user with credential fields stripped.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.RefreshToken = ""
	return u
}

type Video struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"ownerId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	VideoURL        string    `json:"videoUrl"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	DurationSeconds float64   `json:"durationSeconds"`
	Views           int64     `json:"views"`
	Published       bool      `json:"published"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Playlist struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	VideoIDs    []string  `json:"videoIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Subscription links a subscriber to a channel (a channel is simply another
// user's account).
type Subscription struct {
	SubscriberID string    `json:"subscriberId"`
	ChannelID    string    `json:"channelId"`
	CreatedAt    time.Time `json:"createdAt"`
}
