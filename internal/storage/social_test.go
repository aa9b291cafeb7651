package storage

import (
	"errors"
	"testing"

	"streamnest/internal/auth"
)

func TestCommentLifecycle(t *testing.T) {
	store := newTestStorage(t)
	alice := createTestUser(t, store, "alice", "alice@example.com")
	video := createTestVideo(t, store, alice.ID, "talk")

	comment, err := store.CreateComment(video.ID, alice.ID, "first!")
	if err != nil {
		t.Fatalf("CreateComment returned error: %v", err)
	}

	updated, err := store.UpdateComment(comment.ID, "edited")
	if err != nil {
		t.Fatalf("UpdateComment returned error: %v", err)
	}
	if updated.Content != "edited" {
		t.Fatalf("expected edited content, got %q", updated.Content)
	}

	comments, err := store.ListComments(video.ID, 0)
	if err != nil {
		t.Fatalf("ListComments returned error: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(comments))
	}

	if err := store.DeleteComment(comment.ID); err != nil {
		t.Fatalf("DeleteComment returned error: %v", err)
	}
	if _, ok := store.GetComment(comment.ID); ok {
		t.Fatal("expected comment to be deleted")
	}
}

func TestCreateCommentValidation(t *testing.T) {
	store := newTestStorage(t)
	alice := createTestUser(t, store, "alice", "alice@example.com")
	video := createTestVideo(t, store, alice.ID, "talk")

	if _, err := store.CreateComment("ghost", alice.ID, "hi"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown video, got %v", err)
	}
	if _, err := store.CreateComment(video.ID, alice.ID, "   "); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty content, got %v", err)
	}
}

func TestVideoLikeToggle(t *testing.T) {
	store := newTestStorage(t)
	alice := createTestUser(t, store, "alice", "alice@example.com")
	bob := createTestUser(t, store, "bob", "bob@example.com")
	video := createTestVideo(t, store, alice.ID, "talk")

	liked, err := store.ToggleVideoLike(video.ID, bob.ID)
	if err != nil {
		t.Fatalf("ToggleVideoLike returned error: %v", err)
	}
	if !liked {
		t.Fatal("expected first toggle to like")
	}
	if store.CountVideoLikes(video.ID) != 1 {
		t.Fatal("expected 1 like")
	}
	if !store.HasLikedVideo(video.ID, bob.ID) {
		t.Fatal("expected HasLikedVideo to report the like")
	}

	likedVideos := store.ListLikedVideos(bob.ID)
	if len(likedVideos) != 1 || likedVideos[0].ID != video.ID {
		t.Fatal("expected liked videos to contain the video")
	}

	liked, err = store.ToggleVideoLike(video.ID, bob.ID)
	if err != nil {
		t.Fatalf("ToggleVideoLike returned error: %v", err)
	}
	if liked {
		t.Fatal("expected second toggle to unlike")
	}
	if store.CountVideoLikes(video.ID) != 0 {
		t.Fatal("expected 0 likes after unlike")
	}
}

func TestCommentLikeToggle(t *testing.T) {
	store := newTestStorage(t)
	alice := createTestUser(t, store, "alice", "alice@example.com")
	video := createTestVideo(t, store, alice.ID, "talk")
	comment, err := store.CreateComment(video.ID, alice.ID, "hello")
	if err != nil {
		t.Fatalf("CreateComment returned error: %v", err)
	}

	if _, err := store.ToggleCommentLike(comment.ID, alice.ID); err != nil {
		t.Fatalf("ToggleCommentLike returned error: %v", err)
	}
	if store.CountCommentLikes(comment.ID) != 1 {
		t.Fatal("expected 1 comment like")
	}
}

func TestSubscriptionToggle(t *testing.T) {
	store := newTestStorage(t)
	alice := createTestUser(t, store, "alice", "alice@example.com")
	bob := createTestUser(t, store, "bob", "bob@example.com")

	if _, err := store.ToggleSubscription(alice.ID, alice.ID); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("expected ErrValidation for self-subscription, got %v", err)
	}

	subscribed, err := store.ToggleSubscription(bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("ToggleSubscription returned error: %v", err)
	}
	if !subscribed {
		t.Fatal("expected first toggle to subscribe")
	}
	if !store.IsSubscribed(bob.ID, alice.ID) {
		t.Fatal("expected IsSubscribed to report subscription")
	}
	if store.CountSubscribers(alice.ID) != 1 {
		t.Fatal("expected 1 subscriber")
	}

	channels := store.ListSubscribedChannels(bob.ID)
	if len(channels) != 1 || channels[0].ID != alice.ID {
		t.Fatal("expected bob's subscriptions to list alice")
	}
	if channels[0].PasswordHash != "" || channels[0].RefreshToken != "" {
		t.Fatal("expected subscription listing to be sanitized")
	}
	subscribers := store.ListSubscribers(alice.ID)
	if len(subscribers) != 1 || subscribers[0].ID != bob.ID {
		t.Fatal("expected alice's subscribers to list bob")
	}

	subscribed, err = store.ToggleSubscription(bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("ToggleSubscription returned error: %v", err)
	}
	if subscribed {
		t.Fatal("expected second toggle to unsubscribe")
	}
	if store.CountSubscribers(alice.ID) != 0 {
		t.Fatal("expected 0 subscribers after unsubscribe")
	}
}

func TestPlaylistLifecycle(t *testing.T) {
	store := newTestStorage(t)
	alice := createTestUser(t, store, "alice", "alice@example.com")
	video := createTestVideo(t, store, alice.ID, "talk")

	playlist, err := store.CreatePlaylist(alice.ID, "Talks", "conference talks")
	if err != nil {
		t.Fatalf("CreatePlaylist returned error: %v", err)
	}

	updated, err := store.AddVideoToPlaylist(playlist.ID, video.ID)
	if err != nil {
		t.Fatalf("AddVideoToPlaylist returned error: %v", err)
	}
	if len(updated.VideoIDs) != 1 {
		t.Fatalf("expected 1 video in playlist, got %d", len(updated.VideoIDs))
	}
	// Adding again is a no-op.
	updated, err = store.AddVideoToPlaylist(playlist.ID, video.ID)
	if err != nil {
		t.Fatalf("AddVideoToPlaylist returned error: %v", err)
	}
	if len(updated.VideoIDs) != 1 {
		t.Fatalf("expected duplicate add to be idempotent, got %d entries", len(updated.VideoIDs))
	}

	name := "Renamed"
	updated, err = store.UpdatePlaylist(playlist.ID, PlaylistUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdatePlaylist returned error: %v", err)
	}
	if updated.Name != name {
		t.Fatalf("expected playlist name %q, got %q", name, updated.Name)
	}

	updated, err = store.RemoveVideoFromPlaylist(playlist.ID, video.ID)
	if err != nil {
		t.Fatalf("RemoveVideoFromPlaylist returned error: %v", err)
	}
	if len(updated.VideoIDs) != 0 {
		t.Fatal("expected video to be removed from playlist")
	}

	if err := store.DeletePlaylist(playlist.ID); err != nil {
		t.Fatalf("DeletePlaylist returned error: %v", err)
	}
	if _, ok := store.GetPlaylist(playlist.ID); ok {
		t.Fatal("expected playlist to be deleted")
	}
}
