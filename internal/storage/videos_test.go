package storage

import (
	"errors"
	"testing"

	"streamnest/internal/auth"
	"streamnest/internal/models"
)

func createTestVideo(t *testing.T, store *Storage, ownerID, title string) models.Video {
	t.Helper()
	video, err := store.CreateVideo(CreateVideoParams{
		OwnerID:  ownerID,
		Title:    title,
		VideoURL: "https://cdn.example.com/" + title + ".mp4",
	})
	if err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}
	return video
}

func TestCreateVideoValidation(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice", "alice@example.com")

	if _, err := store.CreateVideo(CreateVideoParams{OwnerID: "ghost", Title: "t", VideoURL: "u"}); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown owner, got %v", err)
	}
	if _, err := store.CreateVideo(CreateVideoParams{OwnerID: user.ID, VideoURL: "u"}); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing title, got %v", err)
	}
	if _, err := store.CreateVideo(CreateVideoParams{OwnerID: user.ID, Title: "t"}); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing video url, got %v", err)
	}
}

func TestListVideosFiltersAndSearch(t *testing.T) {
	store := newTestStorage(t)
	alice := createTestUser(t, store, "alice", "alice@example.com")
	bob := createTestUser(t, store, "bob", "bob@example.com")
	goTalk := createTestVideo(t, store, alice.ID, "Concurrency in Go")
	createTestVideo(t, store, bob.ID, "Cooking pasta")
	hidden := createTestVideo(t, store, alice.ID, "Draft video")
	if _, err := store.TogglePublish(hidden.ID); err != nil {
		t.Fatalf("TogglePublish returned error: %v", err)
	}

	all := store.ListVideos(ListVideosParams{})
	if len(all) != 2 {
		t.Fatalf("expected 2 published videos, got %d", len(all))
	}

	mine := store.ListVideos(ListVideosParams{OwnerID: alice.ID, IncludeHidden: true})
	if len(mine) != 2 {
		t.Fatalf("expected 2 owned videos with hidden included, got %d", len(mine))
	}

	matches := store.ListVideos(ListVideosParams{Query: "CONCURRENCY"})
	if len(matches) != 1 || matches[0].ID != goTalk.ID {
		t.Fatalf("expected search to match the Go talk, got %d results", len(matches))
	}
}

func TestIncrementViews(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice", "alice@example.com")
	video := createTestVideo(t, store, user.ID, "clip")

	for i := 0; i < 3; i++ {
		if _, err := store.IncrementViews(video.ID); err != nil {
			t.Fatalf("IncrementViews returned error: %v", err)
		}
	}
	updated, ok := store.GetVideo(video.ID)
	if !ok {
		t.Fatal("expected video to exist")
	}
	if updated.Views != 3 {
		t.Fatalf("expected 3 views, got %d", updated.Views)
	}
}

func TestDeleteVideoCascades(t *testing.T) {
	store := newTestStorage(t)
	alice := createTestUser(t, store, "alice", "alice@example.com")
	bob := createTestUser(t, store, "bob", "bob@example.com")
	video := createTestVideo(t, store, alice.ID, "doomed")

	comment, err := store.CreateComment(video.ID, bob.ID, "nice one")
	if err != nil {
		t.Fatalf("CreateComment returned error: %v", err)
	}
	if _, err := store.ToggleVideoLike(video.ID, bob.ID); err != nil {
		t.Fatalf("ToggleVideoLike returned error: %v", err)
	}
	playlist, err := store.CreatePlaylist(bob.ID, "favs", "")
	if err != nil {
		t.Fatalf("CreatePlaylist returned error: %v", err)
	}
	if _, err := store.AddVideoToPlaylist(playlist.ID, video.ID); err != nil {
		t.Fatalf("AddVideoToPlaylist returned error: %v", err)
	}
	if err := store.AddWatchHistory(bob.ID, video.ID); err != nil {
		t.Fatalf("AddWatchHistory returned error: %v", err)
	}

	if err := store.DeleteVideo(video.ID); err != nil {
		t.Fatalf("DeleteVideo returned error: %v", err)
	}

	if _, ok := store.GetVideo(video.ID); ok {
		t.Fatal("expected video to be gone")
	}
	if _, ok := store.GetComment(comment.ID); ok {
		t.Fatal("expected comment to be removed with its video")
	}
	if store.CountVideoLikes(video.ID) != 0 {
		t.Fatal("expected likes to be removed with the video")
	}
	updatedPlaylist, ok := store.GetPlaylist(playlist.ID)
	if !ok {
		t.Fatal("expected playlist to remain")
	}
	if len(updatedPlaylist.VideoIDs) != 0 {
		t.Fatal("expected playlist reference to be removed")
	}
	history, err := store.ListWatchHistory(bob.ID)
	if err != nil {
		t.Fatalf("ListWatchHistory returned error: %v", err)
	}
	if len(history) != 0 {
		t.Fatal("expected watch history entry to be removed")
	}
}
