package api

import (
	"context"
	"net/http"
	"testing"

	"cliptide/internal/models"
	"cliptide/internal/storage"
)

func TestStudioVideosIncludesDrafts(t *testing.T) {
	handler, store := newTestHandler(t)
	alice := seedUser(t, store, "idp-alice")
	bob := seedUser(t, store, "idp-bob")
	publishVideo(t, store, alice, "published")
	draft, err := store.CreateVideo(context.Background(), storage.CreateVideoParams{
		OwnerID:  alice.ID,
		Title:    "work in progress",
		UploadID: "upload-wip",
	})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	publishVideo(t, store, bob, "someone else's")
	postComment(t, store, draft.ID, bob, nil, "sneak peek?")

	rec := do(t, handler.StudioVideos, http.MethodGet, "/api/studio/videos", "idp-alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Items      []models.StudioVideo `json:"items"`
		NextCursor *string              `json:"nextCursor"`
	}
	decodeInto(t, rec, &page)
	if len(page.Items) != 2 {
		t.Fatalf("rows = %d, want 2 (drafts included, other owners excluded)", len(page.Items))
	}
	for _, row := range page.Items {
		if row.OwnerID != alice.ID {
			t.Fatalf("row %s owned by %s, want %s", row.ID, row.OwnerID, alice.ID)
		}
		if row.ID == draft.ID && row.CommentCount != 1 {
			t.Fatalf("draft commentCount = %d, want 1", row.CommentCount)
		}
	}
}

func TestStudioVideosRequiresViewer(t *testing.T) {
	handler, _ := newTestHandler(t)
	rec := do(t, handler.StudioVideos, http.MethodGet, "/api/studio/videos", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestStudioVideoByIDOwnerScoped(t *testing.T) {
	handler, store := newTestHandler(t)
	alice := seedUser(t, store, "idp-alice")
	seedUser(t, store, "idp-bob")
	video := publishVideo(t, store, alice, "clip")

	rec := do(t, handler.StudioVideoByID, http.MethodGet, "/api/studio/videos/"+video.ID, "idp-alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner status = %d: %s", rec.Code, rec.Body.String())
	}
	var got models.Video
	decodeInto(t, rec, &got)
	if got.ID != video.ID {
		t.Fatalf("id = %q, want %q", got.ID, video.ID)
	}

	rec = do(t, handler.StudioVideoByID, http.MethodGet, "/api/studio/videos/"+video.ID, "idp-bob", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign viewer status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
