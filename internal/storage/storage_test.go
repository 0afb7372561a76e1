package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cliptide/internal/models"
)

// fakeClock advances one second per reading so every write lands on a
// distinct timestamp.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	c.current = c.current.Add(time.Second)
	return c.current
}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	clock := &fakeClock{current: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	store, err := NewStorage("", WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return store
}

func seedUser(t *testing.T, store *Storage, name string) models.User {
	t.Helper()
	user, err := store.UpsertUser(context.Background(), UpsertUserParams{
		IdentityID: "idp-" + name,
		Name:       name,
		Email:      name + "@example.com",
	})
	if err != nil {
		t.Fatalf("UpsertUser(%s): %v", name, err)
	}
	return user
}

func publishVideo(t *testing.T, store *Storage, ownerID, title string) models.Video {
	t.Helper()
	ctx := context.Background()
	video, err := store.CreateVideo(ctx, CreateVideoParams{OwnerID: ownerID, Title: title, UploadID: "up-" + title})
	if err != nil {
		t.Fatalf("CreateVideo(%s): %v", title, err)
	}
	visibility := models.VisibilityPublic
	video, err = store.UpdateVideo(ctx, video.ID, ownerID, VideoUpdate{Visibility: &visibility})
	if err != nil {
		t.Fatalf("publish %s: %v", title, err)
	}
	return video
}

func TestListVideosWalksEveryRowOnce(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")

	want := make(map[string]bool)
	for _, title := range []string{"one", "two", "three", "four", "five"} {
		video := publishVideo(t, store, owner.ID, title)
		want[video.ID] = false
	}

	var cursor *TimeCursor
	var lastAt time.Time
	pages := 0
	for {
		page, err := store.ListVideos(ctx, VideoListParams{Cursor: cursor, Limit: 2})
		if err != nil {
			t.Fatalf("ListVideos: %v", err)
		}
		pages++
		for _, item := range page.Items {
			seen, ok := want[item.ID]
			if !ok {
				t.Fatalf("unexpected video %s in page", item.ID)
			}
			if seen {
				t.Fatalf("video %s returned twice", item.ID)
			}
			want[item.ID] = true
			if !lastAt.IsZero() && item.UpdatedAt.After(lastAt) {
				t.Fatalf("rows out of order: %v after %v", item.UpdatedAt, lastAt)
			}
			lastAt = item.UpdatedAt
		}
		if page.NextCursor == nil {
			break
		}
		cursor = page.NextCursor
	}
	if pages != 3 {
		t.Fatalf("walk took %d pages, want 3", pages)
	}
	for id, seen := range want {
		if !seen {
			t.Fatalf("video %s never returned", id)
		}
	}
}

func TestListVideosStableUnderInsert(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")

	a := publishVideo(t, store, owner.ID, "a")
	b := publishVideo(t, store, owner.ID, "b")
	c := publishVideo(t, store, owner.ID, "c")

	first, err := store.ListVideos(ctx, VideoListParams{Limit: 2})
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(first.Items) != 2 || first.Items[0].ID != c.ID || first.Items[1].ID != b.ID {
		t.Fatalf("first page ids wrong: %v", pageIDs(first.Items))
	}
	if first.NextCursor == nil {
		t.Fatal("first page should carry a cursor")
	}

	d := publishVideo(t, store, owner.ID, "d")

	second, err := store.ListVideos(ctx, VideoListParams{Cursor: first.NextCursor, Limit: 2})
	if err != nil {
		t.Fatalf("ListVideos page 2: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].ID != a.ID {
		t.Fatalf("second page ids wrong: %v", pageIDs(second.Items))
	}
	for _, item := range second.Items {
		if item.ID == d.ID {
			t.Fatal("row inserted after the first page leaked into the second")
		}
	}
	if second.NextCursor != nil {
		t.Fatal("final page should not carry a cursor")
	}
}

func pageIDs(items []models.VideoSummary) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestListVideosFilters(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")
	if err := store.SeedCategories(ctx, []string{"Music", "Gaming"}); err != nil {
		t.Fatalf("SeedCategories: %v", err)
	}
	categories, err := store.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	music := categories[1].ID // sorted by name: Gaming, Music

	tagged := publishVideo(t, store, owner.ID, "Guitar Lesson")
	if _, err := store.UpdateVideo(ctx, tagged.ID, owner.ID, VideoUpdate{CategoryID: &music}); err != nil {
		t.Fatalf("tag video: %v", err)
	}
	publishVideo(t, store, owner.ID, "Speedrun")

	hidden, err := store.CreateVideo(ctx, CreateVideoParams{OwnerID: owner.ID, Title: "guitar draft", UploadID: "up-draft"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	byCategory, err := store.ListVideos(ctx, VideoListParams{CategoryID: &music})
	if err != nil {
		t.Fatalf("ListVideos by category: %v", err)
	}
	if len(byCategory.Items) != 1 || byCategory.Items[0].ID != tagged.ID {
		t.Fatalf("category filter returned %v", pageIDs(byCategory.Items))
	}

	bySearch, err := store.ListVideos(ctx, VideoListParams{Query: "GUITAR"})
	if err != nil {
		t.Fatalf("ListVideos by query: %v", err)
	}
	if len(bySearch.Items) != 1 || bySearch.Items[0].ID != tagged.ID {
		t.Fatalf("search should match case-insensitively and skip private rows, got %v", pageIDs(bySearch.Items))
	}
	for _, item := range bySearch.Items {
		if item.ID == hidden.ID {
			t.Fatal("private video leaked into search results")
		}
	}
}

func TestTrendingOrdersByViewCount(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")

	cold := publishVideo(t, store, owner.ID, "cold")
	warm := publishVideo(t, store, owner.ID, "warm")
	hot := publishVideo(t, store, owner.ID, "hot")

	viewers := []models.User{
		seedUser(t, store, "v1"),
		seedUser(t, store, "v2"),
		seedUser(t, store, "v3"),
	}
	for _, viewer := range viewers {
		if _, err := store.CreateView(ctx, viewer.ID, hot.ID); err != nil {
			t.Fatalf("CreateView: %v", err)
		}
	}
	if _, err := store.CreateView(ctx, viewers[0].ID, warm.ID); err != nil {
		t.Fatalf("CreateView: %v", err)
	}

	first, err := store.ListTrendingVideos(ctx, TrendingListParams{Limit: 2})
	if err != nil {
		t.Fatalf("ListTrendingVideos: %v", err)
	}
	if len(first.Items) != 2 || first.Items[0].ID != hot.ID || first.Items[1].ID != warm.ID {
		t.Fatalf("trending order wrong: %v", pageIDs(first.Items))
	}
	if first.Items[0].ViewCount != 3 {
		t.Fatalf("hot view count = %d, want 3", first.Items[0].ViewCount)
	}
	if first.NextCursor == nil {
		t.Fatal("expected a trending cursor")
	}

	second, err := store.ListTrendingVideos(ctx, TrendingListParams{Cursor: first.NextCursor, Limit: 2})
	if err != nil {
		t.Fatalf("trending page 2: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].ID != cold.ID {
		t.Fatalf("trending page 2 wrong: %v", pageIDs(second.Items))
	}
}

func TestReactionToggleAndSwitch(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")
	viewer := seedUser(t, store, "viewer")
	video := publishVideo(t, store, owner.ID, "clip")

	reaction, err := store.ReactToVideo(ctx, viewer.ID, video.ID, models.ReactionLike)
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if reaction == nil || reaction.Type != models.ReactionLike {
		t.Fatalf("like returned %+v", reaction)
	}

	reaction, err = store.ReactToVideo(ctx, viewer.ID, video.ID, models.ReactionDislike)
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if reaction == nil || reaction.Type != models.ReactionDislike {
		t.Fatalf("switch returned %+v", reaction)
	}
	detail, ok, err := store.GetVideoDetail(ctx, video.ID, viewer.ID)
	if err != nil || !ok {
		t.Fatalf("GetVideoDetail: %v, %v", ok, err)
	}
	if detail.LikeCount != 0 || detail.DislikeCount != 1 {
		t.Fatalf("counts after switch = %d/%d, want 0/1", detail.LikeCount, detail.DislikeCount)
	}

	reaction, err = store.ReactToVideo(ctx, viewer.ID, video.ID, models.ReactionDislike)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if reaction != nil {
		t.Fatalf("repeat reaction should clear, got %+v", reaction)
	}
	detail, _, _ = store.GetVideoDetail(ctx, video.ID, viewer.ID)
	if detail.LikeCount != 0 || detail.DislikeCount != 0 || detail.ViewerReaction != nil {
		t.Fatalf("reaction not cleared: %+v", detail)
	}
}

func TestCreateViewIsIdempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")
	viewer := seedUser(t, store, "viewer")
	video := publishVideo(t, store, owner.ID, "clip")

	first, err := store.CreateView(ctx, viewer.ID, video.ID)
	if err != nil {
		t.Fatalf("CreateView: %v", err)
	}
	second, err := store.CreateView(ctx, viewer.ID, video.ID)
	if err != nil {
		t.Fatalf("repeat CreateView: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("repeat view should return the original row")
	}
	detail, _, _ := store.GetVideoDetail(ctx, video.ID, "")
	if detail.ViewCount != 1 {
		t.Fatalf("view count = %d, want 1", detail.ViewCount)
	}
}

func TestSubscriptions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	creator := seedUser(t, store, "creator")
	viewer := seedUser(t, store, "viewer")

	if _, err := store.CreateSubscription(ctx, viewer.ID, viewer.ID); !errors.Is(err, ErrSelfSubscription) {
		t.Fatalf("self subscription error = %v, want ErrSelfSubscription", err)
	}

	first, err := store.CreateSubscription(ctx, viewer.ID, creator.ID)
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	repeat, err := store.CreateSubscription(ctx, viewer.ID, creator.ID)
	if err != nil {
		t.Fatalf("repeat CreateSubscription: %v", err)
	}
	if !repeat.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("repeat subscription should return the original row")
	}

	if err := store.DeleteSubscription(ctx, viewer.ID, creator.ID); err != nil {
		t.Fatalf("DeleteSubscription: %v", err)
	}
	if err := store.DeleteSubscription(ctx, viewer.ID, creator.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestSubscriptionFeed(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	followed := seedUser(t, store, "followed")
	other := seedUser(t, store, "other")
	viewer := seedUser(t, store, "viewer")

	wanted := publishVideo(t, store, followed.ID, "wanted")
	publishVideo(t, store, other.ID, "noise")
	if _, err := store.CreateVideo(ctx, CreateVideoParams{OwnerID: followed.ID, Title: "draft", UploadID: "up-x"}); err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	if _, err := store.CreateSubscription(ctx, viewer.ID, followed.ID); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	feed, err := store.ListSubscriptionFeed(ctx, SubscriptionFeedParams{ViewerID: viewer.ID})
	if err != nil {
		t.Fatalf("ListSubscriptionFeed: %v", err)
	}
	if len(feed.Items) != 1 || feed.Items[0].ID != wanted.ID {
		t.Fatalf("feed = %v, want only %s", pageIDs(feed.Items), wanted.ID)
	}
}

func TestCommentThreading(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")
	commenter := seedUser(t, store, "commenter")
	video := publishVideo(t, store, owner.ID, "clip")
	otherVideo := publishVideo(t, store, owner.ID, "other")

	top, err := store.CreateComment(ctx, CreateCommentParams{VideoID: video.ID, AuthorID: commenter.ID, Value: "first"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	reply, err := store.CreateComment(ctx, CreateCommentParams{VideoID: video.ID, AuthorID: owner.ID, ParentID: &top.ID, Value: "reply"})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}

	if _, err := store.CreateComment(ctx, CreateCommentParams{VideoID: video.ID, AuthorID: owner.ID, ParentID: &reply.ID, Value: "too deep"}); !errors.Is(err, ErrReplyDepth) {
		t.Fatalf("reply-to-reply error = %v, want ErrReplyDepth", err)
	}
	if _, err := store.CreateComment(ctx, CreateCommentParams{VideoID: otherVideo.ID, AuthorID: owner.ID, ParentID: &top.ID, Value: "wrong video"}); !errors.Is(err, ErrParentMismatch) {
		t.Fatalf("cross-video reply error = %v, want ErrParentMismatch", err)
	}

	topLevel, err := store.ListComments(ctx, CommentListParams{VideoID: video.ID})
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(topLevel.Items) != 1 || topLevel.Items[0].ID != top.ID {
		t.Fatalf("top-level listing wrong: %d items", len(topLevel.Items))
	}
	if topLevel.Items[0].ReplyCount != 1 {
		t.Fatalf("reply count = %d, want 1", topLevel.Items[0].ReplyCount)
	}

	replies, err := store.ListComments(ctx, CommentListParams{VideoID: video.ID, ParentID: &top.ID})
	if err != nil {
		t.Fatalf("ListComments replies: %v", err)
	}
	if len(replies.Items) != 1 || replies.Items[0].ID != reply.ID {
		t.Fatalf("reply listing wrong: %d items", len(replies.Items))
	}

	total, err := store.CountComments(ctx, video.ID)
	if err != nil {
		t.Fatalf("CountComments: %v", err)
	}
	if total != 2 {
		t.Fatalf("CountComments = %d, want 2", total)
	}
}

func TestDeleteCommentCascadesToReplies(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")
	video := publishVideo(t, store, owner.ID, "clip")

	top, err := store.CreateComment(ctx, CreateCommentParams{VideoID: video.ID, AuthorID: owner.ID, Value: "root"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if _, err := store.CreateComment(ctx, CreateCommentParams{VideoID: video.ID, AuthorID: owner.ID, ParentID: &top.ID, Value: "child"}); err != nil {
		t.Fatalf("reply: %v", err)
	}

	if err := store.DeleteComment(ctx, top.ID, owner.ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	total, _ := store.CountComments(ctx, video.ID)
	if total != 0 {
		t.Fatalf("comments after cascade = %d, want 0", total)
	}
}

func TestOwnershipScopedMutations(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner")
	intruder := seedUser(t, store, "intruder")
	video := publishVideo(t, store, owner.ID, "clip")

	title := "hijacked"
	if _, err := store.UpdateVideo(ctx, video.ID, intruder.ID, VideoUpdate{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign update error = %v, want ErrNotFound", err)
	}
	if _, err := store.DeleteVideo(ctx, video.ID, intruder.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete error = %v, want ErrNotFound", err)
	}

	comment, err := store.CreateComment(ctx, CreateCommentParams{VideoID: video.ID, AuthorID: owner.ID, Value: "mine"})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if err := store.DeleteComment(ctx, comment.ID, intruder.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign comment delete = %v, want ErrNotFound", err)
	}
}

func TestDeleteVideoCascades(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")
	viewer := seedUser(t, store, "viewer")
	video := publishVideo(t, store, owner.ID, "clip")

	if _, err := store.CreateComment(ctx, CreateCommentParams{VideoID: video.ID, AuthorID: viewer.ID, Value: "hi"}); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if _, err := store.ReactToVideo(ctx, viewer.ID, video.ID, models.ReactionLike); err != nil {
		t.Fatalf("ReactToVideo: %v", err)
	}
	if _, err := store.CreateView(ctx, viewer.ID, video.ID); err != nil {
		t.Fatalf("CreateView: %v", err)
	}

	deleted, err := store.DeleteVideo(ctx, video.ID, owner.ID)
	if err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}
	if deleted.ID != video.ID {
		t.Fatalf("DeleteVideo returned %s, want %s", deleted.ID, video.ID)
	}
	if _, ok, _ := store.GetVideo(ctx, video.ID); ok {
		t.Fatal("video still present after delete")
	}
	if total, _ := store.CountComments(ctx, video.ID); total != 0 {
		t.Fatalf("comments survived the cascade: %d", total)
	}
	if len(store.data.VideoReactions[video.ID]) != 0 || len(store.data.Views[video.ID]) != 0 {
		t.Fatal("reactions or views survived the cascade")
	}
}

func TestUpdateVideoMovesItToFront(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")

	oldest := publishVideo(t, store, owner.ID, "oldest")
	publishVideo(t, store, owner.ID, "newest")

	title := "refreshed"
	if _, err := store.UpdateVideo(ctx, oldest.ID, owner.ID, VideoUpdate{Title: &title}); err != nil {
		t.Fatalf("UpdateVideo: %v", err)
	}
	page, err := store.ListVideos(ctx, VideoListParams{})
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if page.Items[0].ID != oldest.ID {
		t.Fatalf("updated video should lead the feed, got %v", pageIDs(page.Items))
	}
}

func TestUpdateVideoUnknownCategory(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")
	video := publishVideo(t, store, owner.ID, "clip")

	bogus := "00000000-0000-0000-0000-000000000000"
	if _, err := store.UpdateVideo(ctx, video.ID, owner.ID, VideoUpdate{CategoryID: &bogus}); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("unknown category error = %v, want ErrUnknownCategory", err)
	}
}

func TestGetVideoDetailViewerScoping(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	creator := seedUser(t, store, "creator")
	viewer := seedUser(t, store, "viewer")
	video := publishVideo(t, store, creator.ID, "clip")

	if _, err := store.ReactToVideo(ctx, viewer.ID, video.ID, models.ReactionLike); err != nil {
		t.Fatalf("ReactToVideo: %v", err)
	}
	if _, err := store.CreateSubscription(ctx, viewer.ID, creator.ID); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	detail, ok, err := store.GetVideoDetail(ctx, video.ID, viewer.ID)
	if err != nil || !ok {
		t.Fatalf("GetVideoDetail: %v, %v", ok, err)
	}
	if detail.ViewerReaction == nil || *detail.ViewerReaction != models.ReactionLike {
		t.Fatalf("viewer reaction = %v, want like", detail.ViewerReaction)
	}
	if !detail.User.ViewerSubscribed || detail.User.SubscriberCount != 1 {
		t.Fatalf("creator scoping wrong: %+v", detail.User)
	}

	anonymous, _, err := store.GetVideoDetail(ctx, video.ID, "")
	if err != nil {
		t.Fatalf("anonymous GetVideoDetail: %v", err)
	}
	if anonymous.ViewerReaction != nil || anonymous.User.ViewerSubscribed {
		t.Fatal("anonymous detail must not carry viewer state")
	}
	if anonymous.User.SubscriberCount != 1 || anonymous.LikeCount != 1 {
		t.Fatalf("anonymous counts wrong: %+v", anonymous)
	}
}

func TestMediaPipelineEvents(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")
	video, err := store.CreateVideo(ctx, CreateVideoParams{OwnerID: owner.ID, Title: "Untitled", UploadID: "up-1"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	if err := store.MarkVideoProcessing(ctx, "up-1", "asset-1"); err != nil {
		t.Fatalf("MarkVideoProcessing: %v", err)
	}
	if err := store.MarkVideoReady(ctx, "up-1", VideoReadyUpdate{
		AssetID:      "asset-1",
		PlaybackID:   "play-1",
		ThumbnailURL: "https://img.example/default.jpg",
		PreviewURL:   "https://img.example/preview.gif",
		DurationMS:   61500,
	}); err != nil {
		t.Fatalf("MarkVideoReady: %v", err)
	}
	got, ok, _ := store.GetVideo(ctx, video.ID)
	if !ok || got.MediaStatus != models.MediaStatusReady || got.PlaybackID != "play-1" || got.DurationMS != 61500 {
		t.Fatalf("ready state wrong: %+v", got)
	}
	if got.ThumbnailURL != "https://img.example/default.jpg" {
		t.Fatalf("default thumbnail not applied: %q", got.ThumbnailURL)
	}

	if err := store.SetVideoTrack(ctx, "asset-1", "track-1", "ready"); err != nil {
		t.Fatalf("SetVideoTrack: %v", err)
	}
	got, _, _ = store.GetVideo(ctx, video.ID)
	if got.TrackID != "track-1" || got.TrackStatus != "ready" {
		t.Fatalf("track state wrong: %+v", got)
	}

	if err := store.MarkVideoProcessing(ctx, "up-missing", "asset-x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown upload error = %v, want ErrNotFound", err)
	}

	if err := store.DeleteVideoByUploadID(ctx, "up-1"); err != nil {
		t.Fatalf("DeleteVideoByUploadID: %v", err)
	}
	if _, ok, _ := store.GetVideo(ctx, video.ID); ok {
		t.Fatal("video still present after pipeline delete")
	}
}

func TestMarkVideoReadyKeepsCustomThumbnail(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := seedUser(t, store, "creator")
	video, err := store.CreateVideo(ctx, CreateVideoParams{OwnerID: owner.ID, Title: "Untitled", UploadID: "up-1"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	if _, err := store.SetVideoThumbnail(ctx, video.ID, owner.ID, "https://cdn.example/custom.jpg", "thumbs/custom"); err != nil {
		t.Fatalf("SetVideoThumbnail: %v", err)
	}
	if err := store.MarkVideoReady(ctx, "up-1", VideoReadyUpdate{ThumbnailURL: "https://img.example/default.jpg"}); err != nil {
		t.Fatalf("MarkVideoReady: %v", err)
	}
	got, _, _ := store.GetVideo(ctx, video.ID)
	if got.ThumbnailURL != "https://cdn.example/custom.jpg" {
		t.Fatalf("custom thumbnail overwritten: %q", got.ThumbnailURL)
	}
}

func TestIdentitySync(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	created, err := store.UpsertUser(ctx, UpsertUserParams{IdentityID: "idp-1", Name: "Ada"})
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	updated, err := store.UpsertUser(ctx, UpsertUserParams{IdentityID: "idp-1", Name: "Ada L."})
	if err != nil {
		t.Fatalf("repeat UpsertUser: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatal("upsert should keep the internal id stable")
	}
	if updated.Name != "Ada L." {
		t.Fatalf("name not updated: %q", updated.Name)
	}

	publishVideo(t, store, created.ID, "clip")
	if err := store.DeleteUserByIdentity(ctx, "idp-1"); err != nil {
		t.Fatalf("DeleteUserByIdentity: %v", err)
	}
	if _, ok, _ := store.UserByIdentity(ctx, "idp-1"); ok {
		t.Fatal("user still present after delete")
	}
	page, _ := store.ListVideos(ctx, VideoListParams{})
	if len(page.Items) != 0 {
		t.Fatalf("videos survived owner delete: %v", pageIDs(page.Items))
	}
	if err := store.DeleteUserByIdentity(ctx, "idp-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestSeedCategoriesIsIdempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if err := store.SeedCategories(ctx, []string{"Music", "Gaming"}); err != nil {
		t.Fatalf("SeedCategories: %v", err)
	}
	if err := store.SeedCategories(ctx, []string{"Other"}); err != nil {
		t.Fatalf("repeat SeedCategories: %v", err)
	}
	categories, err := store.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("category count = %d, want 2", len(categories))
	}
	if categories[0].Name != "Gaming" || categories[1].Name != "Music" {
		t.Fatalf("categories not sorted by name: %v", categories)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	clock := &fakeClock{current: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	store, err := NewStorage(path, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	owner := seedUser(t, store, "creator")
	video := publishVideo(t, store, owner.ID, "clip")

	reopened, err := NewStorage(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok, err := reopened.GetVideo(context.Background(), video.ID)
	if err != nil || !ok {
		t.Fatalf("GetVideo after reload: %v, %v", ok, err)
	}
	if got.Title != "clip" || got.Visibility != models.VisibilityPublic {
		t.Fatalf("reloaded video wrong: %+v", got)
	}
}
