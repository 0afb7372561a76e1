package api

import (
	"context"
	"net/http"
	"testing"

	"cliptide/internal/models"
	"cliptide/internal/storage"
)

type commentPage struct {
	Items      []models.CommentRow `json:"items"`
	NextCursor *string             `json:"nextCursor"`
	TotalCount int64               `json:"totalCount"`
}

func postComment(t *testing.T, store *storage.Storage, videoID string, author models.User, parentID *string, value string) models.Comment {
	t.Helper()
	comment, err := store.CreateComment(context.Background(), storage.CreateCommentParams{
		VideoID:  videoID,
		AuthorID: author.ID,
		ParentID: parentID,
		Value:    value,
	})
	if err != nil {
		t.Fatalf("CreateComment(%q): %v", value, err)
	}
	return comment
}

func TestCreateComment(t *testing.T) {
	handler, store := newTestHandler(t)
	alice := seedUser(t, store, "idp-alice")
	video := publishVideo(t, store, alice, "clip")
	target := "/api/videos/" + video.ID + "/comments"

	rec := do(t, handler.VideoByID, http.MethodPost, target, "idp-alice", map[string]string{"value": "first!"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Comment
	decodeInto(t, rec, &created)
	if created.Value != "first!" || created.VideoID != video.ID {
		t.Fatalf("created = %+v", created)
	}

	rec = do(t, handler.VideoByID, http.MethodPost, target, "idp-alice", map[string]string{"value": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank value status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if code := errorCode(t, rec); code != CodeValidation {
		t.Fatalf("error code = %q, want %q", code, CodeValidation)
	}
}

func TestCommentThreadDepthLimit(t *testing.T) {
	handler, store := newTestHandler(t)
	alice := seedUser(t, store, "idp-alice")
	video := publishVideo(t, store, alice, "clip")
	top := postComment(t, store, video.ID, alice, nil, "top level")
	reply := postComment(t, store, video.ID, alice, &top.ID, "reply")

	// One level of replies only; replying to a reply is rejected.
	rec := do(t, handler.VideoByID, http.MethodPost, "/api/videos/"+video.ID+"/comments", "idp-alice",
		map[string]any{"value": "too deep", "parentId": reply.ID})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("nested reply status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestListCommentsReturnsThreadTotals(t *testing.T) {
	handler, store := newTestHandler(t)
	alice := seedUser(t, store, "idp-alice")
	bob := seedUser(t, store, "idp-bob")
	video := publishVideo(t, store, alice, "clip")
	first := postComment(t, store, video.ID, alice, nil, "first")
	postComment(t, store, video.ID, bob, &first.ID, "reply one")
	postComment(t, store, video.ID, bob, &first.ID, "reply two")
	postComment(t, store, video.ID, bob, nil, "second")
	if _, err := store.ReactToComment(context.Background(), bob.ID, first.ID, models.ReactionLike); err != nil {
		t.Fatalf("ReactToComment: %v", err)
	}

	rec := do(t, handler.VideoByID, http.MethodGet, "/api/videos/"+video.ID+"/comments", "idp-bob", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var page commentPage
	decodeInto(t, rec, &page)

	// Top-level rows only, newest first; totalCount spans the whole thread.
	if len(page.Items) != 2 {
		t.Fatalf("top-level rows = %d, want 2", len(page.Items))
	}
	if page.TotalCount != 4 {
		t.Fatalf("totalCount = %d, want 4", page.TotalCount)
	}
	if page.Items[0].Value != "second" {
		t.Fatalf("first row = %q, want second", page.Items[0].Value)
	}
	threaded := page.Items[1]
	if threaded.ReplyCount != 2 {
		t.Fatalf("replyCount = %d, want 2", threaded.ReplyCount)
	}
	if threaded.LikeCount != 1 {
		t.Fatalf("likeCount = %d, want 1", threaded.LikeCount)
	}
	if threaded.ViewerReaction == nil || *threaded.ViewerReaction != models.ReactionLike {
		t.Fatalf("viewerReaction = %v, want like", threaded.ViewerReaction)
	}

	rec = do(t, handler.VideoByID, http.MethodGet, "/api/videos/"+video.ID+"/comments?parentId="+first.ID, "", nil)
	var replies commentPage
	decodeInto(t, rec, &replies)
	if len(replies.Items) != 2 {
		t.Fatalf("reply rows = %d, want 2", len(replies.Items))
	}
	for _, row := range replies.Items {
		if row.ParentID == nil || *row.ParentID != first.ID {
			t.Fatalf("reply parent = %v, want %s", row.ParentID, first.ID)
		}
	}
}

func TestListCommentsMissingVideo(t *testing.T) {
	handler, store := newTestHandler(t)
	seedUser(t, store, "idp-alice")
	rec := do(t, handler.VideoByID, http.MethodGet, "/api/videos/no-such-video/comments", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteCommentAuthorOnly(t *testing.T) {
	handler, store := newTestHandler(t)
	alice := seedUser(t, store, "idp-alice")
	seedUser(t, store, "idp-bob")
	video := publishVideo(t, store, alice, "clip")
	comment := postComment(t, store, video.ID, alice, nil, "mine")

	rec := do(t, handler.CommentByID, http.MethodDelete, "/api/comments/"+comment.ID, "idp-bob", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = do(t, handler.CommentByID, http.MethodDelete, "/api/comments/"+comment.ID, "idp-alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("author delete status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, handler.CommentByID, http.MethodDelete, "/api/comments/"+comment.ID, "idp-alice", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCommentReactionToggle(t *testing.T) {
	handler, store := newTestHandler(t)
	alice := seedUser(t, store, "idp-alice")
	video := publishVideo(t, store, alice, "clip")
	comment := postComment(t, store, video.ID, alice, nil, "hot take")
	target := "/api/comments/" + comment.ID + "/reactions"

	rec := do(t, handler.CommentByID, http.MethodPost, target, "idp-alice", map[string]string{"type": "dislike"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var first struct {
		Reaction *models.CommentReaction `json:"reaction"`
	}
	decodeInto(t, rec, &first)
	if first.Reaction == nil || first.Reaction.Type != models.ReactionDislike {
		t.Fatalf("reaction = %+v, want dislike", first.Reaction)
	}

	// Switching type replaces the row instead of toggling it off.
	rec = do(t, handler.CommentByID, http.MethodPost, target, "idp-alice", map[string]string{"type": "like"})
	var switched struct {
		Reaction *models.CommentReaction `json:"reaction"`
	}
	decodeInto(t, rec, &switched)
	if switched.Reaction == nil || switched.Reaction.Type != models.ReactionLike {
		t.Fatalf("switched reaction = %+v, want like", switched.Reaction)
	}

	rec = do(t, handler.CommentByID, http.MethodPost, target, "idp-alice", map[string]string{"type": "like"})
	var cleared struct {
		Reaction *models.CommentReaction `json:"reaction"`
	}
	decodeInto(t, rec, &cleared)
	if cleared.Reaction != nil {
		t.Fatalf("repeated like = %+v, want null", cleared.Reaction)
	}
}
