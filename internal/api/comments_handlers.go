package api

import (
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"cliptide/internal/models"
	"cliptide/internal/storage"
)

type commentPageResponse struct {
	Items      []models.CommentRow `json:"items"`
	NextCursor *string             `json:"nextCursor"`
	TotalCount int64               `json:"totalCount"`
}

// videoComments handles /api/videos/{id}/comments: a thread page on GET and
// a new comment or reply on POST.
func (h *Handler) videoComments(w http.ResponseWriter, r *http.Request, videoID string) {
	switch r.Method {
	case http.MethodGet:
		h.listComments(w, r, videoID)
	case http.MethodPost:
		h.createComment(w, r, videoID)
	default:
		w.Header().Set("Allow", "GET, POST")
		WriteRequestError(w, methodNotAllowed("GET or POST"))
	}
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request, videoID string) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, err, "comments")
		return
	}
	cursor, err := timeCursorParam(r)
	if err != nil {
		writeError(w, err, "comments")
		return
	}
	user, _, err := h.viewer(r)
	if err != nil {
		writeError(w, err, "comments")
		return
	}
	if _, ok, err := h.Store.GetVideo(r.Context(), videoID); err != nil {
		writeError(w, err, "video")
		return
	} else if !ok {
		WriteRequestError(w, notFoundError("video"))
		return
	}
	params := storage.CommentListParams{
		VideoID:  videoID,
		ViewerID: user.ID,
		Cursor:   cursor,
		Limit:    limit,
	}
	if parentID := r.URL.Query().Get("parentId"); parentID != "" {
		params.ParentID = &parentID
	}

	// The page and the thread-wide total are independent queries; run them
	// concurrently.
	var page storage.CommentPage
	var total int64
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		page, err = h.Store.ListComments(ctx, params)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = h.Store.CountComments(ctx, videoID)
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, err, "comments")
		return
	}
	writeJSON(w, http.StatusOK, commentPageResponse{
		Items:      page.Items,
		NextCursor: timeCursorToken(page.NextCursor),
		TotalCount: total,
	})
}

type createCommentRequest struct {
	Value    string  `json:"value"`
	ParentID *string `json:"parentId"`
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request, videoID string) {
	user, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	var req createCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, validationError("invalid request body: %v", err), "comment")
		return
	}
	if strings.TrimSpace(req.Value) == "" {
		writeError(w, validationError("value cannot be empty"), "comment")
		return
	}
	comment, err := h.Store.CreateComment(r.Context(), storage.CreateCommentParams{
		VideoID:  videoID,
		AuthorID: user.ID,
		ParentID: req.ParentID,
		Value:    req.Value,
	})
	if err != nil {
		writeError(w, err, "comment")
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// CommentByID routes /api/comments/{id} and its reactions subresource.
func (h *Handler) CommentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/comments/"), "/")
	if rest == "" {
		WriteRequestError(w, notFoundError("comment"))
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			w.Header().Set("Allow", "DELETE")
			WriteRequestError(w, methodNotAllowed("DELETE"))
			return
		}
		h.deleteComment(w, r, id)
	case len(parts) == 2 && parts[1] == "reactions":
		h.reactToComment(w, r, id)
	default:
		WriteRequestError(w, notFoundError("resource"))
	}
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request, id string) {
	user, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteComment(r.Context(), id, user.ID); err != nil {
		writeError(w, err, "comment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) reactToComment(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		WriteRequestError(w, methodNotAllowed("POST"))
		return
	}
	user, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	var req reactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, validationError("invalid request body: %v", err), "comment")
		return
	}
	reaction := models.ReactionType(req.Type)
	if !reaction.Valid() {
		writeError(w, validationError("type must be like or dislike"), "comment")
		return
	}
	row, err := h.Store.ReactToComment(r.Context(), user.ID, id, reaction)
	if err != nil {
		writeError(w, err, "comment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]*models.CommentReaction{"reaction": row})
}
