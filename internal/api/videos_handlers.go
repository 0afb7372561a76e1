package api

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"cliptide/internal/models"
	"cliptide/internal/observability/logging"
	"cliptide/internal/storage"
	"cliptide/internal/workflow"
)

type videoPageResponse struct {
	Items      []models.VideoSummary `json:"items"`
	NextCursor *string               `json:"nextCursor"`
}

// Videos handles the /api/videos collection: the public feed on GET and a
// new upload slot on POST.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listVideos(w, r)
	case http.MethodPost:
		h.createVideo(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		WriteRequestError(w, methodNotAllowed("GET or POST"))
	}
}

func (h *Handler) listVideos(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, err, "videos")
		return
	}
	cursor, err := timeCursorParam(r)
	if err != nil {
		writeError(w, err, "videos")
		return
	}
	params := storage.VideoListParams{
		Query:  strings.TrimSpace(r.URL.Query().Get("query")),
		Cursor: cursor,
		Limit:  limit,
	}
	if categoryID := r.URL.Query().Get("categoryId"); categoryID != "" {
		params.CategoryID = &categoryID
	}
	page, err := h.Store.ListVideos(r.Context(), params)
	if err != nil {
		writeError(w, err, "videos")
		return
	}
	writeJSON(w, http.StatusOK, videoPageResponse{Items: page.Items, NextCursor: timeCursorToken(page.NextCursor)})
}

// SearchVideos handles GET /api/videos/search: the public feed filtered by
// a case-insensitive title substring match. An empty query is the unfiltered
// feed.
func (h *Handler) SearchVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		WriteRequestError(w, methodNotAllowed("GET"))
		return
	}
	h.listVideos(w, r)
}

// Trending serves the public feed ordered by live view count.
func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		WriteRequestError(w, methodNotAllowed("GET"))
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, err, "videos")
		return
	}
	cursor, err := countCursorParam(r)
	if err != nil {
		writeError(w, err, "videos")
		return
	}
	page, err := h.Store.ListTrendingVideos(r.Context(), storage.TrendingListParams{Cursor: cursor, Limit: limit})
	if err != nil {
		writeError(w, err, "videos")
		return
	}
	writeJSON(w, http.StatusOK, videoPageResponse{Items: page.Items, NextCursor: countCursorToken(page.NextCursor)})
}

type createVideoRequest struct {
	Title string `json:"title"`
}

type createVideoResponse struct {
	Video     models.Video `json:"video"`
	UploadURL string       `json:"uploadUrl"`
}

func (h *Handler) createVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	req := createVideoRequest{Title: "Untitled"}
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, validationError("invalid request body: %v", err), "video")
			return
		}
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled"
	}

	upload, err := h.Media.CreateUpload(r.Context(), user.ID)
	if err != nil {
		logging.FromContext(r.Context()).Error("provision upload slot", "error", err)
		writeError(w, err, "upload")
		return
	}
	video, err := h.Store.CreateVideo(r.Context(), storage.CreateVideoParams{
		OwnerID:  user.ID,
		Title:    title,
		UploadID: upload.ID,
	})
	if err != nil {
		writeError(w, err, "video")
		return
	}
	writeJSON(w, http.StatusCreated, createVideoResponse{Video: video, UploadURL: upload.URL})
}

// VideoByID routes /api/videos/{id} and its subresources.
func (h *Handler) VideoByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/videos/"), "/")
	if rest == "" {
		WriteRequestError(w, notFoundError("video"))
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.getVideo(w, r, id)
		case http.MethodPatch:
			h.updateVideo(w, r, id)
		case http.MethodDelete:
			h.deleteVideo(w, r, id)
		default:
			w.Header().Set("Allow", "GET, PATCH, DELETE")
			WriteRequestError(w, methodNotAllowed("GET, PATCH or DELETE"))
		}
	case len(parts) == 2 && parts[1] == "comments":
		h.videoComments(w, r, id)
	case len(parts) == 2 && parts[1] == "views":
		h.createView(w, r, id)
	case len(parts) == 2 && parts[1] == "reactions":
		h.reactToVideo(w, r, id)
	case len(parts) == 2 && parts[1] == "generate-title":
		h.generate(w, r, id, workflow.KindTitle)
	case len(parts) == 2 && parts[1] == "generate-description":
		h.generate(w, r, id, workflow.KindDescription)
	case len(parts) == 3 && parts[1] == "thumbnail" && parts[2] == "restore":
		h.restoreThumbnail(w, r, id)
	default:
		WriteRequestError(w, notFoundError("resource"))
	}
}

func (h *Handler) getVideo(w http.ResponseWriter, r *http.Request, id string) {
	user, _, err := h.viewer(r)
	if err != nil {
		writeError(w, err, "video")
		return
	}
	detail, ok, err := h.Store.GetVideoDetail(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, err, "video")
		return
	}
	if !ok {
		WriteRequestError(w, notFoundError("video"))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type updateVideoRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	CategoryID    *string `json:"categoryId"`
	ClearCategory bool    `json:"clearCategory"`
	Visibility    *string `json:"visibility"`
}

func (h *Handler) updateVideo(w http.ResponseWriter, r *http.Request, id string) {
	user, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	var req updateVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, validationError("invalid request body: %v", err), "video")
		return
	}
	update := storage.VideoUpdate{
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		ClearCategory: req.ClearCategory,
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(w, validationError("title cannot be empty"), "video")
			return
		}
		update.Title = &title
	}
	if req.Visibility != nil {
		visibility := models.Visibility(*req.Visibility)
		if !visibility.Valid() {
			writeError(w, validationError("visibility must be public or private"), "video")
			return
		}
		update.Visibility = &visibility
	}
	video, err := h.Store.UpdateVideo(r.Context(), id, user.ID, update)
	if err != nil {
		writeError(w, err, "video")
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (h *Handler) deleteVideo(w http.ResponseWriter, r *http.Request, id string) {
	user, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	video, err := h.Store.DeleteVideo(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, err, "video")
		return
	}

	// The row is already gone at this point. A failed provider cleanup still
	// surfaces so the operator sees the orphaned asset.
	g, ctx := errgroup.WithContext(r.Context())
	if video.AssetID != "" {
		assetID := video.AssetID
		g.Go(func() error { return h.Media.DeleteAsset(ctx, assetID) })
	}
	if video.ThumbnailKey != "" && h.Thumbnails.Enabled() {
		key := video.ThumbnailKey
		g.Go(func() error { return h.Thumbnails.Delete(ctx, key) })
	}
	if err := g.Wait(); err != nil {
		logging.FromContext(r.Context()).Error("release video resources", "videoId", id, "error", err)
		writeError(w, err, "video")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": video.ID})
}

func (h *Handler) restoreThumbnail(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		WriteRequestError(w, methodNotAllowed("POST"))
		return
	}
	user, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	video, found, err := h.Store.GetVideoOwned(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, err, "video")
		return
	}
	if !found {
		WriteRequestError(w, notFoundError("video"))
		return
	}
	if video.PlaybackID == "" {
		writeError(w, badRequestError("video has no playback asset yet"), "video")
		return
	}

	sourceURL := h.Media.ThumbnailURL(video.PlaybackID)
	thumbnailURL, thumbnailKey := sourceURL, ""
	if h.Thumbnails.Enabled() && sourceURL != "" {
		if video.ThumbnailKey != "" {
			if err := h.Thumbnails.Delete(r.Context(), video.ThumbnailKey); err != nil {
				logging.FromContext(r.Context()).Warn("delete stale thumbnail", "videoId", id, "error", err)
			}
		}
		object, err := h.Thumbnails.UploadFromURL(r.Context(), fmt.Sprintf("thumbnails/%s.jpg", video.ID), sourceURL)
		if err != nil {
			writeError(w, err, "thumbnail")
			return
		}
		thumbnailURL, thumbnailKey = object.URL, object.Key
	}

	updated, err := h.Store.SetVideoThumbnail(r.Context(), id, user.ID, thumbnailURL, thumbnailKey)
	if err != nil {
		writeError(w, err, "video")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request, id string, kind workflow.Kind) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		WriteRequestError(w, methodNotAllowed("POST"))
		return
	}
	user, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	_, found, err := h.Store.GetVideoOwned(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, err, "video")
		return
	}
	if !found {
		WriteRequestError(w, notFoundError("video"))
		return
	}
	runID, err := h.Workflows.Run(r.Context(), kind, id, user.ID)
	if err != nil {
		logging.FromContext(r.Context()).Error("trigger workflow", "kind", kind, "videoId", id, "error", err)
		writeError(w, err, "workflow")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"workflowRunId": runID})
}

func (h *Handler) createView(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		WriteRequestError(w, methodNotAllowed("POST"))
		return
	}
	user, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	view, err := h.Store.CreateView(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, err, "video")
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

type reactionRequest struct {
	Type string `json:"type"`
}

func (h *Handler) reactToVideo(w http.ResponseWriter, r *http.Request, id string) {
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
		writeError(w, validationError("invalid request body: %v", err), "video")
		return
	}
	reaction := models.ReactionType(req.Type)
	if !reaction.Valid() {
		writeError(w, validationError("type must be like or dislike"), "video")
		return
	}
	row, err := h.Store.ReactToVideo(r.Context(), user.ID, id, reaction)
	if err != nil {
		writeError(w, err, "video")
		return
	}
	writeJSON(w, http.StatusOK, map[string]*models.VideoReaction{"reaction": row})
}
