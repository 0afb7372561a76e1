package api

import (
	"net/http"
	"strings"

	"cliptide/internal/models"
	"cliptide/internal/storage"
)

type studioPageResponse struct {
	Items      []models.StudioVideo `json:"items"`
	NextCursor *string              `json:"nextCursor"`
}

// StudioVideos handles GET /api/studio/videos: the owner's dashboard across
// all visibilities.
func (h *Handler) StudioVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		WriteRequestError(w, methodNotAllowed("GET"))
		return
	}
	user, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
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
	page, err := h.Store.ListStudioVideos(r.Context(), storage.StudioListParams{
		OwnerID: user.ID,
		Cursor:  cursor,
		Limit:   limit,
	})
	if err != nil {
		writeError(w, err, "videos")
		return
	}
	writeJSON(w, http.StatusOK, studioPageResponse{Items: page.Items, NextCursor: timeCursorToken(page.NextCursor)})
}

// StudioVideoByID handles GET /api/studio/videos/{id}: a single owned row,
// drafts included.
func (h *Handler) StudioVideoByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		WriteRequestError(w, methodNotAllowed("GET"))
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/studio/videos/"), "/")
	if id == "" || strings.Contains(id, "/") {
		WriteRequestError(w, notFoundError("video"))
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
	writeJSON(w, http.StatusOK, video)
}
