package api

import (
	"net/http"
	"strings"

	"cliptide/internal/storage"
)

// Subscriptions handles POST /api/subscriptions.
func (h *Handler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		WriteRequestError(w, methodNotAllowed("POST"))
		return
	}
	user, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	var req struct {
		CreatorID string `json:"creatorId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, validationError("invalid request body: %v", err), "subscription")
		return
	}
	if strings.TrimSpace(req.CreatorID) == "" {
		writeError(w, validationError("creatorId is required"), "subscription")
		return
	}
	subscription, err := h.Store.CreateSubscription(r.Context(), user.ID, req.CreatorID)
	if err != nil {
		writeError(w, err, "creator")
		return
	}
	writeJSON(w, http.StatusCreated, subscription)
}

// SubscriptionByCreator handles DELETE /api/subscriptions/{creatorId}.
func (h *Handler) SubscriptionByCreator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", "DELETE")
		WriteRequestError(w, methodNotAllowed("DELETE"))
		return
	}
	creatorID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/subscriptions/"), "/")
	if creatorID == "" || strings.Contains(creatorID, "/") {
		WriteRequestError(w, notFoundError("subscription"))
		return
	}
	user, ok := h.requireViewer(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteSubscription(r.Context(), user.ID, creatorID); err != nil {
		writeError(w, err, "subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"creatorId": creatorID})
}

// SubscriptionFeed handles GET /api/feed/subscriptions.
func (h *Handler) SubscriptionFeed(w http.ResponseWriter, r *http.Request) {
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
		writeError(w, err, "feed")
		return
	}
	cursor, err := timeCursorParam(r)
	if err != nil {
		writeError(w, err, "feed")
		return
	}
	page, err := h.Store.ListSubscriptionFeed(r.Context(), storage.SubscriptionFeedParams{
		ViewerID: user.ID,
		Cursor:   cursor,
		Limit:    limit,
	})
	if err != nil {
		writeError(w, err, "feed")
		return
	}
	writeJSON(w, http.StatusOK, videoPageResponse{Items: page.Items, NextCursor: timeCursorToken(page.NextCursor)})
}
