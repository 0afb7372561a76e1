package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"cliptide/internal/media"
	"cliptide/internal/objectstore"
	"cliptide/internal/storage"
	"cliptide/internal/workflow"
)

// Handler carries the dependencies shared by every endpoint.
type Handler struct {
	Store      storage.Repository
	Media      media.Controller
	Workflows  workflow.Trigger
	Thumbnails objectstore.Client

	// Shared secrets for the inbound event endpoints. An empty secret
	// disables signature checking for that endpoint.
	IdentityWebhookSecret string
	MediaWebhookSecret    string
	WorkflowSecret        string
}

// NewHandler wires a handler with no-op external services; callers override
// the fields they have real clients for.
func NewHandler(store storage.Repository) *Handler {
	return &Handler{
		Store:      store,
		Media:      media.NoopController{},
		Workflows:  workflow.NoopTrigger{},
		Thumbnails: objectstore.New(objectstore.Config{}),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// Health reports process liveness plus datastore reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.Store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}
