package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"cliptide/internal/models"
	"cliptide/internal/observability/logging"
	"cliptide/internal/storage"
	"cliptide/internal/workflow"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "Webhook-Signature"

const maxWebhookBody = 1 << 20

// readSignedBody enforces the shared-secret signature when one is
// configured. Webhook producers deliver at least once, so handlers below
// must tolerate replays.
func readSignedBody(w http.ResponseWriter, r *http.Request, secret string) ([]byte, bool) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		WriteRequestError(w, methodNotAllowed("POST"))
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		writeError(w, badRequestError("unreadable request body"), "webhook")
		return nil, false
	}
	r.Body.Close()
	if len(body) > maxWebhookBody {
		writeError(w, badRequestError("request body too large"), "webhook")
		return nil, false
	}
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		want := hex.EncodeToString(mac.Sum(nil))
		got := strings.TrimSpace(r.Header.Get(SignatureHeader))
		if got == "" || !hmac.Equal([]byte(want), []byte(got)) {
			WriteRequestError(w, &RequestError{Status: http.StatusUnauthorized, Code: CodeUnauthenticated, Message: "invalid webhook signature"})
			return nil, false
		}
	}
	return body, true
}

type identityEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		ImageURL       string `json:"image_url"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// IdentityWebhook mirrors identity-provider account events into the users
// table.
func (h *Handler) IdentityWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := readSignedBody(w, r, h.IdentityWebhookSecret)
	if !ok {
		return
	}
	var event identityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, badRequestError("invalid event payload"), "webhook")
		return
	}
	if event.Data.ID == "" {
		writeError(w, badRequestError("event is missing the account id"), "webhook")
		return
	}

	switch event.Type {
	case "user.created", "user.updated":
		name := strings.TrimSpace(strings.TrimSpace(event.Data.FirstName) + " " + strings.TrimSpace(event.Data.LastName))
		if name == "" {
			name = "User"
		}
		email := ""
		if len(event.Data.EmailAddresses) > 0 {
			email = event.Data.EmailAddresses[0].EmailAddress
		}
		if _, err := h.Store.UpsertUser(r.Context(), storage.UpsertUserParams{
			IdentityID: event.Data.ID,
			Name:       name,
			Email:      email,
			AvatarURL:  event.Data.ImageURL,
		}); err != nil {
			writeError(w, err, "user")
			return
		}
	case "user.deleted":
		err := h.Store.DeleteUserByIdentity(r.Context(), event.Data.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			writeError(w, err, "user")
			return
		}
	default:
		logging.FromContext(r.Context()).Debug("rejecting identity event", "type", event.Type)
		writeError(w, badRequestError("unknown event type %q", event.Type), "webhook")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

type mediaEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type mediaAssetData struct {
	ID          string  `json:"id"`
	UploadID    string  `json:"upload_id"`
	Status      string  `json:"status"`
	Duration    float64 `json:"duration"`
	PlaybackIDs []struct {
		ID string `json:"id"`
	} `json:"playback_ids"`
}

type mediaTrackData struct {
	ID      string `json:"id"`
	AssetID string `json:"asset_id"`
	Status  string `json:"status"`
}

// MediaWebhook applies processing-pipeline events to the owning video row,
// correlated by upload id (or asset id for track events). A row that is
// already gone is treated as processed so redeliveries stay 2xx.
func (h *Handler) MediaWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := readSignedBody(w, r, h.MediaWebhookSecret)
	if !ok {
		return
	}
	var event mediaEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, badRequestError("invalid event payload"), "webhook")
		return
	}

	var err error
	switch event.Type {
	case "video.asset.created":
		var data mediaAssetData
		if jsonErr := json.Unmarshal(event.Data, &data); jsonErr != nil || data.UploadID == "" {
			writeError(w, badRequestError("event is missing the upload id"), "webhook")
			return
		}
		err = h.Store.MarkVideoProcessing(r.Context(), data.UploadID, data.ID)
	case "video.asset.ready":
		var data mediaAssetData
		if jsonErr := json.Unmarshal(event.Data, &data); jsonErr != nil || data.UploadID == "" {
			writeError(w, badRequestError("event is missing the upload id"), "webhook")
			return
		}
		if len(data.PlaybackIDs) == 0 {
			writeError(w, badRequestError("ready event is missing a playback id"), "webhook")
			return
		}
		playbackID := data.PlaybackIDs[0].ID
		err = h.Store.MarkVideoReady(r.Context(), data.UploadID, storage.VideoReadyUpdate{
			AssetID:      data.ID,
			PlaybackID:   playbackID,
			ThumbnailURL: h.Media.ThumbnailURL(playbackID),
			PreviewURL:   h.Media.PreviewURL(playbackID),
			DurationMS:   int64(data.Duration * 1000),
		})
	case "video.asset.errored":
		var data mediaAssetData
		if jsonErr := json.Unmarshal(event.Data, &data); jsonErr != nil || data.UploadID == "" {
			writeError(w, badRequestError("event is missing the upload id"), "webhook")
			return
		}
		status := data.Status
		if status == "" {
			status = models.MediaStatusErrored
		}
		err = h.Store.MarkVideoErrored(r.Context(), data.UploadID, status)
	case "video.asset.deleted":
		var data mediaAssetData
		if jsonErr := json.Unmarshal(event.Data, &data); jsonErr != nil || data.UploadID == "" {
			writeError(w, badRequestError("event is missing the upload id"), "webhook")
			return
		}
		err = h.Store.DeleteVideoByUploadID(r.Context(), data.UploadID)
	case "video.asset.track.ready":
		var data mediaTrackData
		if jsonErr := json.Unmarshal(event.Data, &data); jsonErr != nil || data.AssetID == "" {
			writeError(w, badRequestError("event is missing the asset id"), "webhook")
			return
		}
		err = h.Store.SetVideoTrack(r.Context(), data.AssetID, data.ID, data.Status)
	default:
		logging.FromContext(r.Context()).Debug("rejecting media event", "type", event.Type)
		writeError(w, badRequestError("unknown event type %q", event.Type), "webhook")
		return
	}

	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		writeError(w, err, "video")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

type workflowCallback struct {
	VideoID string `json:"videoId"`
	UserID  string `json:"userId"`
	Field   string `json:"field"`
	Value   string `json:"value"`
}

// WorkflowCallback applies a finished generation job's output, scoped to the
// user the job was started for.
func (h *Handler) WorkflowCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		WriteRequestError(w, methodNotAllowed("POST"))
		return
	}
	if h.WorkflowSecret != "" {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !subtleEqual(token, h.WorkflowSecret) {
			WriteRequestError(w, &RequestError{Status: http.StatusUnauthorized, Code: CodeUnauthenticated, Message: "invalid workflow token"})
			return
		}
	}
	var req workflowCallback
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, validationError("invalid request body: %v", err), "workflow")
		return
	}
	value := strings.TrimSpace(req.Value)
	if req.VideoID == "" || req.UserID == "" || value == "" {
		writeError(w, validationError("videoId, userId and value are required"), "workflow")
		return
	}

	var err error
	switch workflow.Kind(req.Field) {
	case workflow.KindTitle:
		_, err = h.Store.SetGeneratedTitle(r.Context(), req.VideoID, req.UserID, value)
	case workflow.KindDescription:
		_, err = h.Store.SetGeneratedDescription(r.Context(), req.VideoID, req.UserID, value)
	default:
		writeError(w, validationError("field must be title or description"), "workflow")
		return
	}
	if err != nil {
		writeError(w, err, "video")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func subtleEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
