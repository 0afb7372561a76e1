package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"cliptide/internal/storage"
)

// Cursors cross the wire as base64url-encoded JSON. Clients treat them as
// opaque tokens; only the shape of the decoded payload is validated here,
// the position itself is interpreted by the storage layer.

func encodeCursor(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(token string, dest any) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return validationError("malformed cursor")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return validationError("malformed cursor")
	}
	return nil
}

func timeCursorParam(r *http.Request) (*storage.TimeCursor, error) {
	token := r.URL.Query().Get("cursor")
	if token == "" {
		return nil, nil
	}
	var cursor storage.TimeCursor
	if err := decodeCursor(token, &cursor); err != nil {
		return nil, err
	}
	if cursor.ID == "" || cursor.UpdatedAt.IsZero() {
		return nil, validationError("malformed cursor")
	}
	return &cursor, nil
}

func countCursorParam(r *http.Request) (*storage.CountCursor, error) {
	token := r.URL.Query().Get("cursor")
	if token == "" {
		return nil, nil
	}
	var cursor storage.CountCursor
	if err := decodeCursor(token, &cursor); err != nil {
		return nil, err
	}
	if cursor.ID == "" || cursor.ViewCount < 0 {
		return nil, validationError("malformed cursor")
	}
	return &cursor, nil
}

func timeCursorToken(cursor *storage.TimeCursor) *string {
	if cursor == nil {
		return nil
	}
	token := encodeCursor(cursor)
	return &token
}

func countCursorToken(cursor *storage.CountCursor) *string {
	if cursor == nil {
		return nil
	}
	token := encodeCursor(cursor)
	return &token
}

// limitParam parses the limit query parameter; zero means "use the default"
// and is range-checked by the storage layer.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validationError("limit must be an integer")
	}
	if limit < storage.MinPageSize || limit > storage.MaxPageSize {
		return 0, validationError("limit must be between %d and %d", storage.MinPageSize, storage.MaxPageSize)
	}
	return limit, nil
}
