package storage

import (
	"fmt"
	"time"
)

// Page size bounds shared by every list endpoint.
const (
	MinPageSize     = 1
	MaxPageSize     = 100
	DefaultPageSize = 20
)

// NormalizeLimit applies the default for a zero limit and rejects values
// outside [MinPageSize, MaxPageSize] before any query executes.
func NormalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultPageSize, nil
	}
	if limit < MinPageSize || limit > MaxPageSize {
		return 0, fmt.Errorf("limit must be between %d and %d", MinPageSize, MaxPageSize)
	}
	return limit, nil
}

// TimeCursor marks the last-seen row of a page ordered by
// (updatedAt DESC, id DESC).
type TimeCursor struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CountCursor marks the last-seen row of the trending feed, ordered by
// (viewCount DESC, id DESC). The count is recomputed live, so a boundary row
// whose count changes between pages may be skipped or repeated; this is an
// accepted approximation.
type CountCursor struct {
	ID        string `json:"id"`
	ViewCount int64  `json:"viewCount"`
}

// beforeTimeCursor reports whether a row at (updatedAt, id) sorts strictly
// after the cursor position, i.e. belongs on a later page. A nil cursor
// admits every row (first page).
func beforeTimeCursor(cursor *TimeCursor, updatedAt time.Time, id string) bool {
	if cursor == nil {
		return true
	}
	if updatedAt.Before(cursor.UpdatedAt) {
		return true
	}
	return updatedAt.Equal(cursor.UpdatedAt) && id < cursor.ID
}

// beforeCountCursor is beforeTimeCursor for the derived view-count key.
func beforeCountCursor(cursor *CountCursor, viewCount int64, id string) bool {
	if cursor == nil {
		return true
	}
	if viewCount < cursor.ViewCount {
		return true
	}
	return viewCount == cursor.ViewCount && id < cursor.ID
}

// trimPage resolves the limit+1 probe: rows longer than limit means another
// page exists, and the extra row is dropped before the caller derives the
// next cursor from the new final row.
func trimPage[T any](rows []T, limit int) ([]T, bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}
