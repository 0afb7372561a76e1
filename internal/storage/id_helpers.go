package storage

import "github.com/google/uuid"

// newID returns a random UUID string. Entity ids double as the pagination
// tie-breaker, so they must be unique and totally ordered; canonical UUID
// text compares consistently in both Go and Postgres.
func newID() string {
	return uuid.NewString()
}
