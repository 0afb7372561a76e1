package storage

import "errors"

// Sentinel errors handlers map onto the API error taxonomy.
var (
	// ErrNotFound covers both genuinely missing rows and ownership-scoped
	// mutations that matched zero rows. The two cases are deliberately
	// indistinguishable so callers cannot probe for other users' resources.
	ErrNotFound = errors.New("not found")

	// ErrSelfSubscription rejects a viewer subscribing to themselves.
	ErrSelfSubscription = errors.New("cannot subscribe to yourself")

	// ErrReplyDepth rejects a reply whose parent is itself a reply; the
	// comment tree is capped at depth two.
	ErrReplyDepth = errors.New("cannot reply to a reply")

	// ErrParentMismatch rejects a reply whose parent belongs to another video.
	ErrParentMismatch = errors.New("parent comment belongs to a different video")

	// ErrUnknownCategory rejects a video update that references a category
	// that does not exist.
	ErrUnknownCategory = errors.New("unknown category")
)
