package models

import "time"

// ReactionType is the kind of reaction a viewer can leave on a video or
// comment. A viewer holds at most one reaction per target; like and dislike
// are mutually exclusive.
type ReactionType string

const (
	ReactionLike    ReactionType = "like"
	ReactionDislike ReactionType = "dislike"
)

// Valid reports whether the value is a known reaction type.
func (t ReactionType) Valid() bool {
	return t == ReactionLike || t == ReactionDislike
}

// Visibility controls whether a video appears in public listings.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether the value is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Media processing states reported by the external pipeline. The happy path
// is waiting -> processing -> ready; errored can follow waiting or
// processing. Deletion is allowed from any state.
const (
	MediaStatusWaiting    = "waiting"
	MediaStatusProcessing = "processing"
	MediaStatusReady      = "ready"
	MediaStatusErrored    = "errored"
)

// User mirrors an account owned by the external identity provider. Rows are
// created and removed exclusively by the identity sync webhook, keyed by
// IdentityID.
type User struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identityId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	AvatarURL  string    `json:"avatarUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Category is immutable reference data seeded once at startup.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Video is the central entity. UpdatedAt is the pagination sort key for the
// feed, search, and studio listings and must never move backwards: every
// mutation, including asynchronous pipeline updates, bumps it.
type Video struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"ownerId"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Visibility   Visibility `json:"visibility"`
	CategoryID   *string    `json:"categoryId,omitempty"`
	MediaStatus  string     `json:"mediaStatus"`
	UploadID     string     `json:"uploadId,omitempty"`
	AssetID      string     `json:"assetId,omitempty"`
	PlaybackID   string     `json:"playbackId,omitempty"`
	TrackID      string     `json:"trackId,omitempty"`
	TrackStatus  string     `json:"trackStatus,omitempty"`
	ThumbnailURL string     `json:"thumbnailUrl,omitempty"`
	ThumbnailKey string     `json:"thumbnailKey,omitempty"`
	PreviewURL   string     `json:"previewUrl,omitempty"`
	DurationMS   int64      `json:"durationMs,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Comment is a flat row in a depth-bounded tree: ParentID nil means
// top-level, non-nil means reply, and a reply's parent is always top-level.
type Comment struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	AuthorID  string    `json:"authorId"`
	ParentID  *string   `json:"parentId,omitempty"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VideoReaction is keyed by (UserID, VideoID); at most one row per pair.
type VideoReaction struct {
	UserID    string       `json:"userId"`
	VideoID   string       `json:"videoId"`
	Type      ReactionType `json:"type"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// CommentReaction is keyed by (UserID, CommentID); at most one row per pair.
type CommentReaction struct {
	UserID    string       `json:"userId"`
	CommentID string       `json:"commentId"`
	Type      ReactionType `json:"type"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// View is keyed by (UserID, VideoID); repeat plays do not add rows.
type View struct {
	UserID    string    `json:"userId"`
	VideoID   string    `json:"videoId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscription is keyed by (ViewerID, CreatorID). ViewerID never equals
// CreatorID.
type Subscription struct {
	ViewerID  string    `json:"viewerId"`
	CreatorID string    `json:"creatorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// VideoSummary is a feed/search/trending row: the video, its owner, and the
// derived counts computed by the aggregation layer.
type VideoSummary struct {
	Video
	User         User  `json:"user"`
	ViewCount    int64 `json:"viewCount"`
	LikeCount    int64 `json:"likeCount"`
	DislikeCount int64 `json:"dislikeCount"`
}

// StudioVideo is a dashboard row for the owner: no viewer scoping, but an
// additional comment count.
type StudioVideo struct {
	Video
	ViewCount    int64 `json:"viewCount"`
	CommentCount int64 `json:"commentCount"`
	LikeCount    int64 `json:"likeCount"`
}

// Creator is the video owner as seen on the detail view, including the
// requesting viewer's subscription state.
type Creator struct {
	User
	SubscriberCount  int64 `json:"subscriberCount"`
	ViewerSubscribed bool  `json:"viewerSubscribed"`
}

// VideoDetail is the single-video view with every derived field. For
// anonymous viewers ViewerReaction is nil and ViewerSubscribed is false; the
// result shape is identical either way.
type VideoDetail struct {
	Video
	User           Creator       `json:"user"`
	ViewCount      int64         `json:"viewCount"`
	LikeCount      int64         `json:"likeCount"`
	DislikeCount   int64         `json:"dislikeCount"`
	ViewerReaction *ReactionType `json:"viewerReaction"`
}

// CommentRow is a comment listing row. ReplyCount is only meaningful for
// top-level comments; the depth cap means replies never carry one.
type CommentRow struct {
	Comment
	User           User          `json:"user"`
	LikeCount      int64         `json:"likeCount"`
	DislikeCount   int64         `json:"dislikeCount"`
	ReplyCount     int64         `json:"replyCount"`
	ViewerReaction *ReactionType `json:"viewerReaction"`
}
