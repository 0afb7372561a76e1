package storage

import (
	"context"

	"cliptide/internal/models"
)

// UpsertUserParams carries an identity-provider sync event payload.
type UpsertUserParams struct {
	IdentityID string
	Name       string
	Email      string
	AvatarURL  string
}

// CreateVideoParams inserts the initial row for a freshly requested upload
// slot. Visibility starts private and media status starts waiting.
type CreateVideoParams struct {
	OwnerID  string
	Title    string
	UploadID string
}

// VideoUpdate is a partial update; nil fields are left untouched.
type VideoUpdate struct {
	Title         *string
	Description   *string
	CategoryID    *string
	ClearCategory bool
	Visibility    *models.Visibility
}

// VideoReadyUpdate applies a pipeline ready event correlated by upload id.
type VideoReadyUpdate struct {
	AssetID      string
	PlaybackID   string
	ThumbnailURL string
	PreviewURL   string
	DurationMS   int64
}

// VideoListParams drives the public feed and search listings. Query is a
// case-insensitive substring match on the title; empty means no filter.
type VideoListParams struct {
	Query      string
	CategoryID *string
	Cursor     *TimeCursor
	Limit      int
}

// TrendingListParams drives the trending feed, sorted by live view count.
type TrendingListParams struct {
	Cursor *CountCursor
	Limit  int
}

// StudioListParams drives the owner dashboard; no visibility filter.
type StudioListParams struct {
	OwnerID string
	Cursor  *TimeCursor
	Limit   int
}

// SubscriptionFeedParams lists public videos from creators the viewer is
// subscribed to.
type SubscriptionFeedParams struct {
	ViewerID string
	Cursor   *TimeCursor
	Limit    int
}

// CommentListParams drives threaded comment listings: a nil ParentID selects
// top-level comments only, a non-nil ParentID selects that thread's replies.
// ViewerID may be empty for anonymous requests.
type CommentListParams struct {
	VideoID  string
	ParentID *string
	ViewerID string
	Cursor   *TimeCursor
	Limit    int
}

// CreateCommentParams inserts a comment or a reply.
type CreateCommentParams struct {
	VideoID  string
	AuthorID string
	ParentID *string
	Value    string
}

// VideoPage is a page of feed rows plus the cursor for the next page, if any.
type VideoPage struct {
	Items      []models.VideoSummary `json:"items"`
	NextCursor *TimeCursor           `json:"nextCursor,omitempty"`
}

// TrendingPage is VideoPage with a view-count cursor.
type TrendingPage struct {
	Items      []models.VideoSummary `json:"items"`
	NextCursor *CountCursor          `json:"nextCursor,omitempty"`
}

// StudioPage is a page of dashboard rows.
type StudioPage struct {
	Items      []models.StudioVideo `json:"items"`
	NextCursor *TimeCursor          `json:"nextCursor,omitempty"`
}

// CommentPage is a page of comment rows. The total comment count for the
// video is fetched by a separate query, independent of the cursor window.
type CommentPage struct {
	Items      []models.CommentRow `json:"items"`
	NextCursor *TimeCursor         `json:"nextCursor,omitempty"`
}

// Repository exposes the datastore operations required by the API handlers.
// Every ownership-scoped mutation folds the owner check into the statement's
// predicate and reports ErrNotFound when zero rows match.
type Repository interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	// Identity sync.
	UpsertUser(ctx context.Context, params UpsertUserParams) (models.User, error)
	DeleteUserByIdentity(ctx context.Context, identityID string) error
	UserByIdentity(ctx context.Context, identityID string) (models.User, bool, error)

	// Reference data.
	ListCategories(ctx context.Context) ([]models.Category, error)
	SeedCategories(ctx context.Context, names []string) error
	GetCategory(ctx context.Context, id string) (models.Category, bool, error)

	// Videos.
	CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error)
	GetVideo(ctx context.Context, id string) (models.Video, bool, error)
	GetVideoOwned(ctx context.Context, id, ownerID string) (models.Video, bool, error)
	GetVideoDetail(ctx context.Context, id, viewerID string) (models.VideoDetail, bool, error)
	UpdateVideo(ctx context.Context, id, ownerID string, update VideoUpdate) (models.Video, error)
	DeleteVideo(ctx context.Context, id, ownerID string) (models.Video, error)
	SetVideoThumbnail(ctx context.Context, id, ownerID, thumbnailURL, thumbnailKey string) (models.Video, error)
	SetGeneratedTitle(ctx context.Context, id, ownerID, title string) (models.Video, error)
	SetGeneratedDescription(ctx context.Context, id, ownerID, description string) (models.Video, error)

	// Listings.
	ListVideos(ctx context.Context, params VideoListParams) (VideoPage, error)
	ListTrendingVideos(ctx context.Context, params TrendingListParams) (TrendingPage, error)
	ListStudioVideos(ctx context.Context, params StudioListParams) (StudioPage, error)
	ListSubscriptionFeed(ctx context.Context, params SubscriptionFeedParams) (VideoPage, error)

	// Media pipeline events, correlated by upload id or asset id. Handlers
	// are idempotent under at-least-once delivery.
	MarkVideoProcessing(ctx context.Context, uploadID, assetID string) error
	MarkVideoReady(ctx context.Context, uploadID string, update VideoReadyUpdate) error
	MarkVideoErrored(ctx context.Context, uploadID, status string) error
	SetVideoTrack(ctx context.Context, assetID, trackID, trackStatus string) error
	DeleteVideoByUploadID(ctx context.Context, uploadID string) error

	// Comments.
	CreateComment(ctx context.Context, params CreateCommentParams) (models.Comment, error)
	DeleteComment(ctx context.Context, id, authorID string) error
	ListComments(ctx context.Context, params CommentListParams) (CommentPage, error)
	CountComments(ctx context.Context, videoID string) (int64, error)

	// Reactions and views. React* returns nil when the call toggled an
	// existing same-type reaction off.
	ReactToVideo(ctx context.Context, userID, videoID string, reaction models.ReactionType) (*models.VideoReaction, error)
	ReactToComment(ctx context.Context, userID, commentID string, reaction models.ReactionType) (*models.CommentReaction, error)
	CreateView(ctx context.Context, userID, videoID string) (models.View, error)

	// Subscriptions.
	CreateSubscription(ctx context.Context, viewerID, creatorID string) (models.Subscription, error)
	DeleteSubscription(ctx context.Context, viewerID, creatorID string) error
}

var _ Repository = (*Storage)(nil)
