package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"cliptide/internal/models"
)

type dataset struct {
	Users            map[string]models.User                       `json:"users"`
	Categories       map[string]models.Category                   `json:"categories"`
	Videos           map[string]models.Video                      `json:"videos"`
	Comments         map[string]models.Comment                    `json:"comments"`
	VideoReactions   map[string]map[string]models.VideoReaction   `json:"videoReactions"`
	CommentReactions map[string]map[string]models.CommentReaction `json:"commentReactions"`
	Views            map[string]map[string]models.View            `json:"views"`
	Subscriptions    map[string]map[string]models.Subscription    `json:"subscriptions"`
}

func newDataset() dataset {
	return dataset{
		Users:            make(map[string]models.User),
		Categories:       make(map[string]models.Category),
		Videos:           make(map[string]models.Video),
		Comments:         make(map[string]models.Comment),
		VideoReactions:   make(map[string]map[string]models.VideoReaction),
		CommentReactions: make(map[string]map[string]models.CommentReaction),
		Views:            make(map[string]map[string]models.View),
		Subscriptions:    make(map[string]map[string]models.Subscription),
	}
}

// Storage is the JSON-file-backed in-memory repository. It mirrors the
// Postgres repository's semantics exactly, including cascade behaviour, and
// serves as the substrate for unit tests and single-node deployments.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
	clock           func() time.Time
}

// NewStorage opens (or creates) a JSON datastore at the given path. An empty
// path keeps the dataset purely in memory.
func NewStorage(filePath string, opts ...Option) (*Storage, error) {
	store := &Storage{
		filePath: filePath,
		data:     newDataset(),
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt.applyMemory(store)
	}
	if filePath != "" {
		if err := store.load(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *Storage) load() error {
	raw, err := os.ReadFile(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read datastore: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	var data dataset
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decode datastore: %w", err)
	}
	s.data = data
	s.ensureDatasetInitializedLocked()
	return nil
}

func (s *Storage) ensureDatasetInitializedLocked() {
	if s.data.Users == nil {
		s.data.Users = make(map[string]models.User)
	}
	if s.data.Categories == nil {
		s.data.Categories = make(map[string]models.Category)
	}
	if s.data.Videos == nil {
		s.data.Videos = make(map[string]models.Video)
	}
	if s.data.Comments == nil {
		s.data.Comments = make(map[string]models.Comment)
	}
	if s.data.VideoReactions == nil {
		s.data.VideoReactions = make(map[string]map[string]models.VideoReaction)
	}
	if s.data.CommentReactions == nil {
		s.data.CommentReactions = make(map[string]map[string]models.CommentReaction)
	}
	if s.data.Views == nil {
		s.data.Views = make(map[string]map[string]models.View)
	}
	if s.data.Subscriptions == nil {
		s.data.Subscriptions = make(map[string]map[string]models.Subscription)
	}
}

func (s *Storage) persistLocked() error {
	if s.persistOverride != nil {
		return s.persistOverride(s.data)
	}
	if s.filePath == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode datastore: %w", err)
	}
	dir := filepath.Dir(s.filePath)
	tmp, err := os.CreateTemp(dir, ".cliptide-*")
	if err != nil {
		return fmt.Errorf("create datastore temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write datastore: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close datastore temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace datastore: %w", err)
	}
	return nil
}

func (s *Storage) now() time.Time {
	return s.clock()
}

// Ping implements Repository; the in-memory store is always reachable.
func (s *Storage) Ping(context.Context) error { return nil }

// Close implements Repository.
func (s *Storage) Close(context.Context) error { return nil }

// SnapshotCounts summarizes a loaded dataset, mainly for migration
// reporting.
type SnapshotCounts struct {
	Users            int
	Categories       int
	Videos           int
	Comments         int
	VideoReactions   int
	CommentReactions int
	Views            int
	Subscriptions    int
}

func (s *Storage) Counts() SnapshotCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := SnapshotCounts{
		Users:      len(s.data.Users),
		Categories: len(s.data.Categories),
		Videos:     len(s.data.Videos),
		Comments:   len(s.data.Comments),
	}
	for _, reactions := range s.data.VideoReactions {
		counts.VideoReactions += len(reactions)
	}
	for _, reactions := range s.data.CommentReactions {
		counts.CommentReactions += len(reactions)
	}
	for _, views := range s.data.Views {
		counts.Views += len(views)
	}
	for _, subscribers := range s.data.Subscriptions {
		counts.Subscriptions += len(subscribers)
	}
	return counts
}

// --- identity sync ---

// UpsertUser mirrors an identity-provider account, keyed by its external id.
func (s *Storage) UpsertUser(_ context.Context, params UpsertUserParams) (models.User, error) {
	if strings.TrimSpace(params.IdentityID) == "" {
		return models.User{}, fmt.Errorf("identity id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, user := range s.data.Users {
		if user.IdentityID != params.IdentityID {
			continue
		}
		user.Name = params.Name
		user.Email = params.Email
		user.AvatarURL = params.AvatarURL
		user.UpdatedAt = now
		s.data.Users[id] = user
		if err := s.persistLocked(); err != nil {
			return models.User{}, err
		}
		return user, nil
	}
	user := models.User{
		ID:         newID(),
		IdentityID: params.IdentityID,
		Name:       params.Name,
		Email:      params.Email,
		AvatarURL:  params.AvatarURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.data.Users[user.ID] = user
	if err := s.persistLocked(); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// DeleteUserByIdentity removes the mirrored user and everything they own.
func (s *Storage) DeleteUserByIdentity(_ context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, user := range s.data.Users {
		if user.IdentityID != identityID {
			continue
		}
		s.deleteUserCascadeLocked(id)
		return s.persistLocked()
	}
	return ErrNotFound
}

func (s *Storage) deleteUserCascadeLocked(userID string) {
	for videoID, video := range s.data.Videos {
		if video.OwnerID == userID {
			s.deleteVideoCascadeLocked(videoID)
		}
	}
	for commentID, comment := range s.data.Comments {
		if comment.AuthorID == userID {
			s.deleteCommentCascadeLocked(commentID)
		}
	}
	for videoID, byUser := range s.data.VideoReactions {
		delete(byUser, userID)
		if len(byUser) == 0 {
			delete(s.data.VideoReactions, videoID)
		}
	}
	for commentID, byUser := range s.data.CommentReactions {
		delete(byUser, userID)
		if len(byUser) == 0 {
			delete(s.data.CommentReactions, commentID)
		}
	}
	for videoID, byUser := range s.data.Views {
		delete(byUser, userID)
		if len(byUser) == 0 {
			delete(s.data.Views, videoID)
		}
	}
	delete(s.data.Subscriptions, userID)
	for creatorID, byViewer := range s.data.Subscriptions {
		delete(byViewer, userID)
		if len(byViewer) == 0 {
			delete(s.data.Subscriptions, creatorID)
		}
	}
	delete(s.data.Users, userID)
}

// UserByIdentity resolves an external identity to the mirrored user. Absence
// means an anonymous viewer, not an error.
func (s *Storage) UserByIdentity(_ context.Context, identityID string) (models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.data.Users {
		if user.IdentityID == identityID {
			return user, true, nil
		}
	}
	return models.User{}, false, nil
}

// --- categories ---

// ListCategories returns all categories sorted by name.
func (s *Storage) ListCategories(context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	categories := make([]models.Category, 0, len(s.data.Categories))
	for _, category := range s.data.Categories {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

// SeedCategories inserts the reference categories when none exist yet.
func (s *Storage) SeedCategories(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data.Categories) > 0 {
		return nil
	}
	now := s.now()
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		category := models.Category{
			ID:        newID(),
			Name:      trimmed,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.data.Categories[category.ID] = category
	}
	return s.persistLocked()
}

// GetCategory looks up a category by id.
func (s *Storage) GetCategory(_ context.Context, id string) (models.Category, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.data.Categories[id]
	return category, ok, nil
}

// --- videos ---

// CreateVideo inserts the initial private row for a new upload slot.
func (s *Storage) CreateVideo(_ context.Context, params CreateVideoParams) (models.Video, error) {
	if params.OwnerID == "" {
		return models.Video{}, fmt.Errorf("owner id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Users[params.OwnerID]; !ok {
		return models.Video{}, ErrNotFound
	}
	now := s.now()
	video := models.Video{
		ID:          newID(),
		OwnerID:     params.OwnerID,
		Title:       params.Title,
		Visibility:  models.VisibilityPrivate,
		MediaStatus: models.MediaStatusWaiting,
		UploadID:    params.UploadID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.data.Videos[video.ID] = video
	if err := s.persistLocked(); err != nil {
		return models.Video{}, err
	}
	return video, nil
}

// GetVideo fetches a raw video row without viewer scoping.
func (s *Storage) GetVideo(_ context.Context, id string) (models.Video, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.data.Videos[id]
	return video, ok, nil
}

// GetVideoOwned fetches a video only when the given user owns it.
func (s *Storage) GetVideoOwned(_ context.Context, id, ownerID string) (models.Video, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.data.Videos[id]
	if !ok || video.OwnerID != ownerID {
		return models.Video{}, false, nil
	}
	return video, true, nil
}

// UpdateVideo applies a partial update scoped to the owner. Zero matched
// rows, whether missing or foreign, surface as ErrNotFound.
func (s *Storage) UpdateVideo(_ context.Context, id, ownerID string, update VideoUpdate) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.data.Videos[id]
	if !ok || video.OwnerID != ownerID {
		return models.Video{}, ErrNotFound
	}
	if update.Visibility != nil && !update.Visibility.Valid() {
		return models.Video{}, fmt.Errorf("invalid visibility %q", *update.Visibility)
	}
	if update.CategoryID != nil {
		if _, ok := s.data.Categories[*update.CategoryID]; !ok {
			return models.Video{}, ErrUnknownCategory
		}
	}
	if update.Title != nil {
		video.Title = *update.Title
	}
	if update.Description != nil {
		video.Description = *update.Description
	}
	if update.ClearCategory {
		video.CategoryID = nil
	} else if update.CategoryID != nil {
		category := *update.CategoryID
		video.CategoryID = &category
	}
	if update.Visibility != nil {
		video.Visibility = *update.Visibility
	}
	video.UpdatedAt = s.now()
	s.data.Videos[id] = video
	if err := s.persistLocked(); err != nil {
		return models.Video{}, err
	}
	return video, nil
}

// DeleteVideo removes a video and its dependents, scoped to the owner. The
// deleted row is returned so the caller can release the external media asset.
func (s *Storage) DeleteVideo(_ context.Context, id, ownerID string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.data.Videos[id]
	if !ok || video.OwnerID != ownerID {
		return models.Video{}, ErrNotFound
	}
	s.deleteVideoCascadeLocked(id)
	if err := s.persistLocked(); err != nil {
		return models.Video{}, err
	}
	return video, nil
}

func (s *Storage) deleteVideoCascadeLocked(videoID string) {
	for commentID, comment := range s.data.Comments {
		if comment.VideoID == videoID {
			delete(s.data.CommentReactions, commentID)
			delete(s.data.Comments, commentID)
		}
	}
	delete(s.data.VideoReactions, videoID)
	delete(s.data.Views, videoID)
	delete(s.data.Videos, videoID)
}

// SetVideoThumbnail records a new thumbnail object, scoped to the owner.
func (s *Storage) SetVideoThumbnail(_ context.Context, id, ownerID, thumbnailURL, thumbnailKey string) (models.Video, error) {
	return s.updateOwnedLocked(id, ownerID, func(video *models.Video) {
		video.ThumbnailURL = thumbnailURL
		video.ThumbnailKey = thumbnailKey
	})
}

// SetGeneratedTitle applies a workflow-generated title, scoped to the owner.
func (s *Storage) SetGeneratedTitle(_ context.Context, id, ownerID, title string) (models.Video, error) {
	return s.updateOwnedLocked(id, ownerID, func(video *models.Video) {
		video.Title = title
	})
}

// SetGeneratedDescription applies a workflow-generated description, scoped
// to the owner.
func (s *Storage) SetGeneratedDescription(_ context.Context, id, ownerID, description string) (models.Video, error) {
	return s.updateOwnedLocked(id, ownerID, func(video *models.Video) {
		video.Description = description
	})
}

func (s *Storage) updateOwnedLocked(id, ownerID string, apply func(*models.Video)) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.data.Videos[id]
	if !ok || video.OwnerID != ownerID {
		return models.Video{}, ErrNotFound
	}
	apply(&video)
	video.UpdatedAt = s.now()
	s.data.Videos[id] = video
	if err := s.persistLocked(); err != nil {
		return models.Video{}, err
	}
	return video, nil
}

// --- media pipeline events ---

// MarkVideoProcessing applies an asset-created event keyed by upload id.
func (s *Storage) MarkVideoProcessing(_ context.Context, uploadID, assetID string) error {
	return s.updateByUploadIDLocked(uploadID, func(video *models.Video) {
		video.MediaStatus = models.MediaStatusProcessing
		video.AssetID = assetID
	})
}

// MarkVideoReady applies an asset-ready event keyed by upload id.
func (s *Storage) MarkVideoReady(_ context.Context, uploadID string, update VideoReadyUpdate) error {
	return s.updateByUploadIDLocked(uploadID, func(video *models.Video) {
		video.MediaStatus = models.MediaStatusReady
		video.AssetID = update.AssetID
		video.PlaybackID = update.PlaybackID
		if video.ThumbnailKey == "" {
			video.ThumbnailURL = update.ThumbnailURL
		}
		video.PreviewURL = update.PreviewURL
		video.DurationMS = update.DurationMS
	})
}

// MarkVideoErrored applies an asset-errored event keyed by upload id.
func (s *Storage) MarkVideoErrored(_ context.Context, uploadID, status string) error {
	return s.updateByUploadIDLocked(uploadID, func(video *models.Video) {
		video.MediaStatus = status
	})
}

// SetVideoTrack applies a subtitle-track event keyed by asset id.
func (s *Storage) SetVideoTrack(_ context.Context, assetID, trackID, trackStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, video := range s.data.Videos {
		if video.AssetID != assetID {
			continue
		}
		video.TrackID = trackID
		video.TrackStatus = trackStatus
		video.UpdatedAt = s.now()
		s.data.Videos[id] = video
		return s.persistLocked()
	}
	return ErrNotFound
}

// DeleteVideoByUploadID removes the row for a pipeline-deleted asset.
func (s *Storage) DeleteVideoByUploadID(_ context.Context, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, video := range s.data.Videos {
		if video.UploadID != uploadID {
			continue
		}
		s.deleteVideoCascadeLocked(id)
		return s.persistLocked()
	}
	return ErrNotFound
}

func (s *Storage) updateByUploadIDLocked(uploadID string, apply func(*models.Video)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, video := range s.data.Videos {
		if video.UploadID != uploadID {
			continue
		}
		apply(&video)
		video.UpdatedAt = s.now()
		s.data.Videos[id] = video
		return s.persistLocked()
	}
	return ErrNotFound
}

// --- aggregation helpers ---

func (s *Storage) viewCountLocked(videoID string) int64 {
	return int64(len(s.data.Views[videoID]))
}

func (s *Storage) videoReactionCountLocked(videoID string, reaction models.ReactionType) int64 {
	var count int64
	for _, r := range s.data.VideoReactions[videoID] {
		if r.Type == reaction {
			count++
		}
	}
	return count
}

func (s *Storage) commentReactionCountLocked(commentID string, reaction models.ReactionType) int64 {
	var count int64
	for _, r := range s.data.CommentReactions[commentID] {
		if r.Type == reaction {
			count++
		}
	}
	return count
}

func (s *Storage) replyCountLocked(commentID string) int64 {
	var count int64
	for _, comment := range s.data.Comments {
		if comment.ParentID != nil && *comment.ParentID == commentID {
			count++
		}
	}
	return count
}

func (s *Storage) subscriberCountLocked(creatorID string) int64 {
	return int64(len(s.data.Subscriptions[creatorID]))
}

func (s *Storage) videoSummaryLocked(video models.Video) models.VideoSummary {
	return models.VideoSummary{
		Video:        video,
		User:         s.data.Users[video.OwnerID],
		ViewCount:    s.viewCountLocked(video.ID),
		LikeCount:    s.videoReactionCountLocked(video.ID, models.ReactionLike),
		DislikeCount: s.videoReactionCountLocked(video.ID, models.ReactionDislike),
	}
}

// --- listings ---

func matchesQuery(title, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(query))
}

// ListVideos returns a page of the public feed, optionally filtered by
// category and case-insensitive title substring.
func (s *Storage) ListVideos(_ context.Context, params VideoListParams) (VideoPage, error) {
	limit, err := NormalizeLimit(params.Limit)
	if err != nil {
		return VideoPage{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]models.Video, 0)
	for _, video := range s.data.Videos {
		if video.Visibility != models.VisibilityPublic {
			continue
		}
		if params.CategoryID != nil && (video.CategoryID == nil || *video.CategoryID != *params.CategoryID) {
			continue
		}
		if !matchesQuery(video.Title, params.Query) {
			continue
		}
		if !beforeTimeCursor(params.Cursor, video.UpdatedAt, video.ID) {
			continue
		}
		candidates = append(candidates, video)
	}
	sortVideosByUpdatedAt(candidates)
	if len(candidates) > limit+1 {
		candidates = candidates[:limit+1]
	}

	rows, hasMore := trimPage(candidates, limit)
	items := make([]models.VideoSummary, 0, len(rows))
	for _, video := range rows {
		items = append(items, s.videoSummaryLocked(video))
	}
	page := VideoPage{Items: items}
	if hasMore {
		last := rows[len(rows)-1]
		page.NextCursor = &TimeCursor{ID: last.ID, UpdatedAt: last.UpdatedAt}
	}
	return page, nil
}

// ListTrendingVideos returns the public feed ordered by live view count.
func (s *Storage) ListTrendingVideos(_ context.Context, params TrendingListParams) (TrendingPage, error) {
	limit, err := NormalizeLimit(params.Limit)
	if err != nil {
		return TrendingPage{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type ranked struct {
		video models.Video
		views int64
	}
	candidates := make([]ranked, 0)
	for _, video := range s.data.Videos {
		if video.Visibility != models.VisibilityPublic {
			continue
		}
		views := s.viewCountLocked(video.ID)
		if !beforeCountCursor(params.Cursor, views, video.ID) {
			continue
		}
		candidates = append(candidates, ranked{video: video, views: views})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].views != candidates[j].views {
			return candidates[i].views > candidates[j].views
		}
		return candidates[i].video.ID > candidates[j].video.ID
	})
	if len(candidates) > limit+1 {
		candidates = candidates[:limit+1]
	}

	rows, hasMore := trimPage(candidates, limit)
	items := make([]models.VideoSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, s.videoSummaryLocked(row.video))
	}
	page := TrendingPage{Items: items}
	if hasMore {
		last := rows[len(rows)-1]
		page.NextCursor = &CountCursor{ID: last.video.ID, ViewCount: last.views}
	}
	return page, nil
}

// ListStudioVideos returns the owner's dashboard page across all
// visibilities.
func (s *Storage) ListStudioVideos(_ context.Context, params StudioListParams) (StudioPage, error) {
	limit, err := NormalizeLimit(params.Limit)
	if err != nil {
		return StudioPage{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]models.Video, 0)
	for _, video := range s.data.Videos {
		if video.OwnerID != params.OwnerID {
			continue
		}
		if !beforeTimeCursor(params.Cursor, video.UpdatedAt, video.ID) {
			continue
		}
		candidates = append(candidates, video)
	}
	sortVideosByUpdatedAt(candidates)
	if len(candidates) > limit+1 {
		candidates = candidates[:limit+1]
	}

	rows, hasMore := trimPage(candidates, limit)
	items := make([]models.StudioVideo, 0, len(rows))
	for _, video := range rows {
		var commentCount int64
		for _, comment := range s.data.Comments {
			if comment.VideoID == video.ID {
				commentCount++
			}
		}
		items = append(items, models.StudioVideo{
			Video:        video,
			ViewCount:    s.viewCountLocked(video.ID),
			CommentCount: commentCount,
			LikeCount:    s.videoReactionCountLocked(video.ID, models.ReactionLike),
		})
	}
	page := StudioPage{Items: items}
	if hasMore {
		last := rows[len(rows)-1]
		page.NextCursor = &TimeCursor{ID: last.ID, UpdatedAt: last.UpdatedAt}
	}
	return page, nil
}

// ListSubscriptionFeed returns public videos from creators the viewer
// subscribes to.
func (s *Storage) ListSubscriptionFeed(_ context.Context, params SubscriptionFeedParams) (VideoPage, error) {
	limit, err := NormalizeLimit(params.Limit)
	if err != nil {
		return VideoPage{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	creators := make(map[string]struct{})
	for creatorID, byViewer := range s.data.Subscriptions {
		if _, ok := byViewer[params.ViewerID]; ok {
			creators[creatorID] = struct{}{}
		}
	}

	candidates := make([]models.Video, 0)
	for _, video := range s.data.Videos {
		if video.Visibility != models.VisibilityPublic {
			continue
		}
		if _, ok := creators[video.OwnerID]; !ok {
			continue
		}
		if !beforeTimeCursor(params.Cursor, video.UpdatedAt, video.ID) {
			continue
		}
		candidates = append(candidates, video)
	}
	sortVideosByUpdatedAt(candidates)
	if len(candidates) > limit+1 {
		candidates = candidates[:limit+1]
	}

	rows, hasMore := trimPage(candidates, limit)
	items := make([]models.VideoSummary, 0, len(rows))
	for _, video := range rows {
		items = append(items, s.videoSummaryLocked(video))
	}
	page := VideoPage{Items: items}
	if hasMore {
		last := rows[len(rows)-1]
		page.NextCursor = &TimeCursor{ID: last.ID, UpdatedAt: last.UpdatedAt}
	}
	return page, nil
}

func sortVideosByUpdatedAt(videos []models.Video) {
	sort.Slice(videos, func(i, j int) bool {
		if !videos[i].UpdatedAt.Equal(videos[j].UpdatedAt) {
			return videos[i].UpdatedAt.After(videos[j].UpdatedAt)
		}
		return videos[i].ID > videos[j].ID
	})
}

// GetVideoDetail returns the single-video view with viewer-scoped fields.
// An empty viewerID parameterizes the viewer relations with the empty set,
// so the result shape is identical for anonymous requests.
func (s *Storage) GetVideoDetail(_ context.Context, id, viewerID string) (models.VideoDetail, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.data.Videos[id]
	if !ok {
		return models.VideoDetail{}, false, nil
	}
	owner := s.data.Users[video.OwnerID]
	detail := models.VideoDetail{
		Video: video,
		User: models.Creator{
			User:            owner,
			SubscriberCount: s.subscriberCountLocked(video.OwnerID),
		},
		ViewCount:    s.viewCountLocked(id),
		LikeCount:    s.videoReactionCountLocked(id, models.ReactionLike),
		DislikeCount: s.videoReactionCountLocked(id, models.ReactionDislike),
	}
	if viewerID != "" {
		if reaction, ok := s.data.VideoReactions[id][viewerID]; ok {
			reactionType := reaction.Type
			detail.ViewerReaction = &reactionType
		}
		if _, ok := s.data.Subscriptions[video.OwnerID][viewerID]; ok {
			detail.User.ViewerSubscribed = true
		}
	}
	return detail, true, nil
}

// --- comments ---

// CreateComment inserts a comment, enforcing the depth-two invariant at
// write time.
func (s *Storage) CreateComment(_ context.Context, params CreateCommentParams) (models.Comment, error) {
	if strings.TrimSpace(params.Value) == "" {
		return models.Comment{}, fmt.Errorf("comment value is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Videos[params.VideoID]; !ok {
		return models.Comment{}, ErrNotFound
	}
	if params.ParentID != nil {
		parent, ok := s.data.Comments[*params.ParentID]
		if !ok {
			return models.Comment{}, ErrNotFound
		}
		if parent.VideoID != params.VideoID {
			return models.Comment{}, ErrParentMismatch
		}
		if parent.ParentID != nil {
			return models.Comment{}, ErrReplyDepth
		}
	}
	now := s.now()
	comment := models.Comment{
		ID:        newID(),
		VideoID:   params.VideoID,
		AuthorID:  params.AuthorID,
		ParentID:  params.ParentID,
		Value:     params.Value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.data.Comments[comment.ID] = comment
	if err := s.persistLocked(); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

// DeleteComment removes a comment scoped to its author, cascading to replies
// and reactions.
func (s *Storage) DeleteComment(_ context.Context, id, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.data.Comments[id]
	if !ok || comment.AuthorID != authorID {
		return ErrNotFound
	}
	s.deleteCommentCascadeLocked(id)
	return s.persistLocked()
}

func (s *Storage) deleteCommentCascadeLocked(commentID string) {
	for replyID, reply := range s.data.Comments {
		if reply.ParentID != nil && *reply.ParentID == commentID {
			delete(s.data.CommentReactions, replyID)
			delete(s.data.Comments, replyID)
		}
	}
	delete(s.data.CommentReactions, commentID)
	delete(s.data.Comments, commentID)
}

// ListComments returns one level of the comment tree for a video: top-level
// comments when ParentID is nil, otherwise the replies of that parent.
func (s *Storage) ListComments(_ context.Context, params CommentListParams) (CommentPage, error) {
	limit, err := NormalizeLimit(params.Limit)
	if err != nil {
		return CommentPage{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]models.Comment, 0)
	for _, comment := range s.data.Comments {
		if comment.VideoID != params.VideoID {
			continue
		}
		if params.ParentID == nil {
			if comment.ParentID != nil {
				continue
			}
		} else if comment.ParentID == nil || *comment.ParentID != *params.ParentID {
			continue
		}
		if !beforeTimeCursor(params.Cursor, comment.UpdatedAt, comment.ID) {
			continue
		}
		candidates = append(candidates, comment)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].UpdatedAt.Equal(candidates[j].UpdatedAt) {
			return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
		}
		return candidates[i].ID > candidates[j].ID
	})
	if len(candidates) > limit+1 {
		candidates = candidates[:limit+1]
	}

	rows, hasMore := trimPage(candidates, limit)
	items := make([]models.CommentRow, 0, len(rows))
	for _, comment := range rows {
		row := models.CommentRow{
			Comment:      comment,
			User:         s.data.Users[comment.AuthorID],
			LikeCount:    s.commentReactionCountLocked(comment.ID, models.ReactionLike),
			DislikeCount: s.commentReactionCountLocked(comment.ID, models.ReactionDislike),
		}
		if comment.ParentID == nil {
			row.ReplyCount = s.replyCountLocked(comment.ID)
		}
		if params.ViewerID != "" {
			if reaction, ok := s.data.CommentReactions[comment.ID][params.ViewerID]; ok {
				reactionType := reaction.Type
				row.ViewerReaction = &reactionType
			}
		}
		items = append(items, row)
	}
	page := CommentPage{Items: items}
	if hasMore {
		last := rows[len(rows)-1]
		page.NextCursor = &TimeCursor{ID: last.ID, UpdatedAt: last.UpdatedAt}
	}
	return page, nil
}

// CountComments returns the total comment count for a video, independent of
// any pagination window.
func (s *Storage) CountComments(_ context.Context, videoID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, comment := range s.data.Comments {
		if comment.VideoID == videoID {
			count++
		}
	}
	return count, nil
}

// --- reactions, views, subscriptions ---

// ReactToVideo runs the three-state toggle: a repeat of the held type clears
// the reaction, anything else upserts the requested type.
func (s *Storage) ReactToVideo(_ context.Context, userID, videoID string, reaction models.ReactionType) (*models.VideoReaction, error) {
	if !reaction.Valid() {
		return nil, fmt.Errorf("invalid reaction type %q", reaction)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Videos[videoID]; !ok {
		return nil, ErrNotFound
	}
	byUser := s.data.VideoReactions[videoID]
	if existing, ok := byUser[userID]; ok && existing.Type == reaction {
		delete(byUser, userID)
		if len(byUser) == 0 {
			delete(s.data.VideoReactions, videoID)
		}
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	now := s.now()
	updated := models.VideoReaction{UserID: userID, VideoID: videoID, Type: reaction, CreatedAt: now, UpdatedAt: now}
	if existing, ok := byUser[userID]; ok {
		updated.CreatedAt = existing.CreatedAt
	}
	if byUser == nil {
		byUser = make(map[string]models.VideoReaction)
		s.data.VideoReactions[videoID] = byUser
	}
	byUser[userID] = updated
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ReactToComment is ReactToVideo for comment targets.
func (s *Storage) ReactToComment(_ context.Context, userID, commentID string, reaction models.ReactionType) (*models.CommentReaction, error) {
	if !reaction.Valid() {
		return nil, fmt.Errorf("invalid reaction type %q", reaction)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Comments[commentID]; !ok {
		return nil, ErrNotFound
	}
	byUser := s.data.CommentReactions[commentID]
	if existing, ok := byUser[userID]; ok && existing.Type == reaction {
		delete(byUser, userID)
		if len(byUser) == 0 {
			delete(s.data.CommentReactions, commentID)
		}
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	now := s.now()
	updated := models.CommentReaction{UserID: userID, CommentID: commentID, Type: reaction, CreatedAt: now, UpdatedAt: now}
	if existing, ok := byUser[userID]; ok {
		updated.CreatedAt = existing.CreatedAt
	}
	if byUser == nil {
		byUser = make(map[string]models.CommentReaction)
		s.data.CommentReactions[commentID] = byUser
	}
	byUser[userID] = updated
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return &updated, nil
}

// CreateView records that the user played the video; repeats return the
// existing row unchanged.
func (s *Storage) CreateView(_ context.Context, userID, videoID string) (models.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Videos[videoID]; !ok {
		return models.View{}, ErrNotFound
	}
	if existing, ok := s.data.Views[videoID][userID]; ok {
		return existing, nil
	}
	view := models.View{UserID: userID, VideoID: videoID, CreatedAt: s.now()}
	if s.data.Views[videoID] == nil {
		s.data.Views[videoID] = make(map[string]models.View)
	}
	s.data.Views[videoID][userID] = view
	if err := s.persistLocked(); err != nil {
		return models.View{}, err
	}
	return view, nil
}

// CreateSubscription subscribes the viewer to a creator; repeats return the
// existing row.
func (s *Storage) CreateSubscription(_ context.Context, viewerID, creatorID string) (models.Subscription, error) {
	if viewerID == creatorID {
		return models.Subscription{}, ErrSelfSubscription
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Users[creatorID]; !ok {
		return models.Subscription{}, ErrNotFound
	}
	if existing, ok := s.data.Subscriptions[creatorID][viewerID]; ok {
		return existing, nil
	}
	subscription := models.Subscription{ViewerID: viewerID, CreatorID: creatorID, CreatedAt: s.now()}
	if s.data.Subscriptions[creatorID] == nil {
		s.data.Subscriptions[creatorID] = make(map[string]models.Subscription)
	}
	s.data.Subscriptions[creatorID][viewerID] = subscription
	if err := s.persistLocked(); err != nil {
		return models.Subscription{}, err
	}
	return subscription, nil
}

// DeleteSubscription removes the viewer's subscription to a creator.
func (s *Storage) DeleteSubscription(_ context.Context, viewerID, creatorID string) error {
	if viewerID == creatorID {
		return ErrSelfSubscription
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byViewer, ok := s.data.Subscriptions[creatorID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := byViewer[viewerID]; !ok {
		return ErrNotFound
	}
	delete(byViewer, viewerID)
	if len(byViewer) == 0 {
		delete(s.data.Subscriptions, creatorID)
	}
	return s.persistLocked()
}
