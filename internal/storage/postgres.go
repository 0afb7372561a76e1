package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cliptide/internal/models"
)

type postgresRepository struct {
	pool  *pgxpool.Pool
	cfg   PostgresConfig
	clock func() time.Time
}

var _ Repository = (*postgresRepository)(nil)

// NewPostgresRepository opens a Postgres-backed repository. The caller must
// ensure the schema has been applied prior to invoking this constructor.
func NewPostgresRepository(dsn string, opts ...Option) (Repository, error) {
	cfg := newPostgresConfig(dsn, opts...)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections >= 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	repo := &postgresRepository{
		pool:  pool,
		cfg:   cfg,
		clock: cfg.Clock,
	}
	if repo.clock == nil {
		repo.clock = func() time.Time { return time.Now().UTC() }
	}
	return repo, nil
}

func (r *postgresRepository) now() time.Time {
	return r.clock()
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *postgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// mapConstraintError translates foreign key violations into the sentinel the
// in-memory store produces for the same condition.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		if pgErr.ConstraintName == "videos_category_id_fkey" {
			return ErrUnknownCategory
		}
		return ErrNotFound
	}
	return err
}

// viewerIDs wraps an optional viewer id as a uuid[] parameter. The empty
// array keeps the query shape identical for anonymous requests.
func viewerIDs(viewerID string) []string {
	if viewerID == "" {
		return []string{}
	}
	return []string{viewerID}
}

const userColumns = "id, identity_id, name, email, avatar_url, created_at, updated_at"

const videoColumns = "id, owner_id, title, description, visibility, category_id, media_status, " +
	"upload_id, asset_id, playback_id, track_id, track_status, " +
	"thumbnail_url, thumbnail_key, preview_url, duration_ms, created_at, updated_at"

func aliased(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + part
	}
	return strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func videoFields(v *models.Video) []any {
	return []any{
		&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.Visibility, &v.CategoryID, &v.MediaStatus,
		&v.UploadID, &v.AssetID, &v.PlaybackID, &v.TrackID, &v.TrackStatus,
		&v.ThumbnailURL, &v.ThumbnailKey, &v.PreviewURL, &v.DurationMS, &v.CreatedAt, &v.UpdatedAt,
	}
}

func userFields(u *models.User) []any {
	return []any{&u.ID, &u.IdentityID, &u.Name, &u.Email, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt}
}

func scanVideo(row rowScanner) (models.Video, error) {
	var v models.Video
	err := row.Scan(videoFields(&v)...)
	return v, err
}

// --- identity sync ---

func (r *postgresRepository) UpsertUser(ctx context.Context, params UpsertUserParams) (models.User, error) {
	if strings.TrimSpace(params.IdentityID) == "" {
		return models.User{}, fmt.Errorf("identity id is required")
	}
	now := r.now()
	query := `INSERT INTO users (id, identity_id, name, email, avatar_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (identity_id) DO UPDATE
SET name = EXCLUDED.name, email = EXCLUDED.email, avatar_url = EXCLUDED.avatar_url, updated_at = EXCLUDED.updated_at
RETURNING ` + userColumns
	var user models.User
	err := r.pool.QueryRow(ctx, query, newID(), params.IdentityID, params.Name, params.Email, params.AvatarURL, now).
		Scan(userFields(&user)...)
	if err != nil {
		return models.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) DeleteUserByIdentity(ctx context.Context, identityID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE identity_id = $1`, identityID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) UserByIdentity(ctx context.Context, identityID string) (models.User, bool, error) {
	var user models.User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE identity_id = $1`, identityID).
		Scan(userFields(&user)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, fmt.Errorf("lookup user: %w", err)
	}
	return user, true, nil
}

// --- categories ---

func (r *postgresRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	categories := make([]models.Category, 0)
	for rows.Next() {
		var category models.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Description, &category.CreatedAt, &category.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *postgresRepository) SeedCategories(ctx context.Context, names []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback(ctx)

	var count int64
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM categories`).Scan(&count); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return tx.Commit(ctx)
	}
	now := r.now()
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO categories (id, name, created_at, updated_at) VALUES ($1, $2, $3, $3)`,
			newID(), trimmed, now)
		if err != nil {
			return fmt.Errorf("seed category %q: %w", trimmed, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *postgresRepository) GetCategory(ctx context.Context, id string) (models.Category, bool, error) {
	var category models.Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM categories WHERE id = $1`, id).
		Scan(&category.ID, &category.Name, &category.Description, &category.CreatedAt, &category.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Category{}, false, nil
	}
	if err != nil {
		return models.Category{}, false, fmt.Errorf("lookup category: %w", err)
	}
	return category, true, nil
}

// --- videos ---

func (r *postgresRepository) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	if params.OwnerID == "" {
		return models.Video{}, fmt.Errorf("owner id is required")
	}
	now := r.now()
	query := `INSERT INTO videos (id, owner_id, title, visibility, media_status, upload_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
RETURNING ` + videoColumns
	video, err := scanVideo(r.pool.QueryRow(ctx, query,
		newID(), params.OwnerID, params.Title, models.VisibilityPrivate, models.MediaStatusWaiting, params.UploadID, now))
	if err != nil {
		return models.Video{}, fmt.Errorf("create video: %w", mapConstraintError(err))
	}
	return video, nil
}

func (r *postgresRepository) GetVideo(ctx context.Context, id string) (models.Video, bool, error) {
	video, err := scanVideo(r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, false, nil
	}
	if err != nil {
		return models.Video{}, false, fmt.Errorf("lookup video: %w", err)
	}
	return video, true, nil
}

func (r *postgresRepository) GetVideoOwned(ctx context.Context, id, ownerID string) (models.Video, bool, error) {
	video, err := scanVideo(r.pool.QueryRow(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, false, nil
	}
	if err != nil {
		return models.Video{}, false, fmt.Errorf("lookup video: %w", err)
	}
	return video, true, nil
}

func (r *postgresRepository) GetVideoDetail(ctx context.Context, id, viewerID string) (models.VideoDetail, bool, error) {
	query := `SELECT ` + aliased("v", videoColumns) + `, ` + aliased("u", userColumns) + `,
  (SELECT count(*) FROM subscriptions s WHERE s.creator_id = v.owner_id),
  EXISTS (SELECT 1 FROM subscriptions s WHERE s.creator_id = v.owner_id AND s.viewer_id = ANY($2::uuid[])),
  (SELECT count(*) FROM video_views vv WHERE vv.video_id = v.id),
  (SELECT count(*) FROM video_reactions vr WHERE vr.video_id = v.id AND vr.type = 'like'),
  (SELECT count(*) FROM video_reactions vr WHERE vr.video_id = v.id AND vr.type = 'dislike'),
  (SELECT vr.type FROM video_reactions vr WHERE vr.video_id = v.id AND vr.user_id = ANY($2::uuid[]))
FROM videos v
JOIN users u ON u.id = v.owner_id
WHERE v.id = $1`
	var detail models.VideoDetail
	var viewerReaction *string
	fields := videoFields(&detail.Video)
	fields = append(fields, userFields(&detail.User.User)...)
	fields = append(fields,
		&detail.User.SubscriberCount, &detail.User.ViewerSubscribed,
		&detail.ViewCount, &detail.LikeCount, &detail.DislikeCount, &viewerReaction)
	err := r.pool.QueryRow(ctx, query, id, viewerIDs(viewerID)).Scan(fields...)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.VideoDetail{}, false, nil
	}
	if err != nil {
		return models.VideoDetail{}, false, fmt.Errorf("lookup video detail: %w", err)
	}
	if viewerReaction != nil {
		reaction := models.ReactionType(*viewerReaction)
		detail.ViewerReaction = &reaction
	}
	return detail, true, nil
}

func (r *postgresRepository) UpdateVideo(ctx context.Context, id, ownerID string, update VideoUpdate) (models.Video, error) {
	if update.Visibility != nil && !update.Visibility.Valid() {
		return models.Video{}, fmt.Errorf("invalid visibility %q", *update.Visibility)
	}
	set := []string{"updated_at = $1"}
	args := []any{r.now()}
	next := 2
	add := func(column string, value any) {
		set = append(set, fmt.Sprintf("%s = $%d", column, next))
		args = append(args, value)
		next++
	}
	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.ClearCategory {
		set = append(set, "category_id = NULL")
	} else if update.CategoryID != nil {
		add("category_id", *update.CategoryID)
	}
	if update.Visibility != nil {
		add("visibility", *update.Visibility)
	}
	query := fmt.Sprintf(`UPDATE videos SET %s WHERE id = $%d AND owner_id = $%d RETURNING %s`,
		strings.Join(set, ", "), next, next+1, videoColumns)
	args = append(args, id, ownerID)
	video, err := scanVideo(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, ErrNotFound
	}
	if err != nil {
		return models.Video{}, fmt.Errorf("update video: %w", mapConstraintError(err))
	}
	return video, nil
}

func (r *postgresRepository) DeleteVideo(ctx context.Context, id, ownerID string) (models.Video, error) {
	video, err := scanVideo(r.pool.QueryRow(ctx,
		`DELETE FROM videos WHERE id = $1 AND owner_id = $2 RETURNING `+videoColumns, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, ErrNotFound
	}
	if err != nil {
		return models.Video{}, fmt.Errorf("delete video: %w", err)
	}
	return video, nil
}

func (r *postgresRepository) SetVideoThumbnail(ctx context.Context, id, ownerID, thumbnailURL, thumbnailKey string) (models.Video, error) {
	return r.updateOwned(ctx, id, ownerID,
		`thumbnail_url = $2, thumbnail_key = $3`, thumbnailURL, thumbnailKey)
}

func (r *postgresRepository) SetGeneratedTitle(ctx context.Context, id, ownerID, title string) (models.Video, error) {
	return r.updateOwned(ctx, id, ownerID, `title = $2`, title)
}

func (r *postgresRepository) SetGeneratedDescription(ctx context.Context, id, ownerID, description string) (models.Video, error) {
	return r.updateOwned(ctx, id, ownerID, `description = $2`, description)
}

// updateOwned runs an owner-scoped update whose SET clause starts its
// placeholders at $2; $1 is updated_at and the trailing placeholders are the
// id and owner predicate.
func (r *postgresRepository) updateOwned(ctx context.Context, id, ownerID, setClause string, values ...any) (models.Video, error) {
	n := len(values)
	query := fmt.Sprintf(`UPDATE videos SET updated_at = $1, %s WHERE id = $%d AND owner_id = $%d RETURNING %s`,
		setClause, n+2, n+3, videoColumns)
	args := append([]any{r.now()}, values...)
	args = append(args, id, ownerID)
	video, err := scanVideo(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, ErrNotFound
	}
	if err != nil {
		return models.Video{}, fmt.Errorf("update video: %w", err)
	}
	return video, nil
}

// --- media pipeline events ---

func (r *postgresRepository) MarkVideoProcessing(ctx context.Context, uploadID, assetID string) error {
	return r.execByUploadID(ctx,
		`UPDATE videos SET updated_at = $1, media_status = $2, asset_id = $3 WHERE upload_id = $4`,
		r.now(), models.MediaStatusProcessing, assetID, uploadID)
}

func (r *postgresRepository) MarkVideoReady(ctx context.Context, uploadID string, update VideoReadyUpdate) error {
	// A creator-uploaded thumbnail (non-empty thumbnail_key) wins over the
	// pipeline default.
	return r.execByUploadID(ctx,
		`UPDATE videos SET updated_at = $1, media_status = $2, asset_id = $3, playback_id = $4,
   thumbnail_url = CASE WHEN thumbnail_key = '' THEN $5 ELSE thumbnail_url END,
   preview_url = $6, duration_ms = $7
 WHERE upload_id = $8`,
		r.now(), models.MediaStatusReady, update.AssetID, update.PlaybackID,
		update.ThumbnailURL, update.PreviewURL, update.DurationMS, uploadID)
}

func (r *postgresRepository) MarkVideoErrored(ctx context.Context, uploadID, status string) error {
	return r.execByUploadID(ctx,
		`UPDATE videos SET updated_at = $1, media_status = $2 WHERE upload_id = $3`,
		r.now(), status, uploadID)
}

func (r *postgresRepository) SetVideoTrack(ctx context.Context, assetID, trackID, trackStatus string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE videos SET updated_at = $1, track_id = $2, track_status = $3 WHERE asset_id = $4`,
		r.now(), trackID, trackStatus, assetID)
	if err != nil {
		return fmt.Errorf("set video track: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) DeleteVideoByUploadID(ctx context.Context, uploadID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE upload_id = $1`, uploadID)
	if err != nil {
		return fmt.Errorf("delete video by upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) execByUploadID(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update video by upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- listings ---

const videoSummarySelect = `SELECT ` + "v.id, v.owner_id, v.title, v.description, v.visibility, v.category_id, v.media_status, " +
	"v.upload_id, v.asset_id, v.playback_id, v.track_id, v.track_status, " +
	"v.thumbnail_url, v.thumbnail_key, v.preview_url, v.duration_ms, v.created_at, v.updated_at, " +
	"u.id, u.identity_id, u.name, u.email, u.avatar_url, u.created_at, u.updated_at" + `,
  (SELECT count(*) FROM video_views vv WHERE vv.video_id = v.id),
  (SELECT count(*) FROM video_reactions vr WHERE vr.video_id = v.id AND vr.type = 'like'),
  (SELECT count(*) FROM video_reactions vr WHERE vr.video_id = v.id AND vr.type = 'dislike')
FROM videos v
JOIN users u ON u.id = v.owner_id`

func (r *postgresRepository) scanVideoSummaries(rows pgx.Rows) ([]models.VideoSummary, error) {
	defer rows.Close()
	items := make([]models.VideoSummary, 0)
	for rows.Next() {
		var item models.VideoSummary
		fields := videoFields(&item.Video)
		fields = append(fields, userFields(&item.User)...)
		fields = append(fields, &item.ViewCount, &item.LikeCount, &item.DislikeCount)
		if err := rows.Scan(fields...); err != nil {
			return nil, fmt.Errorf("scan video row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *postgresRepository) ListVideos(ctx context.Context, params VideoListParams) (VideoPage, error) {
	limit, err := NormalizeLimit(params.Limit)
	if err != nil {
		return VideoPage{}, err
	}
	var cursorAt, cursorID, categoryID any
	if params.Cursor != nil {
		cursorAt, cursorID = params.Cursor.UpdatedAt, params.Cursor.ID
	}
	if params.CategoryID != nil {
		categoryID = *params.CategoryID
	}
	query := videoSummarySelect + `
WHERE v.visibility = 'public'
  AND ($1::uuid IS NULL OR v.category_id = $1::uuid)
  AND ($2 = '' OR v.title ILIKE '%' || $2 || '%')
  AND ($3::timestamptz IS NULL OR (v.updated_at, v.id) < ($3::timestamptz, $4::uuid))
ORDER BY v.updated_at DESC, v.id DESC
LIMIT $5`
	rows, err := r.pool.Query(ctx, query, categoryID, params.Query, cursorAt, cursorID, limit+1)
	if err != nil {
		return VideoPage{}, fmt.Errorf("list videos: %w", err)
	}
	items, err := r.scanVideoSummaries(rows)
	if err != nil {
		return VideoPage{}, err
	}
	items, hasMore := trimPage(items, limit)
	page := VideoPage{Items: items}
	if hasMore {
		last := items[len(items)-1]
		page.NextCursor = &TimeCursor{ID: last.ID, UpdatedAt: last.UpdatedAt}
	}
	return page, nil
}

func (r *postgresRepository) ListTrendingVideos(ctx context.Context, params TrendingListParams) (TrendingPage, error) {
	limit, err := NormalizeLimit(params.Limit)
	if err != nil {
		return TrendingPage{}, err
	}
	var cursorViews, cursorID any
	if params.Cursor != nil {
		cursorViews, cursorID = params.Cursor.ViewCount, params.Cursor.ID
	}
	// The select alias is not visible in WHERE, so the cursor predicate
	// repeats the view-count subquery.
	query := videoSummarySelect + `
WHERE v.visibility = 'public'
  AND ($1::bigint IS NULL
    OR ((SELECT count(*) FROM video_views vv WHERE vv.video_id = v.id), v.id) < ($1::bigint, $2::uuid))
ORDER BY 26 DESC, v.id DESC
LIMIT $3`
	rows, err := r.pool.Query(ctx, query, cursorViews, cursorID, limit+1)
	if err != nil {
		return TrendingPage{}, fmt.Errorf("list trending videos: %w", err)
	}
	items, err := r.scanVideoSummaries(rows)
	if err != nil {
		return TrendingPage{}, err
	}
	items, hasMore := trimPage(items, limit)
	page := TrendingPage{Items: items}
	if hasMore {
		last := items[len(items)-1]
		page.NextCursor = &CountCursor{ID: last.ID, ViewCount: last.ViewCount}
	}
	return page, nil
}

func (r *postgresRepository) ListStudioVideos(ctx context.Context, params StudioListParams) (StudioPage, error) {
	limit, err := NormalizeLimit(params.Limit)
	if err != nil {
		return StudioPage{}, err
	}
	var cursorAt, cursorID any
	if params.Cursor != nil {
		cursorAt, cursorID = params.Cursor.UpdatedAt, params.Cursor.ID
	}
	query := `SELECT ` + aliased("v", videoColumns) + `,
  (SELECT count(*) FROM video_views vv WHERE vv.video_id = v.id),
  (SELECT count(*) FROM comments c WHERE c.video_id = v.id),
  (SELECT count(*) FROM video_reactions vr WHERE vr.video_id = v.id AND vr.type = 'like')
FROM videos v
WHERE v.owner_id = $1
  AND ($2::timestamptz IS NULL OR (v.updated_at, v.id) < ($2::timestamptz, $3::uuid))
ORDER BY v.updated_at DESC, v.id DESC
LIMIT $4`
	rows, err := r.pool.Query(ctx, query, params.OwnerID, cursorAt, cursorID, limit+1)
	if err != nil {
		return StudioPage{}, fmt.Errorf("list studio videos: %w", err)
	}
	defer rows.Close()
	items := make([]models.StudioVideo, 0)
	for rows.Next() {
		var item models.StudioVideo
		fields := videoFields(&item.Video)
		fields = append(fields, &item.ViewCount, &item.CommentCount, &item.LikeCount)
		if err := rows.Scan(fields...); err != nil {
			return StudioPage{}, fmt.Errorf("scan studio row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return StudioPage{}, err
	}
	items, hasMore := trimPage(items, limit)
	page := StudioPage{Items: items}
	if hasMore {
		last := items[len(items)-1]
		page.NextCursor = &TimeCursor{ID: last.ID, UpdatedAt: last.UpdatedAt}
	}
	return page, nil
}

func (r *postgresRepository) ListSubscriptionFeed(ctx context.Context, params SubscriptionFeedParams) (VideoPage, error) {
	limit, err := NormalizeLimit(params.Limit)
	if err != nil {
		return VideoPage{}, err
	}
	var cursorAt, cursorID any
	if params.Cursor != nil {
		cursorAt, cursorID = params.Cursor.UpdatedAt, params.Cursor.ID
	}
	query := videoSummarySelect + `
JOIN subscriptions s ON s.creator_id = v.owner_id AND s.viewer_id = $1
WHERE v.visibility = 'public'
  AND ($2::timestamptz IS NULL OR (v.updated_at, v.id) < ($2::timestamptz, $3::uuid))
ORDER BY v.updated_at DESC, v.id DESC
LIMIT $4`
	rows, err := r.pool.Query(ctx, query, params.ViewerID, cursorAt, cursorID, limit+1)
	if err != nil {
		return VideoPage{}, fmt.Errorf("list subscription feed: %w", err)
	}
	items, err := r.scanVideoSummaries(rows)
	if err != nil {
		return VideoPage{}, err
	}
	items, hasMore := trimPage(items, limit)
	page := VideoPage{Items: items}
	if hasMore {
		last := items[len(items)-1]
		page.NextCursor = &TimeCursor{ID: last.ID, UpdatedAt: last.UpdatedAt}
	}
	return page, nil
}

// --- comments ---

func (r *postgresRepository) CreateComment(ctx context.Context, params CreateCommentParams) (models.Comment, error) {
	if strings.TrimSpace(params.Value) == "" {
		return models.Comment{}, fmt.Errorf("comment value is required")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Comment{}, fmt.Errorf("begin comment: %w", err)
	}
	defer tx.Rollback(ctx)

	if params.ParentID != nil {
		var parentVideoID string
		var grandparent *string
		err := tx.QueryRow(ctx, `SELECT video_id, parent_id FROM comments WHERE id = $1`, *params.ParentID).
			Scan(&parentVideoID, &grandparent)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrNotFound
		}
		if err != nil {
			return models.Comment{}, fmt.Errorf("lookup parent comment: %w", err)
		}
		if parentVideoID != params.VideoID {
			return models.Comment{}, ErrParentMismatch
		}
		if grandparent != nil {
			return models.Comment{}, ErrReplyDepth
		}
	}

	now := r.now()
	query := `INSERT INTO comments (id, video_id, author_id, parent_id, value, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
RETURNING id, video_id, author_id, parent_id, value, created_at, updated_at`
	var comment models.Comment
	err = tx.QueryRow(ctx, query, newID(), params.VideoID, params.AuthorID, params.ParentID, params.Value, now).
		Scan(&comment.ID, &comment.VideoID, &comment.AuthorID, &comment.ParentID, &comment.Value, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		return models.Comment{}, fmt.Errorf("create comment: %w", mapConstraintError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Comment{}, fmt.Errorf("commit comment: %w", err)
	}
	return comment, nil
}

func (r *postgresRepository) DeleteComment(ctx context.Context, id, authorID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1 AND author_id = $2`, id, authorID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) ListComments(ctx context.Context, params CommentListParams) (CommentPage, error) {
	limit, err := NormalizeLimit(params.Limit)
	if err != nil {
		return CommentPage{}, err
	}
	var cursorAt, cursorID, parentID any
	if params.Cursor != nil {
		cursorAt, cursorID = params.Cursor.UpdatedAt, params.Cursor.ID
	}
	if params.ParentID != nil {
		parentID = *params.ParentID
	}
	query := `SELECT c.id, c.video_id, c.author_id, c.parent_id, c.value, c.created_at, c.updated_at,
  ` + aliased("u", userColumns) + `,
  (SELECT count(*) FROM comment_reactions cr WHERE cr.comment_id = c.id AND cr.type = 'like'),
  (SELECT count(*) FROM comment_reactions cr WHERE cr.comment_id = c.id AND cr.type = 'dislike'),
  COALESCE(replies.reply_count, 0),
  (SELECT cr.type FROM comment_reactions cr WHERE cr.comment_id = c.id AND cr.user_id = ANY($2::uuid[]))
FROM comments c
JOIN users u ON u.id = c.author_id
LEFT JOIN (
  SELECT parent_id, count(*) AS reply_count FROM comments WHERE parent_id IS NOT NULL GROUP BY parent_id
) replies ON replies.parent_id = c.id
WHERE c.video_id = $1
  AND (($3::uuid IS NULL AND c.parent_id IS NULL) OR c.parent_id = $3::uuid)
  AND ($4::timestamptz IS NULL OR (c.updated_at, c.id) < ($4::timestamptz, $5::uuid))
ORDER BY c.updated_at DESC, c.id DESC
LIMIT $6`
	rows, err := r.pool.Query(ctx, query, params.VideoID, viewerIDs(params.ViewerID), parentID, cursorAt, cursorID, limit+1)
	if err != nil {
		return CommentPage{}, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	items := make([]models.CommentRow, 0)
	for rows.Next() {
		var item models.CommentRow
		var viewerReaction *string
		fields := []any{&item.ID, &item.VideoID, &item.AuthorID, &item.ParentID, &item.Value, &item.CreatedAt, &item.UpdatedAt}
		fields = append(fields, userFields(&item.User)...)
		fields = append(fields, &item.LikeCount, &item.DislikeCount, &item.ReplyCount, &viewerReaction)
		if err := rows.Scan(fields...); err != nil {
			return CommentPage{}, fmt.Errorf("scan comment row: %w", err)
		}
		if viewerReaction != nil {
			reaction := models.ReactionType(*viewerReaction)
			item.ViewerReaction = &reaction
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return CommentPage{}, err
	}
	items, hasMore := trimPage(items, limit)
	page := CommentPage{Items: items}
	if hasMore {
		last := items[len(items)-1]
		page.NextCursor = &TimeCursor{ID: last.ID, UpdatedAt: last.UpdatedAt}
	}
	return page, nil
}

func (r *postgresRepository) CountComments(ctx context.Context, videoID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM comments WHERE video_id = $1`, videoID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return count, nil
}

// --- reactions, views, subscriptions ---

func (r *postgresRepository) ReactToVideo(ctx context.Context, userID, videoID string, reaction models.ReactionType) (*models.VideoReaction, error) {
	if !reaction.Valid() {
		return nil, fmt.Errorf("invalid reaction type %q", reaction)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM video_reactions WHERE user_id = $1 AND video_id = $2 AND type = $3`,
		userID, videoID, reaction)
	if err != nil {
		return nil, fmt.Errorf("toggle reaction: %w", err)
	}
	if tag.RowsAffected() > 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit reaction: %w", err)
		}
		return nil, nil
	}

	now := r.now()
	query := `INSERT INTO video_reactions (user_id, video_id, type, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (user_id, video_id) DO UPDATE SET type = EXCLUDED.type, updated_at = EXCLUDED.updated_at
RETURNING user_id, video_id, type, created_at, updated_at`
	var row models.VideoReaction
	err = tx.QueryRow(ctx, query, userID, videoID, reaction, now).
		Scan(&row.UserID, &row.VideoID, &row.Type, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert reaction: %w", mapConstraintError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reaction: %w", err)
	}
	return &row, nil
}

func (r *postgresRepository) ReactToComment(ctx context.Context, userID, commentID string, reaction models.ReactionType) (*models.CommentReaction, error) {
	if !reaction.Valid() {
		return nil, fmt.Errorf("invalid reaction type %q", reaction)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM comment_reactions WHERE user_id = $1 AND comment_id = $2 AND type = $3`,
		userID, commentID, reaction)
	if err != nil {
		return nil, fmt.Errorf("toggle reaction: %w", err)
	}
	if tag.RowsAffected() > 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit reaction: %w", err)
		}
		return nil, nil
	}

	now := r.now()
	query := `INSERT INTO comment_reactions (user_id, comment_id, type, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (user_id, comment_id) DO UPDATE SET type = EXCLUDED.type, updated_at = EXCLUDED.updated_at
RETURNING user_id, comment_id, type, created_at, updated_at`
	var row models.CommentReaction
	err = tx.QueryRow(ctx, query, userID, commentID, reaction, now).
		Scan(&row.UserID, &row.CommentID, &row.Type, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert reaction: %w", mapConstraintError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reaction: %w", err)
	}
	return &row, nil
}

func (r *postgresRepository) CreateView(ctx context.Context, userID, videoID string) (models.View, error) {
	query := `INSERT INTO video_views (user_id, video_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, video_id) DO NOTHING
RETURNING user_id, video_id, created_at`
	var view models.View
	err := r.pool.QueryRow(ctx, query, userID, videoID, r.now()).
		Scan(&view.UserID, &view.VideoID, &view.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		err = r.pool.QueryRow(ctx,
			`SELECT user_id, video_id, created_at FROM video_views WHERE user_id = $1 AND video_id = $2`,
			userID, videoID).Scan(&view.UserID, &view.VideoID, &view.CreatedAt)
	}
	if err != nil {
		return models.View{}, fmt.Errorf("create view: %w", mapConstraintError(err))
	}
	return view, nil
}

func (r *postgresRepository) CreateSubscription(ctx context.Context, viewerID, creatorID string) (models.Subscription, error) {
	if viewerID == creatorID {
		return models.Subscription{}, ErrSelfSubscription
	}
	query := `INSERT INTO subscriptions (viewer_id, creator_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (viewer_id, creator_id) DO NOTHING
RETURNING viewer_id, creator_id, created_at`
	var subscription models.Subscription
	err := r.pool.QueryRow(ctx, query, viewerID, creatorID, r.now()).
		Scan(&subscription.ViewerID, &subscription.CreatorID, &subscription.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		err = r.pool.QueryRow(ctx,
			`SELECT viewer_id, creator_id, created_at FROM subscriptions WHERE viewer_id = $1 AND creator_id = $2`,
			viewerID, creatorID).Scan(&subscription.ViewerID, &subscription.CreatorID, &subscription.CreatedAt)
	}
	if err != nil {
		return models.Subscription{}, fmt.Errorf("create subscription: %w", mapConstraintError(err))
	}
	return subscription, nil
}

func (r *postgresRepository) DeleteSubscription(ctx context.Context, viewerID, creatorID string) error {
	if viewerID == creatorID {
		return ErrSelfSubscription
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM subscriptions WHERE viewer_id = $1 AND creator_id = $2`, viewerID, creatorID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
