package storage

import (
	"context"
	"fmt"
)

// schemaStatements is executed in order by EnsureSchema. Every statement is
// idempotent so the list can run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id uuid PRIMARY KEY,
		identity_id text NOT NULL UNIQUE,
		name text NOT NULL,
		email text NOT NULL DEFAULT '',
		avatar_url text NOT NULL DEFAULT '',
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id uuid PRIMARY KEY,
		name text NOT NULL UNIQUE,
		description text NOT NULL DEFAULT '',
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL
	)`,
	`ALTER TABLE categories ADD COLUMN IF NOT EXISTS description text NOT NULL DEFAULT ''`,
	`CREATE TABLE IF NOT EXISTS videos (
		id uuid PRIMARY KEY,
		owner_id uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		title text NOT NULL,
		description text NOT NULL DEFAULT '',
		visibility text NOT NULL DEFAULT 'private' CHECK (visibility IN ('public', 'private')),
		category_id uuid REFERENCES categories (id) ON DELETE SET NULL,
		media_status text NOT NULL DEFAULT 'waiting',
		upload_id text NOT NULL DEFAULT '',
		asset_id text NOT NULL DEFAULT '',
		playback_id text NOT NULL DEFAULT '',
		track_id text NOT NULL DEFAULT '',
		track_status text NOT NULL DEFAULT '',
		thumbnail_url text NOT NULL DEFAULT '',
		thumbnail_key text NOT NULL DEFAULT '',
		preview_url text NOT NULL DEFAULT '',
		duration_ms bigint NOT NULL DEFAULT 0,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id uuid PRIMARY KEY,
		video_id uuid NOT NULL REFERENCES videos (id) ON DELETE CASCADE,
		author_id uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		parent_id uuid REFERENCES comments (id) ON DELETE CASCADE,
		value text NOT NULL,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS video_reactions (
		user_id uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		video_id uuid NOT NULL REFERENCES videos (id) ON DELETE CASCADE,
		type text NOT NULL CHECK (type IN ('like', 'dislike')),
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL,
		PRIMARY KEY (user_id, video_id)
	)`,
	`CREATE TABLE IF NOT EXISTS comment_reactions (
		user_id uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		comment_id uuid NOT NULL REFERENCES comments (id) ON DELETE CASCADE,
		type text NOT NULL CHECK (type IN ('like', 'dislike')),
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL,
		PRIMARY KEY (user_id, comment_id)
	)`,
	`CREATE TABLE IF NOT EXISTS video_views (
		user_id uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		video_id uuid NOT NULL REFERENCES videos (id) ON DELETE CASCADE,
		created_at timestamptz NOT NULL,
		PRIMARY KEY (user_id, video_id)
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		viewer_id uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		creator_id uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		created_at timestamptz NOT NULL,
		PRIMARY KEY (viewer_id, creator_id),
		CHECK (viewer_id <> creator_id)
	)`,
	`CREATE INDEX IF NOT EXISTS videos_feed_idx ON videos (visibility, updated_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS videos_owner_idx ON videos (owner_id, updated_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS videos_upload_idx ON videos (upload_id)`,
	`CREATE INDEX IF NOT EXISTS videos_asset_idx ON videos (asset_id)`,
	`CREATE INDEX IF NOT EXISTS comments_video_idx ON comments (video_id, updated_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS comments_parent_idx ON comments (parent_id)`,
	`CREATE INDEX IF NOT EXISTS video_reactions_video_idx ON video_reactions (video_id, type)`,
	`CREATE INDEX IF NOT EXISTS comment_reactions_comment_idx ON comment_reactions (comment_id, type)`,
	`CREATE INDEX IF NOT EXISTS video_views_video_idx ON video_views (video_id)`,
	`CREATE INDEX IF NOT EXISTS subscriptions_creator_idx ON subscriptions (creator_id)`,
}

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, repo Repository) error {
	pg, ok := repo.(*postgresRepository)
	if !ok {
		return nil
	}
	for _, stmt := range schemaStatements {
		if _, err := pg.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
