package storage

import (
	"context"
	"fmt"
)

// ImportSnapshot copies a JSON datastore into Postgres, preserving ids and
// timestamps. Parent rows are inserted before their dependents so foreign
// keys hold; top-level comments go in before replies for the same reason.
// Conflicting rows are skipped, so a partially imported database can be
// retried.
func ImportSnapshot(ctx context.Context, repo Repository, src *Storage) error {
	pg, ok := repo.(*postgresRepository)
	if !ok {
		return fmt.Errorf("import requires a postgres repository")
	}
	src.mu.RLock()
	defer src.mu.RUnlock()

	tx, err := pg.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, user := range src.data.Users {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (id, identity_id, name, email, avatar_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
			user.ID, user.IdentityID, user.Name, user.Email, user.AvatarURL, user.CreatedAt, user.UpdatedAt)
		if err != nil {
			return fmt.Errorf("import user %s: %w", user.ID, err)
		}
	}
	for _, category := range src.data.Categories {
		_, err := tx.Exec(ctx,
			`INSERT INTO categories (id, name, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			category.ID, category.Name, category.Description, category.CreatedAt, category.UpdatedAt)
		if err != nil {
			return fmt.Errorf("import category %s: %w", category.ID, err)
		}
	}
	for _, video := range src.data.Videos {
		_, err := tx.Exec(ctx,
			`INSERT INTO videos (id, owner_id, title, description, visibility, category_id, media_status,
  upload_id, asset_id, playback_id, track_id, track_status,
  thumbnail_url, thumbnail_key, preview_url, duration_ms, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (id) DO NOTHING`,
			video.ID, video.OwnerID, video.Title, video.Description, video.Visibility, video.CategoryID,
			video.MediaStatus, video.UploadID, video.AssetID, video.PlaybackID, video.TrackID, video.TrackStatus,
			video.ThumbnailURL, video.ThumbnailKey, video.PreviewURL, video.DurationMS, video.CreatedAt, video.UpdatedAt)
		if err != nil {
			return fmt.Errorf("import video %s: %w", video.ID, err)
		}
	}
	for pass := 0; pass < 2; pass++ {
		for _, comment := range src.data.Comments {
			topLevel := comment.ParentID == nil
			if (pass == 0) != topLevel {
				continue
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO comments (id, video_id, author_id, parent_id, value, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
				comment.ID, comment.VideoID, comment.AuthorID, comment.ParentID, comment.Value,
				comment.CreatedAt, comment.UpdatedAt)
			if err != nil {
				return fmt.Errorf("import comment %s: %w", comment.ID, err)
			}
		}
	}
	for _, byUser := range src.data.VideoReactions {
		for _, reaction := range byUser {
			_, err := tx.Exec(ctx,
				`INSERT INTO video_reactions (user_id, video_id, type, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5) ON CONFLICT (user_id, video_id) DO NOTHING`,
				reaction.UserID, reaction.VideoID, reaction.Type, reaction.CreatedAt, reaction.UpdatedAt)
			if err != nil {
				return fmt.Errorf("import video reaction: %w", err)
			}
		}
	}
	for _, byUser := range src.data.CommentReactions {
		for _, reaction := range byUser {
			_, err := tx.Exec(ctx,
				`INSERT INTO comment_reactions (user_id, comment_id, type, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5) ON CONFLICT (user_id, comment_id) DO NOTHING`,
				reaction.UserID, reaction.CommentID, reaction.Type, reaction.CreatedAt, reaction.UpdatedAt)
			if err != nil {
				return fmt.Errorf("import comment reaction: %w", err)
			}
		}
	}
	for _, byUser := range src.data.Views {
		for _, view := range byUser {
			_, err := tx.Exec(ctx,
				`INSERT INTO video_views (user_id, video_id, created_at)
VALUES ($1, $2, $3) ON CONFLICT (user_id, video_id) DO NOTHING`,
				view.UserID, view.VideoID, view.CreatedAt)
			if err != nil {
				return fmt.Errorf("import view: %w", err)
			}
		}
	}
	for _, byViewer := range src.data.Subscriptions {
		for _, subscription := range byViewer {
			_, err := tx.Exec(ctx,
				`INSERT INTO subscriptions (viewer_id, creator_id, created_at)
VALUES ($1, $2, $3) ON CONFLICT (viewer_id, creator_id) DO NOTHING`,
				subscription.ViewerID, subscription.CreatorID, subscription.CreatedAt)
			if err != nil {
				return fmt.Errorf("import subscription: %w", err)
			}
		}
	}
	return tx.Commit(ctx)
}
