// Command migrate-json-to-postgres imports a JSON datastore snapshot into
// Postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"cliptide/internal/storage"
)

func main() {
	jsonPath := flag.String("json", "data/cliptide.json", "path to the JSON datastore to migrate")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	dsn := strings.TrimSpace(*postgresDSN)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("CLIPTIDE_POSTGRES_DSN"))
	}
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		logger.Error("postgres DSN required", "hint", "set --postgres-dsn, CLIPTIDE_POSTGRES_DSN, or DATABASE_URL")
		os.Exit(1)
	}

	snapshot, err := storage.NewStorage(*jsonPath)
	if err != nil {
		logger.Error("failed to load JSON snapshot", "error", err)
		os.Exit(1)
	}
	counts := snapshot.Counts()
	logger.Info("loaded JSON snapshot", "path", *jsonPath, "users", counts.Users, "videos", counts.Videos, "comments", counts.Comments)

	ctx := context.Background()
	repo, err := storage.NewPostgresRepository(dsn)
	if err != nil {
		logger.Error("failed to open postgres repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close(ctx)

	if err := storage.EnsureSchema(ctx, repo); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	if err := storage.ImportSnapshot(ctx, repo, snapshot); err != nil {
		logger.Error("failed to import snapshot", "error", err)
		os.Exit(1)
	}
	if err := verifyCounts(ctx, dsn, counts); err != nil {
		logger.Error("verification failed", "error", err)
		os.Exit(1)
	}

	logger.Info("migration completed",
		"users", counts.Users,
		"categories", counts.Categories,
		"videos", counts.Videos,
		"comments", counts.Comments,
		"subscriptions", counts.Subscriptions,
	)
}

// verifyCounts reads the migrated tables back and compares row counts with
// the snapshot. Rows already present in Postgres are tolerated upward: the
// importer skips conflicts instead of overwriting.
func verifyCounts(ctx context.Context, dsn string, counts storage.SnapshotCounts) error {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse verification config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open verification connection: %w", err)
	}
	defer pool.Close()

	checks := []struct {
		name     string
		query    string
		expected int
	}{
		{"users", "SELECT COUNT(*) FROM users", counts.Users},
		{"categories", "SELECT COUNT(*) FROM categories", counts.Categories},
		{"videos", "SELECT COUNT(*) FROM videos", counts.Videos},
		{"comments", "SELECT COUNT(*) FROM comments", counts.Comments},
		{"video_reactions", "SELECT COUNT(*) FROM video_reactions", counts.VideoReactions},
		{"comment_reactions", "SELECT COUNT(*) FROM comment_reactions", counts.CommentReactions},
		{"video_views", "SELECT COUNT(*) FROM video_views", counts.Views},
		{"subscriptions", "SELECT COUNT(*) FROM subscriptions", counts.Subscriptions},
	}

	for _, check := range checks {
		var actual int
		if err := pool.QueryRow(ctx, check.query).Scan(&actual); err != nil {
			return fmt.Errorf("query %s: %w", check.name, err)
		}
		if actual < check.expected {
			return fmt.Errorf("mismatch for %s: expected at least %d, got %d", check.name, check.expected, actual)
		}
	}
	return nil
}
