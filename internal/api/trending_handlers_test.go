package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"cliptide/internal/models"
)

func TestTrendingOrdersByViewCount(t *testing.T) {
	handler, store := newTestHandler(t)
	ctx := context.Background()
	creator := seedUser(t, store, "idp-creator")

	// Three videos with 0, 2 and 1 views respectively.
	quiet := publishVideo(t, store, creator, "quiet")
	popular := publishVideo(t, store, creator, "popular")
	middling := publishVideo(t, store, creator, "middling")
	for i := 0; i < 2; i++ {
		viewer := seedUser(t, store, fmt.Sprintf("idp-viewer-%d", i))
		if _, err := store.CreateView(ctx, viewer.ID, popular.ID); err != nil {
			t.Fatalf("CreateView: %v", err)
		}
		if i == 0 {
			if _, err := store.CreateView(ctx, viewer.ID, middling.ID); err != nil {
				t.Fatalf("CreateView: %v", err)
			}
		}
	}

	rec := do(t, handler.Trending, http.MethodGet, "/api/videos/trending?limit=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var first struct {
		Items []struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			ViewCount int64  `json:"viewCount"`
		} `json:"items"`
		NextCursor *string `json:"nextCursor"`
	}
	decodeInto(t, rec, &first)
	if len(first.Items) != 2 || first.Items[0].ID != popular.ID || first.Items[1].ID != middling.ID {
		t.Fatalf("first page = %+v, want [popular middling]", first.Items)
	}
	if first.Items[0].ViewCount != 2 {
		t.Fatalf("top viewCount = %d, want 2", first.Items[0].ViewCount)
	}
	if first.NextCursor == nil {
		t.Fatal("expected a next cursor")
	}

	rec = do(t, handler.Trending, http.MethodGet, "/api/videos/trending?limit=2&cursor="+*first.NextCursor, "", nil)
	var second videoPage
	decodeInto(t, rec, &second)
	if len(second.Items) != 1 || second.Items[0].ID != quiet.ID {
		t.Fatalf("second page = %v, want [quiet]", pageTitles(second))
	}
}

func TestCategories(t *testing.T) {
	handler, store := newTestHandler(t)
	if err := store.SeedCategories(context.Background(), []string{"Music", "Gaming"}); err != nil {
		t.Fatalf("SeedCategories: %v", err)
	}

	rec := do(t, handler.Categories, http.MethodGet, "/api/categories", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Items []models.Category `json:"items"`
	}
	decodeInto(t, rec, &body)
	if len(body.Items) != 2 {
		t.Fatalf("categories = %d, want 2", len(body.Items))
	}

	// Seeding only applies to an empty table; a restart does not duplicate
	// or replace rows.
	if err := store.SeedCategories(context.Background(), []string{"Music", "News"}); err != nil {
		t.Fatalf("SeedCategories: %v", err)
	}
	rec = do(t, handler.Categories, http.MethodGet, "/api/categories", "", nil)
	decodeInto(t, rec, &body)
	if len(body.Items) != 2 {
		t.Fatalf("categories after reseed = %d, want 2", len(body.Items))
	}
}
