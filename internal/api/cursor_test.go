package api

import (
	"encoding/base64"
	"net/http/httptest"
	"testing"
	"time"

	"cliptide/internal/storage"
)

func TestLimitParam(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		want    int
		wantErr bool
	}{
		{name: "absent means default", query: "", want: 0},
		{name: "explicit value", query: "limit=5", want: 5},
		{name: "maximum", query: "limit=100", want: 100},
		{name: "not a number", query: "limit=abc", wantErr: true},
		{name: "zero", query: "limit=0", wantErr: true},
		{name: "over maximum", query: "limit=101", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/videos?"+tc.query, nil)
			got, err := limitParam(req)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("limitParam(%q) succeeded, want error", tc.query)
				}
				return
			}
			if err != nil {
				t.Fatalf("limitParam(%q): %v", tc.query, err)
			}
			if got != tc.want {
				t.Fatalf("limitParam(%q) = %d, want %d", tc.query, got, tc.want)
			}
		})
	}
}

func TestTimeCursorRoundTrip(t *testing.T) {
	cursor := storage.TimeCursor{ID: "video-1", UpdatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	token := timeCursorToken(&cursor)
	if token == nil {
		t.Fatal("expected a token")
	}

	req := httptest.NewRequest("GET", "/api/videos?cursor="+*token, nil)
	parsed, err := timeCursorParam(req)
	if err != nil {
		t.Fatalf("timeCursorParam: %v", err)
	}
	if parsed == nil || parsed.ID != cursor.ID || !parsed.UpdatedAt.Equal(cursor.UpdatedAt) {
		t.Fatalf("parsed = %+v, want %+v", parsed, cursor)
	}
}

func TestCountCursorRoundTrip(t *testing.T) {
	cursor := storage.CountCursor{ID: "video-1", ViewCount: 42}
	token := countCursorToken(&cursor)
	if token == nil {
		t.Fatal("expected a token")
	}

	req := httptest.NewRequest("GET", "/api/videos/trending?cursor="+*token, nil)
	parsed, err := countCursorParam(req)
	if err != nil {
		t.Fatalf("countCursorParam: %v", err)
	}
	if parsed == nil || parsed.ID != cursor.ID || parsed.ViewCount != cursor.ViewCount {
		t.Fatalf("parsed = %+v, want %+v", parsed, cursor)
	}
}

func TestCursorParamRejectsMalformedTokens(t *testing.T) {
	emptyObject := base64.RawURLEncoding.EncodeToString([]byte(`{}`))
	notJSON := base64.RawURLEncoding.EncodeToString([]byte(`not json`))
	for _, token := range []string{"!!!not-base64", notJSON, emptyObject} {
		req := httptest.NewRequest("GET", "/api/videos?cursor="+token, nil)
		if _, err := timeCursorParam(req); err == nil {
			t.Fatalf("token %q accepted, want validation error", token)
		}
	}
	// A well-formed token pointing at a deleted row is not a validation
	// error; the storage predicate just keeps paging past it.
	valid := storage.TimeCursor{ID: "gone", UpdatedAt: time.Now()}
	req := httptest.NewRequest("GET", "/api/videos?cursor="+*timeCursorToken(&valid), nil)
	if _, err := timeCursorParam(req); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
}
