package storage

import (
	"testing"
	"time"
)

func TestNormalizeLimit(t *testing.T) {
	got, err := NormalizeLimit(0)
	if err != nil {
		t.Fatalf("NormalizeLimit(0) returned error: %v", err)
	}
	if got != DefaultPageSize {
		t.Fatalf("NormalizeLimit(0) = %d, want %d", got, DefaultPageSize)
	}
	if got, err := NormalizeLimit(MaxPageSize); err != nil || got != MaxPageSize {
		t.Fatalf("NormalizeLimit(%d) = %d, %v", MaxPageSize, got, err)
	}
	for _, limit := range []int{-1, MaxPageSize + 1} {
		if _, err := NormalizeLimit(limit); err == nil {
			t.Fatalf("NormalizeLimit(%d) accepted out-of-range limit", limit)
		}
	}
}

func TestBeforeTimeCursor(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cursor := &TimeCursor{ID: "bbbbbbbb-0000-0000-0000-000000000000", UpdatedAt: at}

	if !beforeTimeCursor(nil, at, "any") {
		t.Fatal("nil cursor should admit every row")
	}
	if !beforeTimeCursor(cursor, at.Add(-time.Second), "zzzzzzzz-0000-0000-0000-000000000000") {
		t.Fatal("older row should pass the cursor")
	}
	if beforeTimeCursor(cursor, at.Add(time.Second), "aaaaaaaa-0000-0000-0000-000000000000") {
		t.Fatal("newer row should not pass the cursor")
	}
	if !beforeTimeCursor(cursor, at, "aaaaaaaa-0000-0000-0000-000000000000") {
		t.Fatal("equal timestamp with smaller id should pass the cursor")
	}
	if beforeTimeCursor(cursor, at, cursor.ID) {
		t.Fatal("the cursor row itself must not reappear")
	}
	if beforeTimeCursor(cursor, at, "cccccccc-0000-0000-0000-000000000000") {
		t.Fatal("equal timestamp with larger id should not pass the cursor")
	}
}

func TestBeforeCountCursor(t *testing.T) {
	cursor := &CountCursor{ID: "bbbbbbbb-0000-0000-0000-000000000000", ViewCount: 10}

	if !beforeCountCursor(nil, 99, "any") {
		t.Fatal("nil cursor should admit every row")
	}
	if !beforeCountCursor(cursor, 9, "zzzzzzzz-0000-0000-0000-000000000000") {
		t.Fatal("lower count should pass the cursor")
	}
	if beforeCountCursor(cursor, 11, "aaaaaaaa-0000-0000-0000-000000000000") {
		t.Fatal("higher count should not pass the cursor")
	}
	if !beforeCountCursor(cursor, 10, "aaaaaaaa-0000-0000-0000-000000000000") {
		t.Fatal("equal count with smaller id should pass the cursor")
	}
	if beforeCountCursor(cursor, 10, cursor.ID) {
		t.Fatal("the cursor row itself must not reappear")
	}
}

func TestTrimPage(t *testing.T) {
	rows := []int{1, 2, 3}
	trimmed, hasMore := trimPage(rows, 2)
	if !hasMore {
		t.Fatal("three rows at limit 2 should report another page")
	}
	if len(trimmed) != 2 || trimmed[0] != 1 || trimmed[1] != 2 {
		t.Fatalf("trimPage returned %v, want [1 2]", trimmed)
	}

	trimmed, hasMore = trimPage(rows, 3)
	if hasMore {
		t.Fatal("exactly limit rows should not report another page")
	}
	if len(trimmed) != 3 {
		t.Fatalf("trimPage dropped rows: %v", trimmed)
	}

	trimmed, hasMore = trimPage([]int{}, 3)
	if hasMore || len(trimmed) != 0 {
		t.Fatalf("empty input mishandled: %v, %v", trimmed, hasMore)
	}
}
