package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPTriggerRun(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody runRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"runId": "run-42"})
	}))
	defer server.Close()

	trigger, err := NewHTTPTrigger(Config{BaseURL: server.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("NewHTTPTrigger: %v", err)
	}
	runID, err := trigger.Run(context.Background(), KindTitle, "video-1", "user-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runID != "run-42" {
		t.Fatalf("runID = %q, want run-42", runID)
	}
	if gotPath != "/v1/workflows/title" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotBody.VideoID != "video-1" || gotBody.UserID != "user-1" {
		t.Fatalf("body = %+v", gotBody)
	}
}

func TestHTTPTriggerRejectsUnknownKind(t *testing.T) {
	trigger, err := NewHTTPTrigger(Config{BaseURL: "https://runner.example"})
	if err != nil {
		t.Fatalf("NewHTTPTrigger: %v", err)
	}
	if _, err := trigger.Run(context.Background(), Kind("summary"), "v", "u"); err == nil {
		t.Fatal("unknown kind should be rejected before any HTTP call")
	}
}

func TestHTTPTriggerSurfacesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "runner down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	trigger, err := NewHTTPTrigger(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewHTTPTrigger: %v", err)
	}
	if _, err := trigger.Run(context.Background(), KindDescription, "v", "u"); err == nil {
		t.Fatal("5xx from the runner should surface as an error")
	}
}
