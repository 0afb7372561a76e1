// Package workflow triggers asynchronous content-generation jobs. A job runs
// outside this process and reports its result back through the workflow
// callback endpoint, which applies the generated text to the video.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind selects which generation job to run.
type Kind string

const (
	KindTitle       Kind = "title"
	KindDescription Kind = "description"
)

// Valid reports whether the kind names a known job.
func (k Kind) Valid() bool {
	return k == KindTitle || k == KindDescription
}

// Trigger starts a generation job for a video and returns the runner's id
// for the queued run.
//
// Implementations should be safe for concurrent use.
type Trigger interface {
	Run(ctx context.Context, kind Kind, videoID, userID string) (string, error)
}

// Config points the HTTP trigger at the workflow runner.
type Config struct {
	// BaseURL is the runner's API root.
	BaseURL string
	// Token authenticates trigger calls as a bearer credential.
	Token string
	// HTTPClient overrides the default 10s-timeout client, mainly for tests.
	HTTPClient *http.Client
}

// HTTPTrigger implements Trigger against the runner's REST API.
type HTTPTrigger struct {
	config Config
}

// NewHTTPTrigger validates the config and returns a trigger.
func NewHTTPTrigger(config Config) (*HTTPTrigger, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("workflow base URL is required")
	}
	return &HTTPTrigger{config: config}, nil
}

type runRequest struct {
	VideoID string `json:"videoId"`
	UserID  string `json:"userId"`
}

type runResponse struct {
	RunID string `json:"runId"`
}

func (t *HTTPTrigger) Run(ctx context.Context, kind Kind, videoID, userID string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown workflow kind %q", kind)
	}
	body, err := json.Marshal(runRequest{VideoID: videoID, UserID: userID})
	if err != nil {
		return "", fmt.Errorf("marshal workflow request: %w", err)
	}
	url := fmt.Sprintf("%s/v1/workflows/%s", strings.TrimRight(t.config.BaseURL, "/"), kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.config.Token)
	}
	client := t.config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("trigger %s workflow: %w", kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("trigger %s workflow: %s: %s", kind, resp.Status, strings.TrimSpace(string(data)))
	}
	var parsed runResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		// Older runners respond with an empty body.
		return "", nil
	}
	return parsed.RunID, nil
}

// NoopTrigger is used in tests and in deployments without a workflow runner.
type NoopTrigger struct{}

func (NoopTrigger) Run(ctx context.Context, kind Kind, videoID, userID string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown workflow kind %q", kind)
	}
	return "noop-" + uuid.NewString(), nil
}
