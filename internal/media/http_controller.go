package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config points the HTTP controller at the provider's REST API.
type Config struct {
	// BaseURL is the provider API root, e.g. https://api.provider.example.
	BaseURL string
	// Token authenticates API calls as a bearer credential.
	Token string
	// ImageBaseURL is the root of the provider's image CDN, from which
	// thumbnail and preview URLs are derived per playback id.
	ImageBaseURL string
	// PlaybackPolicy is requested for new assets; defaults to "public".
	PlaybackPolicy string
	// HTTPClient overrides the default 10s-timeout client, mainly for tests.
	HTTPClient *http.Client
}

// HTTPController implements Controller against the provider's REST API.
type HTTPController struct {
	config Config
}

// NewHTTPController validates the config and returns a controller.
func NewHTTPController(config Config) (*HTTPController, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("media base URL is required")
	}
	if config.PlaybackPolicy == "" {
		config.PlaybackPolicy = "public"
	}
	return &HTTPController{config: config}, nil
}

type uploadRequest struct {
	CORSOrigin       string           `json:"corsOrigin"`
	NewAssetSettings newAssetSettings `json:"newAssetSettings"`
}

type newAssetSettings struct {
	Passthrough    string   `json:"passthrough"`
	PlaybackPolicy []string `json:"playbackPolicy"`
}

type uploadResponse struct {
	Data Upload `json:"data"`
}

func (c *HTTPController) CreateUpload(ctx context.Context, passthrough string) (Upload, error) {
	payload := uploadRequest{
		CORSOrigin: "*",
		NewAssetSettings: newAssetSettings{
			Passthrough:    passthrough,
			PlaybackPolicy: []string{c.config.PlaybackPolicy},
		},
	}
	var response uploadResponse
	if err := c.post(ctx, fmt.Sprintf("%s/video/v1/uploads", strings.TrimRight(c.config.BaseURL, "/")), payload, &response); err != nil {
		return Upload{}, fmt.Errorf("create upload: %w", err)
	}
	if response.Data.ID == "" {
		return Upload{}, fmt.Errorf("create upload: provider returned no id")
	}
	return response.Data, nil
}

func (c *HTTPController) DeleteAsset(ctx context.Context, assetID string) error {
	if assetID == "" {
		return nil
	}
	url := fmt.Sprintf("%s/video/v1/assets/%s", strings.TrimRight(c.config.BaseURL, "/"), assetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	defer resp.Body.Close()
	// The asset may already be gone under at-least-once webhook delivery.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete asset: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return nil
}

func (c *HTTPController) ThumbnailURL(playbackID string) string {
	if playbackID == "" || c.config.ImageBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/thumbnail.jpg", strings.TrimRight(c.config.ImageBaseURL, "/"), playbackID)
}

func (c *HTTPController) PreviewURL(playbackID string) string {
	if playbackID == "" || c.config.ImageBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/animated.gif", strings.TrimRight(c.config.ImageBaseURL, "/"), playbackID)
}

func (c *HTTPController) client() *http.Client {
	if c.config.HTTPClient != nil {
		return c.config.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *HTTPController) authorize(req *http.Request) {
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
}

func (c *HTTPController) post(ctx context.Context, url string, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
