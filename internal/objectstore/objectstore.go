// Package objectstore persists thumbnail images in an S3-compatible bucket.
// Requests are signed with SigV4 directly so any S3-compatible endpoint
// (MinIO, R2, AWS) works without a vendor SDK.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRequestTimeout = 15 * time.Second

// Maximum image size accepted when copying a thumbnail from a remote URL.
const maxFetchBytes = 8 << 20

// Config describes the target bucket. Leaving Bucket or Endpoint empty
// disables the store; callers then keep provider-hosted thumbnail URLs.
type Config struct {
	Endpoint       string
	PublicEndpoint string
	Bucket         string
	Prefix         string
	Region         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	RequestTimeout time.Duration
}

// Object identifies a stored image: the bucket key for later deletion and
// the public URL for serving.
type Object struct {
	Key string
	URL string
}

// Client stores and removes thumbnail objects.
type Client interface {
	Enabled() bool
	Upload(ctx context.Context, key, contentType string, body []byte) (Object, error)
	// UploadFromURL fetches an image and stores it under key. Used to copy a
	// provider-hosted thumbnail into the bucket the app controls.
	UploadFromURL(ctx context.Context, key, srcURL string) (Object, error)
	Delete(ctx context.Context, key string) error
}

// New returns a SigV4-signing client, or a disabled no-op client when the
// config does not name a bucket and endpoint.
func New(cfg Config) Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if bucket == "" || endpoint == "" {
		return noopClient{}
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	if strings.Contains(endpoint, "://") {
		if parsed, err := url.Parse(endpoint); err == nil {
			endpoint = parsed.Host
		}
	}
	base := &url.URL{Scheme: scheme, Host: endpoint}
	if base.Host == "" {
		return noopClient{}
	}
	cfg.Bucket = bucket
	return &s3Client{
		cfg:        cfg,
		endpoint:   base,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type noopClient struct{}

func (noopClient) Enabled() bool { return false }

func (noopClient) Upload(context.Context, string, string, []byte) (Object, error) {
	return Object{}, nil
}

func (noopClient) UploadFromURL(context.Context, string, string) (Object, error) {
	return Object{}, nil
}

func (noopClient) Delete(context.Context, string) error { return nil }

type s3Client struct {
	cfg        Config
	endpoint   *url.URL
	httpClient *http.Client
}

func (c *s3Client) Enabled() bool { return true }

func (c *s3Client) Upload(ctx context.Context, key, contentType string, body []byte) (Object, error) {
	finalKey := c.applyPrefix(key)
	target := c.objectURL(finalKey)
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, target.String(), strings.NewReader(string(body)))
	if err != nil {
		return Object{}, fmt.Errorf("create upload request: %w", err)
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	signRequest(request, c.cfg, hashSHA256Hex(body))
	response, err := c.httpClient.Do(request)
	if err != nil {
		return Object{}, fmt.Errorf("upload object %s: %w", finalKey, err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return Object{}, fmt.Errorf("upload object %s: unexpected status %d", finalKey, response.StatusCode)
	}
	return Object{Key: finalKey, URL: c.publicURL(finalKey)}, nil
}

func (c *s3Client) UploadFromURL(ctx context.Context, key, srcURL string) (Object, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return Object{}, fmt.Errorf("create fetch request: %w", err)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return Object{}, fmt.Errorf("fetch %s: %w", srcURL, err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return Object{}, fmt.Errorf("fetch %s: unexpected status %d", srcURL, response.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, maxFetchBytes+1))
	if err != nil {
		return Object{}, fmt.Errorf("read %s: %w", srcURL, err)
	}
	if len(body) > maxFetchBytes {
		return Object{}, fmt.Errorf("fetch %s: image exceeds %d bytes", srcURL, maxFetchBytes)
	}
	contentType := response.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return c.Upload(ctx, key, contentType, body)
}

func (c *s3Client) Delete(ctx context.Context, key string) error {
	finalKey := c.applyPrefix(key)
	target := c.objectURL(finalKey)
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, target.String(), nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	signRequest(request, c.cfg, emptyPayloadHash)
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("delete object %s: %w", finalKey, err)
	}
	defer response.Body.Close()
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("delete object %s: unexpected status %d", finalKey, response.StatusCode)
}

func (c *s3Client) applyPrefix(key string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(key), "/")
	prefix := strings.Trim(strings.TrimSpace(c.cfg.Prefix), "/")
	if prefix == "" {
		return trimmed
	}
	if trimmed == "" {
		return prefix
	}
	if trimmed == prefix || strings.HasPrefix(trimmed, prefix+"/") {
		return trimmed
	}
	return prefix + "/" + trimmed
}

func (c *s3Client) objectURL(finalKey string) *url.URL {
	path := "/" + strings.TrimLeft(c.cfg.Bucket, "/")
	if trimmedKey := strings.TrimLeft(finalKey, "/"); trimmedKey != "" {
		path += "/" + trimmedKey
	}
	u := *c.endpoint
	u.Path = path
	return &u
}

func (c *s3Client) publicURL(key string) string {
	base := strings.TrimSpace(c.cfg.PublicEndpoint)
	if base == "" {
		return ""
	}
	trimmedBase := strings.TrimRight(base, "/")
	trimmedKey := strings.TrimLeft(key, "/")
	if trimmedKey == "" {
		return trimmedBase
	}
	return trimmedBase + "/" + trimmedKey
}
