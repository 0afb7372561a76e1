// Package media talks to the external video processing provider: it
// provisions direct-upload slots, releases processed assets, and derives
// image URLs from playback ids. Status transitions flow back asynchronously
// through the provider's webhook, handled by the API layer.
package media

import (
	"context"

	"github.com/google/uuid"
)

// Upload is a provisioned direct-upload slot. The encoder PUTs the file to
// URL; ID correlates the later pipeline events with the video row.
type Upload struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Controller provisions and releases provider resources.
//
// Implementations should be safe for concurrent use.
type Controller interface {
	// CreateUpload provisions a direct-upload slot. The passthrough value is
	// echoed back in pipeline events.
	CreateUpload(ctx context.Context, passthrough string) (Upload, error)

	// DeleteAsset releases a processed asset, best-effort freeing provider
	// storage after the owning video row is gone.
	DeleteAsset(ctx context.Context, assetID string) error

	// ThumbnailURL derives the poster image location for a playback id.
	ThumbnailURL(playbackID string) string

	// PreviewURL derives the animated preview location for a playback id.
	PreviewURL(playbackID string) string
}

// NoopController is a Controller used in tests and in deployments where no
// provider is configured. Upload slots get a synthetic id so the rest of the
// flow still works against the in-memory store.
type NoopController struct{}

func (NoopController) CreateUpload(ctx context.Context, passthrough string) (Upload, error) {
	return Upload{ID: "noop-" + uuid.NewString(), URL: ""}, nil
}

func (NoopController) DeleteAsset(ctx context.Context, assetID string) error { return nil }

func (NoopController) ThumbnailURL(playbackID string) string { return "" }

func (NoopController) PreviewURL(playbackID string) string { return "" }
