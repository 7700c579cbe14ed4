package releases

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/dotnetup/dotnetup/pkg/cache"
	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/fetch"
)

// DefaultIndexURL is the published location of the .NET release index.
const DefaultIndexURL = "https://builds.dotnet.microsoft.com/dotnet/release-metadata/releases-index.json"

// Client provides access to the .NET release metadata documents.
// It handles HTTP requests with caching and automatic retries.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*fetch.Client
	indexURL string
}

// NewClient creates a release metadata client with the given cache backend.
//
// Parameters:
//   - backend: Cache backend for HTTP response caching (use cache.NewNullCache() for no caching)
//   - cacheTTL: How long responses are cached (typical: 1-24 hours)
//   - indexURL: Release index location; empty means DefaultIndexURL
//
// The returned Client is safe for concurrent use.
func NewClient(backend cache.Cache, cacheTTL time.Duration, indexURL string) *Client {
	if indexURL == "" {
		indexURL = DefaultIndexURL
	}
	return &Client{
		Client:   fetch.NewClient(backend, "releases:", cacheTTL, nil),
		indexURL: indexURL,
	}
}

// Index retrieves the release index listing all supported channels.
//
// If refresh is true, the cache is bypassed and a fresh fetch is made.
//
// Returns:
//   - the parsed Index on success
//   - an offline_resolution error when the index is unreachable
//   - an invalid_manifest error when the document lists no channels
//
// This method is safe for concurrent use.
func (c *Client) Index(ctx context.Context, refresh bool) (*Index, error) {
	var idx Index
	err := c.Cached(ctx, "index", refresh, &idx, func() error {
		if err := c.Get(ctx, c.indexURL, &idx); err != nil {
			return err
		}
		if len(idx.Channels) == 0 {
			return errors.New(errors.ErrCodeInvalidManifest, "release index at %s lists no channels", c.indexURL)
		}
		return nil
	})
	if err != nil {
		if stderrors.Is(err, fetch.ErrNetwork) || stderrors.Is(err, fetch.ErrNotFound) {
			return nil, errors.Wrap(errors.ErrCodeOfflineResolution, err, "release index unreachable")
		}
		return nil, err
	}
	return &idx, nil
}

// Manifest retrieves the releases document for one channel, located through
// the index entry whose channel-version equals majorMinor.
//
// Returns:
//   - the parsed Manifest on success
//   - a version_resolution error when the index has no such channel
//   - an offline_resolution error when the manifest is unreachable
//   - an invalid_manifest error when the document is missing expected keys
func (c *Client) Manifest(ctx context.Context, majorMinor string, refresh bool) (*Manifest, error) {
	idx, err := c.Index(ctx, refresh)
	if err != nil {
		return nil, err
	}

	channel := idx.Channel(majorMinor)
	if channel == nil {
		return nil, errors.New(errors.ErrCodeVersionResolution, "no release channel %s in the index", majorMinor)
	}
	if channel.ManifestURL == "" {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "channel %s lists no manifest location", majorMinor)
	}

	var manifest Manifest
	err = c.Cached(ctx, "manifest:"+majorMinor, refresh, &manifest, func() error {
		if err := c.Get(ctx, channel.ManifestURL, &manifest); err != nil {
			return err
		}
		if manifest.ChannelVersion == "" || len(manifest.Releases) == 0 {
			return errors.New(errors.ErrCodeInvalidManifest, "manifest for channel %s lists no releases", majorMinor)
		}
		return nil
	})
	if err != nil {
		if stderrors.Is(err, fetch.ErrNetwork) {
			return nil, errors.Wrap(errors.ErrCodeOfflineResolution, err, "channel %s manifest unreachable", majorMinor)
		}
		if stderrors.Is(err, fetch.ErrNotFound) {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "channel %s manifest missing at its indexed location", majorMinor)
		}
		return nil, err
	}
	return &manifest, nil
}
