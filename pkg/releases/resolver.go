package releases

import (
	"context"
	"fmt"
	"time"

	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/events"
	"github.com/dotnetup/dotnetup/pkg/install"
	"github.com/dotnetup/dotnetup/pkg/version"
)

// Resolver turns version specifiers into concrete versions using the
// release index and channel manifests.
type Resolver struct {
	client *Client
	sink   events.Sink
}

// NewResolver creates a resolver over client. A nil sink discards events.
func NewResolver(client *Client, sink events.Sink) *Resolver {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &Resolver{client: client, sink: sink}
}

// Resolve maps specifier to a concrete 3-part version for mode.
//
// Resolution by specifier shape:
//   - fully specified versions pass through unchanged
//   - a major ("7") or major.minor ("7.0") specifier selects the matching
//     channel's latest SDK or latest runtime, per mode; a bare major is
//     normalized by appending ".0"
//   - a feature band wildcard ("7.0.3xx", SDK only) scans the channel
//     manifest in document order and returns the first SDK in that band
//
// Failures are posted to the event sink before being returned, and always
// name the original specifier and mode.
func (r *Resolver) Resolve(ctx context.Context, specifier string, mode install.Mode) (string, error) {
	resolved, err := r.resolve(ctx, specifier, mode)
	if err != nil {
		r.sink.Post(events.Event{
			Kind:      events.KindResolutionFailed,
			Message:   fmt.Sprintf("could not resolve .NET %s version %q", mode, specifier),
			Specifier: specifier,
			Err:       err,
			Time:      time.Now(),
		})
		return "", err
	}
	return resolved, nil
}

func (r *Resolver) resolve(ctx context.Context, specifier string, mode install.Mode) (string, error) {
	switch version.Classify(specifier) {
	case version.KindFullySpecified:
		return specifier, nil

	case version.KindMajor, version.KindMajorMinor:
		majorMinor, err := version.MajorMinor(specifier)
		if err != nil {
			return "", err
		}
		return r.fromChannel(ctx, specifier, majorMinor, mode)

	case version.KindFeatureBandWildcard:
		return r.fromManifest(ctx, specifier, mode)
	}

	return "", errors.New(errors.ErrCodeVersionFormat, "unrecognized version specifier %q", specifier)
}

func (r *Resolver) fromChannel(ctx context.Context, specifier, majorMinor string, mode install.Mode) (string, error) {
	idx, err := r.client.Index(ctx, false)
	if err != nil {
		return "", err
	}

	channel := idx.Channel(majorMinor)
	if channel == nil {
		return "", errors.New(errors.ErrCodeVersionResolution, "no release channel matches %q (%s)", specifier, mode)
	}

	resolved := channel.LatestSDK
	if mode != install.ModeSDK {
		resolved = channel.LatestRuntime
	}
	if resolved == "" {
		return "", errors.New(errors.ErrCodeInvalidManifest, "channel %s lists no latest %s version", majorMinor, mode)
	}
	return resolved, nil
}

func (r *Resolver) fromManifest(ctx context.Context, specifier string, mode install.Mode) (string, error) {
	// Feature bands group SDK patches; runtimes have no band concept.
	if mode != install.ModeSDK {
		return "", errors.New(errors.ErrCodeVersionFormat, "feature band wildcard %q applies only to sdk installs", specifier)
	}

	majorMinor, err := version.MajorMinor(specifier)
	if err != nil {
		return "", err
	}
	band, err := version.FeatureBand(specifier)
	if err != nil {
		return "", err
	}

	manifest, err := r.client.Manifest(ctx, majorMinor, false)
	if err != nil {
		return "", err
	}

	// The manifest lists newest releases first; trust that order rather
	// than re-sorting, since prerelease suffixes break naive numeric
	// comparison of patch components.
	for _, release := range manifest.Releases {
		for _, sdk := range release.AllSDKs() {
			b, err := version.FeatureBand(sdk.Version)
			if err != nil {
				continue
			}
			if b == band {
				return sdk.Version, nil
			}
		}
	}

	return "", errors.New(errors.ErrCodeFeatureBandNotFound, "no sdk in channel %s matches %q", majorMinor, specifier)
}
