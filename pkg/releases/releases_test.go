package releases

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dotnetup/dotnetup/pkg/cache"
	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/events"
	"github.com/dotnetup/dotnetup/pkg/install"
)

// newMetadataServer serves a release index with channels 7.0 and 8.0 and a
// 7.0 channel manifest listing releases newest first.
func newMetadataServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()

	requests := new(int)
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/releases-index.json", func(w http.ResponseWriter, r *http.Request) {
		*requests++
		w.Write([]byte(`{
			"releases-index": [
				{
					"channel-version": "8.0",
					"latest-runtime": "8.0.11",
					"latest-sdk": "8.0.404",
					"support-phase": "active",
					"eol-date": "2026-11-10",
					"releases.json": "` + server.URL + `/8.0/releases.json"
				},
				{
					"channel-version": "7.0",
					"latest-runtime": "7.0.20",
					"latest-sdk": "7.0.410",
					"support-phase": "eol",
					"eol-date": "2024-05-14",
					"releases.json": "` + server.URL + `/7.0/releases.json"
				}
			]
		}`))
	})

	// Newest release first. The older release deliberately lists a band-3
	// SDK with a higher patch so order-trusting resolution is observable.
	mux.HandleFunc("/7.0/releases.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"channel-version": "7.0",
			"latest-runtime": "7.0.20",
			"latest-sdk": "7.0.410",
			"support-phase": "eol",
			"releases": [
				{
					"release-version": "7.0.20",
					"sdk": {"version": "7.0.410", "runtime-version": "7.0.20"},
					"sdks": [
						{"version": "7.0.410", "runtime-version": "7.0.20"},
						{"version": "7.0.313", "runtime-version": "7.0.20"},
						{"version": "7.0.120", "runtime-version": "7.0.20"}
					]
				},
				{
					"release-version": "7.0.19",
					"sdk": {"version": "7.0.409", "runtime-version": "7.0.19"},
					"sdks": [
						{"version": "7.0.409", "runtime-version": "7.0.19"},
						{"version": "7.0.350", "runtime-version": "7.0.19"}
					]
				}
			]
		}`))
	})

	mux.HandleFunc("/8.0/releases.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"channel-version": "8.0",
			"latest-runtime": "8.0.11",
			"latest-sdk": "8.0.404",
			"support-phase": "active",
			"releases": [
				{
					"release-version": "8.0.11",
					"sdk": {"version": "8.0.404", "runtime-version": "8.0.11"}
				}
			]
		}`))
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, requests
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	return NewClient(cache.NewNullCache(), 0, server.URL+"/releases-index.json")
}

type recordingSink struct {
	events []events.Event
}

func (r *recordingSink) Post(event events.Event) {
	r.events = append(r.events, event)
}

func TestClientIndex(t *testing.T) {
	server, _ := newMetadataServer(t)
	client := newTestClient(t, server)

	idx, err := client.Index(context.Background(), false)
	if err != nil {
		t.Fatalf("Index() error: %v", err)
	}
	if len(idx.Channels) != 2 {
		t.Fatalf("channel count = %d, want 2", len(idx.Channels))
	}
	ch := idx.Channel("7.0")
	if ch == nil {
		t.Fatal("Channel(7.0) not found")
	}
	if ch.LatestSDK != "7.0.410" || ch.LatestRuntime != "7.0.20" {
		t.Errorf("channel 7.0 = sdk %s, runtime %s", ch.LatestSDK, ch.LatestRuntime)
	}
	if idx.Channel("9.0") != nil {
		t.Error("Channel(9.0) should be nil")
	}
}

func TestClientIndexCached(t *testing.T) {
	server, requests := newMetadataServer(t)

	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error: %v", err)
	}
	defer c.Close()

	client := NewClient(c, cache.DefaultTTL, server.URL+"/releases-index.json")
	ctx := context.Background()

	if _, err := client.Index(ctx, false); err != nil {
		t.Fatalf("Index() error: %v", err)
	}
	if _, err := client.Index(ctx, false); err != nil {
		t.Fatalf("Index() second call error: %v", err)
	}
	if *requests != 1 {
		t.Errorf("index fetched %d times, want 1 (second read cached)", *requests)
	}
}

func TestClientIndexOffline(t *testing.T) {
	server, _ := newMetadataServer(t)
	client := newTestClient(t, server)
	server.Close()

	_, err := client.Index(context.Background(), false)
	if !errors.Is(err, errors.ErrCodeOfflineResolution) {
		t.Errorf("Index() error = %v, want offline_resolution", err)
	}
}

func TestClientManifest(t *testing.T) {
	server, _ := newMetadataServer(t)
	client := newTestClient(t, server)

	manifest, err := client.Manifest(context.Background(), "7.0", false)
	if err != nil {
		t.Fatalf("Manifest() error: %v", err)
	}
	if manifest.ChannelVersion != "7.0" {
		t.Errorf("ChannelVersion = %s, want 7.0", manifest.ChannelVersion)
	}
	if len(manifest.Releases) != 2 {
		t.Fatalf("release count = %d, want 2", len(manifest.Releases))
	}
	sdks := manifest.Releases[0].AllSDKs()
	if len(sdks) != 3 || sdks[0].Version != "7.0.410" {
		t.Errorf("newest release sdks = %+v", sdks)
	}
}

func TestClientManifestUnknownChannel(t *testing.T) {
	server, _ := newMetadataServer(t)
	client := newTestClient(t, server)

	_, err := client.Manifest(context.Background(), "9.0", false)
	if !errors.Is(err, errors.ErrCodeVersionResolution) {
		t.Errorf("Manifest() error = %v, want version_resolution", err)
	}
}

func TestClientManifestInvalid(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/releases-index.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"releases-index":[{"channel-version":"7.0","releases.json":"` + server.URL + `/7.0/releases.json"}]}`))
	})
	mux.HandleFunc("/7.0/releases.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(cache.NewNullCache(), 0, server.URL+"/releases-index.json")
	_, err := client.Manifest(context.Background(), "7.0", false)
	if !errors.Is(err, errors.ErrCodeInvalidManifest) {
		t.Errorf("Manifest() error = %v, want invalid_manifest", err)
	}
}

func TestResolve(t *testing.T) {
	server, _ := newMetadataServer(t)
	client := newTestClient(t, server)
	resolver := NewResolver(client, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		specifier string
		mode      install.Mode
		want      string
		wantCode  errors.Code
	}{
		{name: "major.minor sdk", specifier: "7.0", mode: install.ModeSDK, want: "7.0.410"},
		{name: "major.minor runtime", specifier: "7.0", mode: install.ModeRuntime, want: "7.0.20"},
		{name: "major.minor aspnetcore", specifier: "7.0", mode: install.ModeASPNetCore, want: "7.0.20"},
		{name: "bare major normalized", specifier: "8", mode: install.ModeSDK, want: "8.0.404"},
		{name: "fully specified passthrough", specifier: "7.0.301", mode: install.ModeSDK, want: "7.0.301"},
		{name: "band wildcard newest first", specifier: "7.0.3xx", mode: install.ModeSDK, want: "7.0.313"},
		{name: "band wildcard top band", specifier: "7.0.4xx", mode: install.ModeSDK, want: "7.0.410"},
		{name: "band wildcard band one", specifier: "7.0.1xx", mode: install.ModeSDK, want: "7.0.120"},
		{name: "band not found", specifier: "7.0.9xx", mode: install.ModeSDK, wantCode: errors.ErrCodeFeatureBandNotFound},
		{name: "band wildcard runtime rejected", specifier: "7.0.3xx", mode: install.ModeRuntime, wantCode: errors.ErrCodeVersionFormat},
		{name: "unknown channel", specifier: "9.0", mode: install.ModeSDK, wantCode: errors.ErrCodeVersionResolution},
		{name: "invalid specifier", specifier: "not-a-version", mode: install.ModeSDK, wantCode: errors.ErrCodeVersionFormat},
		{name: "four components", specifier: "7.0.301.4", mode: install.ModeSDK, wantCode: errors.ErrCodeVersionFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(ctx, tt.specifier, tt.mode)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Errorf("Resolve(%q, %s) error = %v, want code %s", tt.specifier, tt.mode, err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q, %s) error: %v", tt.specifier, tt.mode, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q, %s) = %s, want %s", tt.specifier, tt.mode, got, tt.want)
			}
		})
	}
}

func TestResolvePostsFailureEvents(t *testing.T) {
	server, _ := newMetadataServer(t)
	client := newTestClient(t, server)
	sink := &recordingSink{}
	resolver := NewResolver(client, sink)
	ctx := context.Background()

	if _, err := resolver.Resolve(ctx, "7.0", install.ModeSDK); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(sink.events) != 0 {
		t.Errorf("successful resolve posted %d events, want 0", len(sink.events))
	}

	if _, err := resolver.Resolve(ctx, "9.0", install.ModeSDK); err == nil {
		t.Fatal("Resolve(9.0) should fail")
	}
	if len(sink.events) != 1 {
		t.Fatalf("failed resolve posted %d events, want 1", len(sink.events))
	}
	event := sink.events[0]
	if event.Kind != events.KindResolutionFailed {
		t.Errorf("event kind = %s, want %s", event.Kind, events.KindResolutionFailed)
	}
	if event.Specifier != "9.0" {
		t.Errorf("event specifier = %q, want 9.0", event.Specifier)
	}
	if event.Err == nil {
		t.Error("event should carry the resolution error")
	}
}

