// Package releases resolves .NET version specifiers against the official
// release metadata.
//
// Two remote documents drive resolution: the release index enumerates the
// supported channels (major.minor release lines) with their latest SDK and
// runtime versions, and each channel's manifest lists every released build
// in that line, newest first. The Client fetches both through the caching
// HTTP layer; the Resolver implements the specifier rules on top.
package releases

// Channel summarizes one supported major.minor release line from the index.
type Channel struct {
	ChannelVersion string `json:"channel-version"`
	LatestRelease  string `json:"latest-release"`
	LatestRuntime  string `json:"latest-runtime"`
	LatestSDK      string `json:"latest-sdk"`
	Product        string `json:"product"`
	ReleaseType    string `json:"release-type"`
	SupportPhase   string `json:"support-phase"`
	EOLDate        string `json:"eol-date"`
	ManifestURL    string `json:"releases.json"`
}

// Index is the top-level release index document.
type Index struct {
	Channels []Channel `json:"releases-index"`
}

// Channel returns the entry whose channel-version equals majorMinor, or nil.
func (i *Index) Channel(majorMinor string) *Channel {
	for idx := range i.Channels {
		if i.Channels[idx].ChannelVersion == majorMinor {
			return &i.Channels[idx]
		}
	}
	return nil
}

// File is one downloadable artifact of an SDK build.
type File struct {
	Name string `json:"name"`
	Rid  string `json:"rid"`
	URL  string `json:"url"`
	Hash string `json:"hash"`
}

// SDK is one SDK build listed in a channel manifest.
type SDK struct {
	Version        string `json:"version"`
	RuntimeVersion string `json:"runtime-version"`
	Files          []File `json:"files"`
}

// Runtime is one shared-framework build listed in a channel manifest.
type Runtime struct {
	Version string `json:"version"`
	Files   []File `json:"files"`
}

// Release is one dated release within a channel manifest. Older manifests
// carry a single sdk entry; newer ones also list every sdk built from that
// release in the sdks array.
type Release struct {
	ReleaseDate    string   `json:"release-date"`
	ReleaseVersion string   `json:"release-version"`
	Security       bool     `json:"security"`
	SDK            *SDK     `json:"sdk"`
	SDKs           []SDK    `json:"sdks"`
	Runtime        *Runtime `json:"runtime"`
	ASPNetCore     *Runtime `json:"aspnetcore-runtime"`
}

// AllSDKs returns the release's SDK entries in document order: the sdks
// array when present, otherwise the single sdk entry.
func (r Release) AllSDKs() []SDK {
	if len(r.SDKs) > 0 {
		return r.SDKs
	}
	if r.SDK != nil {
		return []SDK{*r.SDK}
	}
	return nil
}

// Manifest is a channel's releases document. Releases are ordered newest
// first by the publisher; resolution depends on that order and never
// re-sorts.
type Manifest struct {
	ChannelVersion string    `json:"channel-version"`
	LatestRuntime  string    `json:"latest-runtime"`
	LatestSDK      string    `json:"latest-sdk"`
	SupportPhase   string    `json:"support-phase"`
	Releases       []Release `json:"releases"`
}

// FindSDK returns the first SDK entry whose version matches, scanning
// releases in document order, or nil when the manifest lists no such build.
func (m *Manifest) FindSDK(version string) *SDK {
	for _, release := range m.Releases {
		sdks := release.AllSDKs()
		for i := range sdks {
			if sdks[i].Version == version {
				return &sdks[i]
			}
		}
	}
	return nil
}

// FindRuntime returns the first runtime entry whose version matches, or nil.
// Set aspnet to search the aspnetcore-runtime entries instead of the core
// runtime ones.
func (m *Manifest) FindRuntime(version string, aspnet bool) *Runtime {
	for i := range m.Releases {
		rt := m.Releases[i].Runtime
		if aspnet {
			rt = m.Releases[i].ASPNetCore
		}
		if rt != nil && rt.Version == version {
			return rt
		}
	}
	return nil
}
