// Package pkg provides the core libraries for dotnetup .NET acquisition.
//
// # Overview
//
// Dotnetup resolves .NET version specifiers against the official release
// metadata, installs the matching SDK or runtime, and tracks every install
// in a ledger shared across processes and tools. The pkg directory is
// organized into three main areas:
//
//  1. Resolution - version specifier rules and release metadata ([version], [releases])
//  2. Tracking - the install ledger and its cross-process lock ([install], [ledger], [lock])
//  3. Acquisition - installers and the orchestrator that drives them ([platform], [acquire])
//
// # Architecture
//
// The typical flow of one acquisition:
//
//	Version specifier ("8.0", "8.0.3xx", "8.0.301")
//	         ↓
//	    [releases] package (resolve against the release index)
//	         ↓
//	    [install] package (build the install identity)
//	         ↓
//	    [acquire] package (dedup, recover partials, check conflicts)
//	         ↓
//	    [platform] package (run the platform's installer)
//	         ↓
//	    [ledger] package (record ownership)
//
// # Quick Start
//
// Resolve a channel and install its newest SDK:
//
//	import (
//	    "context"
//	    "github.com/dotnetup/dotnetup/pkg/acquire"
//	    "github.com/dotnetup/dotnetup/pkg/cache"
//	    "github.com/dotnetup/dotnetup/pkg/install"
//	    "github.com/dotnetup/dotnetup/pkg/ledger"
//	    "github.com/dotnetup/dotnetup/pkg/platform"
//	    "github.com/dotnetup/dotnetup/pkg/releases"
//	)
//
//	// 1. Wire the release metadata client
//	client := releases.NewClient(cache.NewNullCache(), 0, "")
//	resolver := releases.NewResolver(client, nil)
//
//	// 2. Wire the ledger and installers
//	tracker := ledger.NewTracker(ledger.NewMemoryStore(), &ledger.MutexLocker{}, nil)
//	factory := platform.NewFactory("", nil, client, nil)
//
//	// 3. Acquire
//	orch := acquire.NewOrchestrator(resolver, tracker, factory, nil, nil)
//	res, err := orch.Acquire(context.Background(), acquire.Request{
//	    Specifier: "8.0",
//	    Mode:      install.ModeSDK,
//	    Owner:     "my-tool",
//	})
//
// # Main Packages
//
// ## Resolution
//
// [version] - Version specifier classification and comparison: full versions,
// channels (major or major.minor), and SDK feature band wildcards.
//
// [releases] - Client for the official release index and channel manifests,
// plus the resolver that maps specifiers to concrete versions.
//
// [fetch] - Cached, retrying HTTP layer under resolution and downloads.
//
// [cache] - File-backed and in-memory cache backends for fetched metadata.
//
// ## Tracking
//
// [install] - The identity value type naming one distinct install: version,
// architecture, scope, and mode, with the legacy id encoding.
//
// [ledger] - Persistent record of which owners hold which installs, the
// partial-install evidence, and the graveyard of failed removals.
//
// [lock] - Cross-process advisory file lock serializing ledger access.
//
// ## Acquisition
//
// [platform] - Installers per platform and scope: the install-script runner
// for local installs, apt for Linux global installs, and package installers
// for Windows and macOS.
//
// [acquire] - The orchestrator: deduplicates concurrent requests, recovers
// partial installs, checks global conflicts, validates results, and keeps
// the ledger truthful throughout.
//
// [events] - Lifecycle event types and sinks for observing acquisitions.
//
// [errors] - Error codes shared across package boundaries.
//
// [config] - The user's settings file.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...            # All tests
//	go test ./pkg/acquire/...    # Specific package
//
// [version]: https://pkg.go.dev/github.com/dotnetup/dotnetup/pkg/version
// [releases]: https://pkg.go.dev/github.com/dotnetup/dotnetup/pkg/releases
// [fetch]: https://pkg.go.dev/github.com/dotnetup/dotnetup/pkg/fetch
// [cache]: https://pkg.go.dev/github.com/dotnetup/dotnetup/pkg/cache
// [install]: https://pkg.go.dev/github.com/dotnetup/dotnetup/pkg/install
// [ledger]: https://pkg.go.dev/github.com/dotnetup/dotnetup/pkg/ledger
// [lock]: https://pkg.go.dev/github.com/dotnetup/dotnetup/pkg/lock
// [platform]: https://pkg.go.dev/github.com/dotnetup/dotnetup/pkg/platform
// [acquire]: https://pkg.go.dev/github.com/dotnetup/dotnetup/pkg/acquire
// [events]: https://pkg.go.dev/github.com/dotnetup/dotnetup/pkg/events
// [errors]: https://pkg.go.dev/github.com/dotnetup/dotnetup/pkg/errors
// [config]: https://pkg.go.dev/github.com/dotnetup/dotnetup/pkg/config
package pkg
