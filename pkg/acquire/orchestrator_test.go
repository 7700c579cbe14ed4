package acquire

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/events"
	"github.com/dotnetup/dotnetup/pkg/install"
	"github.com/dotnetup/dotnetup/pkg/ledger"
	"github.com/dotnetup/dotnetup/pkg/platform"
)

type fakeResolver struct {
	versions map[string]string
	err      error
}

func (f *fakeResolver) Resolve(ctx context.Context, specifier string, mode install.Mode) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if v, ok := f.versions[specifier]; ok {
		return v, nil
	}
	return specifier, nil
}

// fakeInstaller writes a real executable under dir on Install so validation
// passes, and records every call.
type fakeInstaller struct {
	dir string

	mu         sync.Mutex
	installs   []install.Identity
	uninstalls []install.Identity
	wipes      int

	installed    []string
	installErr   error
	busyExits    int // Install exits 1618 this many times before succeeding
	uninstallErr error
	block        chan struct{}
}

func (f *fakeInstaller) Install(ctx context.Context, id install.Identity) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.installs = append(f.installs, id)
	busy := f.busyExits > 0
	if busy {
		f.busyExits--
	}
	f.mu.Unlock()

	if busy {
		return errors.Wrap(errors.ErrCodeInstallFailed,
			&platform.ExitError{Cmd: "installer", Code: 1618}, "installer busy")
	}
	if f.installErr != nil {
		return f.installErr
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(platform.Executable(f.dir), []byte("#!/bin/sh\n"), 0o755)
}

func (f *fakeInstaller) Uninstall(ctx context.Context, id install.Identity) error {
	f.mu.Lock()
	f.uninstalls = append(f.uninstalls, id)
	f.mu.Unlock()
	return f.uninstallErr
}

func (f *fakeInstaller) WipeAll(ctx context.Context) error {
	f.mu.Lock()
	f.wipes++
	f.mu.Unlock()
	return os.RemoveAll(f.dir)
}

func (f *fakeInstaller) InstalledVersions(ctx context.Context, mode install.Mode) ([]string, error) {
	return f.installed, nil
}

func (f *fakeInstaller) InstallDir(install.Identity) string { return f.dir }

func (f *fakeInstaller) installCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.installs)
}

type fakeFactory struct {
	installer platform.Installer
}

func (f *fakeFactory) For(ctx context.Context, id install.Identity) (platform.Installer, error) {
	return f.installer, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Post(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) kinds() []events.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]events.Kind, len(s.events))
	for i, e := range s.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (s *recordingSink) has(kind events.Kind) bool {
	for _, k := range s.kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeInstaller, *ledger.Tracker, *recordingSink) {
	t.Helper()

	installer := &fakeInstaller{dir: filepath.Join(t.TempDir(), "dotnet")}
	tracker := ledger.NewTracker(ledger.NewMemoryStore(), &ledger.MutexLocker{}, log.New(io.Discard))
	sink := &recordingSink{}
	orch := NewOrchestrator(&fakeResolver{}, tracker, &fakeFactory{installer: installer}, sink, log.New(io.Discard))
	return orch, installer, tracker, sink
}

func TestAcquireLocal(t *testing.T) {
	orch, installer, tracker, sink := newTestOrchestrator(t)
	ctx := context.Background()

	result, err := orch.Acquire(ctx, Request{
		Specifier: "8.0.100", Architecture: "x64", Mode: install.ModeSDK, Owner: "ext-a",
	})
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if result.Path != platform.Executable(installer.dir) {
		t.Errorf("Path = %q, want %q", result.Path, platform.Executable(installer.dir))
	}
	if result.Install.Version != "8.0.100" || result.Install.Global {
		t.Errorf("Install = %+v", result.Install)
	}

	installed, err := tracker.Existing(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(installed) != 1 || !installed[0].HasOwner("ext-a") {
		t.Errorf("installed records = %+v, want one owned by ext-a", installed)
	}
	installing, err := tracker.Existing(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(installing) != 0 {
		t.Errorf("installing records linger: %+v", installing)
	}

	if !sink.has(events.KindAcquisitionStarted) || !sink.has(events.KindAcquisitionCompleted) {
		t.Errorf("events = %v, want started and completed", sink.kinds())
	}
}

func TestAcquireConcurrentSharesOneInstall(t *testing.T) {
	orch, installer, _, _ := newTestOrchestrator(t)
	installer.block = make(chan struct{})

	req := Request{Specifier: "8.0.100", Architecture: "x64", Mode: install.ModeSDK, Owner: "ext-a"}

	results := make(chan Result, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			result, err := orch.Acquire(context.Background(), req)
			results <- result
			errs <- err
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(installer.block)

	first := <-results
	second := <-results
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Acquire() error: %v", err)
		}
	}

	if first.Path != second.Path {
		t.Errorf("paths differ: %q vs %q", first.Path, second.Path)
	}
	if got := installer.installCount(); got != 1 {
		t.Errorf("install ran %d times, want 1", got)
	}
}

func TestAcquireGlobalExactMatch(t *testing.T) {
	orch, installer, tracker, sink := newTestOrchestrator(t)
	installer.installed = []string{"8.0.301"}
	ctx := context.Background()

	result, err := orch.Acquire(ctx, Request{
		Specifier: "8.0.301", Architecture: "x64", Global: true, Mode: install.ModeSDK, Owner: "ext-a",
	})
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if result.Path != platform.Executable(installer.dir) {
		t.Errorf("Path = %q", result.Path)
	}
	if got := installer.installCount(); got != 0 {
		t.Errorf("install ran %d times for an exact match", got)
	}
	if !sink.has(events.KindAlreadyInstalled) {
		t.Errorf("events = %v, want already-installed", sink.kinds())
	}

	// The requester now owns the pre-existing install.
	installed, err := tracker.Existing(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(installed) != 1 || !installed[0].HasOwner("ext-a") {
		t.Errorf("installed records = %+v, want one owned by ext-a", installed)
	}
}

func TestAcquireGlobalBlockingConflict(t *testing.T) {
	orch, installer, _, sink := newTestOrchestrator(t)
	installer.installed = []string{"7.0.307"}

	_, err := orch.Acquire(context.Background(), Request{
		Specifier: "7.0.301", Architecture: "x64", Global: true, Mode: install.ModeSDK, Owner: "ext-a",
	})
	if !errors.Is(err, errors.ErrCodeConflictingGlobalInstall) {
		t.Fatalf("expected CONFLICTING_GLOBAL_INSTALL, got %v", err)
	}
	if got := installer.installCount(); got != 0 {
		t.Errorf("install ran %d times despite the conflict", got)
	}
	if !sink.has(events.KindGlobalConflict) {
		t.Errorf("events = %v, want global-conflict", sink.kinds())
	}
}

func TestAcquireGlobalUpgrade(t *testing.T) {
	orch, installer, _, _ := newTestOrchestrator(t)
	installer.installed = []string{"7.0.300"}

	_, err := orch.Acquire(context.Background(), Request{
		Specifier: "7.0.301", Architecture: "x64", Global: true, Mode: install.ModeSDK, Owner: "ext-a",
	})
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if got := installer.installCount(); got != 1 {
		t.Errorf("install ran %d times, want 1 (upgrade in place)", got)
	}
}

func TestAcquireRecoversLocalPartial(t *testing.T) {
	orch, installer, tracker, sink := newTestOrchestrator(t)
	ctx := context.Background()

	// A prior process died mid-install of 7.0.100 and completed 6.0.100.
	interrupted := install.New("7.0.100", "x64", false, install.ModeSDK)
	completed := install.New("6.0.100", "x64", false, install.ModeSDK)
	if err := tracker.TrackInstalling(ctx, interrupted, "ext-old"); err != nil {
		t.Fatal(err)
	}
	if err := tracker.TrackInstalling(ctx, completed, "ext-old"); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Reclassify(ctx, completed, "ext-old"); err != nil {
		t.Fatal(err)
	}

	result, err := orch.Acquire(ctx, Request{
		Specifier: "8.0.100", Architecture: "x64", Mode: install.ModeSDK, Owner: "ext-a",
	})
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	if installer.wipes != 1 {
		t.Errorf("wipes = %d, want 1", installer.wipes)
	}
	if !sink.has(events.KindPartialInstallDetected) {
		t.Errorf("events = %v, want partial-install-detected", sink.kinds())
	}

	// Everything local from before the wipe is gone; only the fresh install
	// remains, and nothing lingers in the installing set.
	installed, err := tracker.Existing(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(installed) != 1 || !install.EquivalentInstallation(installed[0].Install, result.Install) {
		t.Errorf("installed records = %+v, want only %s", installed, result.Install.ID())
	}
	partials, err := tracker.Partials(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(partials) != 0 {
		t.Errorf("partials remain: %+v", partials)
	}
}

func TestAcquireInstallFailureLeavesPartialEvidence(t *testing.T) {
	orch, installer, tracker, sink := newTestOrchestrator(t)
	installer.installErr = stderrors.New("disk full")
	ctx := context.Background()

	_, err := orch.Acquire(ctx, Request{
		Specifier: "8.0.100", Architecture: "x64", Mode: install.ModeSDK, Owner: "ext-a",
	})
	if err == nil || !sink.has(events.KindAcquisitionFailed) {
		t.Fatalf("err = %v, events = %v; want failure", err, sink.kinds())
	}

	// The installing entry survives so the next attempt wipes first.
	partials, err := tracker.Partials(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(partials) != 1 {
		t.Fatalf("partials = %+v, want the failed install", partials)
	}
}

func TestAcquireRetriesBusyInstaller(t *testing.T) {
	orch, installer, _, _ := newTestOrchestrator(t)
	orch.retryDelay = time.Millisecond
	installer.busyExits = 1

	_, err := orch.Acquire(context.Background(), Request{
		Specifier: "8.0.100", Architecture: "x64", Mode: install.ModeSDK, Owner: "ext-a",
	})
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if got := installer.installCount(); got != 2 {
		t.Errorf("install ran %d times, want 2 (one busy, one clean)", got)
	}
}

func TestAcquireBusyInstallerExhaustsRetries(t *testing.T) {
	orch, installer, _, sink := newTestOrchestrator(t)
	orch.retryDelay = time.Millisecond
	installer.busyExits = installAttempts + 1

	_, err := orch.Acquire(context.Background(), Request{
		Specifier: "8.0.100", Architecture: "x64", Mode: install.ModeSDK, Owner: "ext-a",
	})
	if !errors.Is(err, errors.ErrCodeInstallFailed) {
		t.Fatalf("expected INSTALL_FAILED, got %v", err)
	}
	if got := installer.installCount(); got != installAttempts {
		t.Errorf("install ran %d times, want %d", got, installAttempts)
	}
	if !sink.has(events.KindAcquisitionFailed) {
		t.Errorf("events = %v, want failed", sink.kinds())
	}
}

func TestAcquireResolutionFailure(t *testing.T) {
	orch, installer, _, _ := newTestOrchestrator(t)
	resolveErr := errors.New(errors.ErrCodeVersionResolution, "no release channel matches")
	orch.resolver = &fakeResolver{err: resolveErr}

	_, err := orch.Acquire(context.Background(), Request{Specifier: "9.9", Mode: install.ModeSDK})
	if !errors.Is(err, errors.ErrCodeVersionResolution) {
		t.Fatalf("expected VERSION_RESOLUTION, got %v", err)
	}
	if got := installer.installCount(); got != 0 {
		t.Errorf("install ran %d times without a resolved version", got)
	}
}

func TestUninstallLastOwnerRemovesFiles(t *testing.T) {
	orch, installer, tracker, sink := newTestOrchestrator(t)
	ctx := context.Background()

	id := install.New("8.0.100", "x64", false, install.ModeSDK)
	if err := tracker.TrackInstalled(ctx, id, "ext-a"); err != nil {
		t.Fatal(err)
	}

	if err := orch.Uninstall(ctx, id, "ext-a"); err != nil {
		t.Fatalf("Uninstall() error: %v", err)
	}
	if len(installer.uninstalls) != 1 {
		t.Errorf("uninstalls = %v, want one", installer.uninstalls)
	}
	installed, err := tracker.Existing(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(installed) != 0 {
		t.Errorf("installed records remain: %+v", installed)
	}
	if !sink.has(events.KindUninstallCompleted) {
		t.Errorf("events = %v, want uninstall-completed", sink.kinds())
	}
}

func TestUninstallKeepsSharedInstall(t *testing.T) {
	orch, installer, tracker, _ := newTestOrchestrator(t)
	ctx := context.Background()

	id := install.New("8.0.100", "x64", false, install.ModeSDK)
	for _, owner := range []string{"ext-a", "ext-b"} {
		if err := tracker.TrackInstalled(ctx, id, owner); err != nil {
			t.Fatal(err)
		}
	}

	if err := orch.Uninstall(ctx, id, "ext-a"); err != nil {
		t.Fatalf("Uninstall() error: %v", err)
	}
	if len(installer.uninstalls) != 0 {
		t.Errorf("files removed while ext-b still owns the install")
	}
	installed, err := tracker.Existing(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(installed) != 1 || !installed[0].HasOwner("ext-b") {
		t.Errorf("installed records = %+v, want one owned by ext-b", installed)
	}
}

func TestUninstallFailureFeedsGraveyard(t *testing.T) {
	orch, installer, tracker, sink := newTestOrchestrator(t)
	installer.uninstallErr = stderrors.New("file busy")
	ctx := context.Background()

	id := install.New("8.0.100", "x64", false, install.ModeSDK)
	if err := tracker.TrackInstalled(ctx, id, "ext-a"); err != nil {
		t.Fatal(err)
	}

	if err := orch.Uninstall(ctx, id, "ext-a"); err == nil {
		t.Fatal("expected the uninstall failure to propagate")
	}
	if !sink.has(events.KindUninstallFailed) {
		t.Errorf("events = %v, want uninstall-failed", sink.kinds())
	}

	graveyard, err := tracker.Graveyard(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(graveyard) != 1 || graveyard[0].Path != installer.dir {
		t.Errorf("graveyard = %+v, want the failed install's path", graveyard)
	}
}

func TestUninstallAll(t *testing.T) {
	orch, installer, tracker, _ := newTestOrchestrator(t)
	ctx := context.Background()

	local := install.New("8.0.100", "x64", false, install.ModeSDK)
	global := install.New("8.0.301", "x64", true, install.ModeSDK)
	if err := tracker.TrackInstalled(ctx, local, "ext-a"); err != nil {
		t.Fatal(err)
	}
	if err := tracker.TrackInstalled(ctx, global, "ext-a"); err != nil {
		t.Fatal(err)
	}

	// A leftover from an earlier failed uninstall, now removable.
	stuck := filepath.Join(t.TempDir(), "stuck")
	if err := os.MkdirAll(stuck, 0o755); err != nil {
		t.Fatal(err)
	}
	stuckID := install.New("6.0.100", "x64", false, install.ModeSDK)
	if err := tracker.AddToGraveyard(ctx, stuckID, stuck); err != nil {
		t.Fatal(err)
	}

	if err := orch.UninstallAll(ctx); err != nil {
		t.Fatalf("UninstallAll() error: %v", err)
	}

	if installer.wipes != 1 {
		t.Errorf("wipes = %d, want 1", installer.wipes)
	}
	if _, err := os.Stat(stuck); !os.IsNotExist(err) {
		t.Errorf("graveyard path %s still exists", stuck)
	}
	graveyard, err := tracker.Graveyard(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(graveyard) != 0 {
		t.Errorf("graveyard not cleared: %+v", graveyard)
	}

	installed, err := tracker.Existing(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(installed) != 1 || !installed[0].Install.Global {
		t.Errorf("installed records = %+v, want only the global one", installed)
	}
}

func TestStatusAdoptsUnrecordedLocal(t *testing.T) {
	orch, installer, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Join(installer.dir, "sdk", "8.0.100"), 0o755); err != nil {
		t.Fatal(err)
	}

	status, err := orch.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if len(status.Installed) != 1 || status.Installed[0].Install.Version != "8.0.100" {
		t.Errorf("Installed = %+v, want the adopted 8.0.100", status.Installed)
	}
	if !status.Installed[0].HasOwner(ledger.LegacyOwner) {
		t.Errorf("adopted install is not owner-less: %+v", status.Installed[0])
	}
}
