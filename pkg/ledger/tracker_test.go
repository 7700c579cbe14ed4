package ledger

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/dotnetup/dotnetup/pkg/install"
)

func newTestTracker() (*Tracker, *MemoryStore) {
	store := NewMemoryStore()
	return NewTracker(store, &MutexLocker{}, log.New(io.Discard)), store
}

func TestTrackInstallingIdempotent(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()
	id := install.New("7.0.301", "x64", false, install.ModeSDK)

	if err := tracker.TrackInstalling(ctx, id, "owner-a"); err != nil {
		t.Fatalf("TrackInstalling() error: %v", err)
	}
	if err := tracker.TrackInstalling(ctx, id, "owner-a"); err != nil {
		t.Fatalf("TrackInstalling() second call error: %v", err)
	}

	records, err := tracker.Existing(ctx, false)
	if err != nil {
		t.Fatalf("Existing() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
	if len(records[0].Owners) != 1 {
		t.Errorf("owner count = %d, want 1", len(records[0].Owners))
	}
}

func TestOwnershipRelease(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()
	id := install.New("7.0.301", "x64", false, install.ModeSDK)

	owners := []string{"ext-a", "ext-b", "ext-c"}
	for _, owner := range owners {
		if err := tracker.TrackInstalling(ctx, id, owner); err != nil {
			t.Fatalf("TrackInstalling(%s) error: %v", owner, err)
		}
	}

	records, err := tracker.Existing(ctx, false)
	if err != nil {
		t.Fatalf("Existing() error: %v", err)
	}
	if len(records) != 1 || len(records[0].Owners) != len(owners) {
		t.Fatalf("expected one record with %d owners, got %+v", len(owners), records)
	}

	// Releasing all but the last owner keeps the record alive.
	for _, owner := range owners[:len(owners)-1] {
		if err := tracker.UntrackInstalling(ctx, id, owner); err != nil {
			t.Fatalf("UntrackInstalling(%s) error: %v", owner, err)
		}
		records, err = tracker.Existing(ctx, false)
		if err != nil {
			t.Fatalf("Existing() error: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("record vanished while %s still held it", owners[len(owners)-1])
		}
	}

	if err := tracker.UntrackInstalling(ctx, id, owners[len(owners)-1]); err != nil {
		t.Fatalf("UntrackInstalling(last) error: %v", err)
	}
	records, err = tracker.Existing(ctx, false)
	if err != nil {
		t.Fatalf("Existing() error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("record should be gone after last owner released it, got %+v", records)
	}
}

func TestTrackCollapsesSDKAndRuntime(t *testing.T) {
	// SDK and runtime installs of one version share an install key and are
	// tracked as one installation with both owners.
	tracker, _ := newTestTracker()
	ctx := context.Background()

	sdk := install.New("7.0.301", "x64", false, install.ModeSDK)
	rt := install.New("7.0.301", "x64", false, install.ModeRuntime)

	if err := tracker.TrackInstalled(ctx, sdk, "ext-a"); err != nil {
		t.Fatalf("TrackInstalled(sdk) error: %v", err)
	}
	if err := tracker.TrackInstalled(ctx, rt, "ext-b"); err != nil {
		t.Fatalf("TrackInstalled(runtime) error: %v", err)
	}

	records, err := tracker.Existing(ctx, true)
	if err != nil {
		t.Fatalf("Existing() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}
	if !records[0].HasOwner("ext-a") || !records[0].HasOwner("ext-b") {
		t.Errorf("record should carry both owners, got %+v", records[0].Owners)
	}
}

func TestLegacyMigration(t *testing.T) {
	tracker, store := newTestTracker()
	ctx := context.Background()

	// A set written by an older version: typed record mixed with plain
	// version strings.
	typed, err := json.Marshal(Record{
		Install: install.New("8.0.100", "x64", false, install.ModeSDK),
		Owners:  []string{"ext-a"},
	})
	if err != nil {
		t.Fatalf("marshal typed record: %v", err)
	}
	seed := []byte(`[` + string(typed) + `,"7.0.301","6.0.16~arm64"]`)
	if err := store.Set(ctx, "installed", seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	records, err := tracker.Existing(ctx, true)
	if err != nil {
		t.Fatalf("Existing() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("record count = %d, want 3", len(records))
	}

	byVersion := make(map[string]Record)
	for _, rec := range records {
		byVersion[rec.Install.Version] = rec
	}
	if !byVersion["7.0.301"].HasOwner(LegacyOwner) {
		t.Errorf("migrated record should carry the legacy owner: %+v", byVersion["7.0.301"])
	}
	if byVersion["7.0.301"].Install.Mode != install.ModeSDK {
		t.Errorf("7.0.301 mode = %s, want sdk", byVersion["7.0.301"].Install.Mode)
	}
	if byVersion["6.0.16"].Install.Mode != install.ModeRuntime {
		t.Errorf("6.0.16 mode = %s, want runtime", byVersion["6.0.16"].Install.Mode)
	}
	if byVersion["6.0.16"].Install.Architecture != "arm64" {
		t.Errorf("6.0.16 arch = %s, want arm64", byVersion["6.0.16"].Install.Architecture)
	}
	if !byVersion["8.0.100"].HasOwner("ext-a") {
		t.Errorf("typed record should keep its owner: %+v", byVersion["8.0.100"])
	}

	// The upgrade is one-way: the persisted form now decodes as typed
	// records with no string entries left.
	data, ok, err := store.Get(ctx, "installed")
	if err != nil || !ok {
		t.Fatalf("installed set should exist after migration: ok=%v err=%v", ok, err)
	}
	var persisted []Record
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("persisted set should decode as typed records: %v", err)
	}
	if len(persisted) != 3 {
		t.Errorf("persisted record count = %d, want 3", len(persisted))
	}
}

func TestPartials(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()
	id := install.New("7.0.301", "x64", false, install.ModeSDK)

	if err := tracker.TrackInstalling(ctx, id, "ext-a"); err != nil {
		t.Fatalf("TrackInstalling() error: %v", err)
	}

	partials, err := tracker.Partials(ctx)
	if err != nil {
		t.Fatalf("Partials() error: %v", err)
	}
	if len(partials) != 1 {
		t.Fatalf("partial count = %d, want 1", len(partials))
	}

	if err := tracker.Reclassify(ctx, id, "ext-a"); err != nil {
		t.Fatalf("Reclassify() error: %v", err)
	}

	partials, err = tracker.Partials(ctx)
	if err != nil {
		t.Fatalf("Partials() error: %v", err)
	}
	if len(partials) != 0 {
		t.Errorf("partial count after reclassify = %d, want 0", len(partials))
	}

	installing, err := tracker.Existing(ctx, false)
	if err != nil {
		t.Fatalf("Existing(installing) error: %v", err)
	}
	if len(installing) != 0 {
		t.Errorf("installing set should be empty after reclassify, got %+v", installing)
	}
	installed, err := tracker.Existing(ctx, true)
	if err != nil {
		t.Fatalf("Existing(installed) error: %v", err)
	}
	if len(installed) != 1 {
		t.Errorf("installed count = %d, want 1", len(installed))
	}
}

func TestUninstallAllRecordsKeepsGlobal(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()

	local := install.New("7.0.301", "x64", false, install.ModeSDK)
	global := install.New("8.0.100", "x64", true, install.ModeSDK)

	if err := tracker.TrackInstalled(ctx, local, "ext-a"); err != nil {
		t.Fatalf("TrackInstalled(local) error: %v", err)
	}
	if err := tracker.TrackInstalled(ctx, global, "ext-a"); err != nil {
		t.Fatalf("TrackInstalled(global) error: %v", err)
	}
	if err := tracker.TrackInstalling(ctx, local, "ext-b"); err != nil {
		t.Fatalf("TrackInstalling(local) error: %v", err)
	}

	if err := tracker.UninstallAllRecords(ctx); err != nil {
		t.Fatalf("UninstallAllRecords() error: %v", err)
	}

	installed, err := tracker.Existing(ctx, true)
	if err != nil {
		t.Fatalf("Existing(installed) error: %v", err)
	}
	if len(installed) != 1 || !installed[0].Install.Global {
		t.Errorf("only the global record should remain, got %+v", installed)
	}

	installing, err := tracker.Existing(ctx, false)
	if err != nil {
		t.Fatalf("Existing(installing) error: %v", err)
	}
	if len(installing) != 0 {
		t.Errorf("installing set should be empty, got %+v", installing)
	}
}

func TestAdoptUnrecordedLocal(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()

	root := t.TempDir()
	for _, dir := range []string{"7.0.301", "8.0.100", "NuGetFallbackFolder"} {
		if err := os.MkdirAll(filepath.Join(root, "sdk", dir), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "sdk", "9.0.100"), []byte("not a dir"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	// 8.0.100 is already tracked by an extension; adoption must not touch it.
	known := install.New("8.0.100", "", false, install.ModeSDK)
	if err := tracker.TrackInstalled(ctx, known, "ext-a"); err != nil {
		t.Fatalf("TrackInstalled() error: %v", err)
	}

	if err := tracker.AdoptUnrecordedLocal(ctx, root); err != nil {
		t.Fatalf("AdoptUnrecordedLocal() error: %v", err)
	}

	records, err := tracker.Existing(ctx, true)
	if err != nil {
		t.Fatalf("Existing() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2 (adopted 7.0.301 plus known 8.0.100)", len(records))
	}
	for _, rec := range records {
		switch rec.Install.Version {
		case "7.0.301":
			if !rec.HasOwner(LegacyOwner) {
				t.Errorf("adopted record should be unattributed: %+v", rec)
			}
		case "8.0.100":
			if len(rec.Owners) != 1 || !rec.HasOwner("ext-a") {
				t.Errorf("known record should keep exactly its owner: %+v", rec)
			}
		default:
			t.Errorf("unexpected adopted version %s", rec.Install.Version)
		}
	}

	// Adoption is idempotent.
	if err := tracker.AdoptUnrecordedLocal(ctx, root); err != nil {
		t.Fatalf("AdoptUnrecordedLocal() second call error: %v", err)
	}
	records, err = tracker.Existing(ctx, true)
	if err != nil {
		t.Fatalf("Existing() error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("record count after second adoption = %d, want 2", len(records))
	}
}

func TestAdoptUnrecordedLocalMissingDir(t *testing.T) {
	tracker, _ := newTestTracker()
	if err := tracker.AdoptUnrecordedLocal(context.Background(), filepath.Join(t.TempDir(), "nowhere")); err != nil {
		t.Errorf("missing sdk dir should be a no-op, got %v", err)
	}
}

func TestGraveyard(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()

	a := install.New("7.0.301", "x64", false, install.ModeSDK)
	b := install.New("6.0.16", "x64", false, install.ModeRuntime)

	if err := tracker.AddToGraveyard(ctx, a, "/old/path/a"); err != nil {
		t.Fatalf("AddToGraveyard(a) error: %v", err)
	}
	if err := tracker.AddToGraveyard(ctx, b, "/old/path/b"); err != nil {
		t.Fatalf("AddToGraveyard(b) error: %v", err)
	}

	// Re-adding the same identity updates its path instead of duplicating.
	if err := tracker.AddToGraveyard(ctx, a, "/new/path/a"); err != nil {
		t.Fatalf("AddToGraveyard(a again) error: %v", err)
	}

	entries, err := tracker.Graveyard(ctx)
	if err != nil {
		t.Fatalf("Graveyard() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("graveyard count = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Install.Version == "7.0.301" && e.Path != "/new/path/a" {
			t.Errorf("path = %s, want /new/path/a", e.Path)
		}
	}

	if err := tracker.RemoveFromGraveyard(ctx, a); err != nil {
		t.Fatalf("RemoveFromGraveyard() error: %v", err)
	}
	entries, err = tracker.Graveyard(ctx)
	if err != nil {
		t.Fatalf("Graveyard() error: %v", err)
	}
	if len(entries) != 1 || entries[0].Install.Version != "6.0.16" {
		t.Errorf("graveyard after removal = %+v, want only 6.0.16", entries)
	}
}

func TestUntrackDuplicateRecords(t *testing.T) {
	// Two records for installation-equivalent identities are an anomaly;
	// untrack operates on the first match and leaves the second.
	tracker, store := newTestTracker()
	ctx := context.Background()

	sdk := install.New("7.0.301", "x64", false, install.ModeSDK)
	rt := install.New("7.0.301", "x64", false, install.ModeRuntime)
	seed, err := json.Marshal([]Record{
		{Install: sdk, Owners: []string{"ext-a"}},
		{Install: rt, Owners: []string{"ext-b"}},
	})
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	if err := store.Set(ctx, "installed", seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	if err := tracker.UntrackInstalled(ctx, sdk, "ext-a"); err != nil {
		t.Fatalf("UntrackInstalled() error: %v", err)
	}

	records, err := tracker.Existing(ctx, true)
	if err != nil {
		t.Fatalf("Existing() error: %v", err)
	}
	if len(records) != 1 || !records[0].HasOwner("ext-b") {
		t.Errorf("second record should survive, got %+v", records)
	}
}

type countingLocker struct {
	MutexLocker
	acquires int
}

func (l *countingLocker) Acquire(ctx context.Context) error {
	l.acquires++
	return l.MutexLocker.Acquire(ctx)
}

func TestReclassifyHoldsLockOnce(t *testing.T) {
	store := NewMemoryStore()
	locker := &countingLocker{}
	tracker := NewTracker(store, locker, log.New(io.Discard))
	ctx := context.Background()
	id := install.New("7.0.301", "x64", false, install.ModeSDK)

	if err := tracker.TrackInstalling(ctx, id, "ext-a"); err != nil {
		t.Fatalf("TrackInstalling() error: %v", err)
	}

	locker.acquires = 0
	if err := tracker.Reclassify(ctx, id, "ext-a"); err != nil {
		t.Fatalf("Reclassify() error: %v", err)
	}
	if locker.acquires != 1 {
		t.Errorf("Reclassify acquired the lock %d times, want 1", locker.acquires)
	}
}
