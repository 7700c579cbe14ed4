// Package ledger tracks which .NET installs exist on a machine, who requested
// them, and which removals are still pending.
//
// Two named record sets are persisted: "installing" holds identities whose
// install has started but not completed, and "installed" holds completed
// ones. An identity present in the first set but absent from the second marks
// a partial install left behind by an interrupted process. A third
// collection, the graveyard, remembers filesystem paths whose removal failed
// so a later uninstall pass can retry them.
//
// # Architecture
//
// State lives in a key-value Store (file-backed by default) that offers no
// transactions of its own. Cross-key and cross-process consistency comes from
// an advisory Locker held around every read-then-write sequence; the Tracker
// is the single entry point enforcing that discipline. Callers in one process
// share a Tracker; separate processes contend on the lock file.
//
// Records carry an ordered owner list. An identity requested by several
// owners stays recorded until the last owner releases it. Entries written by
// older versions of the state (plain version strings) are migrated to typed
// records on first read and persisted back; the legacy shape is never
// re-emitted.
//
// # Usage
//
// Create a store and tracker:
//
//	store, err := ledger.NewFileStore("")  // Uses ~/.config/dotnetup/state/
//	if err != nil {
//	    return err
//	}
//	locker := lock.New(filepath.Join(store.Path(), "ledger.lock"), lock.DefaultOptions)
//	tracker := ledger.NewTracker(store, locker, logger)
//
// Record an acquisition:
//
//	if err := tracker.TrackInstalling(ctx, id, "vscode-csharp"); err != nil {
//	    return err
//	}
//	// ... run the installer ...
//	if err := tracker.Reclassify(ctx, id, "vscode-csharp"); err != nil {
//	    return err
//	}
package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dotnetup/dotnetup/pkg/install"
)

// Store keys for the persisted collections.
const (
	keyInstalling = "installing"
	keyInstalled  = "installed"
	keyGraveyard  = "installPathsGraveyard"
)

// LegacyOwner marks a record not attributed to any requester: installs
// migrated from legacy string entries, adopted pre-seeded SDKs, and direct
// user installs.
const LegacyOwner = ""

// Record ties one install identity to the requesters that asked for it.
type Record struct {
	Install install.Identity `json:"dotnetInstall"`
	Owners  []string         `json:"installingExtensions"`
}

// HasOwner reports whether owner already appears in the record's owner list.
func (r Record) HasOwner(owner string) bool {
	for _, o := range r.Owners {
		if o == owner {
			return true
		}
	}
	return false
}

// GraveyardEntry remembers where an install lived when its removal failed.
type GraveyardEntry struct {
	Install install.Identity `json:"dotnetInstall"`
	Path    string           `json:"path"`
}

// Store is the key-value persistence backend for ledger state.
//
// It offers no transactions; the Tracker provides cross-key atomicity by
// holding the advisory lock around every read-then-write sequence.
type Store interface {
	// Get retrieves the value for key. The second return is false when the
	// key has never been written.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// Locker serializes ledger access across processes. Acquire blocks, within
// the locker's own retry policy, until the lock is held or the context ends.
// The lock is not reentrant; the Tracker acquires it exactly once per
// exported operation.
type Locker interface {
	Acquire(ctx context.Context) error
	Release() error
}

// decodeRecords parses a persisted record set. Entries written by older
// versions are plain version strings; those are decoded through the legacy
// id codec and reported via the second return so the caller can persist the
// upgraded form.
func decodeRecords(data []byte) ([]Record, bool, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("parse record set: %w", err)
	}

	records := make([]Record, 0, len(raw))
	migrated := false
	for _, item := range raw {
		var legacy string
		if err := json.Unmarshal(item, &legacy); err == nil {
			id, err := install.ParseLegacyID(legacy)
			if err != nil {
				return nil, false, err
			}
			records = append(records, Record{Install: id, Owners: []string{LegacyOwner}})
			migrated = true
			continue
		}

		var rec Record
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, false, fmt.Errorf("parse install record: %w", err)
		}
		records = append(records, rec)
	}
	return records, migrated, nil
}
