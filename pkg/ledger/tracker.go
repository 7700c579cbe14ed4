package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/install"
	"github.com/dotnetup/dotnetup/pkg/version"
)

// Tracker is the serializing entry point for all ledger reads and writes.
//
// Every exported operation acquires the cross-process lock, performs its
// read-then-write sequence against the store, and releases the lock. The
// unexported variants assume the lock is already held; compound operations
// such as Reclassify chain them under a single hold, since the lock itself
// is not reentrant.
type Tracker struct {
	store  Store
	lock   Locker
	logger *log.Logger
}

// NewTracker creates a tracker over the given store and locker.
// If logger is nil, the default logger is used.
func NewTracker(store Store, lock Locker, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default()
	}
	return &Tracker{store: store, lock: lock, logger: logger}
}

// withLock runs fn while holding the cross-process lock. A release failure
// is logged rather than returned so it cannot mask fn's own outcome.
func (t *Tracker) withLock(ctx context.Context, fn func(context.Context) error) error {
	if err := t.lock.Acquire(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeLockAcquisition, err, "acquire ledger lock")
	}
	defer func() {
		if err := t.lock.Release(); err != nil {
			t.logger.Error("releasing ledger lock failed", "error", err)
		}
	}()
	return fn(ctx)
}

// Existing returns one of the two record sets: the installed set when
// installed is true, otherwise the installing set. Legacy string entries are
// migrated to typed records and persisted back before returning.
func (t *Tracker) Existing(ctx context.Context, installed bool) ([]Record, error) {
	key := keyInstalling
	if installed {
		key = keyInstalled
	}

	var records []Record
	err := t.withLock(ctx, func(ctx context.Context) error {
		var err error
		records, err = t.existing(ctx, key)
		return err
	})
	return records, err
}

// Partials returns installing records with no matching installed record, the
// signature an interrupted prior process leaves behind.
func (t *Tracker) Partials(ctx context.Context) ([]Record, error) {
	var partials []Record
	err := t.withLock(ctx, func(ctx context.Context) error {
		installing, err := t.existing(ctx, keyInstalling)
		if err != nil {
			return err
		}
		installed, err := t.existing(ctx, keyInstalled)
		if err != nil {
			return err
		}
		for _, rec := range installing {
			completed := false
			for i := range installed {
				if install.EquivalentInstallation(installed[i].Install, rec.Install) {
					completed = true
					break
				}
			}
			if !completed {
				partials = append(partials, rec)
			}
		}
		return nil
	})
	return partials, err
}

// TrackInstalling records that owner has started installing id. Tracking the
// same owner twice is a no-op.
func (t *Tracker) TrackInstalling(ctx context.Context, id install.Identity, owner string) error {
	if err := errors.ValidateOwner(owner); err != nil {
		return err
	}
	return t.withLock(ctx, func(ctx context.Context) error {
		return t.track(ctx, keyInstalling, id, owner)
	})
}

// TrackInstalled records that owner holds a completed install of id.
func (t *Tracker) TrackInstalled(ctx context.Context, id install.Identity, owner string) error {
	if err := errors.ValidateOwner(owner); err != nil {
		return err
	}
	return t.withLock(ctx, func(ctx context.Context) error {
		return t.track(ctx, keyInstalled, id, owner)
	})
}

// UntrackInstalling releases owner's claim on id in the installing set.
func (t *Tracker) UntrackInstalling(ctx context.Context, id install.Identity, owner string) error {
	return t.withLock(ctx, func(ctx context.Context) error {
		return t.untrack(ctx, keyInstalling, id, owner)
	})
}

// UntrackInstalled releases owner's claim on id in the installed set. The
// record disappears when its last owner releases it.
func (t *Tracker) UntrackInstalled(ctx context.Context, id install.Identity, owner string) error {
	return t.withLock(ctx, func(ctx context.Context) error {
		return t.untrack(ctx, keyInstalled, id, owner)
	})
}

// Reclassify moves owner's claim on id from the installing set to the
// installed set under a single lock hold, marking the install complete.
func (t *Tracker) Reclassify(ctx context.Context, id install.Identity, owner string) error {
	return t.withLock(ctx, func(ctx context.Context) error {
		if err := t.untrack(ctx, keyInstalling, id, owner); err != nil {
			return err
		}
		return t.track(ctx, keyInstalled, id, owner)
	})
}

// UninstallAllRecords drops every local record from both sets. Global
// records stay: machine-wide installs outlive the tool-private directory and
// are removed through their own path.
func (t *Tracker) UninstallAllRecords(ctx context.Context) error {
	return t.withLock(ctx, func(ctx context.Context) error {
		for _, key := range []string{keyInstalling, keyInstalled} {
			records, err := t.existing(ctx, key)
			if err != nil {
				return err
			}
			kept := make([]Record, 0, len(records))
			for _, rec := range records {
				if rec.Install.Global {
					kept = append(kept, rec)
				}
			}
			if len(kept) == len(records) {
				continue
			}
			if err := t.save(ctx, key, kept); err != nil {
				return err
			}
		}
		return nil
	})
}

// AdoptUnrecordedLocal scans root/sdk for version-named directories that no
// installed record covers and adopts them as unattributed local SDK records.
// Pre-provisioned machines (education bundles) place SDKs there without ever
// going through an acquisition.
func (t *Tracker) AdoptUnrecordedLocal(ctx context.Context, root string) error {
	entries, err := os.ReadDir(filepath.Join(root, "sdk"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("scan install dir: %w", err)
	}

	return t.withLock(ctx, func(ctx context.Context) error {
		records, err := t.existing(ctx, keyInstalled)
		if err != nil {
			return err
		}

		changed := false
		for _, entry := range entries {
			if !entry.IsDir() || version.Classify(entry.Name()) != version.KindFullySpecified {
				continue
			}
			id := install.New(entry.Name(), "", false, install.ModeSDK)
			known := false
			for i := range records {
				if install.EquivalentInstallation(records[i].Install, id) {
					known = true
					break
				}
			}
			if known {
				continue
			}
			t.logger.Info("adopting unrecorded local install", "version", entry.Name())
			records = append(records, Record{Install: id, Owners: []string{LegacyOwner}})
			changed = true
		}
		if !changed {
			return nil
		}
		return t.save(ctx, keyInstalled, records)
	})
}

// Graveyard returns the entries whose removal previously failed.
func (t *Tracker) Graveyard(ctx context.Context) ([]GraveyardEntry, error) {
	var entries []GraveyardEntry
	err := t.withLock(ctx, func(ctx context.Context) error {
		var err error
		entries, err = t.graveyard(ctx)
		return err
	})
	return entries, err
}

// AddToGraveyard remembers path as the last known location of id after a
// failed removal so a later uninstall pass can retry it.
func (t *Tracker) AddToGraveyard(ctx context.Context, id install.Identity, path string) error {
	if err := errors.ValidateInstallPath(path); err != nil {
		return err
	}
	return t.withLock(ctx, func(ctx context.Context) error {
		entries, err := t.graveyard(ctx)
		if err != nil {
			return err
		}
		for i := range entries {
			if install.EquivalentInstallation(entries[i].Install, id) {
				entries[i].Path = path
				return t.saveGraveyard(ctx, entries)
			}
		}
		entries = append(entries, GraveyardEntry{Install: id, Path: path})
		return t.saveGraveyard(ctx, entries)
	})
}

// RemoveFromGraveyard drops id's entry after a successful removal.
func (t *Tracker) RemoveFromGraveyard(ctx context.Context, id install.Identity) error {
	return t.withLock(ctx, func(ctx context.Context) error {
		entries, err := t.graveyard(ctx)
		if err != nil {
			return err
		}
		kept := make([]GraveyardEntry, 0, len(entries))
		for _, e := range entries {
			if !install.EquivalentInstallation(e.Install, id) {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(entries) {
			return nil
		}
		return t.saveGraveyard(ctx, kept)
	})
}

// existing reads and decodes one record set. Assumes the lock is held.
func (t *Tracker) existing(ctx context.Context, key string) ([]Record, error) {
	data, ok, err := t.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s set: %w", key, err)
	}
	if !ok {
		return nil, nil
	}

	records, migrated, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s set: %w", key, err)
	}
	if migrated {
		if err := t.save(ctx, key, records); err != nil {
			return nil, err
		}
		t.logger.Info("migrated legacy install records", "set", key, "count", len(records))
	}
	return records, nil
}

// track adds owner to the record for id, creating the record when absent.
// Assumes the lock is held.
func (t *Tracker) track(ctx context.Context, key string, id install.Identity, owner string) error {
	records, err := t.existing(ctx, key)
	if err != nil {
		return err
	}

	for i := range records {
		if install.EquivalentInstallation(records[i].Install, id) {
			if records[i].HasOwner(owner) {
				return nil
			}
			records[i].Owners = append(records[i].Owners, owner)
			return t.save(ctx, key, records)
		}
	}

	records = append(records, Record{Install: id, Owners: []string{owner}})
	return t.save(ctx, key, records)
}

// untrack removes owner from the record for id, deleting the record when its
// owner list empties. Assumes the lock is held.
func (t *Tracker) untrack(ctx context.Context, key string, id install.Identity, owner string) error {
	records, err := t.existing(ctx, key)
	if err != nil {
		return err
	}

	match := -1
	count := 0
	for i := range records {
		if install.EquivalentInstallation(records[i].Install, id) {
			if match < 0 {
				match = i
			}
			count++
		}
	}
	if match < 0 {
		return nil
	}
	if count > 1 {
		// Duplicate records for one installation are an anomaly; operate on
		// the first and leave the rest for inspection.
		t.logger.Warn("duplicate records for one installation", "set", key, "id", id.ID(), "count", count)
	}

	rec := &records[match]
	owners := rec.Owners[:0]
	for _, o := range rec.Owners {
		if o != owner {
			owners = append(owners, o)
		}
	}
	rec.Owners = owners
	if len(rec.Owners) == 0 {
		records = append(records[:match], records[match+1:]...)
	}
	return t.save(ctx, key, records)
}

// save persists one record set, deleting the key when the set is empty so an
// empty set and an absent key stay indistinguishable. Assumes the lock is
// held.
func (t *Tracker) save(ctx context.Context, key string, records []Record) error {
	if len(records) == 0 {
		if err := t.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear %s set: %w", key, err)
		}
		return nil
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal %s set: %w", key, err)
	}
	if err := t.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("write %s set: %w", key, err)
	}
	return nil
}

// graveyard reads the graveyard collection. Assumes the lock is held.
func (t *Tracker) graveyard(ctx context.Context) ([]GraveyardEntry, error) {
	data, ok, err := t.store.Get(ctx, keyGraveyard)
	if err != nil {
		return nil, fmt.Errorf("read graveyard: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var entries []GraveyardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode graveyard: %w", err)
	}
	return entries, nil
}

// saveGraveyard persists the graveyard collection. Assumes the lock is held.
func (t *Tracker) saveGraveyard(ctx context.Context, entries []GraveyardEntry) error {
	if len(entries) == 0 {
		if err := t.store.Delete(ctx, keyGraveyard); err != nil {
			return fmt.Errorf("clear graveyard: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal graveyard: %w", err)
	}
	if err := t.store.Set(ctx, keyGraveyard, data); err != nil {
		return fmt.Errorf("write graveyard: %w", err)
	}
	return nil
}
