// Package acquire orchestrates .NET acquisitions end to end: specifier
// resolution, concurrent-request dedup, partial-install recovery, global
// conflict checks, installer dispatch, post-install validation, and ledger
// bookkeeping.
//
// # Architecture
//
// Acquire collapses concurrent requests for one installation onto a single
// attempt with a singleflight group keyed by the install id. The persisted
// ledger provides crash evidence: an installing entry without a matching
// installed entry marks an attempt that died mid-install, and recovery wipes
// the suspect files before reinstalling. Lifecycle transitions are posted to
// an event sink, which is the only UI-facing behavior the core performs.
//
// # Usage
//
//	orch := acquire.NewOrchestrator(resolver, tracker, factory, sink, logger)
//	result, err := orch.Acquire(ctx, acquire.Request{
//		Specifier: "8.0",
//		Mode:      install.ModeSDK,
//		Owner:     "vscode-csharp",
//	})
package acquire

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/events"
	"github.com/dotnetup/dotnetup/pkg/fetch"
	"github.com/dotnetup/dotnetup/pkg/install"
	"github.com/dotnetup/dotnetup/pkg/ledger"
	"github.com/dotnetup/dotnetup/pkg/platform"
)

// VersionResolver turns a version specifier into one concrete released
// version for a mode.
type VersionResolver interface {
	Resolve(ctx context.Context, specifier string, mode install.Mode) (string, error)
}

// InstallerFactory picks the platform installer responsible for an identity.
type InstallerFactory interface {
	For(ctx context.Context, id install.Identity) (platform.Installer, error)
}

// Request describes one acquisition.
type Request struct {
	Specifier    string // "8", "8.0", "8.0.3xx", or "8.0.301"
	Architecture string // empty means the host architecture
	Global       bool
	Mode         install.Mode
	Owner        string // requesting extension id; empty means user-direct
}

// Result is a finished acquisition.
type Result struct {
	Install install.Identity
	Path    string // dotnet executable inside the install directory
}

// Status is a snapshot of the ledger.
type Status struct {
	Installed  []ledger.Record
	Installing []ledger.Record
	Graveyard  []ledger.GraveyardEntry
}

// localIdentity selects the local installer from the factory; the local
// path ignores version and architecture.
var localIdentity = install.Identity{Mode: install.ModeSDK}

// retryableExitCodes lists the installer exit codes worth another attempt.
// 1618 is Windows Installer's "another installation is in progress", which
// clears once the competing package finishes. Every other nonzero exit is
// fatal on the first try.
var retryableExitCodes = map[int]bool{
	1618: true,
}

const (
	installAttempts   = 3
	installRetryDelay = 10 * time.Second
)

// Orchestrator runs acquisitions and uninstalls. Safe for concurrent use;
// concurrent acquisitions of the same installation share one attempt.
type Orchestrator struct {
	resolver   VersionResolver
	tracker    *ledger.Tracker
	installers InstallerFactory
	sink       events.Sink
	logger     *log.Logger

	retryDelay time.Duration // between attempts on retryable installer exits
	group      singleflight.Group
}

// NewOrchestrator wires an orchestrator. A nil sink discards events; a nil
// logger falls back to the default logger.
func NewOrchestrator(resolver VersionResolver, tracker *ledger.Tracker, installers InstallerFactory, sink events.Sink, logger *log.Logger) *Orchestrator {
	if sink == nil {
		sink = events.NoopSink{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		resolver:   resolver,
		tracker:    tracker,
		installers: installers,
		sink:       sink,
		logger:     logger,
		retryDelay: installRetryDelay,
	}
}

// Acquire resolves the request to a concrete version and installs it,
// returning the path of the dotnet executable. Concurrent calls for the
// same installation are collapsed onto one install attempt and all receive
// its result.
func (o *Orchestrator) Acquire(ctx context.Context, req Request) (Result, error) {
	resolved, err := o.resolver.Resolve(ctx, req.Specifier, req.Mode)
	if err != nil {
		return Result{}, err
	}
	id := install.New(resolved, req.Architecture, req.Global, req.Mode)

	v, err, _ := o.group.Do(id.ID(), func() (any, error) {
		return o.acquire(ctx, id, req)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (o *Orchestrator) acquire(ctx context.Context, id install.Identity, req Request) (Result, error) {
	correlation := uuid.NewString()
	logger := o.logger.With("install", id.ID(), "correlation", correlation)

	o.post(events.Event{
		Kind:          events.KindAcquisitionStarted,
		Message:       "acquiring " + id.String(),
		Install:       id,
		Specifier:     req.Specifier,
		Version:       id.Version,
		CorrelationID: correlation,
	})

	installer, err := o.installers.For(ctx, id)
	if err != nil {
		return Result{}, o.fail(id, correlation, err)
	}

	o.recoverPartials(ctx, id, installer, correlation, logger)

	if !id.Global {
		if err := o.tracker.AdoptUnrecordedLocal(ctx, installer.InstallDir(id)); err != nil {
			logger.Warn("could not adopt unrecorded local installs", "err", err)
		}
	}

	if id.Global {
		done, result, err := o.checkGlobalConflict(ctx, id, req.Owner, installer, correlation, logger)
		if err != nil {
			return Result{}, o.fail(id, correlation, err)
		}
		if done {
			return result, nil
		}
	}

	if err := o.tracker.TrackInstalling(ctx, id, req.Owner); err != nil {
		return Result{}, o.fail(id, correlation, err)
	}

	logger.Info("installing", "version", id.Version, "global", id.Global, "mode", id.Mode)
	if err := o.runInstaller(ctx, installer, id); err != nil {
		// The installing entry stays behind so the next attempt treats the
		// directory as suspect and wipes it.
		return Result{}, o.fail(id, correlation, err)
	}

	path, err := validateInstall(installer, id)
	if err != nil {
		return Result{}, o.fail(id, correlation, err)
	}

	if err := o.tracker.Reclassify(ctx, id, req.Owner); err != nil {
		return Result{}, o.fail(id, correlation, err)
	}

	o.post(events.Event{
		Kind:          events.KindAcquisitionCompleted,
		Message:       "installed " + id.String(),
		Install:       id,
		Version:       id.Version,
		CorrelationID: correlation,
	})
	return Result{Install: id, Path: path}, nil
}

// recoverPartials wipes evidence of attempts that died mid-install. Local
// installs share one unpartitioned root, so any local partial poisons the
// whole root and every local install is wiped, not just the match. Recovery
// failures are logged, never raised: the wipe is itself the recovery, and
// the install that follows decides whether the machine is usable.
func (o *Orchestrator) recoverPartials(ctx context.Context, id install.Identity, installer platform.Installer, correlation string, logger *log.Logger) {
	partials, err := o.tracker.Partials(ctx)
	if err != nil {
		logger.Warn("could not read partial-install evidence", "err", err)
		return
	}
	if len(partials) == 0 {
		return
	}

	if !id.Global {
		var locals []string
		for _, p := range partials {
			if !p.Install.Global {
				locals = append(locals, p.Install.Version)
			}
		}
		if len(locals) == 0 {
			return
		}

		o.post(events.Event{
			Kind:          events.KindPartialInstallDetected,
			Message:       fmt.Sprintf("found interrupted local installs (%s); wiping all local installs", strings.Join(locals, ", ")),
			Install:       id,
			CorrelationID: correlation,
		})
		if err := installer.WipeAll(ctx); err != nil {
			logger.Warn("could not wipe local installs", "err", err)
			return
		}
		if err := o.tracker.UninstallAllRecords(ctx); err != nil {
			logger.Warn("could not clear local install records", "err", err)
		}
		return
	}

	for _, p := range partials {
		if !p.Install.Global || !install.EquivalentInstallation(p.Install, id) {
			continue
		}
		o.post(events.Event{
			Kind:          events.KindPartialInstallDetected,
			Message:       "found an interrupted install of " + id.String() + "; removing it first",
			Install:       id,
			CorrelationID: correlation,
		})
		if err := installer.Uninstall(ctx, id); err != nil {
			logger.Warn("could not remove the interrupted install", "err", err)
		}
		for _, owner := range p.Owners {
			if err := o.tracker.UntrackInstalling(ctx, p.Install, owner); err != nil {
				logger.Warn("could not clear the interrupted install record", "err", err)
				break
			}
		}
	}
}

// runInstaller invokes the platform installer, retrying the few exit codes
// that mean it lost a race with another installer rather than failed.
func (o *Orchestrator) runInstaller(ctx context.Context, installer platform.Installer, id install.Identity) error {
	return fetch.Retry(ctx, installAttempts, o.retryDelay, func() error {
		err := installer.Install(ctx, id)
		var exit *platform.ExitError
		if stderrors.As(err, &exit) && retryableExitCodes[exit.Code] {
			o.logger.Warn("installer busy; will retry", "install", id.ID(), "code", exit.Code)
			return fetch.Retryable(err)
		}
		return err
	})
}

// checkGlobalConflict applies the side-by-side rules for global SDKs. done
// reports that the acquisition is finished without installing, with result
// carrying the existing install.
func (o *Orchestrator) checkGlobalConflict(ctx context.Context, id install.Identity, owner string, installer platform.Installer, correlation string, logger *log.Logger) (done bool, result Result, err error) {
	installed, err := installer.InstalledVersions(ctx, id.Mode)
	if err != nil {
		logger.Warn("could not list installed versions; skipping conflict checks", "err", err)
		return false, Result{}, nil
	}

	conflict, err := FindConflict(id.Version, installed)
	if err != nil {
		return false, Result{}, err
	}

	switch conflict.Kind {
	case ConflictExact:
		if err := o.tracker.TrackInstalled(ctx, id, owner); err != nil {
			return false, Result{}, err
		}
		o.post(events.Event{
			Kind:          events.KindAlreadyInstalled,
			Message:       id.String() + " is already installed",
			Install:       id,
			Version:       id.Version,
			CorrelationID: correlation,
		})
		return true, Result{Install: id, Path: platform.Executable(installer.InstallDir(id))}, nil

	case ConflictBlocking:
		err := errors.Wrap(errors.ErrCodeConflictingGlobalInstall,
			&errors.ConflictError{Requested: id.Version, Existing: conflict.Existing},
			"%s is already installed globally and is at least as new as %s; refusing to downgrade",
			conflict.Existing, id.Version)
		o.post(events.Event{
			Kind:          events.KindGlobalConflict,
			Message:       "conflicting global install " + conflict.Existing,
			Install:       id,
			Version:       id.Version,
			CorrelationID: correlation,
			Err:           err,
		})
		return false, Result{}, err

	case ConflictUpgrade:
		logger.Info("upgrading in place", "from", conflict.Existing, "to", id.Version)
	}
	return false, Result{}, nil
}

// Uninstall releases owner's claim on id and removes the files once the
// last owner is gone. A local removal that fails lands in the graveyard and
// is retried by the next UninstallAll.
func (o *Orchestrator) Uninstall(ctx context.Context, id install.Identity, owner string) error {
	correlation := uuid.NewString()
	o.post(events.Event{
		Kind:          events.KindUninstallStarted,
		Message:       "uninstalling " + id.String(),
		Install:       id,
		Version:       id.Version,
		CorrelationID: correlation,
	})

	if err := o.tracker.UntrackInstalled(ctx, id, owner); err != nil {
		return o.failUninstall(id, correlation, err)
	}

	remaining, err := o.tracker.Existing(ctx, true)
	if err != nil {
		return o.failUninstall(id, correlation, err)
	}
	for _, rec := range remaining {
		if install.EquivalentInstallation(rec.Install, id) {
			o.post(events.Event{
				Kind:          events.KindUninstallCompleted,
				Message:       fmt.Sprintf("released %s; %d owner(s) still use it", id.String(), len(rec.Owners)),
				Install:       id,
				Version:       id.Version,
				CorrelationID: correlation,
			})
			return nil
		}
	}

	installer, err := o.installers.For(ctx, id)
	if err != nil {
		return o.failUninstall(id, correlation, err)
	}
	if err := installer.Uninstall(ctx, id); err != nil {
		if !id.Global {
			if gerr := o.tracker.AddToGraveyard(ctx, id, installer.InstallDir(id)); gerr != nil {
				o.logger.Warn("could not record the failed uninstall", "install", id.ID(), "err", gerr)
			}
		}
		return o.failUninstall(id, correlation, err)
	}
	if err := o.tracker.RemoveFromGraveyard(ctx, id); err != nil {
		o.logger.Warn("could not clear the graveyard entry", "install", id.ID(), "err", err)
	}

	o.post(events.Event{
		Kind:          events.KindUninstallCompleted,
		Message:       "uninstalled " + id.String(),
		Install:       id,
		Version:       id.Version,
		CorrelationID: correlation,
	})
	return nil
}

// UninstallAll retries the graveyard, wipes every local install, and clears
// their records. Global installs are left alone; the OS owns their removal.
func (o *Orchestrator) UninstallAll(ctx context.Context) error {
	correlation := uuid.NewString()
	o.post(events.Event{
		Kind:          events.KindUninstallStarted,
		Message:       "removing all local installs",
		CorrelationID: correlation,
	})

	o.retryGraveyard(ctx)

	local, err := o.installers.For(ctx, localIdentity)
	if err != nil {
		return o.failUninstall(install.Identity{}, correlation, err)
	}
	if err := local.WipeAll(ctx); err != nil {
		return o.failUninstall(install.Identity{}, correlation, err)
	}
	if err := o.tracker.UninstallAllRecords(ctx); err != nil {
		return o.failUninstall(install.Identity{}, correlation, err)
	}

	o.post(events.Event{
		Kind:          events.KindUninstallCompleted,
		Message:       "removed all local installs",
		CorrelationID: correlation,
	})
	return nil
}

// Status reports what the ledger knows, adopting unrecorded local SDKs
// first so pre-seeded bundles show up.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	if local, err := o.installers.For(ctx, localIdentity); err == nil {
		if err := o.tracker.AdoptUnrecordedLocal(ctx, local.InstallDir(localIdentity)); err != nil {
			o.logger.Warn("could not adopt unrecorded local installs", "err", err)
		}
	}

	var status Status
	var err error
	if status.Installed, err = o.tracker.Existing(ctx, true); err != nil {
		return Status{}, err
	}
	if status.Installing, err = o.tracker.Existing(ctx, false); err != nil {
		return Status{}, err
	}
	if status.Graveyard, err = o.tracker.Graveyard(ctx); err != nil {
		return Status{}, err
	}
	return status, nil
}

// retryGraveyard takes another pass at removals that failed before. Entries
// only ever point inside local roots, so deleting the recorded path is safe.
func (o *Orchestrator) retryGraveyard(ctx context.Context) {
	entries, err := o.tracker.Graveyard(ctx)
	if err != nil {
		o.logger.Warn("could not read the uninstall graveyard", "err", err)
		return
	}
	for _, entry := range entries {
		if err := os.RemoveAll(entry.Path); err != nil {
			o.logger.Warn("graveyard retry failed", "path", entry.Path, "err", err)
			continue
		}
		if err := o.tracker.RemoveFromGraveyard(ctx, entry.Install); err != nil {
			o.logger.Warn("could not clear the graveyard entry", "install", entry.Install.ID(), "err", err)
			continue
		}
		o.logger.Info("removed a previously stuck install", "path", entry.Path)
	}
}

func (o *Orchestrator) fail(id install.Identity, correlation string, err error) error {
	o.post(events.Event{
		Kind:          events.KindAcquisitionFailed,
		Message:       "acquisition of " + id.String() + " failed",
		Install:       id,
		Version:       id.Version,
		CorrelationID: correlation,
		Err:           err,
	})
	return err
}

func (o *Orchestrator) failUninstall(id install.Identity, correlation string, err error) error {
	o.post(events.Event{
		Kind:          events.KindUninstallFailed,
		Message:       "uninstall failed",
		Install:       id,
		Version:       id.Version,
		CorrelationID: correlation,
		Err:           err,
	})
	return err
}

func (o *Orchestrator) post(event events.Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	o.sink.Post(event)
}
