// Package lock provides a cross-process advisory file lock with bounded
// retry, used to serialize every read-then-write pass over the install
// ledger. Multiple processes (and multiple goroutines holding separate
// FileLock values) contend on the same lock file; the kernel releases the
// lock automatically if the holder dies, so a crashed process never wedges
// the ledger.
package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dotnetup/dotnetup/pkg/errors"
)

// Options configures acquisition retry behavior.
type Options struct {
	// Attempts is the number of times to try before giving up.
	Attempts int

	// Delay is the wait after the first failed attempt; it doubles on each
	// subsequent failure, capped at MaxDelay.
	Delay time.Duration

	// MaxDelay caps the backoff growth. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultOptions matches the acquisition budget of an interactive tool:
// worst case a few seconds of waiting before reporting the lock holder.
var DefaultOptions = Options{
	Attempts: 10,
	Delay:    100 * time.Millisecond,
	MaxDelay: 2 * time.Second,
}

// FileLock is an advisory exclusive lock on a single path. It is not
// reentrant: a second Acquire through the same value, or through any other
// value for the same path, contends like a separate process would.
type FileLock struct {
	path string
	opts Options
	file *os.File
}

// holderInfo is written into the lock file while held. Diagnostics only; the
// flock itself is the source of truth.
type holderInfo struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// New creates a lock for the given path. Zero-value options fall back to
// DefaultOptions. The path's directory is created on first Acquire.
func New(path string, opts Options) *FileLock {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultOptions.Attempts
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultOptions.Delay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultOptions.MaxDelay
	}
	return &FileLock{path: path, opts: opts}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Acquire takes the lock, retrying with exponential backoff until the
// attempt budget or ctx expires. Failure after all retries returns a
// LOCK_ACQUISITION error naming the current holder when it can be read.
func (l *FileLock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeLockAcquisition, err, "create lock directory for %s", l.path)
	}

	delay := l.opts.Delay
	for attempt := 0; attempt < l.opts.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(errors.ErrCodeLockAcquisition, ctx.Err(), "waiting for lock %s", l.path)
			case <-time.After(delay):
			}
			delay *= 2
			if delay > l.opts.MaxDelay {
				delay = l.opts.MaxDelay
			}
		}

		ok, err := l.tryAcquire()
		if err != nil {
			return errors.Wrap(errors.ErrCodeLockAcquisition, err, "lock %s", l.path)
		}
		if ok {
			return nil
		}
	}

	return errors.New(errors.ErrCodeLockAcquisition, "could not acquire lock %s after %d attempts%s",
		l.path, l.opts.Attempts, l.describeHolder())
}

// tryAcquire makes one non-blocking attempt.
func (l *FileLock) tryAcquire() (bool, error) {
	if l.file != nil {
		// Already held through this value; contend like anyone else.
		return false, nil
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, err
	}

	if err := lockFile(f); err != nil {
		f.Close()
		if err == errWouldBlock {
			return false, nil
		}
		return false, err
	}

	l.file = f
	l.writeHolder()
	return true, nil
}

// Release drops the lock. Safe to call when not held.
func (l *FileLock) Release() error {
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil

	// Best effort: clear holder info so readers don't see a stale PID.
	_ = f.Truncate(0)

	unlockErr := unlockFile(f)
	closeErr := f.Close()
	if unlockErr != nil {
		return fmt.Errorf("unlock %s: %w", l.path, unlockErr)
	}
	return closeErr
}

func (l *FileLock) writeHolder() {
	info := holderInfo{PID: os.Getpid(), AcquiredAt: time.Now()}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	_ = l.file.Truncate(0)
	_, _ = l.file.WriteAt(data, 0)
	_ = l.file.Sync()
}

// describeHolder reads the holder info left in the lock file, if any.
func (l *FileLock) describeHolder() string {
	data, err := os.ReadFile(l.path)
	if err != nil || len(data) == 0 {
		return ""
	}
	var info holderInfo
	if err := json.Unmarshal(data, &info); err != nil || info.PID == 0 {
		return ""
	}
	state := "exited"
	if isProcessAlive(info.PID) {
		state = "running"
	}
	return fmt.Sprintf(" (held by process %d, %s)", info.PID, state)
}
