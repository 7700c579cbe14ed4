//go:build unix

package lock

import (
	"errors"
	"os"
	"syscall"
)

// errWouldBlock signals that another holder has the lock right now.
var errWouldBlock = errors.New("lock held elsewhere")

// lockFile takes a non-blocking exclusive flock(2) on f. The lock belongs to
// the open file description, so it survives fork/exec into child installers
// and is released by the kernel when the holder exits.
func lockFile(f *os.File) error {
	err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == syscall.EWOULDBLOCK {
		return errWouldBlock
	}
	return err
}

func unlockFile(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}

// isProcessAlive reports whether a process with the given PID exists, using
// signal 0 (checks existence without delivering anything).
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
