// Package platform performs the real install and uninstall work for one
// operating system.
//
// The Installer capability hides how a .NET build reaches the disk: local
// installs stage the official install script into a tool-private root,
// global installs go through the OS (a signed platform package on Windows
// and macOS, the distro package manager on Linux). The Factory picks the
// right implementation from the identity's scope and detected OS and distro
// facts; adding a distro means registering a provider, not growing a
// conditional.
//
// A nonzero installer exit surfaces as an ExitError in the error chain;
// which codes are worth retrying is orchestration policy, not platform
// knowledge.
package platform

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dotnetup/dotnetup/pkg/install"
)

// Installer is the capability that puts a .NET build on disk and takes it
// off again.
type Installer interface {
	// Install places id's build on disk. The returned error carries the
	// installer's own diagnostics; exit-code policy belongs to the caller.
	Install(ctx context.Context, id install.Identity) error

	// Uninstall removes id's build. Providers that do not own removal on
	// their platform return an unsupported error.
	Uninstall(ctx context.Context, id install.Identity) error

	// WipeAll removes every install this provider manages. Only local
	// installers support it; the partial-install recovery path depends on
	// it.
	WipeAll(ctx context.Context) error

	// InstalledVersions reports the versions currently on disk for mode.
	InstalledVersions(ctx context.Context, mode install.Mode) ([]string, error)

	// InstallDir returns the directory id's build lives in (or would live
	// in once installed).
	InstallDir(id install.Identity) string
}

// Executable returns the dotnet entry point under dir for this OS.
func Executable(dir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(dir, "dotnet.exe")
	}
	return filepath.Join(dir, "dotnet")
}

// ExitError is the typed cause behind an installer that ran to completion
// and exited nonzero. Callers decide retry policy from Code.
type ExitError struct {
	Cmd  string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited %d", e.Cmd, e.Code)
}

// ExecResult captures one finished command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs external commands: package managers, install scripts, and
// OS introspection helpers.
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (ExecResult, error)
}

// SystemExecutor runs commands on the host.
type SystemExecutor struct{}

// Execute runs name with args and captures its output. A command that runs
// to completion with a nonzero exit reports the code in the result, not as
// an error; errors mean the command could not run at all.
func (SystemExecutor) Execute(ctx context.Context, name string, args ...string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("run %s: %w", name, err)
	}
	return result, nil
}

var _ Executor = SystemExecutor{}

// tail keeps the last lines of command output for error messages, where the
// actionable part of installer output usually lives.
func tail(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
