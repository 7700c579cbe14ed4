package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"

	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/fetch"
	"github.com/dotnetup/dotnetup/pkg/install"
)

// Official install-script locations.
const (
	installScriptSh  = "https://dot.net/v1/dotnet-install.sh"
	installScriptPs1 = "https://dot.net/v1/dotnet-install.ps1"
)

// LocalInstaller stages the official install script and runs it into a
// tool-private shared root. All local identities collapse onto one root, in
// the layout the muxer expects: sdk/<version> and shared/<framework>/<version>.
type LocalInstaller struct {
	Root      string
	ScriptURL string // empty means the official location for this OS
	Exec      Executor
	Fetcher   *fetch.Client
	Logger    *log.Logger
}

// NewLocalInstaller creates a local installer rooted at root.
// If root is empty, defaults to ~/.dotnetup/dotnet.
func NewLocalInstaller(root string, exe Executor, fetcher *fetch.Client, logger *log.Logger) (*LocalInstaller, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		root = filepath.Join(home, ".dotnetup", "dotnet")
	}
	if exe == nil {
		exe = SystemExecutor{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LocalInstaller{Root: root, Exec: exe, Fetcher: fetcher, Logger: logger}, nil
}

func (l *LocalInstaller) Install(ctx context.Context, id install.Identity) error {
	script, err := l.stageScript(ctx)
	if err != nil {
		return err
	}

	name, args := l.command(script, id)
	l.Logger.Info("running install script", "version", id.Version, "arch", id.Architecture, "mode", id.Mode)
	result, err := l.Exec.Execute(ctx, name, args...)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInstallFailed, err, "install script did not run")
	}
	if result.ExitCode != 0 {
		return errors.Wrap(errors.ErrCodeInstallFailed,
			&ExitError{Cmd: "install script", Code: result.ExitCode},
			"install script exited %d: %s", result.ExitCode, tail(result.Stderr))
	}
	return nil
}

func (l *LocalInstaller) Uninstall(ctx context.Context, id install.Identity) error {
	for _, dir := range l.versionDirs(id) {
		if err := os.RemoveAll(dir); err != nil {
			return errors.Wrap(errors.ErrCodeUninstallFailed, err, "remove %s", dir)
		}
	}
	return nil
}

// WipeAll removes the entire shared root. Local installs are not
// architecture-partitioned, so recovering from any partial install means
// starting the whole root over.
func (l *LocalInstaller) WipeAll(ctx context.Context) error {
	if err := os.RemoveAll(l.Root); err != nil {
		return errors.Wrap(errors.ErrCodeUninstallFailed, err, "wipe %s", l.Root)
	}
	return nil
}

func (l *LocalInstaller) InstalledVersions(ctx context.Context, mode install.Mode) ([]string, error) {
	dir := filepath.Join(l.Root, "sdk")
	switch mode {
	case install.ModeRuntime:
		dir = filepath.Join(l.Root, "shared", coreRuntimeName)
	case install.ModeASPNetCore:
		dir = filepath.Join(l.Root, "shared", aspnetcoreName)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var versions []string
	for _, entry := range entries {
		if entry.IsDir() {
			versions = append(versions, entry.Name())
		}
	}
	return versions, nil
}

func (l *LocalInstaller) InstallDir(install.Identity) string {
	return l.Root
}

// stageScript downloads the install script next to the root and marks it
// executable.
func (l *LocalInstaller) stageScript(ctx context.Context) (string, error) {
	staging := filepath.Join(filepath.Dir(l.Root), "staging")
	dest := filepath.Join(staging, filepath.Base(l.scriptURL()))
	if _, err := l.Fetcher.Download(ctx, l.scriptURL(), dest); err != nil {
		return "", errors.Wrap(errors.ErrCodeInstallFailed, err, "stage install script")
	}
	if err := os.Chmod(dest, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeInstallFailed, err, "stage install script")
	}
	return dest, nil
}

func (l *LocalInstaller) scriptURL() string {
	if l.ScriptURL != "" {
		return l.ScriptURL
	}
	if runtime.GOOS == "windows" {
		return installScriptPs1
	}
	return installScriptSh
}

// command builds the script invocation for id.
func (l *LocalInstaller) command(script string, id install.Identity) (string, []string) {
	if runtime.GOOS == "windows" {
		args := []string{"-ExecutionPolicy", "Bypass", "-File", script,
			"-Version", id.Version, "-Architecture", id.Architecture, "-InstallDir", l.Root, "-NoPath"}
		switch id.Mode {
		case install.ModeRuntime:
			args = append(args, "-Runtime", "dotnet")
		case install.ModeASPNetCore:
			args = append(args, "-Runtime", "aspnetcore")
		}
		return "powershell", args
	}

	args := []string{script, "--version", id.Version, "--architecture", id.Architecture,
		"--install-dir", l.Root, "--no-path"}
	switch id.Mode {
	case install.ModeRuntime:
		args = append(args, "--runtime", "dotnet")
	case install.ModeASPNetCore:
		args = append(args, "--runtime", "aspnetcore")
	}
	return "bash", args
}

func (l *LocalInstaller) versionDirs(id install.Identity) []string {
	switch id.Mode {
	case install.ModeSDK:
		return []string{filepath.Join(l.Root, "sdk", id.Version)}
	case install.ModeASPNetCore:
		return []string{filepath.Join(l.Root, "shared", aspnetcoreName, id.Version)}
	default:
		return []string{filepath.Join(l.Root, "shared", coreRuntimeName, id.Version)}
	}
}

var _ Installer = (*LocalInstaller)(nil)
