package platform

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/fetch"
	"github.com/dotnetup/dotnetup/pkg/install"
	"github.com/dotnetup/dotnetup/pkg/releases"
	"github.com/dotnetup/dotnetup/pkg/version"
)

// WinMacInstaller installs global builds through the signed platform
// package: an .exe bundle on Windows, a .pkg on macOS. The package is looked
// up in the channel manifest, downloaded, checked against the published
// SHA-512, and handed to the OS installer. A package the manifest lists
// without a checksum runs through the OS installer's own UI instead, where
// its signature checks stand in for the missing hash.
type WinMacInstaller struct {
	Exec     Executor
	Fetcher  *fetch.Client
	Releases *releases.Client
	Logger   *log.Logger

	goos string // override for tests; empty means runtime.GOOS
}

// NewWinMacInstaller creates a platform-package installer for the host OS.
func NewWinMacInstaller(exe Executor, fetcher *fetch.Client, rel *releases.Client, logger *log.Logger) *WinMacInstaller {
	if exe == nil {
		exe = SystemExecutor{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WinMacInstaller{Exec: exe, Fetcher: fetcher, Releases: rel, Logger: logger}
}

// exitRebootRequired is ERROR_SUCCESS_REBOOT_REQUIRED from the Windows
// bundle installer: the files are on disk but a restart finishes the job.
const exitRebootRequired = 3010

func (w *WinMacInstaller) Install(ctx context.Context, id install.Identity) error {
	file, err := w.packageFile(ctx, id)
	if err != nil {
		return err
	}

	dest := filepath.Join(os.TempDir(), file.Name)
	sum, err := w.Fetcher.Download(ctx, file.URL, dest)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInstallFailed, err, "download %s", file.Name)
	}
	defer os.Remove(dest)

	interactive := file.Hash == ""
	if interactive {
		w.Logger.Warn("manifest lists no checksum; handing off to the interactive installer", "package", file.Name)
	} else if !strings.EqualFold(sum, file.Hash) {
		return errors.New(errors.ErrCodeInstallFailed,
			"checksum mismatch for %s: manifest lists %s, downloaded %s", file.Name, file.Hash, sum)
	}

	w.Logger.Info("running platform installer", "package", file.Name, "version", id.Version)
	name, args := w.installCommand(dest, interactive)
	result, err := w.Exec.Execute(ctx, name, args...)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInstallFailed, err, "platform installer did not run")
	}
	if result.ExitCode != 0 {
		if w.os() == "windows" && result.ExitCode == exitRebootRequired {
			w.Logger.Warn("installed, but Windows wants a reboot before the build is usable", "package", file.Name)
			return nil
		}
		return errors.Wrap(errors.ErrCodeInstallFailed,
			&ExitError{Cmd: "platform installer", Code: result.ExitCode},
			"platform installer exited %d: %s", result.ExitCode, tail(result.Stderr))
	}
	return nil
}

// Uninstall is refused: platform packages register with the OS, and removal
// has to go through it to keep its accounting straight.
func (w *WinMacInstaller) Uninstall(ctx context.Context, id install.Identity) error {
	if w.os() == "windows" {
		return errors.New(errors.ErrCodeUnsupported,
			"remove .NET %s through Settings > Apps, then run uninstall again to drop its record", id.Version)
	}
	return errors.New(errors.ErrCodeUnsupported,
		"remove .NET %s from %s by hand, then run uninstall again to drop its record", id.Version, w.InstallDir(id))
}

func (w *WinMacInstaller) WipeAll(context.Context) error {
	return errors.New(errors.ErrCodeUnsupported, "global installs cannot be wiped")
}

func (w *WinMacInstaller) InstalledVersions(ctx context.Context, mode install.Mode) ([]string, error) {
	if w.os() == "windows" {
		versions, err := registryInstalledVersions(mode)
		if err == nil {
			return versions, nil
		}
		w.Logger.Debug("registry query failed, asking the muxer instead", "err", err)
	}
	return installedViaDotnet(ctx, w.Exec, mode)
}

func (w *WinMacInstaller) InstallDir(install.Identity) string {
	if w.os() == "windows" {
		return `C:\Program Files\dotnet`
	}
	return "/usr/local/share/dotnet"
}

// packageFile finds the installer package for id in its channel manifest.
func (w *WinMacInstaller) packageFile(ctx context.Context, id install.Identity) (*releases.File, error) {
	mm, err := version.MajorMinor(id.Version)
	if err != nil {
		return nil, err
	}
	manifest, err := w.Releases.Manifest(ctx, mm, false)
	if err != nil {
		return nil, err
	}

	var files []releases.File
	switch id.Mode {
	case install.ModeSDK:
		sdk := manifest.FindSDK(id.Version)
		if sdk == nil {
			return nil, errors.New(errors.ErrCodeInstallFailed,
				"channel %s manifest lists no sdk %s", mm, id.Version)
		}
		files = sdk.Files
	default:
		rt := manifest.FindRuntime(id.Version, id.Mode == install.ModeASPNetCore)
		if rt == nil {
			return nil, errors.New(errors.ErrCodeInstallFailed,
				"channel %s manifest lists no %s %s", mm, id.Mode, id.Version)
		}
		files = rt.Files
	}

	rid := w.rid(id)
	ext := ".pkg"
	if w.os() == "windows" {
		ext = ".exe"
	}
	for i := range files {
		f := &files[i]
		if f.Rid == rid && strings.HasSuffix(f.Name, ext) {
			return f, nil
		}
	}
	return nil, errors.New(errors.ErrCodeInstallFailed,
		"no %s installer package for %s %s", rid, id.Mode, id.Version)
}

func (w *WinMacInstaller) rid(id install.Identity) string {
	if w.os() == "windows" {
		return "win-" + id.Architecture
	}
	return "osx-" + id.Architecture
}

// installCommand builds the installer invocation. Verified packages run
// quietly; unverified ones go through the OS installer UI, which on macOS
// means opening the package in Installer.app and waiting for it.
func (w *WinMacInstaller) installCommand(dest string, interactive bool) (string, []string) {
	if w.os() == "windows" {
		if interactive {
			return dest, []string{"/install", "/norestart"}
		}
		return dest, []string{"/install", "/quiet", "/norestart"}
	}
	if interactive {
		return "open", []string{"-W", dest}
	}
	return "sudo", []string{"installer", "-pkg", dest, "-target", "/"}
}

func (w *WinMacInstaller) os() string {
	if w.goos != "" {
		return w.goos
	}
	return runtime.GOOS
}

var _ Installer = (*WinMacInstaller)(nil)
