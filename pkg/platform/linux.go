package platform

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/install"
	"github.com/dotnetup/dotnetup/pkg/version"
)

// linuxProviders maps os-release IDs to global installer constructors.
// Distros absent here fall back to GenericLinuxInstaller, which can report
// installed versions but not change them.
var linuxProviders = map[string]func(d Distro, exe Executor, logger *log.Logger) Installer{
	"ubuntu": newAptInstaller,
	"debian": newAptInstaller,
}

// aptInstallRoot is where Ubuntu and Debian packages place .NET.
const aptInstallRoot = "/usr/lib/dotnet"

// AptInstaller installs global builds through apt. Distro feeds carry one
// package per major.minor, so the patch level of the identity is decided by
// the feed rather than by us.
type AptInstaller struct {
	Distro Distro
	Exec   Executor
	Logger *log.Logger

	euid func() int // override for tests
}

func newAptInstaller(d Distro, exe Executor, logger *log.Logger) Installer {
	return &AptInstaller{Distro: d, Exec: exe, Logger: logger, euid: os.Geteuid}
}

func (a *AptInstaller) Install(ctx context.Context, id install.Identity) error {
	if err := a.checkConflicts(ctx); err != nil {
		return err
	}

	pkg, err := a.packageName(id)
	if err != nil {
		return err
	}

	a.Logger.Info("installing through apt", "package", pkg, "distro", a.Distro.ID)
	if err := a.run(ctx, errors.ErrCodeInstallFailed, "update"); err != nil {
		return err
	}
	return a.run(ctx, errors.ErrCodeInstallFailed, "install", "-y", pkg)
}

func (a *AptInstaller) Uninstall(ctx context.Context, id install.Identity) error {
	pkg, err := a.packageName(id)
	if err != nil {
		return err
	}
	a.Logger.Info("removing through apt", "package", pkg)
	return a.run(ctx, errors.ErrCodeUninstallFailed, "remove", "-y", pkg)
}

// WipeAll is refused: the package database is the source of truth for
// distro-managed files, and deleting them behind its back corrupts it.
func (a *AptInstaller) WipeAll(context.Context) error {
	return errors.New(errors.ErrCodeUnsupported, "apt-managed installs cannot be wiped; remove packages individually")
}

func (a *AptInstaller) InstalledVersions(ctx context.Context, mode install.Mode) ([]string, error) {
	return installedViaDotnet(ctx, a.Exec, mode)
}

func (a *AptInstaller) InstallDir(install.Identity) string {
	return aptInstallRoot
}

// checkConflicts refuses to proceed when a dotnet outside the distro layout
// is already on PATH. Such installs shadow the packaged muxer and the two
// cannot see each other's SDKs, so stacking a package on top strands both.
func (a *AptInstaller) checkConflicts(ctx context.Context) error {
	result, err := a.Exec.Execute(ctx, "which", "dotnet")
	if err != nil || result.ExitCode != 0 {
		return nil
	}

	path := strings.TrimSpace(result.Stdout)
	if path == "" || strings.HasPrefix(path, "/usr/bin/") || strings.HasPrefix(path, aptInstallRoot) {
		return nil
	}
	return errors.New(errors.ErrCodeConflictingInstallType,
		"found a dotnet at %s that the package manager does not own; remove it before installing globally", path)
}

// packageName maps an identity onto the distro feed's package for its
// major.minor.
func (a *AptInstaller) packageName(id install.Identity) (string, error) {
	mm, err := version.MajorMinor(id.Version)
	if err != nil {
		return "", err
	}
	switch id.Mode {
	case install.ModeRuntime:
		return "dotnet-runtime-" + mm, nil
	case install.ModeASPNetCore:
		return "aspnetcore-runtime-" + mm, nil
	default:
		return "dotnet-sdk-" + mm, nil
	}
}

// run executes apt-get with args, prefixing sudo for unprivileged callers.
func (a *AptInstaller) run(ctx context.Context, code errors.Code, args ...string) error {
	verb := args[0]
	name := "apt-get"
	if a.euid() != 0 {
		name = "sudo"
		args = append([]string{"apt-get"}, args...)
	}

	result, err := a.Exec.Execute(ctx, name, args...)
	if err != nil {
		return errors.Wrap(code, err, "apt-get %s", verb)
	}
	if result.ExitCode != 0 {
		return errors.Wrap(code,
			&ExitError{Cmd: "apt-get " + verb, Code: result.ExitCode},
			"apt-get %s exited %d: %s", verb, result.ExitCode, tail(result.Stderr))
	}
	return nil
}

// GenericLinuxInstaller serves distros without a registered provider. It
// can report what a muxer on PATH knows but refuses to install, pointing
// the user at their distro's own instructions instead of guessing at a
// package manager.
type GenericLinuxInstaller struct {
	Distro Distro
	Exec   Executor
}

func (g *GenericLinuxInstaller) Install(ctx context.Context, id install.Identity) error {
	return errors.New(errors.ErrCodeDistroUnknown,
		"no global install support for %s %s; install .NET %s with your distribution's own instructions",
		g.Distro.ID, g.Distro.VersionID, id.Version)
}

func (g *GenericLinuxInstaller) Uninstall(ctx context.Context, id install.Identity) error {
	return errors.New(errors.ErrCodeDistroUnknown,
		"no global uninstall support for %s %s", g.Distro.ID, g.Distro.VersionID)
}

func (g *GenericLinuxInstaller) WipeAll(context.Context) error {
	return errors.New(errors.ErrCodeUnsupported, "global installs cannot be wiped")
}

func (g *GenericLinuxInstaller) InstalledVersions(ctx context.Context, mode install.Mode) ([]string, error) {
	return installedViaDotnet(ctx, g.Exec, mode)
}

func (g *GenericLinuxInstaller) InstallDir(install.Identity) string {
	return "/usr/share/dotnet"
}

var (
	_ Installer = (*AptInstaller)(nil)
	_ Installer = (*GenericLinuxInstaller)(nil)
)
