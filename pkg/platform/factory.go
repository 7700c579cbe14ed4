package platform

import (
	"context"
	"runtime"

	"github.com/charmbracelet/log"

	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/fetch"
	"github.com/dotnetup/dotnetup/pkg/install"
	"github.com/dotnetup/dotnetup/pkg/releases"
)

// Factory picks the installer for an identity: local identities always get
// the script-based LocalInstaller, global ones get whatever the host OS
// offers.
type Factory struct {
	Root     string // local install root; empty means the default
	Exec     Executor
	Fetcher  *fetch.Client
	Releases *releases.Client
	Logger   *log.Logger

	goos         string                 // override for tests
	detectDistro func() (Distro, error) // override for tests
}

// NewFactory wires a factory with host defaults.
func NewFactory(root string, fetcher *fetch.Client, rel *releases.Client, logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &Factory{
		Root:     root,
		Exec:     SystemExecutor{},
		Fetcher:  fetcher,
		Releases: rel,
		Logger:   logger,
	}
}

// For returns the installer responsible for id.
func (f *Factory) For(ctx context.Context, id install.Identity) (Installer, error) {
	if !id.Global {
		return NewLocalInstaller(f.Root, f.Exec, f.Fetcher, f.Logger)
	}

	switch f.os() {
	case "windows", "darwin":
		inst := NewWinMacInstaller(f.Exec, f.Fetcher, f.Releases, f.Logger)
		inst.goos = f.os()
		return inst, nil
	case "linux":
		distro, err := f.distro()
		if err != nil {
			return nil, err
		}
		if provider, ok := linuxProviders[distro.ID]; ok {
			return provider(distro, f.Exec, f.Logger), nil
		}
		f.Logger.Warn("no packaged install support for this distribution",
			"distro", distro.ID, "version", distro.VersionID)
		return &GenericLinuxInstaller{Distro: distro, Exec: f.Exec}, nil
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "no global install support on %s", f.os())
	}
}

func (f *Factory) os() string {
	if f.goos != "" {
		return f.goos
	}
	return runtime.GOOS
}

func (f *Factory) distro() (Distro, error) {
	if f.detectDistro != nil {
		return f.detectDistro()
	}
	return DetectDistro()
}
