package acquire

import (
	"os"

	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/install"
	"github.com/dotnetup/dotnetup/pkg/platform"
)

// validateInstall confirms an install landed where its installer says it
// lives: the directory exists and the muxer executable inside it is a
// regular file. Returns the executable path. Validation failures are final;
// a build that installed without its entry point points at a broken feed or
// installer, which retrying would only repeat.
func validateInstall(installer platform.Installer, id install.Identity) (string, error) {
	dir := installer.InstallDir(id)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", errors.New(errors.ErrCodeInstallationValidation,
			"install directory %s is missing after installing %s", dir, id.Version)
	}

	exe := platform.Executable(dir)
	info, err := os.Stat(exe)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInstallationValidation, err,
			"expected executable %s after installing %s", exe, id.Version)
	}
	if !info.Mode().IsRegular() {
		return "", errors.New(errors.ErrCodeInstallationValidation, "%s is not a regular file", exe)
	}
	return exe, nil
}
