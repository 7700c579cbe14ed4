//go:build !windows

package platform

import (
	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/install"
)

func registryInstalledVersions(install.Mode) ([]string, error) {
	return nil, errors.New(errors.ErrCodeUnsupported, "no install registry on this platform")
}
