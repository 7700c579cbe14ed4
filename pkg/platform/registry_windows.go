//go:build windows

package platform

import (
	"sort"

	"golang.org/x/sys/windows/registry"

	"github.com/dotnetup/dotnetup/pkg/install"
)

// registryInstalledVersions reads the versions platform installers recorded
// under HKLM\SOFTWARE\dotnet\Setup\InstalledVersions for the host
// architecture. Both registry views are read; 32-bit installers write the
// WOW6432 view on 64-bit hosts.
func registryInstalledVersions(mode install.Mode) ([]string, error) {
	sub := `SOFTWARE\dotnet\Setup\InstalledVersions\` + install.HostArchitecture()
	switch mode {
	case install.ModeASPNetCore:
		sub += `\sharedfx\` + aspnetcoreName
	case install.ModeRuntime:
		sub += `\sharedfx\` + coreRuntimeName
	default:
		sub += `\sdk`
	}

	seen := make(map[string]bool)
	var versions []string
	for _, view := range []uint32{registry.WOW64_64KEY, registry.WOW64_32KEY} {
		key, err := registry.OpenKey(registry.LOCAL_MACHINE, sub, registry.QUERY_VALUE|view)
		if err != nil {
			continue
		}
		names, err := key.ReadValueNames(0)
		key.Close()
		if err != nil {
			continue
		}
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				versions = append(versions, name)
			}
		}
	}
	sort.Strings(versions)
	return versions, nil
}
