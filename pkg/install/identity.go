// Package install defines the identity value type that names one distinct
// .NET installation on a machine, together with its equivalence rules and the
// legacy string encoding used by older persisted records.
package install

import (
	"fmt"
	"runtime"

	"github.com/dotnetup/dotnetup/pkg/errors"
)

// Mode distinguishes what kind of .NET artifact an install provides.
type Mode string

// Install modes.
const (
	ModeSDK        Mode = "sdk"
	ModeRuntime    Mode = "runtime"
	ModeASPNetCore Mode = "aspnetcore"
)

// ParseMode converts a user-supplied mode string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSDK, ModeRuntime, ModeASPNetCore:
		return Mode(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown install mode: %q (expected sdk, runtime, or aspnetcore)", s)
}

// Architectures .NET ships installers for.
var validArchitectures = map[string]bool{
	"x64":   true,
	"x86":   true,
	"arm":   true,
	"arm64": true,
}

// HostArchitecture returns the running machine's architecture in .NET naming.
func HostArchitecture() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "386":
		return "x86"
	case "arm":
		return "arm"
	case "arm64":
		return "arm64"
	}
	return runtime.GOARCH
}

// NormalizeArchitecture maps a user-supplied architecture to .NET naming.
// The empty string means "unspecified" and resolves to the host architecture.
func NormalizeArchitecture(s string) (string, error) {
	switch s {
	case "":
		return HostArchitecture(), nil
	case "amd64":
		return "x64", nil
	case "aarch64":
		return "arm64", nil
	}
	if !validArchitectures[s] {
		return "", errors.New(errors.ErrCodeInvalidInput, "unknown architecture: %q (expected x64, x86, arm, or arm64)", s)
	}
	return s, nil
}

// Identity names one distinct install: a concrete fully specified version on
// one architecture, either machine-wide (global, SDK only) or in the
// tool-private directory, in one of the three modes.
//
// Identities are immutable values; construct them with New and compare them
// with EquivalentFile or EquivalentInstallation.
type Identity struct {
	Version      string `json:"version"`
	Architecture string `json:"architecture"`
	Global       bool   `json:"isGlobal"`
	Mode         Mode   `json:"mode"`
}

// New constructs an Identity, defaulting an empty architecture to the host
// architecture. The version is expected to be concrete (resolution happens
// before identities are built); its shape is not re-validated here.
func New(version, architecture string, global bool, mode Mode) Identity {
	if architecture == "" {
		architecture = HostArchitecture()
	}
	return Identity{
		Version:      version,
		Architecture: architecture,
		Global:       global,
		Mode:         mode,
	}
}

// ID returns the deterministic string key for this identity, in the encoding
// shared with legacy persisted records: "<version>[-global]~<arch>" with a
// "~aspnetcore" marker for ASP.NET Core installs. SDK and runtime installs of
// the same version are deliberately not distinguished by the key; that is
// what keeps tracking continuous across the id-scheme change.
func (i Identity) ID() string {
	id := i.Version
	if i.Global {
		id += "-global"
	}
	id += "~" + i.Architecture
	if i.Mode == ModeASPNetCore {
		id += "~aspnetcore"
	}
	return id
}

// String renders the identity for logs and event messages.
func (i Identity) String() string {
	scope := "local"
	if i.Global {
		scope = "global"
	}
	return fmt.Sprintf("%s %s (%s, %s)", i.Mode, i.Version, i.Architecture, scope)
}

// EquivalentFile reports whether a and b denote byte-identical installs:
// version, architecture, scope, and mode all match.
func EquivalentFile(a, b Identity) bool {
	return a == b
}

// EquivalentInstallation reports whether a and b map to the same install key.
// This is weaker than EquivalentFile: the key does not separate SDK from
// runtime installs of the same version, and tracking treats those as one
// continuous installation.
func EquivalentInstallation(a, b Identity) bool {
	return a.ID() == b.ID()
}
