package install

import (
	"strings"

	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/version"
)

// ParseLegacyID decodes a persisted install key back into an Identity.
//
// Older records were written in three progressively richer shapes, all of
// which must still decode:
//
//	"7.0.5"                    bare version
//	"7.0.301-global"           version with scope marker
//	"7.0.5~x64"                version with architecture
//	"7.0.5~x64~aspnetcore"     full form with mode marker
//
// Missing fields are defaulted: architecture to the host architecture, mode
// via inferLegacyMode. Whitespace and marker case are not preserved; the
// decoded identity re-encodes to the canonical form of the same install key.
func ParseLegacyID(s string) (Identity, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Identity{}, errors.New(errors.ErrCodeVersionFormat, "empty install key")
	}

	segments := strings.Split(trimmed, "~")
	if len(segments) > 3 {
		return Identity{}, errors.New(errors.ErrCodeVersionFormat, "malformed install key: %q", s)
	}

	ver := strings.TrimSpace(segments[0])
	global := false
	if strings.HasSuffix(strings.ToLower(ver), "-global") {
		global = true
		ver = ver[:len(ver)-len("-global")]
	}
	if err := errors.ValidateVersionInput(ver); err != nil {
		return Identity{}, errors.Wrap(errors.ErrCodeVersionFormat, err, "malformed install key: %q", s)
	}

	arch := ""
	if len(segments) > 1 {
		normalized, err := NormalizeArchitecture(strings.ToLower(strings.TrimSpace(segments[1])))
		if err != nil {
			return Identity{}, errors.Wrap(errors.ErrCodeVersionFormat, err, "malformed install key: %q", s)
		}
		arch = normalized
	}

	mode := inferLegacyMode(ver, trimmed)
	if len(segments) > 2 {
		if !strings.EqualFold(strings.TrimSpace(segments[2]), string(ModeASPNetCore)) {
			return Identity{}, errors.New(errors.ErrCodeVersionFormat, "malformed install key: %q", s)
		}
		mode = ModeASPNetCore
	}

	return New(ver, arch, global, mode), nil
}

// inferLegacyMode guesses the mode of a record that predates typed installs.
// Best effort only, never applied to freshly created identities: runtime
// patch numbers stay short ("7.0.16") while SDK third components carry a
// three-digit band+patch ("7.0.301"), so a third component of two or fewer
// digits without an "sdk" mention reads as a runtime install.
func inferLegacyMode(ver, raw string) Mode {
	if strings.Contains(strings.ToLower(raw), "sdk") {
		return ModeSDK
	}
	if thirdComponentDigits(ver) <= 2 {
		return ModeRuntime
	}
	return ModeSDK
}

// thirdComponentDigits counts the digits of the third dot-component before
// any prerelease suffix. Versions without a third component count zero.
func thirdComponentDigits(ver string) int {
	if patch, ok := version.RuntimePatch(ver); ok {
		return len(patch)
	}
	return 0
}
