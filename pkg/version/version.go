// Package version classifies .NET version specifiers and extracts their
// components.
//
// A specifier is whatever a caller passes to describe the version it wants:
// a bare major ("7"), a major.minor ("7.0"), a feature-band wildcard
// ("7.0.3xx"), or a fully specified version ("7.0.301", optionally with a
// "-preview" style suffix). Classification never guesses: anything that does
// not match one of those shapes is Invalid, and component accessors return a
// VERSION_FORMAT error naming the offending string rather than a default.
//
// SDK versions carry a feature band in their third component: the leading
// digit groups patches into bands ("301" is band "3", patch 1). Runtime
// versions have no band; their third component is a plain patch number.
package version

import (
	"strconv"
	"strings"

	"github.com/dotnetup/dotnetup/pkg/errors"
)

// Kind is the classification of a version specifier.
type Kind string

// Specifier classifications.
const (
	KindInvalid             Kind = "invalid"
	KindMajor               Kind = "major"
	KindMajorMinor          Kind = "major.minor"
	KindFeatureBandWildcard Kind = "feature-band-wildcard"
	KindFullySpecified      Kind = "fully-specified"
)

// Classify determines which specifier shape raw has.
//
// The shapes, in the order they are checked:
//   - Major: numeric with zero dots ("7")
//   - MajorMinor: exactly one dot, both parts numeric ("7.0")
//   - FeatureBandWildcard: two dots, numeric major and minor, third part
//     one or more digits followed by one or more literal 'x' ("7.0.3xx")
//   - FullySpecified: two dots, all parts numeric, allowing a "-suffix"
//     on the third ("7.0.301", "8.0.100-preview.2.23619.3")
//
// Anything else, including strings rejected by the raw input checks
// (length, control characters), is KindInvalid.
func Classify(raw string) Kind {
	if err := errors.ValidateVersionInput(raw); err != nil {
		return KindInvalid
	}

	parts := strings.Split(raw, ".")
	switch len(parts) {
	case 1:
		if isNumeric(parts[0]) {
			return KindMajor
		}
	case 2:
		if isNumeric(parts[0]) && isNumeric(parts[1]) {
			return KindMajorMinor
		}
	default:
		if !isNumeric(parts[0]) || !isNumeric(parts[1]) {
			return KindInvalid
		}
		// Anything after the second dot is one logical component, so a
		// prerelease suffix like "-preview.2.23619.3" stays attached.
		third := strings.Join(parts[2:], ".")
		if len(parts) == 3 && isBandWildcard(third) {
			return KindFeatureBandWildcard
		}
		if isPatchComponent(third) {
			return KindFullySpecified
		}
	}
	return KindInvalid
}

// Major returns the major component of any non-invalid specifier.
func Major(v string) (string, error) {
	if Classify(v) == KindInvalid {
		return "", formatError(v)
	}
	return strings.SplitN(v, ".", 2)[0], nil
}

// Minor returns the minor component. Specifiers without a minor component
// (bare majors) are an error; use MajorMinor for the normalized pair.
func Minor(v string) (string, error) {
	k := Classify(v)
	if k == KindInvalid || k == KindMajor {
		return "", formatError(v)
	}
	return strings.Split(v, ".")[1], nil
}

// MajorMinor returns the normalized "major.minor" pair for any non-invalid
// specifier. A bare major is normalized by appending ".0", matching the
// channel naming of the release index.
func MajorMinor(v string) (string, error) {
	k := Classify(v)
	switch k {
	case KindInvalid:
		return "", formatError(v)
	case KindMajor:
		return v + ".0", nil
	}
	parts := strings.Split(v, ".")
	return parts[0] + "." + parts[1], nil
}

// FeatureBand returns the feature band of an SDK version: the first digit of
// the third dot-component. It accepts fully specified versions and band
// wildcards ("7.0.301" and "7.0.3xx" are both band "3").
func FeatureBand(v string) (string, error) {
	k := Classify(v)
	if k != KindFullySpecified && k != KindFeatureBandWildcard {
		return "", formatError(v)
	}
	third := thirdComponent(v)
	if third == "" || !isDigit(third[0]) {
		return "", formatError(v)
	}
	return string(third[0]), nil
}

// FeatureBandPatch returns the patch number within the feature band: the
// digits of the third component after the band digit, as a number ("301" is
// patch 1, "410" is patch 10). A third component too short to carry a patch
// is an error, never a guessed zero.
func FeatureBandPatch(v string) (int, error) {
	if Classify(v) != KindFullySpecified {
		return 0, formatError(v)
	}
	third := thirdComponent(v)
	if suffix := strings.IndexByte(third, '-'); suffix >= 0 {
		third = third[:suffix]
	}
	if len(third) < 2 {
		return 0, formatError(v)
	}
	patch, err := strconv.Atoi(third[1:])
	if err != nil {
		return 0, formatError(v)
	}
	return patch, nil
}

// IsPreview reports whether v carries a prerelease suffix.
func IsPreview(v string) bool {
	return strings.Contains(v, "-")
}

// RuntimePatch returns the patch component of a runtime version: whatever
// follows the second dot, up to an optional "-" suffix. The second return is
// false when no patch was given, which for runtimes means "unspecified"
// rather than an error.
func RuntimePatch(v string) (string, bool) {
	k := Classify(v)
	if k != KindFullySpecified {
		return "", false
	}
	third := thirdComponent(v)
	if suffix := strings.IndexByte(third, '-'); suffix >= 0 {
		third = third[:suffix]
	}
	return third, third != ""
}

func formatError(raw string) error {
	return errors.New(errors.ErrCodeVersionFormat, "invalid version specifier: %q", raw)
}

func thirdComponent(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// isPatchComponent accepts the third component of a fully specified version:
// digits, optionally followed by a "-" prerelease suffix.
func isPatchComponent(s string) bool {
	if suffix := strings.IndexByte(s, '-'); suffix >= 0 {
		s = s[:suffix]
	}
	return isNumeric(s)
}

// isBandWildcard accepts one or more digits followed by one or more literal
// 'x' characters ("3xx", "40x").
func isBandWildcard(s string) bool {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == 0 || i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] != 'x' {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
