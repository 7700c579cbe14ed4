package acquire

import (
	"github.com/Masterminds/semver/v3"

	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/version"
)

// ConflictKind is the verdict on a requested global install given what is
// already on the machine.
type ConflictKind int

const (
	// ConflictNone means nothing installed competes; install side by side.
	ConflictNone ConflictKind = iota
	// ConflictExact means the requested version is already installed.
	ConflictExact
	// ConflictUpgrade means an older build of the same band is installed;
	// installing replaces it rather than adding a sibling.
	ConflictUpgrade
	// ConflictBlocking means an equal-or-newer build of the same band is
	// installed; installing would downgrade and is refused.
	ConflictBlocking
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictExact:
		return "exact match"
	case ConflictUpgrade:
		return "upgrade"
	case ConflictBlocking:
		return "blocking"
	default:
		return "none"
	}
}

// Conflict pairs a verdict with the installed version that produced it.
type Conflict struct {
	Kind     ConflictKind
	Existing string
}

// FindConflict compares a requested SDK version against the versions already
// installed globally. Only candidates sharing the requested major.minor and
// feature band compete; everything else coexists side by side. Comparison is
// numeric per component, never lexical.
func FindConflict(requested string, installed []string) (Conflict, error) {
	want, err := semver.NewVersion(requested)
	if err != nil {
		return Conflict{}, errors.Wrap(errors.ErrCodeVersionFormat, err, "parse requested version %q", requested)
	}
	wantBand, err := version.FeatureBand(requested)
	if err != nil {
		return Conflict{}, err
	}

	verdict := Conflict{Kind: ConflictNone}
	for _, candidate := range installed {
		have, err := semver.NewVersion(candidate)
		if err != nil {
			continue // not a .NET version; other tools share these listings
		}
		if have.Major() != want.Major() || have.Minor() != want.Minor() {
			continue
		}
		if band, err := version.FeatureBand(candidate); err != nil || band != wantBand {
			continue
		}

		// Exact beats blocking beats upgrade, regardless of listing order.
		switch {
		case have.Equal(want):
			return Conflict{Kind: ConflictExact, Existing: candidate}, nil
		case have.GreaterThan(want):
			if verdict.Kind != ConflictBlocking {
				verdict = Conflict{Kind: ConflictBlocking, Existing: candidate}
			}
		case verdict.Kind == ConflictNone:
			verdict = Conflict{Kind: ConflictUpgrade, Existing: candidate}
		}
	}
	return verdict, nil
}
