package acquire

import (
	"testing"

	"github.com/dotnetup/dotnetup/pkg/errors"
)

func TestFindConflict(t *testing.T) {
	tests := []struct {
		name         string
		requested    string
		installed    []string
		wantKind     ConflictKind
		wantExisting string
	}{
		{
			name:      "nothing installed",
			requested: "7.0.301",
			installed: nil,
			wantKind:  ConflictNone,
		},
		{
			name:         "newer build in band blocks",
			requested:    "7.0.301",
			installed:    []string{"7.0.307"},
			wantKind:     ConflictBlocking,
			wantExisting: "7.0.307",
		},
		{
			name:         "equal build is an exact match",
			requested:    "7.0.301",
			installed:    []string{"7.0.301"},
			wantKind:     ConflictExact,
			wantExisting: "7.0.301",
		},
		{
			name:         "older build in band upgrades",
			requested:    "7.0.301",
			installed:    []string{"7.0.300"},
			wantKind:     ConflictUpgrade,
			wantExisting: "7.0.300",
		},
		{
			name:      "different band coexists",
			requested: "7.0.301",
			installed: []string{"7.0.201"},
			wantKind:  ConflictNone,
		},
		{
			name:      "different minor coexists",
			requested: "7.0.301",
			installed: []string{"7.1.301"},
			wantKind:  ConflictNone,
		},
		{
			name:      "different major coexists",
			requested: "7.0.301",
			installed: []string{"6.0.301"},
			wantKind:  ConflictNone,
		},
		{
			name:         "blocking wins over upgrade",
			requested:    "7.0.301",
			installed:    []string{"7.0.300", "7.0.307"},
			wantKind:     ConflictBlocking,
			wantExisting: "7.0.307",
		},
		{
			name:         "exact wins regardless of listing order",
			requested:    "7.0.301",
			installed:    []string{"7.0.307", "7.0.301"},
			wantKind:     ConflictExact,
			wantExisting: "7.0.301",
		},
		{
			name:      "foreign entries are skipped",
			requested: "7.0.301",
			installed: []string{"not-a-version", ""},
			wantKind:  ConflictNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindConflict(tt.requested, tt.installed)
			if err != nil {
				t.Fatalf("FindConflict() error: %v", err)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Existing != tt.wantExisting {
				t.Errorf("Existing = %q, want %q", got.Existing, tt.wantExisting)
			}
		})
	}
}

func TestFindConflictBadRequest(t *testing.T) {
	_, err := FindConflict("not-a-version", []string{"7.0.301"})
	if !errors.Is(err, errors.ErrCodeVersionFormat) {
		t.Fatalf("expected VERSION_FORMAT, got %v", err)
	}
}
