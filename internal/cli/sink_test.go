package cli

import (
	"strings"
	"testing"

	"github.com/dotnetup/dotnetup/pkg/events"
)

func TestRenderEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    events.Event
		wantLine bool
		contains string
	}{
		{
			name:     "already installed prints",
			event:    events.Event{Kind: events.KindAlreadyInstalled, Message: "8.0.301 is already installed; sharing it"},
			wantLine: true,
			contains: "already installed",
		},
		{
			name:     "partial install prints",
			event:    events.Event{Kind: events.KindPartialInstallDetected, Message: "found interrupted local installs; wiping all local installs"},
			wantLine: true,
			contains: "interrupted",
		},
		{
			name:     "global conflict prints",
			event:    events.Event{Kind: events.KindGlobalConflict, Message: "8.0.404 is already installed globally"},
			wantLine: true,
			contains: "globally",
		},
		{
			name:     "acquisition start stays quiet",
			event:    events.Event{Kind: events.KindAcquisitionStarted, Message: "installing"},
			wantLine: false,
		},
		{
			name:     "acquisition completion stays quiet",
			event:    events.Event{Kind: events.KindAcquisitionCompleted, Message: "installed"},
			wantLine: false,
		},
		{
			name:     "failures stay quiet",
			event:    events.Event{Kind: events.KindAcquisitionFailed, Message: "install script exited 1"},
			wantLine: false,
		},
		{
			name:     "zero event stays quiet",
			event:    events.Event{},
			wantLine: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, ok := renderEvent(tt.event)
			if ok != tt.wantLine {
				t.Fatalf("renderEvent() ok = %v, want %v", ok, tt.wantLine)
			}
			if ok && !strings.Contains(line, tt.contains) {
				t.Errorf("renderEvent() = %q, should contain %q", line, tt.contains)
			}
		})
	}
}

func TestUISinkPostDoesNotPanic(t *testing.T) {
	var s uiSink
	s.Post(events.Event{Kind: events.KindUninstallStarted, Message: "removing"})
	s.Post(events.Event{})
}
