// Package events carries acquisition lifecycle notifications from the core
// to whatever surface hosts it.
//
// The core posts an Event at every state transition (resolution failed,
// install started, already installed, partial install detected, completed,
// failed, uninstall progress). Sinks are fire-and-forget: posting never
// blocks the acquisition path and never returns an error, so a broken or
// slow consumer cannot fail an install.
//
// Hosts provide their own Sink (the CLI renders events as styled output);
// embedders that want nothing can use NoopSink, and LogSink forwards events
// to a structured logger. Fanout combines several sinks.
package events

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/dotnetup/dotnetup/pkg/install"
)

// Kind tags what happened.
type Kind string

// Lifecycle event kinds.
const (
	KindResolutionFailed       Kind = "resolution-failed"
	KindAcquisitionStarted     Kind = "acquisition-started"
	KindAlreadyInstalled       Kind = "already-installed"
	KindPartialInstallDetected Kind = "partial-install-detected"
	KindGlobalConflict         Kind = "global-conflict"
	KindAcquisitionCompleted   Kind = "acquisition-completed"
	KindAcquisitionFailed      Kind = "acquisition-failed"
	KindUninstallStarted       Kind = "uninstall-started"
	KindUninstallCompleted     Kind = "uninstall-completed"
	KindUninstallFailed        Kind = "uninstall-failed"
)

// Event is one lifecycle notification. Install is the zero Identity for
// events not scoped to a single install (resolution failures know only the
// requested specifier).
type Event struct {
	Kind          Kind
	Message       string
	Install       install.Identity
	Specifier     string
	Version       string
	CorrelationID string
	Err           error
	Time          time.Time
}

// Sink consumes lifecycle events. Post must not block and must not panic;
// the caller neither waits on nor observes the outcome.
type Sink interface {
	Post(event Event)
}

// NoopSink discards all events.
type NoopSink struct{}

func (NoopSink) Post(Event) {}

// LogSink forwards events to a structured logger.
type LogSink struct {
	Logger *log.Logger
}

// NewLogSink creates a sink over logger, defaulting to the default logger.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{Logger: logger}
}

func (s *LogSink) Post(event Event) {
	fields := []any{"kind", string(event.Kind)}
	if event.Specifier != "" {
		fields = append(fields, "specifier", event.Specifier)
	}
	if event.Version != "" {
		fields = append(fields, "version", event.Version)
	}
	if (event.Install != install.Identity{}) {
		fields = append(fields, "install", event.Install.String())
	}
	if event.CorrelationID != "" {
		fields = append(fields, "correlation", event.CorrelationID)
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err)
		s.Logger.Error(event.Message, fields...)
		return
	}
	s.Logger.Info(event.Message, fields...)
}

// FanoutSink posts each event to every member sink in order.
type FanoutSink struct {
	sinks []Sink
}

// Fanout combines sinks into one. Nil members are skipped.
func Fanout(sinks ...Sink) *FanoutSink {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &FanoutSink{sinks: kept}
}

func (f *FanoutSink) Post(event Event) {
	for _, s := range f.sinks {
		s.Post(event)
	}
}
