// Package cli implements the dotnetup command-line interface.
//
// This package provides commands for installing .NET SDKs and runtimes,
// removing them again, and inspecting what the install ledger knows. The
// CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - acquire: Resolve a version specifier and install the matching build
//   - uninstall: Release ownership of an install, removing it when unused
//   - uninstall-all: Remove every local install and retry stuck removals
//   - status: Show tracked installs, interrupted installs, and stuck removals
//   - channels: List the supported .NET release channels
//   - cache: Manage the release metadata cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Acquisition
// lifecycle events additionally appear as structured log lines, so a verbose
// run shows each resolution, recovery, and conflict decision as it happens.
//
// # Example
//
//	import "github.com/dotnetup/dotnetup/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with
// elapsed duration. Installs can take minutes, so the elapsed time is part
// of the story.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as
// start. The returned progress should call done when the operation completes.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// The duration is rounded to the nearest millisecond.
// Example output: "Installed sdk 8.0.301 (1m12.345s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}
