package cli

import (
	"fmt"

	"github.com/dotnetup/dotnetup/pkg/events"
)

// uiSink renders the lifecycle events that deserve the user's attention as
// styled terminal lines. Routine progress stays on the logger, and failures
// reach the user through the failing command's returned error, so only a
// few kinds print here.
type uiSink struct{}

var _ events.Sink = uiSink{}

func (uiSink) Post(event events.Event) {
	line, ok := renderEvent(event)
	if !ok {
		return
	}
	fmt.Println(line)
}

// renderEvent formats the user-facing line for event, if it warrants one.
//
// Three kinds do: an install served from an existing copy, a partial
// install being cleaned up, and a global conflict. Each one changes what
// the tool is about to do, and the user should see why.
func renderEvent(event events.Event) (string, bool) {
	switch event.Kind {
	case events.KindAlreadyInstalled:
		return styleIconInfo.Render(iconInfo) + " " + event.Message, true
	case events.KindPartialInstallDetected:
		return styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(event.Message), true
	case events.KindGlobalConflict:
		return styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(event.Message), true
	}
	return "", false
}
