package playback

import "fmt"

// Command is a playback action requested by the viewer
type Command string

// Command constants
const (
	// CommandPreviousItem steps back one item, or to the previous story at
	// the first item
	CommandPreviousItem Command = "previous"
	// CommandTogglePause pauses or resumes the active item
	CommandTogglePause Command = "toggle_pause"
	// CommandNextItem advances one item, continuing into the next story past
	// the last item
	CommandNextItem Command = "next"
)

// ParseCommand converts a wire string into a Command
func ParseCommand(s string) (Command, error) {
	switch Command(s) {
	case CommandPreviousItem, CommandTogglePause, CommandNextItem:
		return Command(s), nil
	default:
		return "", fmt.Errorf("unknown playback command %q", s)
	}
}

// MapZone classifies a tap inside the viewer content area by horizontal
// thirds of the container's own width: left third goes back, right third
// advances, the center (including the exact third boundaries) toggles pause.
// x is already relative to the container's left edge.
func MapZone(x, width float64) Command {
	if width <= 0 {
		return CommandTogglePause
	}
	switch {
	case x < width/3:
		return CommandPreviousItem
	case x > 2*width/3:
		return CommandNextItem
	default:
		return CommandTogglePause
	}
}
