package playback

import "errors"

var (
	// ErrStoryNotActive is returned when the requested story is not in the
	// viewer's scoped story list
	ErrStoryNotActive = errors.New("story is not in the active list")

	// ErrNoStories is returned when a viewer is opened over an empty story list
	ErrNoStories = errors.New("no stories available for this scope")

	// ErrManagerStopped is returned when the viewer manager has been shut down
	ErrManagerStopped = errors.New("playback manager has been stopped")

	// ErrViewerClosed is returned when a command is issued against a closed viewer
	ErrViewerClosed = errors.New("viewer session is closed")
)
