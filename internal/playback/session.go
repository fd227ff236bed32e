package playback

import (
	"github.com/google/uuid"
	"github.com/samvera/stories/internal/media"
)

// State represents the lifecycle of a viewer session
type State string

// State constants
const (
	// StateClosed means the session holds no items and no pending timers
	StateClosed State = "closed"
	// StateLoading means a story's items are being fetched
	StateLoading State = "loading"
	// StatePlaying means the active item is displaying with a running timer,
	// or as a static placeholder when the story has no items
	StatePlaying State = "playing"
	// StatePaused means the active item is frozen with no pending timer
	StatePaused State = "paused"
)

// IsValid checks if the state is a known valid value
func (s State) IsValid() bool {
	switch s {
	case StateClosed, StateLoading, StatePlaying, StatePaused:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a transition from the current state is valid
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateClosed:
		return next == StateLoading
	case StateLoading:
		return next == StatePlaying || next == StateClosed
	case StatePlaying:
		return next == StatePlaying || next == StatePaused || next == StateLoading || next == StateClosed
	case StatePaused:
		return next == StatePlaying || next == StateLoading || next == StateClosed
	default:
		return false
	}
}

// ItemView describes the active item as the viewer shell renders it
type ItemView struct {
	ID         uuid.UUID  `json:"id"`
	Kind       media.Kind `json:"kind"`
	URL        string     `json:"url,omitempty"`
	Caption    string     `json:"caption,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

// Snapshot is the composed, render-ready view of one viewer session at an
// instant: which story and item are active, the paused flag, and the
// progress bar row (past items solid, active item live, future items empty).
type Snapshot struct {
	ViewerID     uuid.UUID `json:"viewer_id"`
	State        State     `json:"state"`
	StoryIndex   int       `json:"story_index"`
	StoryCount   int       `json:"story_count"`
	StoryID      uuid.UUID `json:"story_id"`
	StoryTitle   string    `json:"story_title,omitempty"`
	StoryCaption string    `json:"story_caption,omitempty"`
	ItemIndex    int       `json:"item_index"`
	ItemCount    int       `json:"item_count"`
	Bars         []float64 `json:"bars"`
	Paused       bool      `json:"paused"`
	ActiveItem   *ItemView `json:"active_item,omitempty"`
}
