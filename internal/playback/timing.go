package playback

import (
	"time"

	"github.com/samvera/stories/internal/models"
)

// TimingSnapshot captures the pause/progress bookkeeping for the displayed
// item as one immutable value. Every transition (start, pause, resume,
// navigation, close) replaces the whole snapshot under the controller lock,
// so the item-start and paused-at instants can never drift apart.
type TimingSnapshot struct {
	// ItemStart is when the active item began displaying, rebased on resume
	// so elapsed time stays continuous across pauses
	ItemStart time.Time
	// PausedAt is when playback was paused; zero while running
	PausedAt time.Time
}

// StartedAt returns a snapshot for an item that begins displaying now
func StartedAt(now time.Time) TimingSnapshot {
	return TimingSnapshot{ItemStart: now}
}

// Paused reports whether the snapshot represents paused playback
func (t TimingSnapshot) Paused() bool {
	return !t.PausedAt.IsZero()
}

// Elapsed returns how long the active item has been displayed, frozen at the
// pause instant while paused
func (t TimingSnapshot) Elapsed(now time.Time) time.Duration {
	if t.ItemStart.IsZero() {
		return 0
	}
	if t.Paused() {
		return t.PausedAt.Sub(t.ItemStart)
	}
	return now.Sub(t.ItemStart)
}

// Remaining returns the display time left for an item of the given duration,
// floored at zero
func (t TimingSnapshot) Remaining(now time.Time, duration time.Duration) time.Duration {
	remaining := duration - t.Elapsed(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Pause freezes the snapshot at now. Pausing an already-paused snapshot is a
// no-op.
func (t TimingSnapshot) Pause(now time.Time) TimingSnapshot {
	if t.Paused() {
		return t
	}
	return TimingSnapshot{ItemStart: t.ItemStart, PausedAt: now}
}

// Resume rebases the item start so that elapsed time is conserved:
// ItemStart becomes now − elapsed, and the pause instant is cleared.
func (t TimingSnapshot) Resume(now time.Time) TimingSnapshot {
	if !t.Paused() {
		return t
	}
	return TimingSnapshot{ItemStart: now.Add(-t.PausedAt.Sub(t.ItemStart))}
}

// EffectiveDuration resolves the display time for a story item: the item's
// own duration when present, otherwise def, never below the floor. The floor
// keeps zero or negative durations from causing instant-skip loops.
func EffectiveDuration(item *models.StoryItem, def, floor time.Duration) time.Duration {
	d := def
	if item != nil && item.DurationMS != nil {
		d = time.Duration(*item.DurationMS) * time.Millisecond
	}
	if d < floor {
		return floor
	}
	return d
}
