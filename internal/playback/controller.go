// Package playback implements the story playback engine: an auto-advancing,
// pausable, navigable slideshow over a scoped list of stories. Each open
// viewer session is driven by a one-shot advance timer and a fixed-cadence
// progress sampler; all session state lives behind a single lock owned by
// the controller.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samvera/stories/internal/logger"
	"github.com/samvera/stories/internal/media"
	"github.com/samvera/stories/internal/models"
)

const itemFetchTimeout = 5 * time.Second

// ItemSource provides the ordered items of a story. Implemented by the
// stories service; faked in tests.
type ItemSource interface {
	StoryItems(ctx context.Context, orgID, storyID uuid.UUID) ([]*models.StoryItem, error)
}

// Options configures one viewer session's timing behavior
type Options struct {
	// DefaultItemDuration is used for items that carry no duration
	DefaultItemDuration time.Duration
	// MinItemDuration floors every item duration
	MinItemDuration time.Duration
	// SampleInterval is the progress sampling cadence
	SampleInterval time.Duration
}

// Controller owns the playback session state for one open viewer and is the
// only writer of that state. Timer fires and commands are serialized by the
// controller lock; an epoch counter discards timer fires armed before the
// most recent transition.
type Controller struct {
	id       uuid.UUID
	orgID    uuid.UUID
	stories  []*models.Story
	source   ItemSource
	prefetch media.Prefetcher
	opts     Options

	mu          sync.Mutex
	state       State
	storyIndex  int
	items       []*models.StoryItem
	itemIndex   int
	timing      TimingSnapshot
	progress    float64
	epoch       uint64
	timer       *time.Timer
	samplerStop chan struct{}
	lastAccess  time.Time
	subscribers map[chan Snapshot]struct{}
}

// NewController creates a closed viewer session over an ordered story list
func NewController(orgID uuid.UUID, storyList []*models.Story, source ItemSource, prefetch media.Prefetcher, opts Options) *Controller {
	if prefetch == nil {
		prefetch = media.NopPrefetcher{}
	}
	return &Controller{
		id:          uuid.New(),
		orgID:       orgID,
		stories:     storyList,
		source:      source,
		prefetch:    prefetch,
		opts:        opts,
		state:       StateClosed,
		lastAccess:  time.Now().UTC(),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// ID returns the viewer session identifier
func (c *Controller) ID() uuid.UUID {
	return c.id
}

// Open starts playback at the story at storyIndex in the session's list.
// The items fetch happens in the background; the session is interactive (a
// loading placeholder) until it resolves.
func (c *Controller) Open(storyIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if storyIndex < 0 || storyIndex >= len(c.stories) {
		return ErrStoryNotActive
	}

	c.touchLocked()
	c.loadStoryLocked(storyIndex)
	return nil
}

// Apply executes a playback command against the session
func (c *Controller) Apply(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return ErrViewerClosed
	}
	c.touchLocked()

	// Commands during Loading are dropped: there is nothing to navigate yet
	if c.state == StateLoading {
		return nil
	}

	switch cmd {
	case CommandNextItem:
		c.advanceLocked()
	case CommandPreviousItem:
		c.previousLocked()
	case CommandTogglePause:
		c.togglePauseLocked()
	}
	return nil
}

// Tap classifies a pointer position inside the content area and applies the
// mapped command
func (c *Controller) Tap(x, width float64) error {
	return c.Apply(MapZone(x, width))
}

// Close tears the session down: cancels the pending timer and the sampler,
// discards items and timing, and releases subscribers. Safe to call from any
// state and idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// Snapshot returns the composed render-ready view of the session
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()
	return c.snapshotLocked()
}

// Subscribe registers a listener that receives a snapshot on every progress
// sample and transition. The returned cancel function is idempotent; slow
// listeners miss snapshots rather than block playback.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Snapshot, 16)
	if c.state == StateClosed {
		close(ch)
		return ch, func() {}
	}
	c.subscribers[ch] = struct{}{}

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// IdleFor returns how long the session has gone without interaction
func (c *Controller) IdleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastAccess)
}

// Done reports whether the session is closed
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateClosed
}

// loadStoryLocked resets session state and begins the background items fetch
// for the story at index. Caller holds the lock.
func (c *Controller) loadStoryLocked(index int) {
	c.epoch++
	c.cancelTimerLocked()
	c.stopSamplerLocked()

	c.storyIndex = index
	c.items = nil
	c.itemIndex = 0
	c.timing = TimingSnapshot{}
	c.progress = 0
	c.state = StateLoading

	story := c.stories[index]
	fetchEpoch := c.epoch

	logger.Log.Debug().
		Str("viewer_id", c.id.String()).
		Str("story_id", story.ID.String()).
		Int("story_index", index).
		Msg("Loading story items")

	go c.fetchItems(fetchEpoch, story)
	c.broadcastLocked()
}

// fetchItems resolves a story's items and applies them if the session still
// wants them. Runs outside the lock.
func (c *Controller) fetchItems(fetchEpoch uint64, story *models.Story) {
	ctx, cancel := context.WithTimeout(context.Background(), itemFetchTimeout)
	defer cancel()

	items, err := c.source.StoryItems(ctx, c.orgID, story.ID)

	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer open/navigation or a close supersedes this fetch; a late
	// response must never overwrite the current session state
	if c.epoch != fetchEpoch || c.state != StateLoading {
		logger.Log.Debug().
			Str("viewer_id", c.id.String()).
			Str("story_id", story.ID.String()).
			Msg("Discarding stale story items fetch")
		return
	}

	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("viewer_id", c.id.String()).
			Str("story_id", story.ID.String()).
			Msg("Failed to fetch story items, closing viewer")
		c.closeLocked()
		return
	}

	c.items = items

	if len(items) == 0 {
		// Degenerate playback: show the story title as a static placeholder,
		// no timer armed
		c.state = StatePlaying
		c.timing = TimingSnapshot{}
		c.progress = 0
		c.broadcastLocked()
		return
	}

	c.warmImagesLocked(items)
	c.startItemLocked(0, time.Now().UTC())
}

// warmImagesLocked kicks off background prefetch of every image item so
// forward navigation has no decode latency
func (c *Controller) warmImagesLocked(items []*models.StoryItem) {
	var urls []string
	for _, item := range items {
		if media.Classify(item) == media.KindImage && item.URL != nil {
			urls = append(urls, *item.URL)
		}
	}
	if len(urls) == 0 {
		return
	}
	go c.prefetch.Warm(context.Background(), urls)
}

// startItemLocked makes items[index] the active item: fresh timing snapshot,
// progress reset to 0, advance timer armed for the full effective duration.
// Caller holds the lock.
func (c *Controller) startItemLocked(index int, now time.Time) {
	c.epoch++
	c.cancelTimerLocked()

	c.itemIndex = index
	c.timing = StartedAt(now)
	c.progress = 0
	c.state = StatePlaying

	c.armTimerLocked(c.effectiveDurationLocked(index))
	c.ensureSamplerLocked()
	c.broadcastLocked()
}

// advanceLocked moves to the next item, the next story, or closes the viewer
// at the end of the last story. Caller holds the lock.
func (c *Controller) advanceLocked() {
	if c.itemIndex+1 < len(c.items) {
		c.startItemLocked(c.itemIndex+1, time.Now().UTC())
		return
	}
	if c.storyIndex+1 < len(c.stories) {
		c.loadStoryLocked(c.storyIndex + 1)
		return
	}
	c.closeLocked()
}

// previousLocked steps back one item, or to the previous story at the first
// item. At the first item of the first story it is a no-op. Caller holds the
// lock.
func (c *Controller) previousLocked() {
	if c.itemIndex > 0 {
		c.startItemLocked(c.itemIndex-1, time.Now().UTC())
		return
	}
	if c.storyIndex > 0 {
		c.loadStoryLocked(c.storyIndex - 1)
	}
}

// togglePauseLocked flips between Playing and Paused, conserving elapsed
// display time. Caller holds the lock.
func (c *Controller) togglePauseLocked() {
	if len(c.items) == 0 {
		return
	}
	now := time.Now().UTC()

	switch c.state {
	case StatePlaying:
		c.epoch++
		c.cancelTimerLocked()
		c.stopSamplerLocked()
		c.timing = c.timing.Pause(now)
		c.progress = Fraction(c.timing.Elapsed(now), c.effectiveDurationLocked(c.itemIndex))
		c.state = StatePaused
		c.broadcastLocked()

	case StatePaused:
		c.epoch++
		c.timing = c.timing.Resume(now)
		c.state = StatePlaying

		remaining := c.timing.Remaining(now, c.effectiveDurationLocked(c.itemIndex))
		if remaining == 0 {
			c.advanceLocked()
			return
		}
		c.armTimerLocked(remaining)
		c.ensureSamplerLocked()
		c.broadcastLocked()
	}
}

// closeLocked discards all session state and guarantees zero pending timers
// and tickers. Caller holds the lock.
func (c *Controller) closeLocked() {
	if c.state == StateClosed {
		return
	}

	c.epoch++
	c.cancelTimerLocked()
	c.stopSamplerLocked()

	c.state = StateClosed
	c.items = nil
	c.itemIndex = 0
	c.timing = TimingSnapshot{}
	c.progress = 0

	c.broadcastLocked()
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}

	logger.Log.Debug().
		Str("viewer_id", c.id.String()).
		Msg("Viewer session closed")
}

// armTimerLocked arms the one-shot advance timer. The fire handler checks
// the epoch it was armed under so a fire racing past Stop cannot act on a
// session that has since transitioned. Caller holds the lock.
func (c *Controller) armTimerLocked(d time.Duration) {
	armedEpoch := c.epoch
	c.timer = time.AfterFunc(d, func() {
		c.onTimerFire(armedEpoch)
	})
}

// cancelTimerLocked stops any pending advance timer. Caller holds the lock.
func (c *Controller) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// onTimerFire advances playback when the arming epoch is still current
func (c *Controller) onTimerFire(armedEpoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != armedEpoch || c.state != StatePlaying {
		return
	}
	c.advanceLocked()
}

// ensureSamplerLocked starts the progress sampler if it is not running.
// Caller holds the lock.
func (c *Controller) ensureSamplerLocked() {
	if c.samplerStop != nil {
		return
	}
	stop := make(chan struct{})
	c.samplerStop = stop
	go c.runSampler(stop)
}

// stopSamplerLocked stops the progress sampler if running. Caller holds the
// lock.
func (c *Controller) stopSamplerLocked() {
	if c.samplerStop != nil {
		close(c.samplerStop)
		c.samplerStop = nil
	}
}

// runSampler recomputes progress at the configured cadence until stopped
func (c *Controller) runSampler(stop chan struct{}) {
	ticker := time.NewTicker(c.opts.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.sampleTick()
		}
	}
}

// sampleTick refreshes the active item's progress fraction and notifies
// subscribers
func (c *Controller) sampleTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePlaying || len(c.items) == 0 {
		return
	}
	now := time.Now().UTC()
	c.progress = Fraction(c.timing.Elapsed(now), c.effectiveDurationLocked(c.itemIndex))
	c.broadcastLocked()
}

// effectiveDurationLocked resolves the display duration for items[index].
// Caller holds the lock.
func (c *Controller) effectiveDurationLocked(index int) time.Duration {
	var item *models.StoryItem
	if index >= 0 && index < len(c.items) {
		item = c.items[index]
	}
	return EffectiveDuration(item, c.opts.DefaultItemDuration, c.opts.MinItemDuration)
}

// snapshotLocked composes the render-ready view. Caller holds the lock.
func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		ViewerID:   c.id,
		State:      c.state,
		StoryIndex: c.storyIndex,
		StoryCount: len(c.stories),
		ItemIndex:  c.itemIndex,
		ItemCount:  len(c.items),
		Bars:       Bars(len(c.items), c.itemIndex, c.progress),
		Paused:     c.state == StatePaused,
	}

	if c.storyIndex >= 0 && c.storyIndex < len(c.stories) {
		story := c.stories[c.storyIndex]
		snap.StoryID = story.ID
		snap.StoryTitle = story.DisplayTitle()
		if story.Caption != nil {
			snap.StoryCaption = *story.Caption
		}
	}

	if c.state != StateClosed && c.itemIndex < len(c.items) {
		item := c.items[c.itemIndex]
		view := &ItemView{
			ID:         item.ID,
			Kind:       media.Classify(item),
			Caption:    item.DisplayCaption(),
			DurationMS: c.effectiveDurationLocked(c.itemIndex).Milliseconds(),
		}
		if item.URL != nil {
			view.URL = *item.URL
		}
		snap.ActiveItem = view
	}

	return snap
}

// broadcastLocked pushes the current snapshot to every subscriber without
// blocking. Caller holds the lock.
func (c *Controller) broadcastLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// touchLocked records an interaction for idle cleanup. Caller holds the lock.
func (c *Controller) touchLocked() {
	c.lastAccess = time.Now().UTC()
}
