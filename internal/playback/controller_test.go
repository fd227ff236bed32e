package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samvera/stories/internal/media"
	"github.com/samvera/stories/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeItemSource serves canned items per story, optionally after a delay or
// with a forced error
type fakeItemSource struct {
	mu    sync.Mutex
	items map[uuid.UUID][]*models.StoryItem
	delay time.Duration
	err   error
}

func newFakeItemSource() *fakeItemSource {
	return &fakeItemSource{items: make(map[uuid.UUID][]*models.StoryItem)}
}

func (f *fakeItemSource) StoryItems(ctx context.Context, orgID, storyID uuid.UUID) ([]*models.StoryItem, error) {
	f.mu.Lock()
	delay := f.delay
	err := f.err
	items := f.items[storyID]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

// buildStory registers a story with one item per duration in the source
func buildStory(source *fakeItemSource, orgID uuid.UUID, title string, itemDurationsMS ...int64) *models.Story {
	story := models.NewStory(orgID, uuid.New(), models.AudienceGuardian, time.Now().UTC().Add(time.Hour))
	story.Title = &title

	items := make([]*models.StoryItem, 0, len(itemDurationsMS))
	for i, ms := range itemDurationsMS {
		item := models.NewStoryItem(story.ID, i)
		d := ms
		item.DurationMS = &d
		items = append(items, item)
	}
	source.items[story.ID] = items
	return story
}

func testOptions() Options {
	return Options{
		DefaultItemDuration: 500 * time.Millisecond,
		MinItemDuration:     10 * time.Millisecond,
		SampleInterval:      5 * time.Millisecond,
	}
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().State == want
	}, 2*time.Second, 5*time.Millisecond, "viewer never reached state %q", want)
}

func waitForItem(t *testing.T, c *Controller, storyIndex, itemIndex int) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.State == StatePlaying &&
			snap.StoryIndex == storyIndex &&
			snap.ItemIndex == itemIndex
	}, 2*time.Second, 5*time.Millisecond, "viewer never reached story %d item %d", storyIndex, itemIndex)
}

func TestController_Open_InvalidIndex(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Field Trip", 500)

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())
	defer c.Close()

	assert.ErrorIs(t, c.Open(-1), ErrStoryNotActive)
	assert.ErrorIs(t, c.Open(1), ErrStoryNotActive)
}

func TestController_Open_StartsPlayback(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Field Trip", 500, 500)

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())
	defer c.Close()

	require.NoError(t, c.Open(0))
	waitForState(t, c, StatePlaying)

	snap := c.Snapshot()
	assert.Equal(t, 0, snap.ItemIndex)
	assert.Equal(t, 2, snap.ItemCount)
	assert.Equal(t, story.ID, snap.StoryID)
	assert.Equal(t, "Field Trip", snap.StoryTitle)
	assert.False(t, snap.Paused)
	assert.Len(t, snap.Bars, 2)
	require.NotNil(t, snap.ActiveItem)
	assert.Equal(t, media.KindText, snap.ActiveItem.Kind)
	assert.Equal(t, int64(500), snap.ActiveItem.DurationMS)
}

func TestController_AutoAdvance_RunsToEnd(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	// Durations below the floor run at MinItemDuration, so the whole
	// two-story session plays out in tens of milliseconds
	first := buildStory(source, orgID, "Morning", 1, 1)
	second := buildStory(source, orgID, "Afternoon", 1)

	c := NewController(orgID, []*models.Story{first, second}, source, nil, testOptions())

	require.NoError(t, c.Open(0))
	require.Eventually(t, c.Done, 2*time.Second, 5*time.Millisecond,
		"viewer never finished the story list")
	assert.Equal(t, StateClosed, c.Snapshot().State)
}

func TestController_NextCrossesStoryBoundary(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	first := buildStory(source, orgID, "Morning", 500)
	second := buildStory(source, orgID, "Afternoon", 500, 500)

	c := NewController(orgID, []*models.Story{first, second}, source, nil, testOptions())
	defer c.Close()

	require.NoError(t, c.Open(0))
	waitForItem(t, c, 0, 0)

	require.NoError(t, c.Apply(CommandNextItem))
	waitForItem(t, c, 1, 0)

	snap := c.Snapshot()
	assert.Equal(t, second.ID, snap.StoryID)
	assert.Equal(t, 2, snap.ItemCount)
}

func TestController_NextAtEndCloses(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Only", 500)

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())

	require.NoError(t, c.Open(0))
	waitForState(t, c, StatePlaying)

	require.NoError(t, c.Apply(CommandNextItem))
	assert.True(t, c.Done())
}

func TestController_PreviousStepsBack(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Only", 500, 500)

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())
	defer c.Close()

	require.NoError(t, c.Open(0))
	waitForItem(t, c, 0, 0)

	require.NoError(t, c.Apply(CommandNextItem))
	waitForItem(t, c, 0, 1)

	require.NoError(t, c.Apply(CommandPreviousItem))
	waitForItem(t, c, 0, 0)
}

func TestController_PreviousAtStartIsNoOp(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Only", 500, 500)

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())
	defer c.Close()

	require.NoError(t, c.Open(0))
	waitForItem(t, c, 0, 0)

	require.NoError(t, c.Apply(CommandPreviousItem))

	snap := c.Snapshot()
	assert.Equal(t, StatePlaying, snap.State)
	assert.Equal(t, 0, snap.StoryIndex)
	assert.Equal(t, 0, snap.ItemIndex)
}

func TestController_PauseHaltsAdvancement(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Only", 300)

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())

	require.NoError(t, c.Open(0))
	waitForState(t, c, StatePlaying)

	require.NoError(t, c.Apply(CommandTogglePause))
	paused := c.Snapshot()
	assert.Equal(t, StatePaused, paused.State)
	assert.True(t, paused.Paused)

	// Well past the item's 300ms duration; a paused item must never advance
	time.Sleep(500 * time.Millisecond)
	after := c.Snapshot()
	assert.Equal(t, StatePaused, after.State)
	assert.Equal(t, 0, after.ItemIndex)
	assert.Equal(t, paused.Bars, after.Bars, "progress must freeze while paused")

	// Resume plays out the remaining time, then the single story ends
	require.NoError(t, c.Apply(CommandTogglePause))
	require.Eventually(t, c.Done, 2*time.Second, 5*time.Millisecond,
		"viewer never finished after resume")
}

func TestController_EmptyStoryDegeneratePlayback(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := models.NewStory(orgID, uuid.New(), models.AudienceGuardian, time.Now().UTC().Add(time.Hour))
	title := "Nothing Yet"
	story.Title = &title
	source.items[story.ID] = nil

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())

	require.NoError(t, c.Open(0))
	waitForState(t, c, StatePlaying)

	snap := c.Snapshot()
	assert.Equal(t, 0, snap.ItemCount)
	assert.Nil(t, snap.ActiveItem)
	assert.Nil(t, snap.Bars)

	// Pause has nothing to freeze
	require.NoError(t, c.Apply(CommandTogglePause))
	assert.Equal(t, StatePlaying, c.Snapshot().State)

	// Next still navigates; last story means close
	require.NoError(t, c.Apply(CommandNextItem))
	assert.True(t, c.Done())
}

func TestController_StaleFetchDiscardedAfterClose(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Slow", 500)
	source.delay = 50 * time.Millisecond

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())

	require.NoError(t, c.Open(0))
	c.Close()

	// The in-flight fetch resolves after close and must be dropped
	time.Sleep(150 * time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, 0, snap.ItemCount)
}

func TestController_FetchErrorClosesViewer(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Broken", 500)
	source.err = errors.New("boom")

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())

	require.NoError(t, c.Open(0))
	require.Eventually(t, c.Done, 2*time.Second, 5*time.Millisecond,
		"viewer should close when the items fetch fails")
}

func TestController_ApplyOnClosedViewer(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Only", 500)

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())
	assert.ErrorIs(t, c.Apply(CommandNextItem), ErrViewerClosed)

	c.Close()
	c.Close() // idempotent
	assert.ErrorIs(t, c.Apply(CommandTogglePause), ErrViewerClosed)
}

func TestController_CommandsDuringLoadingDropped(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Slow", 500, 500)
	source.delay = 50 * time.Millisecond

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())
	defer c.Close()

	require.NoError(t, c.Open(0))
	assert.Equal(t, StateLoading, c.Snapshot().State)

	// Dropped, not queued: playback still begins at the first item
	require.NoError(t, c.Apply(CommandNextItem))
	waitForItem(t, c, 0, 0)
}

func TestController_Subscribe(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Only", 500)

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())
	defer c.Close()

	ch, cancel := c.Subscribe()
	require.NoError(t, c.Open(0))

	select {
	case snap := <-ch:
		assert.Equal(t, c.ID(), snap.ViewerID)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received after open")
	}

	cancel()
	cancel() // idempotent
}

func TestController_SubscribeAfterClose(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Only", 500)

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())
	c.Close()

	ch, cancel := c.Subscribe()
	defer cancel()

	_, open := <-ch
	assert.False(t, open, "subscription on a closed viewer must be closed")
}

func TestController_SubscribersReleasedOnClose(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Only", 500)

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())

	ch, cancel := c.Subscribe()
	defer cancel()

	require.NoError(t, c.Open(0))
	waitForState(t, c, StatePlaying)
	c.Close()

	require.Eventually(t, func() bool {
		for {
			select {
			case _, open := <-ch:
				if !open {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 5*time.Millisecond, "subscriber channel never closed")
}

func TestController_TapMapsZones(t *testing.T) {
	orgID := uuid.New()
	source := newFakeItemSource()
	story := buildStory(source, orgID, "Only", 500, 500)

	c := NewController(orgID, []*models.Story{story}, source, nil, testOptions())
	defer c.Close()

	require.NoError(t, c.Open(0))
	waitForItem(t, c, 0, 0)

	// Right third advances
	require.NoError(t, c.Tap(250, 300))
	waitForItem(t, c, 0, 1)

	// Left third steps back
	require.NoError(t, c.Tap(10, 300))
	waitForItem(t, c, 0, 0)

	// Center toggles pause
	require.NoError(t, c.Tap(150, 300))
	assert.Equal(t, StatePaused, c.Snapshot().State)
}
