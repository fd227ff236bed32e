package playback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samvera/stories/internal/config"
	"github.com/samvera/stories/internal/db"
	"github.com/samvera/stories/internal/logger"
	"github.com/samvera/stories/internal/media"
	"github.com/samvera/stories/internal/models"
)

// StorySource is the stories collaborator the manager opens viewers against
type StorySource interface {
	ItemSource
	ListStories(ctx context.Context, filter db.StoryFilter) ([]*models.Story, error)
	DefaultItemDuration(ctx context.Context, orgID uuid.UUID, fallback time.Duration) time.Duration
}

// Manager is the registry of open viewer sessions. It opens viewers over a
// scoped story list, routes lookups, and sweeps idle or finished sessions in
// the background.
type Manager struct {
	source   StorySource
	prefetch media.Prefetcher
	cfg      *config.PlaybackConfig

	mu      sync.RWMutex
	viewers map[uuid.UUID]*Controller
	stopped bool

	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	cleanupDone   chan struct{}
}

// NewManager creates a new viewer manager
func NewManager(source StorySource, prefetch media.Prefetcher, cfg *config.PlaybackConfig) *Manager {
	return &Manager{
		source:      source,
		prefetch:    prefetch,
		cfg:         cfg,
		viewers:     make(map[uuid.UUID]*Controller),
		stopChan:    make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Start launches the background cleanup loop
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}

	m.cleanupTicker = time.NewTicker(m.cfg.ViewerCleanupInterval)
	go m.runCleanupLoop()

	logger.Log.Info().
		Dur("cleanup_interval", m.cfg.ViewerCleanupInterval).
		Dur("grace_period", m.cfg.ViewerGracePeriod).
		Msg("Playback manager started")

	return nil
}

// Stop closes every open viewer and halts the cleanup loop
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	close(m.stopChan)
	if m.cleanupTicker != nil {
		<-m.cleanupDone
		m.cleanupTicker.Stop()
	}

	m.mu.Lock()
	closed := 0
	for id, viewer := range m.viewers {
		viewer.Close()
		delete(m.viewers, id)
		closed++
	}
	m.mu.Unlock()

	logger.Log.Info().
		Int("closed_viewers", closed).
		Msg("Playback manager stopped")
}

// OpenViewer creates a viewer session over the stories visible to the
// filter's scope and starts playback at the story with the given id. The
// caller-supplied ordering of the scoped list defines story-to-story
// continuation.
func (m *Manager) OpenViewer(ctx context.Context, filter db.StoryFilter, storyID uuid.UUID) (*Controller, error) {
	m.mu.RLock()
	if m.stopped {
		m.mu.RUnlock()
		return nil, ErrManagerStopped
	}
	m.mu.RUnlock()

	storyList, err := m.source.ListStories(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(storyList) == 0 {
		return nil, ErrNoStories
	}

	startIndex := -1
	for i, story := range storyList {
		if story.ID == storyID {
			startIndex = i
			break
		}
	}
	if startIndex < 0 {
		return nil, ErrStoryNotActive
	}

	opts := Options{
		DefaultItemDuration: m.source.DefaultItemDuration(ctx, filter.OrgID, m.cfg.DefaultItemDuration),
		MinItemDuration:     m.cfg.MinItemDuration,
		SampleInterval:      m.cfg.SampleInterval,
	}

	viewer := NewController(filter.OrgID, storyList, m.source, m.prefetch, opts)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, ErrManagerStopped
	}
	m.viewers[viewer.ID()] = viewer
	m.mu.Unlock()

	if err := viewer.Open(startIndex); err != nil {
		m.removeViewer(viewer.ID())
		return nil, err
	}

	logger.Log.Info().
		Str("viewer_id", viewer.ID().String()).
		Str("org_id", filter.OrgID.String()).
		Str("story_id", storyID.String()).
		Int("stories", len(storyList)).
		Msg("Viewer opened")

	return viewer, nil
}

// GetViewer retrieves an open viewer session by id
func (m *Manager) GetViewer(id uuid.UUID) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	viewer, ok := m.viewers[id]
	return viewer, ok
}

// ViewerCount reports how many viewer sessions are currently registered
func (m *Manager) ViewerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.viewers)
}

// CloseViewer closes a viewer session and removes it from the registry.
// Closing an unknown viewer is not an error: every close path must be safe
// to repeat.
func (m *Manager) CloseViewer(id uuid.UUID) {
	m.mu.Lock()
	viewer, ok := m.viewers[id]
	if ok {
		delete(m.viewers, id)
	}
	m.mu.Unlock()

	if ok {
		viewer.Close()
		logger.Log.Debug().
			Str("viewer_id", id.String()).
			Msg("Viewer removed")
	}
}

// removeViewer drops a viewer from the registry without logging
func (m *Manager) removeViewer(id uuid.UUID) {
	m.mu.Lock()
	delete(m.viewers, id)
	m.mu.Unlock()
}

// runCleanupLoop periodically sweeps finished and idle viewers
func (m *Manager) runCleanupLoop() {
	defer close(m.cleanupDone)

	for {
		select {
		case <-m.stopChan:
			return
		case <-m.cleanupTicker.C:
			m.performCleanup()
		}
	}
}

// performCleanup closes viewers that finished naturally or have gone
// untouched past the grace period
func (m *Manager) performCleanup() {
	m.mu.RLock()
	candidates := make([]*Controller, 0, len(m.viewers))
	for _, viewer := range m.viewers {
		candidates = append(candidates, viewer)
	}
	m.mu.RUnlock()

	swept := 0
	for _, viewer := range candidates {
		if viewer.Done() || viewer.IdleFor() > m.cfg.ViewerGracePeriod {
			viewer.Close()
			m.removeViewer(viewer.ID())
			swept++
		}
	}

	if swept > 0 {
		logger.Log.Info().
			Int("swept", swept).
			Msg("Viewer cleanup cycle completed")
	}
}
