// Package stories provides the story listing and item lookup the playback
// engine consumes, plus the expiry sweeper that destroys stories past their
// lifetime. Scoping rules (organization, audience, class) live here; the
// playback engine trusts whatever list it is handed.
package stories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samvera/stories/internal/db"
	"github.com/samvera/stories/internal/logger"
	"github.com/samvera/stories/internal/models"
	"gorm.io/gorm"
)

// StoryService handles business logic for story operations
type StoryService struct {
	repos *db.Repositories
	db    *db.DB
}

// NewStoryService creates a new story service instance
func NewStoryService(database *db.DB, repos *db.Repositories) *StoryService {
	return &StoryService{
		repos: repos,
		db:    database,
	}
}

// ListStories returns the non-expired stories visible to a scope, newest
// first. This is the ordered list a viewer session plays through.
func (s *StoryService) ListStories(ctx context.Context, filter db.StoryFilter) ([]*models.Story, error) {
	if !filter.Audience.IsValid() {
		return nil, ErrInvalidAudience
	}

	list, err := s.repos.Stories.ListActive(ctx, filter, time.Now().UTC())
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("org_id", filter.OrgID.String()).
			Str("audience", string(filter.Audience)).
			Msg("Failed to list stories")
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	logger.Log.Debug().
		Str("org_id", filter.OrgID.String()).
		Str("audience", string(filter.Audience)).
		Int("count", len(list)).
		Msg("Listed stories")

	return list, nil
}

// GetStory retrieves a single story scoped to an organization
func (s *StoryService) GetStory(ctx context.Context, orgID, storyID uuid.UUID) (*models.Story, error) {
	story, err := s.repos.Stories.GetByID(ctx, orgID, storyID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrStoryNotFound
		}
		logger.Log.Error().
			Err(err).
			Str("story_id", storyID.String()).
			Msg("Failed to get story")
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return story, nil
}

// StoryItems returns the ordered items of a story, verifying the story
// belongs to the organization first. Satisfies the playback engine's item
// source contract.
func (s *StoryService) StoryItems(ctx context.Context, orgID, storyID uuid.UUID) ([]*models.StoryItem, error) {
	if _, err := s.GetStory(ctx, orgID, storyID); err != nil {
		return nil, err
	}

	items, err := s.repos.StoryItems.GetByStoryID(ctx, storyID)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("story_id", storyID.String()).
			Msg("Failed to get story items")
		return nil, fmt.Errorf("failed to get story items: %w", err)
	}

	return items, nil
}

// CreateStory persists a story and its items in one transaction. Items are
// assigned order indexes by slice position. Authoring surfaces live outside
// this service; this is used by seeding and tests.
func (s *StoryService) CreateStory(ctx context.Context, story *models.Story, items []*models.StoryItem) error {
	if !story.Audience.IsValid() {
		return ErrInvalidAudience
	}

	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if result := tx.Create(story); result.Error != nil {
			return fmt.Errorf("failed to create story: %w", db.MapGormError(result.Error))
		}
		for i, item := range items {
			item.StoryID = story.ID
			item.OrderIndex = i
			if result := tx.Create(item); result.Error != nil {
				return fmt.Errorf("failed to create story item %d: %w", i, db.MapGormError(result.Error))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Info().
		Str("story_id", story.ID.String()).
		Str("org_id", story.OrgID.String()).
		Int("items", len(items)).
		Msg("Story created")

	return nil
}

// DefaultItemDuration resolves the per-org default display duration for
// items that carry none. Orgs without a settings row get the configured
// fallback.
func (s *StoryService) DefaultItemDuration(ctx context.Context, orgID uuid.UUID, fallback time.Duration) time.Duration {
	settings, err := s.repos.OrgSettings.Get(ctx, orgID)
	if err != nil {
		if !db.IsNotFound(err) {
			logger.Log.Warn().
				Err(err).
				Str("org_id", orgID.String()).
				Msg("Failed to load org settings, using configured default")
		}
		return fallback
	}
	if settings.DefaultItemDurationMS <= 0 {
		return fallback
	}
	return time.Duration(settings.DefaultItemDurationMS) * time.Millisecond
}
