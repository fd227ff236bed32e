package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samvera/stories/internal/models"
)

// StoryItemRepository handles database operations for story items
type StoryItemRepository struct {
	db *DB
}

// NewStoryItemRepository creates a new story item repository
func NewStoryItemRepository(db *DB) *StoryItemRepository {
	return &StoryItemRepository{db: db}
}

// Create inserts a new story item into the database
func (r *StoryItemRepository) Create(ctx context.Context, item *models.StoryItem) error {
	result := r.db.WithContext(ctx).Create(item)
	if result.Error != nil {
		return fmt.Errorf("failed to create story item: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByStoryID retrieves all items for a story, ordered by playback position
func (r *StoryItemRepository) GetByStoryID(ctx context.Context, storyID uuid.UUID) ([]*models.StoryItem, error) {
	var items []*models.StoryItem
	result := r.db.WithContext(ctx).
		Where("story_id = ?", storyID.String()).
		Order("order_index ASC").
		Find(&items)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get story items: %w", MapGormError(result.Error))
	}
	return items, nil
}

// CountByStoryID returns the number of items in a story
func (r *StoryItemRepository) CountByStoryID(ctx context.Context, storyID uuid.UUID) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.StoryItem{}).
		Where("story_id = ?", storyID.String()).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count story items: %w", MapGormError(result.Error))
	}
	return count, nil
}
