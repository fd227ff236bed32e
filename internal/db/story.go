// Package db provides database connection management and repository interfaces.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samvera/stories/internal/models"
	"gorm.io/gorm"
)

// StoryRepository handles database operations for stories
type StoryRepository struct {
	db *DB
}

// NewStoryRepository creates a new story repository
func NewStoryRepository(db *DB) *StoryRepository {
	return &StoryRepository{db: db}
}

// StoryFilter scopes a story listing. OrgID and Audience are required;
// ClassIDs and AuthorID narrow the result when set.
type StoryFilter struct {
	OrgID    uuid.UUID
	Audience models.Audience
	ClassIDs []uuid.UUID
	AuthorID *uuid.UUID
}

// Create inserts a new story into the database
func (r *StoryRepository) Create(ctx context.Context, story *models.Story) error {
	result := r.db.WithContext(ctx).Create(story)
	if result.Error != nil {
		return fmt.Errorf("failed to create story: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a story by its UUID, scoped to an organization
func (r *StoryRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Story, error) {
	var story models.Story
	result := r.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id.String(), orgID.String()).
		First(&story)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &story, nil
}

// ListActive retrieves non-expired stories matching the filter, newest first
func (r *StoryRepository) ListActive(ctx context.Context, filter StoryFilter, now time.Time) ([]*models.Story, error) {
	query := r.db.WithContext(ctx).
		Where("org_id = ? AND audience = ? AND expires_at > ?",
			filter.OrgID.String(), filter.Audience, now.UTC())

	if len(filter.ClassIDs) > 0 {
		ids := make([]string, len(filter.ClassIDs))
		for i, id := range filter.ClassIDs {
			ids[i] = id.String()
		}
		query = query.Where("class_id IN ?", ids)
	}
	if filter.AuthorID != nil {
		query = query.Where("author_id = ?", filter.AuthorID.String())
	}

	var stories []*models.Story
	result := query.Order("created_at DESC").Find(&stories)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list stories: %w", MapGormError(result.Error))
	}
	return stories, nil
}

// Delete deletes a story by its UUID (cascade delete to items)
func (r *StoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Story{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete story: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredBefore removes stories whose expiration is older than the
// cutoff, together with their items, in a single transaction. Organizations
// in exclude are skipped; they carry their own retention policy. Returns the
// number of stories removed.
func (r *StoryRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time, exclude []uuid.UUID) (int64, error) {
	cond := func(q *gorm.DB) *gorm.DB {
		q = q.Where("expires_at < ?", cutoff.UTC())
		if len(exclude) > 0 {
			ids := make([]string, len(exclude))
			for i, id := range exclude {
				ids[i] = id.String()
			}
			q = q.Where("org_id NOT IN ?", ids)
		}
		return q
	}
	return r.deleteExpired(ctx, cond)
}

// DeleteExpiredBeforeInOrg removes one organization's stories expired before
// the cutoff, with their items. Returns the number of stories removed.
func (r *StoryRepository) DeleteExpiredBeforeInOrg(ctx context.Context, orgID uuid.UUID, cutoff time.Time) (int64, error) {
	cond := func(q *gorm.DB) *gorm.DB {
		return q.Where("expires_at < ? AND org_id = ?", cutoff.UTC(), orgID.String())
	}
	return r.deleteExpired(ctx, cond)
}

func (r *StoryRepository) deleteExpired(ctx context.Context, cond func(*gorm.DB) *gorm.DB) (int64, error) {
	var removed int64
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		result := tx.Where(
			"story_id IN (?)",
			cond(tx.Model(&models.Story{}).Select("id")),
		).Delete(&models.StoryItem{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete expired story items: %w", MapGormError(result.Error))
		}

		result = cond(tx.Model(&models.Story{})).Delete(&models.Story{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete expired stories: %w", MapGormError(result.Error))
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
