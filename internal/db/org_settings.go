package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samvera/stories/internal/models"
)

// OrgSettingsRepository handles database operations for per-org settings.
// A missing row means the org carries no overrides; callers fall back to the
// configured defaults.
type OrgSettingsRepository struct {
	db *DB
}

// NewOrgSettingsRepository creates a new org settings repository
func NewOrgSettingsRepository(db *DB) *OrgSettingsRepository {
	return &OrgSettingsRepository{db: db}
}

// Get retrieves the settings row for an organization. Returns ErrNotFound
// when the org has none.
func (r *OrgSettingsRepository) Get(ctx context.Context, orgID uuid.UUID) (*models.OrgSettings, error) {
	var settings models.OrgSettings
	result := r.db.WithContext(ctx).Where("org_id = ?", orgID.String()).First(&settings)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &settings, nil
}

// List returns every stored org settings row
func (r *OrgSettingsRepository) List(ctx context.Context) ([]*models.OrgSettings, error) {
	var all []*models.OrgSettings
	result := r.db.WithContext(ctx).Find(&all)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list org settings: %w", MapGormError(result.Error))
	}
	return all, nil
}

// Upsert creates or replaces the settings row for an organization
func (r *OrgSettingsRepository) Upsert(ctx context.Context, settings *models.OrgSettings) error {
	settings.UpdatedAt = time.Now().UTC()

	result := r.db.WithContext(ctx).Save(settings)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert org settings: %w", MapGormError(result.Error))
	}
	return nil
}
