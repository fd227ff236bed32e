package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samvera/stories/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a migrated database in a temp dir
func setupTestDB(t *testing.T) (*DB, *Repositories) {
	t.Helper()

	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, RunMigrations(sqlDB, "file://../../migrations"))

	return database, NewRepositories(database)
}

func seedStoryRow(t *testing.T, repos *Repositories, orgID uuid.UUID, expiresAt time.Time, itemCount int) *models.Story {
	t.Helper()
	ctx := context.Background()

	story := models.NewStory(orgID, uuid.New(), models.AudienceGuardian, expiresAt)
	require.NoError(t, repos.Stories.Create(ctx, story))
	for i := 0; i < itemCount; i++ {
		require.NoError(t, repos.StoryItems.Create(ctx, models.NewStoryItem(story.ID, i)))
	}
	return story
}

func TestStoryRepository_GetByID_OrgScoped(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()
	orgID := uuid.New()

	story := seedStoryRow(t, repos, orgID, time.Now().UTC().Add(time.Hour), 0)

	got, err := repos.Stories.GetByID(ctx, orgID, story.ID)
	require.NoError(t, err)
	assert.Equal(t, story.ID, got.ID)

	_, err = repos.Stories.GetByID(ctx, uuid.New(), story.ID)
	assert.True(t, IsNotFound(err))
}

func TestStoryRepository_DeleteExpiredBefore(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()
	orgID := uuid.New()
	now := time.Now().UTC()

	stale := seedStoryRow(t, repos, orgID, now.Add(-2*time.Hour), 3)
	kept := seedStoryRow(t, repos, orgID, now.Add(time.Hour), 1)

	removed, err := repos.Stories.DeleteExpiredBefore(ctx, now.Add(-time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repos.Stories.GetByID(ctx, orgID, stale.ID)
	assert.True(t, IsNotFound(err))

	items, err := repos.StoryItems.GetByStoryID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Empty(t, items, "expired story's items must be removed with it")

	_, err = repos.Stories.GetByID(ctx, orgID, kept.ID)
	assert.NoError(t, err)

	count, err := repos.StoryItems.CountByStoryID(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStoryRepository_DeleteExpiredBefore_ExcludesOrgs(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()
	sweptOrg := uuid.New()
	sparedOrg := uuid.New()
	now := time.Now().UTC()

	swept := seedStoryRow(t, repos, sweptOrg, now.Add(-2*time.Hour), 1)
	spared := seedStoryRow(t, repos, sparedOrg, now.Add(-2*time.Hour), 1)

	removed, err := repos.Stories.DeleteExpiredBefore(ctx, now.Add(-time.Hour), []uuid.UUID{sparedOrg})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repos.Stories.GetByID(ctx, sweptOrg, swept.ID)
	assert.True(t, IsNotFound(err))

	_, err = repos.Stories.GetByID(ctx, sparedOrg, spared.ID)
	assert.NoError(t, err)
}

func TestStoryRepository_DeleteExpiredBeforeInOrg(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()
	orgID := uuid.New()
	otherOrg := uuid.New()
	now := time.Now().UTC()

	stale := seedStoryRow(t, repos, orgID, now.Add(-2*time.Hour), 2)
	neighbor := seedStoryRow(t, repos, otherOrg, now.Add(-2*time.Hour), 1)

	removed, err := repos.Stories.DeleteExpiredBeforeInOrg(ctx, orgID, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repos.Stories.GetByID(ctx, orgID, stale.ID)
	assert.True(t, IsNotFound(err))

	items, err := repos.StoryItems.GetByStoryID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = repos.Stories.GetByID(ctx, otherOrg, neighbor.ID)
	assert.NoError(t, err, "other orgs' stories are untouched")
}

func TestStoryRepository_Delete(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()
	orgID := uuid.New()

	story := seedStoryRow(t, repos, orgID, time.Now().UTC().Add(time.Hour), 0)
	require.NoError(t, repos.Stories.Delete(ctx, story.ID))

	err := repos.Stories.Delete(ctx, story.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoryItemRepository_UniqueOrderIndex(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()
	orgID := uuid.New()

	story := seedStoryRow(t, repos, orgID, time.Now().UTC().Add(time.Hour), 1)

	dup := models.NewStoryItem(story.ID, 0)
	err := repos.StoryItems.Create(ctx, dup)
	assert.True(t, IsDuplicate(err), "second item at order 0 should violate the unique index")
}

func TestOrgSettingsRepository_GetAndUpsert(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()
	orgID := uuid.New()

	// No row yet: callers must see not-found, never fabricated values
	_, err := repos.OrgSettings.Get(ctx, orgID)
	assert.True(t, IsNotFound(err))

	settings := &models.OrgSettings{
		OrgID:                 orgID,
		DefaultItemDurationMS: 12000,
		StoryRetentionHours:   48,
	}
	require.NoError(t, repos.OrgSettings.Upsert(ctx, settings))

	reloaded, err := repos.OrgSettings.Get(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), reloaded.DefaultItemDurationMS)
	assert.Equal(t, 48, reloaded.StoryRetentionHours)
}
