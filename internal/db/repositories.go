package db

// Repositories provides access to all database repositories
type Repositories struct {
	Stories     *StoryRepository
	StoryItems  *StoryItemRepository
	OrgSettings *OrgSettingsRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Stories:     NewStoryRepository(db),
		StoryItems:  NewStoryItemRepository(db),
		OrgSettings: NewOrgSettingsRepository(db),
	}
}
