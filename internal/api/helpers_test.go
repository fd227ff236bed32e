package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samvera/stories/internal/config"
	"github.com/samvera/stories/internal/db"
	"github.com/samvera/stories/internal/models"
	"github.com/samvera/stories/internal/playback"
	"github.com/samvera/stories/internal/stories"
	"github.com/stretchr/testify/require"
)

// apiTestEnv bundles the full in-process stack the handlers run against
type apiTestEnv struct {
	router  *gin.Engine
	service *stories.StoryService
	manager *playback.Manager
}

// setupAPITest wires a migrated temp database, the story service, a playback
// manager with fast timing, and the full route table
func setupAPITest(t *testing.T) *apiTestEnv {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	repos := db.NewRepositories(database)
	service := stories.NewStoryService(database, repos)

	cfg := &config.PlaybackConfig{
		DefaultItemDuration:   500 * time.Millisecond,
		MinItemDuration:       10 * time.Millisecond,
		SampleInterval:        5 * time.Millisecond,
		ViewerGracePeriod:     time.Minute,
		ViewerCleanupInterval: time.Minute,
	}
	manager := playback.NewManager(service, nil, cfg)
	require.NoError(t, manager.Start())
	t.Cleanup(manager.Stop)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())

	apiGroup := router.Group("/api")
	SetupHealthRoutes(apiGroup, database, manager)
	SetupStoryRoutes(apiGroup, service)
	SetupViewerRoutes(apiGroup, manager)

	return &apiTestEnv{router: router, service: service, manager: manager}
}

// seedStoryWithItems persists a story of text-card items and returns it
func (env *apiTestEnv) seedStoryWithItems(t *testing.T, orgID uuid.UUID, title string, durationsMS ...int64) *models.Story {
	t.Helper()

	story := models.NewStory(orgID, uuid.New(), models.AudienceGuardian, time.Now().UTC().Add(time.Hour))
	story.Title = &title

	items := make([]*models.StoryItem, 0, len(durationsMS))
	for i, ms := range durationsMS {
		item := models.NewStoryItem(story.ID, i)
		d := ms
		item.DurationMS = &d
		caption := "slide"
		item.Caption = &caption
		items = append(items, item)
	}

	require.NoError(t, env.service.CreateStory(context.Background(), story, items))
	return story
}

// doJSON performs a request with an optional JSON body and returns the recorder
func (env *apiTestEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// decodeSnapshot unmarshals a viewer snapshot response body
func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) playback.Snapshot {
	t.Helper()
	var snap playback.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

// openViewer opens a viewer over the org's guardian stories and waits for
// playback to begin
func (env *apiTestEnv) openViewer(t *testing.T, orgID uuid.UUID, storyID uuid.UUID) playback.Snapshot {
	t.Helper()

	w := env.doJSON(t, http.MethodPost, "/api/viewers", gin.H{
		"org_id":   orgID.String(),
		"audience": "guardian",
		"story_id": storyID.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, "open viewer failed: %s", w.Body.String())
	snap := decodeSnapshot(t, w)

	viewer, ok := env.manager.GetViewer(snap.ViewerID)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return viewer.Snapshot().State == playback.StatePlaying
	}, 2*time.Second, 10*time.Millisecond, "viewer never started playing")

	return snap
}
