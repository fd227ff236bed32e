package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samvera/stories/internal/db"
	"github.com/samvera/stories/internal/logger"
	"github.com/samvera/stories/internal/media"
	"github.com/samvera/stories/internal/models"
	"github.com/samvera/stories/internal/stories"
)

// ErrorResponse represents an error in API responses
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StoryResponse represents a story summary in API responses
type StoryResponse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	AuthorID  string    `json:"author_id"`
	Audience  string    `json:"audience"`
	ClassID   *string   `json:"class_id,omitempty"`
	Title     *string   `json:"title,omitempty"`
	Caption   *string   `json:"caption,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// StoryListResponse represents the scoped, ordered story list
type StoryListResponse struct {
	Stories []*StoryResponse `json:"stories"`
}

// StoryItemResponse represents one story item in API responses
type StoryItemResponse struct {
	ID         string  `json:"id"`
	StoryID    string  `json:"story_id"`
	OrderIndex int     `json:"order_index"`
	Kind       string  `json:"kind"`
	URL        *string `json:"url,omitempty"`
	MimeType   *string `json:"mime_type,omitempty"`
	DurationMS *int64  `json:"duration_ms,omitempty"`
	Caption    *string `json:"caption,omitempty"`
}

// StoryItemListResponse represents a story's ordered items
type StoryItemListResponse struct {
	Items []*StoryItemResponse `json:"items"`
}

// StoryHandler handles story-related API requests
type StoryHandler struct {
	storyService *stories.StoryService
}

// NewStoryHandler creates a new story handler instance
func NewStoryHandler(storyService *stories.StoryService) *StoryHandler {
	return &StoryHandler{storyService: storyService}
}

// toStoryResponse converts a story model to API response format
func toStoryResponse(s *models.Story) *StoryResponse {
	resp := &StoryResponse{
		ID:        s.ID.String(),
		OrgID:     s.OrgID.String(),
		AuthorID:  s.AuthorID.String(),
		Audience:  string(s.Audience),
		Title:     s.Title,
		Caption:   s.Caption,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}
	if s.ClassID != nil {
		classID := s.ClassID.String()
		resp.ClassID = &classID
	}
	return resp
}

// toStoryItemResponse converts a story item model to API response format
func toStoryItemResponse(item *models.StoryItem) *StoryItemResponse {
	return &StoryItemResponse{
		ID:         item.ID.String(),
		StoryID:    item.StoryID.String(),
		OrderIndex: item.OrderIndex,
		Kind:       string(media.Classify(item)),
		URL:        item.URL,
		MimeType:   item.MimeType,
		DurationMS: item.DurationMS,
		Caption:    item.Caption,
	}
}

// parseStoryFilter builds a story filter from list query parameters
func parseStoryFilter(c *gin.Context) (db.StoryFilter, bool) {
	var filter db.StoryFilter

	orgID, err := uuid.Parse(c.Query("org_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_org_id",
			Message: "org_id must be a valid UUID",
		})
		return filter, false
	}
	filter.OrgID = orgID

	filter.Audience = models.Audience(c.Query("audience"))
	if !filter.Audience.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_audience",
			Message: "audience must be one of: principal, teacher, guardian",
		})
		return filter, false
	}

	if raw := c.Query("class_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			classID, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				c.JSON(http.StatusBadRequest, ErrorResponse{
					Error:   "invalid_class_ids",
					Message: "class_ids must be a comma-separated list of UUIDs",
				})
				return filter, false
			}
			filter.ClassIDs = append(filter.ClassIDs, classID)
		}
	}

	if raw := c.Query("author_id"); raw != "" {
		authorID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_author_id",
				Message: "author_id must be a valid UUID",
			})
			return filter, false
		}
		filter.AuthorID = &authorID
	}

	return filter, true
}

// ListStories handles GET /api/stories
func (h *StoryHandler) ListStories(c *gin.Context) {
	filter, ok := parseStoryFilter(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	list, err := h.storyService.ListStories(ctx, filter)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("org_id", filter.OrgID.String()).
			Msg("Failed to list stories")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve story list",
		})
		return
	}

	responses := make([]*StoryResponse, len(list))
	for i, s := range list {
		responses[i] = toStoryResponse(s)
	}

	c.JSON(http.StatusOK, StoryListResponse{Stories: responses})
}

// GetStoryItems handles GET /api/stories/:id/items
func (h *StoryHandler) GetStoryItems(c *gin.Context) {
	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid story ID format",
		})
		return
	}

	orgID, err := uuid.Parse(c.Query("org_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_org_id",
			Message: "org_id must be a valid UUID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	items, err := h.storyService.StoryItems(ctx, orgID, storyID)
	if err != nil {
		if errors.Is(err, stories.ErrStoryNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Story not found",
			})
			return
		}

		logger.Log.Error().
			Err(err).
			Str("story_id", storyID.String()).
			Msg("Failed to get story items")

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: "Failed to retrieve story items",
		})
		return
	}

	responses := make([]*StoryItemResponse, len(items))
	for i, item := range items {
		responses[i] = toStoryItemResponse(item)
	}

	c.JSON(http.StatusOK, StoryItemListResponse{Items: responses})
}

// SetupStoryRoutes registers story routes
func SetupStoryRoutes(apiGroup *gin.RouterGroup, storyService *stories.StoryService) {
	handler := NewStoryHandler(storyService)
	apiGroup.GET("/stories", handler.ListStories)
	apiGroup.GET("/stories/:id/items", handler.GetStoryItems)
}
