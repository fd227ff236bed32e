package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samvera/stories/internal/db"
	"github.com/samvera/stories/internal/logger"
	"github.com/samvera/stories/internal/models"
	"github.com/samvera/stories/internal/playback"
)

// OpenViewerRequest represents a request to open a story viewer session
type OpenViewerRequest struct {
	OrgID    string   `json:"org_id" binding:"required"`
	Audience string   `json:"audience" binding:"required"`
	ClassIDs []string `json:"class_ids,omitempty"`
	AuthorID *string  `json:"author_id,omitempty"`
	StoryID  string   `json:"story_id" binding:"required"`
}

// TapRequest represents a zone tap inside the viewer content area: x is the
// pointer position relative to the container's left edge, width the
// container width
type TapRequest struct {
	X     float64 `json:"x"`
	Width float64 `json:"width" binding:"required,gt=0"`
}

// CommandRequest represents an explicit playback command
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// ViewerHandler handles viewer session API requests
type ViewerHandler struct {
	manager *playback.Manager
}

// NewViewerHandler creates a new viewer handler instance
func NewViewerHandler(manager *playback.Manager) *ViewerHandler {
	return &ViewerHandler{manager: manager}
}

// OpenViewer handles POST /api/viewers
func (h *ViewerHandler) OpenViewer(c *gin.Context) {
	var req OpenViewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	filter, storyID, ok := h.parseOpenRequest(c, &req)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	viewer, err := h.manager.OpenViewer(ctx, filter, storyID)
	if err != nil {
		switch {
		case errors.Is(err, playback.ErrNoStories), errors.Is(err, playback.ErrStoryNotActive):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "story_not_active",
				Message: "Story is not in the active list for this scope",
			})
		case errors.Is(err, playback.ErrManagerStopped):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "shutting_down",
				Message: "Service is shutting down",
			})
		default:
			logger.Log.Error().
				Err(err).
				Str("story_id", storyID.String()).
				Msg("Failed to open viewer")
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "open_failed",
				Message: "Failed to open story viewer",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, viewer.Snapshot())
}

// parseOpenRequest validates and converts the open request fields
func (h *ViewerHandler) parseOpenRequest(c *gin.Context, req *OpenViewerRequest) (db.StoryFilter, uuid.UUID, bool) {
	var filter db.StoryFilter

	orgID, err := uuid.Parse(req.OrgID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_org_id",
			Message: "org_id must be a valid UUID",
		})
		return filter, uuid.Nil, false
	}
	filter.OrgID = orgID

	filter.Audience = models.Audience(req.Audience)
	if !filter.Audience.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_audience",
			Message: "audience must be one of: principal, teacher, guardian",
		})
		return filter, uuid.Nil, false
	}

	for _, raw := range req.ClassIDs {
		classID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_class_ids",
				Message: "class_ids must be valid UUIDs",
			})
			return filter, uuid.Nil, false
		}
		filter.ClassIDs = append(filter.ClassIDs, classID)
	}

	if req.AuthorID != nil {
		authorID, err := uuid.Parse(*req.AuthorID)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_author_id",
				Message: "author_id must be a valid UUID",
			})
			return filter, uuid.Nil, false
		}
		filter.AuthorID = &authorID
	}

	storyID, err := uuid.Parse(req.StoryID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_story_id",
			Message: "story_id must be a valid UUID",
		})
		return filter, uuid.Nil, false
	}

	return filter, storyID, true
}

// GetViewer handles GET /api/viewers/:id
func (h *ViewerHandler) GetViewer(c *gin.Context) {
	viewer, ok := h.lookupViewer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewer.Snapshot())
}

// Tap handles POST /api/viewers/:id/tap
func (h *ViewerHandler) Tap(c *gin.Context) {
	viewer, ok := h.lookupViewer(c)
	if !ok {
		return
	}

	var req TapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	if err := viewer.Tap(req.X, req.Width); err != nil {
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "viewer_closed",
			Message: "Viewer session is closed",
		})
		return
	}

	c.JSON(http.StatusOK, viewer.Snapshot())
}

// Command handles POST /api/viewers/:id/command
func (h *ViewerHandler) Command(c *gin.Context) {
	viewer, ok := h.lookupViewer(c)
	if !ok {
		return
	}

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	cmd, err := playback.ParseCommand(req.Command)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_command",
			Message: "command must be one of: previous, toggle_pause, next",
		})
		return
	}

	if err := viewer.Apply(cmd); err != nil {
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "viewer_closed",
			Message: "Viewer session is closed",
		})
		return
	}

	c.JSON(http.StatusOK, viewer.Snapshot())
}

// CloseViewer handles DELETE /api/viewers/:id. Closing is idempotent: an
// unknown or already-closed viewer still returns 204 so every client close
// path (button, backdrop, escape, unmount) is safe to repeat.
func (h *ViewerHandler) CloseViewer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid viewer ID format",
		})
		return
	}

	h.manager.CloseViewer(id)
	c.Status(http.StatusNoContent)
}

// lookupViewer resolves the :id path parameter to an open viewer session
func (h *ViewerHandler) lookupViewer(c *gin.Context) (*playback.Controller, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid viewer ID format",
		})
		return nil, false
	}

	viewer, ok := h.manager.GetViewer(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Viewer session not found",
		})
		return nil, false
	}
	return viewer, true
}

// SetupViewerRoutes registers viewer session routes
func SetupViewerRoutes(apiGroup *gin.RouterGroup, manager *playback.Manager) {
	handler := NewViewerHandler(manager)
	apiGroup.POST("/viewers", handler.OpenViewer)
	apiGroup.GET("/viewers/:id", handler.GetViewer)
	apiGroup.POST("/viewers/:id/tap", handler.Tap)
	apiGroup.POST("/viewers/:id/command", handler.Command)
	apiGroup.DELETE("/viewers/:id", handler.CloseViewer)
	apiGroup.GET("/viewers/:id/ws", handler.Stream)
}
