package models

import (
	"time"

	"github.com/google/uuid"
)

// StoryItem represents one slide (image or text card) within a Story.
// Playback order is defined by OrderIndex; duration and caption are optional.
type StoryItem struct {
	ID         uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	StoryID    uuid.UUID `json:"story_id" gorm:"type:text;not null;index;column:story_id" validate:"required"`
	OrderIndex int       `json:"order_index" gorm:"type:integer;not null;column:order_index" validate:"gte=0"`
	URL        *string   `json:"url,omitempty" gorm:"type:text;column:url"`
	MimeType   *string   `json:"mime_type,omitempty" gorm:"type:text;column:mime_type"`
	DurationMS *int64    `json:"duration_ms,omitempty" gorm:"type:integer;column:duration_ms"`
	Caption    *string   `json:"caption,omitempty" gorm:"type:text;column:caption"`
	CreatedAt  time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewStoryItem creates a new StoryItem with generated UUID and timestamp
func NewStoryItem(storyID uuid.UUID, orderIndex int) *StoryItem {
	return &StoryItem{
		ID:         uuid.New(),
		StoryID:    storyID,
		OrderIndex: orderIndex,
		CreatedAt:  time.Now().UTC(),
	}
}

// DisplayCaption returns the caption or an empty string when unset
func (i *StoryItem) DisplayCaption() string {
	if i.Caption == nil {
		return ""
	}
	return *i.Caption
}
