package models

import (
	"time"

	"github.com/google/uuid"
)

// Audience identifies which dashboard surface a story is published to.
type Audience string

// Audience constants
const (
	AudiencePrincipal Audience = "principal"
	AudienceTeacher   Audience = "teacher"
	AudienceGuardian  Audience = "guardian"
)

// IsValid checks if the audience is a known valid value
func (a Audience) IsValid() bool {
	switch a {
	case AudiencePrincipal, AudienceTeacher, AudienceGuardian:
		return true
	default:
		return false
	}
}

// Story represents an expiring, ordered collection of media/text items
// authored by a teacher or principal within one organization.
type Story struct {
	ID        uuid.UUID  `json:"id" gorm:"type:text;primaryKey;column:id"`
	OrgID     uuid.UUID  `json:"org_id" gorm:"type:text;not null;index;column:org_id" validate:"required"`
	AuthorID  uuid.UUID  `json:"author_id" gorm:"type:text;not null;column:author_id" validate:"required"`
	Audience  Audience   `json:"audience" gorm:"type:text;not null;column:audience" validate:"required"`
	ClassID   *uuid.UUID `json:"class_id,omitempty" gorm:"type:text;column:class_id"`
	Title     *string    `json:"title,omitempty" gorm:"type:text;column:title"`
	Caption   *string    `json:"caption,omitempty" gorm:"type:text;column:caption"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"type:datetime;not null;index;column:expires_at" validate:"required"`
	CreatedAt time.Time  `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`

	// Populated by joins, not stored in this table
	Items []*StoryItem `json:"items,omitempty" gorm:"-"`
}

// NewStory creates a new Story with generated UUID and timestamps
func NewStory(orgID, authorID uuid.UUID, audience Audience, expiresAt time.Time) *Story {
	return &Story{
		ID:        uuid.New(),
		OrgID:     orgID,
		AuthorID:  authorID,
		Audience:  audience,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
}

// Expired reports whether the story is past its expiration at the given time
func (s *Story) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// DisplayTitle returns the title or an empty string when unset
func (s *Story) DisplayTitle() string {
	if s.Title == nil {
		return ""
	}
	return *s.Title
}
