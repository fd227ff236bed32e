package models

import (
	"time"

	"github.com/google/uuid"
)

// OrgSettings holds per-organization playback overrides. A missing row means
// the service-wide configuration defaults apply; rows only exist for orgs
// that changed something.
type OrgSettings struct {
	OrgID                 uuid.UUID `json:"org_id" gorm:"type:text;primaryKey;column:org_id"`
	DefaultItemDurationMS int64     `json:"default_item_duration_ms" gorm:"type:integer;not null;column:default_item_duration_ms" validate:"gte=1000"`
	StoryRetentionHours   int       `json:"story_retention_hours" gorm:"type:integer;not null;column:story_retention_hours" validate:"gte=0"`
	UpdatedAt             time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}
