// Package media classifies story item media and warms remote image URLs
// ahead of playback.
package media

import (
	"strings"

	"github.com/samvera/stories/internal/models"
)

// Kind is the renderable category of a story item
type Kind string

// Kind constants
const (
	// KindImage renders the item URL as a full-screen image
	KindImage Kind = "image"
	// KindText renders the item caption as a text card
	KindText Kind = "text"
)

// Classify determines how a story item should be rendered. Items without a
// resolvable image URL fall back to text cards; a malformed mime type is not
// an error.
func Classify(item *models.StoryItem) Kind {
	if item == nil || item.URL == nil || *item.URL == "" {
		return KindText
	}
	if item.MimeType != nil && strings.HasPrefix(strings.ToLower(*item.MimeType), "image/") {
		return KindImage
	}
	// URL present but mime unknown: treat as image, the viewer degrades to
	// the caption if the load fails
	if item.MimeType == nil {
		return KindImage
	}
	return KindText
}
