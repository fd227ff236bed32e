package stories

import "errors"

var (
	// ErrStoryNotFound is returned when a story does not exist in the
	// requested organization
	ErrStoryNotFound = errors.New("story not found")

	// ErrInvalidAudience is returned when a listing is requested for an
	// unknown audience
	ErrInvalidAudience = errors.New("invalid story audience")
)
