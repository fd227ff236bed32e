package playback

import "time"

// Fraction returns the fill percentage (0–100) for an item displayed for
// elapsed out of duration. The result is clamped so it is never reported
// above 100 or below 0.
func Fraction(elapsed, duration time.Duration) float64 {
	if duration <= 0 || elapsed <= 0 {
		return 0
	}
	f := float64(elapsed) / float64(duration)
	if f > 1 {
		f = 1
	}
	return f * 100
}

// Bars builds the per-item progress bar row for a story: items before the
// active index are solid (100), the active item carries the live fraction,
// items after it are empty (0).
func Bars(count, activeIndex int, activeFraction float64) []float64 {
	if count <= 0 {
		return nil
	}
	bars := make([]float64, count)
	for i := range bars {
		switch {
		case i < activeIndex:
			bars[i] = 100
		case i == activeIndex:
			bars[i] = activeFraction
		default:
			bars[i] = 0
		}
	}
	return bars
}
