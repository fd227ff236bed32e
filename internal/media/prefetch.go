package media

import (
	"context"
	"net/http"
	"time"

	"github.com/samvera/stories/internal/logger"
)

const prefetchTimeout = 10 * time.Second

// Prefetcher warms remote media so forward navigation has no decode latency.
// Implementations must never fail playback: warming is best effort.
type Prefetcher interface {
	Warm(ctx context.Context, urls []string)
}

// HTTPPrefetcher warms URLs by issuing HEAD requests, priming any intermediate
// cache between the service and the media store.
type HTTPPrefetcher struct {
	client *http.Client
}

// NewHTTPPrefetcher creates a prefetcher with a bounded-timeout HTTP client
func NewHTTPPrefetcher() *HTTPPrefetcher {
	return &HTTPPrefetcher{
		client: &http.Client{Timeout: prefetchTimeout},
	}
}

// Warm issues a HEAD request per URL. Failures are logged and swallowed.
func (p *HTTPPrefetcher) Warm(ctx context.Context, urls []string) {
	for _, url := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			logger.Log.Warn().
				Err(err).
				Str("url", url).
				Msg("Failed to build prefetch request")
			continue
		}

		resp, err := p.client.Do(req)
		if err != nil {
			logger.Log.Warn().
				Err(err).
				Str("url", url).
				Msg("Media prefetch failed")
			continue
		}
		_ = resp.Body.Close()

		logger.Log.Debug().
			Str("url", url).
			Int("status", resp.StatusCode).
			Msg("Media prefetched")
	}
}

// NopPrefetcher discards warm requests. Used in tests and when warming is
// disabled.
type NopPrefetcher struct{}

// Warm does nothing
func (NopPrefetcher) Warm(context.Context, []string) {}
