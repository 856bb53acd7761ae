// Package elevation provides point elevation lookup via OpenTopoData-compatible APIs.
package elevation

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client resolves terrain elevation for geographic points.
type Client interface {
	// Lookup returns one elevation in meters per point, in input order.
	// Points the service has no data for come back as NaN.
	Lookup(ctx context.Context, pts []Point) ([]float64, error)
}

// Point is a WGS84 position.
type Point struct {
	Lat float64
	Lon float64
}

// Option configures the client.
type Option func(*client)

// WithBaseURL points the client at a different service root. The default is
// the public OpenTopoData instance.
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = u
	}
}

// WithDataset selects the elevation dataset to query.
func WithDataset(name string) Option {
	return func(c *client) {
		c.dataset = name
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBatchSize caps how many points go into a single request.
func WithBatchSize(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

type client struct {
	baseURL    string
	dataset    string
	httpClient *http.Client
	limiter    *rate.Limiter
	batchSize  int
}

// NewClient creates an elevation Client with the given options.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:    "https://api.opentopodata.org",
		dataset:    "srtm90m",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(1, 1), // public instance allows 1 req/s
		batchSize:  100,                   // public instance caps locations per call
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
