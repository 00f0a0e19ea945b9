package ai

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 60 * time.Second

// Option configures an AI client
type Option func(*clientOptions)

type clientOptions struct {
	client            *http.Client
	requestsPerSecond float64
}

// WithHTTPClient overrides the HTTP client used for API calls
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		if c != nil {
			o.client = c
		}
	}
}

// WithRequestsPerSecond throttles outbound calls. Zero or less disables throttling.
func WithRequestsPerSecond(rps float64) Option {
	return func(o *clientOptions) {
		o.requestsPerSecond = rps
	}
}

func applyOptions(opts []Option) clientOptions {
	o := clientOptions{client: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// limiter returns nil when throttling is disabled
func (o clientOptions) limiter() *rate.Limiter {
	if o.requestsPerSecond <= 0 {
		return nil
	}
	burst := int(o.requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(o.requestsPerSecond), burst)
}

// wait blocks until l admits a request or ctx is done
func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
