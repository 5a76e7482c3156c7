package http

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client is an http.Client that waits on an optional token bucket before each
// request.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewRateLimitedClient allows perSecond requests per second with a burst of one.
// A non-positive rate disables limiting.
func NewRateLimitedClient(timeout time.Duration, perSecond float64) *Client {
	c := NewClient(timeout)
	if perSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return c
}

// Do sends req once the limiter admits it. The request context bounds the wait.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}
	return c.httpClient.Do(req)
}
