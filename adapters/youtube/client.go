// Package youtube implements ports.Transport against the provider's Data API.
package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
	"github.com/Terry-Mathew/youtube-filter-sub001/ports"
)

// DefaultBaseURL is the provider's published API root.
const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Client issues provider calls over HTTP.
// The API key is held privately and appended at call time only; it never
// appears in request structs, errors or logs.
type Client struct {
	client  *http.Client
	baseURL *url.URL
	apiKey  string
}

// Config contains configuration for the provider client.
type Config struct {
	BaseURL         string
	APIKey          string
	CallTimeout     time.Duration // per HTTP call, distinct from the operation deadline
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// New creates a provider client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	timeout := cfg.CallTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = 10
	}
	idleConnTimeout := cfg.IdleConnTimeout
	if idleConnTimeout == 0 {
		idleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConns,
		IdleConnTimeout:     idleConnTimeout,
	}

	return &Client{
		client:  &http.Client{Transport: transport, Timeout: timeout},
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
	}, nil
}

// Call issues one provider call. A returned error means the call never
// produced an HTTP response; provider-level failures come back as a Response
// with a non-2xx status for the classifier to interpret.
func (c *Client) Call(ctx context.Context, req provider.Request) (provider.Response, error) {
	reqURL, err := c.buildURL(req)
	if err != nil {
		return provider.Response{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return provider.Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return provider.Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.Response{}, fmt.Errorf("read response body: %w", err)
	}

	return provider.Response{
		Status:    resp.StatusCode,
		Body:      body,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

var _ ports.Transport = (*Client)(nil)
