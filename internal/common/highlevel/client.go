// Package highlevel is a small REST client for the HighLevel (LeadConnector)
// contacts API, limited to the calls the bulk filing pipeline makes.
package highlevel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nylta-workers/internal/common/config"
	httpclient "nylta-workers/internal/common/http"
	"nylta-workers/internal/common/metrics"
)

var ErrNotConfigured = errors.New("highlevel client not configured")

type Config struct {
	BaseURL            string
	APIKey             string
	LocationID         string
	APIVersion         string
	Timeout            time.Duration
	RateLimitPerSecond float64
}

// ConfigFromApp maps the application config section onto the client config.
func ConfigFromApp(cfg config.HighLevelConfig) Config {
	return Config{
		BaseURL:            cfg.BaseURL,
		APIKey:             cfg.APIKey,
		LocationID:         cfg.LocationID,
		APIVersion:         cfg.APIVersion,
		Timeout:            config.GetDuration(cfg.Timeout),
		RateLimitPerSecond: cfg.RateLimitPerSecond,
	}
}

type Client struct {
	baseURL    string
	apiKey     string
	locationID string
	apiVersion string
	httpClient *httpclient.Client
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("highlevel %s failed (status %d): %s", e.Operation, e.StatusCode, e.Body)
}

// Retryable reports whether the failure is worth another attempt.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrNotConfigured)
	}
	if cfg.LocationID == "" {
		return nil, fmt.Errorf("%w: location id is required", ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrNotConfigured)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2021-07-28"
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		locationID: cfg.LocationID,
		apiVersion: cfg.APIVersion,
		httpClient: httpclient.NewRateLimitedClient(cfg.Timeout, cfg.RateLimitPerSecond),
	}, nil
}

// CreateContact creates a contact in the configured location and returns its id.
func (c *Client) CreateContact(ctx context.Context, contact *ContactRequest) (string, error) {
	req := *contact
	req.LocationID = c.locationID

	var resp contactEnvelope
	if err := c.do(ctx, "create_contact", http.MethodPost, "/contacts/", &req, &resp); err != nil {
		return "", err
	}
	if resp.Contact.ID == "" {
		return "", fmt.Errorf("highlevel create_contact: no contact id in response")
	}
	return resp.Contact.ID, nil
}

func (c *Client) AddTags(ctx context.Context, contactID string, tags []string) error {
	body := map[string][]string{"tags": tags}
	return c.do(ctx, "add_tags", http.MethodPost, "/contacts/"+url.PathEscape(contactID)+"/tags", body, nil)
}

// AddNote attaches a note to a contact and returns the note id.
func (c *Client) AddNote(ctx context.Context, contactID, note string) (string, error) {
	var resp struct {
		Note struct {
			ID string `json:"id"`
		} `json:"note"`
	}
	body := map[string]string{"body": note}
	if err := c.do(ctx, "add_note", http.MethodPost, "/contacts/"+url.PathEscape(contactID)+"/notes", body, &resp); err != nil {
		return "", err
	}
	return resp.Note.ID, nil
}

// TestConnection performs a one-result contact search in the location to
// verify the credentials.
func (c *Client) TestConnection(ctx context.Context) error {
	params := url.Values{}
	params.Set("locationId", c.locationID)
	params.Set("limit", "1")
	return c.do(ctx, "test_connection", http.MethodGet, "/contacts/?"+params.Encode(), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.HighLevelRequests.WithLabelValues(op, "transport_error").Inc()
		return fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.HighLevelRequests.WithLabelValues(op, "error").Inc()
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	metrics.HighLevelRequests.WithLabelValues(op, "success").Inc()

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", op, err)
	}
	return nil
}
