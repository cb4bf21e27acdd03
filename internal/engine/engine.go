// Package engine talks to the remote statistics service: named schema
// variants (tags) and per-field latency stats for a service.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	annotate "github.com/hanpama/gqlproject/internal/annotate"
)

// ErrMissingCredentials is returned when no API key is configured. Callers
// surface it once as a warning and leave every stats-dependent feature
// permanently inert for the session.
var ErrMissingCredentials = errors.New("engine: missing API key")

// Client fetches schema tags and field stats over HTTP.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient builds a client for the stats endpoint. An empty API key fails
// with ErrMissingCredentials so the collaborator is never constructed
// without credentials.
func NewClient(endpoint, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingCredentials
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type statsRequest struct {
	ServiceID string `json:"serviceId"`
}

type statsResponse struct {
	Tags []string `json:"tags"`
	// Stats maps parent type name to field name to latency in milliseconds.
	Stats map[string]map[string]float64 `json:"stats"`
}

// LoadTagsAndStats fetches the named schema variants and the full field
// stats table for serviceID. The stats table is an opaque snapshot; callers
// replace their previous table wholesale.
func (c *Client) LoadTagsAndStats(ctx context.Context, serviceID string) ([]string, annotate.FieldStats, error) {
	body, err := json.Marshal(statsRequest{ServiceID: serviceID})
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("engine: unexpected status %d", resp.StatusCode)
	}

	var out statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, err
	}
	stats := make(annotate.FieldStats, len(out.Stats))
	for parent, fields := range out.Stats {
		m := make(map[string]time.Duration, len(fields))
		for name, ms := range fields {
			m[name] = time.Duration(ms * float64(time.Millisecond))
		}
		stats[parent] = m
	}
	return out.Tags, stats, nil
}
