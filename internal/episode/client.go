package episode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

var ErrNotFound = errors.New("episode not found")

// ServerError carries a non-2xx status from the content API.
type ServerError struct {
	Code int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d", e.Code)
}

// Client talks to the PostgREST-style episodes endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the REST root at baseURL.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchEpisodes returns every published episode, newest first.
func (c *Client) FetchEpisodes(ctx context.Context) ([]Episode, error) {
	q := url.Values{}
	q.Set("order", "published_at.desc")

	return c.get(ctx, q)
}

// FetchEpisode returns a single episode by ID.
func (c *Client) FetchEpisode(ctx context.Context, id string) (Episode, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)

	episodes, err := c.get(ctx, q)
	if err != nil {
		return Episode{}, err
	}

	if len(episodes) == 0 {
		return Episode{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	return episodes[0], nil
}

func (c *Client) get(ctx context.Context, q url.Values) ([]Episode, error) {
	u := c.baseURL + "/episodes?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch episodes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("episode fetch failed", "status", resp.StatusCode, "url", u)
		return nil, &ServerError{Code: resp.StatusCode}
	}

	var episodes []Episode
	if err := json.NewDecoder(resp.Body).Decode(&episodes); err != nil {
		return nil, fmt.Errorf("failed to decode episodes: %w", err)
	}

	return episodes, nil
}
