package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPBackend talks to the hosted question service.
type HTTPBackend struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPBackend(baseURL, apiKey string, hc *http.Client) *HTTPBackend {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    hc,
	}
}

type submitRequest struct {
	EpisodeID         string  `json:"episode_id"`
	Question          string  `json:"question"`
	Timestamp         float64 `json:"timestamp"`
	TranscriptContext string  `json:"transcript_context"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Status   string `json:"status"`
	AudioURL string `json:"audio_url"`
	Message  string `json:"message"`
}

func (b *HTTPBackend) Submit(ctx context.Context, q Question) (string, error) {
	body, err := json.Marshal(submitRequest{
		EpisodeID:         q.EpisodeID,
		Question:          q.Text,
		Timestamp:         q.At.Seconds(),
		TranscriptContext: q.TranscriptContext,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode question: %w", err)
	}

	var resp submitResponse
	if err := b.do(ctx, http.MethodPost, "/questions", bytes.NewReader(body), &resp); err != nil {
		return "", fmt.Errorf("failed to submit question: %w", err)
	}

	if resp.ID == "" {
		return "", fmt.Errorf("failed to submit question: empty id")
	}

	return resp.ID, nil
}

func (b *HTTPBackend) Status(ctx context.Context, id string) (Status, error) {
	var resp statusResponse
	if err := b.do(ctx, http.MethodGet, "/questions/"+url.PathEscape(id), nil, &resp); err != nil {
		return Status{}, err
	}

	st := Status{AudioURL: resp.AudioURL, Message: resp.Message}
	switch resp.Status {
	case "completed":
		st.State = Completed
	case "failed", "cancelled", "canceled":
		st.State = Failed
	default:
		st.State = Pending
	}

	return st, nil
}

func (b *HTTPBackend) Cancel(ctx context.Context, id string) error {
	if err := b.do(ctx, http.MethodDelete, "/questions/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("failed to cancel question %s: %w", id, err)
	}

	return nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("apikey", b.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrUnknownQuestion
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("question service returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
