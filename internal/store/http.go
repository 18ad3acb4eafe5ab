package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient talks to the remote drafts API. This is the canonical
// backend in deployments where snapshots belong to an upstream service.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a drafts API client. token, when non-empty, is
// sent as a bearer token on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) snapshotURL(draftID, versionID string) string {
	return fmt.Sprintf("%s/drafts/%s/versions/%s/snapshot", c.baseURL, draftID, versionID)
}

// LoadInitialState fetches and decodes the latest snapshot. A 404 from
// the API maps to ErrNotFound.
func (c *HTTPClient) LoadInitialState(ctx context.Context, draftID, versionID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.snapshotURL(draftID, versionID), nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch snapshot: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Content  string `json:"content"`
		Checksum string `json:"checksum"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode snapshot response: %w", err)
	}
	content, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot content: %w", err)
	}
	return content, nil
}

// SaveSnapshot pushes a snapshot to the drafts API.
func (c *HTTPClient) SaveSnapshot(ctx context.Context, draftID, versionID, base64Content, checksum string) error {
	payload, err := json.Marshal(map[string]string{
		"content":  base64Content,
		"checksum": checksum,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.snapshotURL(draftID, versionID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("save snapshot: %w", ErrNotFound)
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return fmt.Errorf("save snapshot: %w", ErrValidation)
	default:
		return fmt.Errorf("save snapshot: unexpected status %d", resp.StatusCode)
	}
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
