// Package rewrite provides the client for the external AI rewrite
// service consumed by the reconciliation workflow.
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"draftroom/api/internal/doctree"
)

// HTTPRewriter calls the rewrite service with the current document tree
// and returns the proposed tree.
type HTTPRewriter struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTP creates a rewrite client. token, when non-empty, is sent as a
// bearer token.
func NewHTTP(url, token string) *HTTPRewriter {
	return &HTTPRewriter{
		url:   strings.TrimRight(url, "/"),
		token: token,
		// Rewrites run a model call upstream; allow for it.
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// Rewrite posts the document and decodes the proposal.
func (r *HTTPRewriter) Rewrite(ctx context.Context, doc *doctree.Node) (*doctree.Node, error) {
	payload, err := json.Marshal(map[string]any{"document": doc})
	if err != nil {
		return nil, fmt.Errorf("encode rewrite request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build rewrite request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call rewrite service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rewrite service: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Document *doctree.Node `json:"document"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rewrite response: %w", err)
	}
	if body.Document == nil || body.Document.Type == "" {
		return nil, fmt.Errorf("rewrite service returned no document")
	}
	return body.Document, nil
}
