// Package reconcile orchestrates generate-review-approve: an external
// rewriter proposes a new document, the changeset engine extracts the
// edits, and approval merges them into the live document even if it has
// diverged from the baseline.
package reconcile

import (
	"context"
	"errors"
	"time"

	"draftroom/api/internal/changeset"
	"draftroom/api/internal/doctree"
)

// DefaultTTL bounds how long an unapproved reconciliation is kept.
const DefaultTTL = time.Hour

// ErrNotFound means the pending id is unknown, already consumed, or
// expired.
var ErrNotFound = errors.New("pending reconciliation not found")

// Pending is the ephemeral record created by Generate and consumed
// exactly once by Approve.
type Pending struct {
	DraftID   string              `json:"draftId"`
	Baseline  *doctree.Node       `json:"baseline"`
	Proposed  *doctree.Node       `json:"proposed"`
	Changes   changeset.Changeset `json:"changes"`
	CreatedAt time.Time           `json:"createdAt"`
}

// PendingStore holds pending reconciliations with a TTL. Take removes
// the entry so approval consumes it exactly once.
type PendingStore interface {
	Put(ctx context.Context, id string, p Pending) error
	Take(ctx context.Context, id string) (Pending, error)
}
