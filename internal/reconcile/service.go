package reconcile

import (
	"context"
	"fmt"
	"time"

	"draftroom/api/internal/changeset"
	"draftroom/api/internal/doctree"
	"draftroom/api/internal/util"
)

// Rewriter produces a proposed rewrite of a document. The concrete
// implementation lives in internal/rewrite; tests inject fakes.
type Rewriter interface {
	Rewrite(ctx context.Context, doc *doctree.Node) (*doctree.Node, error)
}

// Service runs the generate-review-approve workflow.
type Service struct {
	rewriter Rewriter
	pending  PendingStore
	window   int
}

// NewService creates a reconciliation service. window is the context
// window in runes passed to changeset extraction.
func NewService(rewriter Rewriter, pending PendingStore, window int) *Service {
	return &Service{rewriter: rewriter, pending: pending, window: window}
}

// GenerateResult is returned for human review before approval.
type GenerateResult struct {
	ID         string                 `json:"changesetId"`
	Changeset  changeset.Changeset    `json:"changeset"`
	Preview    string                 `json:"preview"`
	Structural []changeset.NodeChange `json:"structural,omitempty"`
}

// ApproveResult carries the merged document and the applied-change
// report. DocumentChanged reports whether the live document had diverged
// from the baseline the changeset was computed against.
type ApproveResult struct {
	DocumentChanged bool                `json:"documentChanged"`
	Merged          *doctree.Node       `json:"mergedDoc"`
	Changeset       changeset.Changeset `json:"appliedChangeset"`
	Report          changeset.Report    `json:"report"`
}

// Generate asks the rewriter for a proposal, extracts the changeset
// against current, and stores a pending reconciliation for later
// approval. The structural diff rides along for review only.
func (s *Service) Generate(ctx context.Context, draftID string, current *doctree.Node) (GenerateResult, error) {
	proposed, err := s.rewriter.Rewrite(ctx, current)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate rewrite: %w", err)
	}

	cs := changeset.Extract(current, proposed, s.window)
	id := util.NewID("chg")
	entry := Pending{
		DraftID:   draftID,
		Baseline:  current.Clone(),
		Proposed:  proposed,
		Changes:   cs,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.pending.Put(ctx, id, entry); err != nil {
		return GenerateResult{}, fmt.Errorf("store pending reconciliation: %w", err)
	}

	return GenerateResult{
		ID:         id,
		Changeset:  cs,
		Preview:    proposed.Text(),
		Structural: changeset.StructuralDiff(current, proposed),
	}, nil
}

// Approve consumes the pending reconciliation. An unchanged live
// document adopts the stored proposal wholesale; a diverged one gets the
// changeset reapplied with context anchoring.
func (s *Service) Approve(ctx context.Context, id string, live *doctree.Node) (ApproveResult, error) {
	p, err := s.pending.Take(ctx, id)
	if err != nil {
		return ApproveResult{}, err
	}

	if live.Text() == p.Baseline.Text() {
		return ApproveResult{
			DocumentChanged: false,
			Merged:          p.Proposed.Clone(),
			Changeset:       p.Changes,
		}, nil
	}

	merged, report, err := changeset.Apply(p.Changes, live)
	if err != nil {
		return ApproveResult{}, fmt.Errorf("reapply changeset %s: %w", id, err)
	}
	return ApproveResult{
		DocumentChanged: true,
		Merged:          merged,
		Changeset:       p.Changes,
		Report:          report,
	}, nil
}
