package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"draftroom/api/internal/doctree"
	"draftroom/api/internal/reconcile"
	"draftroom/api/internal/room"
	"draftroom/api/internal/session"
)

// ContentField is the replicated document field holding the rich-text
// body that changesets and apply steps operate on.
const ContentField = "content"

// Pinger is anything the readiness check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service validates requests and orchestrates the session manager and
// the reconciliation workflow for the REST surface.
type Service struct {
	sessions   *session.Manager
	reconciler *reconcile.Service
	pinger     Pinger
}

// New creates the REST service. pinger may be nil when no backend
// exposes a health probe.
func New(sessions *session.Manager, reconciler *reconcile.Service, pinger Pinger) *Service {
	return &Service{sessions: sessions, reconciler: reconciler, pinger: pinger}
}

// Ping probes the configured backend for the readiness endpoint.
func (s *Service) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	return s.pinger.Ping(ctx)
}

// GenerateChangeset validates the draft id and the document body, then
// runs the generate half of the reconciliation workflow.
func (s *Service) GenerateChangeset(ctx context.Context, draftID string, doc *doctree.Node) (reconcile.GenerateResult, error) {
	if _, err := uuid.Parse(draftID); err != nil {
		return reconcile.GenerateResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "draftId must be a UUID", nil)
	}
	if doc == nil || doc.Type == "" {
		return reconcile.GenerateResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "document is required", nil)
	}
	return s.reconciler.Generate(ctx, draftID, doc)
}

// ApproveChangeset consumes a pending reconciliation against the live
// document supplied by the caller.
func (s *Service) ApproveChangeset(ctx context.Context, changesetID string, live *doctree.Node) (reconcile.ApproveResult, error) {
	if changesetID == "" {
		return reconcile.ApproveResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "changesetId is required", nil)
	}
	if live == nil || live.Type == "" {
		return reconcile.ApproveResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "document is required", nil)
	}
	result, err := s.reconciler.Approve(ctx, changesetID, live)
	if errors.Is(err, reconcile.ErrNotFound) {
		return reconcile.ApproveResult{}, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown or expired changeset", nil)
	}
	return result, err
}

// StepResult reports the outcome of one step in a batch.
type StepResult struct {
	Index int    `json:"index"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ApplyStepsResult summarizes a batch apply: a failing step is skipped,
// not fatal to the batch.
type ApplyStepsResult struct {
	Applied int          `json:"applied"`
	Failed  int          `json:"failed"`
	Results []StepResult `json:"results"`
}

// ApplySteps applies pre-computed tree transforms, in order, to the
// session's live document. The room must already be registered; the
// REST surface never conjures a document the gateway has not loaded.
func (s *Service) ApplySteps(ctx context.Context, draftID, versionID string, steps []doctree.Step) (ApplyStepsResult, error) {
	id, err := room.New(draftID, versionID)
	if err != nil {
		return ApplyStepsResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "room id must be two UUIDs", err.Error())
	}
	if len(steps) == 0 {
		return ApplyStepsResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "steps are required", nil)
	}

	doc, err := s.sessions.Get(id)
	if err != nil {
		return ApplyStepsResult{}, domainError(http.StatusNotFound, "NOT_FOUND", "Room is not registered", nil)
	}
	tree, err := doc.Tree(ContentField)
	if err != nil {
		return ApplyStepsResult{}, err
	}

	result := ApplyStepsResult{Results: make([]StepResult, 0, len(steps))}
	for i, step := range steps {
		if err := tree.ApplyStep(step); err != nil {
			result.Failed++
			result.Results = append(result.Results, StepResult{Index: i, OK: false, Error: err.Error()})
			continue
		}
		result.Applied++
		result.Results = append(result.Results, StepResult{Index: i, OK: true})
	}

	if result.Applied > 0 {
		if err := doc.SetTree(ContentField, tree); err != nil {
			return ApplyStepsResult{}, err
		}
	}
	return result, nil
}
