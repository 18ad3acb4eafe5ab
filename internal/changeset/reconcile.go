package changeset

import (
	"fmt"
	"sort"
	"strings"

	"draftroom/api/internal/doctree"
)

// Anchor resolution methods, recorded per applied change so callers can
// detect low-confidence merges.
const (
	AnchorExact    = "exact"
	AnchorContext  = "context"
	AnchorFallback = "fallback"
)

// AppliedChange reports where one change landed and how its anchor was
// resolved.
type AppliedChange struct {
	Change     Change `json:"change"`
	AnchoredAt int    `json:"anchoredAt"`
	Method     string `json:"method"`
}

// Report summarizes a reconciliation pass. Fallbacks counts best-effort
// placements whose context no longer existed in the target.
type Report struct {
	Applied   []AppliedChange `json:"applied"`
	Fallbacks int             `json:"fallbacks"`
}

// Apply reapplies a changeset computed against some baseline to target,
// which may have diverged from that baseline. Changes are applied in
// descending position order so higher-offset edits never invalidate the
// offsets of lower ones. Context-match failures are not errors; they are
// recorded in the report.
func Apply(cs Changeset, target *doctree.Node) (*doctree.Node, Report, error) {
	merged := target.Clone()
	changes := make([]Change, len(cs.Changes))
	copy(changes, cs.Changes)
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Position > changes[j].Position
	})

	var report Report
	for _, change := range changes {
		text := []rune(merged.Text())
		anchor, method := resolveAnchor(text, change)
		if method == AnchorFallback {
			report.Fallbacks++
		}

		deleteLen := change.DeleteLength
		if anchor+deleteLen > len(text) {
			deleteLen = len(text) - anchor
		}
		if err := merged.SpliceText(anchor, deleteLen, change.InsertText); err != nil {
			return nil, Report{}, fmt.Errorf("apply change at %d: %w", anchor, err)
		}
		report.Applied = append(report.Applied, AppliedChange{
			Change:     change,
			AnchoredAt: anchor,
			Method:     method,
		})
	}
	return merged, report, nil
}

// resolveAnchor locates a change in the target text: exact context match
// at the original position first, then the first occurrence of the
// context anywhere, then a clamped best-effort placement.
func resolveAnchor(text []rune, change Change) (int, string) {
	ctx := []rune(change.Context)
	pos := change.Position

	if pos >= len(ctx) && pos <= len(text) {
		if string(text[pos-len(ctx):pos]) == change.Context {
			return pos, AnchorExact
		}
	}
	if len(ctx) > 0 {
		if byteIdx := strings.Index(string(text), change.Context); byteIdx >= 0 {
			runeIdx := len([]rune(string(text)[:byteIdx]))
			return runeIdx + len(ctx), AnchorContext
		}
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(text) {
		pos = len(text)
	}
	return pos, AnchorFallback
}
