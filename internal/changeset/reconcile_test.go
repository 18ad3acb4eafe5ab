package changeset

import (
	"testing"
)

func TestApplyToUnchangedBaseline(t *testing.T) {
	baseline := textDoc("hello world")
	proposed := textDoc("hello there")
	cs := Extract(baseline, proposed, 10)

	merged, report, err := Apply(cs, textDoc("hello world"))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if merged.Text() != "hello there" {
		t.Errorf("expected %q, got %q", "hello there", merged.Text())
	}
	if len(report.Applied) != 1 || report.Applied[0].Method != AnchorExact {
		t.Errorf("expected one exact anchor, got %+v", report)
	}
	if report.Fallbacks != 0 {
		t.Errorf("expected no fallbacks, got %d", report.Fallbacks)
	}
}

func TestApplyToDivergedDocument(t *testing.T) {
	// The spec's determinism case: the live document gained a suffix
	// after the changeset was computed.
	cs := Extract(textDoc("hello world"), textDoc("hello there"), 10)

	merged, report, err := Apply(cs, textDoc("hello world, extra"))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if merged.Text() != "hello there, extra" {
		t.Errorf("expected %q, got %q", "hello there, extra", merged.Text())
	}
	if report.Fallbacks != 0 {
		t.Errorf("expected no fallbacks, got %d", report.Fallbacks)
	}
}

func TestApplyContextSearch(t *testing.T) {
	// Text was prepended, so the original offset is stale and the
	// anchor must be found by scanning for the context.
	cs := Extract(textDoc("hello world"), textDoc("hello there"), 10)

	merged, report, err := Apply(cs, textDoc(">> hello world"))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if merged.Text() != ">> hello there" {
		t.Errorf("expected %q, got %q", ">> hello there", merged.Text())
	}
	if report.Applied[0].Method != AnchorContext {
		t.Errorf("expected context anchor, got %q", report.Applied[0].Method)
	}
	if report.Applied[0].AnchoredAt != 9 {
		t.Errorf("expected anchor at 9, got %d", report.Applied[0].AnchoredAt)
	}
}

func TestApplyFallbackClamp(t *testing.T) {
	// Concurrent edits removed the context entirely; placement degrades
	// to a clamped best effort, recorded in the report.
	cs := Changeset{Changes: []Change{{
		Position:     50,
		DeleteLength: 0,
		InsertText:   "!",
		Context:      "vanished",
	}}, Total: 1}

	merged, report, err := Apply(cs, textDoc("tiny"))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if merged.Text() != "tiny!" {
		t.Errorf("expected %q, got %q", "tiny!", merged.Text())
	}
	if report.Fallbacks != 1 || report.Applied[0].Method != AnchorFallback {
		t.Errorf("expected fallback placement, got %+v", report)
	}
}

func TestApplyFallbackClampsDeleteLength(t *testing.T) {
	cs := Changeset{Changes: []Change{{
		Position:     2,
		DeleteLength: 100,
		InsertText:   "X",
		Context:      "gone",
	}}, Total: 1}

	merged, _, err := Apply(cs, textDoc("abcd"))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if merged.Text() != "abX" {
		t.Errorf("expected %q, got %q", "abX", merged.Text())
	}
}

func TestApplyDescendingOrder(t *testing.T) {
	// Two changes against "one two three": editing "three" first keeps
	// the offsets of the "one" edit valid.
	cs := Changeset{Changes: []Change{
		{Position: 0, DeleteLength: 3, InsertText: "ONE", Context: ""},
		{Position: 8, DeleteLength: 5, InsertText: "THREE", Context: "one two "},
	}, Total: 2}

	merged, report, err := Apply(cs, textDoc("one two three"))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if merged.Text() != "ONE two THREE" {
		t.Errorf("expected %q, got %q", "ONE two THREE", merged.Text())
	}
	if len(report.Applied) != 2 {
		t.Fatalf("expected 2 applied changes, got %d", len(report.Applied))
	}
	if report.Applied[0].Change.Position != 8 {
		t.Errorf("expected the higher-offset change first, got %+v", report.Applied[0])
	}
}

func TestApplyEmptyChangesetIsIdentity(t *testing.T) {
	target := textDoc("untouched")
	merged, report, err := Apply(Changeset{}, target)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if merged.Text() != "untouched" || len(report.Applied) != 0 {
		t.Errorf("expected identity, got %q %+v", merged.Text(), report)
	}
	// The input tree must not be mutated.
	if target.Text() != "untouched" {
		t.Errorf("Apply mutated its input")
	}
}
