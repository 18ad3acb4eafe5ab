package engine

import (
	"encoding/json"
	"errors"
	"testing"

	"draftroom/api/internal/doctree"
)

func contentUpdate(t *testing.T, text string) []byte {
	t.Helper()
	tree := &doctree.Node{
		Type: "doc",
		Content: []*doctree.Node{
			{Type: "paragraph", Content: []*doctree.Node{{Type: "text", TextContent: text}}},
		},
	}
	raw, err := json.Marshal(map[string]any{"fields": map[string]any{"content": tree}})
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	return raw
}

func TestApplyUpdateSetsField(t *testing.T) {
	doc := New()
	if err := doc.ApplyUpdate(contentUpdate(t, "hello")); err != nil {
		t.Fatalf("ApplyUpdate failed: %v", err)
	}
	tree, err := doc.Tree("content")
	if err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	if tree.Text() != "hello" {
		t.Errorf("expected %q, got %q", "hello", tree.Text())
	}
}

func TestApplyUpdateRejectsGarbage(t *testing.T) {
	doc := New()
	if err := doc.ApplyUpdate([]byte("not json")); err == nil {
		t.Error("expected error for malformed update")
	}
	if err := doc.ApplyUpdate([]byte(`{"fields":{}}`)); err == nil {
		t.Error("expected error for empty update")
	}
}

func TestEncodeStateRoundTrip(t *testing.T) {
	source := New()
	if err := source.ApplyUpdate(contentUpdate(t, "round trip")); err != nil {
		t.Fatalf("ApplyUpdate failed: %v", err)
	}
	state, err := source.EncodeState()
	if err != nil {
		t.Fatalf("EncodeState failed: %v", err)
	}

	target := New()
	if err := target.ApplyUpdate(state); err != nil {
		t.Fatalf("ApplyUpdate of encoded state failed: %v", err)
	}
	tree, err := target.Tree("content")
	if err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	if tree.Text() != "round trip" {
		t.Errorf("expected %q, got %q", "round trip", tree.Text())
	}
}

func TestSubscribeFiresOnEveryUpdate(t *testing.T) {
	doc := New()
	fired := 0
	unsubscribe := doc.Subscribe(func() { fired++ })

	_ = doc.ApplyUpdate(contentUpdate(t, "one"))
	_ = doc.ApplyUpdate(contentUpdate(t, "two"))
	if fired != 2 {
		t.Errorf("expected 2 notifications, got %d", fired)
	}

	unsubscribe()
	_ = doc.ApplyUpdate(contentUpdate(t, "three"))
	if fired != 2 {
		t.Errorf("expected no notification after unsubscribe, got %d", fired)
	}
}

func TestSetTreeGoesThroughUpdateLog(t *testing.T) {
	doc := New()
	fired := 0
	doc.Subscribe(func() { fired++ })

	tree := &doctree.Node{Type: "doc", Content: []*doctree.Node{
		{Type: "paragraph", Content: []*doctree.Node{{Type: "text", TextContent: "set"}}},
	}}
	if err := doc.SetTree("content", tree); err != nil {
		t.Fatalf("SetTree failed: %v", err)
	}
	if fired != 1 {
		t.Errorf("expected observer to fire, got %d", fired)
	}
	if len(doc.Updates()) != 1 {
		t.Errorf("expected 1 logged update, got %d", len(doc.Updates()))
	}
}

func TestTreeOfUnknownFieldIsEmptyDoc(t *testing.T) {
	doc := New()
	tree, err := doc.Tree("content")
	if err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	if tree.Type != "doc" || tree.Text() != "" {
		t.Errorf("expected empty doc node, got %+v", tree)
	}
}

func TestDestroy(t *testing.T) {
	doc := New()
	_ = doc.ApplyUpdate(contentUpdate(t, "bye"))
	doc.Destroy()

	if !doc.Destroyed() {
		t.Error("expected Destroyed to report true")
	}
	if err := doc.ApplyUpdate(contentUpdate(t, "late")); !errors.Is(err, ErrDestroyed) {
		t.Errorf("expected ErrDestroyed, got %v", err)
	}
	if _, err := doc.EncodeState(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("expected ErrDestroyed, got %v", err)
	}
	doc.Destroy() // idempotent
}
