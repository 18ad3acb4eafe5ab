package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"draftroom/api/internal/doctree"
	"draftroom/api/internal/engine"
	"draftroom/api/internal/reconcile"
	"draftroom/api/internal/room"
	"draftroom/api/internal/session"
)

const (
	testDraftID   = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	testVersionID = "550e8400-e29b-41d4-a716-446655440000"
)

type nullSnapshotStore struct{}

func (nullSnapshotStore) LoadInitialState(context.Context, string, string) ([]byte, error) {
	return nil, fmt.Errorf("no snapshot")
}

func (nullSnapshotStore) SaveSnapshot(context.Context, string, string, string, string) error {
	return nil
}

type fakeRewriter struct {
	rewriteFn func(doc *doctree.Node) (*doctree.Node, error)
}

func (f *fakeRewriter) Rewrite(_ context.Context, doc *doctree.Node) (*doctree.Node, error) {
	return f.rewriteFn(doc)
}

func textDoc(text string) *doctree.Node {
	return &doctree.Node{Type: "doc", Content: []*doctree.Node{
		{Type: "paragraph", Content: []*doctree.Node{{Type: "text", TextContent: text}}},
	}}
}

func newTestServer(t *testing.T) (*HTTPServer, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(nullSnapshotStore{}, time.Second)
	rewriter := &fakeRewriter{rewriteFn: func(doc *doctree.Node) (*doctree.Node, error) {
		return textDoc(strings.ReplaceAll(doc.Text(), "world", "there")), nil
	}}
	reconciler := reconcile.NewService(rewriter, reconcile.NewMemoryStore(time.Minute), 10)
	service := New(sessions, reconciler, nil)
	return NewHTTPServer(service, nil, "*"), sessions
}

func postJSON(t *testing.T, server *HTTPServer, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestGenerateApproveRoundTrip(t *testing.T) {
	server, _ := newTestServer(t)

	rr := postJSON(t, server, "/changeset/generate/"+testDraftID, map[string]any{
		"document": textDoc("hello world"),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("generate: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var generated struct {
		ChangesetID string `json:"changesetId"`
		Preview     string `json:"preview"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &generated); err != nil {
		t.Fatalf("parse generate response: %v", err)
	}
	if generated.ChangesetID == "" {
		t.Fatal("expected a changeset id")
	}
	if generated.Preview != "hello there" {
		t.Errorf("expected preview %q, got %q", "hello there", generated.Preview)
	}

	rr = postJSON(t, server, "/changeset/approve/"+generated.ChangesetID, map[string]any{
		"document": textDoc("hello world, extra"),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var approved struct {
		DocumentChanged bool          `json:"documentChanged"`
		Merged          *doctree.Node `json:"mergedDoc"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &approved); err != nil {
		t.Fatalf("parse approve response: %v", err)
	}
	if !approved.DocumentChanged {
		t.Error("expected documentChanged=true")
	}
	if approved.Merged.Text() != "hello there, extra" {
		t.Errorf("expected merged %q, got %q", "hello there, extra", approved.Merged.Text())
	}
}

func TestGenerateRejectsBadDraftID(t *testing.T) {
	server, _ := newTestServer(t)
	rr := postJSON(t, server, "/changeset/generate/not-a-uuid", map[string]any{
		"document": textDoc("hello"),
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestGenerateRequiresDocument(t *testing.T) {
	server, _ := newTestServer(t)
	rr := postJSON(t, server, "/changeset/generate/"+testDraftID, map[string]any{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestApproveUnknownChangeset(t *testing.T) {
	server, _ := newTestServer(t)
	rr := postJSON(t, server, "/changeset/approve/chg_unknown", map[string]any{
		"document": textDoc("hello"),
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestApplyStepsBatch(t *testing.T) {
	server, sessions := newTestServer(t)
	id, err := room.New(testDraftID, testVersionID)
	if err != nil {
		t.Fatalf("room id: %v", err)
	}
	doc := engine.New()
	if err := sessions.Register(id, doc); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := doc.SetTree(ContentField, textDoc("hello world")); err != nil {
		t.Fatalf("SetTree failed: %v", err)
	}

	rr := postJSON(t, server, "/"+testDraftID+"/"+testVersionID+"/apply", map[string]any{
		"steps": []map[string]any{
			{"type": "replace_text", "position": 0, "deleteLength": 5, "insertText": "howdy"},
			{"type": "teleport"}, // unknown step kind, skipped
			{"type": "set_attr", "path": []int{0}, "name": "align", "value": "center"},
		},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result ApplyStepsResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if result.Applied != 2 || result.Failed != 1 {
		t.Errorf("expected 2 applied / 1 failed, got %+v", result)
	}
	if result.Results[1].OK || result.Results[1].Error == "" {
		t.Errorf("expected per-step error for the skipped step, got %+v", result.Results[1])
	}

	tree, err := doc.Tree(ContentField)
	if err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	if tree.Text() != "howdy world" {
		t.Errorf("expected %q, got %q", "howdy world", tree.Text())
	}
}

func TestApplyStepsUnregisteredRoom(t *testing.T) {
	server, _ := newTestServer(t)
	rr := postJSON(t, server, "/"+testDraftID+"/"+testVersionID+"/apply", map[string]any{
		"steps": []map[string]any{{"type": "replace_text", "insertText": "x"}},
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestApplyStepsRejectsBadRoomID(t *testing.T) {
	server, _ := newTestServer(t)
	rr := postJSON(t, server, "/not-a-uuid/"+testVersionID+"/apply", map[string]any{
		"steps": []map[string]any{{"type": "replace_text", "insertText": "x"}},
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}
