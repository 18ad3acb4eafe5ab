package changeset

import (
	"fmt"
	"reflect"
	"strings"

	"draftroom/api/internal/doctree"
)

// Structural diff kinds.
const (
	NodeAdded       = "node_added"
	NodeRemoved     = "node_removed"
	NodeTypeChanged = "node_type_changed"
	NodeModified    = "node_modified"
)

// NodeChange describes one structural difference between aligned
// top-level nodes. It exists for human review only and plays no part in
// reconciliation.
type NodeChange struct {
	Kind        string `json:"kind"`
	Index       int    `json:"index"`
	Description string `json:"description"`
}

// StructuralDiff walks both top-level node lists position by position
// and classifies each aligned pair.
func StructuralDiff(oldDoc, newDoc *doctree.Node) []NodeChange {
	oldNodes := oldDoc.Content
	newNodes := newDoc.Content

	var changes []NodeChange
	longest := len(oldNodes)
	if len(newNodes) > longest {
		longest = len(newNodes)
	}
	for i := 0; i < longest; i++ {
		switch {
		case i >= len(oldNodes):
			changes = append(changes, NodeChange{
				Kind:        NodeAdded,
				Index:       i,
				Description: fmt.Sprintf("added %s %q", newNodes[i].Type, snippet(newNodes[i])),
			})
		case i >= len(newNodes):
			changes = append(changes, NodeChange{
				Kind:        NodeRemoved,
				Index:       i,
				Description: fmt.Sprintf("removed %s %q", oldNodes[i].Type, snippet(oldNodes[i])),
			})
		case oldNodes[i].Type != newNodes[i].Type:
			changes = append(changes, NodeChange{
				Kind:        NodeTypeChanged,
				Index:       i,
				Description: fmt.Sprintf("%s became %s", oldNodes[i].Type, newNodes[i].Type),
			})
		case nodeModified(oldNodes[i], newNodes[i]):
			changes = append(changes, NodeChange{
				Kind:        NodeModified,
				Index:       i,
				Description: fmt.Sprintf("%s changed: %q", oldNodes[i].Type, snippet(newNodes[i])),
			})
		}
	}
	return changes
}

// Summary renders the structural changes as one reviewable string.
func Summary(changes []NodeChange) string {
	if len(changes) == 0 {
		return "no structural changes"
	}
	lines := make([]string, len(changes))
	for i, c := range changes {
		lines[i] = fmt.Sprintf("[%d] %s", c.Index, c.Description)
	}
	return strings.Join(lines, "\n")
}

func nodeModified(oldNode, newNode *doctree.Node) bool {
	if oldNode.Text() != newNode.Text() {
		return true
	}
	return !reflect.DeepEqual(oldNode.Attrs, newNode.Attrs)
}

func snippet(n *doctree.Node) string {
	text := []rune(n.Text())
	if len(text) > 40 {
		return string(text[:40]) + "…"
	}
	return string(text)
}
