// Package doctree models rich-text documents as ProseMirror-style node
// trees and provides the text-level and structural transforms the
// changeset and reconciliation layers operate on.
package doctree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node is one node in a document tree. Leaf text lives in nodes with
// Type == "text"; everything else is a container identified by Type.
type Node struct {
	Type        string         `json:"type"`
	Attrs       map[string]any `json:"attrs,omitempty"`
	Content     []*Node        `json:"content,omitempty"`
	TextContent string         `json:"text,omitempty"`
	Marks       []Mark         `json:"marks,omitempty"`
}

// Mark is a text formatting annotation (bold, link, ...).
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Parse decodes a JSON document tree.
func Parse(raw []byte) (*Node, error) {
	var node Node
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("parse document tree: %w", err)
	}
	if node.Type == "" {
		return nil, fmt.Errorf("parse document tree: missing node type")
	}
	return &node, nil
}

// Encode marshals the tree back to JSON.
func (n *Node) Encode() ([]byte, error) {
	raw, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode document tree: %w", err)
	}
	return raw, nil
}

// Text flattens the tree to its plain text content, concatenating text
// leaves in document order. Offsets into the returned string are rune
// offsets and are what Change positions refer to.
func (n *Node) Text() string {
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	if n == nil {
		return
	}
	if n.Type == "text" {
		b.WriteString(n.TextContent)
		return
	}
	for _, child := range n.Content {
		child.writeText(b)
	}
}

// Clone returns a deep copy of the tree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Type: n.Type, TextContent: n.TextContent}
	if n.Attrs != nil {
		out.Attrs = make(map[string]any, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	if n.Marks != nil {
		out.Marks = make([]Mark, len(n.Marks))
		for i, m := range n.Marks {
			out.Marks[i] = Mark{Type: m.Type}
			if m.Attrs != nil {
				out.Marks[i].Attrs = make(map[string]any, len(m.Attrs))
				for k, v := range m.Attrs {
					out.Marks[i].Attrs[k] = v
				}
			}
		}
	}
	if n.Content != nil {
		out.Content = make([]*Node, len(n.Content))
		for i, child := range n.Content {
			out.Content[i] = child.Clone()
		}
	}
	return out
}

// leafRef addresses one text leaf together with the rune offset of its
// first character in the flattened document text.
type leafRef struct {
	node  *Node
	start int
}

func (n *Node) collectLeaves(offset int, leaves []leafRef) (int, []leafRef) {
	if n.Type == "text" {
		leaves = append(leaves, leafRef{node: n, start: offset})
		return offset + len([]rune(n.TextContent)), leaves
	}
	for _, child := range n.Content {
		offset, leaves = child.collectLeaves(offset, leaves)
	}
	return offset, leaves
}

// SpliceText deletes deleteLen runes starting at pos in the flattened
// text and inserts insert in their place, as one atomic transform. The
// edit may span multiple text leaves; the inserted text is placed in the
// leaf containing pos, inheriting its marks. Leaves emptied by the
// deletion are dropped from their parents.
func (n *Node) SpliceText(pos, deleteLen int, insert string) error {
	total, leaves := n.collectLeaves(0, nil)
	if pos < 0 || deleteLen < 0 || pos+deleteLen > total {
		return fmt.Errorf("splice out of range: pos=%d delete=%d len=%d", pos, deleteLen, total)
	}

	if len(leaves) == 0 {
		if insert == "" {
			return nil
		}
		// Empty document: grow a paragraph to hold the inserted text.
		n.Content = append(n.Content, &Node{
			Type:    "paragraph",
			Content: []*Node{{Type: "text", TextContent: insert}},
		})
		return nil
	}

	end := pos + deleteLen
	inserted := false
	for _, leaf := range leaves {
		runes := []rune(leaf.node.TextContent)
		leafEnd := leaf.start + len(runes)
		if leafEnd < pos || leaf.start > end {
			continue
		}
		from := clamp(pos-leaf.start, 0, len(runes))
		to := clamp(end-leaf.start, 0, len(runes))
		replacement := ""
		if !inserted && pos >= leaf.start && pos <= leafEnd {
			replacement = insert
			inserted = true
		}
		leaf.node.TextContent = string(runes[:from]) + replacement + string(runes[to:])
	}
	if !inserted && insert != "" {
		last := leaves[len(leaves)-1].node
		last.TextContent += insert
	}
	n.pruneEmptyText()
	return nil
}

func (n *Node) pruneEmptyText() {
	if n.Content == nil {
		return
	}
	kept := n.Content[:0]
	for _, child := range n.Content {
		child.pruneEmptyText()
		if child.Type == "text" && child.TextContent == "" {
			continue
		}
		kept = append(kept, child)
	}
	n.Content = kept
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
