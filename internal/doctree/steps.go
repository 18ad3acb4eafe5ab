package doctree

import (
	"fmt"
)

// Step kinds accepted by the batch apply endpoint.
const (
	StepReplaceText = "replace_text"
	StepSetAttr     = "set_attr"
	StepReplaceNode = "replace_node"
)

// Step is one pre-computed tree transform. Path addresses a node by
// child indexes from the root; text steps use flattened rune offsets.
type Step struct {
	Type         string `json:"type"`
	Position     int    `json:"position,omitempty"`
	DeleteLength int    `json:"deleteLength,omitempty"`
	InsertText   string `json:"insertText,omitempty"`
	Path         []int  `json:"path,omitempty"`
	Name         string `json:"name,omitempty"`
	Value        any    `json:"value,omitempty"`
	Node         *Node  `json:"node,omitempty"`
}

// ApplyStep applies one step to the tree in place. A failing step leaves
// the tree untouched so a batch can continue past it.
func (n *Node) ApplyStep(step Step) error {
	switch step.Type {
	case StepReplaceText:
		return n.SpliceText(step.Position, step.DeleteLength, step.InsertText)
	case StepSetAttr:
		target, err := n.nodeAt(step.Path)
		if err != nil {
			return err
		}
		if step.Name == "" {
			return fmt.Errorf("set_attr: attribute name is required")
		}
		if target.Attrs == nil {
			target.Attrs = make(map[string]any)
		}
		target.Attrs[step.Name] = step.Value
		return nil
	case StepReplaceNode:
		if step.Node == nil {
			return fmt.Errorf("replace_node: node is required")
		}
		if len(step.Path) == 0 {
			return fmt.Errorf("replace_node: cannot replace the document root")
		}
		parent, err := n.nodeAt(step.Path[:len(step.Path)-1])
		if err != nil {
			return err
		}
		idx := step.Path[len(step.Path)-1]
		if idx < 0 || idx >= len(parent.Content) {
			return fmt.Errorf("replace_node: index %d out of range", idx)
		}
		parent.Content[idx] = step.Node.Clone()
		return nil
	default:
		return fmt.Errorf("unknown step type %q", step.Type)
	}
}

func (n *Node) nodeAt(path []int) (*Node, error) {
	current := n
	for depth, idx := range path {
		if idx < 0 || idx >= len(current.Content) {
			return nil, fmt.Errorf("path index %d out of range at depth %d", idx, depth)
		}
		current = current.Content[idx]
	}
	return current, nil
}
