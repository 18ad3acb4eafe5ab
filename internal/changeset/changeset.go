// Package changeset diffs two document trees into context-anchored text
// edits and reapplies those edits to a third, independently edited tree.
// Anchoring is by surrounding text, not raw offsets, so edits survive
// concurrent changes elsewhere in the document.
package changeset

// DefaultContextWindow is the number of runes of preceding text captured
// with each change and used to re-locate it later.
const DefaultContextWindow = 10

// Change is one text-level edit. Context holds the text immediately
// preceding Position in the document the diff was computed from.
type Change struct {
	Position     int    `json:"position"`
	DeleteLength int    `json:"deleteLength"`
	InsertText   string `json:"insertText"`
	Context      string `json:"context"`
}

// Changeset is an ordered sequence of changes plus summary counts:
// runes inserted, runes deleted, and the number of changes.
type Changeset struct {
	Changes    []Change `json:"changes"`
	Insertions int      `json:"insertions"`
	Deletions  int      `json:"deletions"`
	Total      int      `json:"total"`
}

// Empty reports whether the changeset carries no edits.
func (cs Changeset) Empty() bool {
	return len(cs.Changes) == 0
}
