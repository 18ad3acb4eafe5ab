package changeset

import (
	"draftroom/api/internal/doctree"
)

// Extract diffs oldDoc against newDoc into a changeset. The diff is
// computed on the flattened text: the longest common prefix and suffix
// bound a single contiguous changed region, emitted as one change with
// its preceding context. window is the context length in runes; values
// below one fall back to DefaultContextWindow.
//
// Multi-region extraction would run this per structurally aligned node
// pair; the reapplication side already handles any number of changes.
func Extract(oldDoc, newDoc *doctree.Node, window int) Changeset {
	if window < 1 {
		window = DefaultContextWindow
	}
	oldText := []rune(oldDoc.Text())
	newText := []rune(newDoc.Text())

	prefix := commonPrefix(oldText, newText)
	suffix := commonSuffix(oldText, newText)
	// The suffix must not reach back into the prefix of either string.
	if prefix+suffix > len(oldText) {
		suffix = len(oldText) - prefix
	}
	if prefix+suffix > len(newText) {
		suffix = len(newText) - prefix
	}

	deleteLen := len(oldText) - prefix - suffix
	insertText := string(newText[prefix : len(newText)-suffix])
	if deleteLen == 0 && insertText == "" {
		return Changeset{}
	}

	contextStart := prefix - window
	if contextStart < 0 {
		contextStart = 0
	}
	change := Change{
		Position:     prefix,
		DeleteLength: deleteLen,
		InsertText:   insertText,
		Context:      string(oldText[contextStart:prefix]),
	}
	return Changeset{
		Changes:    []Change{change},
		Insertions: len([]rune(insertText)),
		Deletions:  deleteLen,
		Total:      1,
	}
}

func commonPrefix(a, b []rune) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func commonSuffix(a, b []rune) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}
