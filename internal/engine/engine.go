// Package engine provides the in-process replicated document instance
// backing one room. Each document holds named rich-text fields; updates
// are self-describing envelopes so a freshly created document can be
// brought up to date by replaying encoded state or the update log.
//
// Merge semantics are last-writer-wins per field. The envelope format is
// the contract; a CRDT-backed implementation can replace this one
// without touching callers.
package engine

import (
	"encoding/json"
	"fmt"
	"sync"

	"draftroom/api/internal/doctree"
)

// ErrDestroyed is returned by operations on a released document.
var ErrDestroyed = fmt.Errorf("document has been destroyed")

// update is the wire envelope carried by ApplyUpdate and EncodeState.
type update struct {
	Fields map[string]*doctree.Node `json:"fields"`
}

// Doc is one live replicated document. All methods are safe for
// concurrent use.
type Doc struct {
	mu        sync.Mutex
	fields    map[string]*doctree.Node
	log       [][]byte
	subs      map[int]func()
	nextSub   int
	destroyed bool
}

// New creates an empty document.
func New() *Doc {
	return &Doc{
		fields: make(map[string]*doctree.Node),
		subs:   make(map[int]func()),
	}
}

// ApplyUpdate merges an encoded update into the document, appends it to
// the catch-up log, and notifies subscribers.
func (d *Doc) ApplyUpdate(raw []byte) error {
	var u update
	if err := json.Unmarshal(raw, &u); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	if len(u.Fields) == 0 {
		return fmt.Errorf("decode update: no fields")
	}

	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return ErrDestroyed
	}
	for name, tree := range u.Fields {
		d.fields[name] = tree
	}
	logged := make([]byte, len(raw))
	copy(logged, raw)
	d.log = append(d.log, logged)
	subs := d.snapshotSubs()
	d.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return nil
}

// EncodeState encodes the full current state as a single update that
// ApplyUpdate on another document will accept.
func (d *Doc) EncodeState() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, ErrDestroyed
	}
	raw, err := json.Marshal(update{Fields: d.fields})
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return raw, nil
}

// Subscribe registers a change callback and returns its unsubscribe
// function. Callbacks fire after every applied update.
func (d *Doc) Subscribe(fn func()) (unsubscribe func()) {
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

// Tree returns a copy of the named field's tree, or an empty "doc" node
// if the field has never been written.
func (d *Doc) Tree(field string) (*doctree.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, ErrDestroyed
	}
	tree, ok := d.fields[field]
	if !ok {
		return &doctree.Node{Type: "doc"}, nil
	}
	return tree.Clone(), nil
}

// SetTree replaces the named field's tree. The write goes through the
// normal update path so the log grows and subscribers fire.
func (d *Doc) SetTree(field string, tree *doctree.Node) error {
	raw, err := json.Marshal(update{Fields: map[string]*doctree.Node{field: tree}})
	if err != nil {
		return fmt.Errorf("encode tree update: %w", err)
	}
	return d.ApplyUpdate(raw)
}

// Updates returns the applied update log, oldest first, for bringing a
// late-joining client up to date.
func (d *Doc) Updates() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.log))
	copy(out, d.log)
	return out
}

// Destroy releases the document. Further operations fail with
// ErrDestroyed; Destroy itself is idempotent.
func (d *Doc) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
	d.fields = nil
	d.log = nil
	d.subs = map[int]func(){}
}

// Destroyed reports whether Destroy has been called.
func (d *Doc) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

func (d *Doc) snapshotSubs() []func() {
	out := make([]func(), 0, len(d.subs))
	for _, fn := range d.subs {
		out = append(out, fn)
	}
	return out
}
