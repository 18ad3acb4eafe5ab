// Package session owns the map of active rooms. It is the single
// authority for which rooms are live and the only component that loads
// or persists document bytes. Registration is idempotent, initial loads
// are single-flight per room, and rooms left empty are persisted and
// unloaded after a cancellable debounce window.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"draftroom/api/internal/engine"
	"draftroom/api/internal/room"
	"draftroom/api/internal/store"
)

// DefaultDebounce is the delay between a room becoming empty and its
// document being persisted and unloaded.
const DefaultDebounce = 30 * time.Second

// Errors surfaced to callers.
var (
	ErrNotRegistered = errors.New("room not registered")
	ErrShuttingDown  = errors.New("session manager is shutting down")
)

// Session is the in-memory record of one active room.
type Session struct {
	doc         *engine.Doc
	dirty       bool
	loaded      bool
	unsubscribe func()

	// persistTimer is the debounced persist-and-unload task; persistGen
	// is bumped on every arm/cancel so a timer body that lost the race
	// can tell and back out without double-persisting.
	persistTimer *time.Timer
	persistGen   uint64
}

type loadFlight struct {
	done chan struct{}
	err  error
}

// Manager serializes all lifecycle operations for every room. Construct
// one per process and inject it; there are no package-level singletons.
type Manager struct {
	mu       sync.Mutex
	sessions map[room.ID]*Session
	loads    map[room.ID]*loadFlight
	store    store.SnapshotStore
	debounce time.Duration
	closed   bool
}

// NewManager creates a session manager persisting through snapshots.
// A non-positive debounce falls back to DefaultDebounce.
func NewManager(snapshots store.SnapshotStore, debounce time.Duration) *Manager {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Manager{
		sessions: make(map[room.ID]*Session),
		loads:    make(map[room.ID]*loadFlight),
		store:    snapshots,
		debounce: debounce,
	}
}

// IsRegistered reports whether the room currently has a live session.
func (m *Manager) IsRegistered(id room.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

// Register makes the room active with the given document handle. The
// first call for a room stores the handle and attaches the dirty
// observer. A second call is a no-op that keeps the original handle and
// cancels any pending persist timer: that is the reconnect path, and the
// surviving session must look as if the disconnect never happened.
func (m *Manager) Register(id room.ID, doc *engine.Doc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrShuttingDown
	}
	if sess, ok := m.sessions[id]; ok {
		m.cancelPersistLocked(sess)
		return nil
	}
	m.registerLocked(id, doc)
	return nil
}

// registerLocked stores a new session and wires the update observer.
// Caller holds m.mu.
func (m *Manager) registerLocked(id room.ID, doc *engine.Doc) *Session {
	sess := &Session{doc: doc}
	sess.unsubscribe = doc.Subscribe(func() {
		m.markDirty(id)
	})
	m.sessions[id] = sess
	return sess
}

func (m *Manager) markDirty(id room.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		sess.dirty = true
	}
}

// LoadInitialState merges externally stored content into the document,
// exactly once per room. Concurrent callers share one in-flight fetch.
// A missing snapshot is a normal state (brand-new room) and a fetch
// failure is recoverable; both leave the document unchanged and are
// only logged.
func (m *Manager) LoadInitialState(ctx context.Context, id room.ID, doc *engine.Doc) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	if sess, ok := m.sessions[id]; ok && sess.loaded {
		m.mu.Unlock()
		return nil
	}
	if flight, ok := m.loads[id]; ok {
		m.mu.Unlock()
		select {
		case <-flight.done:
			return flight.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	flight := &loadFlight{done: make(chan struct{})}
	m.loads[id] = flight
	m.mu.Unlock()

	flight.err = m.fetchAndApply(ctx, id, doc)

	m.mu.Lock()
	delete(m.loads, id)
	if sess, ok := m.sessions[id]; ok && flight.err == nil {
		sess.loaded = true
	}
	m.mu.Unlock()
	close(flight.done)
	return flight.err
}

func (m *Manager) fetchAndApply(ctx context.Context, id room.ID, doc *engine.Doc) error {
	content, err := m.store.LoadInitialState(ctx, id.DraftID.String(), id.VersionID.String())
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("session: no snapshot for %s, starting empty", id)
		return nil
	}
	if err != nil {
		log.Printf("session: load failed for %s (continuing with empty document): %v", id, err)
		return nil
	}
	if err := doc.ApplyUpdate(content); err != nil {
		return fmt.Errorf("apply initial state for %s: %w", id, err)
	}
	// The document now matches the persisted state; the observer fired
	// during the apply must not leave the session dirty.
	m.mu.Lock()
	if sess, ok := m.sessions[id]; ok && sess.doc == doc {
		sess.dirty = false
	}
	m.mu.Unlock()
	return nil
}

// ApplyBinaryUpdate applies a replication update for callers that hold
// no live handle, creating the session on demand.
func (m *Manager) ApplyBinaryUpdate(id room.ID, raw []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	sess, ok := m.sessions[id]
	if !ok {
		sess = m.registerLocked(id, engine.New())
	}
	doc := sess.doc
	m.mu.Unlock()

	return doc.ApplyUpdate(raw)
}

// Get returns the room's live document handle. All document access from
// outside the manager goes through here.
func (m *Manager) Get(id room.ID) (*engine.Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	return sess.doc, nil
}

// SaveSnapshot encodes the room's current state and pushes it to the
// snapshot store. The dirty flag resets only on success; a store failure
// is logged and left for the next persist attempt, never surfaced to the
// editing path.
func (m *Manager) SaveSnapshot(ctx context.Context, id room.ID) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	doc := sess.doc
	m.mu.Unlock()

	if err := m.persist(ctx, id, doc); err != nil {
		log.Printf("session: persist failed for %s: %v", id, err)
		return nil
	}
	m.mu.Lock()
	if sess, ok := m.sessions[id]; ok && sess.doc == doc {
		sess.dirty = false
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) persist(ctx context.Context, id room.ID, doc *engine.Doc) error {
	content, err := doc.EncodeState()
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	checksum := store.Checksum(content)
	encoded := base64.StdEncoding.EncodeToString(content)
	if err := m.store.SaveSnapshot(ctx, id.DraftID.String(), id.VersionID.String(), encoded, checksum); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// OnDisconnect is the gateway's disconnect hook. Once the last client
// leaves, persistence is scheduled after the debounce window; a
// re-registration before the window elapses cancels it.
func (m *Manager) OnDisconnect(id room.ID, remainingClientCount int) {
	if remainingClientCount > 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok || m.closed {
		return
	}
	m.cancelPersistLocked(sess)
	gen := sess.persistGen
	sess.persistTimer = time.AfterFunc(m.debounce, func() {
		m.persistAndUnload(id, gen)
	})
}

// cancelPersistLocked stops any armed timer and bumps the generation so
// a body that already fired backs out. Caller holds m.mu.
func (m *Manager) cancelPersistLocked(sess *Session) {
	if sess.persistTimer != nil {
		sess.persistTimer.Stop()
		sess.persistTimer = nil
	}
	sess.persistGen++
}

// persistAndUnload is the debounce timer body: persist if dirty, then
// release the session. The generation check makes cancellation race-free
// even when the timer has already started executing.
func (m *Manager) persistAndUnload(id room.ID, gen uint64) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok || m.closed || sess.persistGen != gen {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, id)
	dirty := sess.dirty
	doc := sess.doc
	unsubscribe := sess.unsubscribe
	m.mu.Unlock()

	if dirty {
		if err := m.persist(context.Background(), id, doc); err != nil {
			log.Printf("session: persist on unload failed for %s: %v", id, err)
		}
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	doc.Destroy()
	log.Printf("session: unloaded %s", id)
}

// Shutdown cancels every pending timer, then synchronously persists and
// unregisters every remaining session. No session is silently dropped;
// persist failures are logged and the shutdown continues.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	m.closed = true
	remaining := make(map[room.ID]*Session, len(m.sessions))
	for id, sess := range m.sessions {
		m.cancelPersistLocked(sess)
		remaining[id] = sess
	}
	m.sessions = make(map[room.ID]*Session)
	m.mu.Unlock()

	for id, sess := range remaining {
		if sess.dirty {
			if err := m.persist(ctx, id, sess.doc); err != nil {
				log.Printf("session: shutdown persist failed for %s: %v", id, err)
			}
		}
		if sess.unsubscribe != nil {
			sess.unsubscribe()
		}
		sess.doc.Destroy()
	}
	log.Printf("session: shutdown complete, %d sessions unloaded", len(remaining))
}
