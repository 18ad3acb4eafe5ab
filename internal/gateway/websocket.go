// Package gateway is the websocket entry point for collaborative
// editing. A connection registers its room with the session manager,
// replays the update log to catch the client up, relays incoming binary
// updates to room peers, and reports disconnects so the manager can
// schedule persistence.
package gateway

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"draftroom/api/internal/engine"
	"draftroom/api/internal/room"
	"draftroom/api/internal/session"
)

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(messageType int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, payload)
}

// Gateway tracks connected clients per room.
type Gateway struct {
	sessions *session.Manager
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[room.ID]map[*client]struct{}
}

// New creates a gateway backed by the session manager.
func New(sessions *session.Manager) *Gateway {
	return &Gateway{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rooms: make(map[room.ID]map[*client]struct{}),
	}
}

// ServeRoom handles one client connection for the addressed room.
func (g *Gateway) ServeRoom(w http.ResponseWriter, r *http.Request, draftID, versionID string) {
	id, err := room.New(draftID, versionID)
	if err != nil {
		http.Error(w, "room id must be two UUIDs", http.StatusBadRequest)
		return
	}

	// Register before upgrading: a reconnect must cancel the pending
	// persist timer even if the upgrade subsequently fails.
	doc := engine.New()
	if err := g.sessions.Register(id, doc); err != nil {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	live, err := g.sessions.Get(id)
	if err != nil {
		http.Error(w, "room is not registered", http.StatusInternalServerError)
		return
	}
	if live != doc {
		// The room was already registered; our handle was a spare.
		doc.Destroy()
	}
	if err := g.sessions.LoadInitialState(r.Context(), id, live); err != nil {
		log.Printf("gateway: initial load for %s: %v", id, err)
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("gateway: upgrade failed for %s: %v", id, err)
		g.sessions.OnDisconnect(id, g.clientCount(id))
		return
	}

	c := &client{conn: conn}
	g.addClient(id, c)
	log.Printf("gateway: client joined %s (%d connected)", id, g.clientCount(id))

	// Catch the late joiner up before relaying anything new.
	for _, update := range live.Updates() {
		if err := c.send(websocket.BinaryMessage, update); err != nil {
			log.Printf("gateway: catch-up write failed for %s: %v", id, err)
			break
		}
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if err := g.sessions.ApplyBinaryUpdate(id, payload); err != nil {
			log.Printf("gateway: rejected update for %s: %v", id, err)
			continue
		}
		g.broadcast(id, c, payload)
	}

	conn.Close()
	remaining := g.removeClient(id, c)
	log.Printf("gateway: client left %s (%d remaining)", id, remaining)
	g.sessions.OnDisconnect(id, remaining)
}

func (g *Gateway) addClient(id room.ID, c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.rooms[id]
	if !ok {
		set = make(map[*client]struct{})
		g.rooms[id] = set
	}
	set[c] = struct{}{}
}

func (g *Gateway) removeClient(id room.ID, c *client) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.rooms[id]
	delete(set, c)
	if len(set) == 0 {
		delete(g.rooms, id)
		return 0
	}
	return len(set)
}

func (g *Gateway) clientCount(id room.ID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms[id])
}

// broadcast relays an applied update to every other client in the room.
func (g *Gateway) broadcast(id room.ID, from *client, payload []byte) {
	g.mu.Lock()
	peers := make([]*client, 0, len(g.rooms[id]))
	for c := range g.rooms[id] {
		if c != from {
			peers = append(peers, c)
		}
	}
	g.mu.Unlock()

	for _, peer := range peers {
		if err := peer.send(websocket.BinaryMessage, payload); err != nil {
			log.Printf("gateway: relay write failed for %s: %v", id, err)
		}
	}
}
