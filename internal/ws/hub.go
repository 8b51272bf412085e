package ws

import (
	"log"
	"sync"

	"github.com/samber/lo"

	"realtime-service/internal/identity"
	"realtime-service/internal/models"
)

// connectedUser aggregates one logical user's presence across devices.
// An entry exists iff at least one live connection references the user.
type connectedUser struct {
	username string
	connIDs  []string
}

// Hub is the authoritative in-process registry of live connections, the users
// behind them and the rooms they joined. Presence is global and best-effort:
// every register/unregister broadcasts the full online snapshot.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // connID -> client
	users   map[string]*connectedUser     // userID -> presence aggregate
	rooms   map[string]map[string]*Client // roomID -> connID -> client
	joined  map[string]map[string]bool    // connID -> set of roomIDs
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		users:   make(map[string]*connectedUser),
		rooms:   make(map[string]map[string]*Client),
		joined:  make(map[string]map[string]bool),
	}
}

// Register adds a connection to the registry and announces the new online
// snapshot to everyone. Idempotent per connection id.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		h.mu.Unlock()
		return
	}
	h.clients[c.ID] = c
	h.joined[c.ID] = make(map[string]bool)
	h.attachUserLocked(c.ID, c.Identity())
	targets, snapshot := h.allClientsLocked(), h.onlineSnapshotLocked()
	h.mu.Unlock()

	h.fanOut(targets, models.ServerEvent{Type: models.EventOnlineUsers, Payload: snapshot})
}

// Unregister retires a connection: membership in every joined room is dropped,
// and the user's presence entry is deleted the instant its connection set
// becomes empty. No-op for unknown connections.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	for roomID := range h.joined[c.ID] {
		h.leaveRoomLocked(c.ID, roomID)
	}
	delete(h.joined, c.ID)
	h.detachUserLocked(c.ID, c.Identity().UserID)
	targets, snapshot := h.allClientsLocked(), h.onlineSnapshotLocked()
	h.mu.Unlock()

	h.fanOut(targets, models.ServerEvent{Type: models.EventOnlineUsers, Payload: snapshot})
}

// IsRegistered reports whether a connection is still live. Used to re-validate
// state after calls into external collaborators.
func (h *Hub) IsRegistered(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connID]
	return ok
}

// UpdateIdentity applies a re-authentication result to a connection,
// re-keying the presence aggregate when the user id changed.
func (h *Hub) UpdateIdentity(c *Client, id identity.Identity) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		c.setIdentity(id)
		return
	}
	previous := c.Identity().UserID
	c.setIdentity(id)
	if previous != id.UserID {
		h.detachUserLocked(c.ID, previous)
	}
	h.attachUserLocked(c.ID, id)
	targets, snapshot := h.allClientsLocked(), h.onlineSnapshotLocked()
	h.mu.Unlock()

	h.fanOut(targets, models.ServerEvent{Type: models.EventOnlineUsers, Payload: snapshot})
}

// JoinRoom subscribes a connection to a room and announces the joiner to the
// members already there, never to the joiner itself. Joining an empty room id
// or a room the connection is already in is a silent no-op.
func (h *Hub) JoinRoom(c *Client, roomID string) {
	if roomID == "" {
		return
	}
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	if h.joined[c.ID][roomID] {
		h.mu.Unlock()
		return
	}
	others := lo.Values(h.rooms[roomID])
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][c.ID] = c
	h.joined[c.ID][roomID] = true
	h.mu.Unlock()

	id := c.Identity()
	h.fanOut(others, models.ServerEvent{
		Type:    models.EventUserJoined,
		Payload: models.RoomPresenceEvent{UserID: id.UserID, Username: id.Username, RoomID: roomID},
	})
}

// PresentUserIDs returns the user ids currently receiving events in a room.
// This is the authority the notification dispatcher queries to avoid
// double-notifying present users.
func (h *Hub) PresentUserIDs(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		if uid := c.Identity().UserID; uid != "" {
			ids = append(ids, uid)
		}
	}
	return lo.Uniq(ids)
}

// BroadcastToRoom delivers an event to every connection joined to a room,
// including the sender's other connections.
func (h *Hub) BroadcastToRoom(roomID string, event models.ServerEvent) {
	h.mu.RLock()
	targets := lo.Values(h.rooms[roomID])
	h.mu.RUnlock()
	h.fanOut(targets, event)
}

// BroadcastToRoomExcept delivers an event to every room member except one
// connection. Used for typing relays.
func (h *Hub) BroadcastToRoomExcept(roomID, exceptConnID string, event models.ServerEvent) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for connID, c := range h.rooms[roomID] {
		if connID != exceptConnID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	h.fanOut(targets, event)
}

// SendToUser delivers an event to every live connection of one user and
// returns how many connections it reached.
func (h *Hub) SendToUser(userID string, event models.ServerEvent) int {
	h.mu.RLock()
	var targets []*Client
	if entry, ok := h.users[userID]; ok {
		for _, connID := range entry.connIDs {
			if c, live := h.clients[connID]; live {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()
	h.fanOut(targets, event)
	return len(targets)
}

// ListOnline snapshots the online users.
func (h *Hub) ListOnline() []models.OnlineUser {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineSnapshotLocked()
}

// IsOnline reports whether a user has at least one live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.users[userID]
	return ok
}

func (h *Hub) attachUserLocked(connID string, id identity.Identity) {
	if id.UserID == "" {
		return
	}
	entry, ok := h.users[id.UserID]
	if !ok {
		entry = &connectedUser{username: id.Username}
		h.users[id.UserID] = entry
	}
	if !lo.Contains(entry.connIDs, connID) {
		entry.connIDs = append(entry.connIDs, connID)
	}
	// A placeholder display name is upgraded as soon as a better one shows up.
	if betterUsername(entry.username, id.Username) {
		entry.username = id.Username
	}
}

func (h *Hub) detachUserLocked(connID, userID string) {
	entry, ok := h.users[userID]
	if !ok {
		return
	}
	entry.connIDs = lo.Without(entry.connIDs, connID)
	if len(entry.connIDs) == 0 {
		delete(h.users, userID)
	}
}

func (h *Hub) leaveRoomLocked(connID, roomID string) {
	if members, ok := h.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) allClientsLocked() []*Client {
	return lo.Values(h.clients)
}

func (h *Hub) onlineSnapshotLocked() []models.OnlineUser {
	online := make([]models.OnlineUser, 0, len(h.users))
	for userID, entry := range h.users {
		online = append(online, models.OnlineUser{ID: userID, Username: entry.username})
	}
	return online
}

// fanOut writes an event to each target. A connection that fails to accept
// the write is closed and retired; delivery stays best-effort for the rest.
func (h *Hub) fanOut(targets []*Client, event models.ServerEvent) {
	for _, c := range targets {
		if err := c.Send(event); err != nil {
			log.Printf("websocket write error conn=%s: %v", c.ID, err)
			_ = c.Close()
			h.Unregister(c)
		}
	}
}

func betterUsername(current, candidate string) bool {
	if candidate == "" || candidate == identity.PlaceholderUsername {
		return false
	}
	return current == "" || current == identity.PlaceholderUsername
}
