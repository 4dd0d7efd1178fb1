package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/udxhq/udx-backend/internal/metrics"
)

// Hub composes the connection registry and the org room manager under a
// single mutex, so every lifecycle transition and lookup is atomic with
// respect to every other one.
type Hub struct {
	mu    sync.RWMutex
	reg   *registry
	rooms *roomManager
	log   *zap.SugaredLogger
}

// Stats is the shape returned by the service-level stats API.
type Stats struct {
	TotalConnections int            `json:"totalConnections"`
	OrgRooms         int            `json:"orgRooms"`
	OrgConnections   map[string]int `json:"orgConnections"`
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		reg:   newRegistry(),
		rooms: newRoomManager(),
		log:   log,
	}
}

// Register admits an authenticated client. Both registry entries and the org
// room join are applied in one critical section, so no other transition can
// observe a registered-but-unjoined connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.reg.add(c)
	if c.Identity.HasOrg() {
		h.rooms.join(c.Identity.OrgID, c.ID)
	}
	h.mu.Unlock()
	metrics.ActiveConnections.Inc()
	h.log.Infow("client connected", "user_id", c.Identity.UserID, "conn_id", c.ID, "org_id", c.Identity.OrgID)
}

// Unregister removes the client from both maps and its org room, deleting
// the room when it empties, and returns the remaining room members so the
// caller can notify them. Safe to call for a client that was never
// registered or was already removed.
func (h *Hub) Unregister(c *Client) []*Client {
	h.mu.Lock()
	if _, ok := h.reg.byConn(c.ID); !ok {
		h.mu.Unlock()
		return nil
	}
	h.reg.remove(c)
	var remaining []*Client
	if c.Identity.HasOrg() {
		h.rooms.leave(c.Identity.OrgID, c.ID)
		for _, id := range h.rooms.members(c.Identity.OrgID) {
			if member, ok := h.reg.byConn(id); ok {
				remaining = append(remaining, member)
			}
		}
	}
	h.mu.Unlock()
	metrics.ActiveConnections.Dec()
	h.log.Infow("client disconnected", "user_id", c.Identity.UserID, "conn_id", c.ID)
	return remaining
}

// SendToUser resolves the user's live connection and delivers once,
// reporting whether a connection was found. Unknown or offline users are a
// silent no-op.
func (h *Hub) SendToUser(userID, event string, data any) bool {
	h.mu.RLock()
	c, ok := h.reg.byUser(userID)
	h.mu.RUnlock()
	if ok {
		c.Send(event, data)
	}
	return ok
}

// BroadcastOthers delivers to every member of the org room except the
// originating connection.
func (h *Hub) BroadcastOthers(orgID, senderConnID, event string, data any) {
	for _, c := range h.roomClients(orgID) {
		if c.ID == senderConnID {
			continue
		}
		c.Send(event, data)
	}
}

// BroadcastAll delivers to every member of the org room, sender included.
// Kept separate from BroadcastOthers on purpose: the event handlers exclude
// the sender, the service-level API does not.
func (h *Hub) BroadcastAll(orgID, event string, data any) {
	for _, c := range h.roomClients(orgID) {
		c.Send(event, data)
	}
}

func (h *Hub) roomClients(orgID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := h.rooms.members(orgID)
	out := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.reg.byConn(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// Members returns the connection ids currently in the org room, nil when the
// room does not exist.
func (h *Hub) Members(orgID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms.members(orgID)
}

// OnlineUsers resolves the org room membership to user identities.
func (h *Hub) OnlineUsers(orgID string) []OnlineUser {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := h.rooms.members(orgID)
	users := make([]OnlineUser, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.reg.byConn(id); ok {
			users = append(users, OnlineUser{UserID: c.Identity.UserID})
		}
	}
	return users
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{
		TotalConnections: h.reg.size(),
		OrgRooms:         h.rooms.count(),
		OrgConnections:   h.rooms.counts(),
	}
}
