package ws

// registry owns the bidirectional user/connection mapping. It is not safe
// for concurrent use on its own; the Hub serializes every access.
type registry struct {
	// user_id -> connection_id, at most one entry per user. A reconnecting
	// user overwrites the previous entry (last writer wins).
	userConns map[string]string
	// connection_id -> client. The client carries the Identity.
	conns map[string]*Client
}

func newRegistry() *registry {
	return &registry{
		userConns: make(map[string]string),
		conns:     make(map[string]*Client),
	}
}

func (r *registry) add(c *Client) {
	r.userConns[c.Identity.UserID] = c.ID
	r.conns[c.ID] = c
}

// remove prunes both mappings for a disconnecting client. The forward entry
// is deleted unconditionally, so an older socket of a reconnected user also
// drops the newer mapping.
func (r *registry) remove(c *Client) {
	delete(r.userConns, c.Identity.UserID)
	delete(r.conns, c.ID)
}

func (r *registry) byUser(userID string) (*Client, bool) {
	id, ok := r.userConns[userID]
	if !ok {
		return nil, false
	}
	c, ok := r.conns[id]
	return c, ok
}

func (r *registry) byConn(connID string) (*Client, bool) {
	c, ok := r.conns[connID]
	return c, ok
}

func (r *registry) size() int { return len(r.conns) }

// roomManager owns org-scoped membership sets of live connections. Rooms are
// created lazily on first join and deleted when the last member leaves, so
// "no room" and "empty room" are indistinguishable to callers.
type roomManager struct {
	rooms map[string]map[string]struct{} // org_id -> set of connection ids
}

func newRoomManager() *roomManager {
	return &roomManager{rooms: make(map[string]map[string]struct{})}
}

func (m *roomManager) join(orgID, connID string) {
	members, ok := m.rooms[orgID]
	if !ok {
		members = make(map[string]struct{})
		m.rooms[orgID] = members
	}
	members[connID] = struct{}{}
}

func (m *roomManager) leave(orgID, connID string) {
	members, ok := m.rooms[orgID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(m.rooms, orgID)
	}
}

// members returns a snapshot of connection ids, nil when no room exists.
func (m *roomManager) members(orgID string) []string {
	members, ok := m.rooms[orgID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

func (m *roomManager) count() int { return len(m.rooms) }

func (m *roomManager) counts() map[string]int {
	out := make(map[string]int, len(m.rooms))
	for org, members := range m.rooms {
		out[org] = len(members)
	}
	return out
}
