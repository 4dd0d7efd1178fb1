package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/udxhq/udx-backend/internal/auth"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func recvEvent(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case env := <-c.out:
		return env
	case <-time.After(time.Second):
		t.Fatalf("no event received for %s", c.Identity.UserID)
		return Envelope{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case env := <-c.out:
		t.Fatalf("unexpected event %q for %s", env.Event, c.Identity.UserID)
	default:
	}
}

func decodeData(t *testing.T, env Envelope, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestHubRegisterJoinsOrgRoom(t *testing.T) {
	h := NewHub(testLogger())
	c := newClient(auth.Identity{UserID: "u1", OrgID: "orgA"}, testLogger())
	h.Register(c)

	require.Equal(t, []string{c.ID}, h.Members("orgA"))
	stats := h.Stats()
	require.Equal(t, 1, stats.TotalConnections)
	require.Equal(t, 1, stats.OrgRooms)
	require.Equal(t, map[string]int{"orgA": 1}, stats.OrgConnections)
}

func TestHubRegisterWithoutOrgJoinsNoRoom(t *testing.T) {
	h := NewHub(testLogger())
	c := newClient(auth.Identity{UserID: "u1"}, testLogger())
	h.Register(c)

	stats := h.Stats()
	require.Equal(t, 1, stats.TotalConnections)
	require.Zero(t, stats.OrgRooms)
}

func TestHubUnregisterCleansUpCompletely(t *testing.T) {
	h := NewHub(testLogger())
	c1 := newClient(auth.Identity{UserID: "u1", OrgID: "orgA"}, testLogger())
	c2 := newClient(auth.Identity{UserID: "u2", OrgID: "orgA"}, testLogger())
	h.Register(c1)
	h.Register(c2)

	remaining := h.Unregister(c1)
	require.Len(t, remaining, 1)
	require.Equal(t, "u2", remaining[0].Identity.UserID)
	require.Equal(t, []string{c2.ID}, h.Members("orgA"))

	remaining = h.Unregister(c2)
	require.Empty(t, remaining)
	require.Nil(t, h.Members("orgA"))

	stats := h.Stats()
	require.Zero(t, stats.TotalConnections)
	require.Zero(t, stats.OrgRooms)
	require.Empty(t, stats.OrgConnections)
}

func TestHubUnregisterTwiceIsSafe(t *testing.T) {
	h := NewHub(testLogger())
	c := newClient(auth.Identity{UserID: "u1", OrgID: "orgA"}, testLogger())
	h.Register(c)
	h.Unregister(c)
	require.Nil(t, h.Unregister(c))
	require.Zero(t, h.Stats().TotalConnections)
}

func TestHubReconnectLastWriterWins(t *testing.T) {
	h := NewHub(testLogger())
	first := newClient(auth.Identity{UserID: "u1", OrgID: "orgA"}, testLogger())
	second := newClient(auth.Identity{UserID: "u1", OrgID: "orgA"}, testLogger())
	h.Register(first)
	h.Register(second)

	require.True(t, h.SendToUser("u1", "ping", nil))
	recvEvent(t, second)
	assertNoEvent(t, first)

	// the stale connection disconnecting prunes the forward mapping too
	h.Unregister(first)
	require.False(t, h.SendToUser("u1", "ping", nil))
}

func TestHubSendToUserUnknownIsNoop(t *testing.T) {
	h := NewHub(testLogger())
	c := newClient(auth.Identity{UserID: "u1", OrgID: "orgA"}, testLogger())
	h.Register(c)
	before := h.Stats()

	require.False(t, h.SendToUser("ghost", "ping", map[string]int{"x": 1}))
	assertNoEvent(t, c)
	require.Equal(t, before, h.Stats())
}

func TestHubBroadcastOthersExcludesSender(t *testing.T) {
	h := NewHub(testLogger())
	c1 := newClient(auth.Identity{UserID: "u1", OrgID: "orgA"}, testLogger())
	c2 := newClient(auth.Identity{UserID: "u2", OrgID: "orgA"}, testLogger())
	c3 := newClient(auth.Identity{UserID: "u3", OrgID: "orgB"}, testLogger())
	h.Register(c1)
	h.Register(c2)
	h.Register(c3)

	h.BroadcastOthers("orgA", c1.ID, "hello", map[string]string{"msg": "hi"})
	assertNoEvent(t, c1)
	env := recvEvent(t, c2)
	require.Equal(t, "hello", env.Event)
	assertNoEvent(t, c3)
}

func TestHubBroadcastAllIncludesSender(t *testing.T) {
	h := NewHub(testLogger())
	c1 := newClient(auth.Identity{UserID: "u1", OrgID: "orgA"}, testLogger())
	c2 := newClient(auth.Identity{UserID: "u2", OrgID: "orgA"}, testLogger())
	h.Register(c1)
	h.Register(c2)

	h.BroadcastAll("orgA", "announce", map[string]int{"x": 1})
	require.Equal(t, "announce", recvEvent(t, c1).Event)
	require.Equal(t, "announce", recvEvent(t, c2).Event)
}

func TestHubBroadcastToMissingRoomIsNoop(t *testing.T) {
	h := NewHub(testLogger())
	before := h.Stats()
	h.BroadcastAll("nowhere", "announce", nil)
	h.BroadcastOthers("nowhere", "c1", "announce", nil)
	require.Equal(t, before, h.Stats())
}

func TestHubOnlineUsers(t *testing.T) {
	h := NewHub(testLogger())
	c1 := newClient(auth.Identity{UserID: "u1", OrgID: "orgA"}, testLogger())
	c2 := newClient(auth.Identity{UserID: "u2", OrgID: "orgA"}, testLogger())
	h.Register(c1)
	h.Register(c2)

	users := h.OnlineUsers("orgA")
	ids := []string{users[0].UserID, users[1].UserID}
	require.ElementsMatch(t, []string{"u1", "u2"}, ids)
	require.Empty(t, h.OnlineUsers("orgB"))
}
