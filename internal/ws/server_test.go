package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/udxhq/udx-backend/internal/apperr"
	"github.com/udxhq/udx-backend/internal/auth"
)

type stubVerifier struct {
	identities map[string]auth.Identity
}

func (v stubVerifier) Verify(token string) (auth.Identity, error) {
	id, ok := v.identities[token]
	if !ok {
		return auth.Identity{}, errors.New("invalid token")
	}
	return id, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(Options{
		Verifier: stubVerifier{identities: map[string]auth.Identity{
			"t1": {UserID: "u1", OrgID: "orgA"},
			"t2": {UserID: "u2", OrgID: "orgA"},
			"t3": {UserID: "u3"},
		}},
		Logger:         testLogger(),
		PollWait:       50 * time.Millisecond,
		PollSessionTTL: 10 * time.Second,
	})
	t.Cleanup(s.Close)
	return s
}

func connect(t *testing.T, s *Server, token string) string {
	t.Helper()
	sessionID, _, err := s.ConnectPoll(token)
	require.NoError(t, err)
	return sessionID
}

func poll(t *testing.T, s *Server, sessionID string) []Envelope {
	t.Helper()
	events, err := s.PollEvents(context.Background(), sessionID)
	require.NoError(t, err)
	return events
}

func emit(t *testing.T, s *Server, sessionID, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, s.EmitPoll(sessionID, Envelope{Event: event, Data: raw}))
}

func TestConnectEmitsAuthenticated(t *testing.T) {
	s := newTestServer(t)
	s1 := connect(t, s, "t1")

	events := poll(t, s, s1)
	require.Len(t, events, 1)
	require.Equal(t, EventAuthenticated, events[0].Event)
	var payload AuthenticatedPayload
	decodeData(t, events[0], &payload)
	require.Equal(t, "authentication-successful", payload.Message)
	require.Equal(t, "u1", payload.UserID)

	stats := s.Stats()
	require.Equal(t, 1, stats.TotalConnections)
	require.Equal(t, map[string]int{"orgA": 1}, stats.OrgConnections)
}

func TestMissingTokenRejectedWithoutSideEffects(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.ConnectPoll("")
	require.ErrorIs(t, err, apperr.ErrMissingToken)

	stats := s.Stats()
	require.Zero(t, stats.TotalConnections)
	require.Zero(t, stats.OrgRooms)
}

func TestInvalidTokenRejected(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.ConnectPoll("bogus")
	require.ErrorIs(t, err, apperr.ErrAuthFailed)
	require.Zero(t, s.Stats().TotalConnections)
}

func TestOrgMessageBroadcastExcludesSender(t *testing.T) {
	s := newTestServer(t)
	s1 := connect(t, s, "t1")
	s2 := connect(t, s, "t2")
	poll(t, s, s1)
	poll(t, s, s2)

	emit(t, s, s1, EventOrgMessage, map[string]string{"message": "hi"})

	events := poll(t, s, s2)
	require.Len(t, events, 1)
	require.Equal(t, EventOrgMessage, events[0].Event)
	var msg OrgMessage
	decodeData(t, events[0], &msg)
	require.Equal(t, "message", msg.Type)
	require.Equal(t, "org:orgA", msg.Room)
	require.Equal(t, EventOrgMessage, msg.Event)
	require.Equal(t, "hi", msg.Data.Message)
	require.Equal(t, "u1", msg.Data.Sender.UserID)
	require.NotEmpty(t, msg.Data.Timestamp)

	// sender is excluded
	require.Empty(t, poll(t, s, s1))
}

func TestOrgMessageCustomType(t *testing.T) {
	s := newTestServer(t)
	s1 := connect(t, s, "t1")
	s2 := connect(t, s, "t2")
	poll(t, s, s1)
	poll(t, s, s2)

	emit(t, s, s1, EventOrgMessage, map[string]string{"message": "ops", "type": "alert"})

	events := poll(t, s, s2)
	require.Len(t, events, 1)
	var msg OrgMessage
	decodeData(t, events[0], &msg)
	require.Equal(t, "alert", msg.Type)
}

func TestOrgMessageWithoutOrgRepliesError(t *testing.T) {
	s := newTestServer(t)
	s3 := connect(t, s, "t3")
	poll(t, s, s3)

	emit(t, s, s3, EventOrgMessage, map[string]string{"message": "hi"})

	events := poll(t, s, s3)
	require.Len(t, events, 1)
	require.Equal(t, EventError, events[0].Event)
	var payload ErrorPayload
	decodeData(t, events[0], &payload)
	require.Equal(t, "User not in any organization", payload.Message)
}

func TestSendToOrgIncludesEveryMember(t *testing.T) {
	s := newTestServer(t)
	s1 := connect(t, s, "t1")
	s2 := connect(t, s, "t2")
	poll(t, s, s1)
	poll(t, s, s2)

	s.SendToOrg("orgA", "announce", map[string]int{"x": 1})

	for _, session := range []string{s1, s2} {
		events := poll(t, s, session)
		require.Len(t, events, 1)
		require.Equal(t, "announce", events[0].Event)
	}
}

func TestSendToUserUnknownIsSilent(t *testing.T) {
	s := newTestServer(t)
	s1 := connect(t, s, "t1")
	poll(t, s, s1)
	before := s.Stats()

	s.SendToUser("ghost", "ping", map[string]int{})

	require.Empty(t, poll(t, s, s1))
	require.Equal(t, before, s.Stats())
}

func TestDisconnectNotifiesRemainingMembers(t *testing.T) {
	s := newTestServer(t)
	s1 := connect(t, s, "t1")
	s2 := connect(t, s, "t2")
	poll(t, s, s1)
	poll(t, s, s2)

	require.NoError(t, s.DisconnectPoll(s1))

	events := poll(t, s, s2)
	require.Len(t, events, 1)
	require.Equal(t, EventUserStatus, events[0].Event)
	var status UserStatus
	decodeData(t, events[0], &status)
	require.Equal(t, "u1", status.UserID)
	require.False(t, status.LoggedIn)

	stats := s.Stats()
	require.Equal(t, 1, stats.TotalConnections)
	require.Equal(t, map[string]int{"orgA": 1}, stats.OrgConnections)
}

func TestLastMemberDisconnectDeletesRoom(t *testing.T) {
	s := newTestServer(t)
	s1 := connect(t, s, "t1")
	poll(t, s, s1)

	require.NoError(t, s.DisconnectPoll(s1))

	stats := s.Stats()
	require.Zero(t, stats.TotalConnections)
	require.Zero(t, stats.OrgRooms)
	require.Empty(t, stats.OrgConnections)

	// session is gone as well
	require.ErrorIs(t, s.DisconnectPoll(s1), apperr.ErrNotFound)
}

func TestUserStatusForwardedToOrg(t *testing.T) {
	s := newTestServer(t)
	s1 := connect(t, s, "t1")
	s2 := connect(t, s, "t2")
	poll(t, s, s1)
	poll(t, s, s2)

	emit(t, s, s1, EventUserStatus, map[string]bool{"logged_in": true})

	events := poll(t, s, s2)
	require.Len(t, events, 1)
	var status UserStatus
	decodeData(t, events[0], &status)
	require.Equal(t, "u1", status.UserID)
	require.True(t, status.LoggedIn)
	require.Empty(t, poll(t, s, s1))
}

func TestUserStatusWithoutOrgIsSilent(t *testing.T) {
	s := newTestServer(t)
	s3 := connect(t, s, "t3")
	poll(t, s, s3)

	emit(t, s, s3, EventUserStatus, map[string]bool{"logged_in": true})
	require.Empty(t, poll(t, s, s3))
}

func TestGetOnlineUsers(t *testing.T) {
	s := newTestServer(t)
	s1 := connect(t, s, "t1")
	s2 := connect(t, s, "t2")
	poll(t, s, s1)
	poll(t, s, s2)

	emit(t, s, s1, EventGetOnlineUsers, nil)

	events := poll(t, s, s1)
	require.Len(t, events, 1)
	require.Equal(t, EventOnlineUsers, events[0].Event)
	var payload OnlineUsersPayload
	decodeData(t, events[0], &payload)
	ids := make([]string, 0, len(payload.Users))
	for _, u := range payload.Users {
		ids = append(ids, u.UserID)
	}
	require.ElementsMatch(t, []string{"u1", "u2"}, ids)
	require.Empty(t, poll(t, s, s2))
}

func TestGetOnlineUsersWithoutOrgRepliesError(t *testing.T) {
	s := newTestServer(t)
	s3 := connect(t, s, "t3")
	poll(t, s, s3)

	emit(t, s, s3, EventGetOnlineUsers, nil)

	events := poll(t, s, s3)
	require.Len(t, events, 1)
	require.Equal(t, EventError, events[0].Event)
}

func TestUnknownEventIgnored(t *testing.T) {
	s := newTestServer(t)
	s1 := connect(t, s, "t1")
	poll(t, s, s1)

	emit(t, s, s1, "org:unknown", map[string]string{"x": "y"})
	require.Empty(t, poll(t, s, s1))
}

func TestHandlerPanicDoesNotKillConnection(t *testing.T) {
	s := newTestServer(t)
	s.router.Handle("boom", func(c *Client, _ json.RawMessage) {
		panic("handler bug")
	})
	s1 := connect(t, s, "t1")
	poll(t, s, s1)

	emit(t, s, s1, "boom", nil)

	// connection is still active and routable
	emit(t, s, s1, EventGetOnlineUsers, nil)
	events := poll(t, s, s1)
	require.Len(t, events, 1)
	require.Equal(t, EventOnlineUsers, events[0].Event)
}

func TestIdlePollSessionReaped(t *testing.T) {
	s := NewServer(Options{
		Verifier:       stubVerifier{identities: map[string]auth.Identity{"t1": {UserID: "u1", OrgID: "orgA"}}},
		Logger:         testLogger(),
		PollWait:       20 * time.Millisecond,
		PollSessionTTL: 150 * time.Millisecond,
	})
	t.Cleanup(s.Close)

	s1 := connect(t, s, "t1")
	require.Eventually(t, func() bool {
		return s.Stats().TotalConnections == 0
	}, 2*time.Second, 50*time.Millisecond)
	require.ErrorIs(t, s.EmitPoll(s1, Envelope{Event: EventGetOnlineUsers}), apperr.ErrNotFound)
}
