package ws

import (
	"context"
	"sync"
	"time"

	"github.com/udxhq/udx-backend/internal/apperr"
)

// pollSession is the HTTP long-poll fallback for clients that cannot hold a
// websocket. It shares the Hub and the event router with the socket path;
// only the drain side differs. Sessions that stop polling are reaped, since
// the transport has no close signal of its own.
type pollSession struct {
	client   *Client
	lastSeen time.Time
	dispatch sync.Mutex // keeps per-connection event order for concurrent emits
}

type pollManager struct {
	srv  *Server
	wait time.Duration
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[string]*pollSession
	stop     chan struct{}
	stopOnce sync.Once
}

func newPollManager(srv *Server, wait, ttl time.Duration) *pollManager {
	m := &pollManager{
		srv:      srv,
		wait:     wait,
		ttl:      ttl,
		sessions: make(map[string]*pollSession),
		stop:     make(chan struct{}),
	}
	go m.reap()
	return m
}

func (m *pollManager) add(c *Client) {
	m.mu.Lock()
	m.sessions[c.ID] = &pollSession{client: c, lastSeen: time.Now()}
	m.mu.Unlock()
}

func (m *pollManager) touch(sessionID string) (*pollSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if ok {
		sess.lastSeen = time.Now()
	}
	return sess, ok
}

func (m *pollManager) remove(sessionID string) (*Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	delete(m.sessions, sessionID)
	return sess.client, true
}

func (m *pollManager) reap() {
	interval := m.ttl / 2
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-m.ttl)
			m.mu.Lock()
			var expired []*Client
			for id, sess := range m.sessions {
				if sess.lastSeen.Before(cutoff) {
					delete(m.sessions, id)
					expired = append(expired, sess.client)
				}
			}
			m.mu.Unlock()
			for _, c := range expired {
				m.srv.log.Infow("poll session expired", "user_id", c.Identity.UserID, "conn_id", c.ID)
				m.srv.drop(c)
			}
		case <-m.stop:
			return
		}
	}
}

func (m *pollManager) close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.Lock()
	var open []*Client
	for id, sess := range m.sessions {
		delete(m.sessions, id)
		open = append(open, sess.client)
	}
	m.mu.Unlock()
	for _, c := range open {
		m.srv.drop(c)
	}
}

// ConnectPoll runs the auth gate for the polling transport and opens a
// session backed by the same hub as the websocket path. Returns the session
// id used by the other poll endpoints.
func (s *Server) ConnectPoll(token string) (sessionID, userID string, err error) {
	identity, err := s.authenticate(token)
	if err != nil {
		return "", "", err
	}
	c := newClient(identity, s.log)
	s.admit(c)
	s.polls.add(c)
	return c.ID, identity.UserID, nil
}

// PollEvents blocks until at least one outbound event is queued (or the wait
// window passes), then drains whatever else is pending without blocking.
func (s *Server) PollEvents(ctx context.Context, sessionID string) ([]Envelope, error) {
	sess, ok := s.polls.touch(sessionID)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	c := sess.client
	out := []Envelope{}
	timer := time.NewTimer(s.polls.wait)
	defer timer.Stop()
	select {
	case env := <-c.out:
		out = append(out, env)
	case <-timer.C:
		return out, nil
	case <-c.done:
		return out, apperr.ErrNotFound
	case <-ctx.Done():
		return out, nil
	}
	for {
		select {
		case env := <-c.out:
			out = append(out, env)
		default:
			return out, nil
		}
	}
}

// EmitPoll feeds an inbound event from the polling transport into the event
// router.
func (s *Server) EmitPoll(sessionID string, env Envelope) error {
	sess, ok := s.polls.touch(sessionID)
	if !ok {
		return apperr.ErrNotFound
	}
	sess.dispatch.Lock()
	defer sess.dispatch.Unlock()
	s.router.Dispatch(sess.client, env)
	return nil
}

// DisconnectPoll closes a poll session and runs the normal disconnect
// transition.
func (s *Server) DisconnectPoll(sessionID string) error {
	c, ok := s.polls.remove(sessionID)
	if !ok {
		return apperr.ErrNotFound
	}
	s.drop(c)
	return nil
}
