package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/udxhq/udx-backend/internal/apperr"
	"github.com/udxhq/udx-backend/internal/auth"
	"github.com/udxhq/udx-backend/internal/metrics"
)

// AuditPublisher receives a copy of every delivered org message, keyed by
// org id. Delivery to the audit sink is best effort.
type AuditPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

// PresenceMirror reflects connect/disconnect transitions into an external
// store so other services can observe presence. Best effort; failures are
// logged and never affect the connection.
type PresenceMirror interface {
	Connected(ctx context.Context, id auth.Identity, connID string) error
	Disconnected(ctx context.Context, id auth.Identity, connID string) error
}

type Options struct {
	Verifier auth.Verifier
	Logger   *zap.SugaredLogger

	PingInterval   time.Duration
	WriteDeadline  time.Duration
	MaxMessageSize int64
	PollWait       time.Duration
	PollSessionTTL time.Duration

	Audit    AuditPublisher // optional
	Presence PresenceMirror // optional
}

// Server owns the realtime subsystem: auth gate, connection lifecycle, event
// routing and the fan-out primitives. One instance per process; all state is
// in memory and dies with it.
type Server struct {
	hub      *Hub
	router   *Router
	verifier auth.Verifier
	log      *zap.SugaredLogger

	pingInterval   time.Duration
	writeDeadline  time.Duration
	maxMessageSize int64

	audit    AuditPublisher
	presence PresenceMirror

	polls *pollManager
}

func NewServer(opts Options) *Server {
	if opts.PingInterval == 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.WriteDeadline == 0 {
		opts.WriteDeadline = 10 * time.Second
	}
	if opts.MaxMessageSize == 0 {
		opts.MaxMessageSize = 65536
	}
	if opts.PollWait == 0 {
		opts.PollWait = 20 * time.Second
	}
	if opts.PollSessionTTL == 0 {
		opts.PollSessionTTL = time.Minute
	}
	s := &Server{
		hub:            NewHub(opts.Logger),
		router:         NewRouter(opts.Logger),
		verifier:       opts.Verifier,
		log:            opts.Logger,
		pingInterval:   opts.PingInterval,
		writeDeadline:  opts.WriteDeadline,
		maxMessageSize: opts.MaxMessageSize,
		audit:          opts.Audit,
		presence:       opts.Presence,
	}
	s.polls = newPollManager(s, opts.PollWait, opts.PollSessionTTL)
	s.registerHandlers()
	return s
}

// Close stops the poll session reaper and drops any open poll sessions.
// Websocket connections are torn down by the HTTP server shutdown.
func (s *Server) Close() {
	s.polls.close()
}

// HandleWS is the websocket upgrade handler. The auth gate runs before any
// registry mutation; a failed handshake leaves no state behind and the
// client only ever sees a generic rejection.
func (s *Server) HandleWS() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			if t, err := auth.ParseBearerToken(conn.Headers("Authorization")); err == nil {
				token = t
			}
		}
		identity, err := s.authenticate(token)
		if err != nil {
			raw, _ := marshalData(ErrorPayload{Message: "Authentication failed"})
			_ = conn.WriteJSON(Envelope{Event: EventError, Data: raw})
			_ = conn.Close()
			return
		}

		c := newClient(identity, s.log)
		s.admit(c)
		go c.writePump(conn, s.pingInterval, s.writeDeadline)
		s.readLoop(c, conn)
		s.drop(c)
	}
}

// authenticate runs the identity verifier. The returned error is logged with
// full detail server-side; callers must surface only a generic failure.
func (s *Server) authenticate(token string) (auth.Identity, error) {
	if token == "" {
		metrics.AuthFailures.Inc()
		s.log.Errorw("websocket authentication failed", "error", apperr.ErrMissingToken)
		return auth.Identity{}, apperr.ErrMissingToken
	}
	identity, err := s.verifier.Verify(token)
	if err != nil {
		metrics.AuthFailures.Inc()
		s.log.Errorw("websocket authentication failed", "error", err)
		return auth.Identity{}, fmt.Errorf("%w: %v", apperr.ErrAuthFailed, err)
	}
	return identity, nil
}

// admit registers the connection (registry entries plus org room join, one
// atomic step) and confirms authentication to the client. No event handler
// runs for the connection before this returns.
func (s *Server) admit(c *Client) {
	s.hub.Register(c)
	if s.presence != nil {
		if err := s.presence.Connected(context.Background(), c.Identity, c.ID); err != nil {
			s.log.Warnw("presence mirror connect", "user_id", c.Identity.UserID, "error", err)
		}
	}
	c.Send(EventAuthenticated, AuthenticatedPayload{
		Message: "authentication-successful",
		UserID:  c.Identity.UserID,
	})
}

// drop runs the disconnect transition: remove from both maps and the org
// room, then tell the remaining members the user went offline.
func (s *Server) drop(c *Client) {
	remaining := s.hub.Unregister(c)
	for _, member := range remaining {
		member.Send(EventUserStatus, UserStatus{UserID: c.Identity.UserID, LoggedIn: false})
	}
	if s.presence != nil {
		if err := s.presence.Disconnected(context.Background(), c.Identity, c.ID); err != nil {
			s.log.Warnw("presence mirror disconnect", "user_id", c.Identity.UserID, "error", err)
		}
	}
	c.close()
}

func (s *Server) readLoop(c *Client, conn *websocket.Conn) {
	conn.SetReadLimit(s.maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		s.router.Dispatch(c, env)
	}
}

func (s *Server) registerHandlers() {
	s.router.Handle(EventOrgMessage, s.handleOrgMessage)
	s.router.Handle(EventUserStatus, s.handleUserStatus)
	s.router.Handle(EventGetOnlineUsers, s.handleGetOnlineUsers)
	s.router.Handle(EventError, s.handleClientError)
}

func (s *Server) handleOrgMessage(c *Client, data json.RawMessage) {
	if !c.Identity.HasOrg() {
		c.Send(EventError, ErrorPayload{Message: "User not in any organization"})
		return
	}
	var in orgMessageIn
	_ = json.Unmarshal(data, &in)
	msgType := in.Type
	if msgType == "" {
		msgType = "message"
	}
	payload := OrgMessage{
		Type:  msgType,
		Room:  orgRoom(c.Identity.OrgID),
		Event: EventOrgMessage,
		Data: OrgMessageData{
			Message:   in.Message,
			Sender:    MessageSender{UserID: c.Identity.UserID},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
	s.hub.BroadcastOthers(c.Identity.OrgID, c.ID, EventOrgMessage, payload)
	if s.audit != nil {
		if err := s.audit.Publish(context.Background(), c.Identity.OrgID, payload); err != nil {
			s.log.Warnw("audit publish", "org_id", c.Identity.OrgID, "error", err)
		}
	}
	s.log.Infow("org message sent", "org_id", c.Identity.OrgID, "user_id", c.Identity.UserID)
}

func (s *Server) handleUserStatus(c *Client, data json.RawMessage) {
	if !c.Identity.HasOrg() {
		return
	}
	var in userStatusIn
	_ = json.Unmarshal(data, &in)
	s.hub.BroadcastOthers(c.Identity.OrgID, c.ID, EventUserStatus, UserStatus{
		UserID:   c.Identity.UserID,
		LoggedIn: in.LoggedIn,
	})
	s.log.Infow("user status updated", "user_id", c.Identity.UserID, "logged_in", in.LoggedIn)
}

func (s *Server) handleGetOnlineUsers(c *Client, _ json.RawMessage) {
	if !c.Identity.HasOrg() {
		c.Send(EventError, ErrorPayload{Message: "User not in any organization"})
		return
	}
	users := s.hub.OnlineUsers(c.Identity.OrgID)
	c.Send(EventOnlineUsers, OnlineUsersPayload{Users: users})
}

// handleClientError logs transport-reported errors; they are never
// rebroadcast.
func (s *Server) handleClientError(c *Client, data json.RawMessage) {
	s.log.Errorw("websocket client error", "user_id", c.Identity.UserID, "detail", string(data))
}

// SendToUser delivers a single event to the user's live connection, if any.
// Unknown users are a silent no-op.
func (s *Server) SendToUser(userID, event string, data any) {
	if s.hub.SendToUser(userID, event, data) {
		s.log.Infow("message sent to user", "user_id", userID, "event", event)
	}
}

// SendToOrg delivers an event to every member of the org room, sender
// included (the service-level API does not exclude anyone).
func (s *Server) SendToOrg(orgID, event string, data any) {
	s.hub.BroadcastAll(orgID, event, data)
	s.log.Infow("message sent to org", "org_id", orgID, "event", event)
}

// OnlineUsers returns the identities currently connected in an org room.
func (s *Server) OnlineUsers(orgID string) []OnlineUser {
	return s.hub.OnlineUsers(orgID)
}

func (s *Server) Stats() Stats {
	return s.hub.Stats()
}
