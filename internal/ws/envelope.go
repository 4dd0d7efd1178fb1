package ws

import "encoding/json"

// Event names on the wire. Inbound and outbound frames share one shape:
// {"event": "...", "data": {...}}.
const (
	EventAuthenticated  = "authenticated"
	EventError          = "error"
	EventOrgMessage     = "org:message"
	EventUserStatus     = "user:status"
	EventGetOnlineUsers = "org:get-online-users"
	EventOnlineUsers    = "org:online-users"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type AuthenticatedPayload struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// OrgMessage is the envelope broadcast to org members for org:message events.
type OrgMessage struct {
	Type  string         `json:"type"`
	Room  string         `json:"room"`
	Event string         `json:"event"`
	Data  OrgMessageData `json:"data"`
}

type OrgMessageData struct {
	Message   string        `json:"message"`
	Sender    MessageSender `json:"sender"`
	Timestamp string        `json:"timestamp"`
}

type MessageSender struct {
	UserID string `json:"user_id"`
}

type UserStatus struct {
	UserID   string `json:"user_id"`
	LoggedIn bool   `json:"logged_in"`
}

type OnlineUser struct {
	UserID string `json:"user_id"`
}

type OnlineUsersPayload struct {
	Users []OnlineUser `json:"users"`
}

type orgMessageIn struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type userStatusIn struct {
	LoggedIn bool `json:"logged_in"`
}

func orgRoom(orgID string) string { return "org:" + orgID }

func marshalData(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
