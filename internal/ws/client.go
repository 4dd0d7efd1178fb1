package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/udxhq/udx-backend/internal/auth"
	"github.com/udxhq/udx-backend/internal/metrics"
)

const outboundQueueSize = 256

// Client is one live authenticated connection, regardless of transport.
// Websocket clients drain the outbound queue through writePump; poll
// sessions drain it from the poll endpoint.
type Client struct {
	ID        string
	Identity  auth.Identity
	Connected time.Time

	out  chan Envelope
	done chan struct{}
	once sync.Once
	log  *zap.SugaredLogger
}

func newClient(identity auth.Identity, log *zap.SugaredLogger) *Client {
	return &Client{
		ID:        uuid.NewString(),
		Identity:  identity,
		Connected: time.Now().UTC(),
		out:       make(chan Envelope, outboundQueueSize),
		done:      make(chan struct{}),
		log:       log,
	}
}

// Send enqueues an outbound event. Delivery is best effort: when the queue
// is full the event is dropped, so one slow client never blocks fan-out to
// the rest.
func (c *Client) Send(event string, data any) {
	raw, err := marshalData(data)
	if err != nil {
		c.log.Warnw("marshal outbound event", "event", event, "error", err)
		return
	}
	select {
	case c.out <- Envelope{Event: event, Data: raw}:
		metrics.EventsDelivered.WithLabelValues(event).Inc()
	default:
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// writePump drains the outbound queue onto a websocket connection and keeps
// the transport alive with protocol pings. There is deliberately no
// application-level idle kick: a silent client stays connected.
func (c *Client) writePump(conn *websocket.Conn, pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case env := <-c.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				return
			}
		case <-c.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		}
	}
}
