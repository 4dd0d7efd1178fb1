package ws

import (
	"encoding/json"

	"go.uber.org/zap"
)

// HandlerFunc handles one inbound named event for an active connection.
type HandlerFunc func(c *Client, data json.RawMessage)

// Router dispatches inbound events by name. Handlers for one connection run
// serially in that connection's read loop; handlers for different
// connections run concurrently.
type Router struct {
	handlers map[string]HandlerFunc
	log      *zap.SugaredLogger
}

func NewRouter(log *zap.SugaredLogger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		log:      log,
	}
}

func (r *Router) Handle(event string, fn HandlerFunc) {
	r.handlers[event] = fn
}

// Dispatch runs the handler registered for the envelope's event. Unknown
// events are ignored. A panicking handler is recovered and logged so one
// faulty handler cannot take down the connection's processing.
func (r *Router) Dispatch(c *Client, env Envelope) {
	fn, ok := r.handlers[env.Event]
	if !ok {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorw("event handler panic",
				"event", env.Event, "user_id", c.Identity.UserID, "panic", rec)
		}
	}()
	fn(c, env.Data)
}
