package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"farm-alert-service/internal/logging"
	"farm-alert-service/internal/models"
)

// ErrNotConnected is returned by Send while the channel is not open. Nothing
// is queued; the caller decides whether to retry.
var ErrNotConnected = errors.New("live channel not open")

// CatchAll registers a handler for every inbound message regardless of type.
const CatchAll = "*"

// HandlerFunc consumes one inbound message. Fire-and-forget: no return
// value, invoked synchronously in registration order.
type HandlerFunc func(msgType string, payload json.RawMessage)

type registration struct {
	id string
	fn HandlerFunc
}

// Router decodes inbound frames and routes them to interested handlers, and
// exposes the outbound send primitive gated on channel readiness. Dispatch
// calls never interleave: frames are processed in arrival order.
type Router struct {
	logger *logging.Logger

	mu       sync.Mutex
	handlers map[string][]registration
	send     func([]byte) error

	dispatchMu sync.Mutex
}

// NewRouter constructs an unbound Router. The supervisor binds and unbinds
// the outbound writer as the channel opens and closes.
func NewRouter(logger *logging.Logger) *Router {
	return &Router{
		logger:   logger,
		handlers: make(map[string][]registration),
	}
}

// On registers fn for msgType under id. Registering the same (msgType, id)
// again replaces the handler in place, keeping its original order slot.
func (r *Router) On(msgType, id string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	regs := r.handlers[msgType]
	for i := range regs {
		if regs[i].id == id {
			regs[i].fn = fn
			return
		}
	}
	r.handlers[msgType] = append(regs, registration{id: id, fn: fn})
}

// Off removes the (msgType, id) registration. Removing an unknown
// registration is a no-op.
func (r *Router) Off(msgType, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	regs := r.handlers[msgType]
	for i := range regs {
		if regs[i].id == id {
			r.handlers[msgType] = append(regs[:i], regs[i+1:]...)
			return
		}
	}
}

// Dispatch parses one raw frame and invokes the handlers registered for its
// type, then the catch-all handlers. Malformed frames are logged and
// dropped; they never propagate an error to the connection.
func (r *Router) Dispatch(raw []byte) {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		r.logger.Warnf("Dropping malformed frame (%d bytes): %v", len(raw), err)
		return
	}

	msg := models.Envelope{Type: env.Type, Payload: raw}

	r.mu.Lock()
	regs := append([]registration(nil), r.handlers[msg.Type]...)
	regs = append(regs, r.handlers[CatchAll]...)
	r.mu.Unlock()

	for _, reg := range regs {
		reg.fn(msg.Type, msg.Payload)
	}
}

// Send serializes v and writes it to the channel. It fails immediately with
// ErrNotConnected while the channel is not open.
func (r *Router) Send(v interface{}) error {
	r.mu.Lock()
	send := r.send
	r.mu.Unlock()
	if send == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return send(data)
}

func (r *Router) bind(send func([]byte) error) {
	r.mu.Lock()
	r.send = send
	r.mu.Unlock()
}

func (r *Router) unbind() {
	r.mu.Lock()
	r.send = nil
	r.mu.Unlock()
}
