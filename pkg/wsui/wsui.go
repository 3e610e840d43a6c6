// Package wsui exposes a session.Controller to browser clients over a
// websocket.
//
// Clients send {"type":"press"} and {"type":"release"}; every state
// transition is pushed to all clients as {"type":"state","state":{...}}.
// A rejected command is answered with {"type":"error",...} to the sender
// only.
package wsui

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Laudkyle/NaviAudio/pkg/classify"
	"github.com/Laudkyle/NaviAudio/pkg/session"
)

// Message types.
const (
	TypePress   = "press"
	TypeRelease = "release"
	TypeState   = "state"
	TypeError   = "error"
)

// Message is the wire envelope in both directions.
type Message struct {
	Type  string         `json:"type"`
	State *session.State `json:"state,omitempty"`
	Op    string         `json:"op,omitempty"`
	Kind  string         `json:"kind,omitempty"`
	Error string         `json:"error,omitempty"`
}

const (
	sendQueue  = 32
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithCheckOrigin overrides the upgrader's origin check. Default allows
// all origins.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Handler) { h.upgrader.CheckOrigin = fn }
}

// Handler serves the websocket endpoint.
type Handler struct {
	ctrl     *session.Controller
	upgrader websocket.Upgrader
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	stopObs  func()

	mu      sync.Mutex
	clients map[*client]struct{}
	wg      sync.WaitGroup
}

// New creates a Handler bound to ctrl.
func New(ctrl *session.Controller, opts ...Option) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		ctrl: ctrl,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	h.stopObs = ctrl.Observe(h.broadcast)
	return h
}

// Close disconnects all clients and waits for in-flight commands.
func (h *Handler) Close() error {
	h.stopObs()
	h.cancel()
	h.mu.Lock()
	for c := range h.clients {
		c.close()
	}
	h.mu.Unlock()
	h.wg.Wait()
	return nil
}

func (h *Handler) broadcast(s session.State) {
	b, err := json.Marshal(Message{Type: TypeState, State: &s})
	if err != nil {
		h.log.Error("encode state", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.enqueue(b) {
			h.log.Warn("websocket client too slow, dropping")
			c.close()
			delete(h.clients, c)
		}
	}
}

// ServeHTTP upgrades the connection and serves it until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade", "error", err)
		return
	}
	c := &client{ws: ws, send: make(chan []byte, sendQueue), done: make(chan struct{})}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop(h.log)

	s := h.ctrl.State()
	if b, err := json.Marshal(Message{Type: TypeState, State: &s}); err == nil {
		c.enqueue(b)
	}

	h.readLoop(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Handler) readLoop(c *client) {
	for {
		var m Message
		if err := c.ws.ReadJSON(&m); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read", "error", err)
			}
			return
		}
		switch m.Type {
		case TypePress:
			h.run(c, TypePress, func(ctx context.Context) error {
				return h.ctrl.Press(ctx)
			})
		case TypeRelease:
			h.run(c, TypeRelease, func(ctx context.Context) error {
				_, err := h.ctrl.Release(ctx)
				return err
			})
		case TypeState:
			s := h.ctrl.State()
			if b, err := json.Marshal(Message{Type: TypeState, State: &s}); err == nil {
				c.enqueue(b)
			}
		default:
			c.sendError(m.Type, errors.New("unknown message type"))
		}
	}
}

// run executes a controller command off the read loop so a long release
// does not block further messages.
func (h *Handler) run(c *client, op string, fn func(context.Context) error) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := fn(h.ctx); err != nil {
			c.sendError(op, err)
		}
	}()
}

type client struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
}

func (c *client) enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *client) sendError(op string, err error) {
	m := Message{Type: TypeError, Op: op, Error: err.Error()}
	if k, ok := classify.KindOf(err); ok {
		m.Kind = k.String()
	} else if errors.Is(err, session.ErrBusy) {
		m.Kind = "Busy"
	}
	if b, err := json.Marshal(m); err == nil {
		c.enqueue(b)
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		c.mu.Unlock()
		c.ws.Close()
	})
}

func (c *client) writeLoop(log *slog.Logger) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Debug("websocket write", "error", err)
				c.close()
				return
			}
		case <-ping.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
