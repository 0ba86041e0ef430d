// Package bridge exposes a debug-only WebSocket relay of notification
// center events and log lines, for watching a running engine instance
// from a browser without wiring a full client. It is never required by
// the dispatcher or any command handler — wiring it is optional, the
// way the teacher's websocket Hub sits beside (not inside) request
// handling.
package bridge

import (
	"encoding/json"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/axengine/internal/model"
	"github.com/corvidlabs/axengine/internal/observer"
)

// Message is the envelope every relayed event is wrapped in before
// being written to a client socket.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NotificationEvent is the Data payload for a "notification" message.
type NotificationEvent struct {
	PID          int                           `json:"pid"`
	Notification string                        `json:"notification"`
	Element      string                        `json:"element,omitempty"`
	Info         map[string]model.AttributeValue `json:"info,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const clientSendBuffer = 64

// Hub relays broadcast messages to any number of connected debug
// clients. One loop goroutine owns client registration and fan-out,
// the same shape the teacher's websocket Hub uses to avoid locking
// across request goroutines.
type Hub struct {
	log zerolog.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub constructs a Hub. Call Run in its own goroutine before
// serving any connection.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:        log.With().Str("component", "bridgeHub").Logger(),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		clients:    map[*client]struct{}{},
	}
}

// Run drives registration and fan-out until the broadcast channel is
// closed.
func (h *Hub) Run() {
	for {
		select {
		case c, ok := <-h.register:
			if !ok {
				return
			}
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg, ok := <-h.broadcast:
			if !ok {
				return
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Warn().Msg("reason=subscriber_blocked action=drop_message")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish encodes v as a Message of the given type and fans it out to
// every connected client. Non-blocking: a full broadcast buffer drops
// the message rather than stalling the caller.
func (h *Hub) Publish(msgType string, data any) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.log.Warn().Err(err).Str("type", msgType).Msg("bridge: failed to encode message")
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.log.Warn().Str("type", msgType).Msg("reason=broadcast_full action=drop_message")
	}
}

// HandleWebSocket upgrades the request and streams broadcast messages
// to it until the connection closes.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("bridge: upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}
	h.register <- c

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Relay wires a notification center and an optional log line source
// onto a Hub, so both show up as typed messages on every connected
// debug client.
type Relay struct {
	hub   *Hub
	log   zerolog.Logger
}

// NewRelay constructs a Relay over hub.
func NewRelay(hub *Hub, log zerolog.Logger) *Relay {
	return &Relay{hub: hub, log: log.With().Str("component", "bridgeRelay").Logger()}
}

// ObserveNotifications subscribes a handler on center for every name
// in notifications (pid nil = system-wide) and republishes each firing
// as a "notification" message.
func (r *Relay) ObserveNotifications(center *observer.Center, pid *int, notifications []string) []observer.SubscriptionToken {
	tokens := make([]observer.SubscriptionToken, 0, len(notifications))
	for _, name := range notifications {
		token, err := center.Subscribe(pid, nil, name, func(pid int, notification string, elementBrief string, info map[string]model.AttributeValue) {
			r.hub.Publish("notification", NotificationEvent{
				PID:          pid,
				Notification: notification,
				Element:      elementBrief,
				Info:         sanitizeInfo(info),
			})
		})
		if err != nil {
			r.log.Warn().Err(err).Str("notification", name).Msg("bridge: subscribe failed")
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// RelayLogLines forwards every line read from lines as a "log" message,
// until lines is closed. Intended to be fed by logging.Broadcaster().
func (r *Relay) RelayLogLines(lines <-chan string) {
	for line := range lines {
		r.hub.Publish("log", line)
	}
}

// sanitizeInfo guards against NaN/Inf doubles reaching json.Marshal,
// which errors on them; platform telemetry notifications can carry
// such values for in-flight measurements.
func sanitizeInfo(info map[string]model.AttributeValue) map[string]model.AttributeValue {
	if info == nil {
		return nil
	}
	out := make(map[string]model.AttributeValue, len(info))
	for k, v := range info {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v model.AttributeValue) model.AttributeValue {
	if d, ok := v.AsDouble(); ok {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return model.Double(0)
		}
		return v
	}
	if m, ok := v.AsMap(); ok {
		return model.Map(sanitizeInfo(m))
	}
	if list, ok := v.AsList(); ok {
		out := make([]model.AttributeValue, len(list))
		for i, item := range list {
			out[i] = sanitizeValue(item)
		}
		return model.List(out...)
	}
	return v
}
