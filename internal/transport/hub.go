package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	callbackWait   = 30 * time.Second
)

// EventAuthenticate is the first event a client sends; its data carries the bearer token.
const EventAuthenticate = "authenticate"

var (
	ErrUnknownSid   = errors.New("unknown socket session")
	ErrSendOverflow = errors.New("socket send buffer full")
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Authenticator resolves a bearer token to a principal.
type Authenticator interface {
	Verify(token string) (domain.Principal, error)
}

// EventHandler serves one client event of an authenticated user. A non-nil result is sent back
// as "<event>_result".
type EventHandler func(ctx context.Context, username string, data json.RawMessage) (any, error)

type client struct {
	sid      string
	conn     *websocket.Conn
	send     chan []byte
	username string
}

// Hub owns every socket connection and the map of online users.
type Hub struct {
	auth     Authenticator
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	bySid  map[string]*client
	byUser map[string]string

	handlers        map[string]EventHandler
	onAuthenticated []func(ctx context.Context, username string)

	unregister chan *client
	done       chan struct{}
}

func NewHub(auth Authenticator, allowedOrigins []string) *Hub {
	h := &Hub{
		auth:       auth,
		bySid:      make(map[string]*client),
		byUser:     make(map[string]string),
		handlers:   make(map[string]EventHandler),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return h
}

// Handle registers the handler of a client event. Must be called before Run.
func (h *Hub) Handle(event string, fn EventHandler) {
	h.handlers[event] = fn
}

// OnAuthenticated registers fn to run whenever a user authenticates on a socket. Must be called
// before Run.
func (h *Hub) OnAuthenticated(fn func(ctx context.Context, username string)) {
	h.onAuthenticated = append(h.onAuthenticated, fn)
}

// Run processes disconnects until ctx ends, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.unregister:
			h.drop(c)
		case <-ctx.Done():
			h.mu.Lock()
			for sid, c := range h.bySid {
				close(c.send)
				delete(h.bySid, sid)
			}
			h.byUser = make(map[string]string)
			h.mu.Unlock()
			metrics.SetOnlineUsers(0)
			return
		}
	}
}

func (h *Hub) release(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.bySid[c.sid]; !ok {
		return
	}
	delete(h.bySid, c.sid)
	close(c.send)
	if c.username != "" && h.byUser[c.username] == c.sid {
		delete(h.byUser, c.username)
	}
	metrics.SetOnlineUsers(len(h.byUser))
}

func (h *Hub) Online(username string) bool {
	_, ok := h.SidOf(username)
	return ok
}

// SidOf returns the session of the most recent connection of username.
func (h *Hub) SidOf(username string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sid, ok := h.byUser[username]
	return sid, ok
}

// Emit sends event to the session sid.
func (h *Hub) Emit(event string, payload any, sid string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("json.Marshal -> %w", err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("json.Marshal -> %w", err)
	}

	h.mu.RLock()
	c, ok := h.bySid[sid]
	if !ok {
		h.mu.RUnlock()
		return ErrUnknownSid
	}
	select {
	case c.send <- frame:
		h.mu.RUnlock()
		return nil
	default:
		h.mu.RUnlock()
		go h.release(c)
		return ErrSendOverflow
	}
}

// ServeHTTP upgrades the request to a socket. A token query parameter authenticates right away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		sid:  uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 1024),
	}
	h.mu.Lock()
	h.bySid[c.sid] = c
	h.mu.Unlock()

	go c.writePump()
	go h.readPump(c)

	_ = h.Emit("connected", map[string]string{"sid": c.sid}, c.sid)
	if token := r.URL.Query().Get("token"); token != "" {
		h.authenticate(c, token)
	}
}

func (h *Hub) authenticate(c *client, token string) {
	p, err := h.auth.Verify(token)
	if err != nil {
		_ = h.Emit(EventAuthenticate+"_result", map[string]any{"ok": false, "error": "unauthenticated"}, c.sid)
		return
	}

	h.mu.Lock()
	c.username = p.Username
	h.byUser[p.Username] = c.sid
	online := len(h.byUser)
	h.mu.Unlock()
	metrics.SetOnlineUsers(online)

	_ = h.Emit(EventAuthenticate+"_result", map[string]any{"ok": true, "username": p.Username}, c.sid)

	for _, fn := range h.onAuthenticated {
		ctx, cancel := context.WithTimeout(context.Background(), callbackWait)
		fn(ctx, p.Username)
		cancel()
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.release(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Warn("websocket closed unexpectedly", zap.String("sid", c.sid), zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			_ = h.Emit("error", map[string]string{"error": "malformed frame"}, c.sid)
			continue
		}
		h.dispatch(c, env)
	}
}

func (h *Hub) dispatch(c *client, env Envelope) {
	if env.Event == EventAuthenticate {
		var data struct {
			Token string `json:"token"`
		}
		_ = json.Unmarshal(env.Data, &data)
		h.authenticate(c, data.Token)
		return
	}

	h.mu.RLock()
	username := c.username
	h.mu.RUnlock()
	if username == "" {
		_ = h.Emit(env.Event+"_result", map[string]any{"ok": false, "error": "unauthenticated"}, c.sid)
		return
	}

	fn, ok := h.handlers[env.Event]
	if !ok {
		_ = h.Emit("error", map[string]string{"error": "unknown event " + env.Event}, c.sid)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callbackWait)
	defer cancel()
	res, err := fn(ctx, username, env.Data)
	if err != nil {
		_ = h.Emit(env.Event+"_result", map[string]any{"ok": false, "error": err.Error()}, c.sid)
		return
	}
	if res != nil {
		_ = h.Emit(env.Event+"_result", res, c.sid)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
