package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/himanshub16/upnext-jukebox/jukebox"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	// AckEvent is the event name of replies to requests that carried an ack.
	AckEvent = "ack"
)

// Message is a frame received from a client.
type Message struct {
	Event   string          `json:"event"`
	Ack     string          `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// outMessage is a frame sent to a client.
type outMessage struct {
	Event   string      `json:"event"`
	Ack     string      `json:"ack,omitempty"`
	Payload interface{} `json:"payload"`
}

// Map is the reply body of a request.
type Map map[string]interface{}

// Conn is one connected client.
type Conn struct {
	ID  string
	Who jukebox.Requester
}

// Request is a client frame together with the connection it came from.
type Request struct {
	Conn    *Conn
	Event   string
	Payload json.RawMessage
}

// Bind decodes the payload into v. An empty payload leaves v untouched.
func (r Request) Bind(v interface{}) error {
	if len(r.Payload) == 0 || string(r.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(r.Payload, v)
}

// HandlerFunc serves one event. The returned Map is sent back when the
// client asked for an ack; "success" is filled in by the hub.
type HandlerFunc func(ctx context.Context, req Request) (Map, error)

type Config struct {
	// Buffer is how many frames may wait for a slow client before new ones
	// are dropped for it.
	Buffer         int
	AllowAnyOrigin bool
	Logger         zerolog.Logger
}

// Hub keeps one buffered outgoing channel per websocket and a single writer
// goroutine draining it, so frames reach each client in the order they were
// queued and a slow client never blocks a broadcast.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader
	buffer   int

	chanMutex     sync.RWMutex
	outgoingChan  map[string]chan outMessage
	interruptChan map[string]chan struct{}

	handlers  map[string]route
	onConnect func(c *Conn)
}

type route struct {
	fn    HandlerFunc
	async bool
}

var _ jukebox.Notifier = (*Hub)(nil)

func NewHub(cfg Config) *Hub {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	h := &Hub{
		log:           cfg.Logger.With().Str("component", "gateway").Logger(),
		buffer:        cfg.Buffer,
		outgoingChan:  make(map[string]chan outMessage),
		interruptChan: make(map[string]chan struct{}),
		handlers:      make(map[string]route),
	}
	if cfg.AllowAnyOrigin {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return h
}

// On registers fn for event. Registration must happen before Serve.
// Frames of one connection are handled one after another in arrival order.
func (h *Hub) On(event string, fn HandlerFunc) {
	h.handlers[event] = route{fn: fn}
}

// OnAsync registers fn for an event that may take long, like a download.
// Each such frame runs on its own goroutine so the connection keeps reading;
// its ack may overtake replies to later frames.
func (h *Hub) OnAsync(event string, fn HandlerFunc) {
	h.handlers[event] = route{fn: fn, async: true}
}

// OnConnect runs fn for every new connection before any frame is read.
func (h *Hub) OnConnect(fn func(c *Conn)) {
	h.onConnect = fn
}

func (h *Hub) NotifyAll(event string, payload interface{}) {
	msg := outMessage{Event: event, Payload: payload}

	h.chanMutex.RLock()
	defer h.chanMutex.RUnlock()
	for id, ch := range h.outgoingChan {
		h.offer(id, ch, msg)
	}
}

func (h *Hub) NotifyOne(connID string, event string, payload interface{}) {
	h.send(connID, outMessage{Event: event, Payload: payload})
}

// Connections is the number of open websockets.
func (h *Hub) Connections() int {
	h.chanMutex.RLock()
	defer h.chanMutex.RUnlock()
	return len(h.outgoingChan)
}

func (h *Hub) send(connID string, msg outMessage) {
	h.chanMutex.RLock()
	defer h.chanMutex.RUnlock()
	if ch, ok := h.outgoingChan[connID]; ok {
		h.offer(connID, ch, msg)
	}
}

// offer must be called with chanMutex held.
func (h *Hub) offer(connID string, ch chan outMessage, msg outMessage) {
	select {
	case ch <- msg:
	default:
		h.log.Warn().Str("conn", connID).Str("event", msg.Event).Msg("client too slow, dropping frame")
	}
}

// Serve upgrades the request and blocks until the websocket is closed.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, who jukebox.Requester) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	conn := &Conn{ID: uuid.New().String(), Who: who}
	outgoing, interrupt := h.openChannelsForConn(conn.ID)
	defer h.closeChannelsForConn(conn.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.log.Info().Str("conn", conn.ID).Str("user", who.ID).Str("name", who.Name).Msg("client connected")
	if h.onConnect != nil {
		h.onConnect(conn)
	}

	go h.readLoop(ctx, ws, conn, interrupt)
	err = h.writeLoop(ws, conn, outgoing, interrupt)
	h.log.Info().Str("conn", conn.ID).Err(err).Msg("client disconnected")
	return nil
}

func (h *Hub) readLoop(ctx context.Context, ws *websocket.Conn, conn *Conn, interrupt chan struct{}) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Str("conn", conn.ID).Err(err).Msg("failed reading message")
			}
			signal(interrupt)
			return
		}
		if r, ok := h.handlers[msg.Event]; ok && r.async {
			go h.dispatch(ctx, conn, msg)
			continue
		}
		h.dispatch(ctx, conn, msg)
	}
}

func (h *Hub) writeLoop(ws *websocket.Conn, conn *Conn, outgoing chan outMessage, interrupt chan struct{}) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-outgoing:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(msg); err != nil {
				return err
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}

		case <-interrupt:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return errors.New("interrupted")
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, conn *Conn, msg Message) {
	r, ok := h.handlers[msg.Event]
	if !ok {
		h.log.Debug().Str("conn", conn.ID).Str("event", msg.Event).Msg("unknown event")
		h.reply(conn.ID, msg.Ack, nil, jukebox.WithReason(
			jukebox.ErrInvalidInput, "Unknown event "+msg.Event+"."))
		return
	}

	result, err := r.fn(ctx, Request{Conn: conn, Event: msg.Event, Payload: msg.Payload})
	if err != nil && !jukebox.Known(err) {
		h.log.Error().Err(err).Str("event", msg.Event).Msg("handler failed")
	}
	h.reply(conn.ID, msg.Ack, result, err)
}

func (h *Hub) reply(connID, ack string, result Map, err error) {
	if ack == "" {
		return
	}
	body := Map{}
	for k, v := range result {
		body[k] = v
	}
	if err != nil {
		body = Map{"success": false, "error": jukebox.Reason(err)}
	} else {
		body["success"] = true
	}
	h.send(connID, outMessage{Event: AckEvent, Ack: ack, Payload: body})
}

func (h *Hub) openChannelsForConn(connID string) (chan outMessage, chan struct{}) {
	h.chanMutex.Lock()
	defer h.chanMutex.Unlock()
	out := make(chan outMessage, h.buffer)
	// never unbuffered, signal() must not block
	interrupt := make(chan struct{}, 1)
	h.outgoingChan[connID] = out
	h.interruptChan[connID] = interrupt
	return out, interrupt
}

func (h *Hub) closeChannelsForConn(connID string) {
	h.chanMutex.Lock()
	defer h.chanMutex.Unlock()
	delete(h.outgoingChan, connID)
	delete(h.interruptChan, connID)
}

// Shutdown asks every connection to close.
func (h *Hub) Shutdown() {
	h.chanMutex.RLock()
	defer h.chanMutex.RUnlock()
	for _, ch := range h.interruptChan {
		signal(ch)
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
