// Package relay is the in-process WebSocket room relay used for discussion
// signaling.
//
// A single hub goroutine owns every room. Clients talk to it through
// channels, so room membership needs no locks. Frames from one member are
// relayed verbatim to every other member of the same room.
package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config holds hub settings
type Config struct {
	// AllowedOrigins lists the Origin values accepted on upgrade. Empty or
	// "*" accepts any origin.
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Stats is the relay status snapshot
type Stats struct {
	Status           string         `json:"status"`
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      map[string]int `json:"active_rooms"`
}

type frame struct {
	client *Client
	data   []byte
}

type systemMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var invalidFormatMessage = mustMarshal(systemMessage{Type: "error", Message: "Invalid message format"})

// Hub tracks rooms and relays frames between their members
type Hub struct {
	register   chan *Client
	unregister chan *Client
	inbound    chan frame
	stats      chan chan Stats
	stop       chan struct{}
	done       chan struct{}

	// owned by Run
	rooms       map[string]map[*Client]struct{}
	connections int

	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates a hub. Call Run in its own goroutine.
func NewHub(cfg Config) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h := &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan frame),
		stats:      make(chan chan Stats),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		logger:     cfg.Logger.With("component", "relay"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  maxMessageSize,
		WriteBufferSize: maxMessageSize,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// Run processes registrations, frames and stats requests until Stop
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.add(c)

		case c := <-h.unregister:
			h.remove(c, "left")

		case f := <-h.inbound:
			h.relay(f)

		case reply := <-h.stats:
			reply <- h.snapshot()

		case <-h.stop:
			for _, members := range h.rooms {
				for c := range members {
					close(c.send)
				}
			}
			h.logger.Info("relay stopped", "connections", h.connections)
			h.rooms = nil
			h.connections = 0
			return
		}
	}
}

// Stop closes every client and ends Run. Safe to call more than once.
func (h *Hub) Stop() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
	<-h.done
}

// Stats returns a snapshot of the rooms
func (h *Hub) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case h.stats <- reply:
		return <-reply
	case <-h.done:
		return Stats{Status: "stopped", ActiveRooms: map[string]int{}}
	}
}

// ServeWS upgrades the request and attaches the connection to room
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, room, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("websocket upgrade failed", "room", room, "error", err)
		return
	}

	c := &Client{
		ID:     uuid.NewString(),
		Room:   room,
		UserID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay stopped"))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) add(c *Client) {
	members, ok := h.rooms[c.Room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[c.Room] = members
	}
	members[c] = struct{}{}
	h.connections++

	h.logger.Info("participant joined", "room", c.Room, "client_id", c.ID, "user_id", c.UserID, "members", len(members))
	h.announce(c.Room, fmt.Sprintf("participant joined (%d in room)", len(members)))
}

// remove detaches c and closes its send channel. Clients already removed,
// for example after a failed send, are ignored.
func (h *Hub) remove(c *Client, reason string) {
	members, ok := h.rooms[c.Room]
	if !ok {
		return
	}
	if _, ok := members[c]; !ok {
		return
	}

	delete(members, c)
	close(c.send)
	h.connections--

	h.logger.Info("participant "+reason, "room", c.Room, "client_id", c.ID, "members", len(members))

	if len(members) == 0 {
		delete(h.rooms, c.Room)
		return
	}
	h.announce(c.Room, fmt.Sprintf("participant left (%d in room)", len(members)))
}

func (h *Hub) relay(f frame) {
	if _, ok := h.rooms[f.client.Room][f.client]; !ok {
		return
	}

	if !json.Valid(f.data) {
		h.deliver([]*Client{f.client}, invalidFormatMessage)
		return
	}

	var targets []*Client
	for c := range h.rooms[f.client.Room] {
		if c != f.client {
			targets = append(targets, c)
		}
	}
	h.deliver(targets, f.data)
}

func (h *Hub) announce(room string, text string) {
	members := h.rooms[room]
	targets := make([]*Client, 0, len(members))
	for c := range members {
		targets = append(targets, c)
	}
	h.deliver(targets, mustMarshal(systemMessage{Type: "system", Message: text}))
}

// deliver queues msg on each target. A target whose buffer is full is
// disconnected.
func (h *Hub) deliver(targets []*Client, msg []byte) {
	var failed []*Client
	for _, c := range targets {
		select {
		case c.send <- msg:
		default:
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.logger.Warn("dropping slow participant", "room", c.Room, "client_id", c.ID)
		h.remove(c, "dropped")
	}
}

func (h *Hub) snapshot() Stats {
	rooms := make(map[string]int, len(h.rooms))
	for name, members := range h.rooms {
		rooms[name] = len(members)
	}
	return Stats{
		Status:           "running",
		TotalConnections: h.connections,
		ActiveRooms:      rooms,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
