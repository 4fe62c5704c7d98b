package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"championship-engine/models"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// WSMessage is the frame sent to and read from feed clients.
type WSMessage struct {
	Type         string        `json:"type"`
	TournamentID string        `json:"tournamentId,omitempty"`
	Event        *models.Event `json:"event,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Hub is the live websocket feed. A connection receives the events addressed
// to its participant plus every event of the tournaments it subscribed to.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	upgrader websocket.Upgrader
	origins  map[string]struct{}
}

type Client struct {
	hub           *Hub
	participantID string
	conn          *websocket.Conn
	send          chan []byte

	mu          sync.RWMutex
	tournaments map[string]struct{}
}

// NewHub accepts upgrades only from the listed origins; "*" allows any.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		origins: make(map[string]struct{}, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		h.origins[o] = struct{}{}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if _, ok := h.origins["*"]; ok {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	_, ok := h.origins[origin]
	if !ok {
		log.Printf("[WS] Rejected connection from origin %s", origin)
	}
	return ok
}

// Serve upgrades the request; participantID may be empty for a spectator.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, participantID string, tournaments ...string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{
		hub:           h,
		participantID: participantID,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		tournaments:   make(map[string]struct{}),
	}
	for _, id := range tournaments {
		if id != "" {
			c.tournaments[id] = struct{}{}
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Debugf("[WS] Client connected (participant=%q)", participantID)

	go c.writePump()
	go c.readPump()
	return nil
}

// Deliver implements Sink.
func (h *Hub) Deliver(_ context.Context, event models.Event) error {
	data, err := json.Marshal(WSMessage{Type: "event", TournamentID: event.TournamentID, Event: &event})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.wants(event) {
			c.enqueue(data)
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()
	for c := range clients {
		close(c.send)
	}
}

func (c *Client) wants(event models.Event) bool {
	if c.participantID != "" && event.ParticipantID == c.participantID {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tournaments[event.TournamentID]
	return ok
}

// enqueue drops the frame for a client that is not keeping up.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("[WS] Send buffer full for participant %q, dropping frame", c.participantID)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg WSMessage) {
	switch msg.Type {
	case "subscribe":
		c.mu.Lock()
		c.tournaments[msg.TournamentID] = struct{}{}
		c.mu.Unlock()
		c.reply(WSMessage{Type: "subscribed", TournamentID: msg.TournamentID})
	case "unsubscribe":
		c.mu.Lock()
		delete(c.tournaments, msg.TournamentID)
		c.mu.Unlock()
		c.reply(WSMessage{Type: "unsubscribed", TournamentID: msg.TournamentID})
	default:
		c.reply(WSMessage{Type: "error", Error: "unknown message type " + msg.Type})
	}
}

func (c *Client) reply(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; ok {
		c.enqueue(data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
