// Package realtime pushes chat events to connected browsers over websockets
// and tracks which users are online.
package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/mqtt"
)

// Event names sent to clients
const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Frame is the JSON envelope of every websocket message
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Publisher mirrors presence changes to other systems
type Publisher interface {
	Publish(topic string, payload interface{}) error
}

// PresenceChange is published whenever a user comes online or goes offline
type PresenceChange struct {
	UserID string    `json:"userId"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// Hub owns every websocket connection of this instance
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[*Client]struct{}
	presence  Presence
	publisher Publisher
	upgrader  websocket.Upgrader
}

// Client is one websocket connection of a user
type Client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

// NewHub creates a hub. Upgrades are accepted from allowedOrigins only;
// an empty list accepts same-origin requests.
func NewHub(presence Presence, allowedOrigins []string) *Hub {
	if presence == nil {
		presence = NewMemoryPresence()
	}
	h := &Hub{
		clients:  make(map[string]map[*Client]struct{}),
		presence: presence,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// WithPublisher mirrors presence changes to p
func (h *Hub) WithPublisher(p Publisher) *Hub {
	h.publisher = p
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) == 0 {
			return origin == "http://"+r.Host || origin == "https://"+r.Host
		}
		for _, o := range allowed {
			if o == origin {
				return true
			}
		}
		return false
	}
}

// ServeWS upgrades the request and attaches the connection to userID
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{
		hub:    h,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	h.register(r.Context(), c)

	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) register(ctx context.Context, c *Client) {
	h.mu.Lock()
	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.clients[c.userID] = conns
	}
	conns[c] = struct{}{}
	h.mu.Unlock()

	logger.Debug(fmt.Sprintf("User connected: %s", c.userID), "Realtime")

	cameOnline, err := h.presence.Add(context.WithoutCancel(ctx), c.userID)
	if err != nil {
		logger.Error(fmt.Sprintf("Presence add failed for %s: %v", c.userID, err), "Realtime")
	}
	if cameOnline {
		h.publishPresence(c.userID, true)
	}
	h.broadcastOnline()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	conns, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	c.close()
	logger.Debug(fmt.Sprintf("User disconnected: %s", c.userID), "Realtime")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wentOffline, err := h.presence.Remove(ctx, c.userID)
	if err != nil {
		logger.Error(fmt.Sprintf("Presence remove failed for %s: %v", c.userID, err), "Realtime")
	}
	if wentOffline {
		h.publishPresence(c.userID, false)
	}
	h.broadcastOnline()
}

func (h *Hub) publishPresence(userID string, online bool) {
	if h.publisher == nil {
		return
	}
	change := PresenceChange{UserID: userID, Online: online, At: time.Now().UTC()}
	if err := h.publisher.Publish(mqtt.TopicPresence, change); err != nil {
		logger.Debug(fmt.Sprintf("Presence publish skipped: %v", err), "Realtime")
	}
}

// OnlineUsers returns the ids of every online user
func (h *Hub) OnlineUsers(ctx context.Context) ([]string, error) {
	return h.presence.Online(ctx)
}

func (h *Hub) broadcastOnline() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ids, err := h.presence.Online(ctx)
	if err != nil {
		logger.Error(fmt.Sprintf("Could not list online users: %v", err), "Realtime")
		return
	}
	h.Broadcast(EventOnlineUsers, ids)
}

// Broadcast sends an event to every connection
func (h *Hub) Broadcast(event string, data interface{}) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		logger.Error(fmt.Sprintf("Could not encode %s: %v", event, err), "Realtime")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conns := range h.clients {
		for c := range conns {
			c.enqueue(frame)
		}
	}
}

// SendToUser pushes an event to every connection of userID and reports how
// many connections it was queued on. Delivery is not awaited.
func (h *Hub) SendToUser(userID, event string, data interface{}) int {
	frame, err := encodeFrame(event, data)
	if err != nil {
		logger.Error(fmt.Sprintf("Could not encode %s: %v", event, err), "Realtime")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients[userID] {
		if c.enqueue(frame) {
			n++
		}
	}
	return n
}

// Disconnect closes every connection of userID
func (h *Hub) Disconnect(userID string) {
	h.mu.RLock()
	conns := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.unregister(c)
	}
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.RLock()
	users := make([]string, 0, len(h.clients))
	for id := range h.clients {
		users = append(users, id)
	}
	h.mu.RUnlock()

	for _, id := range users {
		h.Disconnect(id)
	}
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: data})
}

// enqueue drops the frame when the client is not keeping up. Callers hold
// the hub lock, so a client still in the map has an open send channel.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		logger.Warn(fmt.Sprintf("Dropping frame for slow client %s", c.userID), "Realtime")
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func (c *Client) readPump() {
	defer c.hub.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// clients do not send anything the server acts on
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn(fmt.Sprintf("Websocket error for %s: %v", c.userID, err), "Realtime")
			}
			return
		}
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
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
