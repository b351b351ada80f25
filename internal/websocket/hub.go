package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tolcsim-backend/internal/config"
)

const sendBuffer = 16

// Client is one live connection owned by a user.
type Client struct {
	UserID string

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// enqueue queues payload without blocking. It reports false when the queue
// is full or the client is already closed.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub is the registry of live connections, keyed by user. Events published
// on Redis by any API instance reach the user's connections on every instance.
type Hub struct {
	rdb *redis.Client
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// NewHub creates a new Hub.
func NewHub(rdb *redis.Client, log zerolog.Logger) *Hub {
	return &Hub{
		rdb:     rdb,
		log:     log.With().Str("component", "ws_hub").Logger(),
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Register adds c to its user's connection set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes c and stops its pumps. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()

	c.close()
}

// Connections returns the number of live connections for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Deliver queues payload for every connection of userID and returns how many
// accepted it. A client whose queue is full is dropped.
func (h *Hub) Deliver(userID string, payload []byte) int {
	h.mu.RLock()
	var slow []*Client
	delivered := 0
	for c := range h.clients[userID] {
		if c.enqueue(payload) {
			delivered++
		} else {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("user_id", userID).Msg("Dropping slow WebSocket client")
		h.Unregister(c)
	}
	return delivered
}

// Run subscribes to every user's session channel and fans events out until
// ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	pubsub := h.rdb.PSubscribe(ctx, config.CacheKey.UserSessionsPattern())
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe session events: %w", err)
	}
	h.log.Info().Msg("Hub subscribed to session events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Hub stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID, ok := config.CacheKey.UserIDFromChannel(msg.Channel)
			if !ok {
				continue
			}
			payload := encode(SessionEventMessage{
				Event: EventSession,
				Data:  json.RawMessage(msg.Payload),
			})
			h.Deliver(userID, payload)
		}
	}
}

// Serve registers the connection and pumps it until the peer goes away.
// It blocks, so call it from the upgrading handler.
func (h *Hub) Serve(c *Client) {
	h.Register(c)

	log := h.log.With().Str("user_id", c.UserID).Logger()
	log.Info().Msg("Client connected")

	c.enqueue(encode(WelcomeResponse{Event: EventWelcome, UserID: c.UserID}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c, log)
	}()

	h.readPump(c, log)
	h.Unregister(c)
	<-done
	log.Info().Msg("Client disconnected")
}

func (h *Hub) readPump(c *Client, log zerolog.Logger) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg RequestEnvelope
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var reply []byte
		switch msg.Action {
		case ActionPing:
			reply = encode(PongResponse{Event: EventPong})
		default:
			reply = encode(ErrorResponse{Event: EventError, Error: "unknown action: " + string(msg.Action)})
		}

		if !c.enqueue(reply) {
			log.Warn().Msg("Send queue full, dropping reply")
		}
	}
}

func (h *Hub) writePump(c *Client, log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug().Err(err).Msg("Write failed")
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
