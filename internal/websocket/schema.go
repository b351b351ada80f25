package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventPong    Event = "pong"
	EventSession Event = "session"
	EventWelcome Event = "welcome"
)

// SessionEventMessage wraps a session progress event published by the API.
type SessionEventMessage struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type WelcomeResponse struct {
	Event  Event  `json:"event"`
	UserID string `json:"user_id"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
