package server

import (
	"encoding/json"

	"ticket-to-ride-server/internal/ticket"
)

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

// ============================================================================
// CREATE GAME (POST /games, create_game)
// ============================================================================
// tygo:generate
type CreateGameRequest struct {
	Username string `json:"username"`
}

// tygo:generate
type SessionResponse struct {
	RoomCode string          `json:"room_code"`
	Token    string          `json:"token"`
	PlayerID ticket.PlayerID `json:"player_id"`
	Username string          `json:"username"`
}

// ============================================================================
// JOIN GAME (POST /games/{code}/join, join_game)
// ============================================================================
// tygo:generate
type JoinGameRequest struct {
	RoomCode string `json:"room_code,omitempty"`
	Username string `json:"username"`
}

// ============================================================================
// RECONNECT (reconnect)
// ============================================================================
// tygo:generate
type ReconnectRequest struct {
	Token string `json:"token"`
}

// ============================================================================
// LOBBY SETTINGS (PUT /games/{code}/player/*, set_ready / set_color / set_name)
// ============================================================================
// tygo:generate
type SetReadyRequest struct {
	Ready bool `json:"ready"`
}

// tygo:generate
type SetReadyResponse struct {
	Ready    bool `json:"ready"`
	AllReady bool `json:"all_ready"`
}

// tygo:generate
type SetColorRequest struct {
	Color ticket.PlayerColor `json:"color"`
}

// tygo:generate
type SetNameRequest struct {
	Name string `json:"name"`
}

// ============================================================================
// TURN ACTIONS (POST /games/{code}/actions, apply_action)
// ============================================================================
// The request body is the action itself, e.g. {"type":"draw_open","slot":2}.
type ApplyActionRequest = json.RawMessage

// tygo:generate
type ActionResponse struct {
	Entry ticket.LogEntry `json:"entry"`
	State ticket.View     `json:"state"`
}

// ============================================================================
// STATE (GET /games/{code}/state, get_state)
// ============================================================================
// tygo:generate
type StateResponse struct {
	RoomCode string      `json:"room_code"`
	Status   GameStatus  `json:"status"`
	State    ticket.View `json:"state"`
}

// ============================================================================
// LISTING (GET /games)
// ============================================================================
// tygo:generate
type ListGamesResponse struct {
	Games []GameSummary `json:"games"`
}

// tygo:generate
type OKResponse struct {
	OK bool `json:"ok"`
}
