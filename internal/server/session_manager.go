package server

import (
	"errors"
	"sync"
	"time"

	"ticket-to-ride-server/internal/ticket"
)

var ErrTokenNotFound = errors.New("TOKEN_NOT_FOUND: Invalid session token")

// SessionInfo binds a token to one seat in one game.
type SessionInfo struct {
	Token     string          `json:"token"`
	RoomCode  string          `json:"room_code"`
	PlayerID  ticket.PlayerID `json:"player_id"`
	Username  string          `json:"username"`
	CreatedAt time.Time       `json:"created_at"`
}

type SessionManager struct {
	sessions map[string]SessionInfo // Token -> SessionInfo
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]SessionInfo),
	}
}

func (sm *SessionManager) StoreSession(info SessionInfo) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[info.Token] = info
}

func (sm *SessionManager) GetSession(token string) (SessionInfo, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[token]
	if !exists {
		return SessionInfo{}, ErrTokenNotFound
	}

	return session, nil
}

// Used for players who intentionally leave
func (sm *SessionManager) RemoveSession(token string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, token)
}

// RemoveGameSessions drops every session of a room and returns their tokens.
func (sm *SessionManager) RemoveGameSessions(roomCode string) []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var tokens []string
	for token, session := range sm.sessions {
		if session.RoomCode == roomCode {
			tokens = append(tokens, token)
			delete(sm.sessions, token)
		}
	}
	return tokens
}

func (sm *SessionManager) GetAllSessions() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sessions := make([]SessionInfo, 0, len(sm.sessions))
	for _, session := range sm.sessions {
		sessions = append(sessions, session)
	}

	return sessions
}

func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
