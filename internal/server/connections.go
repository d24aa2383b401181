package server

import (
	"sync"

	"github.com/coder/websocket"
)

// ConnectionManager tracks open websockets and the session token each one
// has bound. A token is bound to at most one connection at a time.
type ConnectionManager struct {
	connections map[string]*websocket.Conn // connectionID -> socket
	tokens      map[string]string          // connectionID -> token
	owners      map[string]string          // token -> connectionID
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		tokens:      make(map[string]string),
		owners:      make(map[string]string),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

// RemoveConnection forgets a socket and releases its token.
func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, id)
	if token, ok := cm.tokens[id]; ok {
		delete(cm.tokens, id)
		if cm.owners[token] == id {
			delete(cm.owners, token)
		}
	}
}

// BindToken attaches token to connection id and returns the connection that
// held it before, or "" when there was none.
func (cm *ConnectionManager) BindToken(id, token string) string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	previous := cm.owners[token]
	if old, ok := cm.tokens[id]; ok && old != token {
		delete(cm.owners, old)
	}
	if previous != "" && previous != id {
		delete(cm.tokens, previous)
	}
	cm.tokens[id] = token
	cm.owners[token] = id
	return previous
}

// UnbindToken releases token from whichever connection holds it.
func (cm *ConnectionManager) UnbindToken(token string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if id, ok := cm.owners[token]; ok {
		delete(cm.owners, token)
		delete(cm.tokens, id)
	}
}

func (cm *ConnectionManager) GetTokenByConnection(connectionID string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.tokens[connectionID]
}

func (cm *ConnectionManager) GetConnectionByToken(token string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.owners[token]
}

func (cm *ConnectionManager) GetConnection(connectionID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[connectionID]
}

// CloseAll closes every socket, used on shutdown.
func (cm *ConnectionManager) CloseAll(reason string) int {
	cm.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(cm.connections))
	for id, conn := range cm.connections {
		if conn != nil {
			conns = append(conns, conn)
		}
		delete(cm.connections, id)
	}
	clear(cm.tokens)
	clear(cm.owners)
	cm.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, reason)
	}
	return len(conns)
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}
