package ticket

import (
	"encoding/json"
	"sync"

	"ticket-to-ride-server/internal/board"
)

// Manager owns one Game and serializes every mutation of it. Snapshots run
// under a read lock and may proceed concurrently with each other.
type Manager struct {
	mu   sync.RWMutex
	game *Game
}

// CreateGame starts a new lobby on b.
func CreateGame(id string, b *board.Board, rules Rules, seed uint64) (*Manager, error) {
	g, err := NewGame(id, b, rules, seed)
	if err != nil {
		return nil, err
	}
	return &Manager{game: g}, nil
}

// RestoreManager decodes a game written by MarshalJSON and binds it to b.
func RestoreManager(data []byte, b *board.Board) (*Manager, error) {
	var g Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	if err := g.Attach(b); err != nil {
		return nil, err
	}
	return &Manager{game: &g}, nil
}

func (m *Manager) ID() string {
	return m.game.ID
}

func (m *Manager) Join(name string) (PlayerID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game.Join(name)
}

func (m *Manager) Leave(id PlayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game.Leave(id)
}

// SetReady also reports whether every player is now ready.
func (m *Manager) SetReady(id PlayerID, ready bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.game.SetReady(id, ready); err != nil {
		return false, err
	}
	return m.game.AllReady(), nil
}

func (m *Manager) SetColor(id PlayerID, color PlayerColor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game.SetColor(id, color)
}

func (m *Manager) SetName(id PlayerID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game.SetName(id, name)
}

func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game.Start()
}

func (m *Manager) Apply(id PlayerID, action Action) (LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game.Apply(id, action)
}

// Snapshot returns the game as seen by id, failing if id is not a player.
func (m *Manager) Snapshot(id PlayerID) (View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, _, err := m.game.player(id); err != nil {
		return View{}, err
	}
	return m.game.Snapshot(id)
}

// PublicSnapshot is the view of a spectator.
func (m *Manager) PublicSnapshot() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.game.PublicView()
}

func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.game.Phase
}

// PlayerCount is the number of joined players.
func (m *Manager) PlayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.game.Players)
}

// HasPlayer reports whether id is in the game.
func (m *Manager) HasPlayer(id PlayerID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, _, err := m.game.player(id)
	return err == nil
}

// MarshalJSON writes the full game, private data included, for storage.
func (m *Manager) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(m.game)
}
