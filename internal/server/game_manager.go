package server

import (
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/ticket"
)

const defaultLobbyExpiry = 10 * time.Minute

type GameStatus string

const (
	StatusLobby     GameStatus = "lobby"
	StatusPlaying   GameStatus = "playing"
	StatusCompleted GameStatus = "completed"
)

func statusOf(phase ticket.Phase) GameStatus {
	switch phase {
	case ticket.PhaseLobby:
		return StatusLobby
	case ticket.PhaseDone:
		return StatusCompleted
	default:
		return StatusPlaying
	}
}

// ActiveGame is one hosted game. The engine serializes its own mutations;
// mu only guards the bookkeeping timestamps.
type ActiveGame struct {
	Game     *ticket.Manager
	RoomCode string

	mu          sync.RWMutex
	createdAt   time.Time
	updatedAt   time.Time
	lobbyExpiry time.Time
}

func newActiveGame(game *ticket.Manager, roomCode string, created, updated, expiry time.Time) *ActiveGame {
	return &ActiveGame{
		Game:        game,
		RoomCode:    roomCode,
		createdAt:   created,
		updatedAt:   updated,
		lobbyExpiry: expiry,
	}
}

func (ag *ActiveGame) Status() GameStatus {
	return statusOf(ag.Game.Phase())
}

func (ag *ActiveGame) CreatedAt() time.Time {
	ag.mu.RLock()
	defer ag.mu.RUnlock()
	return ag.createdAt
}

func (ag *ActiveGame) UpdatedAt() time.Time {
	ag.mu.RLock()
	defer ag.mu.RUnlock()
	return ag.updatedAt
}

func (ag *ActiveGame) LobbyExpiry() time.Time {
	ag.mu.RLock()
	defer ag.mu.RUnlock()
	return ag.lobbyExpiry
}

func (ag *ActiveGame) touch(now time.Time) {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	ag.updatedAt = now
}

func (ag *ActiveGame) expireAt(t time.Time) {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	ag.lobbyExpiry = t
}

// GameSummary is the public listing entry of a game.
type GameSummary struct {
	RoomCode  string       `json:"room_code"`
	Status    GameStatus   `json:"status"`
	Phase     ticket.Phase `json:"phase"`
	Players   int          `json:"players"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type GameManagerConfig struct {
	Board       *board.Board
	Rules       ticket.Rules
	LobbyExpiry time.Duration
}

// GameManager is the registry of hosted games. Its lock covers the registry
// only; each game carries its own.
type GameManager struct {
	games     map[string]*ActiveGame
	usedCodes map[string]bool
	mu        sync.RWMutex

	board       *board.Board
	rules       ticket.Rules
	lobbyExpiry time.Duration
	sessions    *SessionManager
	logger      *log.Logger
	clock       quartz.Clock
	seed        func() uint64
}

func NewGameManager(cfg GameManagerConfig, sessions *SessionManager, logger *log.Logger, clock quartz.Clock) *GameManager {
	if cfg.Board == nil {
		cfg.Board = board.Default()
	}
	if cfg.LobbyExpiry <= 0 {
		cfg.LobbyExpiry = defaultLobbyExpiry
	}
	return &GameManager{
		games:       make(map[string]*ActiveGame),
		usedCodes:   make(map[string]bool),
		board:       cfg.Board,
		rules:       cfg.Rules,
		lobbyExpiry: cfg.LobbyExpiry,
		sessions:    sessions,
		logger:      logger.WithPrefix("games"),
		clock:       clock,
		seed:        rand.Uint64,
	}
}

func (gm *GameManager) Board() *board.Board {
	return gm.board
}

// CreateGame opens a lobby and seats its creator.
func (gm *GameManager) CreateGame(username string) (*ActiveGame, SessionInfo, error) {
	gm.mu.Lock()
	roomCode, err := GenerateRoomCode(gm.usedCodes)
	if err == nil {
		gm.usedCodes[roomCode] = true
	}
	gm.mu.Unlock()
	if err != nil {
		return nil, SessionInfo{}, err
	}

	engine, err := ticket.CreateGame(roomCode, gm.board, gm.rules, gm.seed())
	if err != nil {
		gm.releaseCode(roomCode)
		return nil, SessionInfo{}, err
	}

	now := gm.clock.Now()
	game := newActiveGame(engine, roomCode, now, now, now.Add(gm.lobbyExpiry))

	session, err := gm.seat(game, username)
	if err != nil {
		gm.releaseCode(roomCode)
		return nil, SessionInfo{}, err
	}

	gm.mu.Lock()
	gm.games[roomCode] = game
	gm.mu.Unlock()

	gm.logger.Info("Game created", "room", roomCode, "player", session.Username)
	return game, session, nil
}

func (gm *GameManager) JoinGame(roomCode, username string) (*ActiveGame, SessionInfo, error) {
	roomCode = NormalizeRoomCode(roomCode)
	if err := ValidateRoomCode(roomCode); err != nil {
		return nil, SessionInfo{}, err
	}

	game, err := gm.GetGame(roomCode)
	if err != nil {
		return nil, SessionInfo{}, err
	}

	session, err := gm.seat(game, username)
	if err != nil {
		gm.logger.Debug("Join rejected", "room", roomCode, "error", err)
		return nil, SessionInfo{}, err
	}

	gm.logger.Info("Player joined", "room", roomCode, "player", session.Username, "id", session.PlayerID)
	return game, session, nil
}

func (gm *GameManager) seat(game *ActiveGame, username string) (SessionInfo, error) {
	id, err := game.Game.Join(username)
	if err != nil {
		return SessionInfo{}, err
	}

	now := gm.clock.Now()
	session := SessionInfo{
		Token:     uuid.New().String(),
		RoomCode:  game.RoomCode,
		PlayerID:  id,
		Username:  playerName(game.Game.PublicSnapshot(), id),
		CreatedAt: now,
	}
	gm.sessions.StoreSession(session)
	game.touch(now)
	return session, nil
}

func playerName(view ticket.View, id ticket.PlayerID) string {
	for _, p := range view.Players {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

// authorize resolves token to a seat in roomCode.
func (gm *GameManager) authorize(roomCode, token string) (*ActiveGame, SessionInfo, error) {
	if token == "" {
		return nil, SessionInfo{}, ErrMissingToken
	}
	roomCode = NormalizeRoomCode(roomCode)
	game, err := gm.GetGame(roomCode)
	if err != nil {
		return nil, SessionInfo{}, err
	}

	session, err := gm.sessions.GetSession(token)
	if err != nil {
		return nil, SessionInfo{}, err
	}
	if session.RoomCode != roomCode || !game.Game.HasPlayer(session.PlayerID) {
		return nil, SessionInfo{}, ErrNotInGame
	}
	return game, session, nil
}

// SetReady reports whether every seated player is ready afterwards.
func (gm *GameManager) SetReady(roomCode, token string, ready bool) (*ActiveGame, bool, error) {
	game, session, err := gm.authorize(roomCode, token)
	if err != nil {
		return nil, false, err
	}

	allReady, err := game.Game.SetReady(session.PlayerID, ready)
	if err != nil {
		return nil, false, err
	}
	game.touch(gm.clock.Now())
	return game, allReady, nil
}

func (gm *GameManager) SetColor(roomCode, token string, color ticket.PlayerColor) (*ActiveGame, error) {
	game, session, err := gm.authorize(roomCode, token)
	if err != nil {
		return nil, err
	}

	if err := game.Game.SetColor(session.PlayerID, color); err != nil {
		return nil, err
	}
	game.touch(gm.clock.Now())
	return game, nil
}

func (gm *GameManager) SetName(roomCode, token, name string) (*ActiveGame, error) {
	game, session, err := gm.authorize(roomCode, token)
	if err != nil {
		return nil, err
	}

	if err := game.Game.SetName(session.PlayerID, name); err != nil {
		return nil, err
	}
	session.Username = playerName(game.Game.PublicSnapshot(), session.PlayerID)
	gm.sessions.StoreSession(session)
	game.touch(gm.clock.Now())
	return game, nil
}

// LeaveGame frees the seat of a lobby player. An emptied lobby expires
// immediately.
func (gm *GameManager) LeaveGame(roomCode, token string) (*ActiveGame, error) {
	game, session, err := gm.authorize(roomCode, token)
	if err != nil {
		return nil, err
	}

	if err := game.Game.Leave(session.PlayerID); err != nil {
		return nil, err
	}
	gm.sessions.RemoveSession(token)

	now := gm.clock.Now()
	game.touch(now)
	if game.Game.PlayerCount() == 0 {
		game.expireAt(now)
	}

	gm.logger.Info("Player left", "room", game.RoomCode, "player", session.Username)
	return game, nil
}

// StartGame may be requested by any seated player.
func (gm *GameManager) StartGame(roomCode, token string) (*ActiveGame, error) {
	game, _, err := gm.authorize(roomCode, token)
	if err != nil {
		return nil, err
	}

	if err := game.Game.Start(); err != nil {
		return nil, err
	}
	game.touch(gm.clock.Now())

	gm.logger.Info("Game started", "room", game.RoomCode, "players", game.Game.PlayerCount())
	return game, nil
}

func (gm *GameManager) ApplyAction(roomCode, token string, action ticket.Action) (*ActiveGame, ticket.LogEntry, error) {
	game, session, err := gm.authorize(roomCode, token)
	if err != nil {
		return nil, ticket.LogEntry{}, err
	}

	entry, err := game.Game.Apply(session.PlayerID, action)
	if err != nil {
		var invariantErr *ticket.InvariantError
		if errors.As(err, &invariantErr) {
			gm.logger.Error("Engine invariant violated", "room", game.RoomCode, "action", action.Type(), "error", err)
		} else {
			gm.logger.Debug("Action rejected", "room", game.RoomCode, "player", session.Username, "action", action.Type(), "error", err)
		}
		return nil, ticket.LogEntry{}, err
	}
	game.touch(gm.clock.Now())

	if game.Game.Phase() == ticket.PhaseDone {
		gm.logger.Info("Game finished", "room", game.RoomCode)
	}
	return game, entry, nil
}

// Snapshot returns the game as seen by the token's player.
func (gm *GameManager) Snapshot(roomCode, token string) (ticket.View, error) {
	game, session, err := gm.authorize(roomCode, token)
	if err != nil {
		return ticket.View{}, err
	}
	return game.Game.Snapshot(session.PlayerID)
}

// PublicSnapshot is the spectator view of a game.
func (gm *GameManager) PublicSnapshot(roomCode string) (ticket.View, error) {
	game, err := gm.GetGame(NormalizeRoomCode(roomCode))
	if err != nil {
		return ticket.View{}, err
	}
	return game.Game.PublicSnapshot(), nil
}

func (gm *GameManager) GetGame(roomCode string) (*ActiveGame, error) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()

	game, exists := gm.games[roomCode]
	if !exists {
		return nil, ErrRoomNotFound
	}

	return game, nil
}

func (gm *GameManager) GetGameByToken(token string) (*ActiveGame, SessionInfo, error) {
	session, err := gm.sessions.GetSession(token)
	if err != nil {
		return nil, SessionInfo{}, err
	}
	game, err := gm.GetGame(session.RoomCode)
	if err != nil {
		return nil, SessionInfo{}, err
	}
	return game, session, nil
}

// Games returns every hosted game.
func (gm *GameManager) Games() []*ActiveGame {
	gm.mu.RLock()
	defer gm.mu.RUnlock()

	games := make([]*ActiveGame, 0, len(gm.games))
	for _, game := range gm.games {
		games = append(games, game)
	}
	return games
}

// ListGames summarizes every game, newest first.
func (gm *GameManager) ListGames() []GameSummary {
	games := gm.Games()
	summaries := make([]GameSummary, 0, len(games))
	for _, game := range games {
		phase := game.Game.Phase()
		summaries = append(summaries, GameSummary{
			RoomCode:  game.RoomCode,
			Status:    statusOf(phase),
			Phase:     phase,
			Players:   game.Game.PlayerCount(),
			CreatedAt: game.CreatedAt(),
			UpdatedAt: game.UpdatedAt(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].RoomCode < summaries[j].RoomCode
	})
	return summaries
}

// ExpireLobbies removes lobbies that were never started in time and returns
// their room codes.
func (gm *GameManager) ExpireLobbies() []string {
	now := gm.clock.Now()
	return gm.removeWhere(func(game *ActiveGame) bool {
		return game.Status() == StatusLobby && !now.Before(game.LobbyExpiry())
	}, "Lobby expired")
}

// RemoveFinishedGames drops completed games untouched for longer than
// olderThan.
func (gm *GameManager) RemoveFinishedGames(olderThan time.Duration) []string {
	cutoff := gm.clock.Now().Add(-olderThan)
	return gm.removeWhere(func(game *ActiveGame) bool {
		return game.Status() == StatusCompleted && game.UpdatedAt().Before(cutoff)
	}, "Finished game removed")
}

func (gm *GameManager) removeWhere(match func(*ActiveGame) bool, msg string) []string {
	gm.mu.Lock()
	var removed []string
	for code, game := range gm.games {
		if match(game) {
			delete(gm.games, code)
			delete(gm.usedCodes, code)
			removed = append(removed, code)
		}
	}
	gm.mu.Unlock()

	for _, code := range removed {
		gm.sessions.RemoveGameSessions(code)
		gm.logger.Info(msg, "room", code)
	}
	sort.Strings(removed)
	return removed
}

// Restore installs games, reserved room codes and sessions loaded from
// storage.
func (gm *GameManager) Restore(games []*ActiveGame, usedCodes map[string]bool, sessions []SessionInfo) {
	gm.mu.Lock()
	for code, inUse := range usedCodes {
		if inUse {
			gm.usedCodes[code] = true
		}
	}
	for _, game := range games {
		gm.games[game.RoomCode] = game
		gm.usedCodes[game.RoomCode] = true
	}
	gm.mu.Unlock()

	restored := 0
	for _, session := range sessions {
		game, err := gm.GetGame(session.RoomCode)
		if err != nil || !game.Game.HasPlayer(session.PlayerID) {
			continue
		}
		gm.sessions.StoreSession(session)
		restored++
	}

	gm.logger.Info("Restored state", "games", len(games), "sessions", restored)
}

func (gm *GameManager) releaseCode(roomCode string) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	delete(gm.usedCodes, roomCode)
}
