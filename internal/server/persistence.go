package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/ticket"
)

// PersistenceManager stores games, sessions and room codes in postgres.
// Each game is one JSON document holding the full engine state.
type PersistenceManager struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPersistenceManager(pool *pgxpool.Pool, logger *log.Logger) *PersistenceManager {
	return &PersistenceManager{
		pool:   pool,
		logger: logger.WithPrefix("persistence"),
	}
}

// SaveGame upserts a game.
func (pm *PersistenceManager) SaveGame(ctx context.Context, game *ActiveGame) error {
	gameData, err := game.Game.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize game: %w", err)
	}

	_, err = pm.pool.Exec(ctx, `
		INSERT INTO games (room_code, status, game_data, created_at, updated_at, lobby_expiry)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_code) DO UPDATE SET
			status = EXCLUDED.status,
			game_data = EXCLUDED.game_data,
			updated_at = EXCLUDED.updated_at,
			lobby_expiry = EXCLUDED.lobby_expiry
	`,
		game.RoomCode,
		string(game.Status()),
		gameData,
		game.CreatedAt(),
		game.UpdatedAt(),
		game.LobbyExpiry(),
	)
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", game.RoomCode, err)
	}

	return nil
}

// LoadGame reads one game and binds it to b.
func (pm *PersistenceManager) LoadGame(ctx context.Context, roomCode string, b *board.Board) (*ActiveGame, error) {
	row := pm.pool.QueryRow(ctx, `
		SELECT room_code, game_data, created_at, updated_at, lobby_expiry
		FROM games WHERE room_code = $1
	`, roomCode)

	game, err := scanGame(row, b)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", roomCode, err)
	}
	return game, nil
}

// LoadAllActiveGames reads every game that has not finished. Games that no
// longer decode against b are skipped with a warning.
func (pm *PersistenceManager) LoadAllActiveGames(ctx context.Context, b *board.Board) ([]*ActiveGame, error) {
	rows, err := pm.pool.Query(ctx, `
		SELECT room_code, game_data, created_at, updated_at, lobby_expiry
		FROM games
		WHERE status != $1
		ORDER BY updated_at DESC
	`, string(StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to query active games: %w", err)
	}
	defer rows.Close()

	var games []*ActiveGame
	for rows.Next() {
		game, err := scanGame(rows, b)
		if err != nil {
			pm.logger.Warn("Skipping unreadable game", "error", err)
			continue
		}
		games = append(games, game)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game rows: %w", err)
	}

	return games, nil
}

func scanGame(row pgx.Row, b *board.Board) (*ActiveGame, error) {
	var (
		roomCode                      string
		gameData                      []byte
		created, updated, lobbyExpiry time.Time
	)
	if err := row.Scan(&roomCode, &gameData, &created, &updated, &lobbyExpiry); err != nil {
		return nil, err
	}

	engine, err := ticket.RestoreManager(gameData, b)
	if err != nil {
		return nil, fmt.Errorf("failed to restore game %s: %w", roomCode, err)
	}
	return newActiveGame(engine, roomCode, created, updated, lobbyExpiry), nil
}

// DeleteGame removes a game and its sessions and frees its room code.
func (pm *PersistenceManager) DeleteGame(ctx context.Context, roomCode string) error {
	tag, err := pm.pool.Exec(ctx, `DELETE FROM games WHERE room_code = $1`, roomCode)
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", roomCode, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}

	if err := pm.SaveRoomCode(ctx, roomCode, false); err != nil {
		pm.logger.Warn("Failed to release room code", "room", roomCode, "error", err)
	}

	return nil
}

func (pm *PersistenceManager) SaveSession(ctx context.Context, session SessionInfo) error {
	_, err := pm.pool.Exec(ctx, `
		INSERT INTO sessions (token, room_code, player_id, username, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token) DO UPDATE SET
			room_code = EXCLUDED.room_code,
			player_id = EXCLUDED.player_id,
			username = EXCLUDED.username
	`,
		session.Token,
		session.RoomCode,
		int(session.PlayerID),
		session.Username,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session for %s: %w", session.RoomCode, err)
	}

	return nil
}

func (pm *PersistenceManager) LoadSession(ctx context.Context, token string) (SessionInfo, error) {
	row := pm.pool.QueryRow(ctx, `
		SELECT token, room_code, player_id, username, created_at FROM sessions WHERE token = $1
	`, token)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionInfo{}, ErrTokenNotFound
	}
	if err != nil {
		return SessionInfo{}, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

func (pm *PersistenceManager) LoadAllSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := pm.pool.Query(ctx, `SELECT token, room_code, player_id, username, created_at FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}

	return sessions, nil
}

func scanSession(row pgx.Row) (SessionInfo, error) {
	var (
		session  SessionInfo
		playerID int
	)
	if err := row.Scan(&session.Token, &session.RoomCode, &playerID, &session.Username, &session.CreatedAt); err != nil {
		return SessionInfo{}, err
	}
	session.PlayerID = ticket.PlayerID(playerID)
	return session, nil
}

func (pm *PersistenceManager) DeleteSession(ctx context.Context, token string) error {
	if _, err := pm.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SaveRoomCode marks a room code as reserved or free.
func (pm *PersistenceManager) SaveRoomCode(ctx context.Context, code string, inUse bool) error {
	_, err := pm.pool.Exec(ctx, `
		INSERT INTO room_codes (code, in_use, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (code) DO UPDATE SET in_use = EXCLUDED.in_use
	`, code, inUse)
	if err != nil {
		return fmt.Errorf("failed to save room code %s: %w", code, err)
	}

	return nil
}

func (pm *PersistenceManager) LoadUsedRoomCodes(ctx context.Context) (map[string]bool, error) {
	rows, err := pm.pool.Query(ctx, `SELECT code, in_use FROM room_codes`)
	if err != nil {
		return nil, fmt.Errorf("failed to query room codes: %w", err)
	}
	defer rows.Close()

	usedCodes := make(map[string]bool)
	for rows.Next() {
		var code string
		var inUse bool
		if err := rows.Scan(&code, &inUse); err != nil {
			return nil, fmt.Errorf("failed to scan room code row: %w", err)
		}
		usedCodes[code] = inUse
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room code rows: %w", err)
	}

	return usedCodes, nil
}

// CleanupOldGames deletes finished games last updated before cutoff and
// frees their room codes.
func (pm *PersistenceManager) CleanupOldGames(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := pm.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin cleanup: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		DELETE FROM games WHERE status = $1 AND updated_at < $2
		RETURNING room_code
	`, string(StatusCompleted), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old games: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("failed to collect deleted games: %w", err)
	}

	if len(codes) > 0 {
		if _, err := tx.Exec(ctx, `UPDATE room_codes SET in_use = false WHERE code = ANY($1)`, codes); err != nil {
			return 0, fmt.Errorf("failed to release room codes: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup: %w", err)
	}
	return len(codes), nil
}
