package server

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/database"
	"ticket-to-ride-server/internal/database/dbtest"
)

func setupPersistence(t *testing.T) (database.Service, *PersistenceManager, *GameManager, *quartz.Mock) {
	t.Helper()
	db := dbtest.Start(t)
	gm, mClock := newTestGameManager(t)
	return db, NewPersistenceManager(db.Pool(), testLogger()), gm, mClock
}

func TestPersistence_SaveAndLoadGame(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	_, pm, gm, _ := setupPersistence(t)

	game, alice, bob := startedGame(t, gm)
	require.NoError(t, pm.SaveGame(ctx, game))

	loaded, err := pm.LoadGame(ctx, game.RoomCode, board.Default())
	require.NoError(t, err)

	assert.Equal(game.RoomCode, loaded.RoomCode)
	assert.Equal(game.Game.Phase(), loaded.Game.Phase())
	assert.Equal(StatusPlaying, loaded.Status())
	assert.WithinDuration(game.CreatedAt(), loaded.CreatedAt(), time.Millisecond)
	assert.WithinDuration(game.LobbyExpiry(), loaded.LobbyExpiry(), time.Millisecond)

	for _, session := range []SessionInfo{alice, bob} {
		want, err := game.Game.Snapshot(session.PlayerID)
		require.NoError(t, err)
		got, err := loaded.Game.Snapshot(session.PlayerID)
		require.NoError(t, err)
		assert.Equal(want, got)
	}
}

func TestPersistence_SaveGameUpserts(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	_, pm, gm, _ := setupPersistence(t)

	game, alice, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	require.NoError(t, pm.SaveGame(ctx, game))

	_, err = gm.SetName(game.RoomCode, alice.Token, "Alicia")
	require.NoError(t, err)
	require.NoError(t, pm.SaveGame(ctx, game))

	loaded, err := pm.LoadGame(ctx, game.RoomCode, board.Default())
	require.NoError(t, err)
	assert.Equal("Alicia", playerName(loaded.Game.PublicSnapshot(), alice.PlayerID))
}

func TestPersistence_LoadGameNotFound(t *testing.T) {
	_, pm, _, _ := setupPersistence(t)

	_, err := pm.LoadGame(context.Background(), "NONE", board.Default())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestPersistence_LoadAllActiveGamesSkipsCompleted(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db, pm, gm, _ := setupPersistence(t)

	active, _, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	finished, _, err := gm.CreateGame("Bob")
	require.NoError(t, err)
	require.NoError(t, pm.SaveGame(ctx, active))
	require.NoError(t, pm.SaveGame(ctx, finished))

	_, err = db.Pool().Exec(ctx, `UPDATE games SET status = $1 WHERE room_code = $2`, string(StatusCompleted), finished.RoomCode)
	require.NoError(t, err)

	_, err = db.Pool().Exec(ctx, `
		INSERT INTO games (room_code, status, game_data, created_at, updated_at, lobby_expiry)
		VALUES ('JUNK', 'lobby', '{"broken": true}', now(), now(), now())
	`)
	require.NoError(t, err)

	games, err := pm.LoadAllActiveGames(ctx, board.Default())
	require.NoError(t, err)
	if assert.Len(games, 1) {
		assert.Equal(active.RoomCode, games[0].RoomCode)
	}
}

func TestPersistence_Sessions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	_, pm, gm, _ := setupPersistence(t)

	game, alice, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, bob, err := gm.JoinGame(game.RoomCode, "Bob")
	require.NoError(t, err)

	require.NoError(t, pm.SaveGame(ctx, game))
	require.NoError(t, pm.SaveSession(ctx, alice))
	require.NoError(t, pm.SaveSession(ctx, bob))

	loaded, err := pm.LoadSession(ctx, bob.Token)
	require.NoError(t, err)
	assert.Equal(bob.RoomCode, loaded.RoomCode)
	assert.Equal(bob.PlayerID, loaded.PlayerID)
	assert.Equal(bob.Username, loaded.Username)

	all, err := pm.LoadAllSessions(ctx)
	require.NoError(t, err)
	assert.Len(all, 2)

	require.NoError(t, pm.DeleteSession(ctx, bob.Token))
	_, err = pm.LoadSession(ctx, bob.Token)
	assert.ErrorIs(err, ErrTokenNotFound)
}

func TestPersistence_DeleteGameCascades(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	_, pm, gm, _ := setupPersistence(t)

	game, alice, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	require.NoError(t, pm.SaveGame(ctx, game))
	require.NoError(t, pm.SaveRoomCode(ctx, game.RoomCode, true))
	require.NoError(t, pm.SaveSession(ctx, alice))

	require.NoError(t, pm.DeleteGame(ctx, game.RoomCode))

	_, err = pm.LoadSession(ctx, alice.Token)
	assert.ErrorIs(err, ErrTokenNotFound)

	codes, err := pm.LoadUsedRoomCodes(ctx)
	require.NoError(t, err)
	inUse, known := codes[game.RoomCode]
	assert.True(known)
	assert.False(inUse)

	assert.ErrorIs(pm.DeleteGame(ctx, game.RoomCode), ErrRoomNotFound)
}

func TestPersistence_CleanupOldGames(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db, pm, gm, _ := setupPersistence(t)

	var codes []string
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		game, _, err := gm.CreateGame(name)
		require.NoError(t, err)
		require.NoError(t, pm.SaveGame(ctx, game))
		require.NoError(t, pm.SaveRoomCode(ctx, game.RoomCode, true))
		codes = append(codes, game.RoomCode)
	}

	// Old and finished, recent and finished, old but still in the lobby.
	now := time.Now()
	for i, update := range []struct {
		status  GameStatus
		updated time.Time
	}{
		{StatusCompleted, now.Add(-48 * time.Hour)},
		{StatusCompleted, now},
		{StatusLobby, now.Add(-48 * time.Hour)},
	} {
		_, err := db.Pool().Exec(ctx, `UPDATE games SET status = $1, updated_at = $2 WHERE room_code = $3`,
			string(update.status), update.updated, codes[i])
		require.NoError(t, err)
	}

	deleted, err := pm.CleanupOldGames(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(1, deleted)

	_, err = pm.LoadGame(ctx, codes[0], board.Default())
	assert.ErrorIs(err, ErrRoomNotFound)
	_, err = pm.LoadGame(ctx, codes[1], board.Default())
	assert.NoError(err)
	_, err = pm.LoadGame(ctx, codes[2], board.Default())
	assert.NoError(err)

	used, err := pm.LoadUsedRoomCodes(ctx)
	require.NoError(t, err)
	assert.False(used[codes[0]])
	assert.True(used[codes[1]])
}

func TestServer_RestoresPersistedState(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db, pm, gm, _ := setupPersistence(t)

	game, alice, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	require.NoError(t, pm.SaveGame(ctx, game))
	require.NoError(t, pm.SaveRoomCode(ctx, game.RoomCode, true))
	require.NoError(t, pm.SaveSession(ctx, alice))

	s, err := New(ctx, Options{
		Board:  board.Default(),
		DB:     db,
		Logger: testLogger(),
		Clock:  quartz.NewMock(t),
	})
	require.NoError(t, err)

	restored, session, err := s.gameManager.GetGameByToken(alice.Token)
	require.NoError(t, err)
	assert.Equal(game.RoomCode, restored.RoomCode)
	assert.Equal(alice.PlayerID, session.PlayerID)
	assert.True(s.gameManager.usedCodes[game.RoomCode])

	// Writes through the restored server reach the database.
	_, err = s.gameManager.SetName(game.RoomCode, alice.Token, "Alicia")
	require.NoError(t, err)
	s.saveAll(ctx)

	loaded, err := pm.LoadGame(ctx, game.RoomCode, board.Default())
	require.NoError(t, err)
	assert.Equal("Alicia", playerName(loaded.Game.PublicSnapshot(), alice.PlayerID))
}
