package server

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/ticket"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func newTestGameManager(t *testing.T) (*GameManager, *quartz.Mock) {
	t.Helper()
	mClock := quartz.NewMock(t)
	gm := NewGameManager(GameManagerConfig{
		Board: board.Default(),
		Rules: ticket.DefaultRules(),
	}, NewSessionManager(), testLogger(), mClock)
	gm.seed = func() uint64 { return 42 }
	return gm, mClock
}

// startedGame seats two ready players and starts the game.
func startedGame(t *testing.T, gm *GameManager) (*ActiveGame, SessionInfo, SessionInfo) {
	t.Helper()
	require := require.New(t)

	game, alice, err := gm.CreateGame("Alice")
	require.NoError(err)
	_, bob, err := gm.JoinGame(game.RoomCode, "Bob")
	require.NoError(err)

	_, _, err = gm.SetReady(game.RoomCode, alice.Token, true)
	require.NoError(err)
	_, allReady, err := gm.SetReady(game.RoomCode, bob.Token, true)
	require.NoError(err)
	require.True(allReady)

	_, err = gm.StartGame(game.RoomCode, alice.Token)
	require.NoError(err)
	return game, alice, bob
}

// keepAll resolves the opening ticket selection for session.
func keepAll(t *testing.T, gm *GameManager, session SessionInfo) {
	t.Helper()
	view, err := gm.Snapshot(session.RoomCode, session.Token)
	require.NoError(t, err)
	require.NotNil(t, view.You)

	keep := make([]board.DestinationID, 0, len(view.You.PendingDestinations))
	for _, d := range view.You.PendingDestinations {
		keep = append(keep, d.ID)
	}
	_, _, err = gm.ApplyAction(session.RoomCode, session.Token, ticket.SelectDestinations{Keep: keep})
	require.NoError(t, err)
}

func TestGameManager_CreateGame(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestGameManager(t)

	game, session, err := gm.CreateGame("Alice")
	assert.NoError(err)
	assert.Len(game.RoomCode, 4)
	assert.Equal(game.RoomCode, session.RoomCode)
	assert.Equal("Alice", session.Username)
	assert.NotEmpty(session.Token)
	assert.Equal(StatusLobby, game.Status())

	stored, err := gm.sessions.GetSession(session.Token)
	assert.NoError(err)
	assert.Equal(session, stored)
	assert.True(gm.usedCodes[game.RoomCode])
}

func TestGameManager_CreateGameInvalidNameReleasesCode(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestGameManager(t)

	_, _, err := gm.CreateGame("this name is far too long to be accepted by the lobby")
	assert.Error(err)
	assert.Empty(gm.Games())
	assert.Empty(gm.usedCodes)
}

func TestGameManager_JoinGame(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestGameManager(t)

	game, alice, err := gm.CreateGame("Alice")
	assert.NoError(err)

	joined, bob, err := gm.JoinGame(" "+strings.ToLower(game.RoomCode)+" ", "Bob")
	assert.NoError(err)
	assert.Same(game, joined)
	assert.NotEqual(alice.PlayerID, bob.PlayerID)
	assert.NotEqual(alice.Token, bob.Token)
	assert.Equal(2, game.Game.PlayerCount())
}

func TestGameManager_JoinGameErrors(t *testing.T) {
	gm, _ := newTestGameManager(t)
	game, _, err := gm.CreateGame("Alice")
	require.NoError(t, err)

	unknown := "ZZZZ"
	if game.RoomCode == unknown {
		unknown = "YYYY"
	}

	tests := []struct {
		name     string
		roomCode string
		username string
		wantErr  error
	}{
		{"unknown room", unknown, "Bob", ErrRoomNotFound},
		{"duplicate name", game.RoomCode, "alice", ticket.ErrNameTaken},
		{"blank name is generated", game.RoomCode, "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := gm.JoinGame(tt.roomCode, tt.username)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, _, err = gm.JoinGame("AB", "Bob")
	assert.ErrorContains(t, err, "INVALID_ROOM_CODE")
}

func TestGameManager_JoinFullGame(t *testing.T) {
	gm, _ := newTestGameManager(t)
	game, _, err := gm.CreateGame("")
	require.NoError(t, err)

	for i := 1; i < ticket.DefaultRules().MaxPlayers; i++ {
		_, _, err := gm.JoinGame(game.RoomCode, "")
		require.NoError(t, err)
	}

	_, _, err = gm.JoinGame(game.RoomCode, "")
	assert.ErrorIs(t, err, ticket.ErrGameFull)
}

func TestGameManager_Authorization(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestGameManager(t)

	first, alice, err := gm.CreateGame("Alice")
	assert.NoError(err)
	second, _, err := gm.CreateGame("Carol")
	assert.NoError(err)

	_, _, err = gm.SetReady(first.RoomCode, "", true)
	assert.ErrorIs(err, ErrMissingToken)

	_, _, err = gm.SetReady(first.RoomCode, "bogus", true)
	assert.ErrorIs(err, ErrTokenNotFound)

	_, _, err = gm.SetReady(second.RoomCode, alice.Token, true)
	assert.ErrorIs(err, ErrNotInGame)
}

func TestGameManager_LobbySettings(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestGameManager(t)

	game, alice, err := gm.CreateGame("Alice")
	assert.NoError(err)
	_, bob, err := gm.JoinGame(game.RoomCode, "Bob")
	assert.NoError(err)

	_, err = gm.SetColor(game.RoomCode, alice.Token, ticket.ColorRed)
	assert.NoError(err)
	_, err = gm.SetColor(game.RoomCode, bob.Token, ticket.ColorRed)
	assert.ErrorIs(err, ticket.ErrColorTaken)

	_, err = gm.SetName(game.RoomCode, alice.Token, "Alicia")
	assert.NoError(err)
	session, err := gm.sessions.GetSession(alice.Token)
	assert.NoError(err)
	assert.Equal("Alicia", session.Username)

	_, allReady, err := gm.SetReady(game.RoomCode, alice.Token, true)
	assert.NoError(err)
	assert.False(allReady)

	_, err = gm.StartGame(game.RoomCode, alice.Token)
	assert.ErrorIs(err, ticket.ErrNotReady)
}

func TestGameManager_LeaveGame(t *testing.T) {
	assert := assert.New(t)
	gm, mClock := newTestGameManager(t)

	game, alice, err := gm.CreateGame("Alice")
	assert.NoError(err)
	_, bob, err := gm.JoinGame(game.RoomCode, "Bob")
	assert.NoError(err)

	_, err = gm.LeaveGame(game.RoomCode, bob.Token)
	assert.NoError(err)
	assert.Equal(1, game.Game.PlayerCount())
	_, err = gm.sessions.GetSession(bob.Token)
	assert.ErrorIs(err, ErrTokenNotFound)
	assert.True(game.LobbyExpiry().After(mClock.Now()))

	_, err = gm.LeaveGame(game.RoomCode, alice.Token)
	assert.NoError(err)
	assert.Equal(0, game.Game.PlayerCount())
	assert.False(game.LobbyExpiry().After(mClock.Now()))

	assert.Equal([]string{game.RoomCode}, gm.ExpireLobbies())
	_, err = gm.GetGame(game.RoomCode)
	assert.ErrorIs(err, ErrRoomNotFound)
}

func TestGameManager_PlayFlow(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestGameManager(t)

	game, alice, bob := startedGame(t, gm)
	assert.Equal(ticket.PhaseStarting, game.Game.Phase())
	assert.Equal(StatusPlaying, game.Status())

	_, _, err := gm.ApplyAction(game.RoomCode, alice.Token, ticket.DrawClosed{})
	assert.ErrorIs(err, ticket.ErrInvalidPhase)

	keepAll(t, gm, alice)
	keepAll(t, gm, bob)
	assert.Equal(ticket.PhasePlaying, game.Game.Phase())

	view, err := gm.Snapshot(game.RoomCode, alice.Token)
	assert.NoError(err)
	if assert.NotNil(view.CurrentPlayer) {
		current, waiting := alice, bob
		if *view.CurrentPlayer == bob.PlayerID {
			current, waiting = bob, alice
		}

		_, _, err = gm.ApplyAction(game.RoomCode, waiting.Token, ticket.DrawClosed{})
		assert.ErrorIs(err, ticket.ErrNotYourTurn)

		_, entry, err := gm.ApplyAction(game.RoomCode, current.Token, ticket.DrawClosed{})
		assert.NoError(err)
		assert.Equal(current.PlayerID, entry.Player)
		assert.Equal(ticket.ActionDrawClosed, entry.Action)
	}
}

func TestGameManager_SnapshotHidesOtherPlayers(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestGameManager(t)

	game, alice, _ := startedGame(t, gm)

	view, err := gm.Snapshot(game.RoomCode, alice.Token)
	assert.NoError(err)
	if assert.NotNil(view.You) {
		assert.Equal(alice.PlayerID, view.You.ID)
		assert.Len(view.You.PendingDestinations, ticket.DefaultRules().DestinationDraw)
	}

	public, err := gm.PublicSnapshot(game.RoomCode)
	assert.NoError(err)
	assert.Nil(public.You)
	assert.Len(public.Players, 2)
}

func TestGameManager_GetGameByToken(t *testing.T) {
	assert := assert.New(t)
	gm, _ := newTestGameManager(t)

	game, alice, err := gm.CreateGame("Alice")
	assert.NoError(err)

	found, session, err := gm.GetGameByToken(alice.Token)
	assert.NoError(err)
	assert.Same(game, found)
	assert.Equal(alice, session)

	_, _, err = gm.GetGameByToken("missing")
	assert.ErrorIs(err, ErrTokenNotFound)
}

func TestGameManager_ListGamesNewestFirst(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	gm, mClock := newTestGameManager(t)

	first, _, err := gm.CreateGame("Alice")
	assert.NoError(err)
	mClock.Advance(time.Second).MustWait(ctx)
	second, _, err := gm.CreateGame("Bob")
	assert.NoError(err)

	games := gm.ListGames()
	if assert.Len(games, 2) {
		assert.Equal(second.RoomCode, games[0].RoomCode)
		assert.Equal(first.RoomCode, games[1].RoomCode)
		assert.Equal(StatusLobby, games[0].Status)
		assert.Equal(1, games[0].Players)
	}
}

func TestGameManager_ExpireLobbies(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	gm, mClock := newTestGameManager(t)

	lobby, alice, err := gm.CreateGame("Alice")
	assert.NoError(err)
	started, _, _ := startedGame(t, gm)

	assert.Empty(gm.ExpireLobbies())

	mClock.Advance(11 * time.Minute).MustWait(ctx)

	assert.Equal([]string{lobby.RoomCode}, gm.ExpireLobbies())
	_, err = gm.GetGame(lobby.RoomCode)
	assert.ErrorIs(err, ErrRoomNotFound)
	_, err = gm.sessions.GetSession(alice.Token)
	assert.ErrorIs(err, ErrTokenNotFound)
	assert.False(gm.usedCodes[lobby.RoomCode])

	_, err = gm.GetGame(started.RoomCode)
	assert.NoError(err)
}

func TestGameManager_RemoveFinishedGamesKeepsActive(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	gm, mClock := newTestGameManager(t)

	game, _, _ := startedGame(t, gm)
	mClock.Advance(48 * time.Hour).MustWait(ctx)

	assert.Empty(gm.RemoveFinishedGames(24 * time.Hour))
	_, err := gm.GetGame(game.RoomCode)
	assert.NoError(err)
}

func TestGameManager_Restore(t *testing.T) {
	assert := assert.New(t)
	source, _ := newTestGameManager(t)
	game, alice, err := source.CreateGame("Alice")
	assert.NoError(err)

	data, err := game.Game.MarshalJSON()
	assert.NoError(err)
	engine, err := ticket.RestoreManager(data, board.Default())
	assert.NoError(err)
	restored := newActiveGame(engine, game.RoomCode, game.CreatedAt(), game.UpdatedAt(), game.LobbyExpiry())

	gm, _ := newTestGameManager(t)
	stale := SessionInfo{Token: "stale", RoomCode: "QQQQ", PlayerID: 0, Username: "Ghost"}
	gm.Restore([]*ActiveGame{restored}, map[string]bool{"WXYZ": true, "OPEN": false}, []SessionInfo{alice, stale})

	assert.True(gm.usedCodes["WXYZ"])
	assert.False(gm.usedCodes["OPEN"])
	assert.True(gm.usedCodes[game.RoomCode])

	_, session, err := gm.GetGameByToken(alice.Token)
	assert.NoError(err)
	assert.Equal(alice.PlayerID, session.PlayerID)
	_, err = gm.sessions.GetSession("stale")
	assert.ErrorIs(err, ErrTokenNotFound)
}
