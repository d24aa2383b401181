package ticket

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/game"
)

// Route ids on the test board, in file order.
const (
	routeAB    board.RouteID = 0 // red, 3
	routeBC1   board.RouteID = 1 // gray, 2
	routeBC2   board.RouteID = 2 // gray, 2
	routeCD    board.RouteID = 3 // blue, 4
	routeDE    board.RouteID = 4 // gray, 1
	routeEF    board.RouteID = 5 // green, 6
	routeAFYel board.RouteID = 6 // yellow, 5
	routeAFPnk board.RouteID = 7 // pink, 5
)

const testMap = `
city "a" { name = "Alpha" }
city "b" { name = "Bravo" }
city "c" { name = "Charlie" }
city "d" { name = "Delta" }
city "e" { name = "Echo" }
city "f" { name = "Foxtrot" }

link "a" "b" {
  length = 3
  colors = ["red"]
}
link "b" "c" {
  length = 2
  colors = ["wild", "wild"]
}
link "c" "d" {
  length = 4
  colors = ["blue"]
}
link "d" "e" {
  length = 1
  colors = ["wild"]
}
link "e" "f" {
  length = 6
  colors = ["green"]
}
link "a" "f" {
  length = 5
  colors = ["yellow", "pink"]
}

destination "a" "c" { points = 5 }
destination "a" "d" { points = 9 }
destination "b" "e" { points = 7 }
destination "c" "f" { points = 8 }
destination "a" "e" { points = 10 }
destination "b" "d" { points = 6 }
destination "d" "f" { points = 7 }
destination "c" "e" { points = 4 }
destination "b" "f" { points = 11 }
destination "a" "b" { points = 3 }
destination "c" "d" { points = 4 }
destination "e" "f" { points = 6 }
`

func testBoard(t *testing.T) *board.Board {
	t.Helper()
	b, err := board.Load("test", []byte(testMap))
	require.NoError(t, err)
	return b
}

func lobbyGame(t *testing.T, players int) *Game {
	t.Helper()
	g, err := NewGame("TEST", testBoard(t), DefaultRules(), 7)
	require.NoError(t, err)
	for range players {
		_, err := g.Join("")
		require.NoError(t, err)
	}
	return g
}

// playingGame returns a started game in which every player kept their
// first two destination tickets.
func playingGame(t *testing.T, players int) *Game {
	t.Helper()
	g := lobbyGame(t, players)
	for _, p := range g.Players {
		require.NoError(t, g.SetReady(p.ID, true))
	}
	require.NoError(t, g.Start())
	for _, p := range g.Players {
		keep := []board.DestinationID{p.PendingDestinations[0].ID, p.PendingDestinations[1].ID}
		_, err := g.Apply(p.ID, SelectDestinations{Keep: keep})
		require.NoError(t, err)
	}
	require.Equal(t, PhasePlaying, g.Phase)
	return g
}

func colorPtr(c game.Color) *game.Color {
	return &c
}
