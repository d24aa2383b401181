package ticket

import (
	"maps"
	"slices"

	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/game"
)

// LogTail is how many log entries a snapshot carries.
const LogTail = 20

// View is a point-in-time copy of a game as seen by one player. It shares
// no memory with the game it was taken from.
type View struct {
	ID            string                     `json:"id"`
	Board         string                     `json:"board"`
	Phase         Phase                      `json:"phase"`
	Turn          int                        `json:"turn"`
	TurnState     TurnState                  `json:"turn_state"`
	CurrentPlayer *PlayerID                  `json:"current_player,omitempty"`
	LastTurnBy    *PlayerID                  `json:"last_turn_by,omitempty"`
	Players       []PublicPlayer             `json:"players"`
	You           *PrivatePlayer             `json:"you,omitempty"`
	Dealer        DealerView                 `json:"dealer"`
	ClaimedRoutes map[board.RouteID]PlayerID `json:"claimed_routes"`
	Log           []LogEntry                 `json:"log"`
	Result        *Result                    `json:"result,omitempty"`
}

// PublicPlayer is what every player may know about every other player.
type PublicPlayer struct {
	ID                  PlayerID        `json:"id"`
	Name                string          `json:"name"`
	Color               PlayerColor     `json:"color"`
	Ready               bool            `json:"ready"`
	RemainingCars       int             `json:"remaining_cars"`
	Points              int             `json:"points"`
	DonePlaying         bool            `json:"done_playing"`
	TrainCards          int             `json:"train_cards"`
	Destinations        int             `json:"destinations"`
	PendingDestinations int             `json:"pending_destinations"`
	Routes              []board.RouteID `json:"routes"`
}

// PrivatePlayer is the requesting player's own hand and tickets.
type PrivatePlayer struct {
	ID                  PlayerID            `json:"id"`
	Hand                game.Hand           `json:"hand"`
	PendingDestinations []board.Destination `json:"pending_destinations"`
	Destinations        []DestinationStatus `json:"destinations"`
}

type DestinationStatus struct {
	board.Destination
	Completed bool `json:"completed"`
}

// Snapshot renders the game for requester. Private data of any other
// player is left out entirely; NoPlayer or an unknown id gets the public
// view only.
func (g *Game) Snapshot(requester PlayerID) (View, error) {
	v := g.PublicView()
	for _, p := range g.Players {
		if p.ID != requester {
			continue
		}
		you, err := g.private(p)
		if err != nil {
			return View{}, err
		}
		v.You = you
	}
	return v, nil
}

// PublicView is the game as a spectator sees it.
func (g *Game) PublicView() View {
	v := View{
		ID:            g.ID,
		Board:         g.BoardName,
		Phase:         g.Phase,
		Turn:          g.Turn,
		TurnState:     g.TurnState,
		Players:       make([]PublicPlayer, 0, len(g.Players)),
		Dealer:        g.Dealer.View(),
		ClaimedRoutes: maps.Clone(g.Claims),
		Log:           g.Log.Tail(LogTail),
	}
	if cur := g.CurrentPlayer(); cur != nil {
		id := cur.ID
		v.CurrentPlayer = &id
	}
	if g.LastTurnBy != nil {
		id := *g.LastTurnBy
		v.LastTurnBy = &id
	}
	if g.Result != nil {
		result := Result{
			Standings:   slices.Clone(g.Result.Standings),
			LongestPath: g.Result.LongestPath,
		}
		v.Result = &result
	}

	for _, p := range g.Players {
		v.Players = append(v.Players, PublicPlayer{
			ID:                  p.ID,
			Name:                p.Name,
			Color:               p.Color,
			Ready:               p.Ready,
			RemainingCars:       p.RemainingCars,
			Points:              p.Points,
			DonePlaying:         p.DonePlaying,
			TrainCards:          p.Hand.Count(),
			Destinations:        len(p.Destinations),
			PendingDestinations: len(p.PendingDestinations),
			Routes:              slices.Clone(p.Routes),
		})
	}
	return v
}

func (g *Game) private(p *Player) (*PrivatePlayer, error) {
	routes := make([]board.Route, 0, len(p.Routes))
	for _, id := range p.Routes {
		r, ok := g.board.Route(id)
		if !ok {
			return nil, invariant("player %d owns route %d which is not on board %q", p.ID, id, g.board.Name())
		}
		routes = append(routes, r)
	}
	connected := newUnionFind(routes)

	destinations := make([]DestinationStatus, len(p.Destinations))
	for i, d := range p.Destinations {
		destinations[i] = DestinationStatus{Destination: d, Completed: connected.same(d.From, d.To)}
	}
	return &PrivatePlayer{
		ID:                  p.ID,
		Hand:                p.Hand.Clone(),
		PendingDestinations: slices.Clone(p.PendingDestinations),
		Destinations:        destinations,
	}, nil
}
