// Package ticket is the rules engine: lobby, turn sequencing, route claims
// and end of game scoring for one game on a board.Board.
package ticket

import (
	"strings"

	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/game"
)

type Phase string

const (
	PhaseLobby    Phase = "in_lobby"
	PhaseStarting Phase = "starting"
	PhasePlaying  Phase = "playing"
	PhaseLastTurn Phase = "last_turn"
	PhaseDone     Phase = "done"
)

// InPlay reports whether turns are being taken.
func (p Phase) InPlay() bool {
	return p == PhasePlaying || p == PhaseLastTurn
}

// Game is the aggregate state of one game. It is not safe for concurrent
// use; Manager serializes access.
type Game struct {
	ID           string                     `json:"id"`
	BoardName    string                     `json:"board"`
	Rules        Rules                      `json:"rules"`
	Phase        Phase                      `json:"phase"`
	Turn         int                        `json:"turn"`
	Current      int                        `json:"current"`
	TurnState    TurnState                  `json:"turn_state"`
	Players      []*Player                  `json:"players"`
	NextPlayerID PlayerID                   `json:"next_player_id"`
	Dealer       *Dealer                    `json:"dealer"`
	Claims       map[board.RouteID]PlayerID `json:"claims"`
	Log          TurnLog                    `json:"log"`
	LastTurnBy   *PlayerID                  `json:"last_turn_by,omitempty"`
	Result       *Result                    `json:"result,omitempty"`

	board *board.Board
}

// NewGame creates an empty lobby. The seed drives every shuffle of the game.
func NewGame(id string, b *board.Board, rules Rules, seed uint64) (*Game, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Game{
		ID:        id,
		BoardName: b.Name(),
		Rules:     rules,
		Phase:     PhaseLobby,
		TurnState: AwaitingAction,
		Players:   make([]*Player, 0, rules.MaxPlayers),
		Dealer:    NewDealer(game.StandardTrainCards(), b.Destinations(), rules.DisplaySize, rules.WildLimit, game.NewSource(seed)),
		Claims:    make(map[board.RouteID]PlayerID),
		board:     b,
	}, nil
}

// Attach binds a decoded game to its board and checks that every claim
// and owned route exists on it.
func (g *Game) Attach(b *board.Board) error {
	if g.BoardName != b.Name() {
		return invariant("game %s was played on board %q, not %q", g.ID, g.BoardName, b.Name())
	}
	if g.Dealer == nil || g.Dealer.Source == nil {
		return invariant("game %s has no dealer shuffle state", g.ID)
	}
	if g.Claims == nil {
		g.Claims = make(map[board.RouteID]PlayerID)
	}
	for routeID, owner := range g.Claims {
		if _, ok := b.Route(routeID); !ok {
			return invariant("route %d claimed by player %d is not on the board", routeID, owner)
		}
	}
	for _, p := range g.Players {
		if p.Hand == nil {
			p.Hand = game.Hand{}
		}
		for _, routeID := range p.Routes {
			if g.Claims[routeID] != p.ID {
				return invariant("player %d owns route %d without a matching claim", p.ID, routeID)
			}
		}
	}
	g.board = b
	return nil
}

func (g *Game) Board() *board.Board {
	return g.board
}

func (g *Game) player(id PlayerID) (*Player, int, error) {
	for i, p := range g.Players {
		if p.ID == id {
			return p, i, nil
		}
	}
	return nil, -1, reject(KindUnknownPlayer, "player", "player %d is not in this game", id)
}

func (g *Game) requireLobby(what string) error {
	if g.Phase != PhaseLobby {
		return reject(KindInvalidPhase, "phase", "cannot %s once the game has started", what)
	}
	return nil
}

// Join adds a player to the lobby. An empty name picks the first free
// "Player N" name; the color is the first one nobody uses.
func (g *Game) Join(name string) (PlayerID, error) {
	if err := g.requireLobby("join"); err != nil {
		return NoPlayer, err
	}
	if len(g.Players) >= g.Rules.MaxPlayers {
		return NoPlayer, reject(KindGameFull, "players", "game is full (%d/%d players)", len(g.Players), g.Rules.MaxPlayers)
	}

	if strings.TrimSpace(name) == "" {
		for n := 1; ; n++ {
			name = defaultName(n)
			if !g.nameTaken(name, NoPlayer) {
				break
			}
		}
	}
	name, err := normalizeName(name)
	if err != nil {
		return NoPlayer, err
	}
	if g.nameTaken(name, NoPlayer) {
		return NoPlayer, reject(KindNameTaken, "name", "name %q is already taken", name)
	}

	var color PlayerColor
	for _, c := range PlayerColors {
		if !g.colorTaken(c, NoPlayer) {
			color = c
			break
		}
	}

	id := g.NextPlayerID
	g.NextPlayerID++
	g.Players = append(g.Players, newPlayer(id, name, color, g.Rules.StartingCars))
	return id, nil
}

// Leave removes a player from the lobby.
func (g *Game) Leave(id PlayerID) error {
	if err := g.requireLobby("leave"); err != nil {
		return err
	}
	_, idx, err := g.player(id)
	if err != nil {
		return err
	}
	g.Players = append(g.Players[:idx], g.Players[idx+1:]...)
	return nil
}

func (g *Game) SetReady(id PlayerID, ready bool) error {
	if err := g.requireLobby("change readiness"); err != nil {
		return err
	}
	p, _, err := g.player(id)
	if err != nil {
		return err
	}
	p.Ready = ready
	return nil
}

func (g *Game) SetColor(id PlayerID, color PlayerColor) error {
	if err := g.requireLobby("change colors"); err != nil {
		return err
	}
	p, _, err := g.player(id)
	if err != nil {
		return err
	}
	if !color.Valid() {
		return reject(KindInvalidAction, "color", "unknown player color %q", color)
	}
	if g.colorTaken(color, id) {
		return reject(KindColorTaken, "color", "color %s is already taken", color)
	}
	p.Color = color
	return nil
}

func (g *Game) SetName(id PlayerID, name string) error {
	if err := g.requireLobby("change names"); err != nil {
		return err
	}
	p, _, err := g.player(id)
	if err != nil {
		return err
	}
	name, err = normalizeName(name)
	if err != nil {
		return err
	}
	if g.nameTaken(name, id) {
		return reject(KindNameTaken, "name", "name %q is already taken", name)
	}
	p.Name = name
	return nil
}

// AllReady reports whether there is at least one player and every player
// is ready.
func (g *Game) AllReady() bool {
	if len(g.Players) == 0 {
		return false
	}
	for _, p := range g.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Start deals the opening hands and destination tickets and moves the game
// into the Starting phase, where every player picks the tickets to keep.
func (g *Game) Start() error {
	if g.Phase != PhaseLobby {
		return reject(KindInvalidPhase, "phase", "game has already started")
	}
	n := len(g.Players)
	if n < g.Rules.MinPlayers || n > g.Rules.MaxPlayers {
		return reject(KindInvalidPlayerCount, "players", "need %d to %d players, have %d", g.Rules.MinPlayers, g.Rules.MaxPlayers, n)
	}
	if !g.AllReady() {
		return reject(KindNotReady, "ready", "not every player is ready")
	}
	if g.Dealer.supply() < n*g.Rules.InitialTrainCards {
		return reject(KindEmptySupply, "deck", "not enough train cards to deal opening hands")
	}
	if g.Dealer.Destinations.Count() < n*g.Rules.DestinationDraw {
		return reject(KindEmptySupply, "destinations", "not enough destination cards to deal")
	}

	for _, p := range g.Players {
		for range g.Rules.InitialTrainCards {
			card, err := g.Dealer.DrawClosed()
			if err != nil {
				return invariant("opening deal ran out of train cards: %v", err)
			}
			p.Hand.Add(card)
		}
		tickets, err := g.Dealer.DrawDestinations(g.Rules.DestinationDraw)
		if err != nil {
			return invariant("opening deal ran out of destination cards: %v", err)
		}
		p.PendingDestinations = tickets
	}

	g.Phase = PhaseStarting
	return nil
}

func (g *Game) beginPlay() {
	g.Phase = PhasePlaying
	g.Current = 0
	g.Turn = 1
	g.TurnState = AwaitingAction
}

func (g *Game) nameTaken(name string, except PlayerID) bool {
	for _, p := range g.Players {
		if p.ID != except && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func (g *Game) colorTaken(color PlayerColor, except PlayerID) bool {
	for _, p := range g.Players {
		if p.ID != except && p.Color == color {
			return true
		}
	}
	return false
}

// CurrentPlayer is the player whose turn it is, or nil outside play.
func (g *Game) CurrentPlayer() *Player {
	if !g.Phase.InPlay() || g.Current < 0 || g.Current >= len(g.Players) {
		return nil
	}
	return g.Players[g.Current]
}

// TrainCardTotal counts every train card in the game, dealer and hands.
func (g *Game) TrainCardTotal() int {
	total := g.Dealer.TrainCards()
	for _, p := range g.Players {
		total += p.Hand.Count()
	}
	return total
}
