package ticket

import (
	"fmt"
	"slices"

	"ticket-to-ride-server/internal/board"
)

// TurnState is where the current player is within their turn.
type TurnState string

const (
	AwaitingAction      TurnState = "awaiting_action"
	DrawingCards        TurnState = "drawing_cards"
	ClaimingRoute       TurnState = "claiming_route"
	DrawingDestinations TurnState = "drawing_destinations"
	TurnComplete        TurnState = "turn_complete"
)

// LogEntry is one applied action. Descriptions only hold public
// information.
type LogEntry struct {
	Turn        int        `json:"turn"`
	Player      PlayerID   `json:"player"`
	Action      ActionType `json:"action"`
	Description string     `json:"description"`
}

type TurnLog struct {
	Entries []LogEntry `json:"entries"`
}

// Turn returns the entries recorded during turn n.
func (l TurnLog) Turn(n int) []LogEntry {
	var entries []LogEntry
	for _, e := range l.Entries {
		if e.Turn == n {
			entries = append(entries, e)
		}
	}
	return entries
}

// Tail returns up to the last n entries.
func (l TurnLog) Tail(n int) []LogEntry {
	start := max(len(l.Entries)-n, 0)
	return slices.Clone(l.Entries[start:])
}

func (g *Game) record(p *Player, action ActionType, format string, args ...any) LogEntry {
	entry := LogEntry{
		Turn:        g.Turn,
		Player:      p.ID,
		Action:      action,
		Description: fmt.Sprintf(format, args...),
	}
	g.Log.Entries = append(g.Log.Entries, entry)
	return entry
}

// Apply runs one player action. A rejected action leaves the game exactly
// as it was.
func (g *Game) Apply(id PlayerID, action Action) (LogEntry, error) {
	p, idx, err := g.player(id)
	if err != nil {
		return LogEntry{}, err
	}

	switch g.Phase {
	case PhaseStarting:
		sel, ok := action.(SelectDestinations)
		if !ok {
			return LogEntry{}, reject(KindInvalidPhase, "phase", "only destination selection is allowed before the first turn")
		}
		return g.selectDestinations(p, sel, g.Rules.InitialMinKeep)
	case PhasePlaying, PhaseLastTurn:
	default:
		return LogEntry{}, reject(KindInvalidPhase, "phase", "no actions are allowed while the game is %s", g.Phase)
	}

	if idx != g.Current {
		return LogEntry{}, reject(KindNotYourTurn, "player", "it is %s's turn", g.Players[g.Current].Name)
	}

	switch a := action.(type) {
	case DrawOpen:
		return g.drawOpen(p, a)
	case DrawClosed:
		return g.drawClosed(p)
	case ClaimRoute:
		return g.claimRoute(p, a)
	case DrawDestinations:
		return g.drawDestinations(p)
	case SelectDestinations:
		return g.selectDestinations(p, a, g.Rules.TurnMinKeep)
	default:
		return LogEntry{}, reject(KindInvalidAction, "type", "unsupported action %T", action)
	}
}

func (g *Game) requireCardDraw() error {
	if g.TurnState != AwaitingAction && g.TurnState != DrawingCards {
		return reject(KindInvalidAction, "type", "cannot draw train cards while %s", g.TurnState)
	}
	return nil
}

func (g *Game) drawOpen(p *Player, a DrawOpen) (LogEntry, error) {
	if err := g.requireCardDraw(); err != nil {
		return LogEntry{}, err
	}
	second := g.TurnState == DrawingCards
	card, washed, err := g.Dealer.DrawOpen(a.Slot, second)
	if err != nil {
		return LogEntry{}, err
	}
	p.Hand.Add(card)

	var entry LogEntry
	if washed {
		entry = g.record(p, ActionDrawOpen, "%s drew a %s train card from the open deck. The open deck was then re-shuffled because there were %d wild cards.", p.Name, card, g.Rules.WildLimit)
	} else {
		entry = g.record(p, ActionDrawOpen, "%s drew a %s train card from the open deck.", p.Name, card)
	}

	if second || card.IsWild() || !g.Dealer.CanDrawAgain() {
		return entry, g.endTurn()
	}
	g.TurnState = DrawingCards
	return entry, nil
}

func (g *Game) drawClosed(p *Player) (LogEntry, error) {
	if err := g.requireCardDraw(); err != nil {
		return LogEntry{}, err
	}
	second := g.TurnState == DrawingCards
	card, err := g.Dealer.DrawClosed()
	if err != nil {
		return LogEntry{}, err
	}
	p.Hand.Add(card)
	entry := g.record(p, ActionDrawClosed, "%s drew a train card from the close deck.", p.Name)

	if second || !g.Dealer.CanDrawAgain() {
		return entry, g.endTurn()
	}
	g.TurnState = DrawingCards
	return entry, nil
}

func (g *Game) drawDestinations(p *Player) (LogEntry, error) {
	if g.TurnState != AwaitingAction {
		return LogEntry{}, reject(KindInvalidAction, "type", "destination cards can only be drawn as the whole turn")
	}
	tickets, err := g.Dealer.DrawDestinations(g.Rules.DestinationDraw)
	if err != nil {
		return LogEntry{}, err
	}
	p.PendingDestinations = tickets
	g.TurnState = DrawingDestinations
	return g.record(p, ActionDrawDestinations, "%s drew %d destination cards. They have not selected which to keep yet.", p.Name, len(tickets)), nil
}

func (g *Game) selectDestinations(p *Player, a SelectDestinations, minKeep int) (LogEntry, error) {
	if len(p.PendingDestinations) == 0 {
		return LogEntry{}, reject(KindDestinationSelectionInvalid, "keep", "there are no destination cards to select from")
	}
	if len(a.Keep) < minKeep {
		return LogEntry{}, reject(KindDestinationSelectionInvalid, "keep", "must keep at least %d destination cards, %d selected", minKeep, len(a.Keep))
	}

	keep := make(map[board.DestinationID]bool, len(a.Keep))
	for _, id := range a.Keep {
		if keep[id] {
			return LogEntry{}, reject(KindDestinationSelectionInvalid, "keep", "destination card %d selected twice", id)
		}
		if !slices.ContainsFunc(p.PendingDestinations, func(d board.Destination) bool { return d.ID == id }) {
			return LogEntry{}, reject(KindDestinationSelectionInvalid, "keep", "destination card %d was not dealt to you", id)
		}
		keep[id] = true
	}

	offered := len(p.PendingDestinations)
	var returned []board.Destination
	for _, d := range p.PendingDestinations {
		if keep[d.ID] {
			p.Destinations = append(p.Destinations, d)
		} else {
			returned = append(returned, d)
		}
	}
	p.PendingDestinations = nil
	g.Dealer.ReturnDestinations(returned)

	entry := g.record(p, ActionSelectDestinations, "%s selected %d destination cards out of %d.", p.Name, len(keep), offered)

	if g.Phase == PhaseStarting {
		if g.everyoneSelected() {
			g.beginPlay()
		}
		return entry, nil
	}
	return entry, g.endTurn()
}

func (g *Game) everyoneSelected() bool {
	for _, p := range g.Players {
		if len(p.PendingDestinations) > 0 {
			return false
		}
	}
	return true
}

// endTurn closes the current turn and hands play to the next player who
// still has a turn coming. During the last round every player is done once
// their turn ends; when nobody is left the game is scored.
func (g *Game) endTurn() error {
	g.TurnState = TurnComplete
	if g.Phase == PhaseLastTurn {
		g.Players[g.Current].DonePlaying = true
	}

	for step := 1; step <= len(g.Players); step++ {
		next := (g.Current + step) % len(g.Players)
		if !g.Players[next].DonePlaying {
			g.Current = next
			g.Turn++
			g.TurnState = AwaitingAction
			return nil
		}
	}
	return g.finish()
}

// finish scores the game. It runs once; the Done phase accepts no actions.
func (g *Game) finish() error {
	if g.Result != nil {
		return nil
	}
	g.Phase = PhaseDone
	g.TurnState = TurnComplete

	result, err := Score(g.board, g.Players, g.Rules)
	if err != nil {
		return err
	}
	for _, s := range result.Standings {
		if p, _, err := g.player(s.Player); err == nil {
			p.Points = s.Points
		}
	}
	g.Result = &result
	return nil
}
