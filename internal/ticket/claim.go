package ticket

import (
	"fmt"
	"strings"

	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/game"
)

// CanClaim decides whether player may claim routeID paying payment as
// declared. It never changes the game. On success it returns the color the
// non-wild cards are played as, or game.Unspecified for an all-wild payment
// on a fixed-color route.
//
// Checks run in a fixed order and the first failure is returned:
//  1. the route exists and nobody owns it
//  2. its parallel twin is free to share at this player count
//  3. the payment has exactly route length cards
//  4. the payment is one color plus wilds, matching the route
//  5. the player's hand covers the payment
func CanClaim(g *Game, player PlayerID, routeID board.RouteID, declared game.Color, payment game.Hand) (game.Color, error) {
	p, _, err := g.player(player)
	if err != nil {
		return game.Unspecified, err
	}

	route, ok := g.board.Route(routeID)
	if !ok {
		return game.Unspecified, reject(KindRouteUnavailable, "route", "route %d does not exist", routeID)
	}
	if owner, claimed := g.Claims[routeID]; claimed {
		return game.Unspecified, reject(KindRouteUnavailable, "route", "route %d is already claimed by %s", routeID, g.playerName(owner))
	}

	for _, twin := range g.board.Parallel(routeID) {
		owner, claimed := g.Claims[twin]
		if !claimed {
			continue
		}
		if owner == player {
			return game.Unspecified, reject(KindRouteUnavailable, "route", "you already own the parallel route between %s and %s", g.board.CityName(route.From), g.board.CityName(route.To))
		}
		if len(g.Players) < g.Rules.ParallelRoutesMinPlayers {
			return game.Unspecified, reject(KindRouteUnavailable, "route", "parallel routes are closed once one is claimed in games under %d players", g.Rules.ParallelRoutesMinPlayers)
		}
	}

	for c, n := range payment {
		if !c.Valid() || n < 0 {
			return game.Unspecified, reject(KindInsufficientCards, "cards", "invalid card payment %s x%d", c, n)
		}
	}
	if payment.Count() != route.Length {
		return game.Unspecified, reject(KindInsufficientCards, "cards", "route needs %d cards, %d offered", route.Length, payment.Count())
	}

	paid := game.Unspecified
	for c, n := range payment {
		if n == 0 || c.IsWild() {
			continue
		}
		if paid != game.Unspecified {
			return game.Unspecified, reject(KindInsufficientCards, "color", "cannot mix %s and %s cards in one claim", paid, c)
		}
		paid = c
	}
	if declared.IsWild() {
		return game.Unspecified, reject(KindInsufficientCards, "color", "wild is not a route color")
	}
	if declared != game.Unspecified && !declared.Valid() {
		return game.Unspecified, reject(KindInsufficientCards, "color", "unknown card color %d", declared)
	}

	if route.AnyColor() {
		switch {
		case paid == game.Unspecified && declared == game.Unspecified:
			return game.Unspecified, reject(KindInsufficientCards, "color", "choose a color when paying a gray route with wild cards only")
		case paid == game.Unspecified:
			paid = declared
		case declared != game.Unspecified && declared != paid:
			return game.Unspecified, reject(KindInsufficientCards, "color", "declared %s but paid with %s cards", declared, paid)
		}
	} else {
		if declared != game.Unspecified && declared != route.Color {
			return game.Unspecified, reject(KindInsufficientCards, "color", "route is %s, not %s", route.Color, declared)
		}
		if paid != game.Unspecified && paid != route.Color {
			return game.Unspecified, reject(KindInsufficientCards, "color", "route is %s but was paid with %s cards", route.Color, paid)
		}
		paid = route.Color
	}

	if !p.Hand.Contains(payment) {
		return game.Unspecified, reject(KindInsufficientCards, "hand", "your hand does not hold %s", describePayment(payment))
	}
	if p.RemainingCars < route.Length {
		return game.Unspecified, reject(KindInsufficientCards, "cars", "route needs %d train cars, %d left", route.Length, p.RemainingCars)
	}
	return paid, nil
}

func (g *Game) claimRoute(p *Player, a ClaimRoute) (LogEntry, error) {
	if g.TurnState != AwaitingAction {
		return LogEntry{}, reject(KindInvalidAction, "type", "a route can only be claimed as the whole turn")
	}
	if _, err := CanClaim(g, p.ID, a.Route, a.Color, a.Cards); err != nil {
		return LogEntry{}, err
	}
	route, _ := g.board.Route(a.Route)

	g.TurnState = ClaimingRoute
	spent := p.Hand.Remove(a.Cards)
	g.Claims[route.ID] = p.ID
	p.Routes = append(p.Routes, route.ID)
	p.RemainingCars -= route.Length
	points := board.RoutePoints(route.Length)
	p.Points += points
	g.Dealer.DiscardCards(spent...)

	wilds := a.Cards.WildCount()
	entry := g.record(p, ActionClaimRoute,
		"%s has claimed a route between %s and %s of length %d (%d points). They did so using %d wild cards and %d color cards.",
		p.Name, g.board.CityName(route.From), g.board.CityName(route.To), route.Length, points, wilds, route.Length-wilds)

	if g.Phase == PhasePlaying && p.RemainingCars <= g.Rules.LastTurnThreshold {
		g.Phase = PhaseLastTurn
		by := p.ID
		g.LastTurnBy = &by
		p.DonePlaying = true
	}
	return entry, g.endTurn()
}

func (g *Game) playerName(id PlayerID) string {
	if p, _, err := g.player(id); err == nil {
		return p.Name
	}
	return fmt.Sprintf("player %d", id)
}

func describePayment(h game.Hand) string {
	parts := make([]string, 0, len(h))
	for _, c := range h.SortedColors() {
		if h[c] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", h[c], c))
		}
	}
	return strings.Join(parts, ", ")
}
