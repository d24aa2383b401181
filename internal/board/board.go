// Package board is the static map a game is played on: cities, the routes
// between them and the destination tickets that reference them. A Board is
// read-only once loaded and safe to share between games.
package board

import (
	"encoding/json"
	"fmt"

	"ticket-to-ride-server/internal/game"
)

type CityID string

type City struct {
	ID   CityID `json:"id"`
	Name string `json:"name"`
}

type RouteID int

// GroupID identifies the set of routes that connect the same pair of
// cities. A group with two routes is a parallel pair.
type GroupID int

type Route struct {
	ID     RouteID    `json:"id"`
	From   CityID     `json:"from"`
	To     CityID     `json:"to"`
	Length int        `json:"length"`
	Color  game.Color `json:"color"`
	Group  GroupID    `json:"group"`
}

// AnyColor reports whether the route accepts a set of any single color.
func (r Route) AnyColor() bool {
	return r.Color.IsWild()
}

type DestinationID int

type Destination struct {
	ID     DestinationID `json:"id"`
	From   CityID        `json:"from"`
	To     CityID        `json:"to"`
	Points int           `json:"points"`
}

const (
	MinRouteLength = 1
	MaxRouteLength = 6
)

var routePoints = map[int]int{
	1: 1,
	2: 2,
	3: 4,
	4: 7,
	5: 10,
	6: 15,
}

// RoutePoints is the score for claiming a route of the given length.
func RoutePoints(length int) int {
	return routePoints[length]
}

type Board struct {
	name         string
	cities       map[CityID]City
	cityOrder    []CityID
	routes       []Route
	groups       [][]RouteID
	destinations []Destination
}

func (b *Board) Name() string {
	return b.name
}

func (b *Board) Cities() []City {
	cities := make([]City, 0, len(b.cityOrder))
	for _, id := range b.cityOrder {
		cities = append(cities, b.cities[id])
	}
	return cities
}

func (b *Board) City(id CityID) (City, bool) {
	c, ok := b.cities[id]
	return c, ok
}

// CityName falls back to the id for unknown cities.
func (b *Board) CityName(id CityID) string {
	if c, ok := b.cities[id]; ok {
		return c.Name
	}
	return string(id)
}

func (b *Board) Routes() []Route {
	return append([]Route(nil), b.routes...)
}

func (b *Board) Route(id RouteID) (Route, bool) {
	if id < 0 || int(id) >= len(b.routes) {
		return Route{}, false
	}
	return b.routes[id], true
}

// Parallel returns the other routes sharing a group with id.
func (b *Board) Parallel(id RouteID) []RouteID {
	r, ok := b.Route(id)
	if !ok {
		return nil
	}
	var others []RouteID
	for _, sibling := range b.groups[r.Group] {
		if sibling != id {
			others = append(others, sibling)
		}
	}
	return others
}

func (b *Board) Destinations() []Destination {
	return append([]Destination(nil), b.destinations...)
}

func (b *Board) Destination(id DestinationID) (Destination, bool) {
	if id < 0 || int(id) >= len(b.destinations) {
		return Destination{}, false
	}
	return b.destinations[id], true
}

// RoutesBetween lists the routes joining a and b in either direction.
func (b *Board) RoutesBetween(a, c CityID) []Route {
	var routes []Route
	for _, r := range b.routes {
		if (r.From == a && r.To == c) || (r.From == c && r.To == a) {
			routes = append(routes, r)
		}
	}
	return routes
}

func (b *Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name         string        `json:"name"`
		Cities       []City        `json:"cities"`
		Routes       []Route       `json:"routes"`
		Destinations []Destination `json:"destinations"`
	}{
		Name:         b.name,
		Cities:       b.Cities(),
		Routes:       b.routes,
		Destinations: b.destinations,
	})
}

func (b *Board) String() string {
	return fmt.Sprintf("%s (%d cities, %d routes, %d destinations)", b.name, len(b.cities), len(b.routes), len(b.destinations))
}

