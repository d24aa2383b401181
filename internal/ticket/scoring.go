package ticket

import (
	"cmp"
	"slices"

	"ticket-to-ride-server/internal/board"
)

// Standing is one player's final score. Destination tickets are reported as
// counts only so a finished game does not reveal which tickets were held.
type Standing struct {
	Player                PlayerID `json:"player"`
	Name                  string   `json:"name"`
	RoutePoints           int      `json:"route_points"`
	LongestPath           int      `json:"longest_path"`
	LongestPathBonus      int      `json:"longest_path_bonus"`
	DestinationPoints     int      `json:"destination_points"`
	CompletedDestinations int      `json:"completed_destinations"`
	FailedDestinations    int      `json:"failed_destinations"`
	RemainingCars         int      `json:"remaining_cars"`
	Points                int      `json:"points"`
	Rank                  int      `json:"rank"`
	Winner                bool     `json:"winner"`
}

// Result is the outcome of a finished game, best standing first.
type Result struct {
	Standings   []Standing `json:"standings"`
	LongestPath int        `json:"longest_path"`
}

// Winners returns every standing that shares first place.
func (r Result) Winners() []Standing {
	var winners []Standing
	for _, s := range r.Standings {
		if s.Winner {
			winners = append(winners, s)
		}
	}
	return winners
}

// Score computes final standings. Route points come from Player.Points as
// accrued during play. Players are given in turn order, which is what
// TieFirstPlayer refers to.
//
// Ranking is by points, then by longest path, then by fewer remaining cars.
// Players equal on all three share a rank.
func Score(b *board.Board, players []*Player, rules Rules) (Result, error) {
	standings := make([]Standing, len(players))
	longest := 0
	for i, p := range players {
		routes := make([]board.Route, 0, len(p.Routes))
		for _, id := range p.Routes {
			r, ok := b.Route(id)
			if !ok {
				return Result{}, invariant("player %d owns route %d which is not on board %q", p.ID, id, b.Name())
			}
			routes = append(routes, r)
		}

		s := Standing{
			Player:        p.ID,
			Name:          p.Name,
			RoutePoints:   p.Points,
			LongestPath:   LongestPath(routes),
			RemainingCars: p.RemainingCars,
		}
		connected := newUnionFind(routes)
		for _, d := range p.Destinations {
			if connected.same(d.From, d.To) {
				s.DestinationPoints += d.Points
				s.CompletedDestinations++
			} else {
				s.DestinationPoints -= d.Points
				s.FailedDestinations++
			}
		}
		longest = max(longest, s.LongestPath)
		standings[i] = s
	}

	if longest > 0 {
		for i := range standings {
			if standings[i].LongestPath != longest {
				continue
			}
			standings[i].LongestPathBonus = rules.LongestPathBonus
			if rules.LongestPathTies == TieFirstPlayer {
				break
			}
		}
	}

	for i := range standings {
		s := &standings[i]
		s.Points = s.RoutePoints + s.LongestPathBonus + s.DestinationPoints
	}

	slices.SortStableFunc(standings, compareStandings)
	for i := range standings {
		if i > 0 && compareStandings(standings[i-1], standings[i]) == 0 {
			standings[i].Rank = standings[i-1].Rank
		} else {
			standings[i].Rank = i + 1
		}
		standings[i].Winner = standings[i].Rank == 1
	}

	return Result{Standings: standings, LongestPath: longest}, nil
}

func compareStandings(a, b Standing) int {
	return cmp.Or(
		cmp.Compare(b.Points, a.Points),
		cmp.Compare(b.LongestPath, a.LongestPath),
		cmp.Compare(a.RemainingCars, b.RemainingCars),
	)
}

// LongestPath is the total length of the longest continuous chain of
// routes. A route is used at most once; cities may be passed through again.
func LongestPath(routes []board.Route) int {
	adj := make(map[board.CityID][]int)
	for i, r := range routes {
		adj[r.From] = append(adj[r.From], i)
		adj[r.To] = append(adj[r.To], i)
	}

	used := make([]bool, len(routes))
	var walk func(at board.CityID) int
	walk = func(at board.CityID) int {
		best := 0
		for _, i := range adj[at] {
			if used[i] {
				continue
			}
			r := routes[i]
			next := r.To
			if next == at {
				next = r.From
			}
			used[i] = true
			best = max(best, r.Length+walk(next))
			used[i] = false
		}
		return best
	}

	longest := 0
	for city := range adj {
		longest = max(longest, walk(city))
	}
	return longest
}

type unionFind map[board.CityID]board.CityID

func newUnionFind(routes []board.Route) unionFind {
	uf := unionFind{}
	for _, r := range routes {
		uf.union(r.From, r.To)
	}
	return uf
}

func (uf unionFind) find(c board.CityID) board.CityID {
	parent, ok := uf[c]
	if !ok || parent == c {
		return c
	}
	root := uf.find(parent)
	uf[c] = root
	return root
}

func (uf unionFind) union(a, b board.CityID) {
	ra, rb := uf.find(a), uf.find(b)
	if ra != rb {
		uf[ra] = rb
	}
}

func (uf unionFind) same(a, b board.CityID) bool {
	return uf.find(a) == uf.find(b)
}
