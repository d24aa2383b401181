package board

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"ticket-to-ride-server/internal/game"
)

//go:embed maps/us.hcl
var usMap []byte

// mapFile is the HCL layout of a board:
//
//	city "atlanta" { name = "Atlanta" }
//	link "atlanta" "miami" {
//	  length = 5
//	  colors = ["blue"]
//	}
//	destination "boston" "miami" { points = 12 }
type mapFile struct {
	Cities       []cityBlock        `hcl:"city,block"`
	Links        []linkBlock        `hcl:"link,block"`
	Destinations []destinationBlock `hcl:"destination,block"`
}

type cityBlock struct {
	ID   string `hcl:"id,label"`
	Name string `hcl:"name,optional"`
}

type linkBlock struct {
	From   string   `hcl:"from,label"`
	To     string   `hcl:"to,label"`
	Length int      `hcl:"length"`
	Colors []string `hcl:"colors"`
}

type destinationBlock struct {
	From   string `hcl:"from,label"`
	To     string `hcl:"to,label"`
	Points int    `hcl:"points"`
}

// maxParallelRoutes bounds how many routes one city pair may carry.
const maxParallelRoutes = 2

var defaultBoard = sync.OnceValues(func() (*Board, error) {
	return Load("us", usMap)
})

// Default returns the embedded United States map.
func Default() *Board {
	b, err := defaultBoard()
	if err != nil {
		panic(fmt.Sprintf("embedded map is invalid: %v", err))
	}
	return b
}

// LoadFile reads a board from an HCL file. The board is named after the
// file without its extension.
func LoadFile(path string) (*Board, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Load(name, src)
}

// Load parses and validates an HCL board description.
func Load(name string, src []byte) (*Board, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, name+".hcl")
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse map %s: %s", name, diags.Error())
	}

	var mf mapFile
	diags = gohcl.DecodeBody(file.Body, nil, &mf)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode map %s: %s", name, diags.Error())
	}

	b, err := build(name, mf)
	if err != nil {
		return nil, fmt.Errorf("invalid map %s: %w", name, err)
	}
	return b, nil
}

func build(name string, mf mapFile) (*Board, error) {
	b := &Board{
		name:   name,
		cities: make(map[CityID]City, len(mf.Cities)),
	}

	for _, c := range mf.Cities {
		id := CityID(c.ID)
		if id == "" {
			return nil, errors.New("city with empty id")
		}
		if _, dup := b.cities[id]; dup {
			return nil, fmt.Errorf("duplicate city %q", id)
		}
		cityName := c.Name
		if cityName == "" {
			cityName = c.ID
		}
		b.cities[id] = City{ID: id, Name: cityName}
		b.cityOrder = append(b.cityOrder, id)
	}

	seenPairs := make(map[[2]CityID]bool)
	for _, l := range mf.Links {
		from, to := CityID(l.From), CityID(l.To)
		if err := b.checkCities(from, to); err != nil {
			return nil, fmt.Errorf("link %s-%s: %w", from, to, err)
		}
		pair := pairKey(from, to)
		if seenPairs[pair] {
			return nil, fmt.Errorf("link %s-%s declared twice", from, to)
		}
		seenPairs[pair] = true

		if l.Length < MinRouteLength || l.Length > MaxRouteLength {
			return nil, fmt.Errorf("link %s-%s: length %d outside %d-%d", from, to, l.Length, MinRouteLength, MaxRouteLength)
		}
		if len(l.Colors) == 0 || len(l.Colors) > maxParallelRoutes {
			return nil, fmt.Errorf("link %s-%s: needs 1 to %d colors, %d given", from, to, maxParallelRoutes, len(l.Colors))
		}

		group := GroupID(len(b.groups))
		var members []RouteID
		for _, colorName := range l.Colors {
			color, err := game.ParseColor(colorName)
			if err != nil || !color.Valid() {
				return nil, fmt.Errorf("link %s-%s: unknown color %q", from, to, colorName)
			}
			id := RouteID(len(b.routes))
			b.routes = append(b.routes, Route{
				ID:     id,
				From:   from,
				To:     to,
				Length: l.Length,
				Color:  color,
				Group:  group,
			})
			members = append(members, id)
		}
		b.groups = append(b.groups, members)
	}

	for _, d := range mf.Destinations {
		from, to := CityID(d.From), CityID(d.To)
		if err := b.checkCities(from, to); err != nil {
			return nil, fmt.Errorf("destination %s-%s: %w", from, to, err)
		}
		if d.Points <= 0 {
			return nil, fmt.Errorf("destination %s-%s: points must be positive", from, to)
		}
		b.destinations = append(b.destinations, Destination{
			ID:     DestinationID(len(b.destinations)),
			From:   from,
			To:     to,
			Points: d.Points,
		})
	}

	if len(b.routes) == 0 {
		return nil, errors.New("map has no routes")
	}

	return b, nil
}

func (b *Board) checkCities(from, to CityID) error {
	if _, ok := b.cities[from]; !ok {
		return fmt.Errorf("unknown city %q", from)
	}
	if _, ok := b.cities[to]; !ok {
		return fmt.Errorf("unknown city %q", to)
	}
	if from == to {
		return errors.New("a city cannot connect to itself")
	}
	return nil
}

func pairKey(a, b CityID) [2]CityID {
	if a > b {
		a, b = b, a
	}
	return [2]CityID{a, b}
}
