package game

import (
	"fmt"
	"slices"
	"strings"
)

// Color is the color of a train card. Wild is the locomotive that stands in
// for any other color.
type Color int

const (
	Unspecified Color = iota
	Black
	Blue
	Green
	Orange
	Pink
	Red
	White
	Yellow
	Wild
)

var colorString = map[Color]string{
	Unspecified: "",
	Black:       "black",
	Blue:        "blue",
	Green:       "green",
	Orange:      "orange",
	Pink:        "pink",
	Red:         "red",
	White:       "white",
	Yellow:      "yellow",
	Wild:        "wild",
}

// Colors lists every card color in a stable order, wild last.
var Colors = []Color{Black, Blue, Green, Orange, Pink, Red, White, Yellow, Wild}

const (
	CardsPerColor = 12
	WildCards     = 14
)

func (c Color) String() string {
	if s, ok := colorString[c]; ok {
		return s
	}
	return fmt.Sprintf("color(%d)", int(c))
}

func (c Color) IsWild() bool {
	return c == Wild
}

func (c Color) Valid() bool {
	return c >= Black && c <= Wild
}

func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range colorString {
		if name == s {
			return c, nil
		}
	}
	return Unspecified, fmt.Errorf("unknown card color %q", s)
}

func (c Color) MarshalText() ([]byte, error) {
	if c != Unspecified && !c.Valid() {
		return nil, fmt.Errorf("invalid card color %d", int(c))
	}
	return []byte(colorString[c]), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// StandardTrainCards returns the full train card set: twelve of every color
// plus fourteen wilds.
func StandardTrainCards() []Color {
	cards := make([]Color, 0, CardsPerColor*(len(Colors)-1)+WildCards)
	for _, color := range Colors {
		n := CardsPerColor
		if color.IsWild() {
			n = WildCards
		}
		for range n {
			cards = append(cards, color)
		}
	}
	return cards
}

// Hand counts train cards by color. Entries are never negative and a
// zero count is removed.
type Hand map[Color]int

func (h Hand) Count() (count int) {
	for _, n := range h {
		count += n
	}
	return
}

func (h Hand) WildCount() int {
	return h[Wild]
}

func (h Hand) Add(cards ...Color) {
	for _, card := range cards {
		h[card]++
	}
}

// Contains reports whether h holds at least the cards in other.
func (h Hand) Contains(other Hand) bool {
	for color, n := range other {
		if n > 0 && h[color] < n {
			return false
		}
	}
	return true
}

// Remove takes the cards in other out of h. Callers check Contains first.
func (h Hand) Remove(other Hand) []Color {
	removed := make([]Color, 0, other.Count())
	for _, color := range other.SortedColors() {
		n := other[color]
		for range n {
			removed = append(removed, color)
		}
		h[color] -= n
		if h[color] <= 0 {
			delete(h, color)
		}
	}
	return removed
}

// SortedColors returns the colors present in h in the order of Colors.
func (h Hand) SortedColors() []Color {
	colors := make([]Color, 0, len(h))
	for color, n := range h {
		if n > 0 {
			colors = append(colors, color)
		}
	}
	slices.Sort(colors)
	return colors
}

func (h Hand) Clone() Hand {
	clone := make(Hand, len(h))
	for color, n := range h {
		clone[color] = n
	}
	return clone
}
