package ticket

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/game"
)

type PlayerID int

// NoPlayer requests a snapshot without any private data.
const NoPlayer PlayerID = -1

// PlayerColor is the color of a player's train cars on the map.
type PlayerColor string

const (
	ColorBlack  PlayerColor = "black"
	ColorBlue   PlayerColor = "blue"
	ColorGreen  PlayerColor = "green"
	ColorOrange PlayerColor = "orange"
	ColorPink   PlayerColor = "pink"
	ColorRed    PlayerColor = "red"
	ColorYellow PlayerColor = "yellow"
	ColorWhite  PlayerColor = "white"
)

// PlayerColors is also the order in which colors are handed out on join.
var PlayerColors = []PlayerColor{
	ColorBlack,
	ColorBlue,
	ColorGreen,
	ColorOrange,
	ColorPink,
	ColorRed,
	ColorYellow,
	ColorWhite,
}

func (c PlayerColor) Valid() bool {
	return slices.Contains(PlayerColors, c)
}

const MaxNameLength = 20

type Player struct {
	ID                  PlayerID            `json:"id"`
	Name                string              `json:"name"`
	Color               PlayerColor         `json:"color"`
	Ready               bool                `json:"ready"`
	RemainingCars       int                 `json:"remaining_cars"`
	Points              int                 `json:"points"`
	DonePlaying         bool                `json:"done_playing"`
	Hand                game.Hand           `json:"hand"`
	PendingDestinations []board.Destination `json:"pending_destinations"`
	Destinations        []board.Destination `json:"destinations"`
	Routes              []board.RouteID     `json:"routes"`
}

func newPlayer(id PlayerID, name string, color PlayerColor, cars int) *Player {
	return &Player{
		ID:            id,
		Name:          name,
		Color:         color,
		RemainingCars: cars,
		Hand:          game.Hand{},
	}
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", reject(KindInvalidName, "name", "name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", reject(KindInvalidName, "name", "name too long (max %d characters)", MaxNameLength)
	}
	return name, nil
}

func defaultName(n int) string {
	return fmt.Sprintf("Player %d", n)
}
