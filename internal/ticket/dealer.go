package ticket

import (
	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/game"
)

// maxWashes bounds how many times in a row the display is swept after it
// shows too many wilds.
const maxWashes = 16

// Dealer owns every train card not held by a player, plus the destination
// ticket deck. The top of each deck is the end of its slice.
type Dealer struct {
	Closed       game.Deck[game.Color]        `json:"closed"`
	Open         []*game.Color                `json:"open"`
	Discard      game.Deck[game.Color]        `json:"discard"`
	Destinations game.Deck[board.Destination] `json:"destinations"`
	WildLimit    int                          `json:"wild_limit"`
	Reshuffles   int                          `json:"reshuffles"`
	Washes       int                          `json:"washes"`
	Source       *game.Source                 `json:"source"`
}

// DealerView is the public part of the dealer. Only the face-up display
// shows card identities.
type DealerView struct {
	Open             []*game.Color `json:"open"`
	ClosedCount      int           `json:"closed_count"`
	DiscardCount     int           `json:"discard_count"`
	DestinationCount int           `json:"destination_count"`
}

// NewDealer shuffles both decks and lays out the face-up display.
func NewDealer(trains []game.Color, destinations []board.Destination, displaySize, wildLimit int, src *game.Source) *Dealer {
	d := &Dealer{
		Closed:       game.NewDeck(trains),
		Open:         make([]*game.Color, displaySize),
		Destinations: game.NewDeck(destinations),
		WildLimit:    wildLimit,
		Source:       src,
	}
	d.Closed.Shuffle(src.Rand())
	d.Destinations.Shuffle(src.Rand())
	d.fillDisplay()
	d.washDisplay()
	return d
}

// DrawClosed takes the top card of the closed deck, reshuffling the discard
// pile into it first when the closed deck has run out.
func (d *Dealer) DrawClosed() (game.Color, error) {
	card, ok := d.takeClosed()
	if !ok {
		return game.Unspecified, reject(KindEmptySupply, "deck", "there are no train cards left to draw")
	}
	return card, nil
}

// CheckDrawOpen validates taking the face-up card in slot without touching
// any pile.
func (d *Dealer) CheckDrawOpen(slot int, second bool) (game.Color, error) {
	if slot < 0 || slot >= len(d.Open) {
		return game.Unspecified, reject(KindInvalidAction, "slot", "face-up slot %d does not exist", slot)
	}
	card := d.Open[slot]
	if card == nil {
		return game.Unspecified, reject(KindEmptySupply, "slot", "face-up slot %d is empty", slot)
	}
	if second && card.IsWild() {
		return game.Unspecified, reject(KindInvalidAction, "slot", "a face-up wild cannot be taken as the second card of a turn")
	}
	return *card, nil
}

// DrawOpen takes the face-up card in slot and refills the display. The
// slot stays empty when no train cards are left anywhere. washed reports
// whether the display was swept for showing too many wilds.
func (d *Dealer) DrawOpen(slot int, second bool) (card game.Color, washed bool, err error) {
	card, err = d.CheckDrawOpen(slot, second)
	if err != nil {
		return game.Unspecified, false, err
	}
	d.Open[slot] = nil
	d.fillDisplay()
	return card, d.washDisplay(), nil
}

// DrawDestinations takes n tickets from the top of the destination deck.
// The deck is never replenished, so fewer than n tickets is a failure that
// leaves the deck as it was.
func (d *Dealer) DrawDestinations(n int) ([]board.Destination, error) {
	if d.Destinations.Count() < n {
		return nil, reject(KindEmptySupply, "destinations", "only %d destination cards left, %d needed", d.Destinations.Count(), n)
	}
	return d.Destinations.Draw(n)
}

// ReturnDestinations puts unkept tickets at the bottom of the deck.
func (d *Dealer) ReturnDestinations(cards []board.Destination) {
	if len(cards) == 0 {
		return
	}
	d.Destinations.PushBottom(cards...)
}

// DiscardCards adds spent cards to the discard pile. Empty display slots
// are refilled since supply may have come back.
func (d *Dealer) DiscardCards(cards ...game.Color) {
	if len(cards) == 0 {
		return
	}
	d.Discard.Push(cards...)
	if d.displayHasGap() {
		d.fillDisplay()
		d.washDisplay()
	}
}

// CanDrawAgain reports whether a second card is available this turn: any
// card left to draw blind, or a face-up card that is not a wild.
func (d *Dealer) CanDrawAgain() bool {
	if d.supply() > 0 {
		return true
	}
	for _, c := range d.Open {
		if c != nil && !c.IsWild() {
			return true
		}
	}
	return false
}

// TrainCards counts the train cards held by the dealer.
func (d *Dealer) TrainCards() int {
	n := d.supply()
	for _, c := range d.Open {
		if c != nil {
			n++
		}
	}
	return n
}

func (d *Dealer) View() DealerView {
	open := make([]*game.Color, len(d.Open))
	for i, c := range d.Open {
		if c != nil {
			card := *c
			open[i] = &card
		}
	}
	return DealerView{
		Open:             open,
		ClosedCount:      d.Closed.Count(),
		DiscardCount:     d.Discard.Count(),
		DestinationCount: d.Destinations.Count(),
	}
}

func (d *Dealer) supply() int {
	return d.Closed.Count() + d.Discard.Count()
}

func (d *Dealer) reshuffle() {
	if !d.Closed.Empty() || d.Discard.Empty() {
		return
	}
	d.Closed.Push(d.Discard.TakeAll()...)
	d.Closed.Shuffle(d.Source.Rand())
	d.Reshuffles++
}

func (d *Dealer) takeClosed() (game.Color, bool) {
	d.reshuffle()
	cards, err := d.Closed.Draw(1)
	if err != nil {
		return game.Unspecified, false
	}
	return cards[0], true
}

func (d *Dealer) displayHasGap() bool {
	for _, c := range d.Open {
		if c == nil {
			return true
		}
	}
	return false
}

func (d *Dealer) fillDisplay() {
	for i := range d.Open {
		if d.Open[i] != nil {
			continue
		}
		card, ok := d.takeClosed()
		if !ok {
			return
		}
		d.Open[i] = &card
	}
}

// washDisplay sweeps the display into the discard pile and deals a fresh
// one while it shows WildLimit or more wilds. It only sweeps when enough
// non-wild cards exist to lay out a display that would stop the sweep.
func (d *Dealer) washDisplay() (washed bool) {
	for range maxWashes {
		if !d.shouldWash() {
			return washed
		}
		for i, c := range d.Open {
			if c != nil {
				d.Discard.Push(*c)
				d.Open[i] = nil
			}
		}
		d.fillDisplay()
		d.Washes++
		washed = true
	}
	return washed
}

func (d *Dealer) shouldWash() bool {
	wilds, others := 0, 0
	for _, c := range d.Open {
		switch {
		case c == nil:
		case c.IsWild():
			wilds++
		default:
			others++
		}
	}
	if wilds < d.WildLimit {
		return false
	}
	for _, pile := range [][]game.Color{d.Closed.Cards, d.Discard.Cards} {
		for _, c := range pile {
			if !c.IsWild() {
				others++
			}
		}
	}
	return others > len(d.Open)-d.WildLimit
}
