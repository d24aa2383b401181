package game

import (
	"errors"
	"math/rand/v2"
)

var ErrNotEnoughCards = errors.New("not enough cards in deck")

// Deck is an ordered pile. The top of the deck is the end of Cards.
type Deck[T any] struct {
	Cards []T `json:"cards"`
}

func NewDeck[T any](cards []T) Deck[T] {
	return Deck[T]{Cards: append([]T(nil), cards...)}
}

func (d Deck[T]) Count() int {
	return len(d.Cards)
}

func (d Deck[T]) Empty() bool {
	return len(d.Cards) == 0
}

// Draw takes n cards from the top. The deck is untouched when it holds
// fewer than n cards.
func (d *Deck[T]) Draw(n int) ([]T, error) {
	if n < 0 || n > len(d.Cards) {
		return nil, ErrNotEnoughCards
	}
	cut := len(d.Cards) - n
	drawn := make([]T, n)
	for i := range n {
		drawn[i] = d.Cards[len(d.Cards)-1-i]
	}
	d.Cards = d.Cards[:cut]
	return drawn, nil
}

func (d *Deck[T]) Push(cards ...T) {
	d.Cards = append(d.Cards, cards...)
}

func (d *Deck[T]) PushBottom(cards ...T) {
	d.Cards = append(append(make([]T, 0, len(cards)+len(d.Cards)), cards...), d.Cards...)
}

// TakeAll empties the deck and returns its cards bottom first.
func (d *Deck[T]) TakeAll() []T {
	cards := d.Cards
	d.Cards = nil
	return cards
}

func (d *Deck[T]) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.Cards), func(i, j int) {
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	})
}
