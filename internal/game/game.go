// Package game holds the card primitives shared by the board and the rules
// engine: train card colors, hands, ordered decks and the seeded shuffle
// source.
package game

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// Source is a seeded PCG generator that survives a JSON round trip, so a
// restored game keeps shuffling from where it left off.
type Source struct {
	pcg *rand.PCG
	rng *rand.Rand
}

func NewSource(seed uint64) *Source {
	pcg := rand.NewPCG(mix(seed), mix(seed+goldenRatio64))
	return &Source{pcg: pcg, rng: rand.New(pcg)}
}

func (s *Source) Rand() *rand.Rand {
	return s.rng
}

func (s *Source) MarshalJSON() ([]byte, error) {
	state, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode shuffle state: %w", err)
	}
	return json.Marshal(state)
}

func (s *Source) UnmarshalJSON(data []byte) error {
	var state []byte
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	pcg := &rand.PCG{}
	if err := pcg.UnmarshalBinary(state); err != nil {
		return fmt.Errorf("failed to decode shuffle state: %w", err)
	}
	s.pcg = pcg
	s.rng = rand.New(pcg)
	return nil
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
