package ticket

import "fmt"

// TiePolicy decides who receives the longest path bonus when several
// players share the longest path.
type TiePolicy string

const (
	// TieShared gives the bonus to every player on the longest path.
	TieShared TiePolicy = "shared"
	// TieFirstPlayer gives it only to the tied player earliest in turn order.
	TieFirstPlayer TiePolicy = "first_player"
)

type Rules struct {
	MinPlayers               int       `json:"min_players"`
	MaxPlayers               int       `json:"max_players"`
	StartingCars             int       `json:"starting_cars"`
	InitialTrainCards        int       `json:"initial_train_cards"`
	DestinationDraw          int       `json:"destination_draw"`
	InitialMinKeep           int       `json:"initial_min_keep"`
	TurnMinKeep              int       `json:"turn_min_keep"`
	LastTurnThreshold        int       `json:"last_turn_threshold"`
	LongestPathBonus         int       `json:"longest_path_bonus"`
	LongestPathTies          TiePolicy `json:"longest_path_ties"`
	ParallelRoutesMinPlayers int       `json:"parallel_routes_min_players"`
	DisplaySize              int       `json:"display_size"`
	WildLimit                int       `json:"wild_limit"`
}

func DefaultRules() Rules {
	return Rules{
		MinPlayers:               2,
		MaxPlayers:               5,
		StartingCars:             45,
		InitialTrainCards:        4,
		DestinationDraw:          3,
		InitialMinKeep:           2,
		TurnMinKeep:              1,
		LastTurnThreshold:        2,
		LongestPathBonus:         10,
		LongestPathTies:          TieShared,
		ParallelRoutesMinPlayers: 4,
		DisplaySize:              5,
		WildLimit:                3,
	}
}

func (r Rules) Validate() error {
	if r.MinPlayers < 1 || r.MaxPlayers < r.MinPlayers {
		return fmt.Errorf("invalid player range %d-%d", r.MinPlayers, r.MaxPlayers)
	}
	if r.MaxPlayers > len(PlayerColors) {
		return fmt.Errorf("max players %d exceeds the %d player colors", r.MaxPlayers, len(PlayerColors))
	}
	if r.StartingCars <= 0 {
		return fmt.Errorf("starting cars must be positive")
	}
	if r.DestinationDraw <= 0 {
		return fmt.Errorf("destination draw must be positive")
	}
	if r.InitialMinKeep < 1 || r.InitialMinKeep > r.DestinationDraw {
		return fmt.Errorf("initial minimum keep must be between 1 and %d", r.DestinationDraw)
	}
	if r.TurnMinKeep < 1 || r.TurnMinKeep > r.DestinationDraw {
		return fmt.Errorf("turn minimum keep must be between 1 and %d", r.DestinationDraw)
	}
	if r.InitialTrainCards < 0 || r.LastTurnThreshold < 0 || r.LongestPathBonus < 0 {
		return fmt.Errorf("card counts, thresholds and bonuses cannot be negative")
	}
	if r.LongestPathTies != TieShared && r.LongestPathTies != TieFirstPlayer {
		return fmt.Errorf("unknown longest path tie policy %q", r.LongestPathTies)
	}
	if r.DisplaySize <= 0 {
		return fmt.Errorf("display size must be positive")
	}
	if r.WildLimit <= 0 {
		return fmt.Errorf("wild limit must be positive")
	}
	return nil
}
