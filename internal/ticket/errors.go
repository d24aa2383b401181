package ticket

import (
	"fmt"
)

// Kind classifies a rejected request. Kinds double as the stable error codes
// sent to clients.
type Kind string

const (
	KindInvalidPhase                Kind = "INVALID_PHASE"
	KindNotYourTurn                 Kind = "NOT_YOUR_TURN"
	KindRouteUnavailable            Kind = "ROUTE_UNAVAILABLE"
	KindInsufficientCards           Kind = "INSUFFICIENT_CARDS"
	KindColorTaken                  Kind = "COLOR_TAKEN"
	KindEmptySupply                 Kind = "EMPTY_SUPPLY"
	KindInvalidPlayerCount          Kind = "INVALID_PLAYER_COUNT"
	KindDestinationSelectionInvalid Kind = "DESTINATION_SELECTION_INVALID"
	KindNameTaken                   Kind = "NAME_TAKEN"
	KindInvalidName                 Kind = "INVALID_NAME"
	KindGameFull                    Kind = "GAME_FULL"
	KindUnknownPlayer               Kind = "UNKNOWN_PLAYER"
	KindNotReady                    Kind = "NOT_READY"
	KindInvalidAction               Kind = "INVALID_ACTION"
)

// RuleError is a rejected request. The game state is unchanged whenever one
// is returned.
type RuleError struct {
	Kind    Kind   `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *RuleError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any RuleError of the same kind, so the sentinels below work
// with errors.Is.
func (e *RuleError) Is(target error) bool {
	t, ok := target.(*RuleError)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidPhase                = &RuleError{Kind: KindInvalidPhase}
	ErrNotYourTurn                 = &RuleError{Kind: KindNotYourTurn}
	ErrRouteUnavailable            = &RuleError{Kind: KindRouteUnavailable}
	ErrInsufficientCards           = &RuleError{Kind: KindInsufficientCards}
	ErrColorTaken                  = &RuleError{Kind: KindColorTaken}
	ErrEmptySupply                 = &RuleError{Kind: KindEmptySupply}
	ErrInvalidPlayerCount          = &RuleError{Kind: KindInvalidPlayerCount}
	ErrDestinationSelectionInvalid = &RuleError{Kind: KindDestinationSelectionInvalid}
	ErrNameTaken                   = &RuleError{Kind: KindNameTaken}
	ErrInvalidName                 = &RuleError{Kind: KindInvalidName}
	ErrGameFull                    = &RuleError{Kind: KindGameFull}
	ErrUnknownPlayer               = &RuleError{Kind: KindUnknownPlayer}
	ErrNotReady                    = &RuleError{Kind: KindNotReady}
	ErrInvalidAction               = &RuleError{Kind: KindInvalidAction}
)

func reject(kind Kind, field, format string, args ...any) *RuleError {
	return &RuleError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvariantError reports engine state that should be impossible, such as a
// claim on a route the board does not know. It is a bug, never a rejection.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Message
}

func invariant(format string, args ...any) *InvariantError {
	return &InvariantError{Message: fmt.Sprintf(format, args...)}
}
