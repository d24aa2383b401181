package ticket

import (
	"encoding/json"

	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/game"
)

type ActionType string

const (
	// Card draws, two per turn
	ActionDrawOpen   ActionType = "draw_open"
	ActionDrawClosed ActionType = "draw_closed"

	// Whole-turn actions
	ActionClaimRoute       ActionType = "claim_route"
	ActionDrawDestinations ActionType = "draw_destinations"

	// Follows a destination draw, or the opening deal
	ActionSelectDestinations ActionType = "select_destinations"
)

// Action is one of DrawOpen, DrawClosed, ClaimRoute, DrawDestinations or
// SelectDestinations.
type Action interface {
	Type() ActionType
}

// DrawOpen takes the face-up card in Slot.
type DrawOpen struct {
	Slot int `json:"slot"`
}

// DrawClosed takes the top card of the closed deck.
type DrawClosed struct{}

// ClaimRoute pays Cards to claim Route. Color is the color the cards are
// played as; it may be left out when the cards make it unambiguous.
type ClaimRoute struct {
	Route board.RouteID `json:"route"`
	Color game.Color    `json:"color,omitempty"`
	Cards game.Hand     `json:"cards"`
}

type DrawDestinations struct{}

// SelectDestinations keeps the listed pending tickets and returns the rest.
type SelectDestinations struct {
	Keep []board.DestinationID `json:"keep"`
}

func (DrawOpen) Type() ActionType           { return ActionDrawOpen }
func (DrawClosed) Type() ActionType         { return ActionDrawClosed }
func (ClaimRoute) Type() ActionType         { return ActionClaimRoute }
func (DrawDestinations) Type() ActionType   { return ActionDrawDestinations }
func (SelectDestinations) Type() ActionType { return ActionSelectDestinations }

// DecodeAction reads an action from its tagged JSON form, for example
// {"type": "draw_open", "slot": 2}.
func DecodeAction(data []byte) (Action, error) {
	var envelope struct {
		Type ActionType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, reject(KindInvalidAction, "type", "malformed action: %v", err)
	}

	var action Action
	var err error
	switch envelope.Type {
	case ActionDrawOpen:
		var a DrawOpen
		err = json.Unmarshal(data, &a)
		action = a
	case ActionDrawClosed:
		action = DrawClosed{}
	case ActionClaimRoute:
		var a ClaimRoute
		err = json.Unmarshal(data, &a)
		action = a
	case ActionDrawDestinations:
		action = DrawDestinations{}
	case ActionSelectDestinations:
		var a SelectDestinations
		err = json.Unmarshal(data, &a)
		action = a
	default:
		return nil, reject(KindInvalidAction, "type", "unknown action type %q", envelope.Type)
	}
	if err != nil {
		return nil, reject(KindInvalidAction, string(envelope.Type), "malformed %s action: %v", envelope.Type, err)
	}
	return action, nil
}

// EncodeAction is the inverse of DecodeAction.
func EncodeAction(a Action) ([]byte, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(a.Type())
	return json.Marshal(fields)
}
