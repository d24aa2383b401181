package server

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"ticket-to-ride-server/internal/ticket"
)

func TestErrorMapping(t *testing.T) {
	ruleErr := &ticket.RuleError{Kind: ticket.KindNotYourTurn, Field: "player", Message: "it is Bob's turn"}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"room not found", ErrRoomNotFound, http.StatusNotFound, "ROOM_NOT_FOUND"},
		{"unknown token", ErrTokenNotFound, http.StatusUnauthorized, "TOKEN_NOT_FOUND"},
		{"missing token", ErrMissingToken, http.StatusUnauthorized, "TOKEN_REQUIRED"},
		{"not in game", ErrNotInGame, http.StatusUnauthorized, "NOT_IN_GAME"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"bad body", ErrInvalidBody, http.StatusBadRequest, "INVALID_REQUEST"},
		{"invalid action", &ticket.RuleError{Kind: ticket.KindInvalidAction, Message: "bad"}, http.StatusBadRequest, "INVALID_ACTION"},
		{"rule violation", ruleErr, http.StatusConflict, "NOT_YOUR_TURN"},
		{"room code format", ValidateRoomCode("AB"), http.StatusBadRequest, "INVALID_ROOM_CODE"},
		{"invariant", &ticket.InvariantError{}, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"plain error", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, httpStatus(tt.err))
			assert.Equal(t, tt.wantCode, errorCode(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert := assert.New(t)

	msg := errorMessage(&ticket.RuleError{Kind: ticket.KindColorTaken, Field: "color", Message: "color red is already taken"})
	assert.Equal("COLOR_TAKEN", msg.Code)
	assert.Equal("color", msg.Field)
	assert.Equal("COLOR_TAKEN: color red is already taken", msg.Message)

	msg = errorMessage(errors.New("pq: password authentication failed"))
	assert.Equal("INTERNAL_ERROR", msg.Code)
	assert.NotContains(msg.Message, "password")

	msg = errorMessage(ErrRoomNotFound)
	assert.Equal("ROOM_NOT_FOUND", msg.Code)
	assert.Equal(ErrRoomNotFound.Error(), msg.Message)
}
