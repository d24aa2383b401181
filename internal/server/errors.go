package server

import (
	"errors"
	"net/http"
	"strings"

	"ticket-to-ride-server/internal/ticket"
)

var (
	ErrRoomNotFound  = errors.New("ROOM_NOT_FOUND: Game not found")
	ErrNotInGame     = errors.New("NOT_IN_GAME: Token does not belong to this game")
	ErrRateLimited   = errors.New("RATE_LIMITED: Too many requests")
	ErrInvalidBody   = errors.New("INVALID_REQUEST: Malformed request body")
	ErrMissingToken  = errors.New("TOKEN_REQUIRED: No session token supplied")
	errInternalError = errors.New("INTERNAL_ERROR: Internal server error")
)

// errorCode extracts the stable code clients switch on. Errors follow the
// "CODE: message" convention; anything else is reported as an internal error.
func errorCode(err error) string {
	var ruleErr *ticket.RuleError
	if errors.As(err, &ruleErr) {
		return string(ruleErr.Kind)
	}
	code, _, ok := strings.Cut(err.Error(), ":")
	if !ok || code == "" || strings.ToUpper(code) != code || strings.ContainsAny(code, " \t") {
		return "INTERNAL_ERROR"
	}
	return code
}

// errorMessage builds the client payload for err. Invariant violations and
// infrastructure failures never leak their details.
func errorMessage(err error) ErrorMessage {
	var ruleErr *ticket.RuleError
	if errors.As(err, &ruleErr) {
		return ErrorMessage{Code: string(ruleErr.Kind), Field: ruleErr.Field, Message: ruleErr.Error()}
	}
	if errorCode(err) == "INTERNAL_ERROR" {
		return ErrorMessage{Code: "INTERNAL_ERROR", Message: errInternalError.Error()}
	}
	return ErrorMessage{Code: errorCode(err), Message: err.Error()}
}

func httpStatus(err error) int {
	var invariantErr *ticket.InvariantError
	switch {
	case errors.As(err, &invariantErr):
		return http.StatusInternalServerError
	case errors.Is(err, ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrMissingToken), errors.Is(err, ErrNotInGame):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ticket.ErrInvalidAction), errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest
	}

	var ruleErr *ticket.RuleError
	if errors.As(err, &ruleErr) {
		return http.StatusConflict
	}
	if code := errorCode(err); code != "INTERNAL_ERROR" {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
