package server

import (
	"errors"
	"math/rand/v2"
	"strings"
)

const (
	roomCodeLength = 4
	// maxRoomCodeAttempts bounds the search once the code space fills up.
	maxRoomCodeAttempts = 1000
)

// GenerateRoomCode picks a random unused code of four letters A-Z.
func GenerateRoomCode(usedCodes map[string]bool) (string, error) {
	code := make([]byte, roomCodeLength)
	for range maxRoomCodeAttempts {
		for i := range code {
			code[i] = 'A' + byte(rand.IntN(26))
		}
		if roomCode := string(code); !usedCodes[roomCode] {
			return roomCode, nil
		}
	}
	return "", errors.New("ROOM_CODES_EXHAUSTED: No free room code available")
}

func ValidateRoomCode(code string) error {
	if len(code) != roomCodeLength {
		return errors.New("INVALID_ROOM_CODE: Room code must be exactly 4 characters")
	}

	for _, ch := range strings.ToUpper(code) {
		if ch < 'A' || ch > 'Z' {
			return errors.New("INVALID_ROOM_CODE: Room code must contain only letters A-Z")
		}
	}

	return nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
