package domain

import (
	"crypto/rand"
	"strings"
)

// roomCodeAlphabet skips ambiguous characters (I, O, 0, 1).
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomCodeLength is the fixed length of generated room codes.
const RoomCodeLength = 6

// NewRoomCode generates a random room code. Uniqueness is the caller's
// responsibility (retry against the store on collision).
func NewRoomCode() (string, error) {
	b := make([]byte, RoomCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	code := make([]byte, RoomCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[int(b[i])%len(roomCodeAlphabet)]
	}
	return string(code), nil
}

// NormalizeRoomCode uppercases a room code for lookup; codes are stored
// uppercased and matched case-insensitively.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
