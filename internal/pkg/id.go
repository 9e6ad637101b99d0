package pkg

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6
)

// GenerateRoomCode - generates a short human-shareable room code,
// 6 uppercase alphanumeric characters.
func GenerateRoomCode() (string, error) {
	code := make([]byte, roomCodeLength)
	alphabetSize := big.NewInt(int64(len(roomCodeAlphabet)))

	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}

	return string(code), nil
}

// NewConnectionID - generates an opaque identifier for a transport connection.
func NewConnectionID() string {
	return uuid.NewString()
}
