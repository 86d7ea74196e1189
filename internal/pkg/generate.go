package pkg

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateJoinCode - generates a random join code of the given length.
func GenerateJoinCode(length int) (string, error) {
	limit := big.NewInt(int64(len(joinCodeAlphabet)))

	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to read random: %w", err)
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}

	return string(code), nil
}

// GenerateNewSessionID - generates a new unique sessionID.
func GenerateNewSessionID() string {
	return uuid.NewString()
}
