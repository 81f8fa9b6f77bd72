package game

import (
	"crypto/rand"
	"math/big"
)

const (
	// CodeAlphabet omits characters that are easy to misread (I, O, 0, 1).
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 6

	maxCodeAttempts = 10
)

// GenerateCode returns a random room code drawn from CodeAlphabet.
func GenerateCode() (string, error) {
	code := make([]byte, CodeLength)
	limit := big.NewInt(int64(len(CodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		code[i] = CodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
