package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// PairingCode returns a random numeric code of n digits, grouped in threes
// with spaces for display ("123 456 789 012").
func PairingCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("pairing code: invalid length %d", n)
	}

	digits := make([]byte, 0, n+n/3)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("can't generate a random number: %w", err)
		}
		if i > 0 && i%3 == 0 {
			digits = append(digits, ' ')
		}
		digits = append(digits, byte('0'+d.Int64()))
	}
	return string(digits), nil
}
