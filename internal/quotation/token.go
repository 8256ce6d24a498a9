package quotation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes matches the source system's 32 random bytes, hex encoded to
// a 64 character token.
const tokenBytes = 32

// NewResponseToken mints a cryptographically random supplier token.
func NewResponseToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("quotation: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
