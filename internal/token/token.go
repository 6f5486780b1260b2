// Package token generates opaque random capability tokens used as session
// ids and password reset tokens.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Size is the number of random bytes behind every token (256 bits).
const Size = 32

// Generator returns a new unguessable token.
type Generator func() (string, error)

// New reads Size bytes from the system CSPRNG and encodes them URL-safe.
func New() (string, error) {
	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
