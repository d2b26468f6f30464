package security

import (
	"encoding/hex"
	"errors"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidKey is returned when key material is malformed or the wrong size.
var ErrInvalidKey = errors.New("invalid key")

// LoadSecret returns s when it looks like inline hex key material; otherwise it reads the file at path s.
func LoadSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if isHex(s) {
		return []byte(s), nil
	}
	b, err := os.ReadFile(s)
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimSpace(string(b))), nil
}

// ParseSealKey parses a hex-encoded 32-byte key for sealing drafts at rest. s may be inline hex or a file path.
func ParseSealKey(s string) ([]byte, error) {
	raw, err := LoadSecret(s)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(string(raw))
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
