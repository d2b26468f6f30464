package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoExpiry is returned when a token carries no readable expiry.
	ErrNoExpiry = errors.New("token has no expiry claim")
)

// TokenExpiry reads the exp claim of a bearer token issued by the e-filing service.
// The signature is not verified: the token is opaque to us and only the issuer checks it.
// Returns ErrNoExpiry when the token is not a JWT or has no exp claim.
func TokenExpiry(token string) (time.Time, error) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, ErrNoExpiry
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, ErrNoExpiry
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// Fingerprint returns a SHA-256 hash of s, hex-encoded. Used to refer to tokens and
// credentials in logs and cache keys without keeping the raw value.
func Fingerprint(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// FingerprintEqual performs constant-time comparison of s's fingerprint with fp.
// Empty inputs never match.
func FingerprintEqual(s, fp string) bool {
	if s == "" || fp == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Fingerprint(s)), []byte(fp)) == 1
}

// MaskIdentity keeps the first character of a username and its domain, e.g. c***@example.com.
func MaskIdentity(s string) string {
	local, domain, hasDomain := strings.Cut(s, "@")
	if local == "" {
		return "***"
	}
	masked := local[:1] + "***"
	if hasDomain {
		masked += "@" + domain
	}
	return masked
}
