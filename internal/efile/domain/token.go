package domain

import "time"

// AuthToken is a bearer token for the e-filing service. Value must never be logged.
type AuthToken struct {
	Value     string
	ExpiresAt time.Time
}

// IsTokenExpired reports whether a token expiring at expiresAt is unusable at now.
func IsTokenExpired(now, expiresAt time.Time) bool {
	return !now.Before(expiresAt)
}

// Valid reports whether the token is non-empty and usable at now.
func (t AuthToken) Valid(now time.Time) bool {
	return t.Value != "" && !IsTokenExpired(now, t.ExpiresAt)
}

// String never exposes the token value.
func (t AuthToken) String() string {
	if t.Value == "" {
		return "AuthToken(empty)"
	}
	return "AuthToken(expires " + t.ExpiresAt.UTC().Format(time.RFC3339) + ")"
}
