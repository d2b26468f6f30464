package domain

import (
	"time"

	efile "eviction-tracker/efiling/internal/efile/domain"
)

// DefaultMaxAge is how long a draft survives after it was last saved.
const DefaultMaxAge = 7 * 24 * time.Hour

// Draft is a snapshot of an in-progress filing form.
type Draft struct {
	ID        string          `json:"id"`
	Input     efile.FormInput `json:"input"`
	SavedAt   time.Time       `json:"saved_at"`
	CaseID    string          `json:"case_id,omitempty"`
	AutoSaved bool            `json:"auto_saved"`
}

// Expired reports whether d is older than maxAge at now.
func (d Draft) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(d.SavedAt) > maxAge
}
