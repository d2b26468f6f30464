// Package draft persists in-progress filing forms so they survive a reload or a crash.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"eviction-tracker/efiling/internal/draft/domain"
	"eviction-tracker/efiling/internal/draft/kv"
)

const keyPrefix = "draft/"

// ErrNotFound is returned when no draft has the requested id.
var ErrNotFound = errors.New("draft: not found")

// Store saves and restores drafts through a kv.Store. Writes are last-write-wins.
type Store struct {
	kv     kv.Store
	maxAge time.Duration
	nowF   func() time.Time
}

// NewStore returns a Store over backend. maxAge <= 0 uses domain.DefaultMaxAge.
func NewStore(backend kv.Store, maxAge time.Duration) *Store {
	if maxAge <= 0 {
		maxAge = domain.DefaultMaxAge
	}
	return &Store{kv: backend, maxAge: maxAge, nowF: time.Now}
}

// Save upserts d by ID, assigning an ID when empty and stamping SavedAt. It returns the stored draft.
func (s *Store) Save(ctx context.Context, d domain.Draft) (domain.Draft, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.SavedAt = s.nowF().UTC()
	if d.CaseID == "" {
		d.CaseID = d.Input.CaseID
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("draft: encode %s: %w", d.ID, err)
	}
	if err := s.kv.Set(ctx, keyPrefix+d.ID, raw); err != nil {
		return domain.Draft{}, err
	}
	return d, nil
}

// Get returns the draft with id. An expired draft is deleted and reported as ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (domain.Draft, error) {
	raw, err := s.kv.Get(ctx, keyPrefix+id)
	if errors.Is(err, kv.ErrNotFound) {
		return domain.Draft{}, ErrNotFound
	}
	if err != nil {
		return domain.Draft{}, err
	}
	var d domain.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return domain.Draft{}, fmt.Errorf("draft: decode %s: %w", id, err)
	}
	if d.Expired(s.nowF(), s.maxAge) {
		if err := s.kv.Delete(ctx, keyPrefix+id); err != nil {
			return domain.Draft{}, err
		}
		return domain.Draft{}, ErrNotFound
	}
	return d, nil
}

// Load purges expired drafts and returns the rest, newest first.
func (s *Store) Load(ctx context.Context) ([]domain.Draft, error) {
	if _, err := s.PurgeExpired(ctx, s.maxAge); err != nil {
		return nil, err
	}
	drafts, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(drafts, func(i, j int) bool { return drafts[i].SavedAt.After(drafts[j].SavedAt) })
	return drafts, nil
}

// PurgeExpired deletes every draft older than maxAge and returns how many were removed.
// maxAge <= 0 uses the store's configured age.
func (s *Store) PurgeExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = s.maxAge
	}
	drafts, err := s.all(ctx)
	if err != nil {
		return 0, err
	}
	now := s.nowF()
	n := 0
	for _, d := range drafts {
		if !d.Expired(now, maxAge) {
			continue
		}
		if err := s.kv.Delete(ctx, keyPrefix+d.ID); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		log.Printf("draft: purged %d expired drafts", n)
	}
	return n, nil
}

// Delete removes one draft. A missing draft is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, keyPrefix+id)
}

// Clear removes every draft.
func (s *Store) Clear(ctx context.Context) error {
	entries, err := s.kv.List(ctx, keyPrefix)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.kv.Delete(ctx, e.Key); err != nil {
			return err
		}
	}
	return nil
}

// all decodes every stored draft. Undecodable entries are logged and skipped, never deleted.
func (s *Store) all(ctx context.Context) ([]domain.Draft, error) {
	entries, err := s.kv.List(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Draft, 0, len(entries))
	for _, e := range entries {
		var d domain.Draft
		if err := json.Unmarshal(e.Value, &d); err != nil {
			log.Printf("draft: skipping unreadable entry %s: %v", e.Key, err)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
