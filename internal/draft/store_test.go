package draft

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"eviction-tracker/efiling/internal/draft/domain"
	"eviction-tracker/efiling/internal/draft/kv"
	efile "eviction-tracker/efiling/internal/efile/domain"
)

var now = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(clock *time.Time) (*Store, *kv.MemoryStore) {
	backend := kv.NewMemoryStore()
	s := NewStore(backend, 0)
	s.nowF = func() time.Time { return *clock }
	return s, backend
}

func saveAt(t *testing.T, s *Store, clock *time.Time, at time.Time, d domain.Draft) domain.Draft {
	t.Helper()
	prev := *clock
	*clock = at
	defer func() { *clock = prev }()
	saved, err := s.Save(context.Background(), d)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return saved
}

func TestSave_AssignsIDAndTimestamp(t *testing.T) {
	clock := now
	s, _ := newTestStore(&clock)
	d, err := s.Save(context.Background(), domain.Draft{Input: efile.FormInput{CaseID: "case-1", CaseType: "possession"}})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if d.ID == "" {
		t.Error("ID not assigned")
	}
	if !d.SavedAt.Equal(now) {
		t.Errorf("SavedAt = %v, want %v", d.SavedAt, now)
	}
	if d.CaseID != "case-1" {
		t.Errorf("CaseID = %q, want case-1", d.CaseID)
	}
	got, err := s.Get(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Input.CaseType != "possession" {
		t.Errorf("Input.CaseType = %q", got.Input.CaseType)
	}
}

func TestSave_Upserts(t *testing.T) {
	clock := now
	s, _ := newTestStore(&clock)
	ctx := context.Background()
	_ = saveAt(t, s, &clock, now.Add(-time.Hour), domain.Draft{ID: "d1", Input: efile.FormInput{Jurisdiction: "cook:cvd1"}})
	_ = saveAt(t, s, &clock, now, domain.Draft{ID: "d1", Input: efile.FormInput{Jurisdiction: "cook:cvd2"}, AutoSaved: true})

	drafts, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Input.Jurisdiction != "cook:cvd2" || !drafts[0].AutoSaved {
		t.Errorf("drafts = %+v", drafts)
	}
}

func TestPurgeExpired(t *testing.T) {
	clock := now
	s, _ := newTestStore(&clock)
	ctx := context.Background()
	_ = saveAt(t, s, &clock, now.Add(-8*24*time.Hour), domain.Draft{ID: "old"})
	_ = saveAt(t, s, &clock, now.Add(-time.Hour), domain.Draft{ID: "recent"})

	n, err := s.PurgeExpired(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	drafts, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != "recent" {
		t.Errorf("drafts = %+v, want only recent", drafts)
	}
}

func TestLoad_PurgesAndSortsNewestFirst(t *testing.T) {
	clock := now
	s, backend := newTestStore(&clock)
	ctx := context.Background()
	_ = saveAt(t, s, &clock, now.Add(-3*time.Hour), domain.Draft{ID: "a"})
	_ = saveAt(t, s, &clock, now.Add(-time.Hour), domain.Draft{ID: "b"})
	_ = saveAt(t, s, &clock, now.Add(-2*time.Hour), domain.Draft{ID: "c"})
	_ = saveAt(t, s, &clock, now.Add(-10*24*time.Hour), domain.Draft{ID: "stale"})

	drafts, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var ids []string
	for _, d := range drafts {
		ids = append(ids, d.ID)
	}
	if len(ids) != 3 || ids[0] != "b" || ids[1] != "c" || ids[2] != "a" {
		t.Errorf("order = %v, want [b c a]", ids)
	}
	if _, err := backend.Get(ctx, keyPrefix+"stale"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("stale draft still stored: %v", err)
	}
}

func TestGet_ExpiredIsNotFound(t *testing.T) {
	clock := now
	s, _ := newTestStore(&clock)
	_ = saveAt(t, s, &clock, now.Add(-8*24*time.Hour), domain.Draft{ID: "old"})
	if _, err := s.Get(context.Background(), "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(context.Background(), "never"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndClear(t *testing.T) {
	clock := now
	s, backend := newTestStore(&clock)
	ctx := context.Background()
	_ = saveAt(t, s, &clock, now, domain.Draft{ID: "a"})
	_ = saveAt(t, s, &clock, now, domain.Draft{ID: "b"})
	_ = backend.Set(ctx, "other/keep", []byte("x"))

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if drafts, _ := s.Load(ctx); len(drafts) != 1 || drafts[0].ID != "b" {
		t.Errorf("after Delete drafts = %+v", drafts)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if drafts, _ := s.Load(ctx); len(drafts) != 0 {
		t.Errorf("after Clear drafts = %+v", drafts)
	}
	if _, err := backend.Get(ctx, "other/keep"); err != nil {
		t.Errorf("Clear touched foreign key: %v", err)
	}
}

func TestLoad_SkipsUnreadableEntries(t *testing.T) {
	clock := now
	s, backend := newTestStore(&clock)
	ctx := context.Background()
	_ = backend.Set(ctx, keyPrefix+"junk", []byte("{not json"))
	_ = saveAt(t, s, &clock, now, domain.Draft{ID: "ok"})

	drafts, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != "ok" {
		t.Errorf("drafts = %+v", drafts)
	}
	if raw, err := backend.Get(ctx, keyPrefix+"junk"); err != nil || string(raw) != "{not json" {
		t.Errorf("unreadable entry = %q, %v; want it kept", raw, err)
	}
}

func TestLoad_SkipsDraftsSealedWithAnotherKey(t *testing.T) {
	clock := now
	ctx := context.Background()
	inner := kv.NewMemoryStore()
	oldKey, _ := kv.NewSealed(inner, bytes.Repeat([]byte{1}, 32))
	newKey, _ := kv.NewSealed(inner, bytes.Repeat([]byte{2}, 32))

	old := NewStore(oldKey, 0)
	old.nowF = func() time.Time { return clock }
	_ = saveAt(t, old, &clock, now, domain.Draft{ID: "old"})
	s := NewStore(newKey, 0)
	s.nowF = func() time.Time { return clock }
	_ = saveAt(t, s, &clock, now, domain.Draft{ID: "new"})

	drafts, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != "new" {
		t.Errorf("drafts = %+v, want only new", drafts)
	}
	if got, err := old.Get(ctx, "old"); err != nil || got.ID != "old" {
		t.Errorf("old draft = %+v, %v; want it kept", got, err)
	}
}
