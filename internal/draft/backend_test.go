package draft

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"eviction-tracker/efiling/internal/config"
	"eviction-tracker/efiling/internal/draft/domain"
	"eviction-tracker/efiling/internal/draft/kv"
)

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		b    Backend
	}{
		{"memory", Backend{Kind: config.DraftBackendMemory}},
		{"default", Backend{}},
		{"file", Backend{Kind: config.DraftBackendFile, Path: filepath.Join(dir, "drafts.json")}},
		{"sqlite", Backend{Kind: config.DraftBackendSQLite, Path: filepath.Join(dir, "drafts.db")}},
		{"sealed", Backend{Kind: config.DraftBackendMemory, Key: bytes.Repeat([]byte{7}, 32)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, closer, err := OpenBackend(ctx, tt.b)
			if err != nil {
				t.Fatalf("OpenBackend: %v", err)
			}
			defer closer.Close()
			s := NewStore(store, time.Hour)
			saved, err := s.Save(ctx, domain.Draft{ID: "d-1"})
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if got, err := s.Get(ctx, saved.ID); err != nil || got.ID != "d-1" {
				t.Errorf("Get = %+v, %v", got, err)
			}
		})
	}
}

func TestOpenBackend_SealedValuesAreOpaque(t *testing.T) {
	ctx := context.Background()
	inner := kv.NewMemoryStore()
	sealed, err := kv.NewSealed(inner, bytes.Repeat([]byte{9}, 32))
	if err != nil {
		t.Fatalf("NewSealed: %v", err)
	}
	if _, err := NewStore(sealed, time.Hour).Save(ctx, domain.Draft{ID: "d-1", CaseID: "case-secret"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := inner.Get(ctx, keyPrefix+"d-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if bytes.Contains(raw, []byte("case-secret")) {
		t.Error("sealed value contains plaintext")
	}
}

func TestOpenBackend_Errors(t *testing.T) {
	ctx := context.Background()
	if _, _, err := OpenBackend(ctx, Backend{Kind: config.DraftBackendPostgres}); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("postgres without db err = %v, want ErrNoDatabase", err)
	}
	if _, _, err := OpenBackend(ctx, Backend{Kind: "redis"}); err == nil {
		t.Error("unknown backend should fail")
	}
	if _, _, err := OpenBackend(ctx, Backend{Key: []byte("short")}); err == nil {
		t.Error("short key should fail")
	}
}
