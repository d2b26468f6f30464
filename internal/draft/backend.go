package draft

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"eviction-tracker/efiling/internal/config"
	"eviction-tracker/efiling/internal/draft/kv"
)

// ErrNoDatabase is returned when the postgres backend is chosen without a database handle.
var ErrNoDatabase = errors.New("draft: postgres backend needs a database")

// Backend selects where drafts are kept.
type Backend struct {
	// Kind is one of the config.DraftBackend* names.
	Kind string
	// Path is the JSON file or SQLite database for the file and sqlite kinds.
	Path string
	// DB is the shared Postgres handle for the postgres kind. It is not closed by the returned closer.
	DB *sql.DB
	// Key seals every value with XChaCha20-Poly1305 when non-nil.
	Key []byte
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenBackend opens the configured kv.Store. The closer releases resources the backend owns.
func OpenBackend(ctx context.Context, b Backend) (kv.Store, io.Closer, error) {
	var (
		store  kv.Store
		closer io.Closer = nopCloser{}
	)
	switch b.Kind {
	case "", config.DraftBackendMemory:
		store = kv.NewMemoryStore()
	case config.DraftBackendFile:
		fs, err := kv.OpenFile(b.Path)
		if err != nil {
			return nil, nil, err
		}
		store = fs
	case config.DraftBackendSQLite:
		s, err := kv.OpenSQLite(ctx, b.Path)
		if err != nil {
			return nil, nil, err
		}
		store, closer = s, s
	case config.DraftBackendPostgres:
		if b.DB == nil {
			return nil, nil, ErrNoDatabase
		}
		store = kv.NewSQLStore(b.DB, kv.DialectPostgres)
	default:
		return nil, nil, fmt.Errorf("draft: unknown backend %q", b.Kind)
	}
	if b.Key != nil {
		sealed, err := kv.NewSealed(store, b.Key)
		if err != nil {
			_ = closer.Close()
			return nil, nil, err
		}
		store = sealed
	}
	return store, closer, nil
}
