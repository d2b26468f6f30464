package migrate

import (
	"io/fs"
	"os"
	"sort"
	"strings"
	"testing"

	"eviction-tracker/efiling/internal/db"
)

func TestRun_EmptyDSN(t *testing.T) {
	err := Run("", "up")
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL is not set") {
		t.Errorf("err = %v, want DATABASE_URL is not set", err)
	}
	if _, _, err := Version(""); err == nil {
		t.Error("Version with empty DSN should return error")
	}
}

func TestParseDirection(t *testing.T) {
	for _, ok := range []string{"up", "down"} {
		if _, err := ParseDirection(ok); err != nil {
			t.Errorf("ParseDirection(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "UP", "Up", "sideways"} {
		if err := Run("postgres://localhost/test", bad); err == nil || !strings.Contains(err.Error(), "direction") {
			t.Errorf("Run direction %q err = %v, want direction error", bad, err)
		}
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	for _, dsn := range []string{"invalid-dsn", "://localhost/test"} {
		if err := Run(dsn, "up"); err == nil {
			t.Errorf("Run with invalid DSN %q should return error", dsn)
		}
	}
}

func TestMigrations_Paired(t *testing.T) {
	entries, err := fs.ReadDir(db.MigrationFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	var names []string
	for n := range ups {
		names = append(names, n)
		if !downs[n] {
			t.Errorf("%s has no down migration", n)
		}
	}
	sort.Strings(names)
	if len(names) == 0 || !strings.HasPrefix(names[0], "000001_") {
		t.Errorf("migrations = %v", names)
	}
}

func TestRun_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if err := Run(dsn, "up"); err != nil {
		t.Skipf("migrate up failed (expected in test environment): %v", err)
	}
	v, dirty, err := Version(dsn)
	if err != nil || dirty || v < 4 {
		t.Errorf("Version = %d, %v, %v", v, dirty, err)
	}
}
