package testsupport

import (
	"context"
	"testing"

	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/library"
)

// MustOpenLibrary opens the SQLite library for tests and registers cleanup.
func MustOpenLibrary(t testing.TB, cfg *config.Config) *library.SQLiteStore {
	t.Helper()

	store, err := library.OpenSQLite(context.Background(), cfg.Library.Path, nil)
	if err != nil {
		t.Fatalf("library.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
