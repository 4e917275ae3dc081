package testsupport

import (
	"context"
	"testing"

	"hlscache/internal/config"
	"hlscache/internal/logging"
	"hlscache/internal/recordstore"
)

// MustOpenStore opens and initializes the record store for cfg.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...recordstore.Option) *recordstore.Store {
	t.Helper()

	store, err := recordstore.Open(cfg.DatabasePath(), logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("recordstore.Open: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("store.Init: %v", err)
	}
	return store
}
