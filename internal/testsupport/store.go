package testsupport

import (
	"testing"

	"dtesync/internal/config"
	"dtesync/internal/contingency"
)

// MustOpenStore opens a contingency store rooted in the test config's data
// directory and registers cleanup with the test.
func MustOpenStore(t testing.TB, cfg *config.Config) *contingency.Store {
	t.Helper()

	store, err := contingency.Open(cfg)
	if err != nil {
		t.Fatalf("open contingency store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close contingency store: %v", err)
		}
	})
	return store
}
