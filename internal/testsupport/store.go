package testsupport

import (
	"context"
	"testing"

	"framecast/internal/config"
	"framecast/internal/contextstore"
	"framecast/internal/logging"
	"framecast/internal/queue"
	"framecast/internal/stagedoc"
)

// MustOpenContextStore opens a contextstore.Store for tests and registers cleanup.
func MustOpenContextStore(t testing.TB, cfg *config.Config) *contextstore.Store {
	t.Helper()

	store, err := contextstore.OpenFromConfig(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("contextstore.OpenFromConfig: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustOpenQueue opens a queue.Store for tests and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.OpenFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("queue.OpenFromConfig: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustStore writes payloads for projectID and fails the test on error.
func MustStore(t testing.TB, store *contextstore.Store, projectID string, payloads ...stagedoc.Payload) {
	t.Helper()

	for _, payload := range payloads {
		if _, err := store.Store(context.Background(), projectID, payload); err != nil {
			t.Fatalf("store %s for %s: %v", payload.StageType(), projectID, err)
		}
	}
}
