package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path, and any missing parents, holding size bytes of a
// repeating pattern. Sizes below one are rounded up so the file is never
// empty.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	size = max(size, 1)
	pattern := []byte("framecast-fixture\n")
	data := bytes.Repeat(pattern, int(size)/len(pattern)+1)[:size]
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
