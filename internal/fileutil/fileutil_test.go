package fileutil

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/zeebo/blake3"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "render.mp4")
	dst := filepath.Join(dir, "published", "render.mp4")
	content := []byte("not really a video")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	digest, err := CopyFileVerified(src, dst)
	if err != nil {
		t.Fatalf("CopyFileVerified: %v", err)
	}
	sum := blake3.Sum256(content)
	if want := hex.EncodeToString(sum[:]); digest != want {
		t.Fatalf("digest = %s, want %s", digest, want)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("copied %q, want %q", got, content)
	}
	assertOnlyEntry(t, filepath.Dir(dst), "render.mp4")
}

func TestCopyFileVerifiedMissingSourceLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.bin")
	if _, err := CopyFileVerified(filepath.Join(dir, "absent"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist, stat err = %v", err)
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects", "reef", "manifest.json")
	for _, body := range []string{`{"state":"blocked"}`, `{"state":"ready"}`} {
		if err := WriteFileAtomic(path, []byte(body), 0o600); err != nil {
			t.Fatalf("WriteFileAtomic: %v", err)
		}
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"state":"ready"}` {
		t.Fatalf("content = %q", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}
	assertOnlyEntry(t, filepath.Dir(path), "manifest.json")
}

func assertOnlyEntry(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != name {
		t.Fatalf("expected only %s in %s, found %v", name, dir, entries)
	}
}
