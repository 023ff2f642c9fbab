package daemonrun

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"framecast/internal/testsupport"
)

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "framecast-1.log")
	second := filepath.Join(dir, "framecast-2.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatal(err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "framecast.log"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "framecast-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestReadPID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if ReadPID(cfg) != 0 {
		t.Fatal("expected no pid before write")
	}
	pidPath := filepath.Join(cfg.Paths.DataDir, PIDFileName)
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ReadPID(cfg); got != os.Getpid() {
		t.Fatalf("ReadPID = %d, want %d", got, os.Getpid())
	}
	if err := os.WriteFile(pidPath, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ReadPID(cfg); got != 0 {
		t.Fatalf("ReadPID with garbage = %d, want 0", got)
	}
}
