// Package fileutil holds small file helpers shared by the context store,
// the manifest repository, and the publish step.
package fileutil

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// CopyFileVerified copies src to dst and returns the BLAKE3 hex digest of
// the content. The copy is staged beside dst and re-read before it is
// renamed into place, so dst either holds a verified copy or is untouched.
func CopyFileVerified(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	srcSum := blake3.New()
	var staged string
	err = replace(dst, 0o644, func(f *os.File) error {
		staged = f.Name()
		_, err := io.Copy(f, io.TeeReader(in, srcSum))
		return err
	}, func() error {
		return verify(staged, srcSum.Sum(nil))
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(srcSum.Sum(nil)), nil
}

func verify(path string, want []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("re-read copy: %w", err)
	}
	if !bytes.Equal(h.Sum(nil), want) {
		return errors.New("copy digest mismatch")
	}
	return nil
}

// WriteFileAtomic replaces path with data; readers see either the old or
// the new content, never a partial write.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	return replace(path, mode, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	}, nil)
}

// replace stages content through fill in a temp file next to path, runs
// check on the closed file, then renames it over path. The temp file is
// removed on any failure.
func replace(path string, mode os.FileMode, fill func(*os.File) error, check func() error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if check != nil {
		if err := check(); err != nil {
			return err
		}
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
