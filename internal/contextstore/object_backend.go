package contextstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"framecast/internal/fileutil"
	"framecast/internal/services"
	"framecast/internal/stagedoc"
)

// ObjectBackend writes offloaded documents under
// <root>/<project>/<phase>/context-<version>.json[.zst|.lz4].
type ObjectBackend struct {
	root string
}

// NewObjectBackend stores objects beneath root (the projects directory).
func NewObjectBackend(root string) *ObjectBackend {
	return &ObjectBackend{root: root}
}

func (b *ObjectBackend) Tier() stagedoc.Tier { return stagedoc.TierOffloaded }

// Location returns the relative object path for a document.
func (b *ObjectBackend) Location(obj Object) string {
	name := "context-" + obj.Version + ".json" + fileSuffix(obj.Codec)
	return filepath.ToSlash(filepath.Join(obj.ProjectID, obj.Stage.PhaseDir(), name))
}

func (b *ObjectBackend) Put(_ context.Context, obj Object) (string, error) {
	location := b.Location(obj)
	path, err := b.resolve(location)
	if err != nil {
		return "", err
	}
	if err := fileutil.WriteFileAtomic(path, obj.Data, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "contextstore", "object put", location, err)
	}
	return location, nil
}

func (b *ObjectBackend) Get(_ context.Context, location string) ([]byte, error) {
	path, err := b.resolve(location)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "contextstore", "object get", "missing object "+location, nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "contextstore", "object get", location, err)
	}
	return data, nil
}

func (b *ObjectBackend) Delete(_ context.Context, location string) error {
	path, err := b.resolve(location)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrTransient, "contextstore", "object delete", location, err)
	}
	return nil
}

func (b *ObjectBackend) resolve(location string) (string, error) {
	rel := filepath.FromSlash(location)
	if !filepath.IsLocal(rel) {
		return "", services.Wrap(services.ErrFatal, "contextstore", "resolve", fmt.Sprintf("object location %q escapes store root", location), nil)
	}
	return filepath.Join(b.root, rel), nil
}
