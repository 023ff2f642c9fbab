package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"framecast/internal/fileutil"
	"framecast/internal/services"
	"framecast/internal/textutil"
)

// FileName is the manifest's fixed name under the project root.
const FileName = "manifest.json"

// Repository stores one manifest per project at <dir>/<project>/manifest.json.
type Repository struct {
	dir string
}

// NewRepository returns a repository rooted at the projects directory.
func NewRepository(projectsDir string) *Repository {
	return &Repository{dir: projectsDir}
}

// Path returns the manifest location for projectID.
func (r *Repository) Path(projectID string) string {
	return filepath.Join(r.dir, projectID, FileName)
}

// Save replaces the project's manifest atomically. Readers see either the
// previous manifest or the new one, never a partial file.
func (r *Repository) Save(m Manifest) error {
	if err := textutil.ValidateProjectID(m.ProjectID); err != nil {
		return services.Wrap(services.ErrValidation, "manifest", "save", "", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrFatal, "manifest", "encode", "", err)
	}
	if err := fileutil.WriteFileAtomic(r.Path(m.ProjectID), append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "manifest", "save", r.Path(m.ProjectID), err)
	}
	return nil
}

// Load returns the latest manifest built for projectID.
func (r *Repository) Load(projectID string) (Manifest, error) {
	if err := textutil.ValidateProjectID(projectID); err != nil {
		return Manifest{}, services.Wrap(services.ErrValidation, "manifest", "load", "", err)
	}
	data, err := os.ReadFile(r.Path(projectID))
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, services.Wrap(services.ErrNotFound, "manifest", "load",
			fmt.Sprintf("no manifest for project %s: run manifest.build first", projectID), nil)
	}
	if err != nil {
		return Manifest{}, services.Wrap(services.ErrTransient, "manifest", "load", r.Path(projectID), err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, services.Wrap(services.ErrFatal, "manifest", "decode", r.Path(projectID), err)
	}
	return m, nil
}
