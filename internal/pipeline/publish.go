package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"framecast/internal/fileutil"
	"framecast/internal/manifest"
	"framecast/internal/services"
	"framecast/internal/stagedoc"
)

// PublishRequest is what the publish step hands to a Publisher. It is only
// built from a manifest that passed the gate.
type PublishRequest struct {
	ProjectID string
	Assembly  stagedoc.Assembly
	Manifest  manifest.Manifest
}

// PublishResult describes where the output went.
type PublishResult struct {
	ProjectID    string    `json:"projectId"`
	OutputURI    string    `json:"outputUri"`
	PublishedURI string    `json:"publishedUri"`
	Copied       bool      `json:"copied"`
	Digest       string    `json:"digest,omitempty"`
	PublishedAt  time.Time `json:"publishedAt"`
}

// Publisher delivers an assembled project. Platform uploads implement it
// outside this repository.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (PublishResult, error)
}

// LocalPublisher copies a rendered output into Dir/<project>/ and writes a
// receipt beside it. When the renderer has not produced the file yet, only
// the receipt is written and PublishedURI points at the planned output.
type LocalPublisher struct {
	Dir string
	Now func() time.Time
}

// ReceiptName is the receipt file written per published project.
const ReceiptName = "publish.json"

// Publish implements Publisher.
func (p LocalPublisher) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if !req.Manifest.ReadyForRendering {
		return PublishResult{}, manifest.GateError(req.Manifest)
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	target := filepath.Join(p.Dir, req.ProjectID)
	result := PublishResult{
		ProjectID:    req.ProjectID,
		OutputURI:    req.Assembly.OutputURI,
		PublishedURI: req.Assembly.OutputURI,
		PublishedAt:  now().UTC(),
	}

	if src, ok := localPath(req.Assembly.OutputURI); ok {
		_, statErr := os.Stat(src)
		switch {
		case statErr == nil:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return PublishResult{}, services.Wrap(services.ErrTransient, "publish", "prepare", target, err)
			}
			dst := filepath.Join(target, filepath.Base(src))
			digest, err := fileutil.CopyFileVerified(src, dst)
			if err != nil {
				return PublishResult{}, services.Wrap(services.ErrTransient, "publish", "copy output", src, err)
			}
			result.Digest = digest
			result.PublishedURI = "file://" + filepath.ToSlash(dst)
			result.Copied = true
		case !errors.Is(statErr, fs.ErrNotExist):
			return PublishResult{}, services.Wrap(services.ErrTransient, "publish", "stat output", src, statErr)
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return PublishResult{}, services.Wrap(services.ErrFatal, "publish", "encode receipt", "", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(target, ReceiptName), append(data, '\n'), 0o644); err != nil {
		return PublishResult{}, services.Wrap(services.ErrTransient, "publish", "write receipt", target, err)
	}
	return result, nil
}

func localPath(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

var _ Publisher = LocalPublisher{}
