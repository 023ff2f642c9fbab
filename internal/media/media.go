// Package media implements the media selection stage: for each scene it
// picks visuals from a local asset library whose file names best match the
// scene's visual prompt, and records placeholders where nothing fits.
package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"framecast/internal/logging"
	"framecast/internal/services"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
	"framecast/internal/textutil"
)

const defaultPerScene = 2

var kindByExt = map[string]stagedoc.AssetKind{
	".png":  stagedoc.AssetImage,
	".jpg":  stagedoc.AssetImage,
	".jpeg": stagedoc.AssetImage,
	".webp": stagedoc.AssetImage,
	".gif":  stagedoc.AssetImage,
	".mp4":  stagedoc.AssetVideo,
	".mov":  stagedoc.AssetVideo,
	".webm": stagedoc.AssetVideo,
	".mkv":  stagedoc.AssetVideo,
}

// Request parameterizes a selection.
type Request struct {
	PerScene     int
	Placeholders bool
}

// Selector chooses visuals for a script. A stock-footage search can replace
// the local LibrarySelector.
type Selector interface {
	Select(ctx context.Context, script stagedoc.Script, req Request) (stagedoc.Media, error)
}

type candidate struct {
	path  string
	kind  stagedoc.AssetKind
	terms textutil.Terms
}

// LibrarySelector ranks files under Dir by prompt similarity.
type LibrarySelector struct {
	Dir string
}

// Select walks the library once and assigns up to PerScene files per scene
// without reusing a file.
func (s LibrarySelector) Select(ctx context.Context, script stagedoc.Script, req Request) (stagedoc.Media, error) {
	perScene := req.PerScene
	if perScene <= 0 {
		perScene = defaultPerScene
	}
	library, err := s.scan(ctx)
	if err != nil {
		return stagedoc.Media{}, err
	}

	var df textutil.DocumentFrequency
	for _, c := range library {
		df.Add(c.terms)
	}
	var idf map[string]float64
	// IDF over a tiny library zeroes out every shared word.
	if df.Documents() >= 3 {
		idf = df.IDF()
	}

	used := make(map[string]struct{}, len(library))
	var out stagedoc.Media
	for _, scene := range script.Scenes {
		prompt := textutil.NewTerms(scene.VisualPrompt + " " + scene.Narration).Weighted(idf)
		picks := rank(library, prompt, idf, used, perScene)
		for i, pick := range picks {
			used[pick.path] = struct{}{}
			out.Assets = append(out.Assets, stagedoc.Asset{
				AssetID:    fmt.Sprintf("s%02d-%02d-%s", scene.Index, i+1, textutil.Slug(strings.TrimSuffix(filepath.Base(pick.path), filepath.Ext(pick.path)))),
				SceneIndex: scene.Index,
				Kind:       pick.kind,
				URI:        "file://" + filepath.ToSlash(pick.path),
				Source:     "library",
			})
		}
		if !req.Placeholders {
			continue
		}
		for i := len(picks); i < perScene; i++ {
			out.Assets = append(out.Assets, stagedoc.Asset{
				AssetID:     fmt.Sprintf("s%02d-ph%02d", scene.Index, i+1),
				SceneIndex:  scene.Index,
				Kind:        stagedoc.AssetImage,
				Source:      "placeholder",
				Placeholder: true,
			})
		}
	}
	return out, nil
}

func rank(library []candidate, prompt textutil.Terms, idf map[string]float64, used map[string]struct{}, limit int) []candidate {
	if len(prompt) == 0 {
		return nil
	}
	type scored struct {
		candidate
		score float64
	}
	var hits []scored
	for _, c := range library {
		if _, taken := used[c.path]; taken {
			continue
		}
		score := textutil.Similarity(prompt, c.terms.Weighted(idf))
		if score <= 0 {
			continue
		}
		hits = append(hits, scored{candidate: c, score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.candidate)
	}
	return out
}

func (s LibrarySelector) scan(ctx context.Context) ([]candidate, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return nil, nil
	}
	var out []candidate
	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != s.Dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		kind, ok := kindByExt[strings.ToLower(filepath.Ext(d.Name()))]
		if !ok {
			return nil
		}
		rel, relErr := filepath.Rel(s.Dir, path)
		if relErr != nil {
			rel = d.Name()
		}
		terms := textutil.NewTerms(strings.TrimSuffix(rel, filepath.Ext(rel)))
		if len(terms) == 0 {
			return nil
		}
		out = append(out, candidate{path: path, kind: kind, terms: terms})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrTransient, "media", "scan library", s.Dir, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}

// Adapter is the media stage.
type Adapter struct {
	selector Selector
	libDir   string
	perScene int
	logger   *slog.Logger
}

// New builds the stage. A nil selector uses LibrarySelector over libraryDir;
// perScene defaults the number of visuals requested per scene.
func New(selector Selector, libraryDir string, perScene int, logger *slog.Logger) *Adapter {
	if selector == nil {
		selector = LibrarySelector{Dir: libraryDir}
	}
	return &Adapter{
		selector: selector,
		libDir:   libraryDir,
		perScene: perScene,
		logger:   logging.NewComponentLogger(logger, "media"),
	}
}

func (a *Adapter) Stage() stagedoc.StageType { return stagedoc.StageMedia }

func (a *Adapter) Requires() []stagedoc.StageType {
	return []stagedoc.StageType{stagedoc.StageScene}
}

// HealthCheck reports the library as degraded rather than failing: without
// it every visual is a placeholder.
func (a *Adapter) HealthCheck(context.Context) stage.Health {
	if strings.TrimSpace(a.libDir) == "" {
		return stage.Healthy("media")
	}
	info, err := os.Stat(a.libDir)
	if err != nil {
		return stage.Unhealthy("media", fmt.Sprintf("media library unavailable: %v", err))
	}
	if !info.IsDir() {
		return stage.Unhealthy("media", "media library is not a directory")
	}
	return stage.Healthy("media")
}

// Generate honors options perScene and placeholders.
func (a *Adapter) Generate(ctx context.Context, req stage.Request, upstream stage.Upstream) (stagedoc.Payload, error) {
	script, _ := upstream.Script()
	doc, err := a.selector.Select(ctx, script, Request{
		PerScene:     req.Options.Int("perScene", a.perScene),
		Placeholders: req.Options.Bool("placeholders", true),
	})
	if err != nil {
		return nil, err
	}
	placeholders := 0
	for _, asset := range doc.Assets {
		if asset.Placeholder {
			placeholders++
		}
	}
	if placeholders > 0 {
		a.logger.Warn("media selection used placeholders",
			logging.Int("placeholder_count", placeholders),
			logging.Int("asset_count", len(doc.Assets)),
			logging.Alert("placeholders"),
		)
	}
	return doc, nil
}
