// Package assembly implements the assembly stage, which lays scenes, their
// visuals and narration out on a single timeline and names the output the
// renderer should produce.
package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"framecast/internal/logging"
	"framecast/internal/services"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
)

const defaultFormat = "mp4"

var supportedFormats = map[string]struct{}{
	"mp4":  {},
	"webm": {},
	"mov":  {},
}

// Inputs bundles the upstream documents. Media is nil when the optional
// media stage has not produced a document.
type Inputs struct {
	ProjectID string
	Script    stagedoc.Script
	Audio     stagedoc.Audio
	Media     *stagedoc.Media
	Format    string
}

// Builder produces the assembly plan.
type Builder interface {
	Build(ctx context.Context, in Inputs) (stagedoc.Assembly, error)
}

// TimelineBuilder places scenes back to back. Each scene lasts as long as its
// narration segment, or the scene duration when no segment exists.
type TimelineBuilder struct {
	OutputDir string
}

// Build implements Builder.
func (b TimelineBuilder) Build(ctx context.Context, in Inputs) (stagedoc.Assembly, error) {
	if err := ctx.Err(); err != nil {
		return stagedoc.Assembly{}, err
	}
	segments := make(map[int]stagedoc.AudioSegment, len(in.Audio.Segments))
	for _, seg := range in.Audio.Segments {
		segments[seg.SceneIndex] = seg
	}
	visuals := make(map[int][]string)
	if in.Media != nil {
		for _, asset := range in.Media.Assets {
			if asset.Placeholder {
				continue
			}
			visuals[asset.SceneIndex] = append(visuals[asset.SceneIndex], asset.AssetID)
		}
	}

	out := stagedoc.Assembly{
		OutputURI: "file://" + filepath.ToSlash(filepath.Join(b.OutputDir, in.ProjectID,
			stagedoc.StageAssembly.PhaseDir(), "output."+in.Format)),
		Format: in.Format,
	}
	cursor := 0.0
	for _, scene := range in.Script.Scenes {
		length := scene.DurationSeconds
		entry := stagedoc.TimelineEntry{
			SceneIndex: scene.Index,
			AssetIDs:   visuals[scene.Index],
		}
		if seg, ok := segments[scene.Index]; ok {
			length = seg.DurationSeconds
			entry.AudioURI = seg.URI
		}
		entry.StartSeconds = roundTenth(cursor)
		cursor += length
		entry.EndSeconds = roundTenth(cursor)
		out.Timeline = append(out.Timeline, entry)
	}
	out.DurationSeconds = roundTenth(cursor)
	return out, nil
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// Adapter is the assembly stage.
type Adapter struct {
	builder Builder
	logger  *slog.Logger
}

// New builds the stage. A nil builder writes plans under projectsDir.
func New(builder Builder, projectsDir string, logger *slog.Logger) *Adapter {
	if builder == nil {
		builder = TimelineBuilder{OutputDir: projectsDir}
	}
	return &Adapter{
		builder: builder,
		logger:  logging.NewComponentLogger(logger, "assembly"),
	}
}

func (a *Adapter) Stage() stagedoc.StageType { return stagedoc.StageAssembly }

func (a *Adapter) Requires() []stagedoc.StageType {
	return []stagedoc.StageType{stagedoc.StageScene, stagedoc.StageAudio}
}

// Optional lists media: a run whose media stage failed still assembles.
func (a *Adapter) Optional() []stagedoc.StageType {
	return []stagedoc.StageType{stagedoc.StageMedia}
}

func (a *Adapter) HealthCheck(context.Context) stage.Health { return stage.Healthy("assembly") }

// Generate honors option format.
func (a *Adapter) Generate(ctx context.Context, req stage.Request, upstream stage.Upstream) (stagedoc.Payload, error) {
	format := strings.ToLower(req.Options.String("format", defaultFormat))
	if _, ok := supportedFormats[format]; !ok {
		return nil, services.Wrap(services.ErrValidation, "assembly", "generate",
			fmt.Sprintf("unsupported output format %q", format), nil)
	}
	script, _ := upstream.Script()
	audio, _ := upstream.Audio()
	in := Inputs{
		ProjectID: req.ProjectID,
		Script:    script,
		Audio:     audio,
		Format:    format,
	}
	if media, ok := upstream.Media(); ok {
		in.Media = &media
	} else {
		a.logger.Warn("assembling without media",
			logging.String("reason", "no media context"),
			logging.Alert("missing_media"),
		)
	}
	return a.builder.Build(ctx, in)
}
