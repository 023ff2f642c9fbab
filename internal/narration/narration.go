// Package narration implements the audio stage. The local synthesizer paces
// each scene's narration from a words-per-minute estimate and plans the
// segment and master track locations; a text-to-speech service can replace it
// behind the Synthesizer interface.
package narration

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

const defaultWordsPerMinute = 150

// Request parameterizes a synthesis run.
type Request struct {
	ProjectID      string
	Voice          string
	WordsPerMinute int
	Master         bool
}

// Synthesizer turns a script into narration audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, script stagedoc.Script, req Request) (stagedoc.Audio, error)
}

// PacedSynthesizer plans one segment per scene under
// <Dir>/<project>/04-audio. A segment lasts as long as its scene unless the
// spoken estimate runs longer.
type PacedSynthesizer struct {
	Dir string
}

// Synthesize implements Synthesizer.
func (p PacedSynthesizer) Synthesize(ctx context.Context, script stagedoc.Script, req Request) (stagedoc.Audio, error) {
	if err := ctx.Err(); err != nil {
		return stagedoc.Audio{}, err
	}
	wpm := req.WordsPerMinute
	if wpm <= 0 {
		wpm = defaultWordsPerMinute
	}
	audioDir := filepath.Join(p.Dir, req.ProjectID, stagedoc.StageAudio.PhaseDir())

	audio := stagedoc.Audio{Voice: req.Voice}
	for _, scene := range script.Scenes {
		duration := math.Max(scene.DurationSeconds, SpokenSeconds(scene.Narration, wpm))
		audio.Segments = append(audio.Segments, stagedoc.AudioSegment{
			SceneIndex:      scene.Index,
			URI:             fileURI(filepath.Join(audioDir, fmt.Sprintf("scene-%02d.wav", scene.Index))),
			Voice:           req.Voice,
			DurationSeconds: roundTenth(duration),
		})
	}
	if req.Master && len(audio.Segments) > 0 {
		audio.Master = &stagedoc.MasterTrack{
			URI:             fileURI(filepath.Join(audioDir, "master.wav")),
			DurationSeconds: roundTenth(audio.SegmentDurationSum()),
		}
	}
	return audio, nil
}

// SpokenSeconds estimates how long text takes to read at wpm.
func SpokenSeconds(text string, wpm int) float64 {
	if wpm <= 0 {
		wpm = defaultWordsPerMinute
	}
	words := len(strings.Fields(text))
	return float64(words) * 60 / float64(wpm)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func fileURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}

// Adapter is the narration stage.
type Adapter struct {
	synth  Synthesizer
	voice  string
	wpm    int
	logger *slog.Logger
}

// New builds the stage with a default voice and speaking rate. A nil
// synthesizer plans audio under projectsDir.
func New(synth Synthesizer, projectsDir, voice string, wordsPerMinute int, logger *slog.Logger) *Adapter {
	if synth == nil {
		synth = PacedSynthesizer{Dir: projectsDir}
	}
	if wordsPerMinute <= 0 {
		wordsPerMinute = defaultWordsPerMinute
	}
	return &Adapter{
		synth:  synth,
		voice:  voice,
		wpm:    wordsPerMinute,
		logger: logging.NewComponentLogger(logger, "narration"),
	}
}

func (a *Adapter) Stage() stagedoc.StageType { return stagedoc.StageAudio }

func (a *Adapter) Requires() []stagedoc.StageType {
	return []stagedoc.StageType{stagedoc.StageScene}
}

func (a *Adapter) HealthCheck(context.Context) stage.Health { return stage.Healthy("audio") }

// Generate honors options voice, wordsPerMinute and master.
func (a *Adapter) Generate(ctx context.Context, req stage.Request, upstream stage.Upstream) (stagedoc.Payload, error) {
	script, _ := upstream.Script()
	voice := strings.TrimSpace(req.Options.String("voice", a.voice))
	if voice == "" {
		return nil, services.Wrap(services.ErrValidation, "audio", "generate", "voice is required", nil)
	}
	wpm := req.Options.Int("wordsPerMinute", a.wpm)
	if wpm <= 0 {
		return nil, services.Wrap(services.ErrValidation, "audio", "generate",
			fmt.Sprintf("wordsPerMinute must be positive, got %d", wpm), nil)
	}

	audio, err := a.synth.Synthesize(ctx, script, Request{
		ProjectID:      req.ProjectID,
		Voice:          voice,
		WordsPerMinute: wpm,
		Master:         req.Options.Bool("master", true),
	})
	if err != nil {
		return nil, err
	}

	for _, scene := range script.Scenes {
		spoken := SpokenSeconds(scene.Narration, wpm)
		if spoken > scene.DurationSeconds {
			a.logger.Warn("narration overruns scene",
				logging.Int("scene_index", scene.Index),
				logging.Float64("spoken_seconds", roundTenth(spoken)),
				logging.Float64("scene_seconds", scene.DurationSeconds),
			)
		}
	}
	return audio, nil
}
