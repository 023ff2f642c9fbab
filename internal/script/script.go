// Package script implements the scene stage. It reads the topic document
// and lays out a hook, body scenes, and a conclusion whose durations fit the
// configured windows and add up to the script total.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"framecast/internal/logging"
	"framecast/internal/schema"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
)

const (
	secondsPerBodyScene = 20
	maxBodyScenes       = 12
)

// Plan constrains the outline.
type Plan struct {
	TargetDurationSeconds float64
	BodyScenes            int
}

// Writer produces a script for a topic. A text-model backed writer can
// replace the local OutlineWriter.
type Writer interface {
	Write(ctx context.Context, topic stagedoc.Topic, plan Plan) (stagedoc.Script, error)
}

// OutlineWriter builds a templated script sized to the schema windows.
type OutlineWriter struct {
	Limits schema.Limits
}

// Write splits the target duration into hook, body, and conclusion scenes.
func (w OutlineWriter) Write(_ context.Context, topic stagedoc.Topic, plan Plan) (stagedoc.Script, error) {
	target := plan.TargetDurationSeconds
	if target <= 0 {
		target = topic.TargetDurationSeconds
	}
	hook := clamp(math.Round(target*0.1), w.Limits.HookMin, w.Limits.HookMax)
	conclusion := clamp(math.Round(target*0.15), w.Limits.ConclusionMin, w.Limits.ConclusionMax)
	bodyTotal := target - hook - conclusion
	if bodyTotal < 1 {
		bodyTotal = 1
	}

	bodies := plan.BodyScenes
	if bodies <= 0 {
		bodies = int(math.Round(bodyTotal / secondsPerBodyScene))
	}
	bodies = max(1, min(bodies, maxBodyScenes))
	perBody := math.Floor(bodyTotal/float64(bodies)*10) / 10
	if perBody < 1 {
		// Body scenes are at least a second long.
		bodies = max(1, int(math.Floor(bodyTotal)))
		perBody = math.Floor(bodyTotal/float64(bodies)*10) / 10
	}

	subject := displaySubject(topic)
	keywords := topic.Keywords
	if len(keywords) == 0 {
		keywords = []string{subject}
	}

	scenes := make([]stagedoc.Scene, 0, bodies+2)
	scenes = append(scenes, stagedoc.Scene{
		Role:            stagedoc.RoleHook,
		Narration:       fmt.Sprintf("What do you really know about %s?", subject),
		VisualPrompt:    fmt.Sprintf("striking opening shot of %s", subject),
		DurationSeconds: hook,
	})
	for i := 0; i < bodies; i++ {
		keyword := keywords[i%len(keywords)]
		duration := perBody
		if i == bodies-1 {
			// The last body scene absorbs rounding so the total stays exact.
			duration = math.Round((bodyTotal-perBody*float64(bodies-1))*10) / 10
		}
		scenes = append(scenes, stagedoc.Scene{
			Role:            stagedoc.RoleBody,
			Narration:       fmt.Sprintf("Part %d: how %s shapes %s.", i+1, keyword, subject),
			VisualPrompt:    fmt.Sprintf("%s %s", keyword, subject),
			DurationSeconds: duration,
		})
	}
	scenes = append(scenes, stagedoc.Scene{
		Role:            stagedoc.RoleConclusion,
		Narration:       fmt.Sprintf("Now you know a little more about %s. Keep exploring.", subject),
		VisualPrompt:    fmt.Sprintf("calm closing shot of %s", subject),
		DurationSeconds: conclusion,
	})

	out := stagedoc.Script{Scenes: scenes}
	for i := range out.Scenes {
		out.Scenes[i].Index = i + 1
		out.TotalDurationSeconds += out.Scenes[i].DurationSeconds
	}
	out.TotalDurationSeconds = math.Round(out.TotalDurationSeconds*10) / 10
	return out, nil
}

func displaySubject(topic stagedoc.Topic) string {
	if s := strings.TrimSpace(topic.Topic); s != "" {
		return s
	}
	return strings.TrimSpace(topic.Title)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

// Adapter is the scene stage.
type Adapter struct {
	writer Writer
	logger *slog.Logger
}

// New builds the stage. A nil writer uses OutlineWriter with limits.
func New(writer Writer, limits schema.Limits, logger *slog.Logger) *Adapter {
	if writer == nil {
		writer = OutlineWriter{Limits: limits}
	}
	return &Adapter{writer: writer, logger: logging.NewComponentLogger(logger, "script")}
}

func (a *Adapter) Stage() stagedoc.StageType { return stagedoc.StageScene }

func (a *Adapter) Requires() []stagedoc.StageType {
	return []stagedoc.StageType{stagedoc.StageTopic}
}

func (a *Adapter) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("scene")
}

// Generate honors options targetDurationSeconds and sceneCount (body scenes).
func (a *Adapter) Generate(ctx context.Context, req stage.Request, upstream stage.Upstream) (stagedoc.Payload, error) {
	topic, _ := upstream.Topic()
	plan := Plan{
		TargetDurationSeconds: req.Options.Float("targetDurationSeconds", topic.TargetDurationSeconds),
		BodyScenes:            req.Options.Int("sceneCount", 0),
	}
	doc, err := a.writer.Write(ctx, topic, plan)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("script outlined",
		logging.Int("scene_count", len(doc.Scenes)),
		logging.Float64("total_duration_seconds", doc.TotalDurationSeconds),
	)
	return doc, nil
}
