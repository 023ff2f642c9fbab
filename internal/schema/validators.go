package schema

import (
	"fmt"
	"math"
	"strings"

	"framecast/internal/stagedoc"
)

func validateTopic(payload stagedoc.Payload, limits Limits) Violations {
	doc := payload.(stagedoc.Topic)
	var c collector
	c.requireText("topic", doc.Topic)

	seen := make(map[string]struct{}, len(doc.Keywords))
	for i, keyword := range doc.Keywords {
		field := fmt.Sprintf("keywords[%d]", i)
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized == "" {
			c.add(RuleRequired, field, "keyword must not be blank")
			continue
		}
		if _, dup := seen[normalized]; dup {
			c.add(RuleUnique, field, "duplicate keyword %q", keyword)
			continue
		}
		seen[normalized] = struct{}{}
	}

	if d := doc.TargetDurationSeconds; d != 0 && (d < limits.MinTargetDuration || d > limits.MaxTargetDuration) {
		c.add(RuleRange, "targetDurationSeconds", "%.1fs outside [%.0fs, %.0fs]", d, limits.MinTargetDuration, limits.MaxTargetDuration)
	}
	return c.items
}

func validateScript(payload stagedoc.Payload, limits Limits) Violations {
	doc := payload.(stagedoc.Script)
	var c collector
	if len(doc.Scenes) == 0 {
		c.add(RuleRequired, "scenes", "at least one scene is required")
		return c.items
	}

	last := len(doc.Scenes) - 1
	for i, scene := range doc.Scenes {
		field := fmt.Sprintf("scenes[%d]", i)
		if scene.Index != i+1 {
			c.add(RuleSequence, field+".index", "expected index %d, got %d", i+1, scene.Index)
		}
		if !scene.Role.Valid() {
			c.add(RuleEnum, field+".role", "unknown role %q", scene.Role)
		}
		c.requireText(field+".narration", scene.Narration)
		if scene.DurationSeconds <= 0 {
			c.add(RuleRange, field+".durationSeconds", "must be positive")
			continue
		}
		switch scene.Role {
		case stagedoc.RoleHook:
			if i != 0 {
				c.add(RuleRoleOrder, field+".role", "hook must be the first scene")
			}
			if scene.DurationSeconds < limits.HookMin || scene.DurationSeconds > limits.HookMax {
				c.add(RuleHookWindow, field+".durationSeconds", "hook lasts %.1fs, expected %.0f-%.0fs",
					scene.DurationSeconds, limits.HookMin, limits.HookMax)
			}
		case stagedoc.RoleConclusion:
			if i != last {
				c.add(RuleRoleOrder, field+".role", "conclusion must be the last scene")
			}
			if scene.DurationSeconds < limits.ConclusionMin || scene.DurationSeconds > limits.ConclusionMax {
				c.add(RuleConclusionWin, field+".durationSeconds", "conclusion lasts %.1fs, expected %.0f-%.0fs",
					scene.DurationSeconds, limits.ConclusionMin, limits.ConclusionMax)
			}
		}
	}

	sum := doc.SceneDurationSum()
	if math.Abs(doc.TotalDurationSeconds-sum) > limits.DurationTolerance {
		c.add(RuleDurationSum, "totalDurationSeconds", "declared %.2fs but scenes sum to %.2fs (tolerance %.2fs)",
			doc.TotalDurationSeconds, sum, limits.DurationTolerance)
	}
	return c.items
}

func validateMedia(payload stagedoc.Payload, _ Limits) Violations {
	doc := payload.(stagedoc.Media)
	var c collector
	seen := make(map[string]struct{}, len(doc.Assets))
	for i, asset := range doc.Assets {
		field := fmt.Sprintf("assets[%d]", i)
		id := strings.TrimSpace(asset.AssetID)
		if id == "" {
			c.add(RuleRequired, field+".assetId", "is required")
		} else if _, dup := seen[id]; dup {
			c.add(RuleUnique, field+".assetId", "duplicate asset id %q", id)
		} else {
			seen[id] = struct{}{}
		}
		if asset.SceneIndex < 1 {
			c.add(RuleRange, field+".sceneIndex", "must be at least 1")
		}
		if !asset.Kind.Valid() {
			c.add(RuleEnum, field+".kind", "unknown kind %q", asset.Kind)
		}
		if !asset.Placeholder {
			c.requireText(field+".uri", asset.URI)
		}
	}
	return c.items
}

func validateAudio(payload stagedoc.Payload, _ Limits) Violations {
	doc := payload.(stagedoc.Audio)
	var c collector
	seen := make(map[int]struct{}, len(doc.Segments))
	for i, seg := range doc.Segments {
		field := fmt.Sprintf("segments[%d]", i)
		if seg.SceneIndex < 1 {
			c.add(RuleRange, field+".sceneIndex", "must be at least 1")
		} else if _, dup := seen[seg.SceneIndex]; dup {
			c.add(RuleUnique, field+".sceneIndex", "scene %d already has a segment", seg.SceneIndex)
		} else {
			seen[seg.SceneIndex] = struct{}{}
		}
		c.requireText(field+".uri", seg.URI)
		if seg.DurationSeconds <= 0 {
			c.add(RuleRange, field+".durationSeconds", "must be positive")
		}
	}
	if doc.Master != nil {
		c.requireText("master.uri", doc.Master.URI)
		if doc.Master.DurationSeconds <= 0 {
			c.add(RuleRange, "master.durationSeconds", "must be positive")
		}
	}
	return c.items
}

func validateAssembly(payload stagedoc.Payload, _ Limits) Violations {
	doc := payload.(stagedoc.Assembly)
	var c collector
	c.requireText("outputUri", doc.OutputURI)
	if doc.DurationSeconds <= 0 {
		c.add(RuleRange, "durationSeconds", "must be positive")
	}
	prevEnd := 0.0
	for i, entry := range doc.Timeline {
		field := fmt.Sprintf("timeline[%d]", i)
		if entry.SceneIndex < 1 {
			c.add(RuleRange, field+".sceneIndex", "must be at least 1")
		}
		if entry.EndSeconds <= entry.StartSeconds {
			c.add(RuleTimelineOrder, field, "end %.2fs must be after start %.2fs", entry.EndSeconds, entry.StartSeconds)
		}
		if i > 0 && entry.StartSeconds < prevEnd {
			c.add(RuleTimelineOrder, field+".startSeconds", "starts at %.2fs before previous entry ends at %.2fs",
				entry.StartSeconds, prevEnd)
		}
		prevEnd = entry.EndSeconds
	}
	return c.items
}
