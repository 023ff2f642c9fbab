// Package stagedoctest builds valid stage payloads for tests.
package stagedoctest

import (
	"fmt"

	"framecast/internal/stagedoc"
)

// Topic returns a valid topic payload.
func Topic(topic string) stagedoc.Topic {
	return stagedoc.Topic{
		Topic:                 topic,
		Title:                 "About " + topic,
		Language:              "en",
		Keywords:              []string{"nature", "science"},
		TargetDurationSeconds: 60,
	}
}

// Script returns a valid script with n scenes: a 5s hook, 10s body scenes,
// and a 10s conclusion. A single scene is a body scene.
func Script(n int) stagedoc.Script {
	return ScriptWithNarration(n, func(i int) string { return fmt.Sprintf("Narration for scene %d.", i) })
}

// ScriptWithNarration is Script with caller-supplied narration text.
func ScriptWithNarration(n int, narration func(index int) string) stagedoc.Script {
	script := stagedoc.Script{Scenes: make([]stagedoc.Scene, 0, n)}
	for i := 1; i <= n; i++ {
		scene := stagedoc.Scene{
			Index:           i,
			Role:            stagedoc.RoleBody,
			Narration:       narration(i),
			VisualPrompt:    fmt.Sprintf("visual for scene %d", i),
			DurationSeconds: 10,
		}
		if n > 1 && i == 1 {
			scene.Role = stagedoc.RoleHook
			scene.DurationSeconds = 5
		}
		if n > 1 && i == n {
			scene.Role = stagedoc.RoleConclusion
		}
		script.Scenes = append(script.Scenes, scene)
		script.TotalDurationSeconds += scene.DurationSeconds
	}
	return script
}

// Media returns perScene[i] assets for scene i+1.
func Media(perScene ...int) stagedoc.Media {
	var media stagedoc.Media
	for i, count := range perScene {
		for j := 1; j <= count; j++ {
			media.Assets = append(media.Assets, stagedoc.Asset{
				AssetID:    fmt.Sprintf("s%02d-a%02d", i+1, j),
				SceneIndex: i + 1,
				Kind:       stagedoc.AssetImage,
				URI:        fmt.Sprintf("file:///library/s%02d-a%02d.png", i+1, j),
				Source:     "library",
			})
		}
	}
	return media
}

// Audio returns one segment per scene of script plus a master track.
func Audio(script stagedoc.Script) stagedoc.Audio {
	audio := stagedoc.Audio{Voice: "narrator-neutral"}
	for _, scene := range script.Scenes {
		audio.Segments = append(audio.Segments, stagedoc.AudioSegment{
			SceneIndex:      scene.Index,
			URI:             fmt.Sprintf("file:///audio/scene-%02d.wav", scene.Index),
			Voice:           "narrator-neutral",
			DurationSeconds: scene.DurationSeconds,
		})
	}
	audio.Master = &stagedoc.MasterTrack{
		URI:             "file:///audio/master.wav",
		DurationSeconds: audio.SegmentDurationSum(),
	}
	return audio
}
