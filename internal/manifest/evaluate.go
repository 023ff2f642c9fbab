package manifest

import (
	"fmt"
	"math"
	"sort"
)

// Evaluate checks kpis and details against policy and returns one issue per
// violated threshold. It is pure: the same inputs always yield the same
// issues in the same order, regardless of the order of details.Scenes.
func Evaluate(kpis KPIs, details Details, policy Policy) []string {
	issues := []string{}

	scenes := append([]SceneDetail(nil), details.Scenes...)
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Index < scenes[j].Index })

	sceneCount, _ := kpiInt(kpis, KPISceneCount)
	if sceneCount == 0 || len(scenes) == 0 {
		issues = append(issues, "script has no scenes, at least 1 required")
	}

	if policy.MinVisualsPerScene > 0 {
		for _, scene := range scenes {
			counted := countedVisuals(scene, policy)
			if counted >= policy.MinVisualsPerScene {
				continue
			}
			issues = append(issues, visualsIssue(scene, counted, policy))
		}
	}
	for _, index := range sortedCopy(details.OrphanAssetScenes) {
		issues = append(issues, fmt.Sprintf("media references scene %d, which is not in the script", index))
	}

	if policy.RequireAudioParity {
		for _, scene := range scenes {
			switch {
			case scene.AudioSegments == 0:
				issues = append(issues, fmt.Sprintf("scene %d has no narration segment", scene.Index))
			case scene.AudioSegments > 1:
				issues = append(issues, fmt.Sprintf("scene %d has %d narration segments, expected 1",
					scene.Index, scene.AudioSegments))
			}
		}
		for _, index := range sortedCopy(details.OrphanAudioScenes) {
			issues = append(issues, fmt.Sprintf("narration references scene %d, which is not in the script", index))
		}
	}

	if policy.RequireMasterAudio && !kpiBool(kpis, KPIHasMasterAudio) {
		issues = append(issues, "master audio track missing")
	}

	if policy.MaxAudioDriftSeconds > 0 {
		audio, hasAudio := kpiFloat(kpis, KPIAudioDuration)
		sceneSum, hasScenes := kpiFloat(kpis, KPISceneDurationSum)
		if hasAudio && hasScenes && sceneCount > 0 {
			drift := math.Abs(audio - sceneSum)
			if drift > policy.MaxAudioDriftSeconds+1e-9 {
				issues = append(issues, fmt.Sprintf(
					"audio runs %.1fs against %.1fs of scenes, drift %.1fs exceeds %.1fs",
					audio, sceneSum, drift, policy.MaxAudioDriftSeconds))
			}
		}
	}
	return issues
}

func visualsIssue(scene SceneDetail, counted int, policy Policy) string {
	var have string
	switch counted {
	case 0:
		have = "no visuals"
	case 1:
		have = "only 1 visual"
	default:
		have = fmt.Sprintf("only %d visuals", counted)
	}
	msg := fmt.Sprintf("scene %d has %s, minimum %d required", scene.Index, have, policy.MinVisualsPerScene)
	if scene.Placeholders > 0 && !policy.AllowPlaceholders {
		msg += fmt.Sprintf(" (%d placeholder(s) not counted)", scene.Placeholders)
	}
	return msg
}

func sortedCopy(values []int) []int {
	out := append([]int(nil), values...)
	sort.Ints(out)
	return out
}
