package manifest

import (
	"math"
	"sort"

	"framecast/internal/stagedoc"
)

// KPI names.
const (
	KPISceneCount        = "scene_count"
	KPITotalDuration     = "total_duration_seconds"
	KPISceneDurationSum  = "scene_duration_sum_seconds"
	KPIMediaAssetCount   = "media_asset_count"
	KPIPlaceholderCount  = "placeholder_count"
	KPIVisualsPerScene   = "visuals_per_scene"
	// KPICountedPerScene averages only visuals the policy counts, so it
	// drops placeholders when they are not allowed and orphan assets.
	KPICountedPerScene   = "counted_visuals_per_scene"
	KPIMinVisualsInScene = "min_visuals_in_scene"
	KPIAudioSegmentCount = "audio_segment_count"
	KPIAudioSceneParity  = "audio_scene_parity"
	KPIHasMasterAudio    = "has_master_audio"
	KPIAudioDuration     = "audio_duration_seconds"
)

// KPIs maps a metric name to a number, bool, or nil when the metric is
// undefined for the inputs.
type KPIs map[string]any

// SceneDetail holds per-scene counts used to name the offending scene in
// issues.
type SceneDetail struct {
	Index         int     `json:"index"`
	Visuals       int     `json:"visuals"`
	Placeholders  int     `json:"placeholders"`
	AudioSegments int     `json:"audioSegments"`
	Seconds       float64 `json:"seconds"`
}

// Details carries what Evaluate needs beyond the aggregate KPIs.
type Details struct {
	Scenes []SceneDetail `json:"scenes"`
	// OrphanAssetScenes and OrphanAudioScenes list scene indexes referenced
	// by media or audio that the script does not contain.
	OrphanAssetScenes []int `json:"orphanAssetScenes,omitempty"`
	OrphanAudioScenes []int `json:"orphanAudioScenes,omitempty"`
}

// Inputs are the documents a manifest is computed from. Absent documents are
// nil.
type Inputs struct {
	Script *stagedoc.Script
	Media  *stagedoc.Media
	Audio  *stagedoc.Audio
}

// ComputeKPIs derives KPIs and per-scene details. Placeholder assets count
// as visuals only when the policy allows them.
func ComputeKPIs(in Inputs, policy Policy) (KPIs, Details) {
	scenes := map[int]*SceneDetail{}
	var details Details
	kpis := KPIs{}

	sceneSum := 0.0
	if in.Script != nil {
		for _, scene := range in.Script.Scenes {
			if _, dup := scenes[scene.Index]; dup {
				continue
			}
			d := &SceneDetail{Index: scene.Index, Seconds: scene.DurationSeconds}
			scenes[scene.Index] = d
			sceneSum += scene.DurationSeconds
		}
		kpis[KPITotalDuration] = round3(in.Script.TotalDurationSeconds)
	} else {
		kpis[KPITotalDuration] = nil
	}
	kpis[KPISceneCount] = len(scenes)
	kpis[KPISceneDurationSum] = round3(sceneSum)

	assetCount, placeholderCount := 0, 0
	orphanAssets := map[int]struct{}{}
	if in.Media != nil {
		for _, asset := range in.Media.Assets {
			assetCount++
			if asset.Placeholder {
				placeholderCount++
			}
			d, ok := scenes[asset.SceneIndex]
			if !ok {
				orphanAssets[asset.SceneIndex] = struct{}{}
				continue
			}
			if asset.Placeholder {
				d.Placeholders++
			} else {
				d.Visuals++
			}
		}
	}
	kpis[KPIMediaAssetCount] = assetCount
	kpis[KPIPlaceholderCount] = placeholderCount

	segmentCount := 0
	hasMaster := false
	orphanAudio := map[int]struct{}{}
	var audioSeconds any
	if in.Audio != nil {
		for _, seg := range in.Audio.Segments {
			segmentCount++
			d, ok := scenes[seg.SceneIndex]
			if !ok {
				orphanAudio[seg.SceneIndex] = struct{}{}
				continue
			}
			d.AudioSegments++
		}
		if in.Audio.Master != nil {
			hasMaster = true
			audioSeconds = round3(in.Audio.Master.DurationSeconds)
		} else {
			audioSeconds = round3(in.Audio.SegmentDurationSum())
		}
	}
	kpis[KPIAudioSegmentCount] = segmentCount
	kpis[KPIHasMasterAudio] = hasMaster
	kpis[KPIAudioDuration] = audioSeconds

	details.Scenes = make([]SceneDetail, 0, len(scenes))
	for _, d := range scenes {
		details.Scenes = append(details.Scenes, *d)
	}
	sort.Slice(details.Scenes, func(i, j int) bool { return details.Scenes[i].Index < details.Scenes[j].Index })
	details.OrphanAssetScenes = sortedKeys(orphanAssets)
	details.OrphanAudioScenes = sortedKeys(orphanAudio)

	parity := in.Audio != nil && len(orphanAudio) == 0
	totalVisuals := 0
	minVisuals := math.MaxInt
	for _, d := range details.Scenes {
		if d.AudioSegments != 1 {
			parity = false
		}
		counted := countedVisuals(d, policy)
		totalVisuals += counted
		minVisuals = min(minVisuals, counted)
	}
	kpis[KPIAudioSceneParity] = parity && len(details.Scenes) > 0

	if len(details.Scenes) == 0 {
		kpis[KPIVisualsPerScene] = nil
		kpis[KPICountedPerScene] = nil
		kpis[KPIMinVisualsInScene] = nil
	} else {
		kpis[KPIVisualsPerScene] = round3(float64(assetCount) / float64(len(details.Scenes)))
		kpis[KPICountedPerScene] = round3(float64(totalVisuals) / float64(len(details.Scenes)))
		kpis[KPIMinVisualsInScene] = minVisuals
	}
	return kpis, details
}

func countedVisuals(d SceneDetail, policy Policy) int {
	if policy.AllowPlaceholders {
		return d.Visuals + d.Placeholders
	}
	return d.Visuals
}

func sortedKeys(set map[int]struct{}) []int {
	if len(set) == 0 {
		return nil
	}
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func kpiInt(kpis KPIs, name string) (int, bool) {
	switch v := kpis[name].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

func kpiFloat(kpis KPIs, name string) (float64, bool) {
	switch v := kpis[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func kpiBool(kpis KPIs, name string) bool {
	v, _ := kpis[name].(bool)
	return v
}
