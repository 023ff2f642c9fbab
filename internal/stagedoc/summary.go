package stagedoc

// Summary returns the small set of counters reported after a stage
// generates its document.
func Summary(p Payload) map[string]any {
	switch v := p.(type) {
	case Topic:
		return map[string]any{
			"topic":                 v.Topic,
			"keywordCount":          len(v.Keywords),
			"targetDurationSeconds": v.TargetDurationSeconds,
		}
	case Script:
		return map[string]any{
			"sceneCount":           len(v.Scenes),
			"totalDurationSeconds": v.TotalDurationSeconds,
		}
	case Media:
		placeholders := 0
		for _, asset := range v.Assets {
			if asset.Placeholder {
				placeholders++
			}
		}
		return map[string]any{
			"assetCount":       len(v.Assets),
			"placeholderCount": placeholders,
		}
	case Audio:
		return map[string]any{
			"segmentCount":    len(v.Segments),
			"hasMaster":       v.Master != nil,
			"durationSeconds": v.SegmentDurationSum(),
		}
	case Assembly:
		return map[string]any{
			"outputUri":       v.OutputURI,
			"timelineEntries": len(v.Timeline),
			"durationSeconds": v.DurationSeconds,
		}
	default:
		return map[string]any{}
	}
}
