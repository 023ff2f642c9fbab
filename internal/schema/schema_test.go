package schema_test

import (
	"errors"
	"testing"

	"framecast/internal/schema"
	"framecast/internal/services"
	"framecast/internal/stagedoc"
)

func validScript() stagedoc.Script {
	return stagedoc.Script{
		Scenes: []stagedoc.Scene{
			{Index: 1, Role: stagedoc.RoleHook, Narration: "Ever wondered?", DurationSeconds: 6},
			{Index: 2, Role: stagedoc.RoleBody, Narration: "Here is why.", DurationSeconds: 30},
			{Index: 3, Role: stagedoc.RoleConclusion, Narration: "Now you know.", DurationSeconds: 10},
		},
		TotalDurationSeconds: 46,
	}
}

func rules(v schema.Violations) map[string]int {
	out := map[string]int{}
	for _, item := range v {
		out[item.Rule]++
	}
	return out
}

func TestValidPayloadsPass(t *testing.T) {
	reg := schema.NewRegistry(schema.DefaultLimits())
	payloads := []stagedoc.Payload{
		stagedoc.Topic{Topic: "coral reefs", Keywords: []string{"reef", "ocean"}, TargetDurationSeconds: 60},
		validScript(),
		stagedoc.Media{Assets: []stagedoc.Asset{
			{AssetID: "a1", SceneIndex: 1, Kind: stagedoc.AssetImage, URI: "file:///a1.png"},
			{AssetID: "a2", SceneIndex: 1, Kind: stagedoc.AssetVideo, Placeholder: true},
		}},
		stagedoc.Audio{
			Segments: []stagedoc.AudioSegment{{SceneIndex: 1, URI: "file:///1.wav", DurationSeconds: 6}},
			Master:   &stagedoc.MasterTrack{URI: "file:///m.wav", DurationSeconds: 6},
		},
		stagedoc.Assembly{
			OutputURI:       "file:///out.mp4",
			DurationSeconds: 16,
			Timeline: []stagedoc.TimelineEntry{
				{SceneIndex: 1, StartSeconds: 0, EndSeconds: 6},
				{SceneIndex: 2, StartSeconds: 6, EndSeconds: 16},
			},
		},
	}
	for _, payload := range payloads {
		if err := reg.Validate(payload, stagedoc.CurrentSchemaVersion); err != nil {
			t.Fatalf("%s: unexpected error %v", payload.StageType(), err)
		}
	}
}

func TestValidateWrapsViolations(t *testing.T) {
	reg := schema.NewRegistry(schema.DefaultLimits())
	err := reg.Validate(stagedoc.Topic{}, stagedoc.CurrentSchemaVersion)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	violations, ok := schema.AsViolations(err)
	if !ok || len(violations) != 1 || violations[0].Field != "topic" {
		t.Fatalf("unexpected violations %v", violations)
	}
}

func TestScriptViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*stagedoc.Script)
		rule   string
	}{
		{"no scenes", func(s *stagedoc.Script) { s.Scenes = nil; s.TotalDurationSeconds = 0 }, schema.RuleRequired},
		{"total mismatch", func(s *stagedoc.Script) { s.TotalDurationSeconds = 50 }, schema.RuleDurationSum},
		{"hook too long", func(s *stagedoc.Script) {
			s.Scenes[0].DurationSeconds = 20
			s.TotalDurationSeconds = 60
		}, schema.RuleHookWindow},
		{"conclusion too short", func(s *stagedoc.Script) {
			s.Scenes[2].DurationSeconds = 2
			s.TotalDurationSeconds = 38
		}, schema.RuleConclusionWin},
		{"index gap", func(s *stagedoc.Script) { s.Scenes[1].Index = 5 }, schema.RuleSequence},
		{"unknown role", func(s *stagedoc.Script) { s.Scenes[1].Role = "outro" }, schema.RuleEnum},
		{"hook not first", func(s *stagedoc.Script) {
			s.Scenes[1].Role = stagedoc.RoleHook
			s.Scenes[1].DurationSeconds = 10
			s.TotalDurationSeconds = 26
		}, schema.RuleRoleOrder},
		{"missing narration", func(s *stagedoc.Script) { s.Scenes[1].Narration = " " }, schema.RuleRequired},
		{"zero duration", func(s *stagedoc.Script) {
			s.Scenes[1].DurationSeconds = 0
			s.TotalDurationSeconds = 16
		}, schema.RuleRange},
	}
	reg := schema.NewRegistry(schema.DefaultLimits())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			script := validScript()
			script.Scenes = append([]stagedoc.Scene(nil), script.Scenes...)
			tc.mutate(&script)
			got := reg.Check(script, stagedoc.CurrentSchemaVersion)
			if rules(got)[tc.rule] == 0 {
				t.Fatalf("expected rule %q, got %v", tc.rule, got)
			}
		})
	}
}

func TestDurationToleranceBoundary(t *testing.T) {
	reg := schema.NewRegistry(schema.DefaultLimits())
	script := validScript()
	script.TotalDurationSeconds = 46.5
	if got := reg.Check(script, stagedoc.CurrentSchemaVersion); len(got) != 0 {
		t.Fatalf("difference equal to tolerance should pass, got %v", got)
	}
	script.TotalDurationSeconds = 46.75
	if got := reg.Check(script, stagedoc.CurrentSchemaVersion); rules(got)[schema.RuleDurationSum] != 1 {
		t.Fatalf("expected duration_sum violation, got %v", got)
	}
}

func TestViolationsAreCollectedNotShortCircuited(t *testing.T) {
	reg := schema.NewRegistry(schema.DefaultLimits())
	media := stagedoc.Media{Assets: []stagedoc.Asset{
		{AssetID: "dup", SceneIndex: 0, Kind: "gif"},
		{AssetID: "dup", SceneIndex: 1, Kind: stagedoc.AssetImage, URI: "file:///x"},
	}}
	got := rules(reg.Check(media, stagedoc.CurrentSchemaVersion))
	for _, rule := range []string{schema.RuleRange, schema.RuleEnum, schema.RuleRequired, schema.RuleUnique} {
		if got[rule] != 1 {
			t.Fatalf("expected one %q violation, got %v", rule, got)
		}
	}
}

func TestAudioAndAssemblyViolations(t *testing.T) {
	reg := schema.NewRegistry(schema.DefaultLimits())
	audio := stagedoc.Audio{
		Segments: []stagedoc.AudioSegment{
			{SceneIndex: 1, URI: "a", DurationSeconds: 1},
			{SceneIndex: 1, URI: "", DurationSeconds: 0},
		},
		Master: &stagedoc.MasterTrack{URI: "m"},
	}
	got := rules(reg.Check(audio, stagedoc.CurrentSchemaVersion))
	if got[schema.RuleUnique] != 1 || got[schema.RuleRequired] != 1 || got[schema.RuleRange] != 2 {
		t.Fatalf("unexpected audio violations %v", got)
	}

	assembly := stagedoc.Assembly{
		OutputURI:       "out.mp4",
		DurationSeconds: 10,
		Timeline: []stagedoc.TimelineEntry{
			{SceneIndex: 1, StartSeconds: 0, EndSeconds: 6},
			{SceneIndex: 2, StartSeconds: 5, EndSeconds: 4},
		},
	}
	got = rules(reg.Check(assembly, stagedoc.CurrentSchemaVersion))
	if got[schema.RuleTimelineOrder] != 2 {
		t.Fatalf("expected two timeline violations, got %v", got)
	}
}

func TestUnsupportedSchemaVersion(t *testing.T) {
	reg := schema.NewRegistry(schema.DefaultLimits())
	got := reg.Check(stagedoc.Topic{Topic: "x"}, "0")
	if len(got) != 1 || got[0].Rule != schema.RuleSchemaVersion {
		t.Fatalf("expected schema_version violation, got %v", got)
	}
}
