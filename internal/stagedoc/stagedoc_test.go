package stagedoc_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"framecast/internal/stagedoc"
)

func TestParseStageType(t *testing.T) {
	tests := []struct {
		input   string
		want    stagedoc.StageType
		wantErr bool
	}{
		{"topic", stagedoc.StageTopic, false},
		{" Scene ", stagedoc.StageScene, false},
		{"AUDIO", stagedoc.StageAudio, false},
		{"manifest", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := stagedoc.ParseStageType(tc.input)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseStageType(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("ParseStageType(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestPhaseDirs(t *testing.T) {
	want := []string{"01-topic", "02-script", "03-media", "04-audio", "05-assembly"}
	for i, stage := range stagedoc.AllStages() {
		if stage.PhaseDir() != want[i] {
			t.Fatalf("%s phase dir = %q, want %q", stage, stage.PhaseDir(), want[i])
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payloads := []stagedoc.Payload{
		stagedoc.Topic{Topic: "tide pools", Keywords: []string{"ocean", "tide"}, TargetDurationSeconds: 60},
		stagedoc.Script{
			Scenes: []stagedoc.Scene{
				{Index: 1, Role: stagedoc.RoleHook, Narration: "Look closer.", DurationSeconds: 5},
				{Index: 2, Role: stagedoc.RoleConclusion, Narration: "Go explore.", DurationSeconds: 10},
			},
			TotalDurationSeconds: 15,
		},
		stagedoc.Media{Assets: []stagedoc.Asset{{AssetID: "a1", SceneIndex: 1, Kind: stagedoc.AssetImage, URI: "file:///a1.png"}}},
		stagedoc.Audio{
			Segments: []stagedoc.AudioSegment{{SceneIndex: 1, URI: "file:///s1.wav", DurationSeconds: 5}},
			Master:   &stagedoc.MasterTrack{URI: "file:///master.wav", DurationSeconds: 5},
		},
		stagedoc.Assembly{
			OutputURI:       "file:///out.mp4",
			DurationSeconds: 5,
			Timeline:        []stagedoc.TimelineEntry{{SceneIndex: 1, StartSeconds: 0, EndSeconds: 5}},
		},
	}
	for _, payload := range payloads {
		data, err := stagedoc.Encode(payload)
		if err != nil {
			t.Fatalf("Encode %s: %v", payload.StageType(), err)
		}
		decoded, err := stagedoc.Decode(payload.StageType(), stagedoc.CurrentSchemaVersion, data)
		if err != nil {
			t.Fatalf("Decode %s: %v", payload.StageType(), err)
		}
		if !reflect.DeepEqual(decoded, payload) {
			t.Fatalf("%s round trip mismatch:\n got %#v\nwant %#v", payload.StageType(), decoded, payload)
		}
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	_, err := stagedoc.Decode(stagedoc.StageTopic, "2", []byte(`{"topic":"x"}`))
	if !errors.Is(err, stagedoc.ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	if _, err := stagedoc.DecodeJSON(stagedoc.StageTopic, []byte(`{"topic":"x","mood":"calm"}`)); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestSummaryCountsPlaceholders(t *testing.T) {
	summary := stagedoc.Summary(stagedoc.Media{Assets: []stagedoc.Asset{
		{AssetID: "a", Placeholder: true},
		{AssetID: "b"},
	}})
	if summary["assetCount"] != 2 || summary["placeholderCount"] != 1 {
		t.Fatalf("unexpected summary %v", summary)
	}
}

func TestDocumentJSONRestoresTypedPayload(t *testing.T) {
	doc := stagedoc.Document{
		ProjectID:     "p1",
		StageType:     stagedoc.StageMedia,
		Payload:       stagedoc.Media{Assets: []stagedoc.Asset{{AssetID: "a1", SceneIndex: 1, Kind: stagedoc.AssetImage, URI: "file:///a.png"}}},
		StorageTier:   stagedoc.TierInline,
		SchemaVersion: stagedoc.CurrentSchemaVersion,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	var got stagedoc.Document
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	media, ok := got.Payload.(stagedoc.Media)
	if !ok {
		t.Fatalf("payload type %T", got.Payload)
	}
	if !reflect.DeepEqual(media, doc.Payload) || got.ProjectID != "p1" || got.StorageTier != stagedoc.TierInline {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
