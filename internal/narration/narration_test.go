package narration_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"framecast/internal/narration"
	"framecast/internal/services"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
	"framecast/internal/stagedoc/stagedoctest"
)

func upstreamFor(script stagedoc.Script) stage.Upstream {
	return stage.NewUpstream(stagedoc.Document{StageType: stagedoc.StageScene, Payload: script})
}

func TestSpokenSeconds(t *testing.T) {
	tests := []struct {
		text string
		wpm  int
		want float64
	}{
		{"", 150, 0},
		{"one two three", 60, 3},
		{strings.Repeat("word ", 150), 150, 60},
		{"one two", 0, 0.8},
	}
	for _, tt := range tests {
		if got := narration.SpokenSeconds(tt.text, tt.wpm); got != tt.want {
			t.Fatalf("SpokenSeconds(%q, %d) = %v, want %v", tt.text, tt.wpm, got, tt.want)
		}
	}
}

func TestGeneratePacesSegmentsToScenes(t *testing.T) {
	script := stagedoctest.Script(3)
	adapter := narration.New(nil, "/data/projects", "narrator-neutral", 150, nil)

	payload, err := adapter.Generate(context.Background(), stage.Request{ProjectID: "p1"}, upstreamFor(script))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	audio := payload.(stagedoc.Audio)
	if len(audio.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(audio.Segments))
	}
	for i, seg := range audio.Segments {
		if seg.SceneIndex != i+1 || seg.DurationSeconds != script.Scenes[i].DurationSeconds {
			t.Fatalf("segment %d = %+v", i, seg)
		}
		if seg.Voice != "narrator-neutral" {
			t.Fatalf("segment voice = %q", seg.Voice)
		}
	}
	if audio.Segments[0].URI != "file:///data/projects/p1/04-audio/scene-01.wav" {
		t.Fatalf("unexpected segment uri %q", audio.Segments[0].URI)
	}
	if audio.Master == nil || audio.Master.DurationSeconds != script.TotalDurationSeconds {
		t.Fatalf("unexpected master %+v", audio.Master)
	}
}

func TestGenerateExtendsOverrunningNarration(t *testing.T) {
	long := strings.Repeat("word ", 50)
	script := stagedoctest.ScriptWithNarration(2, func(i int) string {
		if i == 1 {
			return long
		}
		return "short"
	})
	adapter := narration.New(nil, t.TempDir(), "narrator-neutral", 150, nil)

	payload, err := adapter.Generate(context.Background(), stage.Request{ProjectID: "p1"}, upstreamFor(script))
	if err != nil {
		t.Fatal(err)
	}
	audio := payload.(stagedoc.Audio)
	if got := audio.Segments[0].DurationSeconds; got != 20 {
		t.Fatalf("expected hook segment stretched to 20s, got %v", got)
	}
	if got := audio.Segments[1].DurationSeconds; got != 10 {
		t.Fatalf("expected conclusion segment at 10s, got %v", got)
	}
}

func TestGenerateOptions(t *testing.T) {
	script := stagedoctest.Script(2)
	adapter := narration.New(nil, t.TempDir(), "narrator-neutral", 150, nil)

	payload, err := adapter.Generate(context.Background(), stage.Request{
		ProjectID: "p1",
		Options:   stage.Options{"voice": "narrator-warm", "master": false},
	}, upstreamFor(script))
	if err != nil {
		t.Fatal(err)
	}
	audio := payload.(stagedoc.Audio)
	if audio.Voice != "narrator-warm" || audio.Master != nil {
		t.Fatalf("options not honored: %+v", audio)
	}

	_, err = adapter.Generate(context.Background(), stage.Request{
		ProjectID: "p1",
		Options:   stage.Options{"wordsPerMinute": -5},
	}, upstreamFor(script))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
