package media_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"framecast/internal/media"
	"framecast/internal/schema"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
)

func writeLibrary(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testScript() stagedoc.Script {
	return stagedoc.Script{
		Scenes: []stagedoc.Scene{
			{Index: 1, Role: stagedoc.RoleHook, Narration: "Look.", VisualPrompt: "coral reef underwater", DurationSeconds: 5},
			{Index: 2, Role: stagedoc.RoleBody, Narration: "Look.", VisualPrompt: "volcano lava eruption", DurationSeconds: 10},
			{Index: 3, Role: stagedoc.RoleConclusion, Narration: "Look.", VisualPrompt: "quantum computing", DurationSeconds: 10},
		},
		TotalDurationSeconds: 25,
	}
}

func assetsByScene(doc stagedoc.Media) map[int][]stagedoc.Asset {
	out := map[int][]stagedoc.Asset{}
	for _, a := range doc.Assets {
		out[a.SceneIndex] = append(out[a.SceneIndex], a)
	}
	return out
}

func TestLibrarySelectorRanksByPrompt(t *testing.T) {
	dir := writeLibrary(t,
		"coral-reef-closeup.png",
		"reef-fish.mp4",
		"desert-dunes.jpg",
		"volcano-lava.png",
		".cache/coral-reef.png",
		"notes.txt",
	)
	selector := media.LibrarySelector{Dir: dir}
	doc, err := selector.Select(context.Background(), testScript(), media.Request{PerScene: 2, Placeholders: true})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	byScene := assetsByScene(doc)

	scene1 := byScene[1]
	if len(scene1) != 2 || scene1[0].AssetID != "s01-01-coral-reef-closeup" || scene1[1].Kind != stagedoc.AssetVideo {
		t.Fatalf("unexpected scene 1 assets %+v", scene1)
	}
	scene2 := byScene[2]
	if len(scene2) != 2 || scene2[0].Placeholder || !scene2[1].Placeholder {
		t.Fatalf("expected one match and one placeholder for scene 2, got %+v", scene2)
	}
	scene3 := byScene[3]
	if len(scene3) != 2 || !scene3[0].Placeholder || !scene3[1].Placeholder {
		t.Fatalf("expected placeholders for scene 3, got %+v", scene3)
	}

	registry := schema.NewRegistry(schema.DefaultLimits())
	if v := registry.Check(doc, stagedoc.CurrentSchemaVersion); len(v) != 0 {
		t.Fatalf("selection violates schema: %v", v)
	}
}

func TestLibrarySelectorWithoutPlaceholders(t *testing.T) {
	selector := media.LibrarySelector{}
	doc, err := selector.Select(context.Background(), testScript(), media.Request{PerScene: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Assets) != 0 {
		t.Fatalf("expected no assets, got %d", len(doc.Assets))
	}
}

func TestAdapterHealthReportsMissingLibrary(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	adapter := media.New(nil, missing, 2, nil)
	if health := adapter.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy media stage")
	}
	upstream := stage.NewUpstream(stagedoc.Document{StageType: stagedoc.StageScene, Payload: testScript()})
	payload, err := adapter.Generate(context.Background(), stage.Request{ProjectID: "p"}, upstream)
	if err != nil {
		t.Fatalf("Generate with missing library: %v", err)
	}
	if got := len(payload.(stagedoc.Media).Assets); got != 6 {
		t.Fatalf("expected 6 placeholders, got %d", got)
	}
}
