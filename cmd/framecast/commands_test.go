package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCommandCompletesInProcess(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"run", "reef-doc", "--topic", "coral reefs", "--allow-placeholders"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, stdout, "Project reef-doc: completed")
	requireContains(t, stdout, "assembly")
	requireContains(t, stdout, "Published to")
	if _, err := os.Stat(filepath.Join(env.cfg.PublishDir(), "reef-doc", "publish.json")); err != nil {
		t.Fatalf("expected publish receipt: %v", err)
	}

	stdout, _, err = runCLI(t, []string{"context", "list", "reef-doc"}, env.configPath)
	if err != nil {
		t.Fatalf("context list: %v", err)
	}
	for _, stage := range []string{"topic", "scene", "media", "audio", "assembly"} {
		requireContains(t, stdout, stage)
	}

	stdout, _, err = runCLI(t, []string{"context", "show", "reef-doc", "topic", "--payload"}, env.configPath)
	if err != nil {
		t.Fatalf("context show: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(stdout), &payload); err != nil {
		t.Fatalf("decode payload: %v\n%s", err, stdout)
	}
	if payload["topic"] != "coral reefs" {
		t.Fatalf("unexpected topic payload %v", payload)
	}

	stdout, _, err = runCLI(t, []string{"manifest", "show", "reef-doc"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest show: %v", err)
	}
	requireContains(t, stdout, "Manifest reef-doc")
	requireContains(t, stdout, "[OK] yes")
}

func TestRunCommandJSONOutput(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"--json", "run", "bees", "--topic", "honey bees", "--allow-placeholders"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(stdout), &body); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if body["success"] != true || body["status"] != "completed" || body["projectId"] != "bees" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRunCommandReportsGateFailure(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"run", "reef-doc", "--topic", "coral reefs"}, env.configPath)
	if err == nil {
		t.Fatal("expected gate failure")
	}
	var respErr *responseError
	if !errors.As(err, &respErr) || respErr.ErrorKind != "quality_gate" || respErr.Status != 409 {
		t.Fatalf("unexpected error %#v", err)
	}
	requireContains(t, stdout, "manifest")
	if strings.Contains(stdout, "publish ") {
		t.Fatalf("publish step must not run:\n%s", stdout)
	}

	_, _, err = runCLI(t, []string{"manifest", "build", "reef-doc", "--allow-placeholders"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest build with placeholders allowed: %v", err)
	}
}

func TestStageCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"stage", "topic", "bees", "-o", "topic=honey bees", "-o", `keywords=["hive","pollen"]`}, env.configPath)
	if err != nil {
		t.Fatalf("stage topic: %v", err)
	}
	requireContains(t, stdout, "Stored topic for bees")

	_, _, err = runCLI(t, []string{"stage", "scene", "nothing-here"}, env.configPath)
	var respErr *responseError
	if !errors.As(err, &respErr) || respErr.ErrorKind != "not_found" {
		t.Fatalf("expected not_found for missing topic, got %v", err)
	}

	if _, _, err := runCLI(t, []string{"stage", "lyrics", "bees"}, env.configPath); err == nil {
		t.Fatal("expected unknown stage to fail")
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.MediaLibraryDir, 0o755); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"System Status", "framecast dev", "[OK] yes", "not running", "Checks", "Operations", "succeeded"} {
		requireContains(t, stdout, want)
	}
}

func TestOperationCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"operation", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("operation list: %v", err)
	}
	requireContains(t, stdout, "No operations")

	_, _, err = runCLI(t, []string{"operation", "show", "missing"}, env.configPath)
	var respErr *responseError
	if !errors.As(err, &respErr) || respErr.Status != 404 {
		t.Fatalf("expected 404 for unknown operation, got %v", err)
	}

	_, _, err = runCLI(t, []string{"operation", "missing"}, env.configPath)
	if !errors.As(err, &respErr) || respErr.ErrorKind != "not_found" {
		t.Fatalf("expected not_found from the shorthand form, got %v", err)
	}

	if _, _, err := runCLI(t, []string{"operation", "list", "--status", "paused"}, env.configPath); err == nil {
		t.Fatal("expected invalid status to fail")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(t.TempDir(), "framecast.toml")

	stdout, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, stdout, "Wrote sample configuration")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	stdout, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, stdout, "Configuration valid")
	requireContains(t, stdout, env.cfg.Paths.DataDir)
}

func TestParseStageOptions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", want: nil},
		{name: "json", raw: `{"topic":"owls","targetDurationSeconds":90}`, want: map[string]any{"topic": "owls", "targetDurationSeconds": float64(90)}},
		{name: "pairs override json", raw: `{"topic":"owls"}`, pairs: []string{"topic=bats"}, want: map[string]any{"topic": "bats"}},
		{name: "typed pair", pairs: []string{"minVisuals=3", "title=Night Flight"}, want: map[string]any{"minVisuals": float64(3), "title": "Night Flight"}},
		{name: "bad pair", pairs: []string{"novalue"}, wantErr: true},
		{name: "bad json", raw: `{"topic"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStageOptions(tt.raw, tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("option %s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestQueryValues(t *testing.T) {
	fields, err := bodyFields(map[string]any{
		"projectId": "p1",
		"limit":     5,
		"statuses":  []string{"pending", "failed"},
		"empty":     "",
	})
	if err != nil {
		t.Fatal(err)
	}
	got := queryValues(fields)
	if got.Get("projectId") != "p1" || got.Get("limit") != "5" || got.Get("statuses") != "pending,failed" {
		t.Fatalf("unexpected query %v", got)
	}
	if got.Has("empty") {
		t.Fatal("empty strings must be omitted")
	}
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "" +
		"2026-03-01T10:00:00Z INFO daemon started\n" +
		"2026-03-01T10:00:01Z INFO pipeline: stage completed project_id=reef stage=topic\n" +
		"2026-03-01T10:00:02Z INFO pipeline: stage completed project_id=owls stage=topic\n" +
		"2026-03-01T10:00:03Z INFO pipeline: stage completed project_id=reef stage=scene\n"
	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LogDir, "framecast.log"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Count(stdout, "\n") != 2 || !strings.Contains(stdout, "project_id=owls") {
		t.Fatalf("unexpected tail:\n%s", stdout)
	}

	stdout, _, err = runCLI(t, []string{"logs", "--project", "reef"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --project: %v", err)
	}
	if strings.Count(stdout, "\n") != 2 || strings.Contains(stdout, "owls") {
		t.Fatalf("unexpected filtered logs:\n%s", stdout)
	}
}
