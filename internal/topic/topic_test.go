package topic_test

import (
	"context"
	"reflect"
	"testing"

	"framecast/internal/services"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
	"framecast/internal/topic"
)

func TestGenerateDerivesTitleAndKeywords(t *testing.T) {
	adapter := topic.New(nil, nil)
	payload, err := adapter.Generate(context.Background(), stage.Request{
		ProjectID: "p1",
		Options:   stage.Options{"topic": "how tide pools survive the winter", "language": "English"},
	}, stage.Upstream{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	doc := payload.(stagedoc.Topic)
	if doc.Title != "How Tide Pools Survive The Winter" {
		t.Fatalf("title = %q", doc.Title)
	}
	want := []string{"tide", "pools", "survive", "winter"}
	if !reflect.DeepEqual(doc.Keywords, want) {
		t.Fatalf("keywords = %v, want %v", doc.Keywords, want)
	}
	if doc.Language != "en" || doc.TargetDurationSeconds != 60 || doc.Angle != "explainer" {
		t.Fatalf("defaults not applied: %+v", doc)
	}
}

func TestGenerateKeepsSuppliedKeywords(t *testing.T) {
	adapter := topic.New(nil, nil)
	payload, err := adapter.Generate(context.Background(), stage.Request{
		Options: stage.Options{
			"topic":                 "volcanoes",
			"keywords":              []any{"Lava", "lava", "magma"},
			"targetDurationSeconds": float64(120),
		},
	}, stage.Upstream{})
	if err != nil {
		t.Fatal(err)
	}
	doc := payload.(stagedoc.Topic)
	if !reflect.DeepEqual(doc.Keywords, []string{"lava", "magma"}) || doc.TargetDurationSeconds != 120 {
		t.Fatalf("unexpected doc %+v", doc)
	}
}

func TestGenerateRequiresTopic(t *testing.T) {
	_, err := topic.New(nil, nil).Generate(context.Background(), stage.Request{}, stage.Upstream{})
	if services.KindOf(err) != services.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
