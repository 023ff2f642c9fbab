package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"framecast/internal/stagedoc"
)

// Options carries stage-specific knobs from the caller. Unknown keys are
// ignored by adapters.
type Options map[string]any

// String returns the trimmed string option or fallback.
func (o Options) String(key, fallback string) string {
	if v, ok := o[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// Float returns a numeric option or fallback. JSON numbers decode as float64.
func (o Options) Float(key string, fallback float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return fallback
}

// Int returns an integer option or fallback.
func (o Options) Int(key string, fallback int) int {
	return int(o.Float(key, float64(fallback)))
}

// Bool returns a boolean option or fallback.
func (o Options) Bool(key string, fallback bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return fallback
}

// Strings returns a string list option. Both []string and JSON arrays are accepted.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

// Request is the single input contract for every stage.
type Request struct {
	ProjectID string  `json:"projectId"`
	Options   Options `json:"options,omitempty"`
}

// Adapter produces one stage type's document.
type Adapter interface {
	Stage() stagedoc.StageType
	// Requires lists the upstream documents Generate reads. Missing ones
	// fail the run with a not-found error before Generate is called.
	Requires() []stagedoc.StageType
	Generate(ctx context.Context, req Request, upstream Upstream) (stagedoc.Payload, error)
	HealthCheck(ctx context.Context) Health
}

// OptionalInputs is implemented by adapters that read an upstream document
// when it exists but can run without it.
type OptionalInputs interface {
	Optional() []stagedoc.StageType
}

// Upstream holds the documents an adapter declared it requires.
type Upstream struct {
	docs map[stagedoc.StageType]stagedoc.Document
}

// NewUpstream bundles docs by stage type.
func NewUpstream(docs ...stagedoc.Document) Upstream {
	u := Upstream{docs: make(map[stagedoc.StageType]stagedoc.Document, len(docs))}
	for _, doc := range docs {
		u.docs[doc.StageType] = doc
	}
	return u
}

// Document returns the stored document for stage.
func (u Upstream) Document(stage stagedoc.StageType) (stagedoc.Document, bool) {
	doc, ok := u.docs[stage]
	return doc, ok
}

// Topic returns the topic payload if present.
func (u Upstream) Topic() (stagedoc.Topic, bool) { return payloadAs[stagedoc.Topic](u, stagedoc.StageTopic) }

// Script returns the scene payload if present.
func (u Upstream) Script() (stagedoc.Script, bool) {
	return payloadAs[stagedoc.Script](u, stagedoc.StageScene)
}

// Media returns the media payload if present.
func (u Upstream) Media() (stagedoc.Media, bool) { return payloadAs[stagedoc.Media](u, stagedoc.StageMedia) }

// Audio returns the audio payload if present.
func (u Upstream) Audio() (stagedoc.Audio, bool) { return payloadAs[stagedoc.Audio](u, stagedoc.StageAudio) }

func payloadAs[T stagedoc.Payload](u Upstream, stage stagedoc.StageType) (T, bool) {
	var zero T
	doc, ok := u.docs[stage]
	if !ok {
		return zero, false
	}
	typed, ok := doc.Payload.(T)
	return typed, ok
}

// Set indexes adapters by stage type.
type Set struct {
	adapters map[stagedoc.StageType]Adapter
}

// NewSet registers adapters; a duplicate stage type is a programming error.
func NewSet(adapters ...Adapter) (*Set, error) {
	s := &Set{adapters: make(map[stagedoc.StageType]Adapter, len(adapters))}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		if _, dup := s.adapters[adapter.Stage()]; dup {
			return nil, fmt.Errorf("duplicate adapter for stage %q", adapter.Stage())
		}
		s.adapters[adapter.Stage()] = adapter
	}
	return s, nil
}

// Get returns the adapter for stage.
func (s *Set) Get(stage stagedoc.StageType) (Adapter, bool) {
	if s == nil {
		return nil, false
	}
	adapter, ok := s.adapters[stage]
	return adapter, ok
}

// All returns the adapters in pipeline order.
func (s *Set) All() []Adapter {
	if s == nil {
		return nil
	}
	order := map[stagedoc.StageType]int{}
	for i, st := range stagedoc.AllStages() {
		order[st] = i
	}
	out := make([]Adapter, 0, len(s.adapters))
	for _, adapter := range s.adapters {
		out = append(out, adapter)
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i].Stage()] < order[out[j].Stage()] })
	return out
}
