package stage

import (
	"cmp"
	"context"
	"slices"
)

// Health is one adapter's answer to "can you run right now".
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

func Healthy(name string) Health { return Health{Name: name, Ready: true} }

// Unhealthy reports name as not ready; detail is shown to operators verbatim.
func Unhealthy(name, detail string) Health { return Health{Name: name, Detail: detail} }

// CheckAll collects every adapter's health, ordered by name.
func CheckAll(ctx context.Context, adapters []Adapter) []Health {
	out := make([]Health, len(adapters))
	for i, adapter := range adapters {
		out[i] = adapter.HealthCheck(ctx)
	}
	slices.SortFunc(out, func(a, b Health) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
