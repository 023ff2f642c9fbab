package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"framecast/internal/config"
	"framecast/internal/services"
)

// Policy holds the thresholds a manifest is evaluated against.
type Policy struct {
	MinVisualsPerScene   int     `json:"minVisualsPerScene"`
	AllowPlaceholders    bool    `json:"allowPlaceholders"`
	RequireMasterAudio   bool    `json:"requireMasterAudio"`
	RequireAudioParity   bool    `json:"requireAudioParity"`
	MaxAudioDriftSeconds float64 `json:"maxAudioDriftSeconds"`
}

// PolicyFromConfig returns the configured default policy.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return DefaultPolicy()
	}
	return Policy{
		MinVisualsPerScene:   cfg.Policy.MinVisualsPerScene,
		AllowPlaceholders:    cfg.Policy.AllowPlaceholders,
		RequireMasterAudio:   cfg.Policy.RequireMasterAudio,
		RequireAudioParity:   cfg.Policy.RequireAudioParity,
		MaxAudioDriftSeconds: cfg.Policy.MaxAudioDriftSeconds,
	}
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	cfg := config.Default()
	return PolicyFromConfig(&cfg)
}

// Validate rejects thresholds that can never be evaluated.
func (p Policy) Validate() error {
	if p.MinVisualsPerScene < 0 {
		return services.Wrap(services.ErrValidation, "manifest", "policy",
			fmt.Sprintf("minVisualsPerScene must be >= 0, got %d", p.MinVisualsPerScene), nil)
	}
	if p.MaxAudioDriftSeconds < 0 {
		return services.Wrap(services.ErrValidation, "manifest", "policy",
			fmt.Sprintf("maxAudioDriftSeconds must be >= 0, got %g", p.MaxAudioDriftSeconds), nil)
	}
	return nil
}

// Overrides are caller-supplied changes applied on top of a base policy.
// Nil fields keep the base value.
type Overrides struct {
	Preset               string   `json:"preset,omitempty"`
	MinVisualsPerScene   *int     `json:"minVisuals,omitempty"`
	AllowPlaceholders    *bool    `json:"allowPlaceholders,omitempty"`
	RequireMasterAudio   *bool    `json:"requireMasterAudio,omitempty"`
	RequireAudioParity   *bool    `json:"requireAudioParity,omitempty"`
	MaxAudioDriftSeconds *float64 `json:"maxAudioDriftSeconds,omitempty"`
}

// Apply returns base with the overrides set.
func (o Overrides) Apply(base Policy) Policy {
	if o.MinVisualsPerScene != nil {
		base.MinVisualsPerScene = *o.MinVisualsPerScene
	}
	if o.AllowPlaceholders != nil {
		base.AllowPlaceholders = *o.AllowPlaceholders
	}
	if o.RequireMasterAudio != nil {
		base.RequireMasterAudio = *o.RequireMasterAudio
	}
	if o.RequireAudioParity != nil {
		base.RequireAudioParity = *o.RequireAudioParity
	}
	if o.MaxAudioDriftSeconds != nil {
		base.MaxAudioDriftSeconds = *o.MaxAudioDriftSeconds
	}
	return base
}

// presetSpec is one entry of a presets file. Unset keys inherit the default
// policy.
type presetSpec struct {
	MinVisualsPerScene   *int     `yaml:"min_visuals_per_scene"`
	AllowPlaceholders    *bool    `yaml:"allow_placeholders"`
	RequireMasterAudio   *bool    `yaml:"require_master_audio"`
	RequireAudioParity   *bool    `yaml:"require_audio_parity"`
	MaxAudioDriftSeconds *float64 `yaml:"max_audio_drift_seconds"`
}

type presetFile struct {
	Presets map[string]presetSpec `yaml:"presets"`
}

// Presets are named policies loaded from a YAML file:
//
//	presets:
//	  draft:
//	    min_visuals_per_scene: 1
//	    allow_placeholders: true
type Presets struct {
	base    Policy
	entries map[string]Policy
}

// LoadPresets reads path. An empty path or a missing file yields an empty set
// that resolves only the base policy.
func LoadPresets(path string, base Policy) (*Presets, error) {
	presets := &Presets{base: base, entries: map[string]Policy{}}
	path = strings.TrimSpace(path)
	if path == "" {
		return presets, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return presets, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "load presets", path, err)
	}
	if err := presets.parse(data); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "load presets", path, err)
	}
	return presets, nil
}

// ParsePresets parses YAML preset data.
func ParsePresets(data []byte, base Policy) (*Presets, error) {
	presets := &Presets{base: base, entries: map[string]Policy{}}
	if err := presets.parse(data); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "parse presets", "", err)
	}
	return presets, nil
}

func (p *Presets) parse(data []byte) error {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	for name, entry := range file.Presets {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return errors.New("preset name must not be empty")
		}
		policy := Overrides{
			MinVisualsPerScene:   entry.MinVisualsPerScene,
			AllowPlaceholders:    entry.AllowPlaceholders,
			RequireMasterAudio:   entry.RequireMasterAudio,
			RequireAudioParity:   entry.RequireAudioParity,
			MaxAudioDriftSeconds: entry.MaxAudioDriftSeconds,
		}.Apply(p.base)
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("preset %q: %w", name, err)
		}
		p.entries[name] = policy
	}
	return nil
}

// Names lists the preset names in sorted order.
func (p *Presets) Names() []string {
	names := make([]string, 0, len(p.entries))
	for name := range p.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve picks the named preset (or the base policy when name is empty) and
// applies o on top.
func (p *Presets) Resolve(o Overrides) (Policy, error) {
	policy := p.base
	if name := strings.ToLower(strings.TrimSpace(o.Preset)); name != "" {
		preset, ok := p.entries[name]
		if !ok {
			return Policy{}, services.Wrap(services.ErrValidation, "manifest", "policy",
				fmt.Sprintf("unknown policy preset %q", o.Preset), nil)
		}
		policy = preset
	}
	policy = o.Apply(policy)
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}
