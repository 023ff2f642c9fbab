package schema

import (
	"fmt"

	"framecast/internal/config"
	"framecast/internal/services"
	"framecast/internal/stagedoc"
)

// Limits holds the numeric tolerances validators enforce.
type Limits struct {
	DurationTolerance float64
	HookMin           float64
	HookMax           float64
	ConclusionMin     float64
	ConclusionMax     float64
	MinTargetDuration float64
	MaxTargetDuration float64
}

// DefaultLimits matches the configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		DurationTolerance: 0.5,
		HookMin:           3,
		HookMax:           15,
		ConclusionMin:     5,
		ConclusionMax:     30,
		MinTargetDuration: 10,
		MaxTargetDuration: 3600,
	}
}

// LimitsFromConfig reads the [schema] section.
func LimitsFromConfig(cfg *config.Config) Limits {
	limits := DefaultLimits()
	if cfg == nil {
		return limits
	}
	limits.DurationTolerance = cfg.Schema.DurationToleranceSeconds
	limits.HookMin = cfg.Schema.HookMinSeconds
	limits.HookMax = cfg.Schema.HookMaxSeconds
	limits.ConclusionMin = cfg.Schema.ConclusionMinSeconds
	limits.ConclusionMax = cfg.Schema.ConclusionMaxSeconds
	return limits
}

// Validator checks one payload variant.
type Validator func(payload stagedoc.Payload, limits Limits) Violations

// Registry maps each stage type to its validator.
type Registry struct {
	limits     Limits
	validators map[stagedoc.StageType]Validator
}

// NewRegistry returns a registry with the built-in validators.
func NewRegistry(limits Limits) *Registry {
	return &Registry{
		limits: limits,
		validators: map[stagedoc.StageType]Validator{
			stagedoc.StageTopic:    validateTopic,
			stagedoc.StageScene:    validateScript,
			stagedoc.StageMedia:    validateMedia,
			stagedoc.StageAudio:    validateAudio,
			stagedoc.StageAssembly: validateAssembly,
		},
	}
}

// Limits returns the tolerances the registry enforces.
func (r *Registry) Limits() Limits {
	return r.limits
}

// Check returns the violations for payload at version without wrapping.
func (r *Registry) Check(payload stagedoc.Payload, version string) Violations {
	if payload == nil {
		return Violations{{Rule: RuleUnknownPayload, Message: "payload is missing"}}
	}
	if version != stagedoc.CurrentSchemaVersion {
		return Violations{{
			Rule:    RuleSchemaVersion,
			Field:   "schemaVersion",
			Message: fmt.Sprintf("version %q is not supported (current %q)", version, stagedoc.CurrentSchemaVersion),
		}}
	}
	validator, ok := r.validators[payload.StageType()]
	if !ok {
		return Violations{{Rule: RuleUnknownPayload, Message: fmt.Sprintf("no validator for stage %q", payload.StageType())}}
	}
	return validator(payload, r.limits)
}

// Validate returns nil for a conforming payload, otherwise a validation
// error wrapping the full Violations list.
func (r *Registry) Validate(payload stagedoc.Payload, version string) error {
	violations := r.Check(payload, version)
	if len(violations) == 0 {
		return nil
	}
	stage := ""
	if payload != nil {
		stage = payload.StageType().String()
	}
	return services.Wrap(
		services.ErrValidation,
		stage,
		"validate",
		fmt.Sprintf("%d schema violation(s)", len(violations)),
		violations,
	)
}
