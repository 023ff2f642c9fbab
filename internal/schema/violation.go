package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Rule names reported in violations.
const (
	RuleRequired       = "required"
	RuleRange          = "range"
	RuleUnique         = "unique"
	RuleEnum           = "enum"
	RuleSequence       = "sequence"
	RuleDurationSum    = "duration_sum"
	RuleHookWindow     = "hook_window"
	RuleConclusionWin  = "conclusion_window"
	RuleRoleOrder      = "role_order"
	RuleTimelineOrder  = "timeline_order"
	RuleSchemaVersion  = "schema_version"
	RuleUnknownPayload = "payload_type"
)

// Violation is one failed rule.
type Violation struct {
	Rule    string `json:"rule"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Field == "" {
		return fmt.Sprintf("[%s] %s", v.Rule, v.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", v.Rule, v.Field, v.Message)
}

// Violations is an error carrying every failed rule for a document.
type Violations []Violation //nolint:errname // mirrors the domain term

// Error returns a compact summary of the violations.
func (v Violations) Error() string {
	switch len(v) {
	case 0:
		return "no violations"
	case 1:
		return v[0].String()
	default:
		return fmt.Sprintf("%s (and %d more)", v[0].String(), len(v)-1)
	}
}

// Messages renders each violation on its own line.
func (v Violations) Messages() []string {
	out := make([]string, 0, len(v))
	for _, item := range v {
		out = append(out, item.String())
	}
	return out
}

// AsViolations extracts the violation list from err, if any.
func AsViolations(err error) (Violations, bool) {
	var list Violations
	if errors.As(err, &list) {
		return list, true
	}
	return nil, false
}

type collector struct {
	items Violations
}

func (c *collector) add(rule, field, format string, args ...any) {
	c.items = append(c.items, Violation{Rule: rule, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *collector) requireText(field, value string) {
	if strings.TrimSpace(value) == "" {
		c.add(RuleRequired, field, "is required")
	}
}
