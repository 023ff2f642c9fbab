package manifest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"framecast/internal/services"
	"framecast/internal/stagedoc"
)

// State is a builder state. COLLECTING and VALIDATING are transient; a built
// manifest is always PASSED or FAILED.
type State string

const (
	StateCollecting State = "COLLECTING"
	StateValidating State = "VALIDATING"
	StatePassed     State = "PASSED"
	StateFailed     State = "FAILED"
)

// Snapshot holds the exact documents a manifest was computed from.
type Snapshot map[stagedoc.StageType]stagedoc.Document

// Manifest is the quality gate outcome for a project.
type Manifest struct {
	ProjectID         string    `json:"projectId"`
	State             State     `json:"state"`
	KPIs              KPIs      `json:"kpis"`
	Issues            []string  `json:"issues"`
	ReadyForRendering bool      `json:"readyForRendering"`
	Policy            Policy    `json:"policy"`
	Snapshot          Snapshot  `json:"snapshot"`
	BuiltAt           time.Time `json:"builtAt"`
}

// GateFailure carries the issue list of a failed manifest.
type GateFailure struct {
	ProjectID string
	Issues    []string
}

func (g *GateFailure) Error() string {
	return fmt.Sprintf("project %s: %s", g.ProjectID, strings.Join(g.Issues, "; "))
}

// GateError returns nil for a passing manifest and a quality-gate error
// carrying every issue otherwise.
func GateError(m Manifest) error {
	if m.ReadyForRendering {
		return nil
	}
	return services.Wrap(services.ErrQualityGate, "manifest", "build",
		fmt.Sprintf("%d issue(s)", len(m.Issues)),
		&GateFailure{ProjectID: m.ProjectID, Issues: append([]string(nil), m.Issues...)})
}

// IssuesOf extracts the issue list from a GateError.
func IssuesOf(err error) []string {
	var failure *GateFailure
	if errors.As(err, &failure) {
		return failure.Issues
	}
	return nil
}
