package pipeline

import (
	"strings"

	"framecast/internal/stagedoc"
)

// StepKind distinguishes stage adapters from the gate and publish steps.
type StepKind string

const (
	StepStage    StepKind = "stage"
	StepManifest StepKind = "manifest"
	StepPublish  StepKind = "publish"
)

// Step is one unit inside a phase.
type Step struct {
	Name  string
	Kind  StepKind
	Stage stagedoc.StageType
}

// Phase groups steps that may run concurrently.
type Phase []Step

func (p Phase) String() string {
	names := make([]string, 0, len(p))
	for _, step := range p {
		names = append(names, step.Name)
	}
	return strings.Join(names, "+")
}

func stageStep(st stagedoc.StageType) Step {
	return Step{Name: st.String(), Kind: StepStage, Stage: st}
}

// Phases returns the run order. Media and audio share a phase because both
// depend only on the script.
func Phases() []Phase {
	return []Phase{
		{stageStep(stagedoc.StageTopic)},
		{stageStep(stagedoc.StageScene)},
		{stageStep(stagedoc.StageMedia), stageStep(stagedoc.StageAudio)},
		{stageStep(stagedoc.StageAssembly)},
		{{Name: "manifest", Kind: StepManifest}},
		{{Name: "publish", Kind: StepPublish}},
	}
}
