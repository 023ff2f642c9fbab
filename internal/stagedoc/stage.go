package stagedoc

import (
	"fmt"
	"strings"
)

// StageType identifies the producing stage of a context document.
type StageType string

const (
	StageTopic    StageType = "topic"
	StageScene    StageType = "scene"
	StageMedia    StageType = "media"
	StageAudio    StageType = "audio"
	StageAssembly StageType = "assembly"
)

var stageOrder = []StageType{StageTopic, StageScene, StageMedia, StageAudio, StageAssembly}

// phaseDirs gives the human-navigable folder for each stage's offloaded documents.
var phaseDirs = map[StageType]string{
	StageTopic:    "01-topic",
	StageScene:    "02-script",
	StageMedia:    "03-media",
	StageAudio:    "04-audio",
	StageAssembly: "05-assembly",
}

// AllStages returns every stage type in pipeline order.
func AllStages() []StageType {
	out := make([]StageType, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// ParseStageType normalizes s and checks it names a known stage.
func ParseStageType(s string) (StageType, error) {
	st := StageType(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown stage type %q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known stage types.
func (s StageType) Valid() bool {
	_, ok := phaseDirs[s]
	return ok
}

// PhaseDir returns the numbered directory used for offloaded documents.
func (s StageType) PhaseDir() string {
	return phaseDirs[s]
}

func (s StageType) String() string { return string(s) }

// Tier is where a document's bytes live.
type Tier string

const (
	TierInline    Tier = "inline"
	TierOffloaded Tier = "offloaded"
)

// Codec names the compression applied to stored bytes.
type Codec string

const (
	CodecNone Codec = "none"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

// ParseCodec normalizes a codec name; blank means none.
func ParseCodec(s string) (Codec, error) {
	switch Codec(strings.ToLower(strings.TrimSpace(s))) {
	case "", CodecNone:
		return CodecNone, nil
	case CodecZstd:
		return CodecZstd, nil
	case CodecLZ4:
		return CodecLZ4, nil
	default:
		return "", fmt.Errorf("unknown codec %q", s)
	}
}
