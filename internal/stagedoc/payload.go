package stagedoc

// CurrentSchemaVersion is written with every new document.
const CurrentSchemaVersion = "1"

// Payload is implemented by every stage-specific document body.
type Payload interface {
	StageType() StageType
}

// SceneRole positions a scene within the narrative.
type SceneRole string

const (
	RoleHook       SceneRole = "hook"
	RoleBody       SceneRole = "body"
	RoleConclusion SceneRole = "conclusion"
)

// Valid reports whether r is a known role.
func (r SceneRole) Valid() bool {
	switch r {
	case RoleHook, RoleBody, RoleConclusion:
		return true
	}
	return false
}

// Topic is the output of topic analysis.
type Topic struct {
	Topic                 string   `json:"topic"`
	Title                 string   `json:"title,omitempty"`
	Angle                 string   `json:"angle,omitempty"`
	Audience              string   `json:"audience,omitempty"`
	Language              string   `json:"language,omitempty"`
	Keywords              []string `json:"keywords,omitempty"`
	TargetDurationSeconds float64  `json:"targetDurationSeconds,omitempty"`
}

func (Topic) StageType() StageType { return StageTopic }

// Scene is one segment of the script.
type Scene struct {
	Index           int       `json:"index"`
	Role            SceneRole `json:"role"`
	Narration       string    `json:"narration"`
	VisualPrompt    string    `json:"visualPrompt,omitempty"`
	DurationSeconds float64   `json:"durationSeconds"`
}

// Script is the output of the scene stage.
type Script struct {
	Scenes               []Scene `json:"scenes"`
	TotalDurationSeconds float64 `json:"totalDurationSeconds"`
}

func (Script) StageType() StageType { return StageScene }

// SceneDurationSum adds up the per-scene durations.
func (s Script) SceneDurationSum() float64 {
	var total float64
	for _, scene := range s.Scenes {
		total += scene.DurationSeconds
	}
	return total
}

// AssetKind distinguishes still and moving visuals.
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetVideo AssetKind = "video"
)

// Valid reports whether k is a known asset kind.
func (k AssetKind) Valid() bool {
	return k == AssetImage || k == AssetVideo
}

// Asset is a visual selected for a scene.
type Asset struct {
	AssetID     string    `json:"assetId"`
	SceneIndex  int       `json:"sceneIndex"`
	Kind        AssetKind `json:"kind"`
	URI         string    `json:"uri,omitempty"`
	Source      string    `json:"source,omitempty"`
	Placeholder bool      `json:"placeholder,omitempty"`
}

// Media is the output of media selection.
type Media struct {
	Assets []Asset `json:"assets"`
}

func (Media) StageType() StageType { return StageMedia }

// AudioSegment is the narration rendered for one scene.
type AudioSegment struct {
	SceneIndex      int     `json:"sceneIndex"`
	URI             string  `json:"uri"`
	Voice           string  `json:"voice,omitempty"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// MasterTrack is the mixed narration for the whole video.
type MasterTrack struct {
	URI             string  `json:"uri"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// Audio is the output of the narration stage.
type Audio struct {
	Segments []AudioSegment `json:"segments"`
	Master   *MasterTrack   `json:"master,omitempty"`
	Voice    string         `json:"voice,omitempty"`
}

func (Audio) StageType() StageType { return StageAudio }

// SegmentDurationSum adds up the per-segment durations.
func (a Audio) SegmentDurationSum() float64 {
	var total float64
	for _, seg := range a.Segments {
		total += seg.DurationSeconds
	}
	return total
}

// TimelineEntry places a scene on the output timeline.
type TimelineEntry struct {
	SceneIndex   int      `json:"sceneIndex"`
	StartSeconds float64  `json:"startSeconds"`
	EndSeconds   float64  `json:"endSeconds"`
	AssetIDs     []string `json:"assetIds,omitempty"`
	AudioURI     string   `json:"audioUri,omitempty"`
}

// Assembly is the output of the assembly stage.
type Assembly struct {
	OutputURI       string          `json:"outputUri"`
	Format          string          `json:"format,omitempty"`
	DurationSeconds float64         `json:"durationSeconds"`
	Timeline        []TimelineEntry `json:"timeline"`
}

func (Assembly) StageType() StageType { return StageAssembly }
