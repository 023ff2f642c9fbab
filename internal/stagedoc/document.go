package stagedoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Document is a stored payload plus its storage envelope.
type Document struct {
	ProjectID     string    `json:"projectId"`
	StageType     StageType `json:"stageType"`
	Payload       Payload   `json:"payload"`
	CreatedAt     time.Time `json:"createdAt"`
	SizeBytes     int       `json:"sizeBytes"`
	RawSizeBytes  int       `json:"rawSizeBytes"`
	Compressed    bool      `json:"compressed"`
	Codec         Codec     `json:"codec"`
	StorageTier   Tier      `json:"storageTier"`
	SchemaVersion string    `json:"schemaVersion"`
	Digest        string    `json:"digest"`
}

// Encode serializes a payload to its canonical JSON form.
func Encode(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("encode payload: nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.StageType(), err)
	}
	return data, nil
}

// Decode parses data as the payload variant for stage at version.
// Unknown fields are rejected so schema drift surfaces instead of being
// silently dropped.
func Decode(stage StageType, version string, data []byte) (Payload, error) {
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: %s payload version %q", ErrUnsupportedVersion, stage, version)
	}
	switch stage {
	case StageTopic:
		return decodeInto[Topic](data)
	case StageScene:
		return decodeInto[Script](data)
	case StageMedia:
		return decodeInto[Media](data)
	case StageAudio:
		return decodeInto[Audio](data)
	case StageAssembly:
		return decodeInto[Assembly](data)
	default:
		return nil, fmt.Errorf("decode payload: unknown stage type %q", stage)
	}
}

func decodeInto[T Payload](data []byte) (Payload, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", out.StageType(), err)
	}
	return out, nil
}

// DecodeJSON parses a payload supplied by an API caller, where the stage is
// known from the operation name.
func DecodeJSON(stage StageType, data []byte) (Payload, error) {
	return Decode(stage, CurrentSchemaVersion, data)
}

// UnmarshalJSON restores the typed payload using the envelope's stage type
// and schema version.
func (d *Document) UnmarshalJSON(data []byte) error {
	type envelope Document
	var raw struct {
		envelope
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Document(raw.envelope)
	if len(raw.Payload) == 0 || bytes.Equal(raw.Payload, []byte("null")) {
		return nil
	}
	version := d.SchemaVersion
	if version == "" {
		version = CurrentSchemaVersion
	}
	payload, err := Decode(d.StageType, version, raw.Payload)
	if err != nil {
		return err
	}
	d.Payload = payload
	return nil
}
