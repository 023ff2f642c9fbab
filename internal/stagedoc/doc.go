// Package stagedoc defines the typed context documents exchanged between
// pipeline stages.
//
// Each stage type owns exactly one payload variant. Payload is the closed
// union over those variants; Decode picks the concrete type from the stage
// tag and schema version recorded alongside the bytes, so readers never deal
// with untyped maps. Document wraps a payload with the storage envelope the
// context store fills in (tier, sizes, codec, digest).
package stagedoc
