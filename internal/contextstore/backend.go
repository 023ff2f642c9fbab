package contextstore

import (
	"context"

	"framecast/internal/stagedoc"
)

// Object is a document's stored bytes plus what a backend needs to place them.
// Version is derived from the content, so a location is never reused for
// different bytes and a head's location is never rewritten under it.
type Object struct {
	ProjectID string
	Stage     stagedoc.StageType
	Codec     stagedoc.Codec
	Version   string
	Data      []byte
}

// Backend stores and fetches encoded documents for one tier. Locations are
// opaque to callers and recorded in the head index.
type Backend interface {
	Tier() stagedoc.Tier
	Put(ctx context.Context, obj Object) (location string, err error)
	Get(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
}
