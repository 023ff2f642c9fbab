// Package contextstore persists the current context document for each
// (project, stage type) pair.
//
// A small SQLite head index records where the current bytes live and how
// they were encoded. Small documents are kept inline in the same database;
// larger ones are offloaded to a per-project directory tree under the data
// directory so they stay browsable. Every write replaces the previous head
// (last write wins) and removes the superseded bytes when their location
// changed.
//
// Stored bytes are the payload's canonical JSON, optionally compressed with
// zstd or lz4 when that saves enough space, and checked against a BLAKE3
// digest of the uncompressed JSON on every read.
package contextstore
