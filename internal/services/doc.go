// Package services defines shared utilities consumed by the stage adapters,
// the context store, and the pipeline coordinator.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, stage names, correlation and
//     operation identifiers for logging.
//   - Structured error markers plus the Wrap helper so every failure carries a
//     machine-checkable kind (validation, not_found, quality_gate, transient,
//     configuration, fatal) alongside a human-readable message.
//
// Use these helpers when wiring new stage logic so error classification and
// retry eligibility stay uniform across the pipeline.
package services
