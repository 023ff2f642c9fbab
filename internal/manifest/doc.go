// Package manifest implements the quality gate that decides whether a
// project may proceed to rendering.
//
// A Builder reads the topic, scene, media, and audio documents for a project,
// re-validates them, derives KPIs, and evaluates those KPIs against a Policy.
// The outcome is a Manifest: PASSED with no issues, or FAILED with one
// actionable issue per violated threshold. Manifests are immutable; a rebuild
// writes a new file that replaces the previous one through the Repository.
//
// Evaluate is pure and deterministic so callers can re-run a gate with relaxed
// thresholds and compare outcomes.
package manifest
