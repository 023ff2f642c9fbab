// Package preflight provides readiness checks for the filesystem paths and
// external services framecast depends on.
//
// The API's health operation and the CLI "framecast status" command both
// call RunAll. A failed directory check marks the service not ready; the
// notification check is informational and only runs when a topic is set.
package preflight
