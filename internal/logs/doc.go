// Package logs reads the daemon's log files for the CLI: the last N lines,
// resumable byte offsets, and follow mode. A Filter narrows output to one
// project or operation using the structured fields internal/logging writes,
// in both the console and JSON formats.
package logs
