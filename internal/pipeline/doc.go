// Package pipeline coordinates stage adapters for a project.
//
// The Coordinator runs the fixed phase order topic, scene, media and audio,
// assembly, manifest, publish. Steps inside a phase run concurrently. A
// required step failure aborts the run; an optional step failure is logged
// and the manifest gate surfaces the resulting gap. Before each phase the
// coordinator checks the synchronous budget and, when less than the safety
// margin remains, hands the rest of the run to the Executor and returns an
// accepted operation that callers poll through the queue.
//
// The Executor is a bounded worker pool. Submitted work runs detached from
// the submitting request's cancellation and records its status, progress,
// and result in the operations queue.
package pipeline
