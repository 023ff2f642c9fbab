// Package stage defines the contract every pipeline stage implements and the
// harness that runs one.
//
// An Adapter turns a Request (project id plus free-form options) and the
// documents of the stages it depends on into a new typed payload. The
// Harness owns everything around that call: loading upstream documents,
// retrying transient failures with the shared policy, persisting the result
// through the context store, and emitting stage lifecycle logs. Adapters
// never talk to each other; the context store is the only channel between
// stages.
package stage
