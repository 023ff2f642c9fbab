// Package queue persists asynchronous operations in SQLite so callers can
// poll work that outlived its synchronous time budget.
//
// An operation is created pending when the coordinator hands work to the
// executor, moves to running when a worker picks it up, and finishes as
// succeeded (with a JSON result) or failed (with the error kind and message
// the API reports). Progress notes record the phase in flight.
//
// The database is treated as transient storage for in-flight work rather
// than a long-term archive. Operations left running by a stopped daemon are
// failed on the next start. Schema changes bump schemaVersion; users delete
// the database to adopt the new schema.
package queue
