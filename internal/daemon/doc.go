// Package daemon hosts framecast as a long-running process. It owns the
// single-instance lock, starts the runtime's executor, and exposes the api
// contract over HTTP:
//
//	GET  /v1/health               health
//	GET  /v1/status               daemon status
//	GET  /v1/operations/{id}      operation.status
//	POST /v1/{operation}          <stage>.generate, manifest.build, pipeline.run
//	GET  /v1/{operation}?k=v      context.get, context.list, manifest.get, operation.list
//
// When a token is configured every route requires
// "Authorization: Bearer <token>".
package daemon
