// Package api is framecast's transport-neutral request/response contract.
// A Request names an operation ("health", "<stage>.generate",
// "manifest.build", "pipeline.run", "operation.status", "context.get",
// "context.list", "manifest.get", "operation.list") and carries a JSON body; Service.Handle
// returns a status code and a DTO ready for JSON encoding.
//
// # Response shapes
//
// Successful operations return their DTO with success=true. Work that does
// not finish inside the synchronous budget returns 202 with an Accepted
// body naming the operation to poll. Failures return an ErrorResponse whose
// errorKind mirrors services.KindOf and whose HTTP status follows the kind:
// validation 422, not_found 404, quality_gate 409, transient 503,
// configuration and fatal 500, malformed requests 400.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Stored payloads and operation results pass through as json.RawMessage or
// their typed form without re-encoding.
package api
