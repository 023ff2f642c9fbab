package api

import (
	"net/http"

	"framecast/internal/manifest"
	"framecast/internal/schema"
	"framecast/internal/services"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusUnprocessableEntity
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindQualityGate:
		return http.StatusConflict
	case services.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse builds the uniform failure body for err.
func NewErrorResponse(err error) ErrorResponse {
	details := services.DetailsOf(err)
	out := ErrorResponse{
		ErrorKind: string(details.Kind),
		Message:   details.Message,
		Issues:    manifest.IssuesOf(err),
	}
	if violations, ok := schema.AsViolations(err); ok {
		out.Violations = violations
	}
	return out
}

func errorResponse(err error) Response {
	return Response{Status: StatusFor(services.KindOf(err)), Body: NewErrorResponse(err)}
}

func badRequest(status int, message string) Response {
	return Response{Status: status, Body: ErrorResponse{ErrorKind: ErrorKindBadRequest, Message: message}}
}

func gateFailure(m manifest.Manifest, err error) Response {
	return Response{
		Status: http.StatusConflict,
		Body: GateFailureResponse{
			ErrorResponse:     NewErrorResponse(err),
			ProjectID:         m.ProjectID,
			KPIs:              m.KPIs,
			ReadyForRendering: m.ReadyForRendering,
			BuiltAt:           formatTime(m.BuiltAt),
		},
	}
}
