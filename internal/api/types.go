package api

import (
	"encoding/json"

	"framecast/internal/manifest"
	"framecast/internal/pipeline"
	"framecast/internal/preflight"
	"framecast/internal/schema"
	"framecast/internal/stagedoc"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Operation names outside the per-stage generate family.
const (
	OpHealth          = "health"
	OpManifestBuild   = "manifest.build"
	OpManifestGet     = "manifest.get"
	OpPipelineRun     = "pipeline.run"
	OpOperationStatus = "operation.status"
	OpOperationList   = "operation.list"
	OpContextGet      = "context.get"
	OpContextList     = "context.list"
)

// ErrorKindBadRequest marks requests rejected before any operation ran.
const ErrorKindBadRequest = "bad_request"

// Request is one call against the contract.
type Request struct {
	Method    string
	Operation string
	Body      json.RawMessage
}

// Response is the status code and JSON-encodable body for a Request.
type Response struct {
	Status int
	Body   any
}

// HealthResponse identifies the service and its readiness.
type HealthResponse struct {
	Service string        `json:"service"`
	Version string        `json:"version"`
	Ready   bool          `json:"ready"`
	Checks  []HealthCheck `json:"checks"`
}

// HealthCheck is one readiness probe: a stage adapter or a preflight check.
type HealthCheck struct {
	Name     string `json:"name"`
	Ready    bool   `json:"ready"`
	Detail   string `json:"detail,omitempty"`
	Advisory bool   `json:"advisory,omitempty"`
}

// GenerateRequest is the canonical input of every <stage>.generate.
type GenerateRequest struct {
	ProjectID string         `json:"projectId"`
	Options   map[string]any `json:"options,omitempty"`
}

// GenerateResponse reports a stored stage document.
type GenerateResponse struct {
	Success       bool               `json:"success"`
	ProjectID     string             `json:"projectId"`
	Stage         stagedoc.StageType `json:"stage"`
	StorageTier   stagedoc.Tier      `json:"storageTier"`
	SizeBytes     int                `json:"sizeBytes"`
	Compressed    bool               `json:"compressed"`
	SchemaVersion string             `json:"schemaVersion"`
	Summary       map[string]any     `json:"summary"`
	DurationMS    int64              `json:"durationMs"`
}

// ManifestBuildRequest is manifest.build's input. Policy fields sit beside
// projectId.
type ManifestBuildRequest struct {
	ProjectID string `json:"projectId"`
	manifest.Overrides
}

// ProjectRequest addresses one project.
type ProjectRequest struct {
	ProjectID string `json:"projectId"`
}

// ContextRequest addresses one stored document.
type ContextRequest struct {
	ProjectID string `json:"projectId"`
	Stage     string `json:"stage"`
}

// OperationRequest addresses one asynchronous operation.
type OperationRequest struct {
	OperationID string `json:"operationId"`
}

// OperationListRequest filters operation.list.
type OperationListRequest struct {
	ProjectID string   `json:"projectId,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Statuses  []string `json:"statuses,omitempty"`
}

// ManifestResponse reports a manifest.
type ManifestResponse struct {
	Success           bool            `json:"success"`
	ProjectID         string          `json:"projectId"`
	State             string          `json:"state"`
	KPIs              manifest.KPIs   `json:"kpis"`
	Issues            []string        `json:"issues"`
	ReadyForRendering bool            `json:"readyForRendering"`
	Policy            manifest.Policy `json:"policy"`
	BuiltAt           string          `json:"builtAt"`
}

// RunResponse reports a pipeline run that finished synchronously.
type RunResponse struct {
	Success    bool                    `json:"success"`
	ProjectID  string                  `json:"projectId"`
	Status     string                  `json:"status"`
	Steps      []pipeline.StepResult   `json:"steps"`
	Manifest   *ManifestResponse       `json:"manifest,omitempty"`
	Publish    *pipeline.PublishResult `json:"publish,omitempty"`
	DurationMS int64                   `json:"durationMs"`
}

// Accepted is the 202 body for work still running.
type Accepted struct {
	Success     bool                  `json:"success"`
	Status      string                `json:"status"`
	OperationID string                `json:"operationId"`
	Poll        string                `json:"poll"`
	Steps       []pipeline.StepResult `json:"steps,omitempty"`
}

// OperationResponse reports an asynchronous operation.
type OperationResponse struct {
	Success     bool            `json:"success"`
	OperationID string          `json:"operationId"`
	Kind        string          `json:"kind"`
	ProjectID   string          `json:"projectId"`
	Status      string          `json:"status"`
	Progress    string          `json:"progress,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorKind   string          `json:"errorKind,omitempty"`
	Message     string          `json:"message,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
	CompletedAt string          `json:"completedAt,omitempty"`
}

// OperationListResponse wraps recent operations and the status counts.
type OperationListResponse struct {
	Success    bool                `json:"success"`
	Operations []OperationResponse `json:"operations"`
	Counts     map[string]int      `json:"counts"`
}

// ContextResponse reports a stored document and its envelope.
type ContextResponse struct {
	Success       bool               `json:"success"`
	ProjectID     string             `json:"projectId"`
	Stage         stagedoc.StageType `json:"stage"`
	StorageTier   stagedoc.Tier      `json:"storageTier"`
	SizeBytes     int                `json:"sizeBytes"`
	RawSizeBytes  int                `json:"rawSizeBytes"`
	Compressed    bool               `json:"compressed"`
	Codec         stagedoc.Codec     `json:"codec"`
	SchemaVersion string             `json:"schemaVersion"`
	Digest        string             `json:"digest"`
	CreatedAt     string             `json:"createdAt"`
	Payload       stagedoc.Payload   `json:"payload"`
}

// ContextSummary describes a stored document without its payload.
type ContextSummary struct {
	Stage         stagedoc.StageType `json:"stage"`
	StorageTier   stagedoc.Tier      `json:"storageTier"`
	SizeBytes     int                `json:"sizeBytes"`
	RawSizeBytes  int                `json:"rawSizeBytes"`
	Compressed    bool               `json:"compressed"`
	Codec         stagedoc.Codec     `json:"codec"`
	SchemaVersion string             `json:"schemaVersion"`
	Location      string             `json:"location"`
	CreatedAt     string             `json:"createdAt"`
}

// ContextListResponse lists a project's stored documents in pipeline order.
type ContextListResponse struct {
	Success   bool             `json:"success"`
	ProjectID string           `json:"projectId"`
	Contexts  []ContextSummary `json:"contexts"`
}

// ErrorResponse is the uniform failure body.
type ErrorResponse struct {
	Success    bool               `json:"success"`
	ErrorKind  string             `json:"errorKind"`
	Message    string             `json:"message"`
	Issues     []string           `json:"issues,omitempty"`
	Violations []schema.Violation `json:"violations,omitempty"`
}

// GateFailureResponse is the 409 body of a failed gate. It carries the
// evaluated KPIs so callers need not fetch the manifest separately.
type GateFailureResponse struct {
	ErrorResponse
	ProjectID         string        `json:"projectId,omitempty"`
	KPIs              manifest.KPIs `json:"kpis,omitempty"`
	ReadyForRendering bool          `json:"readyForRendering"`
	BuiltAt           string        `json:"builtAt,omitempty"`
}

// RunFailureResponse is the body of a pipeline run that stopped early.
type RunFailureResponse struct {
	ErrorResponse
	ProjectID string                `json:"projectId"`
	Status    string                `json:"status"`
	Steps     []pipeline.StepResult `json:"steps"`
	Manifest  *ManifestResponse     `json:"manifest,omitempty"`
}

// HealthFromPreflight converts preflight results into health checks.
func HealthFromPreflight(results []preflight.Result) []HealthCheck {
	out := make([]HealthCheck, 0, len(results))
	for _, r := range results {
		out = append(out, HealthCheck{Name: r.Name, Ready: r.Passed, Detail: r.Detail, Advisory: r.Advisory})
	}
	return out
}
