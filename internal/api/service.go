package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"framecast/internal/contextstore"
	"framecast/internal/logging"
	"framecast/internal/manifest"
	"framecast/internal/pipeline"
	"framecast/internal/preflight"
	"framecast/internal/queue"
	"framecast/internal/services"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
	"framecast/internal/textutil"
)

// ServiceName identifies framecast in health responses.
const ServiceName = "framecast"

// ContextReader loads stored stage documents.
type ContextReader interface {
	Retrieve(ctx context.Context, projectID string, st stagedoc.StageType) (stagedoc.Document, error)
	List(ctx context.Context, projectID string) ([]contextstore.Head, error)
}

// OperationLister lists recorded operations.
type OperationLister interface {
	List(ctx context.Context, projectID string, limit int, statuses ...queue.Status) ([]*queue.Operation, error)
	Summary(ctx context.Context) (queue.Summary, error)
}

// Deps are the collaborators behind the contract.
type Deps struct {
	Coordinator *pipeline.Coordinator
	Gate        *manifest.Service
	Contexts    ContextReader
	Operations  OperationLister
	// Preflight runs the environment checks reported by health.
	Preflight func(context.Context) []preflight.Result
	Version   string
}

// FromRuntime wires a Service over every runtime component.
func FromRuntime(rt *pipeline.Runtime, version string, logger *slog.Logger) *Service {
	cfg := rt.Config
	return NewService(Deps{
		Coordinator: rt.Coordinator,
		Gate:        rt.Gate,
		Contexts:    rt.Contexts,
		Operations:  rt.Queue,
		Preflight: func(ctx context.Context) []preflight.Result {
			return preflight.RunAll(ctx, cfg)
		},
		Version: version,
	}, logger)
}

type handlerFunc func(ctx context.Context, body json.RawMessage) Response

type route struct {
	method  string
	handler handlerFunc
}

// Service dispatches Requests to operations.
type Service struct {
	deps   Deps
	routes map[string]route
	logger *slog.Logger
}

// NewService builds the operation table.
func NewService(deps Deps, logger *slog.Logger) *Service {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	s := &Service{
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "api"),
	}
	s.routes = map[string]route{
		OpHealth:          {http.MethodGet, s.health},
		OpManifestBuild:   {http.MethodPost, s.manifestBuild},
		OpManifestGet:     {http.MethodGet, s.manifestGet},
		OpPipelineRun:     {http.MethodPost, s.pipelineRun},
		OpOperationStatus: {http.MethodGet, s.operationStatus},
		OpOperationList:   {http.MethodGet, s.operationList},
		OpContextGet:      {http.MethodGet, s.contextGet},
		OpContextList:     {http.MethodGet, s.contextList},
	}
	for _, st := range stagedoc.AllStages() {
		s.routes[stage.GenerateOperation(st)] = route{http.MethodPost, s.generate(st)}
	}
	return s
}

// Operations lists the recognized operation names in sorted order.
func (s *Service) Operations() []string {
	names := make([]string, 0, len(s.routes))
	for name := range s.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle runs one request. It never returns a nil body.
func (s *Service) Handle(ctx context.Context, req Request) Response {
	started := time.Now()
	op := strings.TrimSpace(req.Operation)
	rt, ok := s.routes[op]
	if !ok {
		return badRequest(http.StatusBadRequest, fmt.Sprintf("unknown operation %q", op))
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = rt.method
	}
	if method != rt.method {
		return badRequest(http.StatusMethodNotAllowed, fmt.Sprintf("%s requires %s", op, rt.method))
	}

	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	resp := rt.handler(ctx, req.Body)

	logger := logging.WithContext(ctx, s.logger)
	attrs := []logging.Attr{
		logging.String("operation", op),
		logging.Int("status", resp.Status),
		logging.Duration("duration", time.Since(started)),
	}
	if resp.Status >= http.StatusInternalServerError {
		logger.Warn("api request failed", logging.Args(attrs...)...)
	} else {
		logger.Debug("api request", logging.Args(attrs...)...)
	}
	return resp
}

func decode(body json.RawMessage, into any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}

func malformed(err error) Response {
	return badRequest(http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
}

func (s *Service) health(ctx context.Context, _ json.RawMessage) Response {
	out := HealthResponse{Service: ServiceName, Version: s.deps.Version, Ready: true, Checks: []HealthCheck{}}
	if s.deps.Coordinator != nil {
		for _, h := range s.deps.Coordinator.Health(ctx) {
			out.Checks = append(out.Checks, HealthCheck{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
		}
	}
	if s.deps.Preflight != nil {
		out.Checks = append(out.Checks, HealthFromPreflight(s.deps.Preflight(ctx))...)
	}
	for _, check := range out.Checks {
		if !check.Ready && !check.Advisory {
			out.Ready = false
		}
	}
	return Response{Status: http.StatusOK, Body: out}
}

func (s *Service) generate(st stagedoc.StageType) handlerFunc {
	return func(ctx context.Context, body json.RawMessage) Response {
		var in GenerateRequest
		if err := decode(body, &in); err != nil {
			return malformed(err)
		}
		outcome, err := s.deps.Coordinator.RunStage(ctx, st, stage.Request{
			ProjectID: in.ProjectID,
			Options:   stage.Options(in.Options),
		})
		if err != nil {
			return errorResponse(err)
		}
		if outcome.Operation != nil {
			return Response{Status: http.StatusAccepted, Body: accepted(outcome.Operation.ID, nil)}
		}
		return Response{Status: http.StatusOK, Body: FromStageResult(*outcome.Result)}
	}
}

func (s *Service) manifestBuild(ctx context.Context, body json.RawMessage) Response {
	var in ManifestBuildRequest
	if err := decode(body, &in); err != nil {
		return malformed(err)
	}
	m, err := s.deps.Gate.Build(services.WithProjectID(ctx, in.ProjectID), in.ProjectID, in.Overrides)
	if errors.Is(err, services.ErrQualityGate) && m.ProjectID != "" {
		return gateFailure(m, err)
	}
	if err != nil {
		return errorResponse(err)
	}
	return Response{Status: http.StatusOK, Body: FromManifest(m)}
}

func (s *Service) manifestGet(_ context.Context, body json.RawMessage) Response {
	var in ProjectRequest
	if err := decode(body, &in); err != nil {
		return malformed(err)
	}
	m, err := s.deps.Gate.Latest(in.ProjectID)
	if err != nil {
		return errorResponse(err)
	}
	return Response{Status: http.StatusOK, Body: FromManifest(m)}
}

func (s *Service) pipelineRun(ctx context.Context, body json.RawMessage) Response {
	var in pipeline.RunRequest
	if err := decode(body, &in); err != nil {
		return malformed(err)
	}
	res, err := s.deps.Coordinator.Run(ctx, in)
	if err != nil {
		if res.ProjectID == "" {
			return errorResponse(err)
		}
		out := RunFailureResponse{
			ErrorResponse: NewErrorResponse(err),
			ProjectID:     res.ProjectID,
			Status:        string(res.Status),
			Steps:         res.Steps,
		}
		if res.Manifest != nil {
			m := FromManifest(*res.Manifest)
			out.Manifest = &m
		}
		return Response{Status: StatusFor(services.KindOf(err)), Body: out}
	}
	if res.Status == pipeline.RunAccepted {
		return Response{Status: http.StatusAccepted, Body: accepted(res.OperationID, res.Steps)}
	}
	return Response{Status: http.StatusOK, Body: FromRunResult(res)}
}

func (s *Service) operationStatus(ctx context.Context, body json.RawMessage) Response {
	var in OperationRequest
	if err := decode(body, &in); err != nil {
		return malformed(err)
	}
	id := strings.TrimSpace(in.OperationID)
	if id == "" {
		return errorResponse(services.Wrap(services.ErrValidation, "operation", "status", "operationId is required", nil))
	}
	op, err := s.deps.Coordinator.Operation(ctx, id)
	if err != nil {
		return errorResponse(err)
	}
	return Response{Status: http.StatusOK, Body: FromOperation(op)}
}

func (s *Service) operationList(ctx context.Context, body json.RawMessage) Response {
	var in OperationListRequest
	if err := decode(body, &in); err != nil {
		return malformed(err)
	}
	if s.deps.Operations == nil {
		return errorResponse(services.Wrap(services.ErrConfiguration, "operation", "list", "operations store unavailable", nil))
	}
	statuses := make([]queue.Status, 0, len(in.Statuses))
	for _, raw := range in.Statuses {
		st, ok := queue.ParseStatus(strings.ToLower(strings.TrimSpace(raw)))
		if !ok {
			return errorResponse(services.Wrap(services.ErrValidation, "operation", "list",
				fmt.Sprintf("unknown status %q", raw), nil))
		}
		statuses = append(statuses, st)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	ops, err := s.deps.Operations.List(ctx, strings.TrimSpace(in.ProjectID), limit, statuses...)
	if err != nil {
		return errorResponse(err)
	}
	summary, err := s.deps.Operations.Summary(ctx)
	if err != nil {
		return errorResponse(err)
	}
	return Response{Status: http.StatusOK, Body: OperationListResponse{
		Success:    true,
		Operations: FromOperations(ops),
		Counts: map[string]int{
			string(queue.StatusPending):   summary.Pending,
			string(queue.StatusRunning):   summary.Running,
			string(queue.StatusSucceeded): summary.Succeeded,
			string(queue.StatusFailed):    summary.Failed,
		},
	}}
}

func (s *Service) contextGet(ctx context.Context, body json.RawMessage) Response {
	var in ContextRequest
	if err := decode(body, &in); err != nil {
		return malformed(err)
	}
	if err := textutil.ValidateProjectID(in.ProjectID); err != nil {
		return errorResponse(services.Wrap(services.ErrValidation, "context", "get", "", err))
	}
	st, err := stagedoc.ParseStageType(in.Stage)
	if err != nil {
		return errorResponse(services.Wrap(services.ErrValidation, "context", "get", "", err))
	}
	doc, err := s.deps.Contexts.Retrieve(ctx, in.ProjectID, st)
	if err != nil {
		return errorResponse(err)
	}
	return Response{Status: http.StatusOK, Body: FromDocument(doc)}
}

func (s *Service) contextList(ctx context.Context, body json.RawMessage) Response {
	var in ProjectRequest
	if err := decode(body, &in); err != nil {
		return malformed(err)
	}
	if err := textutil.ValidateProjectID(in.ProjectID); err != nil {
		return errorResponse(services.Wrap(services.ErrValidation, "context", "list", "", err))
	}
	heads, err := s.deps.Contexts.List(ctx, in.ProjectID)
	if err != nil {
		return errorResponse(err)
	}
	return Response{Status: http.StatusOK, Body: ContextListResponse{
		Success:   true,
		ProjectID: in.ProjectID,
		Contexts:  FromHeads(heads),
	}}
}
