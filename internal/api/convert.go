package api

import (
	"time"

	"framecast/internal/contextstore"
	"framecast/internal/manifest"
	"framecast/internal/pipeline"
	"framecast/internal/queue"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromStageResult converts a harness result.
func FromStageResult(res stage.Result) GenerateResponse {
	summary := res.Summary
	if summary == nil {
		summary = map[string]any{}
	}
	return GenerateResponse{
		Success:       true,
		ProjectID:     res.ProjectID,
		Stage:         res.Stage,
		StorageTier:   res.Head.StorageTier,
		SizeBytes:     res.Head.SizeBytes,
		Compressed:    res.Head.Compressed,
		SchemaVersion: res.Head.SchemaVersion,
		Summary:       summary,
		DurationMS:    res.Duration.Milliseconds(),
	}
}

// FromManifest converts a manifest. Success mirrors readiness.
func FromManifest(m manifest.Manifest) ManifestResponse {
	issues := m.Issues
	if issues == nil {
		issues = []string{}
	}
	return ManifestResponse{
		Success:           m.ReadyForRendering,
		ProjectID:         m.ProjectID,
		State:             string(m.State),
		KPIs:              m.KPIs,
		Issues:            issues,
		ReadyForRendering: m.ReadyForRendering,
		Policy:            m.Policy,
		BuiltAt:           formatTime(m.BuiltAt),
	}
}

// FromOperation converts a queue record.
func FromOperation(op *queue.Operation) OperationResponse {
	if op == nil {
		return OperationResponse{}
	}
	return OperationResponse{
		Success:     op.Status != queue.StatusFailed,
		OperationID: op.ID,
		Kind:        op.Kind,
		ProjectID:   op.ProjectID,
		Status:      string(op.Status),
		Progress:    op.Progress,
		Result:      op.Result,
		ErrorKind:   op.ErrorKind,
		Message:     op.ErrorMessage,
		CreatedAt:   formatTime(op.CreatedAt),
		UpdatedAt:   formatTime(op.UpdatedAt),
		CompletedAt: formatTime(op.CompletedAt),
	}
}

// FromOperations converts a slice of queue records.
func FromOperations(ops []*queue.Operation) []OperationResponse {
	out := make([]OperationResponse, 0, len(ops))
	for _, op := range ops {
		out = append(out, FromOperation(op))
	}
	return out
}

// FromDocument converts a stored document.
func FromDocument(doc stagedoc.Document) ContextResponse {
	return ContextResponse{
		Success:       true,
		ProjectID:     doc.ProjectID,
		Stage:         doc.StageType,
		StorageTier:   doc.StorageTier,
		SizeBytes:     doc.SizeBytes,
		RawSizeBytes:  doc.RawSizeBytes,
		Compressed:    doc.Compressed,
		Codec:         doc.Codec,
		SchemaVersion: doc.SchemaVersion,
		Digest:        doc.Digest,
		CreatedAt:     formatTime(doc.CreatedAt),
		Payload:       doc.Payload,
	}
}

// FromHeads converts index entries.
func FromHeads(heads []contextstore.Head) []ContextSummary {
	out := make([]ContextSummary, 0, len(heads))
	for _, h := range heads {
		out = append(out, ContextSummary{
			Stage:         h.StageType,
			StorageTier:   h.StorageTier,
			SizeBytes:     h.SizeBytes,
			RawSizeBytes:  h.RawSizeBytes,
			Compressed:    h.Compressed,
			Codec:         h.Codec,
			SchemaVersion: h.SchemaVersion,
			Location:      h.Location,
			CreatedAt:     formatTime(h.CreatedAt),
		})
	}
	return out
}

// FromRunResult converts a finished run.
func FromRunResult(res pipeline.RunResult) RunResponse {
	out := RunResponse{
		Success:    res.Status == pipeline.RunCompleted,
		ProjectID:  res.ProjectID,
		Status:     string(res.Status),
		Steps:      res.Steps,
		Publish:    res.Publish,
		DurationMS: res.DurationMS,
	}
	if res.Manifest != nil {
		m := FromManifest(*res.Manifest)
		out.Manifest = &m
	}
	return out
}

func accepted(operationID string, steps []pipeline.StepResult) Accepted {
	return Accepted{
		Success:     true,
		Status:      string(pipeline.RunAccepted),
		OperationID: operationID,
		Poll:        OpOperationStatus,
		Steps:       steps,
	}
}
