package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"framecast/internal/api"
	"framecast/internal/manifest"
	"framecast/internal/pipeline"
	"framecast/internal/queue"
	"framecast/internal/services"
)

const pollInterval = 250 * time.Millisecond

// policyFlags are the quality-gate overrides shared by run and manifest build.
type policyFlags struct {
	preset            string
	minVisuals        int
	allowPlaceholders bool
	requireMaster     bool
	maxDrift          float64
}

func (p *policyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.preset, "preset", "", "Named policy preset from policy.policy_file")
	cmd.Flags().IntVar(&p.minVisuals, "min-visuals", 0, "Minimum real visuals per scene")
	cmd.Flags().BoolVar(&p.allowPlaceholders, "allow-placeholders", false, "Let placeholder visuals count toward the minimum")
	cmd.Flags().BoolVar(&p.requireMaster, "require-master-audio", false, "Fail the gate when no master audio track exists")
	cmd.Flags().Float64Var(&p.maxDrift, "max-drift", 0, "Maximum allowed audio drift in seconds")
}

// overrides returns only the flags the user set, so unset flags fall back
// to the configured policy.
func (p *policyFlags) overrides(cmd *cobra.Command) manifest.Overrides {
	var out manifest.Overrides
	flags := cmd.Flags()
	if flags.Changed("preset") {
		out.Preset = strings.TrimSpace(p.preset)
	}
	if flags.Changed("min-visuals") {
		value := p.minVisuals
		out.MinVisualsPerScene = &value
	}
	if flags.Changed("allow-placeholders") {
		value := p.allowPlaceholders
		out.AllowPlaceholders = &value
	}
	if flags.Changed("require-master-audio") {
		value := p.requireMaster
		out.RequireMasterAudio = &value
	}
	if flags.Changed("max-drift") {
		value := p.maxDrift
		out.MaxAudioDriftSeconds = &value
	}
	return out
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var topic string
	var optionsJSON string
	var async bool
	var wait bool
	var policy policyFlags

	cmd := &cobra.Command{
		Use:   "run <project>",
		Short: "Run the full pipeline for a project",
		Long: "Run topic, scene, media, audio and assembly generation, build the manifest, " +
			"and publish when the quality gate passes.\n\n" +
			"In-process runs always wait for handed-off work; with --remote pass --wait to poll.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.RunRequest{
				ProjectID: args[0],
				Topic:     strings.TrimSpace(topic),
				Policy:    policy.overrides(cmd),
				Async:     async,
			}
			if strings.TrimSpace(optionsJSON) != "" {
				if err := json.Unmarshal([]byte(optionsJSON), &req.Options); err != nil {
					return fmt.Errorf("parse --options: expected an object keyed by stage: %w", err)
				}
			}
			return ctx.withInvoker(cmd, func(inv invoker) error {
				r, err := inv.Invoke(cmd.Context(), http.MethodPost, api.OpPipelineRun, req)
				if err != nil {
					return err
				}
				if r.failed() {
					if !ctx.jsonOutput() {
						var failure api.RunFailureResponse
						if err := r.decode(&failure); err == nil && len(failure.Steps) > 0 {
							printSteps(cmd.OutOrStdout(), failure.Steps)
						}
					}
					return ctx.emitFailure(cmd, r)
				}
				if !r.accepted() {
					if ctx.jsonOutput() {
						return writeRawJSON(cmd, r.Body)
					}
					var res api.RunResponse
					if err := r.decode(&res); err != nil {
						return err
					}
					printRunResponse(cmd.OutOrStdout(), res)
					return nil
				}

				var acc api.Accepted
				if err := r.decode(&acc); err != nil {
					return err
				}
				if !ctx.remote() || wait {
					fmt.Fprintf(cmd.ErrOrStderr(), "Run handed off as operation %s; waiting...\n", acc.OperationID)
					return awaitRun(cmd, ctx, inv, acc.OperationID)
				}
				if ctx.jsonOutput() {
					return writeRawJSON(cmd, r.Body)
				}
				out := cmd.OutOrStdout()
				if len(acc.Steps) > 0 {
					printSteps(out, acc.Steps)
				}
				fmt.Fprintf(out, "Run accepted as operation %s\n", acc.OperationID)
				fmt.Fprintf(out, "Check progress with: framecast operation show %s\n", acc.OperationID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Documentary topic (overrides options.topic.topic)")
	cmd.Flags().StringVar(&optionsJSON, "options", "", `Per-stage options as JSON, e.g. {"topic":{"topic":"coral reefs"}}`)
	cmd.Flags().BoolVar(&async, "async", false, "Hand the whole run to the background executor")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll a handed-off run until it finishes (remote mode)")
	policy.register(cmd)
	return cmd
}

// awaitRun polls a pipeline operation and prints its final result.
func awaitRun(cmd *cobra.Command, ctx *commandContext, inv invoker, id string) error {
	op, r, err := waitForOperation(cmd.Context(), inv, id)
	if err != nil {
		return err
	}
	if ctx.jsonOutput() {
		if err := writeRawJSON(cmd, r.Body); err != nil {
			return err
		}
	} else {
		var res pipeline.RunResult
		if len(op.Result) > 0 && json.Unmarshal(op.Result, &res) == nil && len(res.Steps) > 0 {
			printRunResult(cmd.OutOrStdout(), res)
		} else {
			printOperation(cmd.OutOrStdout(), op)
		}
	}
	if op.Status == string(queue.StatusFailed) {
		return &responseError{Status: api.StatusFor(services.ErrorKind(op.ErrorKind)), ErrorResponse: api.ErrorResponse{
			ErrorKind: op.ErrorKind,
			Message:   op.Message,
		}}
	}
	return nil
}

// waitForOperation polls operation.status until the operation is terminal.
func waitForOperation(ctx context.Context, inv invoker, id string) (api.OperationResponse, reply, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		r, err := inv.Invoke(ctx, http.MethodGet, api.OpOperationStatus, api.OperationRequest{OperationID: id})
		if err != nil {
			return api.OperationResponse{}, reply{}, err
		}
		if r.failed() {
			return api.OperationResponse{}, r, r.err()
		}
		var op api.OperationResponse
		if err := r.decode(&op); err != nil {
			return api.OperationResponse{}, r, err
		}
		if status, ok := queue.ParseStatus(op.Status); ok && status.Terminal() {
			return op, r, nil
		}
		select {
		case <-ctx.Done():
			return op, r, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printRunResponse(out io.Writer, res api.RunResponse) {
	printSteps(out, res.Steps)
	fmt.Fprintf(out, "Project %s: %s (%s)\n", res.ProjectID, res.Status, formatMillis(res.DurationMS))
	if res.Manifest != nil {
		fmt.Fprintf(out, "Manifest: %s, ready for rendering: %s\n", res.Manifest.State, yesNo(res.Manifest.ReadyForRendering))
	}
	if res.Publish != nil {
		fmt.Fprintf(out, "Published to %s\n", res.Publish.PublishedURI)
	}
}

func printRunResult(out io.Writer, res pipeline.RunResult) {
	printSteps(out, res.Steps)
	fmt.Fprintf(out, "Project %s: %s (%s)\n", res.ProjectID, res.Status, formatMillis(res.DurationMS))
	if res.Manifest != nil {
		fmt.Fprintf(out, "Manifest: %s, ready for rendering: %s\n", res.Manifest.State, yesNo(res.Manifest.ReadyForRendering))
		for _, issue := range res.Manifest.Issues {
			fmt.Fprintf(out, "  - %s\n", issue)
		}
	}
	if res.Publish != nil {
		fmt.Fprintf(out, "Published to %s\n", res.Publish.PublishedURI)
	}
}

func printSteps(out io.Writer, steps []pipeline.StepResult) {
	r := newReport(out)
	rows := make([][]string, 0, len(steps))
	for _, step := range steps {
		detail := step.Message
		if detail == "" {
			detail = summarize(step.Summary)
		}
		rows = append(rows, []string{
			step.Step,
			r.paint(kindStyles[stepKind(step.Status)].color, step.Status),
			yesNo(step.Required),
			formatMillis(step.DurationMS),
			detail,
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Step", "Status", "Required", "Duration", "Detail"},
		rows,
		3,
	))
}

// summarize renders a stage summary as sorted key=value pairs.
func summarize(summary map[string]any) string {
	if len(summary) == 0 {
		return ""
	}
	keys := slices.Sorted(maps.Keys(summary))
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, summary[key]))
	}
	return strings.Join(parts, " ")
}

func formatMillis(ms int64) string {
	if ms < 1000 {
		return strconv.FormatInt(ms, 10) + "ms"
	}
	return (time.Duration(ms) * time.Millisecond).Round(100 * time.Millisecond).String()
}
