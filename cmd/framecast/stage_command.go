package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"framecast/internal/api"
	"framecast/internal/queue"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
)

func newStageCommand(ctx *commandContext) *cobra.Command {
	var optionsJSON string
	var optionPairs []string
	var wait bool

	names := make([]string, 0, len(stagedoc.AllStages()))
	for _, st := range stagedoc.AllStages() {
		names = append(names, string(st))
	}

	cmd := &cobra.Command{
		Use:       "stage <" + strings.Join(names, "|") + "> <project>",
		Short:     "Generate and store one stage document",
		Args:      cobra.ExactArgs(2),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := stagedoc.ParseStageType(args[0])
			if err != nil {
				return err
			}
			options, err := parseStageOptions(optionsJSON, optionPairs)
			if err != nil {
				return err
			}
			req := api.GenerateRequest{ProjectID: args[1], Options: options}
			return ctx.withInvoker(cmd, func(inv invoker) error {
				r, err := inv.Invoke(cmd.Context(), http.MethodPost, stage.GenerateOperation(st), req)
				if err != nil {
					return err
				}
				if r.failed() {
					return ctx.emitFailure(cmd, r)
				}
				if r.accepted() {
					var acc api.Accepted
					if err := r.decode(&acc); err != nil {
						return err
					}
					if ctx.remote() && !wait {
						if ctx.jsonOutput() {
							return writeRawJSON(cmd, r.Body)
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%s generation accepted as operation %s\n", st, acc.OperationID)
						return nil
					}
					op, final, err := waitForOperation(cmd.Context(), inv, acc.OperationID)
					if err != nil {
						return err
					}
					if ctx.jsonOutput() {
						if err := writeRawJSON(cmd, final.Body); err != nil {
							return err
						}
					} else {
						printOperation(cmd.OutOrStdout(), op)
					}
					if op.Status == string(queue.StatusFailed) {
						return fmt.Errorf("%s generation failed: %s", st, op.Message)
					}
					return nil
				}
				if ctx.jsonOutput() {
					return writeRawJSON(cmd, r.Body)
				}
				var res api.GenerateResponse
				if err := r.decode(&res); err != nil {
					return err
				}
				printGenerate(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&optionsJSON, "options", "", `Stage options as a JSON object, e.g. {"topic":"coral reefs"}`)
	cmd.Flags().StringArrayVarP(&optionPairs, "option", "o", nil, "Stage option as key=value (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll a handed-off generation until it finishes (remote mode)")
	return cmd
}

// parseStageOptions merges --options JSON with key=value pairs; pairs win.
// Pair values that parse as JSON keep their type, anything else is a string.
func parseStageOptions(raw string, pairs []string) (map[string]any, error) {
	options := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &options); err != nil {
			return nil, fmt.Errorf("parse --options: %w", err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --option %q: expected key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			options[key] = decoded
		} else {
			options[key] = value
		}
	}
	if len(options) == 0 {
		return nil, nil
	}
	return options, nil
}

func printGenerate(out io.Writer, res api.GenerateResponse) {
	fmt.Fprintf(out, "Stored %s for %s (%s, %d bytes, schema %s, %s)\n",
		res.Stage, res.ProjectID, res.StorageTier, res.SizeBytes, res.SchemaVersion, formatMillis(res.DurationMS))
	if detail := summarize(res.Summary); detail != "" {
		fmt.Fprintf(out, "  %s\n", detail)
	}
}
