package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"framecast/internal/api"
)

func newContextCommand(ctx *commandContext) *cobra.Command {
	contextCmd := &cobra.Command{
		Use:   "context",
		Short: "Inspect stored stage documents",
	}
	contextCmd.AddCommand(newContextListCommand(ctx))
	contextCmd.AddCommand(newContextShowCommand(ctx))
	return contextCmd
}

func newContextListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <project>",
		Short: "List a project's stored documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withInvoker(cmd, func(inv invoker) error {
				r, err := inv.Invoke(cmd.Context(), http.MethodGet, api.OpContextList, api.ProjectRequest{ProjectID: args[0]})
				if err != nil {
					return err
				}
				if r.failed() {
					return ctx.emitFailure(cmd, r)
				}
				if ctx.jsonOutput() {
					return writeRawJSON(cmd, r.Body)
				}
				var list api.ContextListResponse
				if err := r.decode(&list); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list.Contexts) == 0 {
					fmt.Fprintf(out, "No documents stored for %s\n", list.ProjectID)
					return nil
				}
				rows := make([][]string, 0, len(list.Contexts))
				for _, c := range list.Contexts {
					rows = append(rows, []string{
						string(c.Stage),
						string(c.StorageTier),
						strconv.Itoa(c.SizeBytes),
						strconv.Itoa(c.RawSizeBytes),
						string(c.Codec),
						c.SchemaVersion,
						c.CreatedAt,
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Stage", "Tier", "Stored", "Raw", "Codec", "Schema", "Created"},
					rows,
					2, 3,
				))
				return nil
			})
		},
	}
}

func newContextShowCommand(ctx *commandContext) *cobra.Command {
	var payloadOnly bool
	cmd := &cobra.Command{
		Use:   "show <project> <stage>",
		Short: "Print a stored document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ContextRequest{ProjectID: args[0], Stage: args[1]}
			return ctx.withInvoker(cmd, func(inv invoker) error {
				r, err := inv.Invoke(cmd.Context(), http.MethodGet, api.OpContextGet, req)
				if err != nil {
					return err
				}
				if r.failed() {
					return ctx.emitFailure(cmd, r)
				}
				if !payloadOnly {
					return writeRawJSON(cmd, r.Body)
				}
				var doc struct {
					Payload json.RawMessage `json:"payload"`
				}
				if err := r.decode(&doc); err != nil {
					return err
				}
				return writeRawJSON(cmd, doc.Payload)
			})
		},
	}
	cmd.Flags().BoolVar(&payloadOnly, "payload", false, "Print only the stage payload")
	return cmd
}
