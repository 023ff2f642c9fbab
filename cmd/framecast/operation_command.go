package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"framecast/internal/api"
	"framecast/internal/queue"
)

func newOperationCommand(ctx *commandContext) *cobra.Command {
	operationCmd := &cobra.Command{
		Use:     "operation [id]",
		Aliases: []string{"op"},
		Short:   "Inspect background operations",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return showOperation(cmd, ctx, args[0], false)
		},
	}
	operationCmd.AddCommand(newOperationShowCommand(ctx))
	operationCmd.AddCommand(newOperationListCommand(ctx))
	return operationCmd
}

func newOperationShowCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showOperation(cmd, ctx, args[0], wait)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the operation finishes")
	return cmd
}

func showOperation(cmd *cobra.Command, ctx *commandContext, id string, wait bool) error {
	return ctx.withInvoker(cmd, func(inv invoker) error {
		var op api.OperationResponse
		var r reply
		var err error
		if wait {
			op, r, err = waitForOperation(cmd.Context(), inv, id)
			if err != nil {
				if r.failed() {
					return ctx.emitFailure(cmd, r)
				}
				return err
			}
		} else {
			r, err = inv.Invoke(cmd.Context(), http.MethodGet, api.OpOperationStatus, api.OperationRequest{OperationID: id})
			if err != nil {
				return err
			}
			if r.failed() {
				return ctx.emitFailure(cmd, r)
			}
			if err := r.decode(&op); err != nil {
				return err
			}
		}
		if ctx.jsonOutput() {
			return writeRawJSON(cmd, r.Body)
		}
		printOperation(cmd.OutOrStdout(), op)
		return nil
	})
}

func newOperationListCommand(ctx *commandContext) *cobra.Command {
	var projectID string
	var limit int
	var statuses []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range statuses {
				if _, ok := queue.ParseStatus(s); !ok {
					return fmt.Errorf("invalid --status %q", s)
				}
			}
			req := api.OperationListRequest{ProjectID: strings.TrimSpace(projectID), Limit: limit, Statuses: statuses}
			return ctx.withInvoker(cmd, func(inv invoker) error {
				r, err := inv.Invoke(cmd.Context(), http.MethodGet, api.OpOperationList, req)
				if err != nil {
					return err
				}
				if r.failed() {
					return ctx.emitFailure(cmd, r)
				}
				if ctx.jsonOutput() {
					return writeRawJSON(cmd, r.Body)
				}
				var list api.OperationListResponse
				if err := r.decode(&list); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list.Operations) == 0 {
					fmt.Fprintln(out, "No operations")
					return nil
				}
				rows := make([][]string, 0, len(list.Operations))
				for _, op := range list.Operations {
					rows = append(rows, []string{op.OperationID, op.Kind, op.ProjectID, op.Status, op.Progress, op.UpdatedAt})
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Kind", "Project", "Status", "Progress", "Updated"},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Only operations for this project")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum operations to list")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (pending, running, succeeded, failed)")
	return cmd
}

func printOperation(out io.Writer, op api.OperationResponse) {
	p := newReport(out)
	p.section("Operation "+op.OperationID)
	p.line("Kind", statusInfo, op.Kind)
	p.line("Project", statusInfo, op.ProjectID)
	p.line("Status", operationKind(op.Status), op.Status)
	if op.Progress != "" {
		p.line("Progress", statusInfo, op.Progress)
	}
	if op.Message != "" {
		p.line("Error", statusError, op.ErrorKind+": "+op.Message)
	}
	p.line("Created", statusInfo, op.CreatedAt)
	if op.CompletedAt != "" {
		p.line("Completed", statusInfo, op.CompletedAt)
	}
}

func operationKind(status string) statusKind {
	switch queue.Status(status) {
	case queue.StatusSucceeded:
		return statusOK
	case queue.StatusFailed:
		return statusError
	case queue.StatusRunning:
		return statusInfo
	default:
		return statusWarn
	}
}
