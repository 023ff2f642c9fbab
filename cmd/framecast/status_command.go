package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"framecast/internal/api"
	"framecast/internal/daemonrun"
	"framecast/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show readiness checks and operation counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withInvoker(cmd, func(inv invoker) error {
				hr, err := inv.Invoke(cmd.Context(), http.MethodGet, api.OpHealth, nil)
				if err != nil {
					return err
				}
				if hr.failed() {
					return ctx.emitFailure(cmd, hr)
				}
				lr, err := inv.Invoke(cmd.Context(), http.MethodGet, api.OpOperationList, api.OperationListRequest{Limit: 1})
				if err != nil {
					return err
				}
				if lr.failed() {
					return ctx.emitFailure(cmd, lr)
				}

				var health api.HealthResponse
				if err := hr.decode(&health); err != nil {
					return err
				}
				var ops api.OperationListResponse
				if err := lr.decode(&ops); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{
						"health":     health,
						"operations": ops.Counts,
					})
				}

				out := cmd.OutOrStdout()
				p := newReport(out)

				p.section("System Status")
				p.line("Service", statusInfo, health.Service+" "+health.Version)
				readyKind := statusOK
				if !health.Ready {
					readyKind = statusError
				}
				p.line("Ready", readyKind, yesNo(health.Ready))
				if ctx.remote() {
					p.line("Daemon", statusOK, ctx.remoteURL())
				} else if pid := daemonrun.ReadPID(ctx.configValue()); pid > 0 {
					p.line("Daemon", statusOK, "running (pid "+strconv.Itoa(pid)+")")
				} else {
					p.line("Daemon", statusInfo, "not running; commands run in-process")
				}
				fmt.Fprintln(out)

				p.section("Checks")
				for _, check := range health.Checks {
					detail := check.Detail
					if detail == "" {
						detail = "ready"
					}
					p.line(check.Name, checkKind(check), detail)
				}
				fmt.Fprintln(out)

				p.section("Operations")
				rows := make([][]string, 0, 4)
				for _, status := range []queue.Status{queue.StatusPending, queue.StatusRunning, queue.StatusSucceeded, queue.StatusFailed} {
					rows = append(rows, []string{string(status), strconv.Itoa(ops.Counts[string(status)])})
				}
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, 1))
				return nil
			})
		},
	}
}
