package main

import (
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"

	"github.com/spf13/cobra"

	"framecast/internal/api"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Build or inspect production manifests",
	}
	manifestCmd.AddCommand(newManifestBuildCommand(ctx))
	manifestCmd.AddCommand(newManifestShowCommand(ctx))
	return manifestCmd
}

func newManifestBuildCommand(ctx *commandContext) *cobra.Command {
	var policy policyFlags
	cmd := &cobra.Command{
		Use:   "build <project>",
		Short: "Evaluate the quality gate and record a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ManifestBuildRequest{ProjectID: args[0], Overrides: policy.overrides(cmd)}
			return ctx.withInvoker(cmd, func(inv invoker) error {
				r, err := inv.Invoke(cmd.Context(), http.MethodPost, api.OpManifestBuild, req)
				if err != nil {
					return err
				}
				if r.failed() {
					if !ctx.jsonOutput() {
						var gate api.GateFailureResponse
						if err := r.decode(&gate); err == nil && gate.ProjectID != "" {
							printKPIs(cmd.OutOrStdout(), gate.KPIs)
						}
					}
					return ctx.emitFailure(cmd, r)
				}
				return showManifest(cmd, ctx, r)
			})
		},
	}
	policy.register(cmd)
	return cmd
}

func newManifestShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project>",
		Short: "Show the latest manifest for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withInvoker(cmd, func(inv invoker) error {
				r, err := inv.Invoke(cmd.Context(), http.MethodGet, api.OpManifestGet, api.ProjectRequest{ProjectID: args[0]})
				if err != nil {
					return err
				}
				if r.failed() {
					return ctx.emitFailure(cmd, r)
				}
				return showManifest(cmd, ctx, r)
			})
		},
	}
}

func showManifest(cmd *cobra.Command, ctx *commandContext, r reply) error {
	if ctx.jsonOutput() {
		return writeRawJSON(cmd, r.Body)
	}
	var m api.ManifestResponse
	if err := r.decode(&m); err != nil {
		return err
	}
	printManifest(cmd.OutOrStdout(), m)
	return nil
}

func printManifest(out io.Writer, m api.ManifestResponse) {
	p := newReport(out)
	p.section("Manifest "+m.ProjectID)
	kind := statusOK
	if !m.ReadyForRendering {
		kind = statusError
	}
	p.line("State", kind, m.State)
	p.line("Ready for rendering", kind, yesNo(m.ReadyForRendering))
	p.line("Built", statusInfo, m.BuiltAt)
	p.line("Policy", statusInfo, fmt.Sprintf("min visuals %d, placeholders %s, max drift %.1fs",
		m.Policy.MinVisualsPerScene, yesNo(m.Policy.AllowPlaceholders), m.Policy.MaxAudioDriftSeconds))
	printKPIs(out, m.KPIs)
	for _, issue := range m.Issues {
		fmt.Fprintf(out, "  - %s\n", issue)
	}
}

func printKPIs(out io.Writer, kpis map[string]any) {
	if len(kpis) == 0 {
		return
	}
	rows := make([][]string, 0, len(kpis))
	for _, key := range slices.Sorted(maps.Keys(kpis)) {
		rows = append(rows, []string{key, fmt.Sprint(kpis[key])})
	}
	fmt.Fprint(out, renderTable([]string{"KPI", "Value"}, rows, 1))
}
