package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mvx/internal/deps"
)

// dependencyTools lists tools in the order deps.Requirements reports them.
var dependencyTools = []deps.Tool{
	deps.ToolFFmpeg,
	deps.ToolFFprobe,
	deps.ToolImageMagick,
	deps.ToolImageMagickLegacy,
	deps.ToolLibreOffice,
}

var toolStrategies = map[deps.Tool]string{
	deps.ToolFFmpeg:            "remux, transcode",
	deps.ToolFFprobe:           "remux eligibility",
	deps.ToolImageMagick:       "convert (images)",
	deps.ToolImageMagickLegacy: "convert (images)",
	deps.ToolLibreOffice:       "convert (documents)",
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Report which external tools are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sys := deps.NewSystem(toolCommands(cfg))
			statuses := deps.CheckBinaries(deps.Requirements(sys))
			if asJSON {
				return writeJSON(cmd, statuses)
			}

			pal := newPalette(cmd.OutOrStdout())
			rows := make([][]string, 0, len(statuses))
			var hints []string
			for i, status := range statuses {
				state := pal.ok.Sprint("available")
				location := status.Path
				if !status.Available {
					state = pal.fail.Sprint("missing")
					if status.Optional {
						state = pal.warn.Sprint("missing (optional)")
					}
					location = status.Detail
					if i < len(dependencyTools) {
						hints = append(hints, fmt.Sprintf("%s: %s", status.Name, deps.InstallHint(dependencyTools[i])))
					}
				}
				var used string
				if i < len(dependencyTools) {
					used = toolStrategies[dependencyTools[i]]
				}
				rows = append(rows, []string{status.Name, status.Command, state, location, used})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Tool", "Command", "Status", "Path", "Used by"}, rows, nil))
			if len(hints) > 0 {
				fmt.Fprintln(out, "Install hints:")
				fmt.Fprintln(out, "  "+strings.Join(hints, "\n  "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	return cmd
}
