package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mvx/internal/pipeline"
	"mvx/internal/plan"
	"mvx/internal/progress"
)

func runConvert(cmd *cobra.Command, ctx *commandContext, source, destination string, conv *conversionFlags, out *outputFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	flags, err := conv.resolve(cmd, cfg)
	if err != nil {
		return err
	}
	runner, closeRunner, err := ctx.openRunner()
	if err != nil {
		return err
	}
	defer closeRunner()

	req := pipeline.Request{
		Source:      strings.TrimSpace(source),
		Destination: strings.TrimSpace(destination),
		Flags:       flags,
	}

	if out.planOnly {
		p, err := runner.Plan(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printPlan(cmd, p, out.json)
	}

	var view *progressView
	if !out.json {
		view = newProgressView(cmd.ErrOrStderr(), filepath.Base(req.Destination))
	}
	sink, stop := attachView(view)
	outcome, err := runner.Run(cmd.Context(), req, sink)
	stop()

	if out.json {
		if encErr := writeJSON(cmd, newResultJSON(req, outcome)); encErr != nil {
			return encErr
		}
		return err
	}
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), outcome)
	return nil
}

func printPlan(cmd *cobra.Command, p plan.Plan, asJSON bool) error {
	preview := p.Preview()
	if asJSON {
		return writeJSON(cmd, preview)
	}
	rows := make([][]string, 0, 12)
	for _, row := range preview.Rows() {
		rows = append(rows, []string{row.Label, row.Value})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderKeyValue(rows))
	return nil
}

func attachView(view *progressView) (*progress.Sink, func()) {
	if view == nil {
		return nil, func() {}
	}
	return view.attach()
}
