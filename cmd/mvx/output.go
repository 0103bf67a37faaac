package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mvx/internal/pipeline"
	"mvx/internal/plan"
	"mvx/internal/services"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// palette holds the colours for result lines; it is monochrome when the
// writer is not a terminal.
type palette struct {
	ok   *color.Color
	warn *color.Color
	fail *color.Color
	dim  *color.Color
}

func newPalette(w io.Writer) palette {
	p := palette{
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		fail: color.New(color.FgRed, color.Bold),
		dim:  color.New(color.Faint),
	}
	if !isTerminal(w) {
		for _, c := range []*color.Color{p.ok, p.warn, p.fail, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

// resultJSON is the machine-readable form of one conversion outcome.
type resultJSON struct {
	Source        string        `json:"source"`
	Destination   string        `json:"destination"`
	Status        string        `json:"status"`
	Strategy      plan.Strategy `json:"strategy,omitempty"`
	Backend       string        `json:"backend,omitempty"`
	Bytes         int64         `json:"bytes,omitempty"`
	BackupPath    string        `json:"backup_path,omitempty"`
	SourceRemoved bool          `json:"source_removed,omitempty"`
	Warning       string        `json:"warning,omitempty"`
	ElapsedMS     int64         `json:"elapsed_ms"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	Error         string        `json:"error,omitempty"`
	ExitCode      int           `json:"exit_code"`
}

func newResultJSON(req pipeline.Request, out pipeline.Outcome) resultJSON {
	res := resultJSON{
		Source:        req.Source,
		Destination:   req.Destination,
		Status:        "succeeded",
		Bytes:         out.Result.Bytes,
		BackupPath:    out.Result.BackupPath,
		SourceRemoved: out.Result.SourceRemoved,
		Warning:       out.Result.Warning,
		ElapsedMS:     out.Elapsed().Milliseconds(),
		ExitCode:      services.ExitCode(out.Err),
	}
	if out.Plan != nil {
		res.Strategy = out.Plan.Strategy
		res.Backend = string(out.Plan.Backend.Tool)
	}
	if out.Err != nil {
		res.Status = "failed"
		if res.ExitCode == services.ExitCanceled {
			res.Status = "canceled"
		}
		res.ErrorKind = services.Kind(out.Err)
		res.Error = out.Err.Error()
	}
	return res
}

// printOutcome writes the one-line human summary of a successful run plus
// any warning or backup notice.
func printOutcome(w io.Writer, out pipeline.Outcome) {
	pal := newPalette(w)
	verb := "converted"
	if out.Plan != nil {
		switch out.Plan.Strategy {
		case plan.StrategyRename:
			verb = "moved"
		case plan.StrategyRemux:
			verb = "remuxed"
		case plan.StrategyTranscode:
			verb = "transcoded"
		}
		if out.Plan.Strategy == plan.StrategyRename && !out.Result.SourceRemoved {
			verb = "copied"
		}
	}
	fmt.Fprintf(w, "%s %s %s %s %s\n",
		pal.ok.Sprint("✓"),
		verb,
		out.Result.Destination,
		pal.dim.Sprintf("(%s,", humanize.Bytes(uint64(max(out.Result.Bytes, 0)))),
		pal.dim.Sprintf("%s)", formatElapsed(out.Elapsed())),
	)
	if out.Result.BackupPath != "" {
		fmt.Fprintf(w, "  previous destination kept at %s\n", out.Result.BackupPath)
	}
	if out.Result.Warning != "" {
		fmt.Fprintf(w, "  %s %s\n", pal.warn.Sprint("warning:"), out.Result.Warning)
	}
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
