package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mvx/internal/batch"
	"mvx/internal/logging"
	"mvx/internal/pipeline"
	"mvx/internal/plan"
	"mvx/internal/progress"
	"mvx/internal/services"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	conv := &conversionFlags{}
	out := &outputFlags{}
	var destDir string
	var toExt string
	var recursive bool
	var fromStdin bool
	var jobs int

	cmd := &cobra.Command{
		Use:   "batch [INPUT...]",
		Short: "Convert many files into a destination directory",
		Long: `Inputs may be files, directories, or glob patterns. With --stdin, newline
separated paths are read from standard input as well. Each input is written
to --dest-dir under its own name, with the extension replaced by --to-ext
when given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags, err := conv.resolve(cmd, cfg)
			if err != nil {
				return err
			}
			if strings.TrimSpace(destDir) == "" {
				return services.Wrap(services.ErrInvalidOption, "batch", "flags", "--dest-dir is required", nil)
			}
			if !cmd.Flags().Changed("jobs") {
				jobs = cfg.Batch.Jobs
			}
			if jobs < 1 {
				return services.Wrap(services.ErrInvalidOption, "batch", "flags", fmt.Sprintf("--jobs must be at least 1, got %d", jobs), nil)
			}

			inputs := append([]string(nil), args...)
			if fromStdin {
				lines, err := batch.ReadLines(cmd.InOrStdin())
				if err != nil {
					return err
				}
				inputs = append(inputs, lines...)
			}
			sources, err := batch.Collect(inputs, recursive)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return services.Wrap(services.ErrInvalidOption, "batch", "collect", "no input files", nil)
			}
			absDest, err := filepath.Abs(destDir)
			if err != nil {
				return fmt.Errorf("resolve destination directory: %w", err)
			}
			items := batch.Pair(sources, batch.Target{DestDir: absDest, Ext: toExt})

			runner, closeRunner, err := ctx.openRunner()
			if err != nil {
				return err
			}
			defer closeRunner()

			opts := pipeline.BatchOptions{Flags: flags, Jobs: jobs, PlanOnly: out.planOnly}
			if !out.json && !out.planOnly {
				opts.Observer = newBatchReporter(cmd.ErrOrStderr(), len(items), jobs)
			}
			summary, runErr := runner.RunBatch(cmd.Context(), items, opts)

			switch {
			case out.json:
				if err := writeJSON(cmd, newBatchJSON(summary)); err != nil {
					return err
				}
			case out.planOnly:
				printBatchPlans(cmd.OutOrStdout(), summary)
			default:
				printBatchSummary(cmd.OutOrStdout(), summary)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&destDir, "dest-dir", "d", "", "Directory receiving the outputs (required)")
	cmd.Flags().StringVarP(&toExt, "to-ext", "t", "", "Destination extension, e.g. mp4")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into input directories")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Also read newline separated input paths from stdin")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 1, "Concurrent conversions (default from config)")
	conv.register(cmd)
	out.register(cmd)
	return cmd
}

// batchReporter prints per-item lifecycle lines. A single worker gets a
// full progress view; parallel workers share sampled progress lines.
type batchReporter struct {
	mu       sync.Mutex
	w        io.Writer
	total    int
	single   bool
	pal      palette
	views    map[int]*progressView
	samplers map[int]*logging.ProgressSampler
}

func newBatchReporter(w io.Writer, total, jobs int) *batchReporter {
	return &batchReporter{
		w:        w,
		total:    total,
		single:   jobs == 1,
		pal:      newPalette(w),
		views:    make(map[int]*progressView),
		samplers: make(map[int]*logging.ProgressSampler),
	}
}

func (r *batchReporter) prefix(item batch.Item) string {
	return fmt.Sprintf("[%d/%d]", item.Index, r.total)
}

func (r *batchReporter) ItemStarted(item batch.Item, p plan.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s %s %s -> %s\n", r.pal.dim.Sprint(r.prefix(item)), p.Strategy.Label(), filepath.Base(item.Source), item.Destination)
	if r.single {
		r.views[item.Index] = newProgressView(r.w, r.prefix(item)+" "+filepath.Base(item.Destination))
	} else {
		r.samplers[item.Index] = logging.NewProgressSampler(25)
	}
}

func (r *batchReporter) ItemProgress(item batch.Item, ev progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if view, ok := r.views[item.Index]; ok {
		view.handle(ev)
		return
	}
	sampler, ok := r.samplers[item.Index]
	if !ok {
		return
	}
	percent := -1.0
	if ev.Determinate {
		percent = ev.Percent()
	}
	if sampler.ShouldLog(percent, "") {
		fmt.Fprintf(r.w, "%s %s\n", r.pal.dim.Sprint(r.prefix(item)), describeEvent(ev))
	}
}

func (r *batchReporter) ItemFinished(res pipeline.ItemResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if view, ok := r.views[res.Item.Index]; ok {
		view.finish()
		delete(r.views, res.Item.Index)
	}
	delete(r.samplers, res.Item.Index)
	if res.Err != nil {
		fmt.Fprintf(r.w, "%s %s %s: %v\n", r.pal.dim.Sprint(r.prefix(res.Item)), r.pal.fail.Sprint("✗"), res.Item.Source, res.Err)
		return
	}
	fmt.Fprintf(r.w, "%s %s %s %s\n", r.pal.dim.Sprint(r.prefix(res.Item)), r.pal.ok.Sprint("✓"), res.Outcome.Result.Destination,
		r.pal.dim.Sprintf("(%s)", humanize.Bytes(uint64(max(res.Outcome.Result.Bytes, 0)))))
	if warning := res.Outcome.Result.Warning; warning != "" {
		fmt.Fprintf(r.w, "  %s %s\n", r.pal.warn.Sprint("warning:"), warning)
	}
}

func printBatchSummary(w io.Writer, summary pipeline.Summary) {
	pal := newPalette(w)
	var written int64
	for _, item := range summary.Items {
		written += item.Outcome.Result.Bytes
	}
	line := fmt.Sprintf("%d succeeded, %d failed, %d skipped of %d in %s (%s written)",
		summary.Succeeded, summary.Failed, summary.Skipped, summary.Total,
		formatElapsed(summary.Elapsed), humanize.Bytes(uint64(max(written, 0))))
	switch {
	case summary.Failed > 0 || summary.Canceled:
		fmt.Fprintln(w, pal.warn.Sprint(line))
	default:
		fmt.Fprintln(w, pal.ok.Sprint(line))
	}

	failures := summary.Failures()
	if len(failures) == 0 {
		return
	}
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{
			fmt.Sprintf("%d", f.Item.Index),
			f.Item.Source,
			services.Kind(f.Err),
			f.Err.Error(),
		})
	}
	fmt.Fprintln(w, renderTable([]string{"#", "Source", "Kind", "Error"}, rows, []columnAlignment{alignRight}))
}

func printBatchPlans(w io.Writer, summary pipeline.Summary) {
	for i, item := range summary.Items {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# %d/%d %s\n", item.Item.Index, summary.Total, item.Item.Source)
		if item.Err != nil {
			fmt.Fprintf(w, "error: %v\n", item.Err)
			continue
		}
		if item.Plan == nil {
			continue
		}
		for _, line := range item.Plan.Preview().Lines() {
			fmt.Fprintln(w, line)
		}
	}
}

type batchItemJSON struct {
	Index       int           `json:"index"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	Skipped     bool          `json:"skipped,omitempty"`
	Plan        *plan.Preview `json:"plan,omitempty"`
	Result      *resultJSON   `json:"result,omitempty"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
}

type batchJSON struct {
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Canceled  bool            `json:"canceled,omitempty"`
	ElapsedMS int64           `json:"elapsed_ms"`
	Items     []batchItemJSON `json:"items"`
}

func newBatchJSON(summary pipeline.Summary) batchJSON {
	out := batchJSON{
		Total:     summary.Total,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
		Canceled:  summary.Canceled,
		ElapsedMS: summary.Elapsed.Milliseconds(),
		Items:     make([]batchItemJSON, 0, len(summary.Items)),
	}
	for _, item := range summary.Items {
		entry := batchItemJSON{
			Index:       item.Item.Index,
			Source:      item.Item.Source,
			Destination: item.Item.Destination,
			Skipped:     item.Skipped,
		}
		if item.Plan != nil {
			preview := item.Plan.Preview()
			entry.Plan = &preview
		}
		if !item.Outcome.Started.IsZero() {
			res := newResultJSON(pipeline.Request{Source: item.Item.Source, Destination: item.Item.Destination}, item.Outcome)
			entry.Result = &res
		}
		if item.Err != nil {
			entry.ErrorKind = services.Kind(item.Err)
			entry.Error = item.Err.Error()
		}
		out.Items = append(out.Items, entry)
	}
	return out
}
