package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mvx/internal/claim"
	"mvx/internal/deps"
	"mvx/internal/detect"
	"mvx/internal/execute"
	"mvx/internal/finalize"
	"mvx/internal/history"
	"mvx/internal/logging"
	"mvx/internal/media"
	"mvx/internal/options"
	"mvx/internal/plan"
	"mvx/internal/progress"
	"mvx/internal/services"
)

// Journal records finished conversions. *history.Store satisfies it.
type Journal interface {
	Append(ctx context.Context, r history.Record) (int64, error)
}

// DetectFunc classifies a source file.
type DetectFunc func(path string) (detect.Type, error)

// Options supplies the runner's collaborators. Zero fields get defaults.
type Options struct {
	Logger       *slog.Logger
	Capabilities deps.Capabilities
	Compat       plan.CompatTable
	Claims       *claim.Registry
	// Journal is optional; nil disables history.
	Journal   Journal
	Detect    DetectFunc
	Prober    *media.Prober
	Executor  *execute.Executor
	Finalizer *finalize.Finalizer
	// RunID correlates logs and history rows. Generated when empty.
	RunID string
	Now   func() time.Time
}

// Runner executes conversions.
type Runner struct {
	logger    *slog.Logger
	builder   *plan.Builder
	claims    *claim.Registry
	journal   Journal
	detect    DetectFunc
	prober    *media.Prober
	executor  *execute.Executor
	finalizer *finalize.Finalizer
	runID     string
	now       func() time.Time
}

// Request is one conversion as asked for on the command line.
type Request struct {
	Source      string
	Destination string
	Flags       options.Flags
}

// Outcome is the terminal state of one Run.
type Outcome struct {
	// Plan is nil when planning failed.
	Plan     *plan.Plan
	Result   finalize.Result
	Started  time.Time
	Finished time.Time
	Err      error
}

// Elapsed is the wall time of the run.
func (o Outcome) Elapsed() time.Duration {
	return o.Finished.Sub(o.Started)
}

// New constructs a Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	caps := opts.Capabilities
	if caps == nil {
		caps = deps.NewSystem(nil)
	}
	r := &Runner{
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		builder:   plan.NewBuilder(caps, plan.WithCompat(opts.Compat)),
		claims:    opts.Claims,
		journal:   opts.Journal,
		detect:    opts.Detect,
		prober:    opts.Prober,
		executor:  opts.Executor,
		finalizer: opts.Finalizer,
		runID:     opts.RunID,
		now:       opts.Now,
	}
	if r.claims == nil {
		r.claims = claim.NewRegistry("")
	}
	if r.detect == nil {
		r.detect = detect.Detect
	}
	if r.prober == nil {
		r.prober = media.NewProber(caps, logger)
	}
	if r.executor == nil {
		r.executor = execute.New(caps, execute.WithLogger(logger))
	}
	if r.finalizer == nil {
		r.finalizer = finalize.New(logger)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// RunID returns the correlation id of this runner.
func (r *Runner) RunID() string {
	return r.runID
}

// Plan detects, probes when needed, and builds the plan for req. Option
// conflicts are reported before the source is opened.
func (r *Runner) Plan(ctx context.Context, req Request) (plan.Plan, error) {
	ctx = services.WithRunID(ctx, r.runID)
	if err := req.Flags.Validate(); err != nil {
		return plan.Plan{}, err
	}

	detected, err := r.detect(req.Source)
	if err != nil {
		return plan.Plan{}, err
	}

	var info *media.Info
	if plan.NeedsProbe(detected, req.Destination) {
		info = r.prober.Probe(services.WithStage(ctx, "probe"), req.Source)
	}
	if err := ctx.Err(); err != nil {
		return plan.Plan{}, services.Wrap(services.ErrCanceled, "plan", "probe", "", err)
	}

	p, err := r.builder.Build(plan.Input{
		Source:      req.Source,
		Destination: req.Destination,
		Detected:    detected,
		Media:       info,
		Flags:       req.Flags,
	})
	if err != nil {
		return plan.Plan{}, err
	}
	logging.WithContext(services.WithStage(ctx, "plan"), r.logger).Debug("plan built",
		logging.String(logging.FieldSource, p.Source),
		logging.String(logging.FieldDestination, p.Destination),
		logging.String("detected", p.Detected.String()),
		logging.String(logging.FieldStrategy, string(p.Strategy)),
		logging.String(logging.FieldBackend, p.Backend.Label()),
	)
	return p, nil
}

// Execute runs p and publishes its output under a destination claim.
func (r *Runner) Execute(ctx context.Context, p plan.Plan, sink *progress.Sink) (finalize.Result, error) {
	ctx = services.WithRunID(ctx, r.runID)
	held, err := r.claims.Acquire(p.Destination)
	if err != nil {
		return finalize.Result{}, err
	}
	defer func() {
		if err := held.Release(); err != nil {
			r.logger.Debug("release claim failed", logging.Error(err))
		}
	}()

	out, err := r.executor.Execute(services.WithStage(ctx, "execute"), p, sink)
	if err != nil {
		return finalize.Result{}, err
	}
	return r.finalizer.Finalize(services.WithStage(ctx, "finalize"), out, p)
}

// Run plans and executes req, then journals the outcome. The returned
// error equals Outcome.Err.
func (r *Runner) Run(ctx context.Context, req Request, sink *progress.Sink) (Outcome, error) {
	ctx = services.WithRunID(ctx, r.runID)
	started := r.now()
	p, err := r.Plan(ctx, req)
	if err != nil {
		return r.finish(ctx, req, Outcome{Started: started}, err)
	}
	return r.runPlanned(ctx, req, p, started, sink)
}

// RunPlan executes an already built plan for req and journals the outcome.
func (r *Runner) RunPlan(ctx context.Context, req Request, p plan.Plan, sink *progress.Sink) (Outcome, error) {
	ctx = services.WithRunID(ctx, r.runID)
	return r.runPlanned(ctx, req, p, r.now(), sink)
}

func (r *Runner) runPlanned(ctx context.Context, req Request, p plan.Plan, started time.Time, sink *progress.Sink) (Outcome, error) {
	logging.WithContext(ctx, r.logger).Info("conversion started",
		logging.String(logging.FieldEventType, "conversion_start"),
		logging.String(logging.FieldSource, p.Source),
		logging.String(logging.FieldDestination, p.Destination),
		logging.String(logging.FieldStrategy, string(p.Strategy)),
	)
	out := Outcome{Plan: &p, Started: started}
	var err error
	out.Result, err = r.Execute(ctx, p, sink)
	return r.finish(ctx, req, out, err)
}

func (r *Runner) finish(ctx context.Context, req Request, out Outcome, err error) (Outcome, error) {
	logger := logging.WithContext(ctx, r.logger)
	out.Finished = r.now()
	out.Err = err
	if err != nil {
		logger.Error("conversion failed",
			logging.String(logging.FieldEventType, "conversion_failed"),
			logging.String(logging.FieldSource, req.Source),
			logging.String(logging.FieldDestination, req.Destination),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
	} else {
		logger.Info("conversion completed",
			logging.String(logging.FieldEventType, "conversion_complete"),
			logging.String(logging.FieldDestination, out.Result.Destination),
			logging.Int64("bytes", out.Result.Bytes),
			logging.Duration("elapsed", out.Elapsed()),
		)
	}
	r.record(ctx, req, out)
	return out, err
}

// record journals out. Journal failures are logged and never fail the run.
func (r *Runner) record(ctx context.Context, req Request, out Outcome) {
	if r.journal == nil {
		return
	}
	rec := history.Record{
		RunID:       r.runID,
		StartedAt:   out.Started,
		FinishedAt:  out.Finished,
		Source:      req.Source,
		Destination: req.Destination,
		Status:      history.StatusSucceeded,
		Bytes:       out.Result.Bytes,
		BackupPath:  out.Result.BackupPath,
		Warning:     out.Result.Warning,
	}
	if idx, ok := services.ItemFromContext(ctx); ok {
		rec.Item = idx
	}
	if out.Plan != nil {
		rec.DetectedType = out.Plan.Detected.String()
		rec.Strategy = string(out.Plan.Strategy)
		rec.Backend = string(out.Plan.Backend.Tool)
	}
	if out.Err != nil {
		rec.Status = history.StatusFailed
		if services.ExitCode(out.Err) == services.ExitCanceled {
			rec.Status = history.StatusCanceled
		}
		rec.ErrorKind = services.Kind(out.Err)
		rec.Error = out.Err.Error()
	}
	if _, err := r.journal.Append(context.WithoutCancel(ctx), rec); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "history write failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `mvx history clear` or delete the history database"),
			logging.String(logging.FieldImpact, "this conversion is missing from history"),
		)
	}
}
