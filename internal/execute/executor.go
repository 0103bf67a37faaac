// Package execute runs a plan into a temporary file beside the destination.
//
// The destination itself is never opened. Each run writes to a hidden
// sibling (".<stem>.mvx-<id>.<ext>") that keeps the destination extension,
// so backends infer the output format from it, and lives on the same
// filesystem so the later publish is a single rename. Every failure path
// removes what the run created: the temporary file, the document work
// directory, and any parent directories made for the destination.
package execute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"mvx/internal/deps"
	"mvx/internal/fileutil"
	"mvx/internal/logging"
	"mvx/internal/plan"
	"mvx/internal/progress"
	"mvx/internal/services"
	"mvx/internal/services/libreoffice"
)

// DefaultTickInterval paces elapsed-only events for backends that report
// no progress of their own.
const DefaultTickInterval = 500 * time.Millisecond

// Output is a completed temporary result awaiting finalization.
type Output struct {
	// Path is the temporary file in the destination directory.
	Path string
	Size int64
	// Linked is set when a rename plan hard-linked the source instead of
	// copying it.
	Linked      bool
	Diagnostics []string
	// CreatedDirs lists parent directories made for the destination,
	// deepest first. Finalize removes them if publishing fails.
	CreatedDirs []string
}

// Discard removes the temporary file and any directories created for it.
func (o Output) Discard() {
	if o.Path != "" {
		_ = os.Remove(o.Path)
	}
	removeDirs(o.CreatedDirs)
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDiagnosticLines bounds how much backend output is retained.
func WithDiagnosticLines(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.diagLines = n
		}
	}
}

// WithTickInterval sets the elapsed-only event cadence. Zero disables it.
func WithTickInterval(d time.Duration) Option {
	return func(e *Executor) {
		e.tick = d
	}
}

// WithClock replaces time.Now for progress timing.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// Executor drives backends. It holds no per-run state and is safe for
// concurrent use.
type Executor struct {
	caps      deps.Capabilities
	logger    *slog.Logger
	diagLines int
	tick      time.Duration
	now       func() time.Time
	newID     func() string
}

// New constructs an Executor that resolves binaries through caps.
func New(caps deps.Capabilities, opts ...Option) *Executor {
	if caps == nil {
		caps = deps.Static{}
	}
	e := &Executor{
		caps:      caps,
		logger:    logging.NewNop(),
		diagLines: DefaultDiagnosticLines,
		tick:      DefaultTickInterval,
		now:       time.Now,
		newID:     func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "execute")
	return e
}

// Execute realises p into a temporary file. Progress events are published to
// sink, which may be nil. On error nothing created by the run remains.
func (e *Executor) Execute(ctx context.Context, p plan.Plan, sink *progress.Sink) (Output, error) {
	logger := logging.WithContext(ctx, e.logger)
	if err := ctx.Err(); err != nil {
		return Output{}, canceled("before start", err)
	}

	var binary string
	if p.SpawnsProcess() {
		inv, ok := p.Invocation("")
		if !ok {
			return Output{}, services.Wrap(services.ErrUnsupportedConversion, "execute", "resolve backend",
				fmt.Sprintf("plan for %s has no backend", p.Destination), nil)
		}
		path, found := e.caps.Lookup(inv.Tool)
		if !found {
			return Output{}, deps.MissingTool(inv.Tool)
		}
		binary = path
	}

	destDir := filepath.Dir(p.Destination)
	created, err := ensureDir(destDir)
	if err != nil {
		return Output{}, services.Wrap(services.ErrFinalizeIO, "execute", "create destination directory", destDir, err)
	}
	out := Output{CreatedDirs: created}
	if err := unix.Access(destDir, unix.W_OK); err != nil {
		out.Discard()
		return Output{}, services.Wrap(services.ErrFinalizeIO, "execute", "check destination directory", destDir+" is not writable", err)
	}

	out.Path = e.tempPath(p.Destination)
	logger.Debug("executing plan",
		logging.String(logging.FieldStrategy, string(p.Strategy)),
		logging.String(logging.FieldBackend, string(p.Backend.Tool)),
		logging.String("temp", out.Path),
	)

	switch p.Backend.Kind {
	case plan.BackendNone:
		err = e.stage(p, &out)
		if err == nil {
			sink.Publish(progress.Event{Done: true})
		}
	case plan.BackendDocument:
		err = e.runDocument(ctx, p, binary, sink, &out)
	default:
		err = e.runTool(ctx, p, binary, sink, &out)
	}
	if err != nil {
		out.Discard()
		return Output{}, err
	}

	info, err := os.Stat(out.Path)
	if err != nil {
		out.Discard()
		return Output{}, services.Wrap(services.ErrEmptyOutput, "execute", "stat output", out.Path, err)
	}
	out.Size = info.Size()
	return out, nil
}

// stage places the source bytes at the temporary path for a rename.
func (e *Executor) stage(p plan.Plan, out *Output) error {
	if p.MoveSource {
		linked, _, err := fileutil.LinkOrCopy(p.Source, out.Path)
		if err != nil {
			return services.Wrap(services.ErrFinalizeIO, "execute", "stage source", p.Source, err)
		}
		out.Linked = linked
		return nil
	}
	if _, err := fileutil.CopyVerified(p.Source, out.Path); err != nil {
		return services.Wrap(services.ErrFinalizeIO, "execute", "copy source", p.Source, err)
	}
	return nil
}

func (e *Executor) runTool(ctx context.Context, p plan.Plan, binary string, sink *progress.Sink, out *Output) error {
	// Reserve the name; backends overwrite it in place.
	f, err := os.OpenFile(out.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return services.Wrap(services.ErrFinalizeIO, "execute", "create temporary file", out.Path, err)
	}
	_ = f.Close()

	inv, _ := p.Invocation(out.Path)
	spec := runSpec{binary: binary, args: inv.Args, sink: sink, diag: newDiagnostics(e.diagLines), tick: e.tick}
	if p.Backend.Kind == plan.BackendMedia {
		var total time.Duration
		if p.Media != nil {
			total = p.Media.Duration
		}
		spec.parser = progress.NewParser(total, progress.WithClock(e.now))
	}
	return e.run(ctx, inv.Tool, spec, out)
}

func (e *Executor) runDocument(ctx context.Context, p plan.Plan, binary string, sink *progress.Sink, out *Output) error {
	workDir, err := os.MkdirTemp(filepath.Dir(out.Path), ".mvx-"+e.newID()+"-")
	if err != nil {
		return services.Wrap(services.ErrFinalizeIO, "execute", "create work directory", filepath.Dir(out.Path), err)
	}
	defer os.RemoveAll(workDir)

	inv, _ := p.Invocation(workDir)
	spec := runSpec{binary: binary, args: inv.Args, sink: sink, diag: newDiagnostics(e.diagLines), tick: e.tick}
	if err := e.run(ctx, inv.Tool, spec, out); err != nil {
		return err
	}

	produced := libreoffice.ExpectedOutput(p.Source, workDir)
	if _, err := os.Stat(produced); err != nil {
		return services.Wrap(services.ErrEmptyOutput, "execute", "collect document output",
			fmt.Sprintf("%s exited cleanly but wrote no %s", inv.Tool, filepath.Base(produced)), err)
	}
	if err := os.Rename(produced, out.Path); err != nil {
		return services.Wrap(services.ErrFinalizeIO, "execute", "relocate document output", produced, err)
	}
	return nil
}

func (e *Executor) run(ctx context.Context, tool deps.Tool, spec runSpec, out *Output) error {
	logger := logging.WithContext(ctx, e.logger)
	started := e.now()
	err := runProcess(ctx, spec)
	out.Diagnostics = spec.diag.snapshot()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return canceled(string(tool)+" interrupted", ctxErr)
	}
	if err != nil {
		backendErr := &services.BackendError{Tool: string(tool), ExitCode: exitCode(err), Diagnostics: out.Diagnostics}
		if backendErr.ExitCode < 0 {
			return services.Wrap(services.ErrBackendFailed, "execute", "run "+string(tool), "", err)
		}
		return backendErr
	}
	logger.Debug("backend finished",
		logging.String(logging.FieldBackend, string(tool)),
		logging.Duration("elapsed", e.now().Sub(started)),
		logging.Int("diagnostic_lines", len(out.Diagnostics)),
	)
	return nil
}

func (e *Executor) tempPath(destination string) string {
	dir := filepath.Dir(destination)
	base := filepath.Base(destination)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, "."+stem+".mvx-"+e.newID()+ext)
}

// ensureDir creates dir and its missing ancestors, returning the ones it
// created deepest first.
func ensureDir(dir string) ([]string, error) {
	var missing []string
	for current := dir; ; current = filepath.Dir(current) {
		info, err := os.Stat(current)
		if err == nil {
			if !info.IsDir() {
				return nil, fmt.Errorf("%s is not a directory", current)
			}
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		missing = append(missing, current)
		if parent := filepath.Dir(current); parent == current {
			break
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		removeDirs(missing)
		return nil, err
	}
	return missing, nil
}

// removeDirs removes each directory if it is empty.
func removeDirs(dirs []string) {
	for _, dir := range dirs {
		_ = os.Remove(dir)
	}
}

func canceled(message string, err error) error {
	return services.Wrap(services.ErrCanceled, "execute", "run", message, err)
}
