package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mvx/internal/batch"
	"mvx/internal/claim"
	"mvx/internal/deps"
	"mvx/internal/detect"
	"mvx/internal/format"
	"mvx/internal/history"
	"mvx/internal/options"
	"mvx/internal/pipeline"
	"mvx/internal/plan"
	"mvx/internal/progress"
	"mvx/internal/services"
	"mvx/internal/testsupport"
)

type memoryJournal struct {
	mu      sync.Mutex
	records []history.Record
}

func (j *memoryJournal) Append(_ context.Context, r history.Record) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, r)
	return int64(len(j.records)), nil
}

func (j *memoryJournal) all() []history.Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]history.Record(nil), j.records...)
}

// detectByExtension trusts the extension so tests need no real media bytes.
func detectByExtension(calls *int) pipeline.DetectFunc {
	return func(path string) (detect.Type, error) {
		if calls != nil {
			*calls++
		}
		if _, err := os.Stat(path); err != nil {
			return detect.Type{}, services.Wrap(services.ErrDetection, "detect", "open", path, err)
		}
		ext := format.ExtOf(path)
		mime, ok := format.MIMEForExt(ext)
		if !ok {
			return detect.Unknown, nil
		}
		return detect.Type{MIME: mime, Kind: format.KindOfMIME(mime), Ext: ext}, nil
	}
}

type env struct {
	dir     string
	caps    deps.Static
	journal *memoryJournal
	claims  *claim.Registry
	runner  *pipeline.Runner
}

func newEnv(t *testing.T, stubs map[string]string) *env {
	t.Helper()
	dir := t.TempDir()
	caps := deps.Static{}
	for name, body := range stubs {
		caps[deps.Tool(name)] = testsupport.StubBinary(t, filepath.Join(dir, "bin"), name, body)
	}
	e := &env{dir: dir, caps: caps, journal: &memoryJournal{}, claims: claim.NewRegistry(filepath.Join(dir, "locks"))}
	e.runner = pipeline.New(pipeline.Options{
		Capabilities: caps,
		Claims:       e.claims,
		Journal:      e.journal,
		Detect:       detectByExtension(nil),
		RunID:        "test-run",
	})
	return e
}

func (e *env) source(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, "in", name)
	testsupport.WriteBytes(t, path, []byte(content))
	return path
}

func TestRunConvertsAndJournals(t *testing.T) {
	e := newEnv(t, map[string]string{"magick": testsupport.ScriptImageOK})
	src := e.source(t, "photo.png", "png")
	dest := filepath.Join(e.dir, "out", "photo.jpg")

	out, err := e.runner.Run(context.Background(), pipeline.Request{Source: src, Destination: dest}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Plan == nil || out.Plan.Strategy != plan.StrategyConvert {
		t.Fatalf("unexpected plan %+v", out.Plan)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "converted-image" {
		t.Fatalf("destination = %q, %v", data, err)
	}
	records := e.journal.all()
	if len(records) != 1 || records[0].Status != history.StatusSucceeded || records[0].RunID != "test-run" {
		t.Fatalf("unexpected journal %+v", records)
	}
	if records[0].Backend != "magick" || records[0].Bytes != int64(len("converted-image")) {
		t.Fatalf("unexpected record %+v", records[0])
	}
}

func TestRunRejectsConflictsBeforeDetection(t *testing.T) {
	e := newEnv(t, nil)
	calls := 0
	runner := pipeline.New(pipeline.Options{Capabilities: e.caps, Detect: detectByExtension(&calls)})
	flags := options.Flags{StreamCopy: true, Transcode: true}
	_, err := runner.Run(context.Background(), pipeline.Request{Source: "/missing/a.mov", Destination: "/missing/a.mp4", Flags: flags}, nil)
	if !errors.Is(err, services.ErrConflictingOptions) {
		t.Fatalf("expected ErrConflictingOptions, got %v", err)
	}
	if calls != 0 {
		t.Fatal("source must not be inspected when options conflict")
	}
}

func TestRunExistingDestinationJournalsFailure(t *testing.T) {
	e := newEnv(t, nil)
	src := e.source(t, "a.png", "new")
	dest := filepath.Join(e.dir, "b.png")
	testsupport.WriteBytes(t, dest, []byte("old"))

	_, err := e.runner.Run(context.Background(), pipeline.Request{Source: src, Destination: dest}, nil)
	if !errors.Is(err, services.ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "old" {
		t.Fatal("destination must be untouched")
	}
	records := e.journal.all()
	if len(records) != 1 || records[0].Status != history.StatusFailed || records[0].ErrorKind != "destination_exists" {
		t.Fatalf("unexpected journal %+v", records)
	}
	if records[0].Strategy != string(plan.StrategyRename) {
		t.Fatalf("strategy = %q", records[0].Strategy)
	}
}

func TestRunRenameMovesSource(t *testing.T) {
	e := newEnv(t, nil)
	src := filepath.Join(e.dir, "in", "a.png")
	want := testsupport.WritePattern(t, src, 100*1024)
	dest := filepath.Join(e.dir, "moved", "b.png")

	out, err := e.runner.Run(context.Background(), pipeline.Request{Source: src, Destination: dest, Flags: options.Flags{MoveSource: true}}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Result.SourceRemoved {
		t.Fatalf("expected source removal, got %+v", out.Result)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be gone")
	}
	got, err := os.ReadFile(dest)
	if err != nil || !bytes.Equal(got, want) {
		t.Fatalf("destination differs from source (%d bytes, %v)", len(got), err)
	}
}

func TestRunBusyDestination(t *testing.T) {
	e := newEnv(t, nil)
	src := e.source(t, "a.png", "bytes")
	dest := filepath.Join(e.dir, "b.png")
	held, err := e.claims.Acquire(dest)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release()

	_, err = e.runner.Run(context.Background(), pipeline.Request{Source: src, Destination: dest}, nil)
	if !errors.Is(err, services.ErrDestinationBusy) {
		t.Fatalf("expected ErrDestinationBusy, got %v", err)
	}
}

func TestRunWithoutProbeTranscodes(t *testing.T) {
	e := newEnv(t, map[string]string{"ffmpeg": testsupport.ScriptFFmpegOK})
	src := e.source(t, "clip.mov", "mov")
	dest := filepath.Join(e.dir, "clip.mp4")

	events := make(chan progress.Event, 8)
	out, err := e.runner.Run(context.Background(), pipeline.Request{Source: src, Destination: dest}, progress.NewSink(events))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Plan.Strategy != plan.StrategyTranscode {
		t.Fatalf("strategy = %s, want transcode without ffprobe", out.Plan.Strategy)
	}
	if len(events) == 0 {
		t.Fatal("expected progress events")
	}
}

func TestRunCanceledMidBackendKeepsExistingDestination(t *testing.T) {
	// Writes part of the temp output, reports progress, then stalls.
	stall := `for last; do :; done
printf 'partial' > "$last"
echo "out_time_us=1000000"
echo "progress=continue"
sleep 30
`
	e := newEnv(t, map[string]string{"ffmpeg": stall})
	src := e.source(t, "a.mov", "mov")
	dest := filepath.Join(e.dir, "in", "a.mp4")
	testsupport.WriteBytes(t, dest, []byte("original"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan progress.Event, 8)
	go func() {
		select {
		case <-events:
		case <-time.After(5 * time.Second):
		}
		cancel()
	}()

	started := time.Now()
	_, err := e.runner.Run(ctx, pipeline.Request{
		Source:      src,
		Destination: dest,
		Flags:       options.Flags{Overwrite: true},
	}, progress.NewSink(events))
	if !errors.Is(err, services.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if time.Since(started) > 15*time.Second {
		t.Fatal("backend was not killed promptly")
	}

	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "original" {
		t.Fatalf("destination changed: %q, %v", data, err)
	}
	entries := testsupport.ListDir(t, filepath.Dir(dest))
	if len(entries) != 2 {
		t.Fatalf("expected only a.mov and a.mp4 to remain, got %v", entries)
	}
	records := e.journal.all()
	if len(records) != 1 || records[0].Status != history.StatusCanceled {
		t.Fatalf("unexpected journal %+v", records)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	finished []pipeline.ItemResult
}

func (o *recordingObserver) ItemStarted(batch.Item, plan.Plan) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *recordingObserver) ItemProgress(batch.Item, progress.Event) {}

func (o *recordingObserver) ItemFinished(res pipeline.ItemResult) {
	o.mu.Lock()
	o.finished = append(o.finished, res)
	o.mu.Unlock()
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	e := newEnv(t, map[string]string{"magick": testsupport.ScriptImageOK})
	sources := []string{
		e.source(t, "a.png", "a"),
		e.source(t, "b.png", "b"),
		e.source(t, "c.mp3", "c"),
	}
	outDir := filepath.Join(e.dir, "out")
	items := batch.Pair(sources, batch.Target{DestDir: outDir, Ext: "jpg"})

	observer := &recordingObserver{}
	summary, err := e.runner.RunBatch(context.Background(), items, pipeline.BatchOptions{Jobs: 2, Observer: observer})
	if !errors.Is(err, services.ErrBatchFailures) {
		t.Fatalf("expected ErrBatchFailures, got %v", err)
	}
	if services.ExitCode(err) != services.ExitBatchFailures {
		t.Fatalf("exit code = %d", services.ExitCode(err))
	}
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	failures := summary.Failures()
	if len(failures) != 1 || !errors.Is(failures[0].Err, services.ErrUnsupportedConversion) {
		t.Fatalf("unexpected failures %+v", failures)
	}
	if observer.started != 2 || len(observer.finished) != 3 {
		t.Fatalf("observer saw %d starts, %d finishes", observer.started, len(observer.finished))
	}
	for _, name := range []string{"a.jpg", "b.jpg"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("missing output %s: %v", name, err)
		}
	}
}

func TestRunBatchPlanOnlyWritesNothing(t *testing.T) {
	e := newEnv(t, nil)
	sources := []string{e.source(t, "a.png", "a"), e.source(t, "b.png", "b")}
	outDir := filepath.Join(e.dir, "out")
	items := batch.Pair(sources, batch.Target{DestDir: outDir, Ext: "webp"})

	summary, err := e.runner.RunBatch(context.Background(), items, pipeline.BatchOptions{PlanOnly: true})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary.Succeeded != 2 || summary.Items[0].Plan == nil {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Fatal("plan-only batch must not create the destination directory")
	}
	if len(e.journal.all()) != 0 {
		t.Fatal("plan-only batch must not journal")
	}
}

func TestRunBatchCanceledSkipsEverything(t *testing.T) {
	e := newEnv(t, nil)
	items := batch.Pair([]string{e.source(t, "a.png", "a")}, batch.Target{DestDir: filepath.Join(e.dir, "out")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := e.runner.RunBatch(ctx, items, pipeline.BatchOptions{})
	if services.ExitCode(err) != services.ExitCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
