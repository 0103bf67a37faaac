package execute_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mvx/internal/deps"
	"mvx/internal/detect"
	"mvx/internal/execute"
	"mvx/internal/format"
	"mvx/internal/media"
	"mvx/internal/plan"
	"mvx/internal/progress"
	"mvx/internal/services"
	"mvx/internal/testsupport"
)

func buildPlan(t *testing.T, caps deps.Capabilities, src, dst, mime string, info *media.Info) plan.Plan {
	t.Helper()
	p, err := plan.NewBuilder(caps).Build(plan.Input{
		Source:      src,
		Destination: dst,
		Detected:    detect.Type{MIME: mime, Kind: format.KindOfMIME(mime)},
		Media:       info,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func assertOnly(t *testing.T, dir string, want ...string) {
	t.Helper()
	got := testsupport.ListDir(t, dir)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("directory %s contains %v, want %v", dir, got, want)
	}
}

func TestExecuteTranscodeWritesTempAndReportsProgress(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.StubBinary(t, filepath.Join(dir, "bin"), "ffmpeg", testsupport.ScriptFFmpegOK)
	work := filepath.Join(dir, "work")
	src := filepath.Join(work, "clip.mkv")
	testsupport.WriteBytes(t, src, []byte("source"))

	info := &media.Info{Duration: 2 * time.Second, Streams: []media.Stream{{Kind: media.StreamVideo, Codec: "vp9"}}}
	caps := deps.Static{deps.ToolFFmpeg: bin}
	p := buildPlan(t, caps, src, filepath.Join(work, "clip.mp4"), "video/x-matroska", info)

	events := make(chan progress.Event, 16)
	out, err := execute.New(caps).Execute(context.Background(), p, progress.NewSink(events))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	close(events)

	if filepath.Dir(out.Path) != work || !strings.HasSuffix(out.Path, ".mp4") || !strings.HasPrefix(filepath.Base(out.Path), ".clip.mvx-") {
		t.Fatalf("unexpected temp path %s", out.Path)
	}
	data, err := os.ReadFile(out.Path)
	if err != nil || string(data) != "converted-media" {
		t.Fatalf("temp content = %q, %v", data, err)
	}
	if out.Size != int64(len("converted-media")) {
		t.Fatalf("size = %d", out.Size)
	}
	if _, err := os.Stat(p.Destination); !os.IsNotExist(err) {
		t.Fatal("destination must not be written by the executor")
	}

	var last progress.Event
	count := 0
	for ev := range events {
		if ev.Fraction < last.Fraction {
			t.Fatalf("progress went backwards: %v after %v", ev.Fraction, last.Fraction)
		}
		last = ev
		count++
	}
	if count != 2 || !last.Done || last.Fraction != 1 {
		t.Fatalf("unexpected progress: %d events, last %+v", count, last)
	}
}

func TestExecuteMissingToolCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	testsupport.WriteBytes(t, src, []byte("png"))
	target := filepath.Join(dir, "nested", "a.jpg")
	p := buildPlan(t, deps.Static{}, src, target, "image/png", nil)

	_, err := execute.New(deps.Static{}).Execute(context.Background(), p, nil)
	var missing *services.MissingToolError
	if !errors.As(err, &missing) || missing.Tool != "magick" {
		t.Fatalf("expected MissingToolError for magick, got %v", err)
	}
	if missing.Hint == "" {
		t.Fatal("expected install hint")
	}
	assertOnly(t, dir, "a.png")
}

func TestExecuteBackendFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.StubBinary(t, filepath.Join(dir, "bin"), "magick", testsupport.ScriptFail)
	work := filepath.Join(dir, "work")
	src := filepath.Join(work, "a.png")
	testsupport.WriteBytes(t, src, []byte("png"))
	caps := deps.Static{deps.ToolImageMagick: bin}
	p := buildPlan(t, caps, src, filepath.Join(work, "out", "deeper", "a.jpg"), "image/png", nil)

	_, err := execute.New(caps).Execute(context.Background(), p, nil)
	var backend *services.BackendError
	if !errors.As(err, &backend) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if backend.ExitCode != 1 {
		t.Fatalf("exit code = %d, want 1", backend.ExitCode)
	}
	if len(backend.Diagnostics) != 1 || !strings.Contains(backend.Diagnostics[0], "Invalid data") {
		t.Fatalf("diagnostics = %v", backend.Diagnostics)
	}
	if services.ExitCode(err) != services.ExitBackend {
		t.Fatalf("exit code mapping = %d", services.ExitCode(err))
	}
	assertOnly(t, work, "a.png")
}

func TestExecuteDocumentRelocatesOutput(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.StubBinary(t, filepath.Join(dir, "bin"), "soffice", testsupport.ScriptSofficeOK)
	work := filepath.Join(dir, "work")
	src := filepath.Join(work, "report.docx")
	testsupport.WriteBytes(t, src, []byte("docx"))
	caps := deps.Static{deps.ToolLibreOffice: bin}
	p := buildPlan(t, caps, src, filepath.Join(work, "final.pdf"), "application/vnd.openxmlformats-officedocument.wordprocessingml.document", nil)

	out, err := execute.New(caps, execute.WithTickInterval(0)).Execute(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data, err := os.ReadFile(out.Path)
	if err != nil || !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("temp content = %q, %v", data, err)
	}
	// Only the source and the temp file remain: the work directory is gone.
	assertOnly(t, work, filepath.Base(out.Path), "report.docx")
}

func TestExecuteDocumentWithoutOutputIsEmpty(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.StubBinary(t, filepath.Join(dir, "bin"), "soffice", testsupport.ScriptNoOutput)
	work := filepath.Join(dir, "work")
	src := filepath.Join(work, "report.odt")
	testsupport.WriteBytes(t, src, []byte("odt"))
	caps := deps.Static{deps.ToolLibreOffice: bin}
	p := buildPlan(t, caps, src, filepath.Join(work, "report.pdf"), "application/vnd.oasis.opendocument.text", nil)

	_, err := execute.New(caps).Execute(context.Background(), p, nil)
	if !errors.Is(err, services.ErrEmptyOutput) {
		t.Fatalf("expected ErrEmptyOutput, got %v", err)
	}
	assertOnly(t, work, "report.odt")
}

func TestExecuteRenameCopiesWithoutProcess(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	testsupport.WriteBytes(t, src, []byte("png-bytes"))
	p := buildPlan(t, deps.Static{}, src, filepath.Join(dir, "b.png"), "image/png", nil)

	out, err := execute.New(deps.Static{}).Execute(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Linked || out.Size != int64(len("png-bytes")) {
		t.Fatalf("unexpected output %+v", out)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source must remain: %v", err)
	}
}

func TestExecuteRenameLinksWhenMovingSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	testsupport.WriteBytes(t, src, []byte("png-bytes"))
	p := buildPlan(t, deps.Static{}, src, filepath.Join(dir, "b.png"), "image/png", nil)
	p.MoveSource = true

	out, err := execute.New(deps.Static{}).Execute(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.Linked {
		t.Fatal("expected hard link on the same filesystem")
	}
}

func TestExecuteCancellationKillsBackend(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.StubBinary(t, filepath.Join(dir, "bin"), "ffmpeg", testsupport.ScriptSleep)
	work := filepath.Join(dir, "work")
	src := filepath.Join(work, "a.mov")
	testsupport.WriteBytes(t, src, []byte("mov"))
	caps := deps.Static{deps.ToolFFmpeg: bin}
	p := buildPlan(t, caps, src, filepath.Join(work, "a.mp4"), "video/quicktime", nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	started := time.Now()
	_, err := execute.New(caps).Execute(ctx, p, nil)
	if !errors.Is(err, services.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if time.Since(started) > 10*time.Second {
		t.Fatal("backend was not killed promptly")
	}
	assertOnly(t, work, "a.mov")
}

func TestExecuteCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := execute.New(deps.Static{}).Execute(ctx, plan.Plan{}, nil)
	if services.ExitCode(err) != services.ExitCanceled {
		t.Fatalf("expected canceled exit code, got %v", err)
	}
}

func TestDiscardRemovesCreatedDirs(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	testsupport.WriteBytes(t, src, []byte("png"))
	p := buildPlan(t, deps.Static{}, src, filepath.Join(dir, "x", "y", "b.png"), "image/png", nil)

	out, err := execute.New(deps.Static{}).Execute(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out.CreatedDirs) != 2 {
		t.Fatalf("created dirs = %v", out.CreatedDirs)
	}
	out.Discard()
	assertOnly(t, dir, "a.png")
}
