package finalize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"mvx/internal/execute"
	"mvx/internal/plan"
	"mvx/internal/services"
)

type fixture struct {
	dir  string
	src  string
	dest string
	temp string
}

func newFixture(t *testing.T, tempContent string) fixture {
	t.Helper()
	dir := t.TempDir()
	fx := fixture{
		dir:  dir,
		src:  filepath.Join(dir, "in.mov"),
		dest: filepath.Join(dir, "out.mp4"),
		temp: filepath.Join(dir, ".out.mvx-1234abcd.mp4"),
	}
	writeFile(t, fx.src, "source")
	writeFile(t, fx.temp, tempContent)
	return fx
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func (fx fixture) plan(mutate func(*plan.Plan)) plan.Plan {
	p := plan.Plan{
		Source:      fx.src,
		Destination: fx.dest,
		Strategy:    plan.StrategyRemux,
		Backend:     plan.Backend{Kind: plan.BackendMedia, Tool: "ffmpeg"},
	}
	if mutate != nil {
		mutate(&p)
	}
	return p
}

func (fx fixture) output() execute.Output {
	return execute.Output{Path: fx.temp}
}

func assertGone(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("%s should not exist (err=%v)", path, err)
	}
}

func TestFinalizePublishesNewDestination(t *testing.T) {
	fx := newFixture(t, "new")
	res, err := New(nil).Finalize(context.Background(), fx.output(), fx.plan(nil))
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if readFile(t, fx.dest) != "new" || res.Bytes != 3 || res.BackupPath != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	assertGone(t, fx.temp)
	if readFile(t, fx.src) != "source" {
		t.Fatal("source must be kept without --move-source")
	}
}

func TestFinalizeRejectsEmptyOutput(t *testing.T) {
	fx := newFixture(t, "")
	writeFile(t, fx.dest, "old")
	_, err := New(nil).Finalize(context.Background(), fx.output(), fx.plan(func(p *plan.Plan) { p.Overwrite = true }))
	if !errors.Is(err, services.ErrEmptyOutput) {
		t.Fatalf("expected ErrEmptyOutput, got %v", err)
	}
	assertGone(t, fx.temp)
	if readFile(t, fx.dest) != "old" {
		t.Fatal("destination must be untouched")
	}
}

func TestFinalizeMissingOutputIsEmpty(t *testing.T) {
	fx := newFixture(t, "x")
	_ = os.Remove(fx.temp)
	_, err := New(nil).Finalize(context.Background(), fx.output(), fx.plan(nil))
	if !errors.Is(err, services.ErrEmptyOutput) {
		t.Fatalf("expected ErrEmptyOutput, got %v", err)
	}
}

func TestFinalizeRefusesExistingDestination(t *testing.T) {
	fx := newFixture(t, "new")
	writeFile(t, fx.dest, "old")
	_, err := New(nil).Finalize(context.Background(), fx.output(), fx.plan(nil))
	if !errors.Is(err, services.ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}
	if services.ExitCode(err) != services.ExitDestination {
		t.Fatalf("exit code = %d", services.ExitCode(err))
	}
	assertGone(t, fx.temp)
	if readFile(t, fx.dest) != "old" {
		t.Fatal("destination must be untouched")
	}
}

func TestFinalizeOverwrite(t *testing.T) {
	fx := newFixture(t, "new")
	writeFile(t, fx.dest, "old")
	res, err := New(nil).Finalize(context.Background(), fx.output(), fx.plan(func(p *plan.Plan) { p.Overwrite = true }))
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !res.Replaced || readFile(t, fx.dest) != "new" {
		t.Fatalf("unexpected result %+v", res)
	}
	assertGone(t, fx.dest+".bak")
}

func TestFinalizeBackupUsesFirstFreeSuffix(t *testing.T) {
	fx := newFixture(t, "new")
	writeFile(t, fx.dest, "old")
	writeFile(t, fx.dest+".bak", "older")
	writeFile(t, fx.dest+".bak.1", "oldest")

	res, err := New(nil).Finalize(context.Background(), fx.output(), fx.plan(func(p *plan.Plan) { p.Backup = true }))
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if res.BackupPath != fx.dest+".bak.2" {
		t.Fatalf("backup path = %s", res.BackupPath)
	}
	if readFile(t, res.BackupPath) != "old" || readFile(t, fx.dest) != "new" {
		t.Fatal("backup or destination content wrong")
	}
	if readFile(t, fx.dest+".bak") != "older" || readFile(t, fx.dest+".bak.1") != "oldest" {
		t.Fatal("existing backups must not be touched")
	}
}

func TestNextBackupPath(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "a.jpg")
	got, err := NextBackupPath(dest)
	if err != nil || got != dest+".bak" {
		t.Fatalf("NextBackupPath = %s, %v", got, err)
	}
	writeFile(t, dest+".bak", "x")
	got, _ = NextBackupPath(dest)
	if got != dest+".bak.1" {
		t.Fatalf("NextBackupPath = %s", got)
	}
}

func TestFinalizeBackupKeepsDestinationInPlace(t *testing.T) {
	fx := newFixture(t, "new")
	writeFile(t, fx.dest, "old")

	original := renameFunc
	t.Cleanup(func() { renameFunc = original })
	var atPublish string
	renameFunc = func(oldpath, newpath string) error {
		if oldpath == fx.temp {
			data, err := os.ReadFile(fx.dest)
			if err != nil {
				t.Errorf("destination missing at publish: %v", err)
			}
			atPublish = string(data)
		}
		return original(oldpath, newpath)
	}

	res, err := New(nil).Finalize(context.Background(), fx.output(), fx.plan(func(p *plan.Plan) { p.Backup = true }))
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if atPublish != "old" {
		t.Fatalf("destination at publish = %q, want old", atPublish)
	}
	if readFile(t, res.BackupPath) != "old" || readFile(t, fx.dest) != "new" {
		t.Fatal("backup or destination content wrong")
	}
}

func TestFinalizeCrossDeviceIsFinalizeError(t *testing.T) {
	fx := newFixture(t, "new")
	writeFile(t, fx.dest, "old")

	original := renameFunc
	t.Cleanup(func() { renameFunc = original })
	calls := 0
	renameFunc = func(oldpath, newpath string) error {
		calls++
		if oldpath == fx.temp {
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: unix.EXDEV}
		}
		return original(oldpath, newpath)
	}

	_, err := New(nil).Finalize(context.Background(), fx.output(), fx.plan(func(p *plan.Plan) { p.Backup = true }))
	if !errors.Is(err, services.ErrFinalizeIO) {
		t.Fatalf("expected ErrFinalizeIO, got %v", err)
	}
	if services.ExitCode(err) != services.ExitFinalize {
		t.Fatalf("exit code = %d", services.ExitCode(err))
	}
	// only the failed publish; the backup was a link
	if calls != 1 {
		t.Fatalf("rename calls = %d, want 1", calls)
	}
	if readFile(t, fx.dest) != "old" {
		t.Fatal("destination must be untouched")
	}
	assertGone(t, fx.dest+".bak")
	assertGone(t, fx.temp)
}

func TestFinalizeBackupFallsBackToRename(t *testing.T) {
	fx := newFixture(t, "new")
	writeFile(t, fx.dest, "old")

	originalLink, originalRename := linkFunc, renameFunc
	t.Cleanup(func() { linkFunc, renameFunc = originalLink, originalRename })
	linkFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "link", Old: oldpath, New: newpath, Err: unix.EPERM}
	}
	calls := 0
	renameFunc = func(oldpath, newpath string) error {
		calls++
		if oldpath == fx.temp {
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: unix.EIO}
		}
		return originalRename(oldpath, newpath)
	}

	_, err := New(nil).Finalize(context.Background(), fx.output(), fx.plan(func(p *plan.Plan) { p.Backup = true }))
	if !errors.Is(err, services.ErrFinalizeIO) {
		t.Fatalf("expected ErrFinalizeIO, got %v", err)
	}
	// backup, failed publish, restore
	if calls != 3 {
		t.Fatalf("rename calls = %d, want 3", calls)
	}
	if readFile(t, fx.dest) != "old" {
		t.Fatal("backup should have been restored")
	}
	assertGone(t, fx.dest+".bak")
	assertGone(t, fx.temp)

	fx = newFixture(t, "new")
	writeFile(t, fx.dest, "old")
	renameFunc = originalRename
	res, err := New(nil).Finalize(context.Background(), fx.output(), fx.plan(func(p *plan.Plan) { p.Backup = true }))
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if readFile(t, res.BackupPath) != "old" || readFile(t, fx.dest) != "new" {
		t.Fatal("renamed backup or destination content wrong")
	}
}

func TestFinalizeMoveSource(t *testing.T) {
	fx := newFixture(t, "new")
	res, err := New(nil).Finalize(context.Background(), fx.output(), fx.plan(func(p *plan.Plan) { p.MoveSource = true }))
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !res.SourceRemoved || res.Warning != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	assertGone(t, fx.src)
}

func TestFinalizeSourceRemovalFailureIsWarning(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	fx := newFixture(t, "new")
	srcDir := filepath.Join(fx.dir, "locked")
	if err := os.Mkdir(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(srcDir, "in.mov")
	writeFile(t, src, "source")
	if err := os.Chmod(srcDir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(srcDir, 0o755) })

	res, err := New(nil).Finalize(context.Background(), fx.output(), fx.plan(func(p *plan.Plan) {
		p.Source = src
		p.MoveSource = true
	}))
	if err != nil {
		t.Fatalf("source removal failure must not fail the run: %v", err)
	}
	if res.SourceRemoved || res.Warning == "" {
		t.Fatalf("expected warning, got %+v", res)
	}
	if readFile(t, fx.dest) != "new" {
		t.Fatal("destination should be published")
	}
}

func TestFinalizeRemovesCreatedDirsOnFailure(t *testing.T) {
	fx := newFixture(t, "")
	created := filepath.Join(fx.dir, "made")
	if err := os.Mkdir(created, 0o755); err != nil {
		t.Fatal(err)
	}
	out := fx.output()
	out.CreatedDirs = []string{created}
	_, err := New(nil).Finalize(context.Background(), out, fx.plan(nil))
	if !errors.Is(err, services.ErrEmptyOutput) {
		t.Fatalf("expected ErrEmptyOutput, got %v", err)
	}
	assertGone(t, created)
}
