package execute

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"mvx/internal/testsupport"
)

func TestRunProcessDoesNotWaitForStragglingHelper(t *testing.T) {
	// The backend exits at once but leaves a child holding its stdout.
	bin := testsupport.StubBinary(t, filepath.Join(t.TempDir(), "bin"), "soffice", `(sleep 10) &
echo "convert done"
exit 0
`)
	diag := newDiagnostics(8)

	started := time.Now()
	err := runProcess(context.Background(), runSpec{binary: bin, diag: diag, waitDelay: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("runProcess: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Fatalf("runProcess blocked on the helper for %v", elapsed)
	}
	if !slices.Contains(diag.snapshot(), "convert done") {
		t.Fatalf("diagnostics = %v", diag.snapshot())
	}
}

func TestRunProcessReportsExitStatus(t *testing.T) {
	bin := testsupport.StubBinary(t, filepath.Join(t.TempDir(), "bin"), "ffmpeg", testsupport.ScriptFail)
	diag := newDiagnostics(8)

	err := runProcess(context.Background(), runSpec{binary: bin, diag: diag})
	if exitCode(err) != 1 {
		t.Fatalf("exit code = %d (%v), want 1", exitCode(err), err)
	}
	if !slices.Contains(diag.snapshot(), "Invalid data found when processing input") {
		t.Fatalf("diagnostics = %v", diag.snapshot())
	}
}
