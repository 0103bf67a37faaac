package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Script bodies for common backend behaviours. They run under /bin/sh.
const (
	// ScriptFFmpegOK writes a payload to the last argument and reports a
	// short progress stream on stdout.
	ScriptFFmpegOK = `for last; do :; done
printf 'converted-media' > "$last"
echo "out_time_us=1000000"
echo "progress=continue"
echo "out_time_us=2000000"
echo "progress=end"
`
	// ScriptImageOK writes a payload to the last argument.
	ScriptImageOK = `for last; do :; done
printf 'converted-image' > "$last"
`
	// ScriptSofficeOK mimics soffice: writes <stem>.pdf into --outdir.
	ScriptSofficeOK = `out=""
src=""
while [ $# -gt 0 ]; do
  case "$1" in
    --outdir) shift; out="$1" ;;
    *) src="$1" ;;
  esac
  shift
done
base=$(basename "$src")
printf '%%PDF-1.4 stub' > "$out/${base%.*}.pdf"
`
	// ScriptFail prints a diagnostic and exits 1.
	ScriptFail = `echo "Invalid data found when processing input" >&2
exit 1
`
	// ScriptNoOutput exits cleanly without writing anything.
	ScriptNoOutput = "exit 0\n"
	// ScriptSleep blocks long enough for a test to cancel it.
	ScriptSleep = "sleep 30\n"
)

// StubBinary writes an executable shell script named name into dir and
// returns its path.
func StubBinary(t testing.TB, dir, name, body string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	script := []byte("#!/bin/sh\n" + body)
	if err := os.WriteFile(target, script, 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// WriteBytes writes content to path, creating parent directories.
func WriteBytes(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ListDir returns the entry names of dir, failing the test on error.
func ListDir(t testing.TB, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
