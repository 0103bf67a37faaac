package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WritePattern creates path holding size bytes of a repeating 0..250 ramp,
// so truncation or reordering shows up in a byte comparison. It returns the
// written content.
func WritePattern(t testing.TB, path string, size int) []byte {
	t.Helper()

	if size < 1 {
		size = 1
	}
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return content
}
