package batch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mvx/internal/services"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectDirectoryAndRecursion(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.wav"))
	touch(t, filepath.Join(dir, "b.wav"))
	touch(t, filepath.Join(dir, "sub", "c.wav"))

	flat, err := Collect([]string{dir}, false)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(flat) != 2 {
		t.Fatalf("flat collect = %v", flat)
	}

	deep, err := Collect([]string{dir}, true)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := []string{filepath.Join(dir, "a.wav"), filepath.Join(dir, "b.wav"), filepath.Join(dir, "sub", "c.wav")}
	if strings.Join(deep, ",") != strings.Join(want, ",") {
		t.Fatalf("recursive collect = %v, want %v", deep, want)
	}
}

func TestCollectGlobDedupesAndSorts(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "z.png"))
	touch(t, filepath.Join(dir, "a.png"))
	touch(t, filepath.Join(dir, "notes.txt"))

	got, err := Collect([]string{filepath.Join(dir, "*.png"), filepath.Join(dir, "a.png"), filepath.Join(dir, "nothing-*.gif")}, false)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "z.png")}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Collect = %v, want %v", got, want)
	}
}

func TestCollectMissingInput(t *testing.T) {
	_, err := Collect([]string{filepath.Join(t.TempDir(), "missing.mov")}, false)
	if !errors.Is(err, services.ErrDetection) {
		t.Fatalf("expected ErrDetection, got %v", err)
	}
}

func TestReadLines(t *testing.T) {
	lines, err := ReadLines(strings.NewReader("a.mov\n\n  b.mov  \r\n"))
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if strings.Join(lines, "|") != "a.mov|b.mov" {
		t.Fatalf("ReadLines = %q", lines)
	}
}

func TestTargetDestination(t *testing.T) {
	cases := []struct {
		target Target
		source string
		want   string
	}{
		{Target{DestDir: "/out", Ext: "mp3"}, "/in/clip.wav", "/out/clip.mp3"},
		{Target{DestDir: "/out", Ext: ".mp3"}, "/in/clip.wav", "/out/clip.mp3"},
		{Target{DestDir: "/out"}, "/in/clip.wav", "/out/clip.wav"},
		{Target{DestDir: "/out", Ext: "pdf"}, "/in/README", "/out/README.pdf"},
	}
	for _, tc := range cases {
		if got := tc.target.Destination(tc.source); got != tc.want {
			t.Errorf("Destination(%q) = %q, want %q", tc.source, got, tc.want)
		}
	}
}

func TestPairRejectsCollisions(t *testing.T) {
	items := Pair([]string{"/a/clip.wav", "/b/clip.wav", "/a/other.wav"}, Target{DestDir: "/out", Ext: "mp3"})
	if len(items) != 3 {
		t.Fatalf("got %d items", len(items))
	}
	if items[0].Err != nil || items[2].Err != nil {
		t.Fatalf("unexpected rejections: %v, %v", items[0].Err, items[2].Err)
	}
	if !errors.Is(items[1].Err, services.ErrDestinationExists) {
		t.Fatalf("expected collision error, got %v", items[1].Err)
	}
	if items[1].Index != 2 {
		t.Fatalf("index = %d", items[1].Index)
	}

	self := Pair([]string{"/out/clip.mp3"}, Target{DestDir: "/out"})
	if !errors.Is(self[0].Err, services.ErrInvalidOption) {
		t.Fatalf("expected self-overwrite rejection, got %v", self[0].Err)
	}
}
