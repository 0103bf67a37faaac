// Package batch expands batch inputs into (source, destination) pairs.
//
// Inputs are explicit paths, glob patterns, and directories, optionally
// walked recursively. The expanded set is deduplicated and sorted so runs
// are deterministic. Destinations are <dest-dir>/<name>, with the extension
// swapped when a target extension is given.
package batch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mvx/internal/services"
)

// Item is one unit of batch work. Err is set when the pair was rejected
// before dispatch.
type Item struct {
	Index       int
	Source      string
	Destination string
	Err         error
}

// Target controls destination naming.
type Target struct {
	DestDir string
	// Ext replaces the source extension when set. A leading dot is ignored.
	Ext string
}

// Collect expands inputs into a sorted, deduplicated list of regular files.
// Globs that match nothing are skipped; other missing inputs are errors.
func Collect(inputs []string, recursive bool) ([]string, error) {
	seen := make(map[string]struct{})
	add := func(path string) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		seen[filepath.Clean(path)] = struct{}{}
	}

	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if looksLikeGlob(input) {
			matches, err := filepath.Glob(input)
			if err != nil {
				return nil, services.Wrap(services.ErrInvalidOption, "batch", "expand glob", input, err)
			}
			for _, match := range matches {
				if err := addPath(match, recursive, add); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := addPath(input, recursive, add); err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

func addPath(path string, recursive bool, add func(string)) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrDetection, "batch", "collect", "input not found: "+path, nil)
		}
		return services.Wrap(services.ErrDetection, "batch", "collect", path, err)
	}
	if !info.IsDir() {
		if info.Mode().IsRegular() {
			add(path)
		}
		return nil
	}
	if !recursive {
		entries, err := os.ReadDir(path)
		if err != nil {
			return services.Wrap(services.ErrDetection, "batch", "read directory", path, err)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				add(filepath.Join(path, entry.Name()))
			}
		}
		return nil
	}
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			add(p)
		}
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrDetection, "batch", "walk directory", path, err)
	}
	return nil
}

func looksLikeGlob(input string) bool {
	return strings.ContainsAny(input, "*?[")
}

// ReadLines returns the non-blank lines of r, trimmed.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input list: %w", err)
	}
	return lines, nil
}

// Destination names the output for source under t.
func (t Target) Destination(source string) string {
	name := filepath.Base(source)
	if ext := strings.TrimPrefix(strings.TrimSpace(t.Ext), "."); ext != "" {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + "." + ext
	}
	return filepath.Join(t.DestDir, name)
}

// Pair maps sources to items. When two sources map to the same destination
// every one after the first is rejected, since the later write would
// silently replace an output of this same run.
func Pair(sources []string, t Target) []Item {
	items := make([]Item, 0, len(sources))
	claimed := make(map[string]string, len(sources))
	for i, source := range sources {
		item := Item{Index: i + 1, Source: source, Destination: t.Destination(source)}
		key := item.Destination
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
		if first, dup := claimed[key]; dup {
			item.Err = services.Wrap(services.ErrDestinationExists, "batch", "pair",
				fmt.Sprintf("%s is also the destination of %s", item.Destination, first), nil)
		} else {
			claimed[key] = source
		}
		if item.Err == nil && sameFile(source, item.Destination) {
			item.Err = services.Wrap(services.ErrInvalidOption, "batch", "pair",
				fmt.Sprintf("%s would overwrite its own source", item.Destination), nil)
		}
		items = append(items, item)
	}
	return items
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
