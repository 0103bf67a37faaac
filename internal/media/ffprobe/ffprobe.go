package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// entries limits the report to what stream-copy planning reads.
const entries = "format=format_name,duration:stream=codec_type,codec_name,duration,bit_rate"

// Result is the subset of an ffprobe report mvx plans from.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream is one elementary stream. Numeric fields stay as ffprobe prints
// them because "N/A" is common.
type Stream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Duration  string `json:"duration"`
	BitRate   string `json:"bit_rate"`
}

// Format is the container section.
type Format struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// Inspect runs ffprobe on path and decodes its JSON report. Stderr is kept
// for the error message only.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_entries", entries, "-of", "json", "--", path) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return Parse(stdout.Bytes())
}

// Parse decodes an ffprobe JSON report.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// Duration is the container duration, falling back to the longest stream
// when the container does not report one. Zero means unknown.
func (r Result) Duration() time.Duration {
	seconds := parseDecimal(r.Format.Duration)
	if seconds == 0 {
		for _, s := range r.Streams {
			seconds = max(seconds, parseDecimal(s.Duration))
		}
	}
	return time.Duration(seconds * float64(time.Second))
}

// BitsPerSecond returns the stream bitrate, or 0 when unavailable.
func (s Stream) BitsPerSecond() int64 {
	return int64(parseDecimal(s.BitRate))
}

// parseDecimal reads a non-negative decimal. Blank, "N/A" and malformed
// values read as zero.
func parseDecimal(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "N/A" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || parsed < 0 {
		return 0
	}
	return parsed
}
