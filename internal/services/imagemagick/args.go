// Package imagemagick builds ImageMagick command lines. The same vector
// works for the magick entry point and the legacy convert binary.
package imagemagick

import "strconv"

// Request describes one image conversion.
type Request struct {
	Input  string
	Output string
	// Quality is 1-100; zero leaves the encoder default.
	Quality int
	// FirstFrame selects only the first page or frame of the input.
	FirstFrame bool
}

// Args returns the argument vector for req. The output format follows the
// output file's extension.
func Args(req Request) []string {
	input := req.Input
	if req.FirstFrame {
		input += "[0]"
	}
	args := []string{input}
	if req.Quality > 0 {
		args = append(args, "-quality", strconv.Itoa(req.Quality))
	}
	return append(args, req.Output)
}
