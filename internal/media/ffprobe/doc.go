// Package ffprobe runs ffprobe and decodes the container and stream fields
// that decide between stream copy and transcode.
package ffprobe
