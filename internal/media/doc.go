// Package media describes the stream layout of audio/video sources and
// obtains it from ffprobe.
//
// Probing is best effort: when ffprobe is missing, fails, or prints
// something unparsable, Probe returns nil and logs why. Callers treat a nil
// Info as "streams unknown" and must not assume stream-copy compatibility.
package media
