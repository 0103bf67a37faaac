package media

import (
	"strings"
	"time"

	"mvx/internal/media/ffprobe"
)

// StreamKind classifies an elementary stream.
type StreamKind string

const (
	StreamVideo StreamKind = "video"
	StreamAudio StreamKind = "audio"
	StreamOther StreamKind = "other"
)

// Stream is one elementary stream of a container.
type Stream struct {
	Kind  StreamKind `json:"kind"`
	Codec string     `json:"codec"`
	// BitRate is in bits per second; zero when the container does not say.
	BitRate int64 `json:"bit_rate,omitempty"`
}

// Info is the probed layout of a media source.
type Info struct {
	Container string   `json:"container"`
	Streams   []Stream `json:"streams"`
	// Duration is zero when unknown.
	Duration time.Duration `json:"duration,omitempty"`
}

// HasDuration reports whether a positive total duration is known.
func (i *Info) HasDuration() bool {
	return i != nil && i.Duration > 0
}

// StreamsOf returns the streams of the given kind in container order.
func (i *Info) StreamsOf(kind StreamKind) []Stream {
	if i == nil {
		return nil
	}
	var out []Stream
	for _, s := range i.Streams {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Codecs summarizes the streams as "video:h264 audio:aac".
func (i *Info) Codecs() string {
	if i == nil || len(i.Streams) == 0 {
		return ""
	}
	parts := make([]string, 0, len(i.Streams))
	for _, s := range i.Streams {
		codec := s.Codec
		if codec == "" {
			codec = "?"
		}
		parts = append(parts, string(s.Kind)+":"+codec)
	}
	return strings.Join(parts, " ")
}

// FromResult converts raw ffprobe output. Fields ffprobe left blank stay
// zero; partial data is valid.
func FromResult(r ffprobe.Result) *Info {
	info := &Info{
		Container: firstFormatName(r.Format.FormatName),
		Duration:  r.Duration(),
	}
	for _, s := range r.Streams {
		info.Streams = append(info.Streams, Stream{
			Kind:    streamKind(s.CodecType),
			Codec:   strings.ToLower(strings.TrimSpace(s.CodecName)),
			BitRate: s.BitsPerSecond(),
		})
	}
	return info
}

func streamKind(codecType string) StreamKind {
	switch strings.ToLower(strings.TrimSpace(codecType)) {
	case "video":
		return StreamVideo
	case "audio":
		return StreamAudio
	default:
		return StreamOther
	}
}

func firstFormatName(name string) string {
	name = strings.TrimSpace(name)
	if head, _, ok := strings.Cut(name, ","); ok {
		return head
	}
	return name
}
