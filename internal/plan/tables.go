package plan

import (
	"sort"
	"strings"

	"mvx/internal/media"
)

// AnyCodec in an allow-list accepts every codec.
const AnyCodec = "*"

// Allow is the codec allow-list of one destination container.
type Allow struct {
	Video []string `json:"video"`
	Audio []string `json:"audio"`
}

// CompatTable maps a destination extension to the codecs it can carry
// without re-encoding. Containers without an entry never remux in auto mode.
type CompatTable map[string]Allow

// DefaultCompat returns the built-in allow-lists. Audio-only containers are
// absent on purpose: auto mode re-encodes audio to the container's codec.
func DefaultCompat() CompatTable {
	mp4 := Allow{
		Video: []string{"h264", "hevc", "mpeg4", "av1"},
		Audio: []string{"aac", "mp3", "alac"},
	}
	return CompatTable{
		"mp4":  mp4,
		"mov":  mp4,
		"webm": {Video: []string{"vp8", "vp9", "av1"}, Audio: []string{"opus", "vorbis"}},
		"mkv":  {Video: []string{AnyCodec}, Audio: []string{AnyCodec}},
	}
}

// With returns a copy of t where each override replaces the whole entry for
// its container.
func (t CompatTable) With(overrides map[string]Allow) CompatTable {
	out := make(CompatTable, len(t)+len(overrides))
	for ext, allow := range t {
		out[ext] = allow
	}
	for ext, allow := range overrides {
		out[strings.ToLower(strings.TrimPrefix(ext, "."))] = allow
	}
	return out
}

// Accepts reports whether every audio and video stream in info may be
// copied into a container of type ext. Other streams (subtitles, data) are
// not carried by a remux and do not participate.
func (t CompatTable) Accepts(ext string, info *media.Info) bool {
	if info == nil {
		return false
	}
	allow, ok := t[ext]
	if !ok {
		return false
	}
	considered := 0
	for _, s := range info.Streams {
		var list []string
		switch s.Kind {
		case media.StreamVideo:
			list = allow.Video
		case media.StreamAudio:
			list = allow.Audio
		default:
			continue
		}
		considered++
		if !contains(list, s.Codec) {
			return false
		}
	}
	return considered > 0
}

// Containers lists the extensions with an entry, sorted.
func (t CompatTable) Containers() []string {
	out := make([]string, 0, len(t))
	for ext := range t {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, codec string) bool {
	if codec == "" {
		return false
	}
	for _, c := range list {
		if c == AnyCodec || c == codec {
			return true
		}
	}
	return false
}

// Defaults are the per-destination fallbacks used when an option is unset.
type Defaults struct {
	VideoCodec   string
	AudioCodec   string
	AudioBitrate string
	Preset       string
	ImageQuality int
}

var defaultTable = map[string]Defaults{
	"mp4":  {VideoCodec: "libx264", AudioCodec: "aac", AudioBitrate: "192k", Preset: "medium"},
	"mov":  {VideoCodec: "libx264", AudioCodec: "aac", AudioBitrate: "192k", Preset: "medium"},
	"mkv":  {VideoCodec: "libx264", AudioCodec: "aac", AudioBitrate: "192k", Preset: "medium"},
	"avi":  {VideoCodec: "libx264", AudioCodec: "aac", AudioBitrate: "192k", Preset: "medium"},
	"webm": {VideoCodec: "libvpx-vp9", AudioCodec: "libopus", AudioBitrate: "128k"},

	"mp3":  {AudioCodec: "libmp3lame", AudioBitrate: "192k"},
	"m4a":  {AudioCodec: "aac", AudioBitrate: "192k"},
	"aac":  {AudioCodec: "aac", AudioBitrate: "192k"},
	"opus": {AudioCodec: "libopus", AudioBitrate: "128k"},
	"ogg":  {AudioCodec: "libvorbis"},
	"flac": {AudioCodec: "flac"},
	"wav":  {AudioCodec: "pcm_s16le"},

	"jpg":  {ImageQuality: 92},
	"webp": {ImageQuality: 90},
	"avif": {ImageQuality: 80},
	"heic": {ImageQuality: 85},
}

// DefaultsFor returns the fallback parameters for a destination extension.
func DefaultsFor(ext string) Defaults {
	return defaultTable[ext]
}

// Encoders that understand the x264-style -preset names.
var presetEncoders = map[string]bool{
	"libx264": true,
	"libx265": true,
}
