package plan

import (
	"fmt"

	"mvx/internal/options"
)

type knob uint

const (
	knobImageQuality knob = 1 << iota
	knobVideoBitrate
	knobAudioBitrate
	knobPreset
	knobVideoCodec
	knobAudioCodec
	knobStreamCopy
	knobTranscode

	encodeKnobs = knobVideoBitrate | knobAudioBitrate | knobPreset | knobVideoCodec | knobAudioCodec | knobStreamCopy | knobTranscode
	allKnobs    = encodeKnobs | knobImageQuality
)

var knobOrder = []struct {
	knob  knob
	label string
	isSet func(options.Flags) bool
}{
	{knobImageQuality, "image quality", func(f options.Flags) bool { return f.ImageQuality != 0 }},
	{knobVideoBitrate, "video bitrate", func(f options.Flags) bool { return f.VideoBitrate != "" }},
	{knobAudioBitrate, "audio bitrate", func(f options.Flags) bool { return f.AudioBitrate != "" }},
	{knobPreset, "preset", func(f options.Flags) bool { return f.Preset != "" }},
	{knobVideoCodec, "video codec", func(f options.Flags) bool { return f.VideoCodec != "" }},
	{knobAudioCodec, "audio codec", func(f options.Flags) bool { return f.AudioCodec != "" }},
	{knobStreamCopy, "--stream-copy", func(f options.Flags) bool { return f.StreamCopy }},
	{knobTranscode, "--transcode", func(f options.Flags) bool { return f.Transcode }},
}

// ignoredNotes lists the set options in mask that have no effect for reason.
func ignoredNotes(reason string, flags options.Flags, mask knob) []string {
	var notes []string
	for _, k := range knobOrder {
		if mask&k.knob == 0 || !k.isSet(flags) {
			continue
		}
		notes = append(notes, fmt.Sprintf("ignored: %s (not used by %s)", k.label, reason))
	}
	return notes
}
