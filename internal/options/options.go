// Package options holds the user-tunable conversion knobs shared by the
// configuration file, profiles, and command-line flags, together with the
// validation rules applied before any file is touched.
package options

import (
	"fmt"
	"regexp"
	"strings"

	"mvx/internal/services"
)

// Preference selects how audio/video pairs choose between remux and transcode.
type Preference string

const (
	PreferenceAuto       Preference = "auto"
	PreferenceStreamCopy Preference = "stream-copy"
	PreferenceTranscode  Preference = "transcode"
)

// Presets lists the encoder speed presets accepted by --preset, fastest first.
var Presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow",
}

var bitratePattern = regexp.MustCompile(`^[0-9]+[kKmM]?$`)

// Conversion carries the resolved parameter overrides. Zero values mean
// "unset" and fall back to the per-format default table.
type Conversion struct {
	ImageQuality int
	VideoBitrate string
	AudioBitrate string
	Preset       string
	VideoCodec   string
	AudioCodec   string
	Preference   Preference
}

// Flags is the full set of per-invocation switches.
type Flags struct {
	Conversion
	StreamCopy bool
	Transcode  bool
	Overwrite  bool
	Backup     bool
	MoveSource bool
}

// Merge layers override on top of base; set fields in override win.
func Merge(base, override Conversion) Conversion {
	out := base
	if override.ImageQuality != 0 {
		out.ImageQuality = override.ImageQuality
	}
	if override.VideoBitrate != "" {
		out.VideoBitrate = override.VideoBitrate
	}
	if override.AudioBitrate != "" {
		out.AudioBitrate = override.AudioBitrate
	}
	if override.Preset != "" {
		out.Preset = override.Preset
	}
	if override.VideoCodec != "" {
		out.VideoCodec = override.VideoCodec
	}
	if override.AudioCodec != "" {
		out.AudioCodec = override.AudioCodec
	}
	if override.Preference != "" {
		out.Preference = override.Preference
	}
	return out
}

// EffectivePreference folds the explicit flags over the configured preference.
func (f Flags) EffectivePreference() Preference {
	switch {
	case f.Transcode:
		return PreferenceTranscode
	case f.StreamCopy:
		return PreferenceStreamCopy
	case f.Preference != "":
		return f.Preference
	default:
		return PreferenceAuto
	}
}

// Validate rejects conflicting switches and malformed values.
func (f Flags) Validate() error {
	if f.StreamCopy && f.Transcode {
		return services.Wrap(services.ErrConflictingOptions, "validate", "flags", "--stream-copy and --transcode are mutually exclusive", nil)
	}
	if f.Overwrite && f.Backup {
		return services.Wrap(services.ErrConflictingOptions, "validate", "flags", "--overwrite and --backup are mutually exclusive", nil)
	}
	if err := f.Conversion.Validate(); err != nil {
		return services.Wrap(services.ErrInvalidOption, "validate", "flags", "", err)
	}
	return nil
}

// Validate checks each set value. It returns plain errors so callers can tag
// them as configuration or flag problems.
func (c Conversion) Validate() error {
	if c.ImageQuality != 0 && (c.ImageQuality < 1 || c.ImageQuality > 100) {
		return fmt.Errorf("image quality must be between 1 and 100, got %d", c.ImageQuality)
	}
	if err := validateBitrate("video bitrate", c.VideoBitrate); err != nil {
		return err
	}
	if err := validateBitrate("audio bitrate", c.AudioBitrate); err != nil {
		return err
	}
	if c.Preset != "" && !IsPreset(c.Preset) {
		return fmt.Errorf("preset %q is not one of %s", c.Preset, strings.Join(Presets, ", "))
	}
	if err := validateCodec("video codec", c.VideoCodec); err != nil {
		return err
	}
	if err := validateCodec("audio codec", c.AudioCodec); err != nil {
		return err
	}
	switch c.Preference {
	case "", PreferenceAuto, PreferenceStreamCopy, PreferenceTranscode:
	default:
		return fmt.Errorf("ffmpeg preference %q must be auto, stream-copy, or transcode", c.Preference)
	}
	return nil
}

// IsPreset reports whether value names a known encoder preset.
func IsPreset(value string) bool {
	for _, p := range Presets {
		if p == value {
			return true
		}
	}
	return false
}

func validateBitrate(label, value string) error {
	if value == "" {
		return nil
	}
	if !bitratePattern.MatchString(value) {
		return fmt.Errorf("%s %q must be digits with an optional k or M suffix", label, value)
	}
	return nil
}

func validateCodec(label, value string) error {
	if value == "" {
		return nil
	}
	if strings.TrimSpace(value) == "" || strings.ContainsAny(value, " \t\n") {
		return fmt.Errorf("%s %q must be a single non-empty name", label, value)
	}
	return nil
}
