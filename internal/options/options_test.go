package options_test

import (
	"errors"
	"testing"

	"mvx/internal/options"
	"mvx/internal/services"
)

func TestFlagsValidateConflicts(t *testing.T) {
	cases := []struct {
		name  string
		flags options.Flags
	}{
		{"copy and transcode", options.Flags{StreamCopy: true, Transcode: true}},
		{"overwrite and backup", options.Flags{Overwrite: true, Backup: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.flags.Validate()
			if !errors.Is(err, services.ErrConflictingOptions) {
				t.Fatalf("expected ErrConflictingOptions, got %v", err)
			}
		})
	}
}

func TestFlagsValidateValues(t *testing.T) {
	cases := []struct {
		name string
		conv options.Conversion
		ok   bool
	}{
		{"empty", options.Conversion{}, true},
		{"quality low", options.Conversion{ImageQuality: -1}, false},
		{"quality high", options.Conversion{ImageQuality: 101}, false},
		{"quality edge", options.Conversion{ImageQuality: 100}, true},
		{"bitrate k", options.Conversion{VideoBitrate: "2500k"}, true},
		{"bitrate M", options.Conversion{AudioBitrate: "2M"}, true},
		{"bitrate junk", options.Conversion{VideoBitrate: "fast"}, false},
		{"bitrate suffix only", options.Conversion{AudioBitrate: "k"}, false},
		{"preset ok", options.Conversion{Preset: "veryslow"}, true},
		{"preset bad", options.Conversion{Preset: "ludicrous"}, false},
		{"codec blank", options.Conversion{VideoCodec: "  "}, false},
		{"codec spaced", options.Conversion{AudioCodec: "lib mp3"}, false},
		{"preference bad", options.Conversion{Preference: "sometimes"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := options.Flags{Conversion: tc.conv}.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, services.ErrInvalidOption) {
				t.Fatalf("expected ErrInvalidOption, got %v", err)
			}
		})
	}
}

func TestMergeExplicitWins(t *testing.T) {
	base := options.Conversion{ImageQuality: 80, VideoBitrate: "1M", Preference: options.PreferenceTranscode}
	got := options.Merge(base, options.Conversion{ImageQuality: 95, AudioCodec: "libopus"})
	if got.ImageQuality != 95 || got.VideoBitrate != "1M" || got.AudioCodec != "libopus" {
		t.Fatalf("unexpected merge result: %+v", got)
	}
	if got.Preference != options.PreferenceTranscode {
		t.Fatalf("expected base preference retained, got %q", got.Preference)
	}
}

func TestEffectivePreference(t *testing.T) {
	if got := (options.Flags{}).EffectivePreference(); got != options.PreferenceAuto {
		t.Fatalf("default preference = %q", got)
	}
	f := options.Flags{Conversion: options.Conversion{Preference: options.PreferenceTranscode}, StreamCopy: true}
	if got := f.EffectivePreference(); got != options.PreferenceStreamCopy {
		t.Fatalf("explicit flag should win, got %q", got)
	}
}
