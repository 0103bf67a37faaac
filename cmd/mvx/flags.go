package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mvx/internal/config"
	"mvx/internal/options"
	"mvx/internal/services"
)

// conversionFlags holds the per-invocation conversion switches shared by the
// root and batch commands.
type conversionFlags struct {
	profile      string
	imageQuality int
	videoBitrate string
	audioBitrate string
	preset       string
	videoCodec   string
	audioCodec   string
	streamCopy   bool
	transcode    bool
	overwrite    bool
	backup       bool
	moveSource   bool
}

func (f *conversionFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.profile, "profile", "", "Named conversion profile from the config file")
	flags.IntVar(&f.imageQuality, "image-quality", 0, "Image quality 1-100")
	flags.StringVar(&f.videoBitrate, "video-bitrate", "", "Video bitrate, e.g. 2500k")
	flags.StringVar(&f.audioBitrate, "audio-bitrate", "", "Audio bitrate, e.g. 192k")
	flags.StringVar(&f.preset, "preset", "", "Encoder preset (ultrafast ... veryslow)")
	flags.StringVar(&f.videoCodec, "video-codec", "", "Video encoder name passed to ffmpeg")
	flags.StringVar(&f.audioCodec, "audio-codec", "", "Audio encoder name passed to ffmpeg")
	flags.BoolVar(&f.streamCopy, "stream-copy", false, "Force a remux without re-encoding")
	flags.BoolVar(&f.transcode, "transcode", false, "Force re-encoding even when a remux is possible")
	flags.BoolVar(&f.overwrite, "overwrite", false, "Replace an existing destination")
	flags.BoolVar(&f.backup, "backup", false, "Move an existing destination to <dest>.bak first")
	flags.BoolVar(&f.moveSource, "move-source", false, "Delete the source after a successful publish")
}

// resolve layers config defaults, the selected profile, and explicit flags.
func (f *conversionFlags) resolve(cmd *cobra.Command, cfg *config.Config) (options.Flags, error) {
	if cmd.Flags().Changed("image-quality") && f.imageQuality < 1 {
		return options.Flags{}, services.Wrap(services.ErrInvalidOption, "validate", "flags",
			fmt.Sprintf("image quality must be between 1 and 100, got %d", f.imageQuality), nil)
	}
	base, err := cfg.Conversion(f.profile)
	if err != nil {
		return options.Flags{}, err
	}
	conv := options.Merge(base, options.Conversion{
		ImageQuality: f.imageQuality,
		VideoBitrate: strings.TrimSpace(f.videoBitrate),
		AudioBitrate: strings.TrimSpace(f.audioBitrate),
		Preset:       strings.ToLower(strings.TrimSpace(f.preset)),
		VideoCodec:   strings.TrimSpace(f.videoCodec),
		AudioCodec:   strings.TrimSpace(f.audioCodec),
	})
	return options.Flags{
		Conversion: conv,
		StreamCopy: f.streamCopy,
		Transcode:  f.transcode,
		Overwrite:  f.overwrite,
		Backup:     f.backup,
		MoveSource: f.moveSource,
	}, nil
}

// outputFlags selects how results are reported.
type outputFlags struct {
	planOnly bool
	json     bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&f.planOnly, "plan", false, "Show the conversion plan without touching any file")
	flags.BoolVar(&f.planOnly, "dry-run", false, "Alias for --plan")
	flags.BoolVar(&f.json, "json", false, "Emit plans and results as JSON")
}
