package config

const (
	defaultStateDir          = "~/.local/share/mvx"
	defaultLogFormat         = "console"
	defaultLogLevel          = "warn"
	defaultFFmpeg            = "ffmpeg"
	defaultFFprobe           = "ffprobe"
	defaultImageMagick       = "magick"
	defaultImageMagickLegacy = "convert"
	defaultLibreOffice       = "soffice"
	defaultBatchJobs         = 1
	maxBatchJobs             = 64
	defaultHistoryEnabled    = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Tools: Tools{
			FFmpeg:            defaultFFmpeg,
			FFprobe:           defaultFFprobe,
			ImageMagick:       defaultImageMagick,
			ImageMagickLegacy: defaultImageMagickLegacy,
			LibreOffice:       defaultLibreOffice,
		},
		Batch: Batch{
			Jobs: defaultBatchJobs,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
		Defaults: Profile{
			FFmpegPreference: "auto",
		},
	}
}
