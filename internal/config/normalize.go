package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeTools()
	c.normalizeProfiles()
	c.normalizeCompat()
	if c.Batch.Jobs <= 0 {
		c.Batch.Jobs = defaultBatchJobs
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDirFromEnv()
	}
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) != "" {
		if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
			return fmt.Errorf("paths.log_dir: %w", err)
		}
	}
	return nil
}

func defaultStateDirFromEnv() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "mvx")
	}
	return defaultStateDir
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeTools() {
	fill := func(value *string, fallback string) {
		*value = strings.TrimSpace(*value)
		if *value == "" {
			*value = fallback
		}
	}
	fill(&c.Tools.FFmpeg, defaultFFmpeg)
	fill(&c.Tools.FFprobe, defaultFFprobe)
	fill(&c.Tools.ImageMagick, defaultImageMagick)
	fill(&c.Tools.ImageMagickLegacy, defaultImageMagickLegacy)
	fill(&c.Tools.LibreOffice, defaultLibreOffice)
}

func (c *Config) normalizeProfiles() {
	c.Defaults = normalizeProfile(c.Defaults)
	for name, profile := range c.Profiles {
		c.Profiles[name] = normalizeProfile(profile)
	}
}

func normalizeProfile(p Profile) Profile {
	p.VideoBitrate = strings.TrimSpace(p.VideoBitrate)
	p.AudioBitrate = strings.TrimSpace(p.AudioBitrate)
	p.Preset = strings.ToLower(strings.TrimSpace(p.Preset))
	p.VideoCodec = strings.TrimSpace(p.VideoCodec)
	p.AudioCodec = strings.TrimSpace(p.AudioCodec)
	p.FFmpegPreference = strings.ToLower(strings.TrimSpace(p.FFmpegPreference))
	p.FFmpegPreference = strings.ReplaceAll(p.FFmpegPreference, "_", "-")
	return p
}

func (c *Config) normalizeCompat() {
	if len(c.Compat) == 0 {
		return
	}
	normalized := make(map[string]Compat, len(c.Compat))
	for ext, compat := range c.Compat {
		key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		normalized[key] = Compat{
			Video: lowerAll(compat.Video),
			Audio: lowerAll(compat.Audio),
		}
	}
	c.Compat = normalized
}

func lowerAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
