package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"mvx/internal/options"
	"mvx/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state and log locations.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Tools names the external binaries. Bare names are resolved through PATH.
type Tools struct {
	FFmpeg            string `toml:"ffmpeg"`
	FFprobe           string `toml:"ffprobe"`
	ImageMagick       string `toml:"imagemagick"`
	ImageMagickLegacy string `toml:"imagemagick_legacy"`
	LibreOffice       string `toml:"libreoffice"`
}

// Batch contains batch-mode limits.
type Batch struct {
	Jobs int `toml:"jobs"`
}

// History toggles the conversion journal.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Profile is a named bundle of conversion defaults.
type Profile struct {
	ImageQuality     int    `toml:"image_quality,omitempty"`
	VideoBitrate     string `toml:"video_bitrate,omitempty"`
	AudioBitrate     string `toml:"audio_bitrate,omitempty"`
	Preset           string `toml:"preset,omitempty"`
	VideoCodec       string `toml:"video_codec,omitempty"`
	AudioCodec       string `toml:"audio_codec,omitempty"`
	FFmpegPreference string `toml:"ffmpeg_preference,omitempty"`
}

// Compat overrides the codec allow-lists for one destination container.
type Compat struct {
	Video []string `toml:"video"`
	Audio []string `toml:"audio"`
}

// Config encapsulates all configuration values for mvx.
type Config struct {
	Paths    Paths              `toml:"paths"`
	Logging  Logging            `toml:"logging"`
	Tools    Tools              `toml:"tools"`
	Batch    Batch              `toml:"batch"`
	History  History            `toml:"history"`
	Defaults Profile            `toml:"defaults"`
	Profiles map[string]Profile `toml:"profile,omitempty"`
	Compat   map[string]Compat  `toml:"compat,omitempty"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location, honouring XDG_CONFIG_HOME.
func DefaultConfigPath() (string, error) {
	if base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); base != "" {
		return expandPath(filepath.Join(base, "mvx", "config.toml"))
	}
	return expandPath("~/.config/mvx/config.toml")
}

// Load locates, parses, and validates a configuration file. An explicit path
// must exist; the default location is optional. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "open", resolvedPath, err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "normalize", "", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, services.Wrap(services.ErrConfiguration, "config", "resolve", fmt.Sprintf("config file %s does not exist", expanded), nil)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, services.Wrap(services.ErrConfiguration, "config", "resolve", fmt.Sprintf("config path %s is a directory", expanded), nil)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// Conversion returns the configured defaults layered with the named profile.
// An empty name selects the defaults alone.
func (c *Config) Conversion(profile string) (options.Conversion, error) {
	base := c.Defaults.conversion()
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return base, nil
	}
	selected, ok := c.Profiles[profile]
	if !ok {
		return options.Conversion{}, services.Wrap(services.ErrConfiguration, "config", "profile",
			fmt.Sprintf("profile %q not found (available: %s)", profile, strings.Join(c.ProfileNames(), ", ")), nil)
	}
	return options.Merge(base, selected.conversion()), nil
}

// ProfileNames lists the configured profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p Profile) conversion() options.Conversion {
	return options.Conversion{
		ImageQuality: p.ImageQuality,
		VideoBitrate: p.VideoBitrate,
		AudioBitrate: p.AudioBitrate,
		Preset:       p.Preset,
		VideoCodec:   p.VideoCodec,
		AudioCodec:   p.AudioCodec,
		Preference:   options.Preference(p.FFmpegPreference),
	}
}

// HistoryPath returns the SQLite journal location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockDir returns the directory holding per-destination lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

// EnsureDirectories creates the state directories used by history and locks.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.LockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
// An existing file is left alone unless force is set.
func CreateSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
