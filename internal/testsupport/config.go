package testsupport

import (
	"path/filepath"
	"testing"

	"mvx/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithJobs sets the batch worker count.
func WithJobs(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.Jobs = n
	}
}

// WithoutHistory disables the conversion journal.
func WithoutHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// WithStubbedTools writes stub executables into the config's private bin
// directory and points the tool settings at them. Unnamed tools keep their
// defaults. Scripts are passed to StubBinary.
func WithStubbedTools(scripts map[string]string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		for name, body := range scripts {
			path := StubBinary(b.t, binDir, name, body)
			switch name {
			case "ffmpeg":
				b.cfg.Tools.FFmpeg = path
			case "ffprobe":
				b.cfg.Tools.FFprobe = path
			case "magick":
				b.cfg.Tools.ImageMagick = path
			case "convert":
				b.cfg.Tools.ImageMagickLegacy = path
			case "soffice":
				b.cfg.Tools.LibreOffice = path
			default:
				b.t.Fatalf("unknown tool stub %q", name)
			}
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
