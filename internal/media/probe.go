package media

import (
	"context"
	"log/slog"

	"mvx/internal/deps"
	"mvx/internal/logging"
	"mvx/internal/media/ffprobe"
)

// InspectFunc runs ffprobe. It matches ffprobe.Inspect so tests can replace it.
type InspectFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Prober obtains stream information for audio/video sources.
type Prober struct {
	caps    deps.Capabilities
	logger  *slog.Logger
	inspect InspectFunc
}

// Option configures a Prober.
type Option func(*Prober)

// WithInspector injects a custom ffprobe runner (primarily for tests).
func WithInspector(fn InspectFunc) Option {
	return func(p *Prober) {
		if fn != nil {
			p.inspect = fn
		}
	}
}

// NewProber constructs a Prober backed by the ffprobe found through caps.
func NewProber(caps deps.Capabilities, logger *slog.Logger, opts ...Option) *Prober {
	p := &Prober{
		caps:    caps,
		logger:  logging.NewComponentLogger(logger, "probe"),
		inspect: ffprobe.Inspect,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe returns the stream layout of path, or nil when it cannot be
// determined. It never fails the pipeline.
func (p *Prober) Probe(ctx context.Context, path string) *Info {
	logger := logging.WithContext(ctx, p.logger)
	binary, ok := p.caps.Lookup(deps.ToolFFprobe)
	if !ok {
		logging.WarnWithContext(logger, "ffprobe unavailable; stream copy disabled", "probe_unavailable",
			logging.String(logging.FieldSource, path),
			logging.String(logging.FieldErrorHint, deps.InstallHint(deps.ToolFFprobe)),
			logging.String(logging.FieldImpact, "audio/video conversions will transcode"),
		)
		return nil
	}

	result, err := p.inspect(ctx, binary, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logging.WarnWithContext(logger, "ffprobe failed; stream copy disabled", "probe_failed",
			logging.String(logging.FieldSource, path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "audio/video conversions will transcode"),
		)
		return nil
	}

	info := FromResult(result)
	logger.Debug("probed media",
		logging.String(logging.FieldSource, path),
		logging.String("container", info.Container),
		logging.String("codecs", info.Codecs()),
		logging.Duration("duration", info.Duration),
	)
	return info
}
