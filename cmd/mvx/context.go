package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mvx/internal/claim"
	"mvx/internal/config"
	"mvx/internal/deps"
	"mvx/internal/history"
	"mvx/internal/logging"
	"mvx/internal/pipeline"
	"mvx/internal/plan"
	"mvx/internal/services"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	verboseFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		verboseFlag:  verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.verboseFlag != nil && *c.verboseFlag {
			cfg.Logging.Level = "debug"
		} else if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
			if err := cfg.Validate(); err != nil {
				c.configErr = services.Wrap(services.ErrConfiguration, "config", "flags", "--log-level", err)
				return
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// toolCommands maps every tool to the command configured for it.
func toolCommands(cfg *config.Config) map[deps.Tool]string {
	return map[deps.Tool]string{
		deps.ToolFFmpeg:            cfg.Tools.FFmpeg,
		deps.ToolFFprobe:           cfg.Tools.FFprobe,
		deps.ToolImageMagick:       cfg.Tools.ImageMagick,
		deps.ToolImageMagickLegacy: cfg.Tools.ImageMagickLegacy,
		deps.ToolLibreOffice:       cfg.Tools.LibreOffice,
	}
}

func compatTable(cfg *config.Config) plan.CompatTable {
	if len(cfg.Compat) == 0 {
		return plan.DefaultCompat()
	}
	overrides := make(map[string]plan.Allow, len(cfg.Compat))
	for ext, allow := range cfg.Compat {
		overrides[ext] = plan.Allow{Video: allow.Video, Audio: allow.Audio}
	}
	return plan.DefaultCompat().With(overrides)
}

// openRunner wires a pipeline runner from the loaded configuration. The
// returned close function releases the history store.
func (c *commandContext) openRunner() (*pipeline.Runner, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}

	opts := pipeline.Options{
		Logger:       logger,
		Capabilities: deps.NewSystem(toolCommands(cfg)),
		Compat:       compatTable(cfg),
		Claims:       claim.NewRegistry(cfg.LockDir()),
	}
	closeFn := func() {}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir permissions or disable [history]"),
				logging.String(logging.FieldImpact, "conversions in this run are not journaled"),
			)
		} else {
			opts.Journal = store
			closeFn = func() {
				if err := store.Close(); err != nil {
					logger.Debug("close history failed", logging.Error(err))
				}
			}
		}
	}
	return pipeline.New(opts), closeFn, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
