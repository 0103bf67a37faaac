package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Batch.Jobs < 1 || c.Batch.Jobs > maxBatchJobs {
		return fmt.Errorf("batch.jobs must be between 1 and %d", maxBatchJobs)
	}
	if err := c.Defaults.conversion().Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for _, name := range c.ProfileNames() {
		if name == "" {
			return errors.New("profile names must be non-empty")
		}
		if err := c.Profiles[name].conversion().Validate(); err != nil {
			return fmt.Errorf("profile.%s: %w", name, err)
		}
	}
	for ext := range c.Compat {
		if ext == "" {
			return errors.New("compat sections need a container extension")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
