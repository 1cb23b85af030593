package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAuthority(); err != nil {
		return err
	}
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateContingency(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAuthority() error {
	switch c.Authority.Environment {
	case "production", "test":
	default:
		return fmt.Errorf("authority.environment must be \"production\" or \"test\", got %q", c.Authority.Environment)
	}
	if c.Authority.ProductionURL == "" {
		return errors.New("authority.production_url must be set")
	}
	if c.Authority.TestURL == "" {
		return errors.New("authority.test_url must be set")
	}
	return nil
}

func (c *Config) validateTracking() error {
	if c.Tracking.PollInterval >= c.Tracking.Timeout {
		return errors.New("tracking.poll_interval must be shorter than tracking.timeout")
	}
	return nil
}

func (c *Config) validateContingency() error {
	if c.Contingency.RetentionHours < 1 {
		return errors.New("contingency.retention_hours must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "text", "json", "console":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}
