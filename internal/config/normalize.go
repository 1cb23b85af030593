package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Authority.Environment = strings.ToLower(strings.TrimSpace(c.Authority.Environment))
	if c.Authority.Environment == "" {
		c.Authority.Environment = defaultEnvironment
	}
	c.Authority.ProductionURL = strings.TrimRight(strings.TrimSpace(c.Authority.ProductionURL), "/")
	c.Authority.TestURL = strings.TrimRight(strings.TrimSpace(c.Authority.TestURL), "/")
	if c.Authority.RequestTimeout <= 0 {
		c.Authority.RequestTimeout = defaultRequestTimeout
	}

	if c.Tracking.PollInterval <= 0 {
		c.Tracking.PollInterval = defaultPollInterval
	}
	if c.Tracking.MaxFailures <= 0 {
		c.Tracking.MaxFailures = defaultMaxFailures
	}
	if c.Tracking.Timeout <= 0 {
		c.Tracking.Timeout = defaultTrackingTimeout
	}
	if c.Tracking.BatchJitter < 0 {
		c.Tracking.BatchJitter = defaultBatchJitter
	}

	if c.Contingency.AutoSubmitInterval <= 0 {
		c.Contingency.AutoSubmitInterval = defaultAutoSubmitInterval
	}
	if c.Contingency.MaxAttempts <= 0 {
		c.Contingency.MaxAttempts = defaultMaxAttempts
	}
	if c.Contingency.RetryDelay < 0 {
		c.Contingency.RetryDelay = defaultRetryDelay
	}
	if c.Contingency.RetentionHours <= 0 {
		c.Contingency.RetentionHours = defaultRetentionHours
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
