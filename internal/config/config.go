package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Authority contains configuration for the tax authority reception API.
type Authority struct {
	// Environment selects production or test endpoints ("production", "test").
	Environment    string `toml:"environment"`
	ProductionURL  string `toml:"production_url"`
	TestURL        string `toml:"test_url"`
	APIToken       string `toml:"api_token"`
	RequestTimeout int    `toml:"request_timeout"` // seconds
}

// Tracking contains configuration for authority status polling.
type Tracking struct {
	PollInterval int `toml:"poll_interval"` // seconds
	MaxFailures  int `toml:"max_failures"`
	Timeout      int `toml:"timeout"`      // seconds
	BatchJitter  int `toml:"batch_jitter"` // seconds, max random stagger for batch starts
}

// Contingency contains configuration for the offline submission queue.
type Contingency struct {
	AutoSubmitInterval int `toml:"auto_submit_interval"` // seconds
	MaxAttempts        int `toml:"max_attempts"`
	RetryDelay         int `toml:"retry_delay"` // seconds between sequential attempts
	RetentionHours     int `toml:"retention_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dtesync.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Authority   Authority   `toml:"authority"`
	Tracking    Tracking    `toml:"tracking"`
	Contingency Contingency `toml:"contingency"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dtesync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a configuration file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
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

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// RequestTimeout returns the authority request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Authority.RequestTimeout) * time.Second
}

// PollInterval returns the tracking poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Tracking.PollInterval) * time.Second
}

// TrackingTimeout returns the hard tracking timeout as a duration.
func (c *Config) TrackingTimeout() time.Duration {
	return time.Duration(c.Tracking.Timeout) * time.Second
}

// BatchJitter returns the maximum batch-start stagger as a duration.
func (c *Config) BatchJitter() time.Duration {
	return time.Duration(c.Tracking.BatchJitter) * time.Second
}

// AutoSubmitInterval returns the contingency auto-submission interval.
func (c *Config) AutoSubmitInterval() time.Duration {
	return time.Duration(c.Contingency.AutoSubmitInterval) * time.Second
}

// RetryDelay returns the delay between sequential contingency attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Contingency.RetryDelay) * time.Second
}

// RetentionWindow returns the contingency entry retention window.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.Contingency.RetentionHours) * time.Hour
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", trimmed, err)
	}
	return abs, nil
}
