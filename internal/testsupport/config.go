package testsupport

import (
	"path/filepath"
	"testing"

	"dtesync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and intervals short enough for tests to exercise timers directly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Contingency.RetryDelay = 0

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxAttempts overrides the contingency attempt budget.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Contingency.MaxAttempts = attempts
	}
}

// WithEnvironment overrides the authority environment.
func WithEnvironment(env string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Authority.Environment = env
	}
}
