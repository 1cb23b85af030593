// Package config loads, normalizes, and validates the TOML configuration for
// the dtesync daemon and CLI. A sample configuration file is embedded for
// `dtesync config init`.
package config
