// Package logging builds the slog loggers used across dtesync and provides
// the shared attribute helpers and field name constants that keep log output
// consistent between the daemon, the engine components, and the CLI.
package logging
