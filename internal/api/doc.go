// Package api defines the wire representations shared by the daemon's HTTP
// surface and the CLI, plus conversions from engine models.
package api
