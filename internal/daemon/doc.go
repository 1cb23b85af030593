// Package daemon ties the delivery engine, contingency store, and local HTTP
// API into a single lifecycle with flock-based locking to prevent multiple
// daemon instances from sharing one contingency database.
package daemon
