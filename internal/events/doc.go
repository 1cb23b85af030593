// Package events carries the engine's event stream to subscribers.
//
// The hub fans every published event out to all current subscribers with
// at-most-once delivery per subscriber. Per-document ordering is preserved
// because each document has a single publishing task at a time; a slow
// subscriber loses events rather than blocking publishers.
package events
