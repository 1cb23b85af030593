// Package contingency persists documents that failed immediate submission and
// retries them against the authority until they succeed or exhaust their
// budgets.
//
// Entries live in a SQLite table inside the data directory. The Queue service
// owns retry sequencing: batches run strictly one entry at a time with a fixed
// delay between attempts so resubmission never bursts against the authority's
// rate limits. Entries that exceed the attempt budget or are permanently
// rejected stay visible for manual intervention until age-based cleanup.
package contingency
