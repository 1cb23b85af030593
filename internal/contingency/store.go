package contingency

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dtesync/internal/config"
	"dtesync/internal/document"
)

// Store manages contingency persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS contingency_entries (
    id TEXT PRIMARY KEY,
    document_json TEXT NOT NULL,
    issuer_json TEXT NOT NULL,
    reason TEXT,
    created_at TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_attempt_at TEXT,
    last_error TEXT,
    rejected INTEGER NOT NULL DEFAULT 0,
    submitted INTEGER NOT NULL DEFAULT 0,
    submitted_at TEXT,
    control_number TEXT,
    generation_code TEXT,
    reception_seal TEXT
);
CREATE INDEX IF NOT EXISTS idx_contingency_pending
    ON contingency_entries (submitted, rejected, created_at);
`

// Open initializes or connects to the contingency database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "contingency.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Append inserts a new contingency entry.
func (s *Store) Append(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	docJSON, err := json.Marshal(entry.Document)
	if err != nil {
		return fmt.Errorf("marshal document snapshot: %w", err)
	}
	issuerJSON, err := json.Marshal(entry.Issuer)
	if err != nil {
		return fmt.Errorf("marshal issuer snapshot: %w", err)
	}

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO contingency_entries (
            id, document_json, issuer_json, reason, created_at, attempts,
            last_attempt_at, last_error, rejected, submitted, submitted_at,
            control_number, generation_code, reception_seal
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		string(docJSON),
		string(issuerJSON),
		nullableString(entry.Reason),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		entry.Attempts,
		nullableTime(entry.LastAttemptAt),
		nullableString(entry.LastError),
		boolToInt(entry.Rejected),
		boolToInt(entry.Submitted),
		nullableTime(entry.SubmittedAt),
		nullableString(entry.ControlNumber),
		nullableString(entry.GenerationCode),
		nullableString(entry.ReceptionSeal),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// GetByID fetches a contingency entry by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM contingency_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// Update persists changes to an existing entry.
func (s *Store) Update(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	_, err := s.execWithRetry(
		ctx,
		`UPDATE contingency_entries
         SET reason = ?, attempts = ?, last_attempt_at = ?, last_error = ?,
             rejected = ?, submitted = ?, submitted_at = ?,
             control_number = ?, generation_code = ?, reception_seal = ?
         WHERE id = ?`,
		nullableString(entry.Reason),
		entry.Attempts,
		nullableTime(entry.LastAttemptAt),
		nullableString(entry.LastError),
		boolToInt(entry.Rejected),
		boolToInt(entry.Submitted),
		nullableTime(entry.SubmittedAt),
		nullableString(entry.ControlNumber),
		nullableString(entry.GenerationCode),
		nullableString(entry.ReceptionSeal),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return nil
}

// ListPending returns retry-eligible entries oldest first, so earlier
// failures get priority on resubmission.
func (s *Store) ListPending(ctx context.Context, maxAttempts int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM contingency_entries
         WHERE submitted = 0 AND rejected = 0 AND attempts < ?
         ORDER BY created_at`,
		maxAttempts,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// List returns every entry oldest first.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM contingency_entries ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// CountPending reports how many entries are eligible for retry.
func (s *Store) CountPending(ctx context.Context, maxAttempts int) (int, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM contingency_entries WHERE submitted = 0 AND rejected = 0 AND attempts < ?`,
		maxAttempts,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending entries: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes entries created before cutoff regardless of their
// submission state and returns the count removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM contingency_entries WHERE created_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("delete old entries: %w", err)
	}
	return res.RowsAffected()
}

// Stats aggregates entry counts by disposition.
func (s *Store) Stats(ctx context.Context, maxAttempts int) (Stats, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT submitted, rejected, attempts >= ?, COUNT(1)
         FROM contingency_entries
         GROUP BY submitted, rejected, attempts >= ?`,
		maxAttempts,
		maxAttempts,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("contingency stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{}
	for rows.Next() {
		var submitted, rejected, exhausted int
		var count int
		if err := rows.Scan(&submitted, &rejected, &exhausted, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		switch {
		case submitted != 0:
			stats.Submitted += count
		case rejected != 0:
			stats.Rejected += count
		case exhausted != 0:
			stats.Exhausted += count
		default:
			stats.Pending += count
		}
	}
	return stats, rows.Err()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

const entryColumns = "id, document_json, issuer_json, reason, created_at, attempts, last_attempt_at, last_error, rejected, submitted, submitted_at, control_number, generation_code, reception_seal"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id             string
		docJSON        string
		issuerJSON     string
		reason         sql.NullString
		createdRaw     string
		attempts       int
		lastAttemptRaw sql.NullString
		lastError      sql.NullString
		rejected       int
		submitted      int
		submittedRaw   sql.NullString
		controlNumber  sql.NullString
		generationCode sql.NullString
		receptionSeal  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&docJSON,
		&issuerJSON,
		&reason,
		&createdRaw,
		&attempts,
		&lastAttemptRaw,
		&lastError,
		&rejected,
		&submitted,
		&submittedRaw,
		&controlNumber,
		&generationCode,
		&receptionSeal,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:             id,
		Reason:         reason.String,
		Attempts:       attempts,
		LastError:      lastError.String,
		Rejected:       rejected != 0,
		Submitted:      submitted != 0,
		ControlNumber:  controlNumber.String,
		GenerationCode: generationCode.String,
		ReceptionSeal:  receptionSeal.String,
	}

	var doc document.Document
	if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
		return nil, fmt.Errorf("decode document snapshot: %w", err)
	}
	entry.Document = doc

	var issuer document.Issuer
	if err := json.Unmarshal([]byte(issuerJSON), &issuer); err != nil {
		return nil, fmt.Errorf("decode issuer snapshot: %w", err)
	}
	entry.Issuer = issuer

	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if lastAttemptRaw.Valid {
		if at, err := parseTimeString(lastAttemptRaw.String); err == nil {
			entry.LastAttemptAt = &at
		}
	}
	if submittedRaw.Valid {
		if at, err := parseTimeString(submittedRaw.String); err == nil {
			entry.SubmittedAt = &at
		}
	}
	return entry, nil
}

func collectEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
