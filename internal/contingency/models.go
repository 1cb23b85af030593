package contingency

import (
	"time"

	"dtesync/internal/document"
)

// Entry is a persisted contingency record: an immutable snapshot of the
// document and issuer captured at enqueue time plus retry bookkeeping.
type Entry struct {
	ID       string
	Document document.Document
	Issuer   document.Issuer
	Reason   string

	CreatedAt     time.Time
	Attempts      int
	LastAttemptAt *time.Time
	LastError     string

	// Rejected is set when the authority permanently rejected the payload
	// during a retry; such entries are excluded from further attempts.
	Rejected bool

	Submitted      bool
	SubmittedAt    *time.Time
	ControlNumber  string
	GenerationCode string
	ReceptionSeal  string
}

// Pending reports whether the entry is still eligible for automatic retry
// under the given attempt budget. The boundary is inclusive: an entry whose
// attempt count has reached maxAttempts is no longer pending.
func (e Entry) Pending(maxAttempts int) bool {
	return !e.Submitted && !e.Rejected && e.Attempts < maxAttempts
}

// Exhausted reports whether the entry failed its entire attempt budget.
func (e Entry) Exhausted(maxAttempts int) bool {
	return !e.Submitted && !e.Rejected && e.Attempts >= maxAttempts
}

// EntryResult describes the outcome of one entry within a retry batch.
type EntryResult struct {
	EntryID    string
	DocumentID string
	Submitted  bool
	Attempts   int
	Err        string
}

// BatchResult aggregates one SubmitPending run.
type BatchResult struct {
	Submitted int
	Failed    int
	Results   []EntryResult
}

// Stats summarizes the queue by entry disposition.
type Stats struct {
	Total     int
	Pending   int
	Exhausted int
	Rejected  int
	Submitted int
}
