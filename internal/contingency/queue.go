package contingency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"dtesync/internal/authority"
	"dtesync/internal/config"
	"dtesync/internal/document"
	"dtesync/internal/events"
	"dtesync/internal/logging"
)

// Queue retries failed submissions against the authority.
type Queue struct {
	store  *Store
	hub    *events.Hub
	logger *slog.Logger

	maxAttempts  int
	retryDelay   time.Duration
	retention    time.Duration
	autoInterval time.Duration

	clientMu sync.RWMutex
	client   authority.Client

	// submitMu serializes batches; retries never run in parallel.
	submitMu sync.Mutex

	autoMu     sync.Mutex
	autoCancel context.CancelFunc
	autoWG     sync.WaitGroup
}

// NewQueue constructs the contingency queue service.
func NewQueue(cfg *config.Config, store *Store, client authority.Client, hub *events.Hub, logger *slog.Logger) *Queue {
	return &Queue{
		store:        store,
		hub:          hub,
		logger:       logging.NewComponentLogger(logger, "contingency"),
		maxAttempts:  cfg.Contingency.MaxAttempts,
		retryDelay:   cfg.RetryDelay(),
		retention:    cfg.RetentionWindow(),
		autoInterval: cfg.AutoSubmitInterval(),
		client:       client,
	}
}

// SetClient swaps the authority client used by subsequent batches. A batch
// already in flight keeps the client it started with.
func (q *Queue) SetClient(client authority.Client) {
	q.clientMu.Lock()
	q.client = client
	q.clientMu.Unlock()
}

func (q *Queue) currentClient() authority.Client {
	q.clientMu.RLock()
	defer q.clientMu.RUnlock()
	return q.client
}

// MaxAttempts returns the per-entry attempt budget.
func (q *Queue) MaxAttempts() int {
	return q.maxAttempts
}

// Enqueue persists a document that failed immediate submission. The snapshot
// is stored with a pending status regardless of the document's prior state.
func (q *Queue) Enqueue(ctx context.Context, doc document.Document, issuer document.Issuer, reason string) (string, error) {
	doc.Status = document.StatusPending
	entry := &Entry{
		ID:        uuid.NewString(),
		Document:  doc,
		Issuer:    issuer,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.store.Append(ctx, entry); err != nil {
		return "", fmt.Errorf("enqueue contingency entry: %w", err)
	}

	q.logger.Info("document queued for contingency",
		logging.String(logging.FieldEntryID, entry.ID),
		logging.String(logging.FieldDocumentID, doc.ID),
		logging.String(logging.FieldIssuerNIT, issuer.NIT),
		logging.String("reason", reason),
	)
	q.hub.Publish(events.Event{
		Type:       events.TypeContingencyQueued,
		DocumentID: doc.ID,
		IssuerNIT:  issuer.NIT,
		EntryID:    entry.ID,
		NewStatus:  document.StatusPending,
		Err:        reason,
	})
	return entry.ID, nil
}

// ListPending returns retry-eligible entries in insertion order.
func (q *Queue) ListPending(ctx context.Context) ([]*Entry, error) {
	return q.store.ListPending(ctx, q.maxAttempts)
}

// List returns every retained entry, including submitted and failed ones.
func (q *Queue) List(ctx context.Context) ([]*Entry, error) {
	return q.store.List(ctx)
}

// SubmitPending resubmits every retry-eligible entry strictly sequentially
// with a fixed delay between attempts. Authority failures are recorded on the
// entry and never abort the batch; storage faults do.
func (q *Queue) SubmitPending(ctx context.Context) (BatchResult, error) {
	q.submitMu.Lock()
	defer q.submitMu.Unlock()

	client := q.currentClient()
	entries, err := q.store.ListPending(ctx, q.maxAttempts)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list pending entries: %w", err)
	}

	result := BatchResult{}
	for i, entry := range entries {
		if i > 0 && q.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(q.retryDelay):
			}
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		entryResult, err := q.attempt(ctx, client, entry)
		if err != nil {
			return result, err
		}
		if entryResult.Submitted {
			result.Submitted++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, entryResult)
	}

	if len(entries) > 0 {
		q.logger.Info("contingency batch finished",
			logging.Int("submitted", result.Submitted),
			logging.Int("failed", result.Failed),
		)
	}
	return result, nil
}

func (q *Queue) attempt(ctx context.Context, client authority.Client, entry *Entry) (EntryResult, error) {
	now := time.Now().UTC()
	entry.Attempts++
	entry.LastAttemptAt = &now

	receipt, submitErr := client.Submit(ctx, entry.Document, entry.Issuer)
	if submitErr == nil {
		entry.Submitted = true
		entry.SubmittedAt = &now
		entry.LastError = ""
		entry.ControlNumber = receipt.ControlNumber
		entry.GenerationCode = receipt.GenerationCode
		entry.ReceptionSeal = receipt.ReceptionSeal
	} else {
		entry.LastError = submitErr.Error()
		if authority.IsRejection(submitErr) {
			entry.Rejected = true
		}
	}

	if err := q.store.Update(ctx, entry); err != nil {
		return EntryResult{}, fmt.Errorf("persist attempt for entry %s: %w", entry.ID, err)
	}

	entryResult := EntryResult{
		EntryID:    entry.ID,
		DocumentID: entry.Document.ID,
		Submitted:  entry.Submitted,
		Attempts:   entry.Attempts,
	}

	if submitErr == nil {
		q.logger.Info("contingency entry submitted",
			logging.String(logging.FieldEntryID, entry.ID),
			logging.String(logging.FieldDocumentID, entry.Document.ID),
			logging.String(logging.FieldControlNumber, entry.ControlNumber),
			logging.Int(logging.FieldAttempts, entry.Attempts),
		)
		q.hub.Publish(events.Event{
			Type:           events.TypeContingencySubmitted,
			DocumentID:     entry.Document.ID,
			IssuerNIT:      entry.Issuer.NIT,
			EntryID:        entry.ID,
			NewStatus:      document.StatusPending,
			ControlNumber:  entry.ControlNumber,
			GenerationCode: entry.GenerationCode,
			ReceptionSeal:  entry.ReceptionSeal,
			Attempts:       entry.Attempts,
		})
		return entryResult, nil
	}

	entryResult.Err = submitErr.Error()
	attrs := []logging.Attr{
		logging.String(logging.FieldEntryID, entry.ID),
		logging.String(logging.FieldDocumentID, entry.Document.ID),
		logging.Int(logging.FieldAttempts, entry.Attempts),
		logging.Error(submitErr),
	}
	switch {
	case entry.Rejected:
		q.logger.Warn("contingency entry permanently rejected", logging.Args(attrs...)...)
	case entry.Attempts >= q.maxAttempts:
		q.logger.Warn("contingency entry exhausted retry budget", logging.Args(attrs...)...)
	default:
		q.logger.Info("contingency attempt failed", logging.Args(attrs...)...)
	}
	return entryResult, nil
}

// StartAutoSubmission begins the recurring retry timer. Starting an already
// running loop is a no-op.
func (q *Queue) StartAutoSubmission(ctx context.Context) {
	q.autoMu.Lock()
	defer q.autoMu.Unlock()
	if q.autoCancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	q.autoCancel = cancel
	q.autoWG.Add(1)
	go q.autoLoop(loopCtx)

	q.logger.Info("auto-submission started", logging.Duration("interval", q.autoInterval))
}

// StopAutoSubmission stops the recurring retry timer and waits for any batch
// in flight to finish. Stopping an already stopped loop is a no-op.
func (q *Queue) StopAutoSubmission() {
	q.autoMu.Lock()
	cancel := q.autoCancel
	q.autoCancel = nil
	q.autoMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	q.autoWG.Wait()
	q.logger.Info("auto-submission stopped")
}

func (q *Queue) autoLoop(ctx context.Context) {
	defer q.autoWG.Done()
	ticker := time.NewTicker(q.autoInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		count, err := q.store.CountPending(ctx, q.maxAttempts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Error("count pending entries failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check contingency database access"),
			)
			continue
		}
		if count == 0 {
			continue
		}

		if _, err := q.SubmitPending(ctx); err != nil && ctx.Err() == nil {
			q.logger.Error("auto-submission batch failed", logging.Error(err))
		}
	}
}

// CleanupOldEntries removes entries older than the retention window
// regardless of submission state and returns the count removed.
func (q *Queue) CleanupOldEntries(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-q.retention)
	removed, err := q.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		q.logger.Info("cleaned up old contingency entries", logging.Int64("removed", removed))
	}
	return removed, nil
}

// Stats aggregates entry counts by disposition.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	return q.store.Stats(ctx, q.maxAttempts)
}
