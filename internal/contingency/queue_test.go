package contingency_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"dtesync/internal/authority"
	"dtesync/internal/contingency"
	"dtesync/internal/document"
	"dtesync/internal/events"
	"dtesync/internal/logging"
	"dtesync/internal/testsupport"
)

type fakeClient struct {
	mu      sync.Mutex
	submits int

	// submit is consulted for each Submit call; nil means always succeed.
	submit func(doc document.Document) (authority.Receipt, error)
}

func (f *fakeClient) Submit(ctx context.Context, doc document.Document, issuer document.Issuer) (authority.Receipt, error) {
	f.mu.Lock()
	f.submits++
	fn := f.submit
	f.mu.Unlock()
	if fn != nil {
		return fn(doc)
	}
	return authority.Receipt{
		ControlNumber:  "DTE-01-00000001-" + doc.ID,
		GenerationCode: doc.ID,
		ReceptionSeal:  "SELLO-" + doc.ID,
		ProcessedAt:    time.Now().UTC(),
	}, nil
}

func (f *fakeClient) QueryStatus(ctx context.Context, controlNumber, issuerNIT string) (authority.StatusResult, error) {
	return authority.StatusResult{Code: authority.CodeInProcess}, nil
}

func (f *fakeClient) Environment() authority.Environment {
	return authority.EnvironmentTest
}

func (f *fakeClient) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func newQueue(t *testing.T, client authority.Client, opts ...testsupport.ConfigOption) (*contingency.Queue, *contingency.Store, *events.Hub) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	hub := events.NewHub()
	t.Cleanup(hub.Close)
	return contingency.NewQueue(cfg, store, client, hub, logging.NewNop()), store, hub
}

func drainEvents(ch <-chan events.Event) []events.Event {
	var collected []events.Event
	for {
		select {
		case evt := <-ch:
			collected = append(collected, evt)
		default:
			return collected
		}
	}
}

func TestEnqueuePersistsAndPublishes(t *testing.T) {
	queue, store, hub := newQueue(t, &fakeClient{})
	ctx := context.Background()
	ch, cancel := hub.Subscribe(8)
	defer cancel()

	doc := document.Document{ID: "doc-q1", Type: document.TypeInvoice, Status: document.StatusCompleted}
	issuer := document.Issuer{NIT: "0614-123456-001-2"}
	entryID, err := queue.Enqueue(ctx, doc, issuer, "authority unreachable")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	entry, err := store.GetByID(ctx, entryID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if entry == nil {
		t.Fatal("expected persisted entry")
	}
	if entry.Document.Status != document.StatusPending {
		t.Errorf("queued snapshot status = %q, want pending regardless of input", entry.Document.Status)
	}
	if entry.Reason != "authority unreachable" {
		t.Errorf("reason = %q", entry.Reason)
	}

	published := drainEvents(ch)
	if len(published) != 1 || published[0].Type != events.TypeContingencyQueued {
		t.Fatalf("expected one queued event, got %+v", published)
	}
	if published[0].EntryID != entryID {
		t.Errorf("event entry ID = %q, want %q", published[0].EntryID, entryID)
	}
}

func TestSubmitPendingSubmitsAllSequentially(t *testing.T) {
	client := &fakeClient{}
	queue, store, hub := newQueue(t, client)
	ctx := context.Background()
	ch, cancel := hub.Subscribe(16)
	defer cancel()

	issuer := document.Issuer{NIT: "0614-123456-001-2"}
	for _, id := range []string{"doc-a", "doc-b", "doc-c"} {
		if _, err := queue.Enqueue(ctx, document.Document{ID: id, Type: document.TypeInvoice}, issuer, "offline"); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	result, err := queue.SubmitPending(ctx)
	if err != nil {
		t.Fatalf("SubmitPending failed: %v", err)
	}
	if result.Submitted != 3 || result.Failed != 0 {
		t.Fatalf("batch result = %+v, want 3 submitted", result)
	}
	if client.submitCount() != 3 {
		t.Errorf("submit calls = %d, want 3", client.submitCount())
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, entry := range entries {
		if !entry.Submitted {
			t.Errorf("entry %s not marked submitted", entry.ID)
		}
		if entry.ControlNumber == "" || entry.ReceptionSeal == "" {
			t.Errorf("entry %s missing authority identifiers", entry.ID)
		}
		if entry.Attempts != 1 {
			t.Errorf("entry %s attempts = %d, want 1", entry.ID, entry.Attempts)
		}
	}

	var submittedEvents int
	for _, evt := range drainEvents(ch) {
		if evt.Type == events.TypeContingencySubmitted {
			submittedEvents++
		}
	}
	if submittedEvents != 3 {
		t.Errorf("submitted events = %d, want 3", submittedEvents)
	}

	pending, err := queue.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after batch = %d, want 0", len(pending))
	}
}

func TestSubmitPendingContinuesPastFailures(t *testing.T) {
	client := &fakeClient{
		submit: func(doc document.Document) (authority.Receipt, error) {
			if doc.ID == "doc-bad" {
				return authority.Receipt{}, authority.Wrap(authority.ErrUnreachable, "submit", "timeout", nil)
			}
			return authority.Receipt{ControlNumber: "CN-" + doc.ID, GenerationCode: doc.ID}, nil
		},
	}
	queue, store, _ := newQueue(t, client)
	ctx := context.Background()

	issuer := document.Issuer{NIT: "0614-123456-001-2"}
	for _, id := range []string{"doc-ok1", "doc-bad", "doc-ok2"} {
		if _, err := queue.Enqueue(ctx, document.Document{ID: id, Type: document.TypeInvoice}, issuer, "offline"); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	result, err := queue.SubmitPending(ctx)
	if err != nil {
		t.Fatalf("SubmitPending failed: %v", err)
	}
	if result.Submitted != 2 || result.Failed != 1 {
		t.Fatalf("batch result = %+v, want 2 submitted / 1 failed", result)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, entry := range entries {
		if entry.Document.ID == "doc-bad" {
			if entry.Submitted {
				t.Error("failed entry marked submitted")
			}
			if entry.Attempts != 1 || entry.LastError == "" {
				t.Errorf("failed entry bookkeeping: attempts=%d lastError=%q", entry.Attempts, entry.LastError)
			}
		}
	}

	// The failed entry stays eligible for the next batch.
	pending, err := queue.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Document.ID != "doc-bad" {
		t.Fatalf("unexpected pending set: %d", len(pending))
	}
}

func TestRejectionStopsRetriesImmediately(t *testing.T) {
	client := &fakeClient{
		submit: func(doc document.Document) (authority.Receipt, error) {
			return authority.Receipt{}, authority.Wrap(authority.ErrRejected, "submit", "invalid schema", nil)
		},
	}
	queue, store, _ := newQueue(t, client, testsupport.WithMaxAttempts(5))
	ctx := context.Background()

	entryID, err := queue.Enqueue(ctx, document.Document{ID: "doc-rej", Type: document.TypeInvoice}, document.Issuer{NIT: "0614-1"}, "offline")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if _, err := queue.SubmitPending(ctx); err != nil {
		t.Fatalf("SubmitPending failed: %v", err)
	}

	entry, err := store.GetByID(ctx, entryID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !entry.Rejected {
		t.Fatal("expected entry marked rejected")
	}
	if entry.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", entry.Attempts)
	}

	// A rejected entry never reenters a batch, even with budget remaining.
	if _, err := queue.SubmitPending(ctx); err != nil {
		t.Fatalf("SubmitPending failed: %v", err)
	}
	if client.submitCount() != 1 {
		t.Errorf("submit calls = %d, want 1", client.submitCount())
	}
}

func TestAttemptBudgetExcludesExhaustedEntries(t *testing.T) {
	client := &fakeClient{
		submit: func(doc document.Document) (authority.Receipt, error) {
			return authority.Receipt{}, authority.Wrap(authority.ErrUnreachable, "submit", "still offline", nil)
		},
	}
	queue, store, _ := newQueue(t, client, testsupport.WithMaxAttempts(3))
	ctx := context.Background()

	entryID, err := queue.Enqueue(ctx, document.Document{ID: "doc-budget", Type: document.TypeInvoice}, document.Issuer{NIT: "0614-1"}, "offline")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := queue.SubmitPending(ctx); err != nil {
			t.Fatalf("SubmitPending failed: %v", err)
		}
	}

	if client.submitCount() != 3 {
		t.Errorf("submit calls = %d, want exactly the 3-attempt budget", client.submitCount())
	}
	entry, err := store.GetByID(ctx, entryID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if entry.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", entry.Attempts)
	}
	if !entry.Exhausted(3) {
		t.Error("entry should report exhausted")
	}
}

func TestSetClientAffectsNextBatch(t *testing.T) {
	first := &fakeClient{}
	queue, _, _ := newQueue(t, first)
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, document.Document{ID: "doc-sw", Type: document.TypeInvoice}, document.Issuer{NIT: "0614-1"}, "offline"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	second := &fakeClient{}
	queue.SetClient(second)

	if _, err := queue.SubmitPending(ctx); err != nil {
		t.Fatalf("SubmitPending failed: %v", err)
	}
	if first.submitCount() != 0 {
		t.Errorf("old client used %d times after swap", first.submitCount())
	}
	if second.submitCount() != 1 {
		t.Errorf("new client calls = %d, want 1", second.submitCount())
	}
}

func TestAutoSubmissionLifecycle(t *testing.T) {
	client := &fakeClient{}
	cfg := testsupport.NewConfig(t)
	cfg.Contingency.AutoSubmitInterval = 1 // shortest expressible interval
	store := testsupport.MustOpenStore(t, cfg)
	hub := events.NewHub()
	t.Cleanup(hub.Close)
	queue := contingency.NewQueue(cfg, store, client, hub, logging.NewNop())
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, document.Document{ID: "doc-auto", Type: document.TypeInvoice}, document.Issuer{NIT: "0614-1"}, "offline"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	queue.StartAutoSubmission(ctx)
	queue.StartAutoSubmission(ctx) // second start is a no-op

	deadline := time.After(5 * time.Second)
	for client.submitCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("auto-submission never ran")
		case <-time.After(50 * time.Millisecond):
		}
	}

	queue.StopAutoSubmission()
	queue.StopAutoSubmission() // second stop is a no-op
}

func TestCleanupOldEntries(t *testing.T) {
	queue, store, _ := newQueue(t, &fakeClient{})
	ctx := context.Background()

	old := newEntry("doc-retired")
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	if err := store.Append(ctx, old); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := queue.Enqueue(ctx, document.Document{ID: "doc-live", Type: document.TypeInvoice}, document.Issuer{NIT: "0614-1"}, "offline"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	removed, err := queue.CleanupOldEntries(ctx)
	if err != nil {
		t.Fatalf("CleanupOldEntries failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	stats, err := queue.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("total after cleanup = %d, want 1", stats.Total)
	}
}
