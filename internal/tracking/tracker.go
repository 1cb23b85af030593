package tracking

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"dtesync/internal/authority"
	"dtesync/internal/document"
	"dtesync/internal/events"
	"dtesync/internal/logging"
)

type taskKey struct {
	documentID string
	issuerNIT  string
}

type task struct {
	key    taskKey
	doc    document.Document
	issuer document.Issuer
	client authority.Client
	opts   Options
	cancel context.CancelFunc

	startedAt time.Time

	// Guarded by the tracker mutex.
	lastStatus document.Status
	failures   int
}

// Tracker owns the set of in-flight tracking tasks, one per document and
// issuing entity pair.
type Tracker struct {
	hub    *events.Hub
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[taskKey]*task
	wg    sync.WaitGroup
}

// NewTracker constructs an empty tracker publishing to hub.
func NewTracker(hub *events.Hub, logger *slog.Logger) *Tracker {
	return &Tracker{
		hub:    hub,
		logger: logging.NewComponentLogger(logger, "tracking"),
		tasks:  make(map[taskKey]*task),
	}
}

// Start begins polling for a document still awaiting an authority verdict.
// Documents in any other state are not tracked and Start reports false.
// Starting tracking for a document already being tracked cancels the prior
// task first, so exactly one polling loop exists per document.
//
// The task outlives the caller's context: submission often arrives over a
// short-lived HTTP request, and tracking must keep polling long after that
// request finishes. Only Stop, StopAll, the task timeout, or a terminal
// status end a task.
func (t *Tracker) Start(ctx context.Context, client authority.Client, doc document.Document, issuer document.Issuer, opts Options) bool {
	if !doc.AwaitingAuthority() {
		return false
	}
	opts = opts.withDefaults()
	key := taskKey{documentID: doc.ID, issuerNIT: issuer.NIT}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	tk := &task{
		key:        key,
		doc:        doc,
		issuer:     issuer,
		client:     client,
		opts:       opts,
		cancel:     cancel,
		startedAt:  time.Now().UTC(),
		lastStatus: document.StatusPending,
	}

	t.mu.Lock()
	if prior, ok := t.tasks[key]; ok {
		prior.cancel()
	}
	t.tasks[key] = tk
	t.wg.Add(1)
	t.mu.Unlock()

	t.logger.Info("tracking started",
		logging.String(logging.FieldDocumentID, doc.ID),
		logging.String(logging.FieldIssuerNIT, issuer.NIT),
		logging.Duration("poll_interval", opts.PollInterval),
		logging.Duration("timeout", opts.Timeout),
	)
	go t.run(taskCtx, tk)
	return true
}

// StartBatch begins tracking several documents of one issuer, staggering each
// first poll by a random delay up to opts.BatchJitter. Returns the number of
// documents for which tracking actually started.
func (t *Tracker) StartBatch(ctx context.Context, client authority.Client, docs []document.Document, issuer document.Issuer, opts Options) int {
	opts = opts.withDefaults()
	started := 0
	for _, doc := range docs {
		perDoc := opts
		if opts.BatchJitter > 0 {
			perDoc.InitialDelay = time.Duration(rand.Int64N(int64(opts.BatchJitter)))
		}
		if t.Start(ctx, client, doc, issuer, perDoc) {
			started++
		}
	}
	return started
}

// Stop cancels every tracking task for the given document.
func (t *Tracker) Stop(documentID string) {
	t.mu.Lock()
	for key, tk := range t.tasks {
		if key.documentID == documentID {
			delete(t.tasks, key)
			tk.cancel()
		}
	}
	t.mu.Unlock()
}

// StopAll cancels every active task, waits for their goroutines to exit, and
// publishes a single termination event.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	stopped := len(t.tasks)
	for key, tk := range t.tasks {
		delete(t.tasks, key)
		tk.cancel()
	}
	t.mu.Unlock()

	t.wg.Wait()
	if stopped > 0 {
		t.logger.Info("all tracking stopped", logging.Int("tasks", stopped))
	}
	t.hub.Publish(events.Event{Type: events.TypeAllTrackingStopped})
}

// DocumentStat describes one active tracking task.
type DocumentStat struct {
	DocumentID string
	IssuerNIT  string
	LastStatus document.Status
	Failures   int
	Elapsed    time.Duration
}

// TrackerStats summarizes current tracking activity.
type TrackerStats struct {
	Active    int
	Documents []DocumentStat
}

// Stats reports the active tasks and their progress.
func (t *Tracker) Stats() TrackerStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := TrackerStats{Active: len(t.tasks)}
	now := time.Now().UTC()
	for _, tk := range t.tasks {
		stats.Documents = append(stats.Documents, DocumentStat{
			DocumentID: tk.key.documentID,
			IssuerNIT:  tk.key.issuerNIT,
			LastStatus: tk.lastStatus,
			Failures:   tk.failures,
			Elapsed:    now.Sub(tk.startedAt),
		})
	}
	return stats
}

func (t *Tracker) run(ctx context.Context, tk *task) {
	defer t.wg.Done()
	// Whatever path ends the loop, the task must leave the map; remove is
	// identity-checked, so a replacement task is never evicted.
	defer t.remove(tk)

	if tk.opts.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(tk.opts.InitialDelay):
		}
	}

	timeout := time.NewTimer(tk.opts.Timeout)
	defer timeout.Stop()
	ticker := time.NewTicker(tk.opts.PollInterval)
	defer ticker.Stop()

	t.poll(ctx, tk)
	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout.C:
			t.timeoutTask(tk)
			return
		case <-ticker.C:
			t.poll(ctx, tk)
		}
	}
}

func (t *Tracker) poll(ctx context.Context, tk *task) {
	// Without a control number there is nothing to query yet.
	if tk.doc.ControlNumber == "" {
		return
	}

	result, err := tk.client.QueryStatus(ctx, tk.doc.ControlNumber, tk.issuer.NIT)

	// A completion for a cancelled or replaced task is discarded.
	if ctx.Err() != nil || !t.isCurrent(tk) {
		return
	}

	if err != nil {
		t.handleFailure(tk, err)
		return
	}
	t.handleResult(tk, result)
}

func (t *Tracker) handleFailure(tk *task, err error) {
	if authority.IsRejection(err) {
		// The authority cannot answer this query; retrying wastes budget.
		t.logger.Warn("status query permanently rejected",
			logging.String(logging.FieldDocumentID, tk.key.documentID),
			logging.Error(err),
		)
		t.hub.Publish(events.Event{
			Type:       events.TypeTrackingFailed,
			DocumentID: tk.key.documentID,
			IssuerNIT:  tk.key.issuerNIT,
			Err:        err.Error(),
		})
		t.remove(tk)
		return
	}

	t.mu.Lock()
	tk.failures++
	failures := tk.failures
	t.mu.Unlock()

	t.hub.Publish(events.Event{
		Type:       events.TypeStatusError,
		DocumentID: tk.key.documentID,
		IssuerNIT:  tk.key.issuerNIT,
		Attempts:   failures,
		Err:        err.Error(),
	})

	if failures < tk.opts.MaxFailures {
		return
	}
	t.logger.Warn("tracking abandoned after consecutive failures",
		logging.String(logging.FieldDocumentID, tk.key.documentID),
		logging.Int(logging.FieldAttempts, failures),
	)
	t.hub.Publish(events.Event{
		Type:       events.TypeTrackingFailed,
		DocumentID: tk.key.documentID,
		IssuerNIT:  tk.key.issuerNIT,
		Attempts:   failures,
		Err:        err.Error(),
	})
	t.remove(tk)
}

func (t *Tracker) handleResult(tk *task, result authority.StatusResult) {
	mapped := authority.MapStatus(result.Code)

	t.mu.Lock()
	tk.failures = 0
	previous := tk.lastStatus
	changed := mapped != previous
	if changed {
		tk.lastStatus = mapped
	}
	t.mu.Unlock()

	if changed {
		t.logger.Info("document status changed",
			logging.String(logging.FieldDocumentID, tk.key.documentID),
			logging.String("previous_status", string(previous)),
			logging.String("new_status", string(mapped)),
		)
		t.hub.Publish(events.Event{
			Type:           events.TypeStatusUpdate,
			DocumentID:     tk.key.documentID,
			IssuerNIT:      tk.key.issuerNIT,
			PreviousStatus: previous,
			NewStatus:      mapped,
			ControlNumber:  result.ControlNumber,
			GenerationCode: result.GenerationCode,
			ReceptionSeal:  result.ReceptionSeal,
		})
	}

	if mapped.Terminal() {
		t.logger.Info("tracking finished",
			logging.String(logging.FieldDocumentID, tk.key.documentID),
			logging.String("final_status", string(mapped)),
		)
		t.remove(tk)
	}
}

func (t *Tracker) timeoutTask(tk *task) {
	if !t.isCurrent(tk) {
		return
	}
	t.logger.Warn("tracking timed out",
		logging.String(logging.FieldDocumentID, tk.key.documentID),
		logging.Duration("timeout", tk.opts.Timeout),
	)
	t.hub.Publish(events.Event{
		Type:       events.TypeTrackingTimeout,
		DocumentID: tk.key.documentID,
		IssuerNIT:  tk.key.issuerNIT,
	})
	t.remove(tk)
}

func (t *Tracker) isCurrent(tk *task) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tasks[tk.key] == tk
}

func (t *Tracker) remove(tk *task) {
	t.mu.Lock()
	if t.tasks[tk.key] == tk {
		delete(t.tasks, tk.key)
	}
	t.mu.Unlock()
	tk.cancel()
}
