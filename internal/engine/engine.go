package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"dtesync/internal/authority"
	"dtesync/internal/config"
	"dtesync/internal/contingency"
	"dtesync/internal/document"
	"dtesync/internal/events"
	"dtesync/internal/logging"
	"dtesync/internal/tracking"
)

// Engine coordinates submission, contingency queuing, and status tracking.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	hub     *events.Hub
	tracker *tracking.Tracker
	queue   *contingency.Queue

	clientMu sync.RWMutex
	client   authority.Client
}

// New constructs the engine with an HTTP authority client for the configured
// environment.
func New(cfg *config.Config, store *contingency.Store, logger *slog.Logger) (*Engine, error) {
	env, ok := authority.ParseEnvironment(cfg.Authority.Environment)
	if !ok {
		return nil, fmt.Errorf("unknown authority environment %q", cfg.Authority.Environment)
	}
	client := authority.NewHTTPClient(cfg, env)
	return NewWithClient(cfg, store, client, logger), nil
}

// NewWithClient constructs the engine around an explicit authority client.
func NewWithClient(cfg *config.Config, store *contingency.Store, client authority.Client, logger *slog.Logger) *Engine {
	hub := events.NewHub()
	return &Engine{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "engine"),
		hub:     hub,
		tracker: tracking.NewTracker(hub, logger),
		queue:   contingency.NewQueue(cfg, store, client, hub, logger),
		client:  client,
	}
}

// SubmitResult reports how SubmitOrQueue handled a document.
type SubmitResult struct {
	Queued  bool
	EntryID string
	Receipt authority.Receipt
}

// SubmitOrQueue attempts immediate submission. On success the document is
// handed to the status tracker, since the authority may still take time to
// finalize its disposition. When the authority is unreachable the document
// goes to the contingency queue instead. A permanent rejection is returned to
// the caller without queuing: retrying a payload the authority rejected as
// malformed cannot succeed.
func (e *Engine) SubmitOrQueue(ctx context.Context, doc document.Document, issuer document.Issuer) (SubmitResult, error) {
	client := e.currentClient()

	receipt, err := client.Submit(ctx, doc, issuer)
	if err == nil {
		doc.ControlNumber = receipt.ControlNumber
		doc.ReceptionSeal = receipt.ReceptionSeal
		doc.Status = document.StatusPending
		e.logger.Info("document submitted",
			logging.String(logging.FieldDocumentID, doc.ID),
			logging.String(logging.FieldControlNumber, doc.ControlNumber),
			logging.String(logging.FieldEnvironment, string(client.Environment())),
		)
		e.tracker.Start(ctx, client, doc, issuer, tracking.OptionsFromConfig(e.cfg))
		return SubmitResult{Receipt: receipt}, nil
	}

	if authority.IsRejection(err) {
		e.logger.Warn("document rejected by authority",
			logging.String(logging.FieldDocumentID, doc.ID),
			logging.Error(err),
		)
		return SubmitResult{}, err
	}

	entryID, queueErr := e.queue.Enqueue(ctx, doc, issuer, err.Error())
	if queueErr != nil {
		return SubmitResult{}, fmt.Errorf("submit failed and contingency enqueue failed: %w", queueErr)
	}
	return SubmitResult{Queued: true, EntryID: entryID}, nil
}

// Watch begins status tracking for a document that was already submitted.
func (e *Engine) Watch(ctx context.Context, doc document.Document, issuer document.Issuer) bool {
	return e.tracker.Start(ctx, e.currentClient(), doc, issuer, tracking.OptionsFromConfig(e.cfg))
}

// WatchBatch begins tracking several documents with jittered first polls.
func (e *Engine) WatchBatch(ctx context.Context, docs []document.Document, issuer document.Issuer) int {
	return e.tracker.StartBatch(ctx, e.currentClient(), docs, issuer, tracking.OptionsFromConfig(e.cfg))
}

// StopTracking cancels tracking for one document.
func (e *Engine) StopTracking(documentID string) {
	e.tracker.Stop(documentID)
}

// StopAllTracking cancels every tracking task.
func (e *Engine) StopAllTracking() {
	e.tracker.StopAll()
}

// SetEnvironment switches the authority endpoints used by new submissions,
// new tracking tasks, and subsequent contingency batches. Tracking tasks
// already in flight keep the environment they started under.
func (e *Engine) SetEnvironment(env authority.Environment) {
	client := authority.NewHTTPClient(e.cfg, env)
	e.clientMu.Lock()
	e.client = client
	e.clientMu.Unlock()
	e.queue.SetClient(client)
	e.logger.Info("authority environment switched",
		logging.String(logging.FieldEnvironment, string(env)),
	)
}

// Environment reports the environment new work will target.
func (e *Engine) Environment() authority.Environment {
	return e.currentClient().Environment()
}

// Events subscribes to the engine event stream. The returned cancel function
// must be called when the subscriber is done.
func (e *Engine) Events(buffer int) (<-chan events.Event, func()) {
	return e.hub.Subscribe(buffer)
}

// Enqueue places a document directly into the contingency queue.
func (e *Engine) Enqueue(ctx context.Context, doc document.Document, issuer document.Issuer, reason string) (string, error) {
	return e.queue.Enqueue(ctx, doc, issuer, reason)
}

// SubmitPending retries every pending contingency entry now.
func (e *Engine) SubmitPending(ctx context.Context) (contingency.BatchResult, error) {
	return e.queue.SubmitPending(ctx)
}

// ListContingency returns every retained contingency entry.
func (e *Engine) ListContingency(ctx context.Context) ([]*contingency.Entry, error) {
	return e.queue.List(ctx)
}

// StartAutoSubmission begins the recurring contingency retry timer.
func (e *Engine) StartAutoSubmission(ctx context.Context) {
	e.queue.StartAutoSubmission(ctx)
}

// StopAutoSubmission halts the recurring contingency retry timer.
func (e *Engine) StopAutoSubmission() {
	e.queue.StopAutoSubmission()
}

// CleanupOldEntries removes contingency entries past the retention window.
func (e *Engine) CleanupOldEntries(ctx context.Context) (int64, error) {
	return e.queue.CleanupOldEntries(ctx)
}

// TrackingStats reports active tracking tasks.
func (e *Engine) TrackingStats() tracking.TrackerStats {
	return e.tracker.Stats()
}

// ContingencyStats reports contingency queue counts by disposition.
func (e *Engine) ContingencyStats(ctx context.Context) (contingency.Stats, error) {
	return e.queue.Stats(ctx)
}

// Close stops all background work and the event stream.
func (e *Engine) Close() {
	e.queue.StopAutoSubmission()
	e.tracker.StopAll()
	e.hub.Close()
}

func (e *Engine) currentClient() authority.Client {
	e.clientMu.RLock()
	defer e.clientMu.RUnlock()
	return e.client
}
