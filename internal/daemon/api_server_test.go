package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dtesync/internal/api"
	"dtesync/internal/authority"
	"dtesync/internal/engine"
	"dtesync/internal/logging"
	"dtesync/internal/testsupport"
)

type countingAuthority struct {
	stubAuthority
	queries atomic.Int64
}

func (c *countingAuthority) QueryStatus(ctx context.Context, controlNumber, issuerNIT string) (authority.StatusResult, error) {
	c.queries.Add(1)
	return c.stubAuthority.QueryStatus(ctx, controlNumber, issuerNIT)
}

func newTestAPIServer(t *testing.T) (*APIServer, *Daemon) {
	t.Helper()
	d := newTestDaemon(t)
	srv := NewAPIServer(d.cfg, d, logging.NewNop())
	if srv == nil {
		t.Fatal("expected API server")
	}
	return srv, d
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestAPIServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp api.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Environment != "test" {
		t.Errorf("environment = %q, want test", resp.Environment)
	}
	if resp.StorePath == "" {
		t.Error("expected store path")
	}
}

func TestHandleSubmitDocument(t *testing.T) {
	srv, d := newTestAPIServer(t)

	body := `{
		"document": {"type": "01", "total": 113.0, "payload": null},
		"issuer": {"nit": "0614-123456-001-2", "name": "Comercial SV"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleSubmitDocument(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp api.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Queued {
		t.Error("stub authority accepts; response must not be queued")
	}
	if resp.ControlNumber == "" || resp.ReceptionSeal == "" {
		t.Errorf("incomplete receipt: %+v", resp)
	}
	if d.Engine().TrackingStats().Active != 1 {
		t.Errorf("tracking tasks = %d, want 1", d.Engine().TrackingStats().Active)
	}
}

// Submissions arrive over real HTTP in production, and net/http cancels the
// request context as soon as the handler returns. Tracking started by a
// submission must keep polling afterwards.
func TestSubmitOverHTTPOutlivesRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tracking.PollInterval = 1
	store := testsupport.MustOpenStore(t, cfg)
	client := &countingAuthority{}
	eng := engine.NewWithClient(cfg, store, client, logging.NewNop())
	t.Cleanup(eng.Close)
	d, err := New(cfg, store, eng, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { d.Stop() })

	srv := NewAPIServer(cfg, d, logging.NewNop())
	if srv == nil {
		t.Fatal("expected API server")
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	body := `{
		"document": {"type": "01", "total": 56.5},
		"issuer": {"nit": "0614-123456-001-2", "name": "Comercial SV"}
	}`
	resp, err := http.Post("http://"+srv.Addr()+"/api/documents", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/documents failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var submitted api.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if submitted.Queued || submitted.ControlNumber == "" {
		t.Fatalf("unexpected submit response: %+v", submitted)
	}

	deadline := time.Now().Add(5 * time.Second)
	for client.queries.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("queries = %d after the request finished, want at least 2", client.queries.Load())
		}
		time.Sleep(20 * time.Millisecond)
	}
	if got := eng.TrackingStats().Active; got != 1 {
		t.Errorf("active = %d, want 1", got)
	}
}

func TestHandleTrackingStartStop(t *testing.T) {
	srv, d := newTestAPIServer(t)

	body := `{
		"documents": [{"id": "doc-9", "controlNumber": "DTE-01-00000001-doc-9"}],
		"issuer": {"nit": "0614-123456-001-2"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/tracking", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var watch api.WatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &watch); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if watch.Started != 1 {
		t.Errorf("started = %d, want 1", watch.Started)
	}
	if got := d.Engine().TrackingStats().Active; got != 1 {
		t.Errorf("active = %d, want 1", got)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/tracking/doc-9", nil)
	w = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := d.Engine().TrackingStats().Active; got != 0 {
		t.Errorf("active = %d after stop, want 0", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/tracking", strings.NewReader(`{"documents": [{"id": "x", "controlNumber": "y"}], "issuer": {"nit": ""}}`))
	w = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing issuer", w.Code)
	}
}

func TestHandleSubmitDocumentRequiresIssuer(t *testing.T) {
	srv, _ := newTestAPIServer(t)

	body := `{"document": {"type": "01"}, "issuer": {"nit": ""}}`
	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleSubmitDocument(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected error message")
	}
}

func TestHandleContingencyEndpoints(t *testing.T) {
	srv, _ := newTestAPIServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/contingency", nil)
	w := httptest.NewRecorder()
	srv.handleContingencyList(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", w.Code)
	}
	var listing api.EntryListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(listing.Entries) != 0 {
		t.Errorf("entries = %d, want 0", len(listing.Entries))
	}

	req = httptest.NewRequest(http.MethodPost, "/api/contingency/submit", nil)
	w = httptest.NewRecorder()
	srv.handleContingencySubmit(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d, want 200", w.Code)
	}
	var batch api.BatchResultView
	if err := json.Unmarshal(w.Body.Bytes(), &batch); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if batch.Submitted != 0 || batch.Failed != 0 {
		t.Errorf("batch = %+v, want empty", batch)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/contingency/cleanup", nil)
	w = httptest.NewRecorder()
	srv.handleContingencyCleanup(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("cleanup status = %d, want 200", w.Code)
	}
}

func TestHandleEnvironment(t *testing.T) {
	srv, d := newTestAPIServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/environment", strings.NewReader(`{"environment": "production"}`))
	w := httptest.NewRecorder()
	srv.handleEnvironment(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := string(d.Engine().Environment()); got != "production" {
		t.Errorf("environment = %q, want production", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/environment", strings.NewReader(`{"environment": "staging"}`))
	w = httptest.NewRecorder()
	srv.handleEnvironment(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown environment", w.Code)
	}
}

func TestAPIServerDisabledWithoutBind(t *testing.T) {
	d := newTestDaemon(t)
	d.cfg.Paths.APIBind = ""
	if srv := NewAPIServer(d.cfg, d, logging.NewNop()); srv != nil {
		t.Fatal("expected nil server for blank bind address")
	}
}
