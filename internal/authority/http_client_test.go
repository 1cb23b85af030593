package authority_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dtesync/internal/authority"
	"dtesync/internal/config"
	"dtesync/internal/document"
)

func newTestClient(t *testing.T, handler http.Handler) (*authority.HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Authority.TestURL = server.URL
	cfg.Authority.APIToken = "test-token"
	return authority.NewHTTPClient(&cfg, authority.EnvironmentTest), server
}

func sampleDocument() (document.Document, document.Issuer) {
	doc := document.Document{
		ID:      "7f9f2a40-0000-4000-8000-000000000001",
		Type:    document.TypeInvoice,
		Payload: json.RawMessage(`{"identificacion":{}}`),
	}
	issuer := document.Issuer{NIT: "0614-123456-001-2", Name: "Comercial SV"}
	return doc, issuer
}

func TestSubmitSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"estado":           "PROCESADO",
			"codigoGeneracion": "7f9f2a40-0000-4000-8000-000000000001",
			"numeroControl":    "DTE-01-00000001-000000000000001",
			"selloRecibido":    "2025SELLO123",
			"fhProcesamiento":  "15/03/2025 10:30:00",
		})
	}))

	doc, issuer := sampleDocument()
	receipt, err := client.Submit(context.Background(), doc, issuer)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if gotPath != "/fesv/recepciondte" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotAuth != "test-token" {
		t.Errorf("unexpected Authorization header %q", gotAuth)
	}
	if gotBody["ambiente"] != "00" {
		t.Errorf("test environment should send ambiente 00, got %v", gotBody["ambiente"])
	}
	if receipt.ControlNumber != "DTE-01-00000001-000000000000001" {
		t.Errorf("unexpected control number %q", receipt.ControlNumber)
	}
	if receipt.ReceptionSeal != "2025SELLO123" {
		t.Errorf("unexpected seal %q", receipt.ReceptionSeal)
	}
	if receipt.ProcessedAt.IsZero() {
		t.Error("expected processed timestamp")
	}
}

func TestSubmitRejectedBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"estado":         "RECHAZADO",
			"descripcionMsg": "NIT del emisor no autorizado",
		})
	}))

	doc, issuer := sampleDocument()
	_, err := client.Submit(context.Background(), doc, issuer)
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if !authority.IsRejection(err) {
		t.Errorf("expected rejection classification, got %v", err)
	}
}

func TestSubmitBadRequestIsRejection(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"descripcionMsg": "esquema invalido"})
	}))

	doc, issuer := sampleDocument()
	_, err := client.Submit(context.Background(), doc, issuer)
	if !authority.IsRejection(err) {
		t.Fatalf("expected rejection for 422, got %v", err)
	}
}

func TestSubmitServerErrorIsTransient(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	doc, issuer := sampleDocument()
	_, err := client.Submit(context.Background(), doc, issuer)
	if !authority.IsTransient(err) {
		t.Fatalf("expected transient classification for 502, got %v", err)
	}
}

func TestSubmitConnectionFailureIsTransient(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	doc, issuer := sampleDocument()
	_, err := client.Submit(context.Background(), doc, issuer)
	if !authority.IsTransient(err) {
		t.Fatalf("expected transient classification for closed server, got %v", err)
	}
}

func TestQueryStatus(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fesv/recepcion/consultadte" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"estado":        "EN_PROCESO",
			"numeroControl": "DTE-01-00000001-000000000000001",
		})
	}))

	result, err := client.QueryStatus(context.Background(), "DTE-01-00000001-000000000000001", "0614-123456-001-2")
	if err != nil {
		t.Fatalf("QueryStatus failed: %v", err)
	}
	if gotBody["nitEmisor"] != "0614-123456-001-2" {
		t.Errorf("unexpected nitEmisor %v", gotBody["nitEmisor"])
	}
	if result.Code != "EN_PROCESO" {
		t.Errorf("unexpected status code %q", result.Code)
	}
}

func TestEnvironmentEndpoints(t *testing.T) {
	cfg := config.Default()
	prod := authority.NewHTTPClient(&cfg, authority.EnvironmentProduction)
	test := authority.NewHTTPClient(&cfg, authority.EnvironmentTest)

	if prod.Environment() != authority.EnvironmentProduction {
		t.Errorf("unexpected environment %q", prod.Environment())
	}
	if test.Environment() != authority.EnvironmentTest {
		t.Errorf("unexpected environment %q", test.Environment())
	}
}

func TestParseEnvironment(t *testing.T) {
	if env, ok := authority.ParseEnvironment("production"); !ok || env != authority.EnvironmentProduction {
		t.Errorf("ParseEnvironment(production) = %q, %v", env, ok)
	}
	if env, ok := authority.ParseEnvironment("test"); !ok || env != authority.EnvironmentTest {
		t.Errorf("ParseEnvironment(test) = %q, %v", env, ok)
	}
	if _, ok := authority.ParseEnvironment("staging"); ok {
		t.Error("ParseEnvironment(staging) should fail")
	}
}
