package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dtesync/internal/config"
	"dtesync/internal/document"
)

const userAgent = "dtesync/0.1.0"

// HTTPDoer describes the HTTP client used by the authority client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClient talks to the authority reception API over HTTPS. A client is
// immutable once constructed; switching environments means constructing a new
// one, so in-flight callers keep the endpoints they started with.
type HTTPClient struct {
	env     Environment
	baseURL string
	token   string
	client  HTTPDoer
}

// NewHTTPClient builds a client for the environment selected in cfg.
func NewHTTPClient(cfg *config.Config, env Environment) *HTTPClient {
	baseURL := cfg.Authority.TestURL
	if env == EnvironmentProduction {
		baseURL = cfg.Authority.ProductionURL
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		env:     env,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(cfg.Authority.APIToken),
		client:  &http.Client{Timeout: timeout},
	}
}

// Environment reports which endpoint set this client targets.
func (c *HTTPClient) Environment() Environment {
	return c.env
}

type submitRequest struct {
	Environment    string          `json:"ambiente"`
	SendID         string          `json:"idEnvio"`
	Version        int             `json:"version"`
	DocumentType   string          `json:"tipoDte"`
	GenerationCode string          `json:"codigoGeneracion"`
	Document       json.RawMessage `json:"documento"`
}

type submitResponse struct {
	State          string   `json:"estado"`
	GenerationCode string   `json:"codigoGeneracion"`
	ControlNumber  string   `json:"numeroControl"`
	ReceptionSeal  string   `json:"selloRecibido"`
	ProcessedAt    string   `json:"fhProcesamiento"`
	Description    string   `json:"descripcionMsg"`
	Observations   []string `json:"observaciones"`
}

// Submit transmits a signed document for reception.
func (c *HTTPClient) Submit(ctx context.Context, doc document.Document, issuer document.Issuer) (Receipt, error) {
	body := submitRequest{
		Environment:    c.wireEnvironment(),
		SendID:         doc.ID,
		Version:        1,
		DocumentType:   string(doc.Type),
		GenerationCode: doc.ID,
		Document:       doc.Payload,
	}

	var resp submitResponse
	status, err := c.postJSON(ctx, "/fesv/recepciondte", body, &resp)
	if err != nil {
		return Receipt{}, Wrap(ErrUnreachable, "submit", "send reception request", err)
	}

	switch {
	case status >= http.StatusInternalServerError:
		return Receipt{}, Wrap(ErrUnreachable, "submit", fmt.Sprintf("authority returned %d", status), nil)
	case status >= http.StatusBadRequest:
		return Receipt{}, Wrap(ErrRejected, "submit", rejectionDetail(resp), nil)
	}
	if strings.EqualFold(resp.State, CodeRejected) {
		return Receipt{}, Wrap(ErrRejected, "submit", rejectionDetail(resp), nil)
	}

	receipt := Receipt{
		ControlNumber:  resp.ControlNumber,
		GenerationCode: resp.GenerationCode,
		ReceptionSeal:  resp.ReceptionSeal,
		Observations:   resp.Observations,
	}
	if receipt.GenerationCode == "" {
		receipt.GenerationCode = doc.ID
	}
	if ts, parseErr := time.Parse("02/01/2006 15:04:05", resp.ProcessedAt); parseErr == nil {
		receipt.ProcessedAt = ts
	} else {
		receipt.ProcessedAt = time.Now().UTC()
	}
	return receipt, nil
}

type queryRequest struct {
	IssuerNIT     string `json:"nitEmisor"`
	ControlNumber string `json:"numeroControl"`
}

type queryResponse struct {
	State          string `json:"estado"`
	GenerationCode string `json:"codigoGeneracion"`
	ControlNumber  string `json:"numeroControl"`
	ReceptionSeal  string `json:"selloRecibido"`
	Description    string `json:"descripcionMsg"`
}

// QueryStatus asks for the current disposition of a submitted document.
func (c *HTTPClient) QueryStatus(ctx context.Context, controlNumber, issuerNIT string) (StatusResult, error) {
	body := queryRequest{IssuerNIT: issuerNIT, ControlNumber: controlNumber}

	var resp queryResponse
	status, err := c.postJSON(ctx, "/fesv/recepcion/consultadte", body, &resp)
	if err != nil {
		return StatusResult{}, Wrap(ErrUnreachable, "query status", "send status query", err)
	}

	switch {
	case status >= http.StatusInternalServerError:
		return StatusResult{}, Wrap(ErrUnreachable, "query status", fmt.Sprintf("authority returned %d", status), nil)
	case status >= http.StatusBadRequest:
		return StatusResult{}, Wrap(ErrRejected, "query status", strings.TrimSpace(resp.Description), nil)
	}

	return StatusResult{
		Code:           resp.State,
		ControlNumber:  resp.ControlNumber,
		GenerationCode: resp.GenerationCode,
		ReceptionSeal:  resp.ReceptionSeal,
	}, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body any, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if len(data) > 0 && out != nil {
		// Rejection bodies still carry a parseable envelope; decode errors on
		// error statuses are not themselves fatal.
		if decodeErr := json.Unmarshal(data, out); decodeErr != nil && resp.StatusCode < http.StatusBadRequest {
			return resp.StatusCode, fmt.Errorf("decode response: %w", decodeErr)
		}
	}
	return resp.StatusCode, nil
}

func (c *HTTPClient) wireEnvironment() string {
	if c.env == EnvironmentProduction {
		return "01"
	}
	return "00"
}

func rejectionDetail(resp submitResponse) string {
	parts := make([]string, 0, 1+len(resp.Observations))
	if detail := strings.TrimSpace(resp.Description); detail != "" {
		parts = append(parts, detail)
	}
	for _, obs := range resp.Observations {
		if obs = strings.TrimSpace(obs); obs != "" {
			parts = append(parts, obs)
		}
	}
	if len(parts) == 0 {
		return "document rejected"
	}
	return strings.Join(parts, "; ")
}
