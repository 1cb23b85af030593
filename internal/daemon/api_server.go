package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dtesync/internal/api"
	"dtesync/internal/authority"
	"dtesync/internal/config"
	"dtesync/internal/document"
	"dtesync/internal/logging"
)

// APIServer exposes the daemon over a local HTTP API for the CLI.
type APIServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

// NewAPIServer builds the API server for the configured bind address. A blank
// bind address disables the API and returns nil.
func NewAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *APIServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &APIServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}

	router := chi.NewRouter()
	router.Get("/api/status", srv.handleStatus)
	router.Get("/api/tracking", srv.handleTracking)
	router.Post("/api/tracking", srv.handleTrackingStart)
	router.Delete("/api/tracking/{documentID}", srv.handleTrackingStop)
	router.Get("/api/contingency", srv.handleContingencyList)
	router.Post("/api/contingency/submit", srv.handleContingencySubmit)
	router.Post("/api/contingency/cleanup", srv.handleContingencyCleanup)
	router.Post("/api/documents", srv.handleSubmitDocument)
	router.Post("/api/environment", srv.handleEnvironment)

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Start begins serving on the configured bind address.
func (s *APIServer) Start() error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return err
	}
	s.listener = listener
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	s.logger.Info("api server listening", logging.String("bind", s.Addr()))
	return nil
}

// Addr returns the bound address, useful when the bind port was 0.
func (s *APIServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the API server gracefully.
func (s *APIServer) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.daemon.Engine().ContingencyStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := api.StatusResponse{
		Running:     s.daemon.Running(),
		Environment: string(s.daemon.Engine().Environment()),
		StorePath:   s.daemon.StorePath(),
		Tracking:    api.TrackingStatsFrom(s.daemon.Engine().TrackingStats()),
		Contingency: api.ContingencyStatsFrom(stats),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleTracking(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.TrackingStatsFrom(s.daemon.Engine().TrackingStats()))
}

func (s *APIServer) handleTrackingStart(w http.ResponseWriter, r *http.Request) {
	var req api.WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Issuer.NIT) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("issuer.nit is required"))
		return
	}
	if len(req.Documents) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("at least one document is required"))
		return
	}

	docs := make([]document.Document, 0, len(req.Documents))
	for _, wd := range req.Documents {
		id := strings.TrimSpace(wd.ID)
		controlNumber := strings.TrimSpace(wd.ControlNumber)
		if id == "" || controlNumber == "" {
			s.writeError(w, http.StatusBadRequest, errors.New("document id and controlNumber are required"))
			return
		}
		docs = append(docs, document.Document{
			ID:            id,
			ControlNumber: controlNumber,
			Status:        document.StatusPending,
		})
	}
	issuer := document.Issuer{NIT: req.Issuer.NIT, NRC: req.Issuer.NRC, Name: req.Issuer.Name}

	started := s.daemon.Engine().WatchBatch(r.Context(), docs, issuer)
	s.writeJSON(w, http.StatusOK, api.WatchResponse{Started: started})
}

func (s *APIServer) handleTrackingStop(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	if documentID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("document id is required"))
		return
	}
	s.daemon.Engine().StopTracking(documentID)
	s.writeJSON(w, http.StatusOK, api.StopTrackingResponse{DocumentID: documentID})
}

func (s *APIServer) handleContingencyList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.daemon.Engine().ListContingency(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	maxAttempts := s.daemon.cfg.Contingency.MaxAttempts
	resp := api.EntryListResponse{Entries: make([]api.EntryView, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, api.EntryViewFrom(entry, maxAttempts))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleContingencySubmit(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.Engine().SubmitPending(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BatchResultFrom(result))
}

func (s *APIServer) handleContingencyCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := s.daemon.Engine().CleanupOldEntries(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CleanupResponse{Removed: removed})
}

func (s *APIServer) handleSubmitDocument(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Issuer.NIT) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("issuer.nit is required"))
		return
	}

	doc := document.Document{
		ID:           strings.TrimSpace(req.Document.ID),
		Type:         document.Type(req.Document.Type),
		Status:       document.StatusPending,
		IssuedAt:     time.Now().UTC(),
		ReceiverName: req.Document.ReceiverName,
		ReceiverID:   req.Document.ReceiverID,
		Total:        req.Document.Total,
		Payload:      req.Document.Payload,
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	issuer := document.Issuer{
		NIT:               req.Issuer.NIT,
		NRC:               req.Issuer.NRC,
		Name:              req.Issuer.Name,
		EstablishmentCode: req.Issuer.EstablishmentCode,
		POSCode:           req.Issuer.POSCode,
	}

	result, err := s.daemon.Engine().SubmitOrQueue(r.Context(), doc, issuer)
	if err != nil {
		status := http.StatusBadGateway
		if authority.IsRejection(err) {
			status = http.StatusUnprocessableEntity
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SubmitResponse{
		Queued:         result.Queued,
		EntryID:        result.EntryID,
		ControlNumber:  result.Receipt.ControlNumber,
		GenerationCode: result.Receipt.GenerationCode,
		ReceptionSeal:  result.Receipt.ReceptionSeal,
	})
}

func (s *APIServer) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	var req api.EnvironmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	env, ok := authority.ParseEnvironment(strings.ToLower(strings.TrimSpace(req.Environment)))
	if !ok {
		s.writeError(w, http.StatusBadRequest, errors.New("environment must be \"production\" or \"test\""))
		return
	}
	s.daemon.Engine().SetEnvironment(env)
	s.writeJSON(w, http.StatusOK, map[string]string{"environment": string(env)})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode api response", logging.Error(err))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}
