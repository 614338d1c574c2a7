// Package registry implements the stateless name registry HTTP service.
// Any replica may serve any request; the only state behind a handler is the
// shared record store connection.
package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wintermutant/anvil-composable-tutorial/config"
	"github.com/wintermutant/anvil-composable-tutorial/errors"
	"github.com/wintermutant/anvil-composable-tutorial/metric"
	"github.com/wintermutant/anvil-composable-tutorial/store"
)

const serviceName = "name-registry"

// submitRequest is the body of POST /api/names
type submitRequest struct {
	Name string `json:"name"`
}

// submitResponse acknowledges a stored name
type submitResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// listResponse is the body of GET /api/names
type listResponse struct {
	Names []string `json:"names"`
}

// Service translates the two API operations into record store calls
type Service struct {
	store   store.Store
	config  config.RegistryConfig
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewService creates a new registry service bound to a record store
func NewService(
	recordStore store.Store,
	cfg config.RegistryConfig,
	logger *slog.Logger,
	metrics *metric.Metrics,
) (*Service, error) {
	if recordStore == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Service", "NewService",
			"record store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:   recordStore,
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// RegisterHTTPHandlers registers the service routes with the HTTP mux
func (s *Service) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/names", s.handleNames)
	mux.HandleFunc("/healthz", s.handleLive)
	mux.HandleFunc("/", s.handleLive)
}

// getOrGenerateRequestID extracts a request ID from headers or generates one
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}

	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// handleLive answers the liveness probe. It returns 200 unconditionally once
// the process is accepting connections; replica removal on store failure is
// the orchestration layer's job, not this endpoint's.
func (s *Service) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/healthz" {
		s.writeError(w, http.StatusNotFound, "resource not found")
		s.countRequest(r.URL.Path, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"live"}`))
	s.countRequest("/healthz", http.StatusOK)
}

// handleNames dispatches /api/names by HTTP method
func (s *Service) handleNames(w http.ResponseWriter, r *http.Request) {
	requestID := getOrGenerateRequestID(r)
	w.Header().Set("X-Request-ID", requestID)

	switch r.Method {
	case http.MethodGet:
		s.handleList(w, r, requestID)
	case http.MethodPost:
		s.handleSubmit(w, r, requestID)
	case http.MethodOptions:
		// Preflight is answered by the CORS middleware; nothing to do here
		w.WriteHeader(http.StatusNoContent)
	default:
		s.writeError(w, http.StatusMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", r.Method))
		s.countRequest("/api/names", http.StatusMethodNotAllowed)
	}
}

// handleSubmit validates and appends one name record
func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request, requestID string) {
	defer r.Body.Close()

	// Limit + 1 so an oversized body is detectable
	bodyReader := io.LimitReader(r.Body, s.config.MaxRequestSize+1)
	body, err := io.ReadAll(bodyReader)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		s.countRequest("/api/names", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > s.config.MaxRequestSize {
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds maximum size of %d bytes", s.config.MaxRequestSize))
		s.countRequest("/api/names", http.StatusRequestEntityTooLarge)
		return
	}

	var req submitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.Debug("Rejected malformed submit body", "request_id", requestID, "error", err)
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		s.countRequest("/api/names", http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	record, err := s.store.Append(ctx, req.Name)
	if err != nil {
		status := s.mapErrorToHTTPStatus(err)
		if errors.IsInvalid(err) {
			s.logger.Debug("Rejected invalid name", "request_id", requestID)
		} else {
			s.logger.Error("Store append failed", "request_id", requestID, "error", err)
			s.countError(err)
		}
		s.writeError(w, status, s.sanitizeError(err))
		s.countRequest("/api/names", status)
		return
	}

	s.logger.Debug("Stored name record", "request_id", requestID, "seq", record.Seq)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := submitResponse{Message: "name added", Name: record.Value}
	data, _ := json.Marshal(resp)
	_, _ = w.Write(data)
	s.countRequest("/api/names", http.StatusOK)
}

// handleList returns every stored name value in insertion order
func (s *Service) handleList(w http.ResponseWriter, r *http.Request, requestID string) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	records, err := s.store.List(ctx)
	if err != nil {
		status := s.mapErrorToHTTPStatus(err)
		s.logger.Error("Store list failed", "request_id", requestID, "error", err)
		s.countError(err)
		s.writeError(w, status, s.sanitizeError(err))
		s.countRequest("/api/names", status)
		return
	}

	names := make([]string, 0, len(records))
	for _, record := range records {
		names = append(names, record.Value)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	data, _ := json.Marshal(listResponse{Names: names})
	_, _ = w.Write(data)
	s.countRequest("/api/names", http.StatusOK)
}

// requestContext bounds a store call with the configured request timeout
func (s *Service) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.config.RequestTimeout)
}

// mapErrorToHTTPStatus maps classified errors to HTTP status codes
func (s *Service) mapErrorToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusInternalServerError
	}

	if errors.IsInvalid(err) {
		return http.StatusBadRequest
	}
	if errors.IsTransient(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// sanitizeError returns a safe error message for external clients
func (s *Service) sanitizeError(err error) string {
	if err == nil {
		return "internal server error"
	}

	if errors.IsInvalid(err) {
		return "name cannot be empty"
	}
	if errors.IsTransient(err) {
		return "record store temporarily unavailable"
	}
	return "internal server error"
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":  message,
		"status": statusCode,
	}

	data, _ := json.Marshal(response)
	_, _ = w.Write(data)
}

func (s *Service) countRequest(route string, code int) {
	if s.metrics == nil {
		return
	}
	s.metrics.RequestsTotal.WithLabelValues(serviceName, route, fmt.Sprintf("%d", code)).Inc()
}

func (s *Service) countError(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ErrorsTotal.WithLabelValues(serviceName, errors.Classify(err).String()).Inc()
}
