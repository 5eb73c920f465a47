// Package server exposes the loaded invoice dataset over HTTP: company
// listing, per-company invoice and metrics views, and an AI insight
// endpoint. The dataset is immutable, so handlers share it without locking.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"invoice-insights-service/internal/metrics"
	"invoice-insights-service/internal/models"
	"invoice-insights-service/pkg/errors"
	"invoice-insights-service/pkg/logger"
)

// Config holds HTTP server settings
type Config struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns server settings with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8000",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks the server configuration
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "server.addr", nil, nil)
	}
	if c.ReadTimeout <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "server.read_timeout", c.ReadTimeout, nil)
	}
	if c.WriteTimeout <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "server.write_timeout", c.WriteTimeout, nil)
	}
	return nil
}

// Server wires the metrics engine and insight generator into HTTP routes
type Server struct {
	config  *Config
	engine  *metrics.Engine
	insight InsightGenerator
	router  *mux.Router
	handler http.Handler
	http    *http.Server
	logger  logger.Logger
}

// New creates a server over the given engine. The insight generator may be
// nil, in which case the insight endpoint reports the feature as unavailable.
func New(config *Config, engine *metrics.Engine, insight InsightGenerator) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config:  config,
		engine:  engine,
		insight: insight,
		router:  mux.NewRouter(),
		logger:  logger.GetGlobalLogger().WithComponent("server"),
	}
	s.routes()

	// Middleware wraps the router from outside so CORS and request logging
	// also cover preflight and method mismatches.
	s.handler = s.logRequests(corsAllowAll(s.router))

	s.http = &http.Server{
		Addr:         config.Addr,
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc("/companies", s.handleCompanies).Methods("GET")
	s.router.HandleFunc("/company/{company}/invoices", s.handleInvoices).Methods("GET")
	s.router.HandleFunc("/company/{company}/metrics", s.handleMetrics).Methods("GET")
	s.router.HandleFunc("/client/{company}/insight", s.handleInsight).Methods("POST")
}

// Handler returns the full middleware chain, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe runs the HTTP server until it fails or Shutdown is called
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logger.Fields{
		"addr":      s.config.Addr,
		"companies": len(s.engine.Dataset().Companies()),
	}).Info("Starting HTTP server")

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.NetworkError(errors.CodeConnectionFailed, s.config.Addr, err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// handleCompanies returns the sorted company identifier list
func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Dataset().Companies())
}

// InvoiceView is the row shape returned by the invoices endpoint
type InvoiceView struct {
	InvoiceReference string        `json:"invoice_reference"`
	DateInvoiced     models.Date   `json:"date_invoiced"`
	InvoiceAmount    models.Amount `json:"invoice_amount"`
	PaidAmount       models.Amount `json:"paid_amount"`
	DaysToPay        models.Days   `json:"days_to_pay"`
}

// handleInvoices returns the company's invoices in invoice date order
func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["company"]

	rows, err := s.engine.Dataset().CompanyInvoices(companyID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	views := make([]InvoiceView, 0, len(rows))
	for _, row := range rows {
		views = append(views, InvoiceView{
			InvoiceReference: row.Reference,
			DateInvoiced:     row.DateInvoiced,
			InvoiceAmount:    row.InvoiceAmount,
			PaidAmount:       row.PaidAmount,
			DaysToPay:        row.DaysToPay,
		})
	}

	s.writeJSON(w, http.StatusOK, views)
}

// handleMetrics returns the full metrics view for one company
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["company"]

	result, err := s.engine.CompanyMetrics(companyID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleInsight answers a free-form question about one company's invoices
func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["company"]

	query := r.URL.Query().Get("query")
	if query == "" {
		s.writeError(w, errors.ValidationError(errors.CodeMissingField, "query", "", nil).
			WithSuggestion("pass the question as the query parameter, e.g. ?query=how+fast+do+they+pay"))
		return
	}

	if s.insight == nil {
		s.writeError(w, errors.ConfigurationError(errors.CodeMissingConfig, "insight.api_key", nil, nil).
			WithSuggestion("start the server with OPENAI_API_KEY set to enable insights"))
		return
	}

	answer, err := s.insight.Generate(r.Context(), companyID, query)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// errorResponse is the JSON body sent for failed requests
type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	appErr := errors.WrapIfNeeded(err, errors.CategoryInternal, errors.CodeUnexpectedError, "request failed")

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.WithError(appErr).Error("Request failed")
	} else {
		s.logger.WithFields(logger.Fields{
			"code":   string(appErr.Code),
			"status": status,
		}).Debug("Request rejected")
	}

	s.writeJSON(w, status, errorResponse{
		Error:      appErr.Message,
		Code:       string(appErr.Code),
		Suggestion: appErr.Suggestion,
	})
}

// logRequests logs method, path, status and duration for every request
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.logger.WithFields(logger.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   recorder.status,
			"duration": time.Since(start).String(),
		}).Info("Handled request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// corsAllowAll permits any origin, method and header so browser frontends
// on other hosts can call the API directly
func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
