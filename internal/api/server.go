// Package api exposes the bulk filing wizard over HTTP: draft persistence,
// CSV intake, step navigation and batch submission.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"nylta-workers/internal/common/logger"
	"nylta-workers/internal/common/metrics"
	"nylta-workers/internal/draftstore"
	"nylta-workers/internal/submission"
	parseclientcsv "nylta-workers/internal/workers/bulk-filing/parse-client-csv"
	submitbulkfiling "nylta-workers/internal/workers/bulk-filing/submit-bulk-filing"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 10 << 20

// CSVImporter is implemented by the parse-client-csv worker handler.
type CSVImporter interface {
	Execute(ctx context.Context, input *parseclientcsv.Input) (*parseclientcsv.Output, error)
}

// BatchSubmitter is implemented by the submit-bulk-filing worker handler.
type BatchSubmitter interface {
	Execute(ctx context.Context, input *submitbulkfiling.Input) (*submitbulkfiling.Output, error)
}

// OrderSearcher is implemented by *submission.ResultIndexer.
type OrderSearcher interface {
	SearchOrder(ctx context.Context, orderNumber string) ([]submission.SearchDocument, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Drafts    draftstore.Repository
	Importer  CSVImporter
	Submitter BatchSubmitter
	Orders    OrderSearcher
	Checks    map[string]ReadinessCheck
	Logger    logger.Logger
}

type Server struct {
	drafts    draftstore.Repository
	importer  CSVImporter
	submitter BatchSubmitter
	orders    OrderSearcher
	checks    map[string]ReadinessCheck
	validate  *validator.Validate
	logger    logger.Logger
}

func NewServer(opts Options) (*Server, error) {
	if opts.Drafts == nil {
		return nil, fmt.Errorf("draft store is required for the wizard api")
	}
	if opts.Importer == nil {
		return nil, fmt.Errorf("csv importer is required for the wizard api")
	}
	if opts.Submitter == nil {
		return nil, fmt.Errorf("batch submitter is required for the wizard api")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(jsonTagName)

	return &Server{
		drafts:    opts.Drafts,
		importer:  opts.Importer,
		submitter: opts.Submitter,
		orders:    opts.Orders,
		checks:    opts.Checks,
		validate:  validate,
		logger:    log,
	}, nil
}

// Router builds the route table. /metrics serves the default Prometheus
// registry.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recovery)
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.ready).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/csv-template", s.csvTemplate).Methods(http.MethodGet)

	wz := api.PathPrefix("/wizard/{sessionId}").Subrouter()
	wz.HandleFunc("", s.getDraft).Methods(http.MethodGet)
	wz.HandleFunc("", s.putDraft).Methods(http.MethodPut)
	wz.HandleFunc("", s.deleteDraft).Methods(http.MethodDelete)
	wz.HandleFunc("/csv", s.importCSV).Methods(http.MethodPost)
	wz.HandleFunc("/next", s.next).Methods(http.MethodPost)
	wz.HandleFunc("/back", s.back).Methods(http.MethodPost)
	wz.HandleFunc("/goto/{step:[0-9]+}", s.goTo).Methods(http.MethodPost)
	wz.HandleFunc("/validation", s.validation).Methods(http.MethodGet)
	wz.HandleFunc("/submit", s.submit).Methods(http.MethodPost)

	wz.HandleFunc("/clients", s.addClient).Methods(http.MethodPost)
	wz.HandleFunc("/clients/{clientId}", s.updateClient).Methods(http.MethodPatch)
	wz.HandleFunc("/clients/{clientId}", s.removeClient).Methods(http.MethodDelete)
	wz.HandleFunc("/clients/{clientId}/applicants", s.addApplicant).Methods(http.MethodPost)
	wz.HandleFunc("/clients/{clientId}/applicants/{personId}", s.removeApplicant).Methods(http.MethodDelete)
	wz.HandleFunc("/clients/{clientId}/owners", s.addOwner).Methods(http.MethodPost)
	wz.HandleFunc("/clients/{clientId}/owners/{personId}", s.removeOwner).Methods(http.MethodDelete)
	wz.HandleFunc("/attestation", s.putAttestation).Methods(http.MethodPut)
	wz.HandleFunc("/attestation", s.deleteAttestation).Methods(http.MethodDelete)

	if s.orders != nil {
		api.HandleFunc("/orders/{orderNumber}", s.searchOrder).Methods(http.MethodGet)
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"failed": failed,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.APIRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()

		s.logger.Info("HTTP Request", map[string]interface{}{
			"method":      r.Method,
			"route":       route,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("Panic serving request", map[string]interface{}{
					"path":  r.URL.Path,
					"panic": fmt.Sprint(p),
				})
				respondError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
