// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/okian/zonecorr/internal/adapters/session"
	service "github.com/okian/zonecorr/internal/app"
	"github.com/okian/zonecorr/internal/domain/ranges"
	"github.com/okian/zonecorr/internal/domain/thermal"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Compute(ctx context.Context, req service.ComputeRequest) (service.Outcome, error)
	ComputeValues(ctx context.Context, req service.ValuesRequest) (service.Outcome, error)

	Session(ctx context.Context, userID, reactorID string) (session.Entry, error)
	Finish(ctx context.Context, userID, reactorID string) error
	ListSessions(ctx context.Context, userID string) []session.Entry

	SaveRanges(ctx context.Context, userID, reactorID, text string) (ranges.Ranges, error)
	StoreRanges(ctx context.Context, userID, reactorID string, r ranges.Ranges) error
	ClearRanges(ctx context.Context, userID, reactorID string) bool
	EffectiveRanges(ctx context.Context, userID, reactorID string) (ranges.Resolution, bool, error)
}

// Server wires HTTP routes for the correction API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	correctionsHandler *CorrectionsHandler
	rangesHandler      *RangesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		correctionsHandler: NewCorrectionsHandler(deps),
		rangesHandler:      NewRangesHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)
	r.Handle("/metrics", s.healthHandler.MetricsHandler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1/users/{user}").Subrouter()
	v1.HandleFunc("/sessions", MetricsMiddleware(s.correctionsHandler.HandleListSessions, "sessions")).Methods(http.MethodGet)
	v1.HandleFunc("/ranges", MetricsMiddleware(s.rangesHandler.HandlePut, "user_ranges")).Methods(http.MethodPut)
	v1.HandleFunc("/ranges", MetricsMiddleware(s.rangesHandler.HandleDelete, "user_ranges")).Methods(http.MethodDelete)

	reactor := v1.PathPrefix("/reactors/{reactor}").Subrouter()
	reactor.HandleFunc("/corrections", MetricsMiddleware(s.correctionsHandler.HandlePost, "corrections")).Methods(http.MethodPost)
	reactor.HandleFunc("/session", MetricsMiddleware(s.correctionsHandler.HandleGetSession, "session")).Methods(http.MethodGet)
	reactor.HandleFunc("/session", MetricsMiddleware(s.correctionsHandler.HandleFinish, "session")).Methods(http.MethodDelete)
	reactor.HandleFunc("/ranges", MetricsMiddleware(s.rangesHandler.HandleGet, "reactor_ranges")).Methods(http.MethodGet)
	reactor.HandleFunc("/ranges", MetricsMiddleware(s.rangesHandler.HandlePut, "reactor_ranges")).Methods(http.MethodPut)
	reactor.HandleFunc("/ranges", MetricsMiddleware(s.rangesHandler.HandleDelete, "reactor_ranges")).Methods(http.MethodDelete)
}

// Handler wraps h with panic recovery and Apache-style access logs written to accessLog.
// A nil accessLog disables access logging.
func Handler(h http.Handler, accessLog io.Writer) http.Handler {
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	if accessLog != nil {
		h = handlers.LoggingHandler(accessLog, h)
	}
	return h
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates a service error into its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), service.ErrorKind(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrCapacity):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrInvalidKey),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, thermal.ErrInputFormat),
		errors.Is(err, thermal.ErrRangeInvalid),
		errors.Is(err, thermal.ErrModeInvalid):
		return http.StatusBadRequest
	case errors.Is(err, thermal.ErrOptimizationConvergence):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func pathIDs(r *http.Request) (userID, reactorID string) {
	vars := mux.Vars(r)
	return vars["user"], vars["reactor"]
}
