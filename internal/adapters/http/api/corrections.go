// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/zonecorr/internal/adapters/session"
	service "github.com/okian/zonecorr/internal/app"
	"github.com/okian/zonecorr/internal/domain/parser"
	"github.com/okian/zonecorr/internal/domain/thermal"
)

// CorrectionDependencies defines the operations behind the correction routes.
type CorrectionDependencies interface {
	Compute(ctx context.Context, req service.ComputeRequest) (service.Outcome, error)
	ComputeValues(ctx context.Context, req service.ValuesRequest) (service.Outcome, error)
	Session(ctx context.Context, userID, reactorID string) (session.Entry, error)
	Finish(ctx context.Context, userID, reactorID string) error
	ListSessions(ctx context.Context, userID string) []session.Entry
}

// CorrectionsHandler handles computations and active outputs.
type CorrectionsHandler struct {
	deps CorrectionDependencies
}

// NewCorrectionsHandler creates a new corrections handler.
func NewCorrectionsHandler(deps CorrectionDependencies) *CorrectionsHandler {
	return &CorrectionsHandler{deps: deps}
}

// correctionRequest mirrors the OpenAPI schema for POST .../corrections.
// Either Input or Current is set. Targets holds 0, 1 or 3 values.
type correctionRequest struct {
	Mode    string    `json:"mode"`
	Input   string    `json:"input"`
	Current []float64 `json:"current"`
	Targets []float64 `json:"targets"`
}

func (c correctionRequest) values() (thermal.Triple, *parser.Targets, error) {
	current, ok := thermal.TripleFrom(c.Current)
	if !ok {
		return thermal.Triple{}, nil, fmt.Errorf("current must hold %d values, got %d", thermal.ZoneCount, len(c.Current))
	}
	switch len(c.Targets) {
	case 0:
		return current, nil, nil
	case 1:
		t := parser.UniformTargets(c.Targets[0])
		return current, &t, nil
	case thermal.ZoneCount:
		v, _ := thermal.TripleFrom(c.Targets)
		t := parser.PerZoneTargets(v)
		return current, &t, nil
	default:
		return thermal.Triple{}, nil, fmt.Errorf("targets must hold 1 or %d values, got %d", thermal.ZoneCount, len(c.Targets))
	}
}

// HandlePost handles POST /v1/users/{user}/reactors/{reactor}/corrections.
func (h *CorrectionsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_correction"
	userID, reactorID := pathIDs(r)

	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", thermal.WrapKind(op, ErrBadRequest, err))
		return
	}

	hasInput := strings.TrimSpace(req.Input) != ""
	if hasInput == (len(req.Current) > 0) {
		writeError(w, http.StatusBadRequest, "bad_request",
			thermal.WrapKind(op, ErrBadRequest, errors.New("exactly one of input or current is required")))
		return
	}

	var (
		out service.Outcome
		err error
	)
	if hasInput {
		out, err = h.deps.Compute(r.Context(), service.ComputeRequest{
			UserID: userID, ReactorID: reactorID, Mode: req.Mode, Input: req.Input,
		})
	} else {
		current, targets, verr := req.values()
		if verr != nil {
			writeError(w, http.StatusBadRequest, "bad_request", thermal.WrapKind(op, ErrBadRequest, verr))
			return
		}
		out, err = h.deps.ComputeValues(r.Context(), service.ValuesRequest{
			UserID: userID, ReactorID: reactorID, Mode: req.Mode, Current: current, Targets: targets,
		})
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetSession handles GET /v1/users/{user}/reactors/{reactor}/session.
func (h *CorrectionsHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	userID, reactorID := pathIDs(r)
	e, err := h.deps.Session(r.Context(), userID, reactorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleFinish handles DELETE /v1/users/{user}/reactors/{reactor}/session.
func (h *CorrectionsHandler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	userID, reactorID := pathIDs(r)
	if err := h.deps.Finish(r.Context(), userID, reactorID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListSessions handles GET /v1/users/{user}/sessions.
func (h *CorrectionsHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, _ := pathIDs(r)
	entries := h.deps.ListSessions(r.Context(), userID)
	if entries == nil {
		entries = []session.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
