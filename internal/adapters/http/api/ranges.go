// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/zonecorr/internal/domain/ranges"
	"github.com/okian/zonecorr/internal/domain/thermal"
)

// RangeDependencies defines the operations behind the range routes.
type RangeDependencies interface {
	SaveRanges(ctx context.Context, userID, reactorID, text string) (ranges.Ranges, error)
	StoreRanges(ctx context.Context, userID, reactorID string, r ranges.Ranges) error
	ClearRanges(ctx context.Context, userID, reactorID string) bool
	EffectiveRanges(ctx context.Context, userID, reactorID string) (ranges.Resolution, bool, error)
}

// RangesHandler handles working range overrides.
type RangesHandler struct {
	deps RangeDependencies
}

// NewRangesHandler creates a new ranges handler.
func NewRangesHandler(deps RangeDependencies) *RangesHandler {
	return &RangesHandler{deps: deps}
}

// rangesRequest accepts either operator text or structured ranges ordered B, C, D.
type rangesRequest struct {
	Text   string         `json:"text"`
	Ranges *ranges.Ranges `json:"ranges"`
}

type rangesResponse struct {
	Ranges   ranges.Ranges `json:"ranges"`
	Text     string        `json:"text"`
	Origin   ranges.Origin `json:"origin,omitempty"`
	InEffect bool          `json:"in_effect"`
}

// HandlePut handles PUT on the user and reactor range routes. A missing
// reactor path variable targets the user-global override.
func (h *RangesHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_ranges"
	userID, reactorID := pathIDs(r)

	var req rangesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", thermal.WrapKind(op, ErrBadRequest, err))
		return
	}

	hasText := strings.TrimSpace(req.Text) != ""
	if hasText == (req.Ranges != nil) {
		writeError(w, http.StatusBadRequest, "bad_request",
			thermal.WrapKind(op, ErrBadRequest, errors.New("exactly one of text or ranges is required")))
		return
	}

	var (
		saved ranges.Ranges
		err   error
	)
	if hasText {
		saved, err = h.deps.SaveRanges(r.Context(), userID, reactorID, req.Text)
	} else {
		saved = *req.Ranges
		err = h.deps.StoreRanges(r.Context(), userID, reactorID, saved)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	origin := ranges.OriginUser
	if reactorID != "" {
		origin = ranges.OriginReactor
	}
	writeJSON(w, http.StatusOK, rangesResponse{Ranges: saved, Text: ranges.Format(saved), Origin: origin, InEffect: true})
}

// HandleDelete handles DELETE on the user and reactor range routes.
func (h *RangesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, reactorID := pathIDs(r)
	if !h.deps.ClearRanges(r.Context(), userID, reactorID) {
		writeError(w, http.StatusNotFound, "not_found", errors.New("no saved ranges"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGet handles GET /v1/users/{user}/reactors/{reactor}/ranges and
// reports the effective ranges for the reactor.
func (h *RangesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, reactorID := pathIDs(r)
	res, inEffect, err := h.deps.EffectiveRanges(r.Context(), userID, reactorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rangesResponse{
		Ranges:   res.Ranges,
		Text:     ranges.Format(res.Ranges),
		Origin:   res.Origin,
		InEffect: inEffect,
	})
}
