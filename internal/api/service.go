// Package api provides the HTTP handlers for the performance endpoints:
// request decoding, idempotent replay, lineage persistence and the mapping
// of engine error kinds to HTTP status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/atmx/perf-engine/internal/engine"
	"github.com/atmx/perf-engine/internal/metrics"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/atmx/perf-engine/internal/store"
)

// ReplayHeader marks a response served from a stored calculation.
const ReplayHeader = "X-Idempotent-Replay"

// StatusClientClosedRequest is returned for cancelled calculations.
const StatusClientClosedRequest = 499

// Service handles the performance endpoints. Identical in-flight requests
// (same calculation hash) share one engine run.
type Service struct {
	engine *engine.Engine
	store  store.Store
	hub    *Hub // optional WebSocket hub for calculation events
	flight singleflight.Group
	now    func() time.Time
}

// NewService creates a new performance service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(eng *engine.Engine, st store.Store, hub *Hub) *Service {
	return &Service{
		engine: eng,
		store:  st,
		hub:    hub,
		now:    time.Now,
	}
}

// Routes mounts the performance endpoints on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/twr", s.TWR)
	r.Post("/mwr", s.MWR)
	r.Post("/contribution", s.Contribution)
	r.Post("/attribution", s.Attribution)
	r.Get("/capabilities", s.Capabilities)
	r.Get("/lineage", s.ListLineage)
	r.Get("/lineage/{calculationID}", s.GetLineage)
}

// calculation is one decoded request ready to run.
type calculation struct {
	endpoint  string
	portfolio string
	precision model.PrecisionMode
	request   any
	run       func(ctx context.Context, meta model.Meta) (any, error)
}

// TWR handles POST /performance/twr
func (s *Service) TWR(w http.ResponseWriter, r *http.Request) {
	var req model.TWRRequest
	if !decode(w, r, &req) {
		return
	}
	s.calculate(w, r, calculation{
		endpoint:  model.EndpointTWR,
		portfolio: req.PortfolioID,
		precision: req.Precision(),
		request:   req,
		run: func(ctx context.Context, meta model.Meta) (any, error) {
			resp, err := s.engine.TWR(ctx, req, meta)
			if err != nil {
				return nil, err
			}
			metrics.NIPDays.Add(float64(resp.Diagnostics.NIPDays))
			metrics.ResetDays.Add(float64(resp.Diagnostics.ResetDays))
			return resp, nil
		},
	})
}

// MWR handles POST /performance/mwr
func (s *Service) MWR(w http.ResponseWriter, r *http.Request) {
	var req model.MWRRequest
	if !decode(w, r, &req) {
		return
	}
	s.calculate(w, r, calculation{
		endpoint:  model.EndpointMWR,
		portfolio: req.PortfolioID,
		precision: req.Precision(),
		request:   req,
		run: func(ctx context.Context, meta model.Meta) (any, error) {
			resp, err := s.engine.MWR(ctx, req, meta)
			if err != nil {
				return nil, err
			}
			if resp.Convergence != nil {
				metrics.SolverIterations.Observe(float64(resp.Convergence.Iterations))
			}
			return resp, nil
		},
	})
}

// Contribution handles POST /performance/contribution
func (s *Service) Contribution(w http.ResponseWriter, r *http.Request) {
	var req model.ContributionRequest
	if !decode(w, r, &req) {
		return
	}
	s.calculate(w, r, calculation{
		endpoint:  model.EndpointContribution,
		portfolio: req.PortfolioID,
		precision: req.Precision(),
		request:   req,
		run: func(ctx context.Context, meta model.Meta) (any, error) {
			return s.engine.Contribution(ctx, req, meta)
		},
	})
}

// Attribution handles POST /performance/attribution
func (s *Service) Attribution(w http.ResponseWriter, r *http.Request) {
	var req model.AttributionRequest
	if !decode(w, r, &req) {
		return
	}
	s.calculate(w, r, calculation{
		endpoint:  model.EndpointAttribution,
		portfolio: req.PortfolioID,
		precision: req.Precision(),
		request:   req,
		run: func(ctx context.Context, meta model.Meta) (any, error) {
			return s.engine.Attribution(ctx, req, meta)
		},
	})
}

// GetLineage handles GET /performance/lineage/{calculationID}
func (s *Service) GetLineage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "calculationID")

	rec, err := s.store.GetRecord(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "calculation "+id+" not found", "NotFound", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("lineage lookup failed", "calculation_id", id, "err", err)
		writeError(w, "failed to load lineage", string(model.KindEngineCalculation), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListLineage handles GET /performance/lineage?portfolio_id=&limit=
func (s *Service) ListLineage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", string(model.KindInvalidRequest), http.StatusBadRequest)
			return
		}
		limit = n
	}
	records, err := s.store.ListRecords(r.Context(), q.Get("portfolio_id"), limit)
	if err != nil {
		slog.Error("lineage listing failed", "err", err)
		writeError(w, "failed to list lineage", string(model.KindEngineCalculation), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.LineageRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// calculate stamps the request, replays a stored result when the calculation
// hash is known, and otherwise runs the engine once per hash in flight.
func (s *Service) calculate(w http.ResponseWriter, r *http.Request, c calculation) {
	start := s.now()
	ctx := r.Context()

	meta, err := s.engine.Stamp(c.request, c.precision)
	if err != nil {
		s.fail(w, c, start, err)
		return
	}

	if rec, err := s.store.FindByHash(ctx, meta.CalculationHash); err == nil {
		s.replay(w, c, rec, start)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		slog.Warn("replay lookup failed", "endpoint", c.endpoint, "calculation_hash", meta.CalculationHash, "err", err)
	}

	leader := false
	v, err, _ := s.flight.Do(meta.CalculationHash, func() (any, error) {
		leader = true
		ctx, cancel := sharedContext(ctx)
		defer cancel()
		resp, err := c.run(ctx, meta)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(resp)
		if err != nil {
			return nil, model.Errorf(model.KindEngineCalculation, "encode response: %w", err)
		}
		s.persist(ctx, c, meta, body)
		return body, nil
	})
	if err != nil {
		s.fail(w, c, start, err)
		return
	}
	body := v.([]byte)

	status := "ok"
	if !leader {
		status = "replay"
		w.Header().Set(ReplayHeader, "true")
	}
	s.done(c, meta.CalculationID.String(), meta.CalculationHash, status, start)
	s.broadcast(c, meta.CalculationID.String(), meta.CalculationHash, !leader)
	writeRaw(w, http.StatusOK, body)
}

func (s *Service) replay(w http.ResponseWriter, c calculation, rec *model.LineageRecord, start time.Time) {
	s.done(c, rec.CalculationID, rec.CalculationHash, "replay", start)
	s.broadcast(c, rec.CalculationID, rec.CalculationHash, true)
	w.Header().Set(ReplayHeader, "true")
	writeRaw(w, http.StatusOK, rec.Response)
}

// persist stores the lineage record. Failures are logged and do not fail
// the request.
// sharedContext detaches a run shared by singleflight followers from the
// leader's cancellation. The leader's deadline still applies.
func sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if dl, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, dl)
	}
	return context.WithCancel(detached)
}

func (s *Service) persist(ctx context.Context, c calculation, meta model.Meta, body []byte) {
	reqBody, err := json.Marshal(c.request)
	if err != nil {
		slog.Warn("lineage request encode failed", "calculation_id", meta.CalculationID, "err", err)
		return
	}
	rec := &model.LineageRecord{
		CalculationID:    meta.CalculationID.String(),
		Endpoint:         c.endpoint,
		PortfolioID:      c.portfolio,
		InputFingerprint: meta.InputFingerprint,
		CalculationHash:  meta.CalculationHash,
		EngineVersion:    meta.EngineVersion,
		Request:          reqBody,
		Response:         body,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.SaveRecord(ctx, rec); err != nil {
		slog.Warn("lineage save failed", "calculation_id", rec.CalculationID, "err", err)
	}
}

func (s *Service) fail(w http.ResponseWriter, c calculation, start time.Time, err error) {
	kind := model.KindOf(err)
	status := statusFor(err)
	metrics.ObserveCalculation(c.endpoint, string(kind), s.now().Sub(start))

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, "calculation failed",
		"endpoint", c.endpoint,
		"portfolio_id", c.portfolio,
		"kind", kind,
		"status", status,
		"err", err,
	)
	writeError(w, err.Error(), string(kind), status)
}

func (s *Service) done(c calculation, id, hash, status string, start time.Time) {
	elapsed := s.now().Sub(start)
	metrics.ObserveCalculation(c.endpoint, status, elapsed)
	slog.Info("calculation completed",
		"calculation_id", id,
		"endpoint", c.endpoint,
		"portfolio_id", c.portfolio,
		"calculation_hash", hash,
		"duration_ms", elapsed.Milliseconds(),
		"status", status,
	)
}

func (s *Service) broadcast(c calculation, id, hash string, replay bool) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(model.CalculationEvent{
		Type:            "calculation_completed",
		CalculationID:   id,
		Endpoint:        c.endpoint,
		PortfolioID:     c.portfolio,
		CalculationHash: hash,
		Replay:          replay,
		Timestamp:       s.now().UTC(),
	})
}

// statusFor maps an engine error to its HTTP status code.
func statusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindInvalidRequest, model.KindInvalidEngineInput:
		return http.StatusBadRequest
	case model.KindInsufficientData, model.KindSolverFailed:
		return http.StatusUnprocessableEntity
	case model.KindNotImplemented:
		return http.StatusNotImplemented
	case model.KindCancelled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "invalid request body: "+err.Error(), string(model.KindInvalidRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message, kind string, status int) {
	writeJSON(w, status, map[string]string{"error": message, "kind": kind})
}
