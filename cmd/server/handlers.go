package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/liamcoop/dewater/dewater"
	"github.com/liamcoop/dewater/internal/logger"
	"github.com/liamcoop/dewater/internal/metrics"
	"github.com/liamcoop/dewater/internal/validator"
	"github.com/liamcoop/dewater/scenario"
)

const successMessage = "Data analysis complete!"

// Water-table handler
func (s *Server) handleWaterTable(w http.ResponseWriter, r *http.Request) {
	var req WaterTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := validator.Validate(req); err != nil {
		respondValidation(w, err)
		return
	}

	s.simulateAndRespond(r.Context(), w, req.toDomain(), "api")
}

// Legacy query-string handler. Every parameter is a JSON document, scalars
// may also arrive as JSON strings ("\"100\"").
func (s *Server) handleLegacyWaterTable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var errs dewater.ValidationErrors

	xIndex := queryFloats(q, "xIndex", &errs)
	yIndex := queryFloats(q, "yIndex", &errs)
	wXCoords := queryFloats(q, "wXCoords", &errs)
	wYCoords := queryFloats(q, "wYCoords", &errs)
	cellSide := queryFloat(q, "cellSide", &errs)
	initial := queryFloat(q, "initial", &errs)
	bedrock := queryFloat(q, "bedrock", &errs)
	totalQ := queryFloat(q, "q", &errs)
	k := queryFloat(q, "k", &errs)

	if xIndex != nil && len(xIndex) != 2 {
		errs = append(errs, &dewater.ValidationError{Field: "xIndex", Message: "must hold exactly two values [min, max]"})
	}
	if yIndex != nil && len(yIndex) != 2 {
		errs = append(errs, &dewater.ValidationError{Field: "yIndex", Message: "must hold exactly two values [min, max]"})
	}
	if len(errs) > 0 {
		respondValidation(w, errs)
		return
	}
	if err := dewater.ValidateCoords(wXCoords, wYCoords); err != nil {
		respondValidation(w, err)
		return
	}

	req := dewater.Request{
		Box:      dewater.BoundingBox{XMin: xIndex[0], XMax: xIndex[1], YMin: yIndex[0], YMax: yIndex[1]},
		CellSide: cellSide,
		Wells: dewater.WellConfiguration{
			Wells:  dewater.WellsFromCoords(wXCoords, wYCoords),
			TotalQ: totalQ,
		},
		Aquifer: dewater.AquiferParameters{
			K:                          k,
			BedrockElevation:           bedrock,
			InitialWaterTableElevation: initial,
		},
	}

	s.simulateAndRespond(r.Context(), w, req, "legacy")
}

// Single-point handler
func (s *Server) handleElevation(w http.ResponseWriter, r *http.Request) {
	var req ElevationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := validator.Validate(req); err != nil {
		respondValidation(w, err)
		return
	}

	alloc, err := dewater.AllocatorFor(req.AllocationExpression)
	if err != nil {
		respondValidation(w, err)
		return
	}
	ev, err := dewater.NewEvaluator(
		req.Aquifer.toDomain(),
		dewater.WellConfiguration{Wells: wellsToDomain(req.Wells), TotalQ: req.TotalQ},
		alloc,
	)
	if err != nil {
		respondValidation(w, err)
		return
	}

	sample := ev.Evaluate(req.X, req.Y)
	if sample.Overdrawn {
		logger.WarnOverdraw(1, "x", req.X, "y", req.Y)
	}

	respondJSON(w, http.StatusOK, ElevationResponse{
		X:         req.X,
		Y:         req.Y,
		Elevation: sample.Elevation,
		Clamped:   sample.Clamped,
		Overdrawn: sample.Overdrawn,
		Flows:     ev.Flows(),
	})
}

// List scenarios handler
func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list scenarios", err)
		return
	}
	respondJSON(w, http.StatusOK, ScenariosListResponse{Scenarios: list})
}

// Create scenario handler
func (s *Server) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := validator.Validate(req); err != nil {
		respondValidation(w, err)
		return
	}

	sc := req.toScenario(uuid.NewString())
	if err := sc.Validate(); err != nil {
		respondValidation(w, err)
		return
	}
	if err := s.store.Add(sc); err != nil {
		respondStoreError(w, "failed to create scenario", err)
		return
	}

	logger.Info("scenario created", "id", sc.ID, "name", sc.Name, "wells", len(sc.Wells))
	respondJSON(w, http.StatusCreated, sc)
}

// Get scenario handler
func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}

	sc, err := s.store.Get(id)
	if err != nil {
		respondStoreError(w, "failed to get scenario", err)
		return
	}
	respondJSON(w, http.StatusOK, sc)
}

// Update scenario handler. The body replaces the stored parameters.
func (s *Server) handleUpdateScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}

	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := validator.Validate(req); err != nil {
		respondValidation(w, err)
		return
	}

	sc := req.toScenario(id)
	if err := sc.Validate(); err != nil {
		respondValidation(w, err)
		return
	}
	if err := s.store.Update(sc); err != nil {
		respondStoreError(w, "failed to update scenario", err)
		return
	}
	s.forgetLastRun(r.Context(), id)

	updated, err := s.store.Get(id)
	if err != nil {
		respondStoreError(w, "failed to get scenario", err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// Delete scenario handler
func (s *Server) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}

	if err := s.store.Delete(id); err != nil {
		respondStoreError(w, "failed to delete scenario", err)
		return
	}
	s.forgetLastRun(r.Context(), id)

	w.WriteHeader(http.StatusNoContent)
}

// Run a saved scenario over a bounding box
func (s *Server) handleRunScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := scenarioID(w, r)
	if !ok {
		return
	}

	var req RunScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := validator.Validate(req); err != nil {
		respondValidation(w, err)
		return
	}

	sc, err := s.store.Get(id)
	if err != nil {
		respondStoreError(w, "failed to get scenario", err)
		return
	}

	simReq := sc.Request(req.BoundingBox.toDomain(), req.CellSide)
	if key := scenario.Fingerprint(simReq); key != "" {
		s.lastRuns.Store(id, key)
	}
	s.simulateAndRespond(r.Context(), w, simReq, "scenario")
}

// forgetLastRun drops the cached grid of a scenario's most recent run
func (s *Server) forgetLastRun(ctx context.Context, id string) {
	if key, ok := s.lastRuns.LoadAndDelete(id); ok {
		s.cache.Invalidate(ctx, key.(string))
	}
}

// simulate serves a request from the result cache or computes and caches it
func (s *Server) simulate(ctx context.Context, req dewater.Request, source string) (*dewater.Result, error) {
	key := scenario.Fingerprint(req)
	if key != "" {
		if res, ok := s.cache.Get(ctx, key); ok {
			metrics.RecordCacheHit()
			return res, nil
		}
		metrics.RecordCacheMiss()
	}

	start := time.Now()
	res, err := dewater.Simulate(ctx, req, s.opts)
	elapsed := time.Since(start)

	cells := 0
	if res != nil {
		cells = len(res.Cells)
	}
	metrics.RecordSimulation(source, cells, elapsed, err)
	if err != nil {
		return nil, err
	}

	for _, warn := range res.Warnings {
		metrics.RecordWarning(string(warn.Code))
		if warn.Code == dewater.WarnOverdrawn {
			logger.WarnOverdraw(warn.Cells, "source", source)
		}
	}
	logger.Debug("water table computed",
		"source", source,
		"cells", cells,
		"wells", len(req.Wells.Wells),
		"duration", elapsed.String(),
	)

	if key != "" {
		s.cache.Set(ctx, key, res)
	}
	return res, nil
}

func (s *Server) simulateAndRespond(ctx context.Context, w http.ResponseWriter, req dewater.Request, source string) {
	res, err := s.simulate(ctx, req, source)
	if err != nil {
		if errors.Is(err, dewater.ErrValidation) {
			respondValidation(w, err)
			return
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			respondError(w, http.StatusServiceUnavailable, "evaluation timed out", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "evaluation failed", err)
		return
	}

	fc, err := dewater.NewFeatureCollection(res.Cells)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode water table", err)
		return
	}

	respondJSON(w, http.StatusOK, WaterTableResponse{
		Success:         successMessage,
		LocalWaterTable: fc,
		Summary:         res.Summary,
		Warnings:        res.Warnings,
	})
}

func scenarioID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "scenarioId")
	if _, err := uuid.Parse(id); err != nil {
		// not a UUID, so it cannot name a stored scenario
		respondError(w, http.StatusNotFound, "scenario not found", nil)
		return "", false
	}
	return id, true
}

// respondValidation maps DTO and domain validation failures to a 400 with per-field details
func respondValidation(w http.ResponseWriter, err error) {
	logger.WarnValidation(err)

	var fields []FieldError
	var dtoErrs validator.ValidationErrors
	var domainErrs dewater.ValidationErrors
	var domainErr *dewater.ValidationError

	switch {
	case errors.As(err, &dtoErrs):
		for _, fe := range dtoErrs {
			fields = append(fields, FieldError{Field: fe.Field, Message: fe.Message})
		}
	case errors.As(err, &domainErrs):
		for _, fe := range domainErrs {
			fields = append(fields, FieldError{Field: fe.Field, Message: fe.Message})
		}
	case errors.As(err, &domainErr):
		fields = append(fields, FieldError{Field: domainErr.Field, Message: domainErr.Message})
	}

	logger.WarnHttp4xx()
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "invalid request",
		Details: err.Error(),
		Fields:  fields,
	})
}

func respondStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, scenario.ErrNotFound):
		respondError(w, http.StatusNotFound, "scenario not found", err)
	case errors.Is(err, scenario.ErrExists):
		respondError(w, http.StatusConflict, "scenario already exists", err)
	case errors.Is(err, dewater.ErrValidation):
		respondValidation(w, err)
	default:
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

func queryFloats(q url.Values, name string, errs *dewater.ValidationErrors) []float64 {
	raw, ok := queryParam(q, name, errs)
	if !ok {
		return nil
	}
	var values []float64
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		*errs = append(*errs, &dewater.ValidationError{Field: name, Message: "must be a JSON array of numbers"})
		return nil
	}
	return values
}

func queryFloat(q url.Values, name string, errs *dewater.ValidationErrors) float64 {
	raw, ok := queryParam(q, name, errs)
	if !ok {
		return 0
	}
	v, err := parseJSONNumber(raw)
	if err != nil {
		*errs = append(*errs, &dewater.ValidationError{Field: name, Message: err.Error()})
		return 0
	}
	return v
}

func queryParam(q url.Values, name string, errs *dewater.ValidationErrors) (string, bool) {
	raw := q.Get(name)
	if raw == "" {
		*errs = append(*errs, &dewater.ValidationError{Field: name, Message: "is required"})
		return "", false
	}
	return raw, true
}

// parseJSONNumber accepts 100, 1e-4 or "100"
func parseJSONNumber(raw string) (float64, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return 0, fmt.Errorf("must be a JSON number")
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("must be numeric, got %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("must be a JSON number")
	}
}
