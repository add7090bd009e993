package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/collective/internal/predict"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PredictHandler struct {
	engine *predict.Engine
	logger *zap.Logger
}

func NewPredictHandler(engine *predict.Engine, logger *zap.Logger) *PredictHandler {
	return &PredictHandler{engine: engine, logger: logger}
}

type customerNeedsRequest struct {
	Context predict.PredictionContext `json:"context"`
}

func (h *PredictHandler) CustomerNeeds(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req customerNeedsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	needs, err := h.engine.PredictCustomerNeeds(r.Context(), id, req.Context)
	if err != nil {
		h.fail(w, "predict customer needs", err)
		return
	}
	writeJSON(w, http.StatusOK, needs)
}

type demandRequest struct {
	Days int `json:"days"`
}

func (h *PredictHandler) Demand(w http.ResponseWriter, r *http.Request) {
	var req demandRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Days < 0 {
		writeError(w, http.StatusBadRequest, "days must not be negative")
		return
	}

	forecast, err := h.engine.ForecastDemand(r.Context(), req.Days)
	if err != nil {
		h.fail(w, "forecast demand", err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

type staffingRequest struct {
	Constraints predict.StaffingRequest `json:"constraints"`
}

func (h *PredictHandler) Staffing(w http.ResponseWriter, r *http.Request) {
	var req staffingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plan, err := h.engine.OptimizeStaffing(r.Context(), req.Constraints)
	if err != nil {
		if errors.Is(err, predict.ErrInvalidStaffing) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.fail(w, "optimize staffing", err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *PredictHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	horizon := 0
	if raw := r.URL.Query().Get("horizon_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "horizon_days must be a non-negative integer")
			return
		}
		horizon = n
	}

	forecast, err := h.engine.PredictRevenue(r.Context(), horizon)
	if err != nil {
		h.fail(w, "predict revenue", err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

func (h *PredictHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	var snap predict.MetricsSnapshot
	if err := decodeBody(r, &snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid metrics snapshot")
		return
	}

	report, err := h.engine.DetectAnomalies(r.Context(), snap)
	if err != nil {
		if errors.Is(err, predict.ErrEmptySnapshot) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.fail(w, "detect anomalies", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// fail reports a history read failure. Predictions are derived, so the only
// errors left at this point come from the operations store.
func (h *PredictHandler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, zap.Error(err))
	writeError(w, http.StatusServiceUnavailable, "operations history unavailable")
}
