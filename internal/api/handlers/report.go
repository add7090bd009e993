package handlers

import (
	"errors"
	"net/http"

	mw "github.com/Harshitk-cp/collective/internal/api/middleware"
	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/mesh"
	"github.com/Harshitk-cp/collective/internal/service"
	"go.uber.org/zap"
)

type ReportHandler struct {
	coord  *service.Coordinator
	logger *zap.Logger
}

func NewReportHandler(coord *service.Coordinator, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{coord: coord, logger: logger}
}

type submitReportResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Submit runs a report through the same ingestion path as the mesh. The
// submitting agent is named by X-Agent-ID or the agent_id query parameter.
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	agentID := mesh.AgentID(r)
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "X-Agent-ID header is required")
		return
	}

	var env domain.Envelope
	if err := decodeBody(r, &env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report := env.Report(agentID)
	if err := h.coord.Ingest(r.Context(), report); err != nil {
		switch {
		case errors.Is(err, domain.ErrMalformedReport):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "learning store unavailable")
		default:
			h.logger.Error("ingest report",
				zap.String("agent_id", agentID),
				zap.String("request_id", mw.RequestIDFromContext(r.Context())),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to ingest report")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, submitReportResponse{ID: report.ID.String(), Status: "accepted"})
}
