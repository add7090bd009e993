package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OperationsHandler feeds the operations ledger read by demand, revenue and
// anomaly predictions.
type OperationsHandler struct {
	ops    domain.OperationsRecorder
	logger *zap.Logger
}

func NewOperationsHandler(ops domain.OperationsRecorder, logger *zap.Logger) *OperationsHandler {
	return &OperationsHandler{ops: ops, logger: logger}
}

type recordDayRequest struct {
	Date         string         `json:"date"`
	Covers       int            `json:"covers"`
	Revenue      float64        `json:"revenue"`
	HourlyCovers map[int]int    `json:"hourly_covers"`
	ItemCounts   map[string]int `json:"item_counts"`
}

func (h *OperationsHandler) RecordDay(w http.ResponseWriter, r *http.Request) {
	var req recordDayRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD or RFC 3339")
		return
	}
	if req.Covers < 0 || req.Revenue < 0 {
		writeError(w, http.StatusBadRequest, "covers and revenue must not be negative")
		return
	}
	for hour, n := range req.HourlyCovers {
		if hour < 0 || hour > 23 || n < 0 {
			writeError(w, http.StatusBadRequest, "hourly_covers keys must be hours 0-23 with non-negative counts")
			return
		}
	}

	day := domain.DailyOperations{
		Date:         domain.Day(date),
		Covers:       req.Covers,
		Revenue:      req.Revenue,
		HourlyCovers: req.HourlyCovers,
		ItemCounts:   req.ItemCounts,
	}
	if err := h.ops.RecordDay(r.Context(), day); err != nil {
		h.logger.Error("record day", zap.Time("date", day.Date), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "operations store unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, day)
}

type recordMetricRequest struct {
	Name  string     `json:"name"`
	Value *float64   `json:"value"`
	At    *time.Time `json:"at"`
}

func (h *OperationsHandler) RecordMetric(w http.ResponseWriter, r *http.Request) {
	var req recordMetricRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	sample := domain.MetricSample{Name: req.Name, Value: *req.Value, At: time.Now().UTC()}
	if req.At != nil && !req.At.IsZero() {
		sample.At = req.At.UTC()
	}
	if err := h.ops.RecordMetric(r.Context(), sample); err != nil {
		h.logger.Error("record metric", zap.String("name", sample.Name), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "operations store unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, sample)
}

type addBookingRequest struct {
	Kind            string  `json:"kind"`
	Date            string  `json:"date"`
	PartySize       int     `json:"party_size"`
	ExpectedRevenue float64 `json:"expected_revenue"`
	Note            string  `json:"note"`
}

func (h *OperationsHandler) AddBooking(w http.ResponseWriter, r *http.Request) {
	var req addBookingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind := domain.BookingKind(strings.ToLower(req.Kind))
	switch kind {
	case "":
		kind = domain.BookingReservation
	case domain.BookingReservation, domain.BookingEvent:
	default:
		writeError(w, http.StatusBadRequest, "kind must be reservation or event")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD or RFC 3339")
		return
	}
	if req.PartySize < 0 || req.ExpectedRevenue < 0 {
		writeError(w, http.StatusBadRequest, "party_size and expected_revenue must not be negative")
		return
	}

	b := &domain.Booking{
		ID:              uuid.New(),
		Kind:            kind,
		Date:            date.UTC(),
		PartySize:       req.PartySize,
		ExpectedRevenue: req.ExpectedRevenue,
		Note:            req.Note,
	}
	if err := h.ops.AddBooking(r.Context(), b); err != nil {
		h.logger.Error("add booking", zap.String("booking_id", b.ID.String()), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "operations store unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
