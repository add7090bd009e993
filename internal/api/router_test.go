package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/knowledge"
	"github.com/Harshitk-cp/collective/internal/mesh"
	"github.com/Harshitk-cp/collective/internal/predict"
	"github.com/Harshitk-cp/collective/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingRepository struct{}

var errDown = errors.New("connection refused")

func (failingRepository) SaveReport(context.Context, *domain.InteractionReport) error { return errDown }
func (failingRepository) ListReports(context.Context, time.Time, int) ([]domain.InteractionReport, error) {
	return nil, errDown
}
func (failingRepository) SavePlaybook(context.Context, *domain.CrisisPlaybook) error { return errDown }
func (failingRepository) SaveSuccessPattern(context.Context, *domain.SuccessPattern) error {
	return errDown
}
func (failingRepository) Ping(context.Context) error { return errDown }

type testServer struct {
	handler http.Handler
	coord   *service.Coordinator
	ledger  *knowledge.OperationsLedger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	k := knowledge.New()
	hub := mesh.NewHub(mesh.Config{}, logger)
	t.Cleanup(hub.Close)
	coord := service.NewCoordinator(k, hub, logger)
	ledger := knowledge.NewOperationsLedger()
	engine := predict.NewEngine(k.Customers, ledger, logger)

	return &testServer{
		handler: NewRouter(Deps{
			Coordinator: coord,
			Hub:         hub,
			Engine:      engine,
			Operations:  ledger,
			Logger:      logger,
		}),
		coord:  coord,
		ledger: ledger,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func customerReport(customerID string) map[string]any {
	return map[string]any{
		"kind": "CustomerInteraction",
		"context": map[string]any{
			"situation":  "dinner_service",
			"customerId": customerID,
			"items":      []string{"ribeye"},
		},
		"outcome": map[string]any{"satisfaction": 0.9},
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "build")

	s.coord.SetRepository(failingRepository{}, true)
	rec = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubmitReport(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/reports", customerReport("c-1"), "X-Agent-ID", "host-1")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "accepted", decode[map[string]string](t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/v1/knowledge/customers/c-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[domain.CustomerProfile](t, rec)
	assert.Equal(t, "c-1", profile.CustomerID)
	assert.Len(t, profile.Interactions, 1)

	rec = s.do(t, http.MethodGet, "/v1/knowledge/situations/dinner_service", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitReport_Rejections(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/reports", customerReport("c-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing agent id")

	rec = s.do(t, http.MethodPost, "/v1/reports", "{not json", "X-Agent-ID", "host-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/reports", map[string]any{
		"kind":    "CrisisHandled",
		"context": map[string]any{"crisisType": "kitchen_fire"},
	}, "X-Agent-ID", "host-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "crisis without severity or duration")

	rec = s.do(t, http.MethodPost, "/v1/reports", map[string]any{"kind": "Gossip"}, "X-Agent-ID", "host-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/knowledge/customers/c-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "rejected reports leave no trace")
}

func TestSubmitReport_StoreUnavailable(t *testing.T) {
	s := newTestServer(t)
	s.coord.SetRepository(failingRepository{}, false)

	rec := s.do(t, http.MethodPost, "/v1/reports", customerReport("c-1"), "X-Agent-ID", "host-1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/knowledge/customers/c-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.coord.SetRepository(failingRepository{}, true)
	rec = s.do(t, http.MethodPost, "/v1/reports", customerReport("c-1"), "X-Agent-ID", "host-1")
	assert.Equal(t, http.StatusAccepted, rec.Code, "degraded mode keeps ingesting")
}

func TestKnowledgeInspection_NotFound(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/v1/knowledge/playbooks/kitchen_fire",
		"/v1/knowledge/emotional/frustrated/best",
		"/v1/knowledge/teams/large_party",
		"/v1/knowledge/situations/brunch",
	} {
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, nil).Code, path)
	}

	rec := s.do(t, http.MethodGet, "/v1/knowledge/success-patterns", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success_patterns":[],"count":0}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/mesh/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"agents":[],"count":0}`, rec.Body.String())
}

func TestOperationsLedger(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/operations/days", map[string]any{
		"date":          "2026-05-01",
		"covers":        120,
		"revenue":       4800,
		"hourly_covers": map[string]int{"19": 50},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	days, err := s.ledger.DailyHistory(context.Background(), time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 50, days[0].HourlyCovers[19])

	rec = s.do(t, http.MethodPost, "/v1/operations/days", map[string]any{"date": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/operations/metrics", map[string]any{"name": "coverCount"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "value is required")

	rec = s.do(t, http.MethodPost, "/v1/operations/metrics", map[string]any{"name": "coverCount", "value": 42})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/operations/bookings", map[string]any{"kind": "party", "date": "2026-07-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/operations/bookings", map[string]any{
		"kind":             "event",
		"date":             "2026-07-01",
		"party_size":       40,
		"expected_revenue": 6000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.BookingEvent, decode[domain.Booking](t, rec).Kind)
}

func TestPredictEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/predict/customers/ghost", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	needs := decode[predict.CustomerNeeds](t, rec)
	assert.Empty(t, needs.Predictions)
	assert.Zero(t, needs.Confidence)

	rec = s.do(t, http.MethodPost, "/v1/forecast/demand", map[string]any{"days": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[predict.DemandForecast](t, rec).Daily, 3)

	rec = s.do(t, http.MethodPost, "/v1/forecast/demand", map[string]any{"days": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/forecast/staffing", map[string]any{"constraints": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no staff")

	rec = s.do(t, http.MethodPost, "/v1/forecast/staffing", map[string]any{
		"constraints": map[string]any{
			"days":  2,
			"staff": []map[string]any{{"id": "s1", "skills": []string{"grill"}, "hourly_rate": 20}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[predict.StaffingPlan](t, rec).Schedule, 2)

	rec = s.do(t, http.MethodGet, "/v1/forecast/revenue?horizon_days=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/forecast/revenue?horizon_days=14", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 14, decode[predict.RevenueForecast](t, rec).HorizonDays)

	rec = s.do(t, http.MethodPost, "/v1/anomalies", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/anomalies", map[string]any{"coverCount": 50, "normalRange": []float64{40, 60}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"detected":false}`, rec.Body.String())
}
