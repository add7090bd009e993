package predict

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCoverCounts(t *testing.T) *knowledge.OperationsLedger {
	t.Helper()
	ledger := knowledge.NewOperationsLedger()
	for i, v := range []float64{45, 50, 55, 50, 48, 52, 47, 53} {
		require.NoError(t, ledger.RecordMetric(context.Background(), domain.MetricSample{
			Name:  "coverCount",
			Value: v,
			At:    testNow.AddDate(0, 0, -(i + 1)),
		}))
	}
	return ledger
}

func decodeSnapshot(t *testing.T, raw string) MetricsSnapshot {
	t.Helper()
	var snap MetricsSnapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &snap))
	return snap
}

func TestMetricsSnapshot_Decode(t *testing.T) {
	snap := decodeSnapshot(t, `{
		"coverCount": 5,
		"avgWaitMinutes": 12.5,
		"note": "ignored",
		"normalRange": [60, 40],
		"normalRanges": {"avgWaitMinutes": {"min": 5, "max": 20}}
	}`)

	assert.Equal(t, map[string]float64{"coverCount": 5, "avgWaitMinutes": 12.5}, snap.Metrics)
	require.NotNil(t, snap.NormalRange)
	assert.Equal(t, Range{Min: 40, Max: 60}, *snap.NormalRange)

	r, ok := snap.rangeFor("avgWaitMinutes")
	require.True(t, ok)
	assert.Equal(t, Range{Min: 5, Max: 20}, r)

	var bad MetricsSnapshot
	assert.Error(t, json.Unmarshal([]byte(`{"x": 1, "normalRange": [1]}`), &bad))
}

func TestDetectAnomalies_CoverCountCollapse(t *testing.T) {
	e := newTestEngine(knowledge.NewSharedMemory(), seedCoverCounts(t))

	report, err := e.DetectAnomalies(context.Background(), decodeSnapshot(t, `{"coverCount": 5, "normalRange": [40, 60]}`))
	require.NoError(t, err)

	assert.True(t, report.Detected)
	require.NotNil(t, report.Score)
	assert.Greater(t, *report.Score, AnomalyThreshold)
	assert.Equal(t, "metric_drop", report.Type)
	assert.Equal(t, "high", report.Severity)
	assert.Equal(t, "coverCount", report.Metric)
	assert.NotEmpty(t, report.Causes)
	assert.NotEmpty(t, report.Recommendations)
}

func TestDetectAnomalies_RangeOnly(t *testing.T) {
	e := newTestEngine(knowledge.NewSharedMemory(), knowledge.NewOperationsLedger())

	report, err := e.DetectAnomalies(context.Background(), decodeSnapshot(t, `{"complaints": 30, "normalRange": [0, 10]}`))
	require.NoError(t, err)
	assert.True(t, report.Detected)
	assert.Equal(t, "metric_spike", report.Type)
	// 1 - e^-2
	assert.InDelta(t, 0.86, *report.Score, 1e-9)
	assert.Equal(t, "medium", report.Severity)
}

func TestDetectAnomalies_NormalValueIsBare(t *testing.T) {
	e := newTestEngine(knowledge.NewSharedMemory(), seedCoverCounts(t))

	report, err := e.DetectAnomalies(context.Background(), decodeSnapshot(t, `{"coverCount": 51, "normalRange": [40, 60]}`))
	require.NoError(t, err)
	assert.False(t, report.Detected)

	out, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"detected": false}`, string(out))
}

func TestDetectAnomalies_EmptySnapshot(t *testing.T) {
	e := newTestEngine(knowledge.NewSharedMemory(), knowledge.NewOperationsLedger())

	_, err := e.DetectAnomalies(context.Background(), decodeSnapshot(t, `{"normalRange": [1, 2]}`))
	assert.True(t, errors.Is(err, ErrEmptySnapshot))
}
