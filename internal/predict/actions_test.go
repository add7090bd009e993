package predict

import (
	"testing"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func predictionBundle() []domain.Prediction {
	expected := testNow.Add(2 * time.Hour)
	return []domain.Prediction{
		NextOrderPrediction{Item: "ribeye", Confidence: 0.85}.Prediction("cust-1", testNow),
		ArrivalPrediction{ExpectedAt: &expected, Confidence: 0.75}.Prediction("cust-1", testNow),
		SpecialRequest{Type: "allergy_accommodation", Detail: "peanuts", Confidence: 0.95}.Prediction("cust-1", testNow),
		ChurnRisk{Risk: 0.5, AverageGapDays: 7, DaysSinceLastVisit: 10}.Prediction("cust-1", testNow),
	}
}

func actionTypes(actions []domain.ProactiveAction) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.Type
	}
	return out
}

func TestGenerateActions_DefaultThresholds(t *testing.T) {
	actions := GenerateActions("cust-1", predictionBundle(), domain.DefaultActionConfig(), testNow)

	assert.Equal(t, []string{"begin_prep", "prepare_special_request", "prepare_table"}, actionTypes(actions))

	prep := actions[0]
	assert.Equal(t, "kitchen", prep.TargetAgentID)
	assert.Equal(t, domain.PriorityHigh, prep.Priority)
	assert.Equal(t, testNow.Add(2*time.Hour-10*time.Minute), prep.TriggerTime)
	assert.Equal(t, "ribeye", prep.Payload["item"])

	table := actions[2]
	assert.Equal(t, "host", table.TargetAgentID)
	assert.Equal(t, testNow.Add(2*time.Hour-15*time.Minute), table.TriggerTime)
}

func TestGenerateActions_OnlyReferencesQualifyingPredictions(t *testing.T) {
	cfg := domain.DefaultActionConfig()
	thresholds := map[domain.PredictionKind]float64{
		domain.PredictionArrival:        cfg.Arrival.Threshold,
		domain.PredictionNextOrder:      cfg.NextOrder.Threshold,
		domain.PredictionChurn:          cfg.Churn.Threshold,
		domain.PredictionSpecialRequest: cfg.SpecialRequest.Threshold,
	}
	for _, a := range GenerateActions("cust-1", predictionBundle(), cfg, testNow) {
		require.Len(t, a.Sources, 1)
		src := a.Sources[0]
		assert.Greater(t, src.Confidence, thresholds[src.Kind], "action %s", a.Type)
	}
}

func TestGenerateActions_WeakArrivalDoesNotAnchor(t *testing.T) {
	cfg := domain.DefaultActionConfig()
	expected := testNow.Add(2 * time.Hour)
	preds := []domain.Prediction{
		NextOrderPrediction{Item: "ribeye", Confidence: 0.85}.Prediction("cust-1", testNow),
		ArrivalPrediction{ExpectedAt: &expected, Confidence: cfg.Arrival.Threshold}.Prediction("cust-1", testNow),
	}

	actions := GenerateActions("cust-1", preds, cfg, testNow)
	require.Equal(t, []string{"begin_prep"}, actionTypes(actions))
	assert.Equal(t, testNow, actions[0].TriggerTime)
	assert.Equal(t, domain.PredictionNextOrder, actions[0].Sources[0].Kind)
}

func TestGenerateActions_LoweringThresholdOnlyAdds(t *testing.T) {
	cfg := domain.DefaultActionConfig()
	before := actionTypes(GenerateActions("cust-1", predictionBundle(), cfg, testNow))

	cfg.Churn.Threshold = 0.4
	after := GenerateActions("cust-1", predictionBundle(), cfg, testNow)
	afterTypes := actionTypes(after)

	for _, typ := range before {
		assert.Contains(t, afterTypes, typ)
	}
	assert.Contains(t, afterTypes, "retention_outreach")
	assert.Len(t, after, len(before)+1)

	for _, a := range after {
		if a.Type == "retention_outreach" {
			assert.Equal(t, testNow, a.TriggerTime, "retention is due immediately")
		}
	}
}

func TestGenerateActions_ThresholdIsStrict(t *testing.T) {
	cfg := domain.DefaultActionConfig()
	preds := []domain.Prediction{NextOrderPrediction{Item: "soup", Confidence: cfg.NextOrder.Threshold}.Prediction("c", testNow)}
	assert.Empty(t, GenerateActions("c", preds, cfg, testNow))

	cfg.NextOrder.Action = ""
	preds[0].Confidence = 0.99
	assert.Empty(t, GenerateActions("c", preds, cfg, testNow), "rules without an action are disabled")
}

func TestCompositeConfidence(t *testing.T) {
	weights := domain.DefaultActionConfig().Weights

	all := CompositeConfidence(predictionBundle(), weights)
	assert.InDelta(t, 0.765, all, 0.01)

	partial := []domain.Prediction{
		{Kind: domain.PredictionArrival, Confidence: 0.75},
		{Kind: domain.PredictionNextOrder, Confidence: 0},
	}
	assert.InDelta(t, 0.75, CompositeConfidence(partial, weights), 1e-9)

	assert.Zero(t, CompositeConfidence(nil, weights))
}
