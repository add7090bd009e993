package predict

import (
	"sort"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/google/uuid"
)

var priorityRank = map[domain.Priority]int{
	domain.PriorityHigh:   3,
	domain.PriorityMedium: 2,
	domain.PriorityLow:    1,
}

func ruleFor(kind domain.PredictionKind, cfg domain.ActionConfig) (domain.ActionRule, bool) {
	var rule domain.ActionRule
	switch kind {
	case domain.PredictionArrival:
		rule = cfg.Arrival
	case domain.PredictionNextOrder:
		rule = cfg.NextOrder
	case domain.PredictionChurn:
		rule = cfg.Churn
	case domain.PredictionSpecialRequest:
		rule = cfg.SpecialRequest
	default:
		return rule, false
	}
	return rule, rule.Action != ""
}

// GenerateActions maps every prediction whose confidence strictly exceeds
// its rule's threshold onto one action, ordered by priority then confidence.
// Each rule is applied independently of the other predictions' thresholds.
// Trigger times are anchored on the expected arrival only when that arrival
// itself clears the arrival threshold; otherwise they are due now.
func GenerateActions(subject string, preds []domain.Prediction, cfg domain.ActionConfig, now time.Time) []domain.ProactiveAction {
	anchor := now
	for _, p := range preds {
		a, ok := p.Value.(ArrivalPrediction)
		if ok && a.ExpectedAt != nil && p.Confidence > cfg.Arrival.Threshold {
			anchor = *a.ExpectedAt
		}
	}

	actions := []domain.ProactiveAction{}
	for _, p := range preds {
		rule, ok := ruleFor(p.Kind, cfg)
		if !ok || p.Confidence <= rule.Threshold {
			continue
		}
		trigger := now
		if p.Kind != domain.PredictionChurn {
			trigger = anchor
			if lead, err := time.ParseDuration(rule.LeadTime); err == nil {
				trigger = trigger.Add(-lead)
			}
			if trigger.Before(now) {
				trigger = now
			}
		}
		actions = append(actions, domain.ProactiveAction{
			ID:            uuid.New(),
			Type:          rule.Action,
			TargetAgentID: rule.Target,
			Subject:       subject,
			Priority:      rule.Priority,
			Confidence:    p.Confidence,
			Payload:       actionPayload(p),
			TriggerTime:   trigger,
			Sources:       []domain.Prediction{p},
		})
	}

	sort.SliceStable(actions, func(i, j int) bool {
		ri, rj := priorityRank[actions[i].Priority], priorityRank[actions[j].Priority]
		if ri != rj {
			return ri > rj
		}
		return actions[i].Confidence > actions[j].Confidence
	})
	return actions
}

func actionPayload(p domain.Prediction) map[string]any {
	payload := map[string]any{"kind": string(p.Kind)}
	switch v := p.Value.(type) {
	case NextOrderPrediction:
		payload["item"] = v.Item
		if len(v.Alternatives) > 0 {
			payload["alternatives"] = v.Alternatives
		}
	case ArrivalPrediction:
		if v.ExpectedAt != nil {
			payload["expected_at"] = v.ExpectedAt.Format(time.RFC3339)
		}
	case SpecialRequest:
		payload["request"] = v.Type
		payload["detail"] = v.Detail
		if len(v.Items) > 0 {
			payload["items"] = v.Items
		}
	case ChurnRisk:
		payload["risk"] = v.Risk
		payload["days_since_last_visit"] = v.DaysSinceLastVisit
	}
	return payload
}

// CompositeConfidence is the weighted mean over the prediction kinds that
// produced a non-zero confidence, with weights renormalized over those kinds.
// Several predictions of one kind contribute their maximum.
func CompositeConfidence(preds []domain.Prediction, weights map[domain.PredictionKind]float64) float64 {
	best := make(map[domain.PredictionKind]float64)
	for _, p := range preds {
		if p.Confidence <= 0 {
			continue
		}
		if p.Confidence > best[p.Kind] {
			best[p.Kind] = p.Confidence
		}
	}

	var sum, total float64
	for kind, c := range best {
		w, ok := weights[kind]
		if !ok || w <= 0 {
			continue
		}
		sum += w * c
		total += w
	}
	if total == 0 {
		return 0
	}
	return round2(sum / total)
}
