package domain

import (
	"time"

	"github.com/google/uuid"
)

type PredictionKind string

const (
	PredictionNextOrder      PredictionKind = "next_order"
	PredictionArrival        PredictionKind = "arrival_time"
	PredictionSpecialRequest PredictionKind = "special_requests"
	PredictionChurn          PredictionKind = "churn_risk"
	PredictionDemand         PredictionKind = "demand"
	PredictionStaffing       PredictionKind = "staffing"
	PredictionRevenue        PredictionKind = "revenue"
	PredictionAnomaly        PredictionKind = "anomaly"
)

// Prediction is a derived, never-persisted estimate with its supporting reasoning.
type Prediction struct {
	Subject     string         `json:"subject"`
	Kind        PredictionKind `json:"kind"`
	Value       any            `json:"value"`
	Confidence  float64        `json:"confidence"`
	Reasoning   []string       `json:"reasoning"`
	GeneratedAt time.Time      `json:"generated_at"`
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ProactiveAction is a recommendation to an agent derived from one or more predictions.
type ProactiveAction struct {
	ID            uuid.UUID      `json:"id"`
	Type          string         `json:"type"`
	TargetAgentID string         `json:"target_agent_id"`
	Subject       string         `json:"subject"`
	Priority      Priority       `json:"priority"`
	Confidence    float64        `json:"confidence"`
	Payload       map[string]any `json:"payload"`
	TriggerTime   time.Time      `json:"trigger_time"`
	Sources       []Prediction   `json:"sources"`
}

// ActionRule maps a prediction crossing a threshold onto an action for a target agent.
type ActionRule struct {
	Threshold float64  `yaml:"threshold" json:"threshold"`
	Action    string   `yaml:"action" json:"action"`
	Target    string   `yaml:"target" json:"target"`
	Priority  Priority `yaml:"priority" json:"priority"`
	LeadTime  string   `yaml:"lead_time" json:"lead_time"`
}

// ActionConfig holds the rules used to turn predictions into proactive actions.
type ActionConfig struct {
	Arrival        ActionRule                 `yaml:"arrival" json:"arrival"`
	NextOrder      ActionRule                 `yaml:"next_order" json:"next_order"`
	Churn          ActionRule                 `yaml:"churn" json:"churn"`
	SpecialRequest ActionRule                 `yaml:"special_request" json:"special_request"`
	Weights        map[PredictionKind]float64 `yaml:"weights" json:"weights"`
}

func DefaultActionConfig() ActionConfig {
	return ActionConfig{
		Arrival:        ActionRule{Threshold: 0.7, Action: "prepare_table", Target: "host", Priority: PriorityMedium, LeadTime: "15m"},
		NextOrder:      ActionRule{Threshold: 0.8, Action: "begin_prep", Target: "kitchen", Priority: PriorityHigh, LeadTime: "10m"},
		Churn:          ActionRule{Threshold: 0.6, Action: "retention_outreach", Target: "concierge", Priority: PriorityHigh},
		SpecialRequest: ActionRule{Threshold: 0.75, Action: "prepare_special_request", Target: "host", Priority: PriorityMedium, LeadTime: "30m"},
		Weights: map[PredictionKind]float64{
			PredictionNextOrder:      0.35,
			PredictionArrival:        0.30,
			PredictionSpecialRequest: 0.15,
			PredictionChurn:          0.20,
		},
	}
}
