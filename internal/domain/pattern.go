package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// BestPracticeSatisfaction is the satisfaction above which a record is a best-practice candidate.
	BestPracticeSatisfaction = 0.8
	// SuccessPromotionCount is the number of similar success reports that promotes a pattern.
	SuccessPromotionCount = 4
	// CrisisPlaybookThreshold is the effectiveness a crisis response must exceed to be trained on.
	CrisisPlaybookThreshold = 0.7
	// TeamReinforcementThreshold is the team effectiveness required to reinforce relationships.
	TeamReinforcementThreshold = 0.85
)

// PatternRecord is a single customer-interaction observation stored under its situation.
type PatternRecord struct {
	ID           uuid.UUID      `json:"id"`
	ReportID     uuid.UUID      `json:"report_id"`
	Situation    string         `json:"situation"`
	AgentID      string         `json:"agent_id"`
	CustomerID   string         `json:"customer_id,omitempty"`
	Approach     string         `json:"approach,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	Outcome      map[string]any `json:"outcome,omitempty"`
	Satisfaction *float64       `json:"satisfaction,omitempty"`
	BestPractice bool           `json:"best_practice"`
	RecordedAt   time.Time      `json:"recorded_at"`
}

// SuccessVariation is one contributing report of a success cluster.
type SuccessVariation struct {
	ReportID   uuid.UUID      `json:"report_id"`
	AgentID    string         `json:"agent_id"`
	Conditions map[string]any `json:"conditions,omitempty"`
	Outcome    map[string]any `json:"outcome,omitempty"`
	ReportedAt time.Time      `json:"reported_at"`
}

// SuccessPattern is an action confirmed by enough similar success reports.
type SuccessPattern struct {
	Action     string             `json:"action"`
	Conditions map[string]any     `json:"conditions,omitempty"`
	Confidence float64            `json:"confidence"`
	Count      int                `json:"count"`
	Variations []SuccessVariation `json:"variations"`
	PromotedAt time.Time          `json:"promoted_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// StandardProcedure is produced when a success pattern is promoted. Its payload is
// opaque to the network and handed to the agent runtime as-is.
type StandardProcedure struct {
	ID         uuid.UUID      `json:"id"`
	Action     string         `json:"action"`
	Conditions map[string]any `json:"conditions,omitempty"`
	Confidence float64        `json:"confidence"`
	Evidence   int            `json:"evidence"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
}

// CrisisPlaybook is the most effective recorded response to a crisis type.
type CrisisPlaybook struct {
	CrisisType     string    `json:"crisis_type"`
	Effectiveness  float64   `json:"effectiveness"`
	Severity       float64   `json:"severity"`
	Duration       float64   `json:"duration"`
	Actions        []string  `json:"actions"`
	AgentsInvolved []string  `json:"agents_involved,omitempty"`
	SourceAgentID  string    `json:"source_agent_id"`
	ReportID       uuid.UUID `json:"report_id"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// EmotionalResponseCell aggregates every observation of one response to one emotion.
type EmotionalResponseCell struct {
	Detected             string    `json:"detected"`
	Response             string    `json:"response"`
	Samples              []float64 `json:"samples"`
	Count                int       `json:"count"`
	AverageEffectiveness float64   `json:"average_effectiveness"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
