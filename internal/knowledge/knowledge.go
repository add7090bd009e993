// Package knowledge holds the collective knowledge base: situation patterns,
// success patterns, crisis playbooks, the emotional response matrix, shared
// customer memory and the agent relationship graph.
package knowledge

import (
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
)

type Knowledge struct {
	Patterns  *PatternStore
	Customers *SharedMemory
	Graph     *RelationshipGraph
}

func New() *Knowledge {
	return &Knowledge{
		Patterns:  NewPatternStore(),
		Customers: NewSharedMemory(),
		Graph:     NewRelationshipGraph(),
	}
}

// Snapshot is a deep copy of the knowledge base. Each collection is copied
// under its own key lock, so the snapshot is consistent per key but not
// across keys.
type Snapshot struct {
	Situations      map[string][]domain.PatternRecord `json:"situations"`
	SuccessPatterns []domain.SuccessPattern           `json:"success_patterns"`
	Playbooks       []domain.CrisisPlaybook           `json:"playbooks"`
	EmotionalCells  []domain.EmotionalResponseCell    `json:"emotional_cells"`
	Teams           []domain.TeamFormation            `json:"teams"`
	Customers       int                               `json:"customers"`
	TakenAt         time.Time                         `json:"taken_at"`
}

func (k *Knowledge) Snapshot() *Snapshot {
	situations := make(map[string][]domain.PatternRecord)
	for _, s := range k.Patterns.Situations() {
		situations[s] = k.Patterns.Records(s)
	}
	return &Snapshot{
		Situations:      situations,
		SuccessPatterns: k.Patterns.SuccessPatterns(),
		Playbooks:       k.Patterns.Playbooks(),
		EmotionalCells:  k.Patterns.EmotionalCells(),
		Teams:           k.Graph.OptimalTeams(),
		Customers:       k.Customers.Count(),
		TakenAt:         time.Now().UTC(),
	}
}

// Distilled is the compact view sent to an agent when it joins the mesh.
type Distilled struct {
	SuccessPatterns []DistilledPattern     `json:"success_patterns"`
	Playbooks       []DistilledPlaybook    `json:"playbooks"`
	BestResponses   []DistilledEmotion     `json:"best_responses"`
	Teams           []domain.TeamFormation `json:"teams"`
}

type DistilledPattern struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Count      int     `json:"count"`
}

type DistilledPlaybook struct {
	CrisisType    string   `json:"crisis_type"`
	Effectiveness float64  `json:"effectiveness"`
	Actions       []string `json:"actions"`
}

type DistilledEmotion struct {
	Detected             string  `json:"detected"`
	Response             string  `json:"response"`
	AverageEffectiveness float64 `json:"average_effectiveness"`
	Count                int     `json:"count"`
}

func (k *Knowledge) Distill() Distilled {
	d := Distilled{
		SuccessPatterns: []DistilledPattern{},
		Playbooks:       []DistilledPlaybook{},
		BestResponses:   []DistilledEmotion{},
		Teams:           k.Graph.OptimalTeams(),
	}
	for _, p := range k.Patterns.SuccessPatterns() {
		d.SuccessPatterns = append(d.SuccessPatterns, DistilledPattern{Action: p.Action, Confidence: p.Confidence, Count: p.Count})
	}
	for _, p := range k.Patterns.Playbooks() {
		d.Playbooks = append(d.Playbooks, DistilledPlaybook{CrisisType: p.CrisisType, Effectiveness: p.Effectiveness, Actions: p.Actions})
	}
	seen := make(map[string]bool)
	for _, c := range k.Patterns.EmotionalCells() {
		if seen[c.Detected] {
			continue
		}
		seen[c.Detected] = true
		if best, ok := k.Patterns.BestResponse(c.Detected); ok {
			d.BestResponses = append(d.BestResponses, DistilledEmotion{
				Detected:             best.Detected,
				Response:             best.Response,
				AverageEffectiveness: best.AverageEffectiveness,
				Count:                best.Count,
			})
		}
	}
	return d
}
