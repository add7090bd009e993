package domain

import "time"

// RelationshipEdge is a directed weighted edge between two agents for a task.
// Edges are written in pairs so the graph stays symmetric per task.
type RelationshipEdge struct {
	From           string    `json:"from"`
	To             string    `json:"to"`
	Task           string    `json:"task"`
	Weight         float64   `json:"weight"`
	Collaborations int       `json:"collaborations"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TeamFormation is a set of agents observed working a task together.
type TeamFormation struct {
	Task             string    `json:"task"`
	Agents           []string  `json:"agents"`
	CumulativeWeight float64   `json:"cumulative_weight"`
	Observations     int       `json:"observations"`
	UpdatedAt        time.Time `json:"updated_at"`
}
