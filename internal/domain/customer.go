package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// SentimentWindow is the number of most recent interactions that drive profile sentiment.
const SentimentWindow = 10

type CustomerInteraction struct {
	ReportID     uuid.UUID      `json:"report_id"`
	AgentID      string         `json:"agent_id"`
	Situation    string         `json:"situation"`
	Items        []string       `json:"items,omitempty"`
	Sentiment    float64        `json:"sentiment"`
	Satisfaction *float64       `json:"satisfaction,omitempty"`
	PartySize    int            `json:"party_size,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// CustomerProfile is the network-wide view of one customer.
type CustomerProfile struct {
	CustomerID    string                `json:"customer_id"`
	Interactions  []CustomerInteraction `json:"interactions"`
	Sentiment     float64               `json:"sentiment"`
	FavoriteItems []string              `json:"favorite_items"`
	Allergies     []string              `json:"allergies"`
	Preferences   []string              `json:"preferences"`
	Dietary       []string              `json:"dietary,omitempty"`
	Birthday      string                `json:"birthday,omitempty"`
	Anniversary   string                `json:"anniversary,omitempty"`
	FirstSeen     time.Time             `json:"first_seen"`
	LastSeen      time.Time             `json:"last_seen"`
}

// ProfileUpdate carries what a single interaction contributes to a profile.
type ProfileUpdate struct {
	Interaction CustomerInteraction
	Allergies   []string
	Preferences []string
	Dietary     []string
	Birthday    string
	Anniversary string
}

// RecencyWeightedSentiment is the weighted mean of the last SentimentWindow
// interactions, weights rising linearly with recency (oldest 1, newest n).
func RecencyWeightedSentiment(interactions []CustomerInteraction) float64 {
	if len(interactions) == 0 {
		return 0
	}
	window := interactions
	if len(window) > SentimentWindow {
		window = window[len(window)-SentimentWindow:]
	}
	var sum, weights float64
	for i, in := range window {
		w := float64(i + 1)
		sum += w * in.Sentiment
		weights += w
	}
	return sum / weights
}

// MergeSet adds values to a sorted, de-duplicated set.
func MergeSet(set []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		if i, found := slices.BinarySearch(set, v); !found {
			set = slices.Insert(set, i, v)
		}
	}
	return set
}

// Clone returns a deep copy safe to hand outside the owning store.
func (p *CustomerProfile) Clone() *CustomerProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Interactions = make([]CustomerInteraction, len(p.Interactions))
	for i, in := range p.Interactions {
		in.Items = slices.Clone(in.Items)
		c.Interactions[i] = in
	}
	c.FavoriteItems = slices.Clone(p.FavoriteItems)
	c.Allergies = slices.Clone(p.Allergies)
	c.Preferences = slices.Clone(p.Preferences)
	c.Dietary = slices.Clone(p.Dietary)
	return &c
}
