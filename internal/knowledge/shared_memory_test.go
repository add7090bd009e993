package knowledge

import (
	"testing"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordInteractionBuildsProfile(t *testing.T) {
	m := NewSharedMemory()
	base := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

	m.RecordInteraction("cust-1", domain.ProfileUpdate{
		Interaction: domain.CustomerInteraction{Items: []string{"risotto"}, Sentiment: 0.4, OccurredAt: base},
		Allergies:   []string{"peanuts"},
	})
	p := m.RecordInteraction("cust-1", domain.ProfileUpdate{
		Interaction: domain.CustomerInteraction{Items: []string{"risotto", "tiramisu"}, Sentiment: 1, OccurredAt: base.Add(24 * time.Hour)},
		Allergies:   []string{"peanuts", "shellfish"},
		Birthday:    "1990-03-05",
	})

	assert.Len(t, p.Interactions, 2)
	assert.Equal(t, []string{"risotto", "tiramisu"}, p.FavoriteItems)
	assert.Equal(t, []string{"peanuts", "shellfish"}, p.Allergies)
	assert.Equal(t, "1990-03-05", p.Birthday)
	assert.Equal(t, base, p.FirstSeen)
	assert.Equal(t, base.Add(24*time.Hour), p.LastSeen)
	assert.InDelta(t, (0.4+2*1.0)/3, p.Sentiment, 1e-9)
}

func TestSentimentUsesLastTenInteractions(t *testing.T) {
	m := NewSharedMemory()
	m.RecordInteraction("c", domain.ProfileUpdate{Interaction: domain.CustomerInteraction{Sentiment: -1}})
	for i := 0; i < 10; i++ {
		m.RecordInteraction("c", domain.ProfileUpdate{Interaction: domain.CustomerInteraction{Sentiment: 0.5}})
	}
	p, ok := m.Profile("c")
	require.True(t, ok)
	assert.Len(t, p.Interactions, 11)
	assert.InDelta(t, 0.5, p.Sentiment, 1e-9)
}

func TestMaxInteractionsKeepsNewest(t *testing.T) {
	m := NewSharedMemory()
	m.MaxInteractions = 3
	base := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		m.RecordInteraction("c", domain.ProfileUpdate{Interaction: domain.CustomerInteraction{OccurredAt: base.Add(time.Duration(i) * time.Hour)}})
	}

	p, ok := m.Profile("c")
	require.True(t, ok)
	require.Len(t, p.Interactions, 3)
	assert.Equal(t, base.Add(2*time.Hour), p.Interactions[0].OccurredAt)
	assert.Equal(t, base, p.FirstSeen, "first contact survives trimming")
}

func TestProfileReturnsCopy(t *testing.T) {
	m := NewSharedMemory()
	m.RecordInteraction("c", domain.ProfileUpdate{Interaction: domain.CustomerInteraction{Items: []string{"soup"}}})

	p, _ := m.Profile("c")
	p.FavoriteItems[0] = "mutated"
	p.Interactions = nil

	again, _ := m.Profile("c")
	assert.Equal(t, []string{"soup"}, again.FavoriteItems)
	assert.Len(t, again.Interactions, 1)
}

func TestRecentlyActive(t *testing.T) {
	m := NewSharedMemory()
	now := time.Now().UTC()
	m.RecordInteraction("old", domain.ProfileUpdate{Interaction: domain.CustomerInteraction{OccurredAt: now.Add(-72 * time.Hour)}})
	m.RecordInteraction("new", domain.ProfileUpdate{Interaction: domain.CustomerInteraction{OccurredAt: now}})

	assert.Equal(t, []string{"new"}, m.RecentlyActive(now.Add(-24*time.Hour)))
	assert.Equal(t, 2, m.Count())
}
