package knowledge

import (
	"sort"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
)

// SharedMemory is the network-wide customer profile store.
type SharedMemory struct {
	profiles *shardedMap[*domain.CustomerProfile]
	// MaxInteractions bounds the per-customer history; zero keeps everything.
	MaxInteractions int
}

func NewSharedMemory() *SharedMemory {
	return &SharedMemory{profiles: newShardedMap[*domain.CustomerProfile]()}
}

// RecordInteraction appends an interaction to the customer's profile, creating
// the profile on first contact, and returns a copy of the updated profile.
func (m *SharedMemory) RecordInteraction(customerID string, u domain.ProfileUpdate) *domain.CustomerProfile {
	var out *domain.CustomerProfile
	at := u.Interaction.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
		u.Interaction.OccurredAt = at
	}
	m.profiles.update(customerID, func(p *domain.CustomerProfile, ok bool) *domain.CustomerProfile {
		if !ok {
			p = &domain.CustomerProfile{CustomerID: customerID, FirstSeen: at}
		}
		p.Interactions = append(p.Interactions, u.Interaction)
		if m.MaxInteractions > 0 && len(p.Interactions) > m.MaxInteractions {
			p.Interactions = p.Interactions[len(p.Interactions)-m.MaxInteractions:]
		}
		p.Sentiment = domain.RecencyWeightedSentiment(p.Interactions)
		p.FavoriteItems = domain.MergeSet(p.FavoriteItems, u.Interaction.Items...)
		p.Allergies = domain.MergeSet(p.Allergies, u.Allergies...)
		p.Preferences = domain.MergeSet(p.Preferences, u.Preferences...)
		p.Dietary = domain.MergeSet(p.Dietary, u.Dietary...)
		if u.Birthday != "" {
			p.Birthday = u.Birthday
		}
		if u.Anniversary != "" {
			p.Anniversary = u.Anniversary
		}
		if at.Before(p.FirstSeen) {
			p.FirstSeen = at
		}
		if at.After(p.LastSeen) {
			p.LastSeen = at
		}
		out = p.Clone()
		return p
	})
	return out
}

func (m *SharedMemory) Profile(customerID string) (*domain.CustomerProfile, bool) {
	var out *domain.CustomerProfile
	found := m.profiles.view(customerID, func(p *domain.CustomerProfile) {
		out = p.Clone()
	})
	return out, found
}

// RecentlyActive lists customers seen at or after since.
func (m *SharedMemory) RecentlyActive(since time.Time) []string {
	var out []string
	m.profiles.each(func(id string, p *domain.CustomerProfile) {
		if !p.LastSeen.Before(since) {
			out = append(out, id)
		}
	})
	sort.Strings(out)
	return out
}

func (m *SharedMemory) Count() int {
	return m.profiles.size()
}
