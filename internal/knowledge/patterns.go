package knowledge

import (
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/google/uuid"
)

type situationBucket struct {
	records []domain.PatternRecord
	agents  map[string]struct{}
}

type successCluster struct {
	variations []domain.SuccessVariation
	pattern    *domain.SuccessPattern
}

// PatternStore holds situation-indexed records, success clusters, crisis
// playbooks and the emotional response matrix. Every collection is keyed and
// locked per key.
type PatternStore struct {
	situations *shardedMap[*situationBucket]
	success    *shardedMap[*successCluster]
	playbooks  *shardedMap[*domain.CrisisPlaybook]
	emotions   *shardedMap[*domain.EmotionalResponseCell]

	procMu     sync.RWMutex
	procedures []domain.StandardProcedure

	now func() time.Time
}

func NewPatternStore() *PatternStore {
	return &PatternStore{
		situations: newShardedMap[*situationBucket](),
		success:    newShardedMap[*successCluster](),
		playbooks:  newShardedMap[*domain.CrisisPlaybook](),
		emotions:   newShardedMap[*domain.EmotionalResponseCell](),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// AppendRecord stores rec under its situation and returns the other agents
// that have previously filed records for the same situation.
func (s *PatternStore) AppendRecord(rec domain.PatternRecord) (domain.PatternRecord, []string) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.now()
	}
	rec.BestPractice = rec.Satisfaction != nil && *rec.Satisfaction > domain.BestPracticeSatisfaction

	var peers []string
	s.situations.update(rec.Situation, func(b *situationBucket, ok bool) *situationBucket {
		if !ok {
			b = &situationBucket{agents: make(map[string]struct{})}
		}
		for agent := range b.agents {
			if agent != rec.AgentID {
				peers = append(peers, agent)
			}
		}
		b.records = append(b.records, rec)
		b.agents[rec.AgentID] = struct{}{}
		return b
	})
	sort.Strings(peers)
	return rec, peers
}

func (s *PatternStore) Records(situation string) []domain.PatternRecord {
	var out []domain.PatternRecord
	s.situations.view(situation, func(b *situationBucket) {
		out = slices.Clone(b.records)
	})
	return out
}

// BestPractices returns the records of a situation currently flagged as best practice.
func (s *PatternStore) BestPractices(situation string) []domain.PatternRecord {
	var out []domain.PatternRecord
	s.situations.view(situation, func(b *situationBucket) {
		for _, r := range b.records {
			if r.BestPractice {
				out = append(out, r)
			}
		}
	})
	return out
}

func (s *PatternStore) Situations() []string {
	var out []string
	s.situations.each(func(key string, _ *situationBucket) {
		out = append(out, key)
	})
	sort.Strings(out)
	return out
}

// TrimSituation removes the records with the given IDs. Records appended after
// the IDs were chosen are untouched.
func (s *PatternStore) TrimSituation(situation string, ids []uuid.UUID) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	removed := 0
	s.situations.modify(situation, func(b *situationBucket) {
		kept := b.records[:0]
		for _, r := range b.records {
			if _, gone := drop[r.ID]; gone {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		b.records = kept
	})
	return removed
}

// SetBestPractice updates the best-practice flag of one record.
func (s *PatternStore) SetBestPractice(situation string, id uuid.UUID, flag bool) bool {
	changed := false
	s.situations.modify(situation, func(b *situationBucket) {
		for i := range b.records {
			if b.records[i].ID == id && b.records[i].BestPractice != flag {
				b.records[i].BestPractice = flag
				changed = true
			}
		}
	})
	return changed
}

// SuccessConfidence is the share of active agents that have reported a pattern.
func SuccessConfidence(count, activeAgents int) float64 {
	if activeAgents < 1 {
		activeAgents = 1
	}
	return domain.Clamp01(float64(count) / float64(activeAgents))
}

// AddSuccessVariation adds a report to the action's cluster. The pattern is
// promoted exactly once, when the cluster first reaches the promotion count.
func (s *PatternStore) AddSuccessVariation(action string, v domain.SuccessVariation, activeAgents int) (pattern domain.SuccessPattern, promoted, exists bool) {
	now := s.now()
	s.success.update(action, func(c *successCluster, ok bool) *successCluster {
		if !ok {
			c = &successCluster{}
		}
		c.variations = append(c.variations, v)
		n := len(c.variations)
		if c.pattern == nil && n >= domain.SuccessPromotionCount {
			c.pattern = &domain.SuccessPattern{
				Action:     action,
				Conditions: maps.Clone(c.variations[0].Conditions),
				PromotedAt: now,
			}
			promoted = true
		}
		if c.pattern != nil {
			c.pattern.Count = n
			c.pattern.Confidence = SuccessConfidence(n, activeAgents)
			c.pattern.UpdatedAt = now
			pattern = c.clonePattern()
			exists = true
		}
		return c
	})
	return pattern, promoted, exists
}

// RescoreSuccess recomputes a pattern's confidence if its cluster still holds
// exactly count reports.
func (s *PatternStore) RescoreSuccess(action string, count, activeAgents int) (domain.SuccessPattern, bool) {
	var out domain.SuccessPattern
	applied := false
	s.success.modify(action, func(c *successCluster) {
		if c.pattern == nil || len(c.variations) != count {
			return
		}
		conf := SuccessConfidence(count, activeAgents)
		if conf != c.pattern.Confidence {
			c.pattern.Confidence = conf
			c.pattern.UpdatedAt = s.now()
			applied = true
		}
		out = c.clonePattern()
	})
	return out, applied
}

func (s *PatternStore) SuccessPattern(action string) (domain.SuccessPattern, bool) {
	var out domain.SuccessPattern
	found := false
	s.success.view(action, func(c *successCluster) {
		if c.pattern != nil {
			out = c.clonePattern()
			found = true
		}
	})
	return out, found
}

// SuccessPatterns returns every promoted pattern ordered by action.
func (s *PatternStore) SuccessPatterns() []domain.SuccessPattern {
	var out []domain.SuccessPattern
	s.success.each(func(_ string, c *successCluster) {
		if c.pattern != nil {
			out = append(out, c.clonePattern())
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

// ClusterSize is the number of reports seen for an action, promoted or not.
func (s *PatternStore) ClusterSize(action string) int {
	n := 0
	s.success.view(action, func(c *successCluster) { n = len(c.variations) })
	return n
}

func (c *successCluster) clonePattern() domain.SuccessPattern {
	p := *c.pattern
	p.Conditions = maps.Clone(c.pattern.Conditions)
	p.Variations = slices.Clone(c.variations)
	return p
}

// OfferPlaybook stores p if it beats the current playbook for its crisis type.
// Ties keep the existing playbook.
func (s *PatternStore) OfferPlaybook(p domain.CrisisPlaybook) (domain.CrisisPlaybook, bool) {
	var stored domain.CrisisPlaybook
	replaced := false
	s.playbooks.update(p.CrisisType, func(cur *domain.CrisisPlaybook, ok bool) *domain.CrisisPlaybook {
		if !ok || p.Effectiveness > cur.Effectiveness {
			cp := p
			cp.Actions = slices.Clone(p.Actions)
			cp.AgentsInvolved = slices.Clone(p.AgentsInvolved)
			cur = &cp
			replaced = true
		}
		stored = clonePlaybook(cur)
		return cur
	})
	return stored, replaced
}

func (s *PatternStore) Playbook(crisisType string) (domain.CrisisPlaybook, bool) {
	var out domain.CrisisPlaybook
	found := s.playbooks.view(crisisType, func(p *domain.CrisisPlaybook) {
		out = clonePlaybook(p)
	})
	return out, found
}

func (s *PatternStore) Playbooks() []domain.CrisisPlaybook {
	var out []domain.CrisisPlaybook
	s.playbooks.each(func(_ string, p *domain.CrisisPlaybook) {
		out = append(out, clonePlaybook(p))
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CrisisType < out[j].CrisisType })
	return out
}

func clonePlaybook(p *domain.CrisisPlaybook) domain.CrisisPlaybook {
	out := *p
	out.Actions = slices.Clone(p.Actions)
	out.AgentsInvolved = slices.Clone(p.AgentsInvolved)
	return out
}

func emotionKey(detected, response string) string {
	return detected + "\x00" + response
}

// RecordEmotion adds one effectiveness observation to the (detected, response) cell.
func (s *PatternStore) RecordEmotion(detected, response string, effectiveness float64) domain.EmotionalResponseCell {
	var out domain.EmotionalResponseCell
	now := s.now()
	s.emotions.update(emotionKey(detected, response), func(c *domain.EmotionalResponseCell, ok bool) *domain.EmotionalResponseCell {
		if !ok {
			c = &domain.EmotionalResponseCell{Detected: detected, Response: response}
		}
		c.Samples = append(c.Samples, effectiveness)
		c.Count = len(c.Samples)
		var sum float64
		for _, v := range c.Samples {
			sum += v
		}
		c.AverageEffectiveness = sum / float64(c.Count)
		c.UpdatedAt = now
		out = *c
		out.Samples = slices.Clone(c.Samples)
		return c
	})
	return out
}

func (s *PatternStore) EmotionalCells() []domain.EmotionalResponseCell {
	var out []domain.EmotionalResponseCell
	s.emotions.each(func(_ string, c *domain.EmotionalResponseCell) {
		cp := *c
		cp.Samples = slices.Clone(c.Samples)
		out = append(out, cp)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Detected != out[j].Detected {
			return out[i].Detected < out[j].Detected
		}
		return out[i].Response < out[j].Response
	})
	return out
}

// BestResponse returns the most effective known response to an emotion.
// Ties go to the response with more observations.
func (s *PatternStore) BestResponse(detected string) (domain.EmotionalResponseCell, bool) {
	var best domain.EmotionalResponseCell
	found := false
	for _, c := range s.EmotionalCells() {
		if c.Detected != detected {
			continue
		}
		if !found || c.AverageEffectiveness > best.AverageEffectiveness ||
			(c.AverageEffectiveness == best.AverageEffectiveness && c.Count > best.Count) {
			best = c
			found = true
		}
	}
	return best, found
}

func (s *PatternStore) AddProcedure(p domain.StandardProcedure) {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	s.procedures = append(s.procedures, p)
}

func (s *PatternStore) Procedures() []domain.StandardProcedure {
	s.procMu.RLock()
	defer s.procMu.RUnlock()
	return slices.Clone(s.procedures)
}
