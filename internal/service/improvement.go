package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/knowledge"
	"github.com/Harshitk-cp/collective/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultImprovementInterval = 1 * time.Hour
	defaultSituationRetention  = 500

	// StaleWindow is how many recent records of a situation are used to judge
	// whether its best practices still hold.
	StaleWindow = 20
	// StaleSatisfaction is the recent mean satisfaction below which best-practice
	// flags of older records are withdrawn. A recent mean at or above
	// domain.BestPracticeSatisfaction reinstates them.
	StaleSatisfaction = 0.5
)

type ImprovementResult struct {
	PatternsRescored  int `json:"patterns_rescored"`
	RecordsTrimmed    int `json:"records_trimmed"`
	FlagsWithdrawn    int `json:"flags_withdrawn"`
	FlagsReinstated   int `json:"flags_reinstated"`
	SituationsVisited int `json:"situations_visited"`
}

// ImprovementService periodically re-scores and prunes the knowledge base.
// Each cycle reads a snapshot, computes deltas off-lock, then applies them
// conditionally so concurrent ingestion is never lost.
type ImprovementService struct {
	coordinator *Coordinator
	logger      *zap.Logger

	retention int
	interval  time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewImprovementService(c *Coordinator, logger *zap.Logger) *ImprovementService {
	return &ImprovementService{
		coordinator: c,
		logger:      logger,
		retention:   defaultSituationRetention,
		interval:    defaultImprovementInterval,
		stopCh:      make(chan struct{}),
	}
}

func (s *ImprovementService) SetInterval(d time.Duration) {
	s.interval = d
}

// SetRetention bounds the number of records kept per situation.
func (s *ImprovementService) SetRetention(n int) {
	s.retention = n
}

func (s *ImprovementService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("self-improvement worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				s.RunCycle(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("self-improvement worker stopped")
				return
			}
		}
	}()
}

func (s *ImprovementService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

type rescoreDelta struct {
	action string
	count  int
}

type trimDelta struct {
	situation string
	ids       []uuid.UUID
}

type flagDelta struct {
	situation string
	id        uuid.UUID
}

type improvementPlan struct {
	rescores  []rescoreDelta
	trims     []trimDelta
	withdraw  []flagDelta
	reinstate []flagDelta
}

func (s *ImprovementService) RunCycle(ctx context.Context) *ImprovementResult {
	result := &ImprovementResult{}
	k := s.coordinator.Knowledge()
	snap := k.Snapshot()

	if ctx.Err() != nil {
		metrics.ImprovementCyclesTotal.WithLabelValues("cancelled").Inc()
		return result
	}

	plan := planImprovements(snap, s.retention)
	result.SituationsVisited = len(snap.Situations)

	active := s.coordinator.ActiveAgents()
	for _, d := range plan.rescores {
		if _, applied := k.Patterns.RescoreSuccess(d.action, d.count, active); applied {
			result.PatternsRescored++
		}
	}
	for _, d := range plan.withdraw {
		if k.Patterns.SetBestPractice(d.situation, d.id, false) {
			result.FlagsWithdrawn++
		}
	}
	for _, d := range plan.reinstate {
		if k.Patterns.SetBestPractice(d.situation, d.id, true) {
			result.FlagsReinstated++
		}
	}
	for _, d := range plan.trims {
		result.RecordsTrimmed += k.Patterns.TrimSituation(d.situation, d.ids)
	}

	metrics.ImprovementCyclesTotal.WithLabelValues("completed").Inc()
	if result.PatternsRescored > 0 || result.RecordsTrimmed > 0 || result.FlagsWithdrawn > 0 || result.FlagsReinstated > 0 {
		s.logger.Info("self-improvement cycle complete",
			zap.Int("patterns_rescored", result.PatternsRescored),
			zap.Int("records_trimmed", result.RecordsTrimmed),
			zap.Int("flags_withdrawn", result.FlagsWithdrawn),
			zap.Int("flags_reinstated", result.FlagsReinstated))
	}
	return result
}

// planImprovements is pure: it only reads the snapshot.
func planImprovements(snap *knowledge.Snapshot, retention int) improvementPlan {
	var plan improvementPlan

	for _, p := range snap.SuccessPatterns {
		plan.rescores = append(plan.rescores, rescoreDelta{action: p.Action, count: p.Count})
	}

	situations := make([]string, 0, len(snap.Situations))
	for name := range snap.Situations {
		situations = append(situations, name)
	}
	sort.Strings(situations)

	for _, name := range situations {
		records := snap.Situations[name]

		if retention > 0 && len(records) > retention {
			excess := records[:len(records)-retention]
			ids := make([]uuid.UUID, len(excess))
			for i, r := range excess {
				ids[i] = r.ID
			}
			plan.trims = append(plan.trims, trimDelta{situation: name, ids: ids})
		}

		if len(records) < StaleWindow {
			continue
		}
		recent := records[len(records)-StaleWindow:]
		mean, ok := meanSatisfaction(recent)
		if !ok {
			continue
		}
		older := records[:len(records)-StaleWindow]
		switch {
		case mean < StaleSatisfaction:
			for _, r := range older {
				if r.BestPractice {
					plan.withdraw = append(plan.withdraw, flagDelta{situation: name, id: r.ID})
				}
			}
		case mean >= domain.BestPracticeSatisfaction:
			for _, r := range older {
				if !r.BestPractice && r.Satisfaction != nil && *r.Satisfaction > domain.BestPracticeSatisfaction {
					plan.reinstate = append(plan.reinstate, flagDelta{situation: name, id: r.ID})
				}
			}
		}
	}
	return plan
}

func meanSatisfaction(records []domain.PatternRecord) (float64, bool) {
	var sum float64
	n := 0
	for _, r := range records {
		if r.Satisfaction != nil {
			sum += *r.Satisfaction
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
