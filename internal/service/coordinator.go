package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/knowledge"
	"github.com/Harshitk-cp/collective/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Coordinator ingests interaction reports, folds them into the knowledge base
// and propagates the distilled learning to the mesh.
type Coordinator struct {
	knowledge *knowledge.Knowledge
	mesh      domain.Broadcaster
	repo      domain.LearningRepository
	degraded  bool
	scoring   Scoring
	logger    *zap.Logger

	agentsMu    sync.RWMutex
	knownAgents map[string]struct{}
}

func NewCoordinator(k *knowledge.Knowledge, mesh domain.Broadcaster, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		knowledge:   k,
		mesh:        mesh,
		scoring:     DefaultScoring(),
		logger:      logger,
		knownAgents: make(map[string]struct{}),
	}
}

// SetRepository enables persistence. When degraded is true, repository
// failures are logged and ingestion continues in memory only.
func (c *Coordinator) SetRepository(repo domain.LearningRepository, degraded bool) {
	c.repo = repo
	c.degraded = degraded
}

// SetScoring replaces the effectiveness functions. Nil fields keep the current one.
func (c *Coordinator) SetScoring(s Scoring) {
	if s.Crisis != nil {
		c.scoring.Crisis = s.Crisis
	}
	if s.Team != nil {
		c.scoring.Team = s.Team
	}
}

func (c *Coordinator) Knowledge() *knowledge.Knowledge {
	return c.knowledge
}

// ingestion carries one report through the pipeline.
type ingestion struct {
	report    *domain.InteractionReport
	broadcast bool
	persist   bool
}

// Ingest validates and processes a live report. Malformed reports return an
// error wrapping domain.ErrMalformedReport and leave no trace.
func (c *Coordinator) Ingest(ctx context.Context, r *domain.InteractionReport) error {
	return c.process(ctx, &ingestion{report: r, broadcast: true, persist: true})
}

// Replay folds previously persisted reports into the knowledge base without
// broadcasting or persisting them again.
func (c *Coordinator) Replay(ctx context.Context, reports []domain.InteractionReport) (int, error) {
	applied := 0
	for i := range reports {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		err := c.process(ctx, &ingestion{report: &reports[i]})
		if err != nil {
			c.logger.Warn("skipping unreplayable report",
				zap.String("report_id", reports[i].ID.String()),
				zap.Error(err))
			continue
		}
		applied++
	}
	return applied, nil
}

// WarmStart replays persisted reports newer than since. A limit of zero or
// less replays all of them.
func (c *Coordinator) WarmStart(ctx context.Context, since time.Time, limit int) (int, error) {
	if c.repo == nil {
		return 0, nil
	}
	reports, err := c.repo.ListReports(ctx, since, limit)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	n, err := c.Replay(ctx, reports)
	c.logger.Info("warm start complete", zap.Int("reports", len(reports)), zap.Int("applied", n))
	return n, err
}

func (c *Coordinator) process(ctx context.Context, in *ingestion) error {
	r := in.report
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if err := r.Validate(); err != nil {
		metrics.ReportsTotal.WithLabelValues(kindLabel(r.Kind), "malformed").Inc()
		if in.broadcast {
			c.logger.Warn("dropping malformed report",
				zap.String("agent_id", r.SourceAgentID),
				zap.String("kind", string(r.Kind)),
				zap.Error(err))
		}
		return err
	}

	// Persist before touching memory so a non-degraded failure leaves no partial state.
	if in.persist && c.repo != nil {
		if err := c.repo.SaveReport(ctx, r); err != nil {
			if !c.degraded {
				metrics.ReportsTotal.WithLabelValues(string(r.Kind), "unavailable").Inc()
				return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
			}
			c.logger.Warn("persisting report failed, continuing in degraded mode",
				zap.String("report_id", r.ID.String()),
				zap.Error(err))
		}
	}

	c.rememberAgent(r.SourceAgentID)

	var (
		learning map[string]any
		err      error
	)
	switch r.Kind {
	case domain.KindCustomerInteraction:
		learning, err = c.handleCustomerInteraction(in)
	case domain.KindCrisisHandled:
		learning, err = c.handleCrisis(ctx, in)
	case domain.KindSuccessPattern:
		learning, err = c.handleSuccess(ctx, in)
	case domain.KindEmotionalRead:
		learning, err = c.handleEmotional(in)
	case domain.KindCollaborativeSolution:
		learning, err = c.handleCollaboration(in)
	}
	if err != nil {
		metrics.ReportsTotal.WithLabelValues(string(r.Kind), "error").Inc()
		return err
	}
	metrics.ReportsTotal.WithLabelValues(string(r.Kind), "accepted").Inc()

	learning["report_id"] = r.ID.String()
	learning["kind"] = string(r.Kind)
	c.send(in, domain.MessageCollectiveLearning, learning)
	return nil
}

func (c *Coordinator) handleCustomerInteraction(in *ingestion) (map[string]any, error) {
	r := in.report
	d, err := r.CustomerDetails()
	if err != nil {
		return nil, err
	}

	rec, peers := c.knowledge.Patterns.AppendRecord(domain.PatternRecord{
		ReportID:     r.ID,
		Situation:    d.Situation,
		AgentID:      r.SourceAgentID,
		CustomerID:   d.CustomerID,
		Approach:     d.Approach,
		Context:      r.Context,
		Outcome:      r.Outcome,
		Satisfaction: d.Satisfaction,
		RecordedAt:   r.Timestamp,
	})

	if d.CustomerID != "" {
		c.knowledge.Customers.RecordInteraction(d.CustomerID, domain.ProfileUpdate{
			Interaction: domain.CustomerInteraction{
				ReportID:     r.ID,
				AgentID:      r.SourceAgentID,
				Situation:    d.Situation,
				Items:        d.Items,
				Sentiment:    d.InteractionSentiment(),
				Satisfaction: d.Satisfaction,
				PartySize:    d.PartySize,
				Context:      r.Context,
				OccurredAt:   r.Timestamp,
			},
			Allergies:   d.Allergies,
			Preferences: d.Preferences,
			Dietary:     d.Dietary,
			Birthday:    d.Birthday,
			Anniversary: d.Anniversary,
		})
	}

	learning := map[string]any{
		"situation":     d.Situation,
		"approach":      d.Approach,
		"best_practice": rec.BestPractice,
	}
	if d.Satisfaction != nil {
		learning["satisfaction"] = *d.Satisfaction
	}

	if in.broadcast && len(peers) > 0 {
		match := domain.NewBroadcast(domain.MessagePatternMatch, r.SourceAgentID, map[string]any{
			"situation":     d.Situation,
			"record_id":     rec.ID.String(),
			"approach":      d.Approach,
			"best_practice": rec.BestPractice,
		})
		for _, peer := range peers {
			if c.mesh.SendTo(peer, match) {
				metrics.BroadcastsTotal.WithLabelValues(string(domain.MessagePatternMatch)).Inc()
			}
		}
	}
	return learning, nil
}

func (c *Coordinator) handleCrisis(ctx context.Context, in *ingestion) (map[string]any, error) {
	r := in.report
	d, err := r.CrisisDetails()
	if err != nil {
		return nil, err
	}

	effectiveness := c.scoring.Crisis(d)
	learning := map[string]any{
		"crisis_type":   d.CrisisType,
		"severity":      *d.Severity,
		"duration":      *d.Duration,
		"resolved":      d.Resolved,
		"effectiveness": effectiveness,
	}
	if effectiveness <= domain.CrisisPlaybookThreshold {
		return learning, nil
	}

	stored, replaced := c.knowledge.Patterns.OfferPlaybook(domain.CrisisPlaybook{
		CrisisType:     d.CrisisType,
		Effectiveness:  effectiveness,
		Severity:       *d.Severity,
		Duration:       *d.Duration,
		Actions:        d.Actions,
		AgentsInvolved: d.AgentsInvolved,
		SourceAgentID:  r.SourceAgentID,
		ReportID:       r.ID,
		RecordedAt:     r.Timestamp,
	})
	learning["playbook_updated"] = replaced
	if replaced {
		metrics.PromotionsTotal.WithLabelValues("crisis_playbook").Inc()
		if in.persist {
			c.persistArtifact(func() error { return c.repo.SavePlaybook(ctx, &stored) }, "playbook", d.CrisisType)
		}
	}

	c.send(in, domain.MessageCrisisTraining, map[string]any{
		"crisis_type":      d.CrisisType,
		"severity":         *d.Severity,
		"duration":         *d.Duration,
		"actions":          d.Actions,
		"effectiveness":    effectiveness,
		"playbook_updated": replaced,
	})
	return learning, nil
}

func (c *Coordinator) handleSuccess(ctx context.Context, in *ingestion) (map[string]any, error) {
	r := in.report
	d, err := r.SuccessDetails()
	if err != nil {
		return nil, err
	}

	pattern, promoted, exists := c.knowledge.Patterns.AddSuccessVariation(d.Action, domain.SuccessVariation{
		ReportID:   r.ID,
		AgentID:    r.SourceAgentID,
		Conditions: d.Conditions,
		Outcome:    d.Outcome,
		ReportedAt: r.Timestamp,
	}, c.ActiveAgents())

	learning := map[string]any{
		"action":   d.Action,
		"promoted": promoted,
	}
	if !exists {
		learning["observations"] = c.knowledge.Patterns.ClusterSize(d.Action)
		return learning, nil
	}
	learning["confidence"] = pattern.Confidence
	learning["observations"] = pattern.Count

	if promoted {
		metrics.PromotionsTotal.WithLabelValues("success_pattern").Inc()
		sop := standardProcedure(pattern)
		c.knowledge.Patterns.AddProcedure(sop)
		c.logger.Info("success pattern promoted",
			zap.String("action", pattern.Action),
			zap.Int("count", pattern.Count),
			zap.Float64("confidence", pattern.Confidence))
		c.send(in, domain.MessageStandardProcedure, sop)
	}
	if in.persist {
		c.persistArtifact(func() error { return c.repo.SaveSuccessPattern(ctx, &pattern) }, "success_pattern", d.Action)
	}
	return learning, nil
}

func standardProcedure(p domain.SuccessPattern) domain.StandardProcedure {
	agents := make(map[string]struct{})
	for _, v := range p.Variations {
		agents[v.AgentID] = struct{}{}
	}
	return domain.StandardProcedure{
		ID:         uuid.New(),
		Action:     p.Action,
		Conditions: maps.Clone(p.Conditions),
		Confidence: p.Confidence,
		Evidence:   p.Count,
		Payload: map[string]any{
			"action":             p.Action,
			"when":               p.Conditions,
			"contributor_agents": len(agents),
		},
		CreatedAt: time.Now().UTC(),
	}
}

func (c *Coordinator) handleEmotional(in *ingestion) (map[string]any, error) {
	d, err := in.report.EmotionalDetails()
	if err != nil {
		return nil, err
	}
	cell := c.knowledge.Patterns.RecordEmotion(d.Detected, d.Response, *d.Effectiveness)
	learning := map[string]any{
		"detected":              cell.Detected,
		"response":              cell.Response,
		"effectiveness":         *d.Effectiveness,
		"average_effectiveness": cell.AverageEffectiveness,
		"count":                 cell.Count,
	}
	c.send(in, domain.MessageEmotionalLearning, learning)
	return maps.Clone(learning), nil
}

func (c *Coordinator) handleCollaboration(in *ingestion) (map[string]any, error) {
	d, err := in.report.CollaborationDetails()
	if err != nil {
		return nil, err
	}
	score := c.scoring.Team(d)
	learning := map[string]any{
		"task":          d.Task,
		"agents":        d.Agents,
		"effectiveness": score,
		"reinforced":    false,
	}
	if score <= domain.TeamReinforcementThreshold {
		return learning, nil
	}

	before, hadTeam := c.knowledge.Graph.OptimalTeam(d.Task)
	optimal := c.knowledge.Graph.ReinforceTeam(d.Task, d.Agents, score)
	learning["reinforced"] = true
	learning["optimal_team"] = optimal.Agents
	if !hadTeam || teamKey(before.Agents) != teamKey(optimal.Agents) {
		metrics.PromotionsTotal.WithLabelValues("team").Inc()
	}
	return learning, nil
}

func kindLabel(k domain.ReportKind) string {
	if domain.ValidReportKind(string(k)) {
		return string(k)
	}
	return "unknown"
}

func teamKey(agents []string) string {
	return fmt.Sprint(agents)
}

// send queues an egress message for every agent but the report's source.
func (c *Coordinator) send(in *ingestion, t domain.MessageType, learning any) {
	if !in.broadcast {
		return
	}
	n := c.mesh.Broadcast(domain.NewBroadcast(t, in.report.SourceAgentID, learning), in.report.SourceAgentID)
	if n > 0 {
		metrics.BroadcastsTotal.WithLabelValues(string(t)).Add(float64(n))
	}
}

func (c *Coordinator) persistArtifact(save func() error, kind, key string) {
	if c.repo == nil {
		return
	}
	if err := save(); err != nil {
		c.logger.Warn("persisting artifact failed",
			zap.String("artifact", kind),
			zap.String("key", key),
			zap.Error(err))
	}
}

func (c *Coordinator) rememberAgent(agentID string) {
	c.agentsMu.RLock()
	_, ok := c.knownAgents[agentID]
	c.agentsMu.RUnlock()
	if ok {
		return
	}
	c.agentsMu.Lock()
	c.knownAgents[agentID] = struct{}{}
	c.agentsMu.Unlock()
}

// ActiveAgents is the number of agents currently connected, falling back to
// the number of distinct agents that have ever reported, and never less than one.
func (c *Coordinator) ActiveAgents() int {
	if n := len(c.mesh.ConnectedAgents()); n > 0 {
		return n
	}
	c.agentsMu.RLock()
	n := len(c.knownAgents)
	c.agentsMu.RUnlock()
	if n < 1 {
		return 1
	}
	return n
}

// SyncAgent sends the distilled knowledge base to a newly connected agent.
func (c *Coordinator) SyncAgent(agentID string) {
	msg := domain.NewBroadcast(domain.MessageSync, "", c.knowledge.Distill())
	if c.mesh.SendTo(agentID, msg) {
		metrics.BroadcastsTotal.WithLabelValues(string(domain.MessageSync)).Inc()
	}
}

// Health reports whether persistence is reachable. Without a repository the
// coordinator is always healthy.
func (c *Coordinator) Health(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}
	if err := c.repo.Ping(ctx); err != nil {
		return errors.Join(domain.ErrStoreUnavailable, err)
	}
	return nil
}
