package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(agents ...string) (*Coordinator, *mockBroadcaster) {
	mesh := newMockBroadcaster(agents...)
	return NewCoordinator(knowledge.New(), mesh, testLogger()), mesh
}

func successReport(agent, action string) *domain.InteractionReport {
	return &domain.InteractionReport{
		SourceAgentID: agent,
		Kind:          domain.KindSuccessPattern,
		Context:       map[string]any{"action": action, "daypart": "dinner"},
		Outcome:       map[string]any{"upsell": true},
	}
}

func crisisReport(agent string, severity, duration float64, resolved bool) *domain.InteractionReport {
	return &domain.InteractionReport{
		SourceAgentID: agent,
		Kind:          domain.KindCrisisHandled,
		Context:       map[string]any{"crisisType": "kitchen_fire", "severity": severity, "actions": []any{"evacuate", "extinguish"}},
		Outcome:       map[string]any{"duration": duration, "resolved": resolved},
	}
}

func TestCoordinator_SuccessPatternPromotion(t *testing.T) {
	agents := []string{"a1", "a2", "a3", "a4", "a5"}
	c, mesh := newTestCoordinator(agents...)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Ingest(ctx, successReport(agents[i], "offer_dessert")))
	}
	_, ok := c.Knowledge().Patterns.SuccessPattern("offer_dessert")
	assert.False(t, ok, "three reports must not promote")

	require.NoError(t, c.Ingest(ctx, successReport(agents[3], "offer_dessert")))
	p, ok := c.Knowledge().Patterns.SuccessPattern("offer_dessert")
	require.True(t, ok)
	assert.Equal(t, 4, p.Count)
	assert.InDelta(t, 0.8, p.Confidence, 1e-9)
	require.Len(t, c.Knowledge().Patterns.Procedures(), 1)

	require.NoError(t, c.Ingest(ctx, successReport(agents[4], "offer_dessert")))
	p, _ = c.Knowledge().Patterns.SuccessPattern("offer_dessert")
	assert.Equal(t, 5, p.Count)
	assert.InDelta(t, 1.0, p.Confidence, 1e-9)
	assert.Len(t, c.Knowledge().Patterns.Procedures(), 1, "promotion happens once")

	assert.Len(t, mesh.received("a5", domain.MessageStandardProcedure), 1)
	assert.Len(t, mesh.received("a5", domain.MessageCollectiveLearning), 4)
}

func TestCoordinator_PromotionIgnoresOtherActions(t *testing.T) {
	agents := []string{"a1", "a2", "a3", "a4", "a5"}
	c, mesh := newTestCoordinator(agents...)
	ctx := context.Background()
	report := func(agent, action string) *domain.InteractionReport {
		return &domain.InteractionReport{
			SourceAgentID: agent,
			Kind:          domain.KindSuccessPattern,
			Context:       map[string]any{"action": action, "conditions": map[string]any{"mood": "happy"}},
			Outcome:       map[string]any{"success": true},
		}
	}

	for _, a := range agents[:3] {
		require.NoError(t, c.Ingest(ctx, report(a, "suggest_special")))
	}
	require.NoError(t, c.Ingest(ctx, report("a5", "comp_dessert")))

	patterns := c.Knowledge().Patterns
	_, ok := patterns.SuccessPattern("suggest_special")
	assert.False(t, ok, "a different action does not count toward the cluster")
	_, ok = patterns.SuccessPattern("comp_dessert")
	assert.False(t, ok)
	assert.Empty(t, patterns.Procedures())

	require.NoError(t, c.Ingest(ctx, report("a4", "suggest_special")))

	p, ok := patterns.SuccessPattern("suggest_special")
	require.True(t, ok)
	assert.Equal(t, 4, p.Count)
	assert.InDelta(t, 0.8, p.Confidence, 1e-9)
	assert.Equal(t, map[string]any{"mood": "happy"}, p.Conditions)
	_, ok = patterns.SuccessPattern("comp_dessert")
	assert.False(t, ok)

	procedures := patterns.Procedures()
	require.Len(t, procedures, 1)
	assert.Equal(t, "suggest_special", procedures[0].Action)
	assert.Len(t, mesh.received("a5", domain.MessageStandardProcedure), 1)
	assert.Empty(t, mesh.received("a4", domain.MessageStandardProcedure), "source is skipped")
}

func TestCoordinator_CrisisTraining(t *testing.T) {
	c, mesh := newTestCoordinator("a", "b", "c")
	ctx := context.Background()

	require.NoError(t, c.Ingest(ctx, crisisReport("a", 0.9, 5, true)))

	pb, ok := c.Knowledge().Patterns.Playbook("kitchen_fire")
	require.True(t, ok)
	assert.InDelta(t, 0.5*0.9+0.5/1.5, pb.Effectiveness, 1e-9)
	assert.Equal(t, []string{"evacuate", "extinguish"}, pb.Actions)

	for _, agent := range []string{"b", "c"} {
		assert.Len(t, mesh.received(agent, domain.MessageCrisisTraining), 1, agent)
	}
	assert.Empty(t, mesh.received("a", domain.MessageCrisisTraining), "source does not receive its own training")

	// Less effective but still qualifying: trains the mesh, keeps the playbook.
	require.NoError(t, c.Ingest(ctx, crisisReport("b", 0.9, 8, true)))
	pb2, _ := c.Knowledge().Patterns.Playbook("kitchen_fire")
	assert.Equal(t, pb.Effectiveness, pb2.Effectiveness)
	assert.Len(t, mesh.received("c", domain.MessageCrisisTraining), 2)
}

func TestCoordinator_PluggableCrisisScoring(t *testing.T) {
	c, mesh := newTestCoordinator("a", "b")
	var scored *domain.CrisisDetails
	c.SetScoring(Scoring{Crisis: func(d *domain.CrisisDetails) float64 {
		scored = d
		return 0.99
	}})

	require.NoError(t, c.Ingest(context.Background(), crisisReport("a", 0.1, 60, false)))

	require.NotNil(t, scored)
	assert.Equal(t, "kitchen_fire", scored.CrisisType)
	pb, ok := c.Knowledge().Patterns.Playbook("kitchen_fire")
	require.True(t, ok)
	assert.InDelta(t, 0.99, pb.Effectiveness, 1e-9)
	assert.Len(t, mesh.received("b", domain.MessageCrisisTraining), 1)
	assert.NotNil(t, c.scoring.Team, "unset scorers keep the default")
}

func TestCoordinator_UnresolvedCrisisIsNotTrained(t *testing.T) {
	c, mesh := newTestCoordinator("a", "b")
	require.NoError(t, c.Ingest(context.Background(), crisisReport("a", 1, 1, false)))

	_, ok := c.Knowledge().Patterns.Playbook("kitchen_fire")
	assert.False(t, ok)
	assert.Empty(t, mesh.received("b", domain.MessageCrisisTraining))
	assert.Len(t, mesh.received("b", domain.MessageCollectiveLearning), 1)
}

func TestCoordinator_EmotionalDuplicatesCounted(t *testing.T) {
	c, mesh := newTestCoordinator("a", "b")
	r := func() *domain.InteractionReport {
		return &domain.InteractionReport{
			SourceAgentID: "a",
			Kind:          domain.KindEmotionalRead,
			Context:       map[string]any{"response": "apologize"},
			Emotion:       map[string]any{"detected": "frustrated", "effectiveness": 0.8},
		}
	}
	require.NoError(t, c.Ingest(context.Background(), r()))
	require.NoError(t, c.Ingest(context.Background(), r()))

	cell, ok := c.Knowledge().Patterns.BestResponse("frustrated")
	require.True(t, ok)
	assert.Equal(t, 2, cell.Count)
	assert.InDelta(t, 0.8, cell.AverageEffectiveness, 1e-9)
	assert.Len(t, mesh.received("b", domain.MessageEmotionalLearning), 2)
}

func TestCoordinator_CustomerInteraction(t *testing.T) {
	c, mesh := newTestCoordinator("a", "b")
	ctx := context.Background()

	report := func(agent string, satisfaction float64) *domain.InteractionReport {
		return &domain.InteractionReport{
			SourceAgentID: agent,
			Kind:          domain.KindCustomerInteraction,
			Context:       map[string]any{"situation": "hesitant_diner", "customerId": "cust-9", "items": []any{"risotto"}, "allergies": "peanuts"},
			Outcome:       map[string]any{"satisfaction": satisfaction},
		}
	}

	require.NoError(t, c.Ingest(ctx, report("a", 0.9)))
	assert.Empty(t, mesh.received("a", domain.MessagePatternMatch))

	require.NoError(t, c.Ingest(ctx, report("b", 0.6)))
	matches := mesh.received("a", domain.MessagePatternMatch)
	require.Len(t, matches, 1, "earlier reporter is told about the matching situation")

	assert.Len(t, c.Knowledge().Patterns.BestPractices("hesitant_diner"), 1)

	p, ok := c.Knowledge().Customers.Profile("cust-9")
	require.True(t, ok)
	assert.Len(t, p.Interactions, 2)
	assert.Equal(t, []string{"peanuts"}, p.Allergies)
	assert.Equal(t, []string{"risotto"}, p.FavoriteItems)
}

func TestCoordinator_CollaborationReinforcesGraph(t *testing.T) {
	c, _ := newTestCoordinator("a", "b", "c")
	ctx := context.Background()

	weak := &domain.InteractionReport{
		SourceAgentID: "a",
		Kind:          domain.KindCollaborativeSolution,
		Context:       map[string]any{"agents": []any{"a", "b"}, "task": "large_party"},
		Outcome:       map[string]any{"effectiveness": 0.8},
	}
	require.NoError(t, c.Ingest(ctx, weak))
	assert.Equal(t, 0.0, c.Knowledge().Graph.Weight("a", "b", "large_party"))

	strong := &domain.InteractionReport{
		SourceAgentID: "a",
		Kind:          domain.KindCollaborativeSolution,
		Context:       map[string]any{"agents": []any{"a", "b"}, "task": "large_party"},
		Outcome:       map[string]any{"effectiveness": 0.9, "success": true},
	}
	require.NoError(t, c.Ingest(ctx, strong))
	assert.InDelta(t, 0.95, c.Knowledge().Graph.Weight("a", "b", "large_party"), 1e-9)
	assert.InDelta(t, 0.95, c.Knowledge().Graph.Weight("b", "a", "large_party"), 1e-9)

	team, ok := c.Knowledge().Graph.OptimalTeam("large_party")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, team.Agents)
}

func TestCoordinator_MalformedReportLeavesNoTrace(t *testing.T) {
	c, mesh := newTestCoordinator("a", "b")
	repo := newMockRepository()
	c.SetRepository(repo, false)

	err := c.Ingest(context.Background(), &domain.InteractionReport{
		SourceAgentID: "a",
		Kind:          domain.KindCrisisHandled,
		Context:       map[string]any{"severity": 0.9},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMalformedReport))
	assert.Empty(t, repo.reports)
	assert.Empty(t, mesh.received("b", domain.MessageCollectiveLearning))
	assert.Empty(t, c.Knowledge().Patterns.Playbooks())
}

func TestCoordinator_StoreUnavailable(t *testing.T) {
	t.Run("strict mode rejects without touching memory", func(t *testing.T) {
		c, mesh := newTestCoordinator("a", "b")
		repo := newMockRepository()
		repo.down = true
		c.SetRepository(repo, false)

		err := c.Ingest(context.Background(), crisisReport("a", 0.9, 5, true))
		require.ErrorIs(t, err, domain.ErrStoreUnavailable)
		_, ok := c.Knowledge().Patterns.Playbook("kitchen_fire")
		assert.False(t, ok)
		assert.Empty(t, mesh.received("b", domain.MessageCrisisTraining))
		assert.Error(t, c.Health(context.Background()))
	})

	t.Run("degraded mode keeps learning", func(t *testing.T) {
		c, mesh := newTestCoordinator("a", "b")
		repo := newMockRepository()
		repo.down = true
		c.SetRepository(repo, true)

		require.NoError(t, c.Ingest(context.Background(), crisisReport("a", 0.9, 5, true)))
		_, ok := c.Knowledge().Patterns.Playbook("kitchen_fire")
		assert.True(t, ok)
		assert.Len(t, mesh.received("b", domain.MessageCrisisTraining), 1)
	})
}

func TestCoordinator_PersistsAndWarmStarts(t *testing.T) {
	repo := newMockRepository()
	c, _ := newTestCoordinator("a", "b", "c", "d")
	c.SetRepository(repo, false)
	ctx := context.Background()

	for _, a := range []string{"a", "b", "c", "d"} {
		require.NoError(t, c.Ingest(ctx, successReport(a, "upsell_wine")))
	}
	require.NoError(t, c.Ingest(ctx, crisisReport("a", 0.9, 5, true)))
	assert.Len(t, repo.reports, 5)
	assert.Contains(t, repo.playbooks, "kitchen_fire")
	assert.Contains(t, repo.patterns, "upsell_wine")

	restarted, mesh := newTestCoordinator("z")
	restarted.SetRepository(repo, false)
	n, err := restarted.WarmStart(ctx, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, ok := restarted.Knowledge().Patterns.SuccessPattern("upsell_wine")
	assert.True(t, ok)
	_, ok = restarted.Knowledge().Patterns.Playbook("kitchen_fire")
	assert.True(t, ok)
	assert.Empty(t, mesh.received("z", domain.MessageCollectiveLearning), "replay does not broadcast")
	assert.Len(t, repo.reports, 5, "replay does not persist again")
}

func TestCoordinator_ActiveAgentsFallback(t *testing.T) {
	c, _ := newTestCoordinator()
	assert.Equal(t, 1, c.ActiveAgents())

	ctx := context.Background()
	require.NoError(t, c.Ingest(ctx, successReport("a", "x")))
	require.NoError(t, c.Ingest(ctx, successReport("b", "x")))
	assert.Equal(t, 2, c.ActiveAgents())
}

func TestCoordinator_SyncAgent(t *testing.T) {
	c, mesh := newTestCoordinator("a", "b")
	require.NoError(t, c.Ingest(context.Background(), crisisReport("a", 0.9, 5, true)))

	c.SyncAgent("b")
	syncs := mesh.received("b", domain.MessageSync)
	require.Len(t, syncs, 1)
	d, ok := syncs[0].Learning.(knowledge.Distilled)
	require.True(t, ok)
	require.Len(t, d.Playbooks, 1)
	assert.Equal(t, "kitchen_fire", d.Playbooks[0].CrisisType)
}

func TestCoordinator_ConcurrentIngestion(t *testing.T) {
	c, _ := newTestCoordinator("a", "b")
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = c.Ingest(ctx, &domain.InteractionReport{
					SourceAgentID: fmt.Sprintf("agent-%d", w),
					Kind:          domain.KindEmotionalRead,
					Context:       map[string]any{"detected": "happy", "response": "smile", "effectiveness": 0.5},
				})
			}
		}(w)
	}
	wg.Wait()

	cell, ok := c.Knowledge().Patterns.BestResponse("happy")
	require.True(t, ok)
	assert.Equal(t, 200, cell.Count)
}
