package knowledge

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
)

type edgeKey struct {
	from, to, task string
}

// RelationshipGraph records how well agents work together per task.
type RelationshipGraph struct {
	mu      sync.RWMutex
	edges   map[edgeKey]*domain.RelationshipEdge
	teams   map[string]map[string]*domain.TeamFormation
	optimal map[string]string
}

func NewRelationshipGraph() *RelationshipGraph {
	return &RelationshipGraph{
		edges:   make(map[edgeKey]*domain.RelationshipEdge),
		teams:   make(map[string]map[string]*domain.TeamFormation),
		optimal: make(map[string]string),
	}
}

func teamKey(agents []string) string {
	return strings.Join(agents, "\x00")
}

// ReinforceTeam strengthens every pairwise edge among agents for task by
// increment, in both directions, and re-evaluates the task's optimal team.
// It returns the optimal team after the update.
func (g *RelationshipGraph) ReinforceTeam(task string, agents []string, increment float64) domain.TeamFormation {
	members := slices.Clone(agents)
	sort.Strings(members)
	members = slices.Compact(members)
	now := time.Now().UTC()

	g.mu.Lock()
	defer g.mu.Unlock()

	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			g.bump(members[i], members[j], task, increment, now)
			g.bump(members[j], members[i], task, increment, now)
		}
	}

	byTeam, ok := g.teams[task]
	if !ok {
		byTeam = make(map[string]*domain.TeamFormation)
		g.teams[task] = byTeam
	}
	key := teamKey(members)
	tf, ok := byTeam[key]
	if !ok {
		tf = &domain.TeamFormation{Task: task, Agents: members}
		byTeam[key] = tf
	}
	tf.Observations++
	tf.UpdatedAt = now

	// Edge weights moved, so every known team for the task is re-weighed.
	bestKey := ""
	var best float64
	for k, t := range byTeam {
		t.CumulativeWeight = g.teamWeight(task, t.Agents)
		if bestKey == "" || t.CumulativeWeight > best || (t.CumulativeWeight == best && k < bestKey) {
			bestKey, best = k, t.CumulativeWeight
		}
	}
	g.optimal[task] = bestKey
	return cloneTeam(byTeam[bestKey])
}

func (g *RelationshipGraph) bump(from, to, task string, increment float64, now time.Time) {
	k := edgeKey{from, to, task}
	e, ok := g.edges[k]
	if !ok {
		e = &domain.RelationshipEdge{From: from, To: to, Task: task}
		g.edges[k] = e
	}
	e.Weight += increment
	e.Collaborations++
	e.UpdatedAt = now
}

// teamWeight sums the directed edge weights among members. Callers hold mu.
func (g *RelationshipGraph) teamWeight(task string, members []string) float64 {
	var total float64
	for _, a := range members {
		for _, b := range members {
			if a == b {
				continue
			}
			if e, ok := g.edges[edgeKey{a, b, task}]; ok {
				total += e.Weight
			}
		}
	}
	return total
}

func (g *RelationshipGraph) Weight(from, to, task string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if e, ok := g.edges[edgeKey{from, to, task}]; ok {
		return e.Weight
	}
	return 0
}

func (g *RelationshipGraph) OptimalTeam(task string) (domain.TeamFormation, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	key, ok := g.optimal[task]
	if !ok {
		return domain.TeamFormation{}, false
	}
	return cloneTeam(g.teams[task][key]), true
}

// OptimalTeams returns the best team per task, ordered by task.
func (g *RelationshipGraph) OptimalTeams() []domain.TeamFormation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.TeamFormation, 0, len(g.optimal))
	for task, key := range g.optimal {
		out = append(out, cloneTeam(g.teams[task][key]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out
}

// Edges returns every edge for task, or every edge when task is empty.
func (g *RelationshipGraph) Edges(task string) []domain.RelationshipEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []domain.RelationshipEdge
	for k, e := range g.edges {
		if task == "" || k.task == task {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Task != out[j].Task {
			return out[i].Task < out[j].Task
		}
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

func cloneTeam(t *domain.TeamFormation) domain.TeamFormation {
	out := *t
	out.Agents = slices.Clone(t.Agents)
	return out
}
