package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/knowledge"
	"github.com/Harshitk-cp/collective/internal/mesh"
	"github.com/go-chi/chi/v5"
)

// KnowledgeHandler exposes read-only views of the collective knowledge base.
type KnowledgeHandler struct {
	k   *knowledge.Knowledge
	hub *mesh.Hub
}

func NewKnowledgeHandler(k *knowledge.Knowledge, hub *mesh.Hub) *KnowledgeHandler {
	return &KnowledgeHandler{k: k, hub: hub}
}

func (h *KnowledgeHandler) SuccessPatterns(w http.ResponseWriter, r *http.Request) {
	patterns := nonNil(h.k.Patterns.SuccessPatterns())
	writeJSON(w, http.StatusOK, map[string]any{
		"success_patterns": patterns,
		"count":            len(patterns),
	})
}

func (h *KnowledgeHandler) Procedures(w http.ResponseWriter, r *http.Request) {
	procs := nonNil(h.k.Patterns.Procedures())
	writeJSON(w, http.StatusOK, map[string]any{
		"procedures": procs,
		"count":      len(procs),
	})
}

func (h *KnowledgeHandler) Playbooks(w http.ResponseWriter, r *http.Request) {
	books := nonNil(h.k.Patterns.Playbooks())
	writeJSON(w, http.StatusOK, map[string]any{
		"playbooks": books,
		"count":     len(books),
	})
}

func (h *KnowledgeHandler) Playbook(w http.ResponseWriter, r *http.Request) {
	crisisType := chi.URLParam(r, "crisisType")
	p, ok := h.k.Patterns.Playbook(crisisType)
	if !ok {
		writeError(w, http.StatusNotFound, "no playbook for crisis type "+crisisType)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *KnowledgeHandler) Emotional(w http.ResponseWriter, r *http.Request) {
	cells := nonNil(h.k.Patterns.EmotionalCells())
	writeJSON(w, http.StatusOK, map[string]any{
		"responses": cells,
		"count":     len(cells),
	})
}

func (h *KnowledgeHandler) BestResponse(w http.ResponseWriter, r *http.Request) {
	emotion := chi.URLParam(r, "emotion")
	cell, ok := h.k.Patterns.BestResponse(emotion)
	if !ok {
		writeError(w, http.StatusNotFound, "no responses recorded for "+emotion)
		return
	}
	writeJSON(w, http.StatusOK, cell)
}

type teamResponse struct {
	Team  domain.TeamFormation      `json:"team"`
	Edges []domain.RelationshipEdge `json:"edges"`
}

func (h *KnowledgeHandler) Team(w http.ResponseWriter, r *http.Request) {
	task := chi.URLParam(r, "task")
	team, ok := h.k.Graph.OptimalTeam(task)
	if !ok {
		writeError(w, http.StatusNotFound, "no team observed for task "+task)
		return
	}
	writeJSON(w, http.StatusOK, teamResponse{Team: team, Edges: nonNil(h.k.Graph.Edges(task))})
}

func (h *KnowledgeHandler) Customer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profile, ok := h.k.Customers.Profile(id)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrUnknownCustomer.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type situationResponse struct {
	Situation     string                 `json:"situation"`
	Records       []domain.PatternRecord `json:"records"`
	BestPractices []domain.PatternRecord `json:"best_practices"`
}

func (h *KnowledgeHandler) Situation(w http.ResponseWriter, r *http.Request) {
	situation := chi.URLParam(r, "situation")
	records := h.k.Patterns.Records(situation)
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "no records for situation "+situation)
		return
	}
	writeJSON(w, http.StatusOK, situationResponse{
		Situation:     situation,
		Records:       records,
		BestPractices: nonNil(h.k.Patterns.BestPractices(situation)),
	})
}

func (h *KnowledgeHandler) Agents(w http.ResponseWriter, r *http.Request) {
	agents := nonNil(h.hub.Agents())
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": agents,
		"count":  len(agents),
	})
}
