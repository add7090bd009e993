package domain

import (
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedReport is returned when a report is missing fields required by its kind.
var ErrMalformedReport = errors.New("malformed report")

type ReportKind string

const (
	KindCustomerInteraction   ReportKind = "CustomerInteraction"
	KindCrisisHandled         ReportKind = "CrisisHandled"
	KindSuccessPattern        ReportKind = "SuccessPattern"
	KindEmotionalRead         ReportKind = "EmotionalRead"
	KindCollaborativeSolution ReportKind = "CollaborativeSolution"
)

func ValidReportKind(k string) bool {
	return slices.Contains(AllReportKinds(), ReportKind(k))
}

func AllReportKinds() []ReportKind {
	return []ReportKind{
		KindCustomerInteraction,
		KindCrisisHandled,
		KindSuccessPattern,
		KindEmotionalRead,
		KindCollaborativeSolution,
	}
}

// InteractionReport is one observation submitted by an agent node.
// Reports are immutable once submitted.
type InteractionReport struct {
	ID            uuid.UUID       `json:"id"`
	SourceAgentID string          `json:"source_agent_id"`
	Kind          ReportKind      `json:"kind"`
	Context       map[string]any  `json:"context"`
	Outcome       map[string]any  `json:"outcome"`
	Emotion       map[string]any  `json:"emotion,omitempty"`
	Learning      json.RawMessage `json:"learning,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Validate checks the report envelope and the fields required by its kind.
func (r *InteractionReport) Validate() error {
	if r.SourceAgentID == "" {
		return malformed("source agent id is required")
	}
	if !ValidReportKind(string(r.Kind)) {
		return malformed("unknown kind " + string(r.Kind))
	}

	var err error
	switch r.Kind {
	case KindCustomerInteraction:
		_, err = r.CustomerDetails()
	case KindCrisisHandled:
		_, err = r.CrisisDetails()
	case KindSuccessPattern:
		_, err = r.SuccessDetails()
	case KindEmotionalRead:
		_, err = r.EmotionalDetails()
	case KindCollaborativeSolution:
		_, err = r.CollaborationDetails()
	}
	return err
}

// lookup searches emotion, context and outcome in that order.
func (r *InteractionReport) lookup(keys ...string) (any, bool) {
	for _, m := range []map[string]any{r.Emotion, r.Context, r.Outcome} {
		for _, k := range keys {
			if v, ok := m[k]; ok && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

func (r *InteractionReport) lookupOutcome(keys ...string) (any, bool) {
	for _, m := range []map[string]any{r.Outcome, r.Context, r.Emotion} {
		for _, k := range keys {
			if v, ok := m[k]; ok && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

func (r *InteractionReport) lookupString(keys ...string) string {
	v, ok := r.lookup(keys...)
	if !ok {
		return ""
	}
	s, _ := toString(v)
	return s
}

// Envelope is the ingress message an agent sends over its mesh connection.
type Envelope struct {
	Kind      ReportKind      `json:"kind"`
	Context   map[string]any  `json:"context"`
	Outcome   map[string]any  `json:"outcome"`
	Emotion   map[string]any  `json:"emotion,omitempty"`
	Learning  json.RawMessage `json:"learning,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

// Report converts an envelope into a report attributed to agentID.
func (e Envelope) Report(agentID string) *InteractionReport {
	ts := time.Now().UTC()
	if e.Timestamp != nil && !e.Timestamp.IsZero() {
		ts = e.Timestamp.UTC()
	}
	return &InteractionReport{
		ID:            uuid.New(),
		SourceAgentID: agentID,
		Kind:          e.Kind,
		Context:       e.Context,
		Outcome:       e.Outcome,
		Emotion:       e.Emotion,
		Learning:      e.Learning,
		Timestamp:     ts,
	}
}
