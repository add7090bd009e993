package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedReport, reason)
}

func checkDetails(kind ReportKind, v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
		}
		return malformed(fmt.Sprintf("%s: invalid %s", kind, strings.Join(fields, ", ")))
	}
	return malformed(err.Error())
}

// Severity labels accepted in place of a numeric severity.
var severityLabels = map[string]float64{
	"low":      0.3,
	"medium":   0.6,
	"high":     0.9,
	"critical": 1.0,
}

type CustomerDetails struct {
	Situation    string   `validate:"required"`
	CustomerID   string   `validate:"omitempty"`
	Approach     string   `validate:"omitempty"`
	Satisfaction *float64 `validate:"omitempty,gte=0,lte=1"`
	Sentiment    *float64 `validate:"omitempty,gte=-1,lte=1"`
	Items        []string
	Allergies    []string
	Preferences  []string
	Dietary      []string
	Birthday     string
	Anniversary  string
	PartySize    int `validate:"gte=0"`
}

// InteractionSentiment is the sentiment attributed to the interaction: an explicit
// sentiment wins, then satisfaction, then neutral.
func (d *CustomerDetails) InteractionSentiment() float64 {
	if d.Sentiment != nil {
		return *d.Sentiment
	}
	if d.Satisfaction != nil {
		return *d.Satisfaction
	}
	return 0.5
}

type CrisisDetails struct {
	CrisisType     string   `validate:"required"`
	Severity       *float64 `validate:"required,gte=0,lte=1"`
	Duration       *float64 `validate:"required,gte=0"`
	Resolved       bool
	Actions        []string
	AgentsInvolved []string
}

type SuccessDetails struct {
	Action     string `validate:"required"`
	Conditions map[string]any
	Outcome    map[string]any
}

type EmotionalDetails struct {
	Detected      string   `validate:"required"`
	Response      string   `validate:"required"`
	Effectiveness *float64 `validate:"required,gte=0,lte=1"`
	Feedback      string
}

type CollaborationDetails struct {
	Agents        []string `validate:"min=2,dive,required"`
	Task          string   `validate:"required"`
	Success       *bool
	Effectiveness *float64 `validate:"omitempty,gte=0,lte=1"`
	Satisfaction  *float64 `validate:"omitempty,gte=0,lte=1"`
}

func (r *InteractionReport) CustomerDetails() (*CustomerDetails, error) {
	d := &CustomerDetails{
		Situation:   r.lookupString("situation"),
		CustomerID:  r.lookupString("customerId", "customer_id"),
		Approach:    r.lookupString("approach", "action"),
		Items:       r.lookupStrings("items", "order", "ordered"),
		Allergies:   r.lookupStrings("allergies"),
		Preferences: r.lookupStrings("preferences"),
		Dietary:     r.lookupStrings("dietary", "dietaryRestrictions"),
		Birthday:    r.lookupString("birthday"),
		Anniversary: r.lookupString("anniversary"),
	}
	if v, ok := r.lookupOutcome("satisfaction"); ok {
		f, ok := toFloat(v)
		if !ok {
			return nil, malformed("CustomerInteraction: satisfaction is not a number")
		}
		d.Satisfaction = &f
	}
	if v, ok := r.lookup("sentiment"); ok {
		f, ok := toFloat(v)
		if !ok {
			return nil, malformed("CustomerInteraction: sentiment is not a number")
		}
		d.Sentiment = &f
	}
	if v, ok := r.lookup("partySize", "party_size"); ok {
		f, _ := toFloat(v)
		d.PartySize = int(f)
	}
	if err := checkDetails(KindCustomerInteraction, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *InteractionReport) CrisisDetails() (*CrisisDetails, error) {
	d := &CrisisDetails{
		CrisisType:     r.lookupString("crisisType", "crisis_type"),
		Actions:        r.lookupStrings("actions", "actionsTaken"),
		AgentsInvolved: r.lookupStrings("agentsInvolved", "agents"),
	}
	if v, ok := r.lookup("severity"); ok {
		sev, ok := parseSeverity(v)
		if !ok {
			return nil, malformed("CrisisHandled: unrecognized severity")
		}
		d.Severity = &sev
	}
	if v, ok := r.lookupOutcome("duration", "durationMinutes"); ok {
		f, ok := toFloat(v)
		if !ok {
			return nil, malformed("CrisisHandled: duration is not a number")
		}
		d.Duration = &f
	}
	if v, ok := r.lookupOutcome("resolved", "success"); ok {
		d.Resolved = toBool(v)
	}
	if err := checkDetails(KindCrisisHandled, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *InteractionReport) SuccessDetails() (*SuccessDetails, error) {
	d := &SuccessDetails{
		Action:  r.lookupString("action"),
		Outcome: r.Outcome,
	}
	if v, ok := r.lookup("conditions"); ok {
		if m, ok := v.(map[string]any); ok {
			d.Conditions = m
		}
	}
	if d.Conditions == nil {
		d.Conditions = make(map[string]any, len(r.Context))
		for k, v := range r.Context {
			if k == "action" {
				continue
			}
			d.Conditions[k] = v
		}
	}
	if err := checkDetails(KindSuccessPattern, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *InteractionReport) EmotionalDetails() (*EmotionalDetails, error) {
	d := &EmotionalDetails{
		Detected: r.lookupString("detected", "emotion"),
		Response: r.lookupString("response"),
		Feedback: r.lookupString("feedback"),
	}
	if v, ok := r.lookup("effectiveness"); ok {
		f, ok := toFloat(v)
		if !ok {
			return nil, malformed("EmotionalRead: effectiveness is not a number")
		}
		d.Effectiveness = &f
	}
	if err := checkDetails(KindEmotionalRead, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *InteractionReport) CollaborationDetails() (*CollaborationDetails, error) {
	d := &CollaborationDetails{
		Agents: r.lookupStrings("agents", "agentsInvolved"),
		Task:   r.lookupString("task"),
	}
	if v, ok := r.lookupOutcome("success"); ok {
		b := toBool(v)
		d.Success = &b
	}
	if v, ok := r.lookupOutcome("effectiveness"); ok {
		if f, ok := toFloat(v); ok {
			d.Effectiveness = &f
		}
	}
	if v, ok := r.lookupOutcome("satisfaction"); ok {
		if f, ok := toFloat(v); ok {
			d.Satisfaction = &f
		}
	}
	if err := checkDetails(KindCollaborativeSolution, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *InteractionReport) lookupStrings(keys ...string) []string {
	v, ok := r.lookup(keys...)
	if !ok {
		return nil
	}
	return toStrings(v)
}

func parseSeverity(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		if f, ok := severityLabels[strings.ToLower(strings.TrimSpace(s))]; ok {
			return f, true
		}
	}
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		return err == nil && parsed
	}
	if f, ok := toFloat(v); ok {
		return f > 0
	}
	return false
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}

func toStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := toString(item); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	case string:
		if s == "" {
			return nil
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}
