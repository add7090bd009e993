package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"gopkg.in/yaml.v3"
)

// ruleOverride is one rule as written in the file; unset keys are nil.
type ruleOverride struct {
	Threshold *float64         `yaml:"threshold"`
	Action    *string          `yaml:"action"`
	Target    *string          `yaml:"target"`
	Priority  *domain.Priority `yaml:"priority"`
	LeadTime  *string          `yaml:"lead_time"`
}

func (o *ruleOverride) apply(r domain.ActionRule) domain.ActionRule {
	if o.Threshold != nil {
		r.Threshold = *o.Threshold
	}
	if o.Action != nil {
		r.Action = *o.Action
	}
	if o.Target != nil {
		r.Target = *o.Target
	}
	if o.Priority != nil {
		r.Priority = *o.Priority
	}
	if o.LeadTime != nil {
		r.LeadTime = *o.LeadTime
	}
	return r
}

// LoadActionConfig reads proactive-action rules from a YAML file. Each key
// set in the file overrides the matching default; rules, keys and weights
// missing from the file keep their defaults. An empty path returns the
// defaults.
func LoadActionConfig(path string) (domain.ActionConfig, error) {
	cfg := domain.DefaultActionConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read action config: %w", err)
	}

	var file struct {
		Arrival        *ruleOverride                     `yaml:"arrival"`
		NextOrder      *ruleOverride                     `yaml:"next_order"`
		Churn          *ruleOverride                     `yaml:"churn"`
		SpecialRequest *ruleOverride                     `yaml:"special_request"`
		Weights        map[domain.PredictionKind]float64 `yaml:"weights"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse action config: %w", err)
	}

	for _, r := range []struct {
		name string
		src  *ruleOverride
		dst  *domain.ActionRule
	}{
		{"arrival", file.Arrival, &cfg.Arrival},
		{"next_order", file.NextOrder, &cfg.NextOrder},
		{"churn", file.Churn, &cfg.Churn},
		{"special_request", file.SpecialRequest, &cfg.SpecialRequest},
	} {
		if r.src == nil {
			continue
		}
		merged := r.src.apply(*r.dst)
		if err := validateRule(r.name, merged); err != nil {
			return cfg, err
		}
		*r.dst = merged
	}
	for kind, w := range file.Weights {
		if w < 0 {
			return cfg, fmt.Errorf("weight for %s must not be negative", kind)
		}
		cfg.Weights[kind] = w
	}
	return cfg, nil
}

func validateRule(name string, r domain.ActionRule) error {
	if r.Threshold < 0 || r.Threshold > 1 {
		return fmt.Errorf("%s: threshold %.2f outside [0,1]", name, r.Threshold)
	}
	switch r.Priority {
	case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh:
	default:
		return fmt.Errorf("%s: unknown priority %q", name, r.Priority)
	}
	if r.LeadTime != "" {
		if _, err := time.ParseDuration(r.LeadTime); err != nil {
			return fmt.Errorf("%s: lead_time: %w", name, err)
		}
	}
	return nil
}
