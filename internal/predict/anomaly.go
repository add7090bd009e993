package predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"go.uber.org/zap"
)

const (
	AnomalyThreshold  = 0.7
	anomalyWindowDays = 30
	minAnomalySamples = 3
)

var ErrEmptySnapshot = errors.New("metrics snapshot has no numeric values")

// Range is an inclusive normal band. It decodes from [min, max] or {"min":..,"max":..}.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r *Range) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("range needs two bounds, got %d", len(pair))
		}
		r.Min, r.Max = pair[0], pair[1]
	} else {
		type plain Range
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*r = Range(p)
	}
	if r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	return nil
}

// MetricsSnapshot is a set of named metric values observed at one instant.
// On the wire every numeric top-level field is a metric; normalRange applies
// to all metrics and normalRanges overrides it per metric.
type MetricsSnapshot struct {
	Metrics      map[string]float64
	NormalRange  *Range
	NormalRanges map[string]Range
	At           time.Time
}

func (s *MetricsSnapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Metrics = make(map[string]float64)
	for key, val := range raw {
		switch key {
		case "normalRange", "normal_range":
			s.NormalRange = &Range{}
			if err := json.Unmarshal(val, s.NormalRange); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		case "normalRanges", "normal_ranges":
			if err := json.Unmarshal(val, &s.NormalRanges); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		case "at", "timestamp":
			if err := json.Unmarshal(val, &s.At); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		default:
			var f float64
			if json.Unmarshal(val, &f) == nil {
				s.Metrics[key] = f
			}
		}
	}
	return nil
}

func (s MetricsSnapshot) rangeFor(name string) (Range, bool) {
	if r, ok := s.NormalRanges[name]; ok {
		return r, true
	}
	if s.NormalRange != nil {
		return *s.NormalRange, true
	}
	return Range{}, false
}

type AnomalyReport struct {
	Detected        bool     `json:"detected"`
	Score           *float64 `json:"score,omitempty"`
	Metric          string   `json:"metric,omitempty"`
	Value           *float64 `json:"value,omitempty"`
	Type            string   `json:"type,omitempty"`
	Severity        string   `json:"severity,omitempty"`
	Causes          []string `json:"causes,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

type metricScore struct {
	name  string
	value float64
	score float64
	drop  bool
}

// DetectAnomalies scores each metric against its last 30 days of samples and
// its configured normal range, and reports the worst one if it crosses
// AnomalyThreshold.
func (e *Engine) DetectAnomalies(ctx context.Context, snap MetricsSnapshot) (*AnomalyReport, error) {
	defer observe(string(domain.PredictionAnomaly))()

	if len(snap.Metrics) == 0 {
		return nil, ErrEmptySnapshot
	}
	at := snap.At
	if at.IsZero() {
		at = e.now()
	}

	names := make([]string, 0, len(snap.Metrics))
	for name := range snap.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var worst *metricScore
	for _, name := range names {
		samples, err := e.ops.MetricHistory(ctx, name, at.AddDate(0, 0, -anomalyWindowDays))
		if err != nil {
			return nil, fmt.Errorf("load history for %s: %w", name, err)
		}
		history := make([]float64, len(samples))
		for i, s := range samples {
			history[i] = s.Value
		}
		r, hasRange := snap.rangeFor(name)
		ms := scoreMetric(name, snap.Metrics[name], history, r, hasRange)
		if worst == nil || ms.score > worst.score {
			worst = &ms
		}
	}

	if worst.score <= AnomalyThreshold {
		return &AnomalyReport{Detected: false}, nil
	}
	score := round2(worst.score)
	value := worst.value
	report := &AnomalyReport{
		Detected: true,
		Score:    &score,
		Metric:   worst.name,
		Value:    &value,
		Type:     "metric_spike",
		Severity: severityOf(worst.score),
	}
	if worst.drop {
		report.Type = "metric_drop"
	}
	report.Causes, report.Recommendations = explainAnomaly(worst.name, worst.drop)
	e.logger.Info("anomaly detected",
		zap.String("metric", worst.name),
		zap.Float64("score", score),
		zap.String("severity", report.Severity),
	)
	return report, nil
}

func scoreMetric(name string, value float64, history []float64, r Range, hasRange bool) metricScore {
	ms := metricScore{name: name, value: value}
	var votes float64

	if len(history) >= minAnomalySamples {
		m, sd := mean(history), stddev(history)
		var zScore float64
		switch {
		case sd > 0:
			zScore = 1 - math.Exp(-math.Abs(value-m)/sd/2)
		case value != m:
			zScore = 1
		}
		ms.score = zScore
		if value < m {
			votes -= zScore
		} else {
			votes += zScore
		}
	}

	if hasRange && (value < r.Min || value > r.Max) {
		width := r.Max - r.Min
		if width <= 0 {
			width = math.Max(math.Abs(r.Max), 1)
		}
		d := r.Min - value
		below := true
		if value > r.Max {
			d, below = value-r.Max, false
		}
		rangeScore := 1 - math.Exp(-d/width)
		ms.score = math.Max(ms.score, rangeScore)
		if below {
			votes -= rangeScore
		} else {
			votes += rangeScore
		}
	}
	ms.drop = votes < 0
	return ms
}

func severityOf(score float64) string {
	switch {
	case score >= 0.9:
		return "high"
	case score >= 0.8:
		return "medium"
	default:
		return "low"
	}
}

type anomalyHint struct {
	keywords        []string
	dropCauses      []string
	spikeCauses     []string
	recommendations []string
}

var anomalyHints = []anomalyHint{
	{
		keywords:        []string{"cover", "guest", "traffic", "visit"},
		dropCauses:      []string{"reservation system outage", "local event or weather keeping guests away", "negative reviews"},
		spikeCauses:     []string{"unplanned large party or nearby event", "promotion performing above plan"},
		recommendations: []string{"check reservation and ordering channels", "adjust staffing for the current floor"},
	},
	{
		keywords:        []string{"revenue", "sales", "ticket", "spend"},
		dropCauses:      []string{"payment processing issues", "menu pricing or availability change", "fewer upsells"},
		spikeCauses:     []string{"large event or group booking", "pricing error"},
		recommendations: []string{"reconcile point-of-sale totals", "review upsell performance by agent"},
	},
	{
		keywords:        []string{"wait", "time", "latency", "delay"},
		dropCauses:      []string{"low demand leaving staff idle"},
		spikeCauses:     []string{"kitchen backlog", "understaffed shift", "equipment failure"},
		recommendations: []string{"rebalance staff between floor and kitchen", "notify waiting guests proactively"},
	},
	{
		keywords:        []string{"satisfaction", "rating", "sentiment", "nps"},
		dropCauses:      []string{"service quality issue", "food quality issue", "long waits"},
		spikeCauses:     []string{"successful new approach worth sharing across agents"},
		recommendations: []string{"review recent interaction reports", "share the best performing approach with all agents"},
	},
	{
		keywords:        []string{"complaint", "return", "refund", "waste"},
		dropCauses:      []string{"reporting gap"},
		spikeCauses:     []string{"quality control failure", "supplier issue", "training gap"},
		recommendations: []string{"audit the affected items", "run crisis training for the team"},
	},
}

func explainAnomaly(metric string, drop bool) ([]string, []string) {
	name := strings.ToLower(metric)
	for _, h := range anomalyHints {
		for _, kw := range h.keywords {
			if strings.Contains(name, kw) {
				if drop {
					return h.dropCauses, h.recommendations
				}
				return h.spikeCauses, h.recommendations
			}
		}
	}
	direction := "spike"
	if drop {
		direction = "drop"
	}
	return []string{fmt.Sprintf("unexplained %s in %s", direction, metric)},
		[]string{fmt.Sprintf("investigate recent changes affecting %s", metric)}
}
