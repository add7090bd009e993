// Package predict turns shared customer memory and operations history into
// forward-looking predictions and proactive actions. Everything here only
// reads the stores it is given.
package predict

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MinCustomerHistory is the number of interactions below which customer
// predictions carry zero confidence.
const MinCustomerHistory = 3

type Engine struct {
	history domain.InteractionHistory
	ops     domain.OperationsHistory
	logger  *zap.Logger

	mu      sync.RWMutex
	actions domain.ActionConfig

	now func() time.Time
}

func NewEngine(history domain.InteractionHistory, ops domain.OperationsHistory, logger *zap.Logger) *Engine {
	return &Engine{
		history: history,
		ops:     ops,
		logger:  logger,
		actions: domain.DefaultActionConfig(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) SetActionConfig(cfg domain.ActionConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions = cfg
}

func (e *Engine) ActionConfig() domain.ActionConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.actions
}

// SetClock overrides the engine's notion of now.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// PredictionContext carries the situation a customer prediction is made for.
type PredictionContext struct {
	At        time.Time `json:"at"`
	PartySize int       `json:"party_size,omitempty"`
	Weather   string    `json:"weather,omitempty"`
	Occasion  string    `json:"occasion,omitempty"`
}

type CustomerNeeds struct {
	CustomerID  string                   `json:"customer_id"`
	Predictions []domain.Prediction      `json:"predictions"`
	Actions     []domain.ProactiveAction `json:"actions"`
	Confidence  float64                  `json:"confidence"`
}

// PredictCustomerNeeds runs every customer prediction and derives proactive
// actions from them. Unknown customers yield an empty zero-confidence result.
func (e *Engine) PredictCustomerNeeds(ctx context.Context, customerID string, pctx PredictionContext) (*CustomerNeeds, error) {
	defer observe("customer_needs")()

	if pctx.At.IsZero() {
		pctx.At = e.now()
	}
	result := &CustomerNeeds{
		CustomerID:  customerID,
		Predictions: []domain.Prediction{},
		Actions:     []domain.ProactiveAction{},
	}
	profile, ok := e.history.Profile(customerID)
	if !ok {
		return result, nil
	}

	var (
		nextOrder domain.Prediction
		arrival   domain.Prediction
		churn     domain.Prediction
		special   []domain.Prediction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		nextOrder = PredictNextOrder(profile, pctx).Prediction(customerID, pctx.At)
		return gctx.Err()
	})
	g.Go(func() error {
		arrival = PredictArrival(profile, pctx).Prediction(customerID, pctx.At)
		return gctx.Err()
	})
	g.Go(func() error {
		for _, r := range PredictSpecialRequests(profile, pctx) {
			special = append(special, r.Prediction(customerID, pctx.At))
		}
		return gctx.Err()
	})
	g.Go(func() error {
		churn = PredictChurn(profile, pctx.At).Prediction(customerID, pctx.At)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Predictions = append(result.Predictions, nextOrder, arrival)
	result.Predictions = append(result.Predictions, special...)
	result.Predictions = append(result.Predictions, churn)

	cfg := e.ActionConfig()
	result.Actions = GenerateActions(customerID, result.Predictions, cfg, pctx.At)
	result.Confidence = CompositeConfidence(result.Predictions, cfg.Weights)
	for _, a := range result.Actions {
		metrics.ProactiveActionsTotal.WithLabelValues(a.Type).Inc()
	}
	return result, nil
}

func observe(kind string) func() {
	start := time.Now()
	return func() {
		metrics.PredictionSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}
