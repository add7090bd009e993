package predict

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultProactiveInterval = 15 * time.Minute
	defaultActiveWindow      = 24 * time.Hour
)

// ProactiveService periodically predicts needs for recently active customers
// and hands the resulting actions to a sink.
type ProactiveService struct {
	engine  *Engine
	history domain.InteractionHistory
	sink    domain.ActionSink
	logger  *zap.Logger

	window   time.Duration
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewProactiveService(engine *Engine, history domain.InteractionHistory, sink domain.ActionSink, logger *zap.Logger) *ProactiveService {
	return &ProactiveService{
		engine:   engine,
		history:  history,
		sink:     sink,
		logger:   logger,
		window:   defaultActiveWindow,
		interval: defaultProactiveInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *ProactiveService) SetInterval(d time.Duration) {
	s.interval = d
}

// SetActiveWindow sets how recently a customer must have been seen to be considered.
func (s *ProactiveService) SetActiveWindow(d time.Duration) {
	s.window = d
}

func (s *ProactiveService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("proactive worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				if _, err := s.RunOnce(ctx); err != nil {
					s.logger.Error("proactive run failed", zap.Error(err))
				}
				cancel()
			case <-s.stopCh:
				s.logger.Info("proactive worker stopped")
				return
			}
		}
	}()
}

func (s *ProactiveService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunOnce predicts for every recently active customer and dispatches the
// generated actions. It returns the number of actions dispatched.
func (s *ProactiveService) RunOnce(ctx context.Context) (int, error) {
	now := s.engine.now()
	customers := s.history.RecentlyActive(now.Add(-s.window))

	var actions []domain.ProactiveAction
	for _, id := range customers {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		needs, err := s.engine.PredictCustomerNeeds(ctx, id, PredictionContext{At: now})
		if err != nil {
			s.logger.Warn("customer prediction failed", zap.String("customer_id", id), zap.Error(err))
			continue
		}
		actions = append(actions, needs.Actions...)
	}
	if len(actions) == 0 {
		return 0, nil
	}
	if err := s.sink.Dispatch(ctx, actions); err != nil {
		return 0, err
	}
	s.logger.Info("proactive actions dispatched",
		zap.Int("customers", len(customers)),
		zap.Int("actions", len(actions)),
	)
	return len(actions), nil
}
