package mesh

import (
	"context"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/metrics"
	"go.uber.org/zap"
)

// ActionSink delivers proactive actions to their target agents over the mesh.
type ActionSink struct {
	hub    *Hub
	logger *zap.Logger
}

func NewActionSink(hub *Hub, logger *zap.Logger) *ActionSink {
	return &ActionSink{hub: hub, logger: logger}
}

func (s *ActionSink) Dispatch(ctx context.Context, actions []domain.ProactiveAction) error {
	undelivered := 0
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.hub.SendTo(a.TargetAgentID, domain.NewBroadcast(domain.MessageProactiveAction, "", a)) {
			metrics.BroadcastsTotal.WithLabelValues(string(domain.MessageProactiveAction)).Inc()
			continue
		}
		undelivered++
	}
	if undelivered > 0 {
		s.logger.Debug("proactive actions had no connected target",
			zap.Int("undelivered", undelivered),
			zap.Int("total", len(actions)))
	}
	return nil
}
