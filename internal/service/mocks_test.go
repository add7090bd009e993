package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// mockBroadcaster records every message queued per agent.
type mockBroadcaster struct {
	mu        sync.Mutex
	connected []string
	inbox     map[string][]domain.Broadcast
}

func newMockBroadcaster(agents ...string) *mockBroadcaster {
	return &mockBroadcaster{connected: agents, inbox: make(map[string][]domain.Broadcast)}
}

func (m *mockBroadcaster) Broadcast(msg domain.Broadcast, except string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.connected {
		if a == except {
			continue
		}
		m.inbox[a] = append(m.inbox[a], msg)
		n++
	}
	return n
}

func (m *mockBroadcaster) SendTo(agentID string, msg domain.Broadcast) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.connected {
		if a == agentID {
			m.inbox[a] = append(m.inbox[a], msg)
			return true
		}
	}
	return false
}

func (m *mockBroadcaster) ConnectedAgents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.connected...)
	sort.Strings(out)
	return out
}

func (m *mockBroadcaster) received(agentID string, t domain.MessageType) []domain.Broadcast {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Broadcast
	for _, msg := range m.inbox[agentID] {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}

var errStoreDown = errors.New("connection refused")

type mockRepository struct {
	mu        sync.Mutex
	reports   map[uuid.UUID]domain.InteractionReport
	playbooks map[string]domain.CrisisPlaybook
	patterns  map[string]domain.SuccessPattern
	down      bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		reports:   make(map[uuid.UUID]domain.InteractionReport),
		playbooks: make(map[string]domain.CrisisPlaybook),
		patterns:  make(map[string]domain.SuccessPattern),
	}
}

func (m *mockRepository) SaveReport(ctx context.Context, r *domain.InteractionReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errStoreDown
	}
	m.reports[r.ID] = *r
	return nil
}

func (m *mockRepository) ListReports(ctx context.Context, since time.Time, limit int) ([]domain.InteractionReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errStoreDown
	}
	var out []domain.InteractionReport
	for _, r := range m.reports {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepository) SavePlaybook(ctx context.Context, p *domain.CrisisPlaybook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errStoreDown
	}
	m.playbooks[p.CrisisType] = *p
	return nil
}

func (m *mockRepository) SaveSuccessPattern(ctx context.Context, p *domain.SuccessPattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errStoreDown
	}
	m.patterns[p.Action] = *p
	return nil
}

func (m *mockRepository) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errStoreDown
	}
	return nil
}
