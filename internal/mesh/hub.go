// Package mesh keeps one persistent websocket connection per agent node and
// fans learning out to them without blocking ingestion.
package mesh

import (
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/metrics"
	"go.uber.org/zap"
)

const (
	defaultSendQueueSize = 64
	defaultWriteTimeout  = 10 * time.Second
	defaultPingInterval  = 30 * time.Second
)

type Config struct {
	SendQueueSize int
	WriteTimeout  time.Duration
	PingInterval  time.Duration
}

func (c Config) withDefaults() Config {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = defaultSendQueueSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	return c
}

// AgentInfo describes a connected agent.
type AgentInfo struct {
	AgentID     string    `json:"agent_id"`
	ConnectedAt time.Time `json:"connected_at"`
	RemoteAddr  string    `json:"remote_addr"`
	Queued      int       `json:"queued"`
	Dropped     uint64    `json:"dropped"`
}

// Hub is the registry of live agent connections.
type Hub struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.RWMutex
	conns map[string]*Conn

	onConnect func(agentID string)
}

func NewHub(cfg Config, logger *zap.Logger) *Hub {
	return &Hub{
		cfg:    cfg.withDefaults(),
		logger: logger,
		conns:  make(map[string]*Conn),
	}
}

// OnConnect registers a callback run after an agent's connection is live.
func (h *Hub) OnConnect(fn func(agentID string)) {
	h.onConnect = fn
}

// register makes c the agent's live connection, closing any previous one.
func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	old := h.conns[c.agentID]
	h.conns[c.agentID] = c
	n := len(h.conns)
	h.mu.Unlock()

	metrics.ConnectedAgents.Set(float64(n))
	if old != nil {
		h.logger.Info("agent reconnected, replacing connection", zap.String("agent_id", c.agentID))
		old.close()
	}
	h.logger.Info("agent connected", zap.String("agent_id", c.agentID), zap.Int("connected", n))
	if h.onConnect != nil {
		h.onConnect(c.agentID)
	}
}

// unregister removes c only if it is still the agent's live connection.
func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	removed := false
	if cur, ok := h.conns[c.agentID]; ok && cur == c {
		delete(h.conns, c.agentID)
		removed = true
	}
	n := len(h.conns)
	h.mu.Unlock()

	if removed {
		metrics.ConnectedAgents.Set(float64(n))
		h.logger.Info("agent disconnected", zap.String("agent_id", c.agentID), zap.Int("connected", n))
	}
}

func (h *Hub) Broadcast(msg domain.Broadcast, except string) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for id, c := range h.conns {
		if id != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(msg)
	}
	return len(targets)
}

func (h *Hub) SendTo(agentID string, msg domain.Broadcast) bool {
	h.mu.RLock()
	c, ok := h.conns[agentID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	c.enqueue(msg)
	return true
}

func (h *Hub) ConnectedAgents() []string {
	h.mu.RLock()
	out := make([]string, 0, len(h.conns))
	for id := range h.conns {
		out = append(out, id)
	}
	h.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (h *Hub) Agents() []AgentInfo {
	h.mu.RLock()
	out := make([]AgentInfo, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c.info())
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// Close disconnects every agent.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*Conn)
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	metrics.ConnectedAgents.Set(0)
}
