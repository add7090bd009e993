package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/metrics"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxMessageSize = 1 << 20

// IngestFunc processes one report received from an agent.
type IngestFunc func(ctx context.Context, r *domain.InteractionReport) error

// Conn is one agent's live connection. Egress goes through a bounded queue
// drained by a single writer; when the queue is full the oldest message is dropped.
type Conn struct {
	agentID     string
	remoteAddr  string
	connectedAt time.Time
	ws          *websocket.Conn
	cfg         Config
	logger      *zap.Logger

	enqueueMu sync.Mutex
	queue     chan domain.Broadcast
	dropped   atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(agentID, remoteAddr string, ws *websocket.Conn, cfg Config, logger *zap.Logger) *Conn {
	return &Conn{
		agentID:     agentID,
		remoteAddr:  remoteAddr,
		connectedAt: time.Now().UTC(),
		ws:          ws,
		cfg:         cfg,
		logger:      logger.With(zap.String("agent_id", agentID)),
		queue:       make(chan domain.Broadcast, cfg.SendQueueSize),
		done:        make(chan struct{}),
	}
}

func (c *Conn) enqueue(msg domain.Broadcast) {
	select {
	case <-c.done:
		return
	default:
	}

	c.enqueueMu.Lock()
	defer c.enqueueMu.Unlock()
	for {
		select {
		case c.queue <- msg:
			return
		default:
		}
		select {
		case old := <-c.queue:
			c.dropped.Add(1)
			metrics.BroadcastDroppedTotal.Inc()
			c.logger.Debug("send queue full, dropped oldest message", zap.String("type", string(old.Type)))
		default:
		}
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) info() AgentInfo {
	return AgentInfo{
		AgentID:     c.agentID,
		ConnectedAt: c.connectedAt,
		RemoteAddr:  c.remoteAddr,
		Queued:      len(c.queue),
		Dropped:     c.dropped.Load(),
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.queue:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Warn("websocket write failed", zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.logger.Warn("websocket ping failed", zap.Error(err))
				c.close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// readPump handles the agent's reports one at a time, which keeps each
// agent's reports in submission order.
func (c *Conn) readPump(ctx context.Context, ingest IngestFunc) {
	pongWait := 2 * c.cfg.PingInterval
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("dropping undecodable message", zap.Error(err))
			c.enqueue(errorMessage(errors.Join(domain.ErrMalformedReport, err)))
			continue
		}

		if err := ingest(ctx, env.Report(c.agentID)); err != nil {
			c.enqueue(errorMessage(err))
		}
	}
}

func errorMessage(err error) domain.Broadcast {
	return domain.NewBroadcast(domain.MessageError, "", map[string]any{
		"error":     err.Error(),
		"malformed": errors.Is(err, domain.ErrMalformedReport),
		"retryable": errors.Is(err, domain.ErrStoreUnavailable),
	})
}
