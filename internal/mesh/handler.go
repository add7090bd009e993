package mesh

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AgentID extracts the agent identity from the agent_id query parameter or
// the X-Agent-ID header.
func AgentID(r *http.Request) string {
	if id := r.URL.Query().Get("agent_id"); id != "" {
		return id
	}
	return r.Header.Get("X-Agent-ID")
}

// Handler upgrades agent connections and feeds their reports to ingest.
func (h *Hub) Handler(ingest IngestFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := AgentID(r)
		if agentID == "" {
			http.Error(w, `{"error":"agent_id is required"}`, http.StatusBadRequest)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", zap.String("agent_id", agentID), zap.Error(err))
			return
		}

		c := newConn(agentID, r.RemoteAddr, ws, h.cfg, h.logger)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.writePump()
		}()

		h.register(c)
		c.readPump(ctx, ingest)

		h.unregister(c)
		c.close()
		wg.Wait()
	}
}
