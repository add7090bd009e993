package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/gorilla/websocket"
)

// Message is an egress message as seen by an agent.
type Message struct {
	Type      domain.MessageType `json:"type"`
	Source    string             `json:"source,omitempty"`
	Learning  json.RawMessage    `json:"learning"`
	Timestamp time.Time          `json:"timestamp"`
}

// Client is an agent-side mesh connection.
type Client struct {
	agentID string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// Dial connects to the mesh endpoint at rawURL as agentID.
func Dial(ctx context.Context, rawURL, agentID string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse mesh url: %w", err)
	}
	q := u.Query()
	q.Set("agent_id", agentID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("X-Agent-ID", agentID)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial mesh: %w", err)
	}
	return &Client{agentID: agentID, ws: ws}, nil
}

func (c *Client) AgentID() string {
	return c.agentID
}

func (c *Client) Submit(env domain.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(env)
}

// Receive waits up to timeout for the next message. A zero timeout waits forever.
func (c *Client) Receive(timeout time.Duration) (*Message, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	_ = c.ws.SetReadDeadline(deadline)
	var msg Message
	if err := c.ws.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReceiveType skips messages until one of type t arrives or timeout elapses.
func (c *Client) ReceiveType(t domain.MessageType, timeout time.Duration) (*Message, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("timed out waiting for %s", t)
		}
		msg, err := c.Receive(remaining)
		if err != nil {
			return nil, err
		}
		if msg.Type == t {
			return msg, nil
		}
	}
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}
