package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/identity"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 256
)

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	caller identity.Identity
	out    chan []byte

	subMu  sync.RWMutex
	topics map[string]bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Serve registers conn with the hub and pumps it until either side closes.
// ctx must outlive the HTTP request that was upgraded.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, caller identity.Identity) {
	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		hub:    h,
		conn:   conn,
		caller: caller,
		out:    make(chan []byte, sendBuffer),
		topics: make(map[string]bool),
		ctx:    ctx,
		cancel: cancel,
	}
	if !h.add(c) {
		cancel()
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (c *Client) matching(topics []string) []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	var out []string
	for _, t := range topics {
		if c.topics[t] {
			out = append(out, t)
		}
	}
	return out
}

// send queues a message. A client that cannot keep up is disconnected.
func (c *Client) send(m *Outbound) {
	data, err := m.JSON()
	if err != nil {
		c.hub.log.Errorw("failed to marshal realtime message", "err", err)
		return
	}
	select {
	case <-c.ctx.Done():
	case c.out <- data:
	default:
		c.hub.log.Warnw("realtime client too slow, dropping", "user_id", c.caller.UserID)
		c.cancel()
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warnw("websocket read failed", "user_id", c.caller.UserID, "err", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(data []byte) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.send(&Outbound{Type: MessageError, Data: ErrorData{Reason: "invalid_message", Detail: err.Error()}})
		return
	}
	switch msg.Type {
	case MessagePing:
		c.send(&Outbound{Type: MessagePong})
	case MessageSubscribe:
		var granted []string
		for _, topic := range msg.Topics {
			if err := c.hub.auth.AuthorizeTopic(c.ctx, c.caller, topic); err != nil {
				c.send(&Outbound{Type: MessageError, Data: ErrorData{Topic: topic, Reason: reason(err), Detail: err.Error()}})
				continue
			}
			granted = append(granted, topic)
		}
		c.subMu.Lock()
		for _, t := range granted {
			c.topics[t] = true
		}
		c.subMu.Unlock()
		c.send(&Outbound{Type: MessageSubscribed, Topics: granted})
	case MessageUnsubscribe:
		c.subMu.Lock()
		for _, t := range msg.Topics {
			delete(c.topics, t)
		}
		c.subMu.Unlock()
		c.send(&Outbound{Type: MessageUnsubscribed, Topics: msg.Topics})
	default:
		c.send(&Outbound{Type: MessageError, Data: ErrorData{Reason: "unknown_type", Detail: string(msg.Type)}})
	}
}

func reason(err error) string {
	if e, ok := apperr.As(err); ok {
		return e.Code
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "internal"
}
