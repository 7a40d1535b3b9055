// Package realtime pushes committed transition events to websocket clients
// that subscribed to the entity or actor topics they are allowed to watch.
package realtime

import (
	"context"
	"os"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/platform/broker"
	"github.com/fatflowers/autoinspect/pkg/identity"
)

// Authorizer decides whether a caller may watch a topic.
type Authorizer interface {
	AuthorizeTopic(ctx context.Context, caller identity.Identity, topic string) error
}

// TopicsFunc lists the topics an event is delivered to.
type TopicsFunc func(e *models.Event) []string

type Hub struct {
	broker broker.Broker
	auth   Authorizer
	topics TopicsFunc
	log    *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(b broker.Broker, auth Authorizer, topics TopicsFunc, log *zap.SugaredLogger) *Hub {
	return &Hub{
		broker:     b,
		auth:       auth,
		topics:     topics,
		log:        log,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Start subscribes to the broker and runs the registration loop until ctx ends.
func (h *Hub) Start(ctx context.Context) error {
	host, _ := os.Hostname()
	if err := h.broker.Subscribe(ctx, "realtime-"+host, h.deliver); err != nil {
		return err
	}
	go h.run(ctx)
	return nil
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Infow("realtime client connected", "user_id", c.caller.UserID, "total", total)
			c.send(&Outbound{Type: MessageConnected, Data: c.caller})
		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				c.close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Infow("realtime client disconnected", "user_id", c.caller.UserID, "total", total)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// deliver fans an event out to every client watching one of its topics. A
// client receives each event at most once even if several topics match.
func (h *Hub) deliver(_ context.Context, e *models.Event) error {
	topics := h.topics(e)
	if len(topics) == 0 {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if matched := c.matching(topics); len(matched) > 0 {
			c.send(&Outbound{Type: MessageEvent, Topics: matched, Data: e})
		}
	}
	return nil
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register starts h with the application and stops it on shutdown.
func Register(lc fx.Lifecycle, h *Hub) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return h.Start(ctx)
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
