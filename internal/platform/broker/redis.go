package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/models"
)

// Redis fans events out over a pub/sub channel shared by every instance.
// Pub/sub is fire-and-forget; instances that are down miss events and
// clients catch up through the polling API.
type Redis struct {
	rdb     *redis.Client
	channel string
	log     *zap.SugaredLogger
}

func NewRedis(addr, password, channel string, log *zap.SugaredLogger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{rdb: rdb, channel: channel, log: log}, nil
}

func (r *Redis) Publish(ctx context.Context, e *models.Event) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", r.channel, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, name string, h Handler) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				e, err := decode([]byte(msg.Payload))
				if err != nil {
					r.log.Errorw("drop undecodable event", "consumer", name, "err", err)
					continue
				}
				if err := h(ctx, e); err != nil {
					r.log.Warnw("event handler failed", "consumer", name, "event_id", e.ID, "err", err)
				}
			}
		}
	}()
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
