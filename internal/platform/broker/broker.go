// Package broker carries committed transition events to subscribers. Delivery
// is at-least-once: the outbox relay republishes anything not acknowledged.
package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/pkg/config"
)

// Handler processes one event. A returned error asks the broker to redeliver
// where the backend supports it.
type Handler func(ctx context.Context, e *models.Event) error

type Broker interface {
	Publish(ctx context.Context, e *models.Event) error
	// Subscribe delivers every event published after the call to h until ctx
	// is cancelled or the broker is closed. name identifies the consumer.
	Subscribe(ctx context.Context, name string, h Handler) error
	Close() error
}

func New(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) (Broker, error) {
	var (
		b   Broker
		err error
	)
	switch cfg.Events.Broker {
	case config.BrokerNATS:
		b, err = NewNATS(cfg.Events.NatsURL, log)
	case config.BrokerRedis:
		b, err = NewRedis(cfg.Events.RedisAddr, cfg.Events.RedisPassword, cfg.Events.RedisChannel, log)
	case config.BrokerGoChannel, "":
		b = NewGoChannel(log)
	default:
		return nil, fmt.Errorf("unknown event broker %q", cfg.Events.Broker)
	}
	if err != nil {
		return nil, err
	}
	log.Infow("event broker ready", "broker", cfg.Events.Broker)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return b.Close()
		},
	})
	return b, nil
}

var Module = fx.Options(
	fx.Provide(New),
)

func encode(e *models.Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*models.Event, error) {
	var e models.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &e, nil
}
