package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/models"
)

const (
	natsStream        = "EVENTS"
	natsSubjectPrefix = "events."
)

// NATS publishes onto a JetStream stream; each named subscriber is a durable
// consumer so a restarted instance resumes where it stopped.
type NATS struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	log *zap.SugaredLogger

	mu       sync.Mutex
	consumes []jetstream.ConsumeContext
}

func NewNATS(url string, log *zap.SugaredLogger) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      natsStream,
		Subjects:  []string{natsSubjectPrefix + ">"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		log.Warnw("failed to ensure stream", "stream", natsStream, "err", err)
	}
	return &NATS{nc: nc, js: js, log: log}, nil
}

func (n *NATS) Publish(ctx context.Context, e *models.Event) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	subject := natsSubjectPrefix + e.Subject()
	// Msg id lets JetStream drop duplicates when the relay republishes.
	if _, err := n.js.Publish(ctx, subject, data, jetstream.WithMsgID(e.ID)); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}

func (n *NATS) Subscribe(ctx context.Context, name string, h Handler) error {
	consumer, err := n.js.CreateOrUpdateConsumer(ctx, natsStream, jetstream.ConsumerConfig{
		Durable:       name,
		FilterSubject: natsSubjectPrefix + ">",
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		e, err := decode(msg.Data())
		if err != nil {
			n.log.Errorw("drop undecodable event", "consumer", name, "subject", msg.Subject(), "err", err)
			_ = msg.Term()
			return
		}
		if err := h(ctx, e); err != nil {
			n.log.Warnw("event handler failed", "consumer", name, "event_id", e.ID, "err", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	n.mu.Lock()
	n.consumes = append(n.consumes, cc)
	n.mu.Unlock()
	go func() {
		<-ctx.Done()
		cc.Stop()
	}()
	n.log.Infow("subscribed to events", "consumer", name)
	return nil
}

func (n *NATS) Close() error {
	n.mu.Lock()
	for _, cc := range n.consumes {
		cc.Stop()
	}
	n.consumes = nil
	n.mu.Unlock()
	if n.nc != nil {
		n.nc.Close()
	}
	return nil
}
