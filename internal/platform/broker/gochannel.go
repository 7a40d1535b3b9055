package broker

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/models"
)

const goChannelTopic = "events"

// GoChannel is a single-process broker on watermill's in-memory pub/sub.
// Publish returns once every subscriber acked, so events published from one
// goroutine reach each consumer in publish order. Events published by
// concurrent requests may still interleave; consumers order by Seq.
type GoChannel struct {
	pubSub *gochannel.GoChannel
	log    *zap.SugaredLogger
}

func NewGoChannel(log *zap.SugaredLogger) *GoChannel {
	return &GoChannel{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            256,
			BlockPublishUntilSubscriberAck: true,
		}, zapAdapter{log: log}),
		log:    log,
	}
}

func (g *GoChannel) Publish(ctx context.Context, e *models.Event) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	msg := message.NewMessage(e.ID, data)
	msg.Metadata.Set("subject", e.Subject())
	return g.pubSub.Publish(goChannelTopic, msg)
}

func (g *GoChannel) Subscribe(ctx context.Context, name string, h Handler) error {
	messages, err := g.pubSub.Subscribe(ctx, goChannelTopic)
	if err != nil {
		return err
	}
	go func() {
		for msg := range messages {
			e, err := decode(msg.Payload)
			if err != nil {
				g.log.Errorw("drop undecodable event", "consumer", name, "err", err)
				msg.Ack()
				continue
			}
			if err := h(ctx, e); err != nil {
				g.log.Warnw("event handler failed", "consumer", name, "event_id", e.ID, "err", err)
			}
			// Redelivery on this backend would loop in-process; the outbox relay covers gaps.
			msg.Ack()
		}
	}()
	return nil
}

func (g *GoChannel) Close() error {
	return g.pubSub.Close()
}

// zapAdapter routes watermill's internal logs into zap.
type zapAdapter struct {
	log    *zap.SugaredLogger
	fields watermill.LogFields
}

func (z zapAdapter) kv(fields watermill.LogFields) []interface{} {
	all := z.fields.Add(fields)
	out := make([]interface{}, 0, len(all)*2)
	for k, v := range all {
		out = append(out, k, v)
	}
	return out
}

func (z zapAdapter) Error(msg string, err error, fields watermill.LogFields) {
	z.log.Errorw(msg, append(z.kv(fields), "err", err)...)
}

func (z zapAdapter) Info(msg string, fields watermill.LogFields) {
	z.log.Debugw(msg, z.kv(fields)...)
}

func (z zapAdapter) Debug(msg string, fields watermill.LogFields) {
	z.log.Debugw(msg, z.kv(fields)...)
}

func (z zapAdapter) Trace(msg string, fields watermill.LogFields) {}

func (z zapAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return zapAdapter{log: z.log, fields: z.fields.Add(fields)}
}
