package event

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/platform/broker"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/config"
	"github.com/fatflowers/autoinspect/pkg/metrics"
)

// Relay republishes events whose post-commit publish never succeeded, which
// makes delivery at-least-once.
type Relay struct {
	store    store.Store
	broker   broker.Broker
	log      *zap.SugaredLogger
	interval time.Duration
	batch    int
	now      func() time.Time
}

func NewRelay(cfg *config.Config, st store.Store, b broker.Broker, log *zap.SugaredLogger) *Relay {
	interval := cfg.Events.RelayInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	batch := cfg.Events.RelayBatch
	if batch <= 0 {
		batch = 100
	}
	return &Relay{store: st, broker: b, log: log, interval: interval, batch: batch, now: time.Now}
}

// Flush publishes one batch of undispatched events older than one interval,
// leaving younger ones to the recorder that created them.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	cutoff := r.now().UTC().Add(-r.interval)
	var sent []string
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		pending, err := tx.ListUndispatchedEvents(cutoff, r.batch)
		if err != nil {
			return err
		}
		for _, e := range pending {
			if err := r.broker.Publish(ctx, e); err != nil {
				metrics.IncCounter(metrics.MetricsEventsPublished, "failed")
				// Keep per-entity order: stop at the first failure.
				r.log.Warnw("relay publish failed", "event_id", e.ID, "err", err)
				break
			}
			metrics.IncCounter(metrics.MetricsEventsPublished, "relayed")
			sent = append(sent, e.ID)
		}
		if len(sent) == 0 {
			return nil
		}
		return tx.MarkEventsDispatched(sent, r.now().UTC())
	})
	if err != nil {
		return 0, fmt.Errorf("failed to relay events: %w", err)
	}
	return len(sent), nil
}

func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Flush(ctx)
			if err != nil {
				r.log.Errorw("event relay failed", "err", err)
				continue
			}
			if n > 0 {
				r.log.Infow("events relayed", "count", n)
			}
		}
	}
}

func registerRelay(lc fx.Lifecycle, r *Relay) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go r.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
