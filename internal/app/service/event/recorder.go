// Package event owns the append-only transition log. Transitions are written
// in the same transaction as the state change and published after commit.
package event

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/platform/broker"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/logctx"
	"github.com/fatflowers/autoinspect/pkg/metrics"
	"github.com/fatflowers/autoinspect/pkg/tool"
	"github.com/fatflowers/autoinspect/pkg/types"
)

// Transition describes one committed status change.
type Transition struct {
	EntityType     types.EntityType
	EntityID       string
	SubscriptionID string
	From           string
	To             string
	// Detail carries ids of the affected parties (customer_id, technician_id)
	// and operation specific values.
	Detail map[string]interface{}
}

// Emitter collects the events of one transaction.
type Emitter struct {
	tx     store.Tx
	actor  identity.Identity
	now    time.Time
	events []*models.Event
}

// Now is the timestamp shared by every event of the transaction.
func (em *Emitter) Now() time.Time {
	return em.now
}

func (em *Emitter) Emit(t Transition) error {
	e := &models.Event{
		ID:             tool.GenerateUUIDV7(),
		EntityType:     t.EntityType,
		EntityID:       t.EntityID,
		SubscriptionID: t.SubscriptionID,
		FromStatus:     t.From,
		ToStatus:       t.To,
		ActorID:        em.actor.UserID,
		ActorRole:      string(em.actor.Role),
		Detail:         t.Detail,
		OccurredAt:     em.now,
	}
	if err := em.tx.AppendEvent(e); err != nil {
		return err
	}
	em.events = append(em.events, e)
	return nil
}

type Recorder struct {
	store  store.Store
	broker broker.Broker
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewRecorder(st store.Store, b broker.Broker, log *zap.SugaredLogger) *Recorder {
	return &Recorder{store: st, broker: b, log: log, now: time.Now}
}

// InTx runs fn in one storage transaction on behalf of actor. Events emitted
// through em are published only once the transaction committed.
func (r *Recorder) InTx(ctx context.Context, actor identity.Identity, fn func(tx store.Tx, em *Emitter) error) error {
	var em *Emitter
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		em = &Emitter{tx: tx, actor: actor, now: r.now().UTC()}
		return fn(tx, em)
	})
	if err != nil {
		return err
	}
	r.dispatch(ctx, em.events)
	return nil
}

// dispatch publishes committed events. Failures are left for the relay.
func (r *Recorder) dispatch(ctx context.Context, events []*models.Event) {
	if len(events) == 0 {
		return
	}
	ctx = logctx.Detach(ctx)
	log := logctx.FromCtx(ctx, r.log)

	sent := make([]string, 0, len(events))
	for _, e := range events {
		metrics.IncCounter(metrics.MetricsStateTransitions, string(e.EntityType), e.ToStatus)
		if err := r.broker.Publish(ctx, e); err != nil {
			metrics.IncCounter(metrics.MetricsEventsPublished, "failed")
			log.Warnw("event publish failed, relay will retry", "event_id", e.ID, "subject", e.Subject(), "err", err)
			continue
		}
		metrics.IncCounter(metrics.MetricsEventsPublished, "ok")
		sent = append(sent, e.ID)
	}
	if len(sent) == 0 {
		return
	}
	at := r.now().UTC()
	if err := r.store.InTx(ctx, func(tx store.Tx) error {
		return tx.MarkEventsDispatched(sent, at)
	}); err != nil {
		log.Warnw("failed to mark events dispatched", "count", len(sent), "err", err)
	}
}

// Actor is the identity the transaction runs on behalf of.
func (em *Emitter) Actor() identity.Identity {
	return em.actor
}
