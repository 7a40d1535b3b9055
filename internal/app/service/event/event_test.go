package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/platform/broker"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/internal/store/memstore"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/config"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/types"
)

type stubBroker struct {
	mu        sync.Mutex
	fail      bool
	published []*models.Event
}

func (b *stubBroker) Publish(ctx context.Context, e *models.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("broker down")
	}
	b.published = append(b.published, e)
	return nil
}

func (b *stubBroker) Subscribe(ctx context.Context, name string, h broker.Handler) error {
	return nil
}

func (b *stubBroker) Close() error { return nil }

func (b *stubBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

var admin = identity.Identity{UserID: "admin-1", Role: identity.RoleAdmin}

func emitSubscriptionActivated(t *testing.T, r *Recorder, subID string) {
	t.Helper()
	require.NoError(t, r.InTx(context.Background(), admin, func(tx store.Tx, em *Emitter) error {
		return em.Emit(Transition{
			EntityType:     types.EntityTypeSubscription,
			EntityID:       subID,
			SubscriptionID: subID,
			From:           string(types.SubscriptionStatusPendingPayment),
			To:             string(types.SubscriptionStatusActive),
			Detail:         map[string]interface{}{"customer_id": "cust-1"},
		})
	}))
}

func undispatched(t *testing.T, st store.Store) []*models.Event {
	t.Helper()
	var out []*models.Event
	require.NoError(t, st.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = tx.ListUndispatchedEvents(time.Now().Add(time.Hour), 0)
		return err
	}))
	return out
}

func TestRecorder_PublishesAfterCommit(t *testing.T) {
	st := memstore.New()
	b := &stubBroker{}
	r := NewRecorder(st, b, zap.NewNop().Sugar())

	emitSubscriptionActivated(t, r, "s1")

	require.Equal(t, 1, b.count())
	e := b.published[0]
	assert.Equal(t, int64(1), e.Seq)
	assert.Equal(t, "admin-1", e.ActorID)
	assert.Equal(t, "subscription.active", e.Subject())
	assert.Empty(t, undispatched(t, st))
}

func TestRecorder_RollbackDropsEvents(t *testing.T) {
	st := memstore.New()
	b := &stubBroker{}
	r := NewRecorder(st, b, zap.NewNop().Sugar())
	boom := errors.New("boom")

	err := r.InTx(context.Background(), admin, func(tx store.Tx, em *Emitter) error {
		require.NoError(t, em.Emit(Transition{EntityType: types.EntityTypeVisit, EntityID: "v1", To: "confirmed"}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, b.count())
	assert.Empty(t, undispatched(t, st))
}

func TestRelay_RepublishesFailedEvents(t *testing.T) {
	st := memstore.New()
	b := &stubBroker{fail: true}
	r := NewRecorder(st, b, zap.NewNop().Sugar())

	emitSubscriptionActivated(t, r, "s1")
	emitSubscriptionActivated(t, r, "s1")
	require.Len(t, undispatched(t, st), 2)

	relay := NewRelay(&config.Config{}, st, b, zap.NewNop().Sugar())
	relay.now = func() time.Time { return time.Now().Add(time.Minute) }

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	b.mu.Lock()
	b.fail = false
	b.mu.Unlock()

	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, undispatched(t, st))
	assert.Equal(t, []int64{1, 2}, []int64{b.published[0].Seq, b.published[1].Seq})
}

func TestRelay_LeavesFreshEventsToRecorder(t *testing.T) {
	st := memstore.New()
	b := &stubBroker{fail: true}
	emitSubscriptionActivated(t, NewRecorder(st, b, zap.NewNop().Sugar()), "s1")

	b.fail = false
	relay := NewRelay(&config.Config{}, st, b, zap.NewNop().Sugar())
	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_ListAuthorization(t *testing.T) {
	st := memstore.New()
	require.NoError(t, st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateSubscription(&models.Subscription{ID: "s1", CustomerID: "cust-1", Status: types.SubscriptionStatusPendingPayment, VehicleCount: 1})
	}))
	r := NewRecorder(st, &stubBroker{}, zap.NewNop().Sugar())
	emitSubscriptionActivated(t, r, "s1")
	emitSubscriptionActivated(t, r, "s1")
	svc := NewService(st, zap.NewNop().Sugar())
	ctx := context.Background()

	owner := identity.Identity{UserID: "cust-1", Role: identity.RoleCustomer}
	evs, err := svc.List(ctx, owner, ListRequest{EntityType: types.EntityTypeSubscription, EntityID: "s1", AfterSeq: 1})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, int64(2), evs[0].Seq)

	stranger := identity.Identity{UserID: "cust-2", Role: identity.RoleCustomer}
	_, err = svc.List(ctx, stranger, ListRequest{SubscriptionID: "s1"})
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = svc.List(ctx, stranger, ListRequest{})
	assert.ErrorIs(t, err, apperr.Forbidden)

	evs, err = svc.List(ctx, admin, ListRequest{ActorID: "admin-1"})
	require.NoError(t, err)
	assert.Len(t, evs, 2)

	_, err = svc.List(ctx, owner, ListRequest{EntityID: "s1"})
	assert.ErrorIs(t, err, apperr.InvalidArgument)
}

func TestService_AuthorizeTopic(t *testing.T) {
	st := memstore.New()
	require.NoError(t, st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateSubscription(&models.Subscription{ID: "s1", CustomerID: "cust-1", Status: types.SubscriptionStatusActive, VehicleCount: 1})
	}))
	svc := NewService(st, zap.NewNop().Sugar())
	ctx := context.Background()
	owner := identity.Identity{UserID: "cust-1", Role: identity.RoleCustomer}

	assert.NoError(t, svc.AuthorizeTopic(ctx, owner, "subscription:s1"))
	assert.NoError(t, svc.AuthorizeTopic(ctx, owner, "actor:cust-1"))
	assert.ErrorIs(t, svc.AuthorizeTopic(ctx, owner, "actor:cust-2"), apperr.Forbidden)
	assert.ErrorIs(t, svc.AuthorizeTopic(ctx, owner, "visit:missing"), apperr.NotFound)
	assert.ErrorIs(t, svc.AuthorizeTopic(ctx, owner, "bogus"), apperr.InvalidArgument)
	assert.NoError(t, svc.AuthorizeTopic(ctx, admin, "visit:anything"))
}

func TestTopics(t *testing.T) {
	e := &models.Event{
		EntityType:     types.EntityTypeVisit,
		EntityID:       "v1",
		SubscriptionID: "s1",
		ActorID:        "tech-1",
		Detail:         map[string]interface{}{"customer_id": "cust-1", "technician_id": "tech-1"},
	}
	assert.Equal(t, []string{"subscription:s1", "visit:v1", "actor:tech-1", "actor:cust-1"}, Topics(e))
}
