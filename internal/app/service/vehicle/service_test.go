package vehicle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/event"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/platform/broker"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/internal/store/memstore"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/types"
)

var owner = identity.Identity{UserID: "cust-1", Role: identity.RoleCustomer}

func setup(t *testing.T) (*Service, *event.Recorder, *memstore.Store) {
	t.Helper()
	log := zap.NewNop().Sugar()
	st := memstore.New()
	require.NoError(t, st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateSubscription(&models.Subscription{ID: "s1", CustomerID: "cust-1", PlanID: "basic", Status: types.SubscriptionStatusPendingPayment, VehicleCount: 2})
	}))
	rec := event.NewRecorder(st, broker.NewGoChannel(log), log)
	return NewService(st, rec, log), rec, st
}

func TestAdd(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	v, err := svc.Add(ctx, owner, "s1", &AddRequest{Make: "Toyota", Model: "Corolla", Year: 2019, PlateNumber: " kcx 123a "})
	require.NoError(t, err)
	assert.Equal(t, "KCX 123A", v.PlateNumber)
	assert.Equal(t, types.VehicleStatusPending, v.Status)

	_, err = svc.Add(ctx, owner, "s1", &AddRequest{PlateNumber: "KCX 123A"})
	assert.ErrorIs(t, err, apperr.InvalidArgument)

	_, err = svc.Add(ctx, identity.Identity{UserID: "cust-2", Role: identity.RoleCustomer}, "s1", &AddRequest{PlateNumber: "X1"})
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = svc.Add(ctx, owner, "s1", &AddRequest{PlateNumber: "KDA 001"})
	require.NoError(t, err)

	_, err = svc.Add(ctx, owner, "s1", &AddRequest{PlateNumber: "KDA 002"})
	assert.ErrorIs(t, err, apperr.VehicleLimitReached)

	_, err = svc.Add(ctx, owner, "missing", &AddRequest{PlateNumber: "KDA 003"})
	assert.ErrorIs(t, err, apperr.NotFound)

	list, err := svc.List(ctx, owner, "s1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestActivateForSubscriptionTx(t *testing.T) {
	svc, rec, st := setup(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, owner, "s1", &AddRequest{PlateNumber: "A1"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, owner, "s1", &AddRequest{PlateNumber: "A2"})
	require.NoError(t, err)

	var n int
	require.NoError(t, rec.InTx(ctx, identity.System, func(tx store.Tx, em *event.Emitter) error {
		sub, err := tx.GetSubscription("s1")
		require.NoError(t, err)
		n, err = svc.ActivateForSubscriptionTx(tx, em, sub)
		return err
	}))
	assert.Equal(t, 2, n)

	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
		rows, err := tx.ListVehicles("s1")
		require.NoError(t, err)
		for _, v := range rows {
			assert.Equal(t, types.VehicleStatusActive, v.Status)
			assert.Equal(t, int64(1), v.Version)
		}
		return nil
	}))
}
