package assignment

import (
	"context"
	"sync"
	"testing"
	"time"

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

var (
	admin    = identity.Identity{UserID: "admin-1", Role: identity.RoleAdmin}
	customer = identity.Identity{UserID: "cust-1", Role: identity.RoleCustomer}
	tech1    = identity.Identity{UserID: "tech-1", Role: identity.RoleTechnician}
	tech2    = identity.Identity{UserID: "tech-2", Role: identity.RoleTechnician}
)

func setup(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	log := zap.NewNop().Sugar()
	st := memstore.New()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.InTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateSubscription(&models.Subscription{ID: "paid", CustomerID: "cust-1", PlanID: "basic", Status: types.SubscriptionStatusActive, VehicleCount: 1, PaymentConfirmed: true, StartDate: &now}); err != nil {
			return err
		}
		return tx.CreateSubscription(&models.Subscription{ID: "unpaid", CustomerID: "cust-2", PlanID: "basic", Status: types.SubscriptionStatusPendingPayment, VehicleCount: 1})
	}))
	rec := event.NewRecorder(st, broker.NewGoChannel(log), log)
	svc := NewService(st, rec, log)
	svc.now = func() time.Time { return now }
	return svc, st
}

func TestAssign_RequiresConfirmedPayment(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Assign(ctx, admin, "unpaid", "tech-1", "")
	assert.ErrorIs(t, err, apperr.SubscriptionNotPayable)

	_, err = svc.Assign(ctx, admin, "missing", "tech-1", "")
	assert.ErrorIs(t, err, apperr.NotFound)

	_, err = svc.Assign(ctx, customer, "paid", "tech-1", "")
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = svc.Assign(ctx, admin, "paid", "", "")
	assert.ErrorIs(t, err, apperr.InvalidArgument)
}

func TestAssign_SupersedesPrevious(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	first, err := svc.Assign(ctx, admin, "paid", "tech-1", "mornings only")
	require.NoError(t, err)
	second, err := svc.Assign(ctx, admin, "paid", "tech-2", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	active, err := svc.GetActive(ctx, admin, "paid")
	require.NoError(t, err)
	assert.Equal(t, "tech-2", active.TechnicianID)

	history, err := svc.History(ctx, admin, "paid")
	require.NoError(t, err)
	require.Len(t, history, 2)
	var ended *models.Assignment
	for _, a := range history {
		if a.ID == first.ID {
			ended = a
		}
	}
	require.NotNil(t, ended)
	assert.Equal(t, types.AssignmentStatusEnded, ended.Status)
	assert.Equal(t, "mornings only", ended.Notes)
	assert.Equal(t, "admin-1", ended.EndedBy)
	require.NotNil(t, ended.EndedAt)

	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
		evs, err := tx.ListEvents(store.EventQuery{EntityType: types.EntityTypeAssignment, EntityID: second.ID})
		require.NoError(t, err)
		require.Len(t, evs, 1)
		assert.Equal(t, "tech-1", evs[0].Detail["previous_technician_id"])
		assert.Equal(t, "cust-1", evs[0].Detail["customer_id"])
		return nil
	}))
}

func TestAssign_ConcurrentAssignersLeaveOneActive(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tech := "tech-1"
			if i%2 == 1 {
				tech = "tech-2"
			}
			_, errs[i] = svc.Assign(ctx, admin, "paid", tech, "")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
		rows, err := tx.ListAssignments(store.AssignmentQuery{SubscriptionID: "paid", Status: types.AssignmentStatusActive})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		all, err := tx.ListAssignments(store.AssignmentQuery{SubscriptionID: "paid"})
		require.NoError(t, err)
		assert.Len(t, all, 4)
		return nil
	}))
}

func TestGetActive_None(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.GetActive(context.Background(), customer, "paid")
	assert.ErrorIs(t, err, apperr.NoActiveAssignment)

	_, err = svc.GetActive(context.Background(), identity.Identity{UserID: "cust-9", Role: identity.RoleCustomer}, "paid")
	assert.ErrorIs(t, err, apperr.Forbidden)
}

func TestReassign_FormerTechnicianLosesAccess(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Assign(ctx, admin, "paid", "tech-1", "")
	require.NoError(t, err)
	_, err = svc.GetActive(ctx, tech1, "paid")
	require.NoError(t, err)

	_, err = svc.Assign(ctx, admin, "paid", "tech-2", "")
	require.NoError(t, err)

	_, err = svc.GetActive(ctx, tech1, "paid")
	assert.ErrorIs(t, err, apperr.Forbidden)
	_, err = svc.History(ctx, tech1, "paid")
	assert.ErrorIs(t, err, apperr.Forbidden)

	active, err := svc.GetActive(ctx, tech2, "paid")
	require.NoError(t, err)
	assert.Equal(t, "tech-2", active.TechnicianID)

	_, err = svc.Revoke(ctx, admin, "paid")
	require.NoError(t, err)
	_, err = svc.History(ctx, tech2, "paid")
	assert.ErrorIs(t, err, apperr.Forbidden)
}

func TestGetActiveCached_InvalidatedOnChange(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Assign(ctx, admin, "paid", "tech-1", "")
	require.NoError(t, err)
	a, err := svc.GetActiveCached(ctx, customer, "paid")
	require.NoError(t, err)
	assert.Equal(t, "tech-1", a.TechnicianID)

	_, err = svc.Assign(ctx, admin, "paid", "tech-2", "")
	require.NoError(t, err)
	a, err = svc.GetActiveCached(ctx, customer, "paid")
	require.NoError(t, err)
	assert.Equal(t, "tech-2", a.TechnicianID)

	_, err = svc.Revoke(ctx, admin, "paid")
	require.NoError(t, err)
	_, err = svc.GetActiveCached(ctx, customer, "paid")
	assert.ErrorIs(t, err, apperr.NoActiveAssignment)

	_, err = svc.Revoke(ctx, admin, "paid")
	assert.ErrorIs(t, err, apperr.NoActiveAssignment)
}

func TestHoldsActiveTx(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()
	_, err := svc.Assign(ctx, admin, "paid", "tech-1", "")
	require.NoError(t, err)

	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
		a, err := HoldsActiveTx(tx, "paid", "tech-1")
		require.NoError(t, err)
		assert.Equal(t, "tech-1", a.TechnicianID)

		_, err = HoldsActiveTx(tx, "paid", "tech-2")
		assert.ErrorIs(t, err, apperr.NoActiveAssignment)
		return nil
	}))
}

func TestListForTechnician(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	_, err := svc.Assign(ctx, admin, "paid", "tech-1", "")
	require.NoError(t, err)
	_, err = svc.Assign(ctx, admin, "paid", "tech-2", "")
	require.NoError(t, err)

	mine, err := svc.ListForTechnician(ctx, tech1, "tech-2", true)
	require.NoError(t, err)
	assert.Empty(t, mine)

	mine, err = svc.ListForTechnician(ctx, tech1, "", false)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	mine, err = svc.ListForTechnician(ctx, tech2, "", true)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = svc.ListForTechnician(ctx, customer, "tech-1", true)
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = svc.ListForTechnician(ctx, admin, "", true)
	assert.ErrorIs(t, err, apperr.InvalidArgument)
}
