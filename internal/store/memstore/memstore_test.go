package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSub(id, customer string, status types.SubscriptionStatus) *models.Subscription {
	return &models.Subscription{ID: id, CustomerID: customer, PlanID: "basic", Status: status, VehicleCount: 1}
}

func TestInTx_RollbackRestoresSnapshot(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateSubscription(newSub("s1", "c1", types.SubscriptionStatusPendingPayment)))
		_, err := tx.NextInvoiceSequence("202401")
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetSubscription("s1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		n, err := tx.NextInvoiceSequence("202401")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return nil
	}))
}

func TestSubscription_CompareAndSet(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateSubscription(newSub("s1", "c1", types.SubscriptionStatusPendingPayment))
	}))

	var stale *models.Subscription
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		var err error
		stale, err = tx.GetSubscription("s1")
		return err
	}))

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		fresh, err := tx.GetSubscription("s1")
		require.NoError(t, err)
		fresh.Status = types.SubscriptionStatusActive
		require.NoError(t, tx.UpdateSubscription(fresh))
		assert.Equal(t, int64(1), fresh.Version)
		return nil
	}))

	err := s.InTx(ctx, func(tx store.Tx) error {
		stale.Status = types.SubscriptionStatusCancelled
		return tx.UpdateSubscription(stale)
	})
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestSubscription_OnePendingPerCustomer(t *testing.T) {
	s := New()
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		require.NoError(t, tx.CreateSubscription(newSub("s1", "c1", types.SubscriptionStatusPendingPayment)))
		require.NoError(t, tx.CreateSubscription(newSub("s2", "c2", types.SubscriptionStatusPendingPayment)))
		return tx.CreateSubscription(newSub("s3", "c1", types.SubscriptionStatusPendingPayment))
	})
	require.ErrorIs(t, err, store.ErrDuplicate)
}

func TestAssignment_OneActive(t *testing.T) {
	s := New()
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		require.NoError(t, tx.CreateAssignment(&models.Assignment{ID: "a1", SubscriptionID: "s1", TechnicianID: "t1", Status: types.AssignmentStatusActive}))
		return tx.CreateAssignment(&models.Assignment{ID: "a2", SubscriptionID: "s1", TechnicianID: "t2", Status: types.AssignmentStatusActive})
	})
	require.ErrorIs(t, err, store.ErrDuplicate)
}

func TestVisit_UniqueNumberAndSingleInProgress(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateVisit(&models.Visit{ID: "v1", SubscriptionID: "s1", VisitNumber: 1, Status: types.VisitStatusInProgress})
	}))

	cases := []struct {
		name  string
		visit *models.Visit
	}{
		{"second in progress", &models.Visit{ID: "v2", SubscriptionID: "s1", VisitNumber: 2, Status: types.VisitStatusInProgress}},
		{"reused number", &models.Visit{ID: "v3", SubscriptionID: "s1", VisitNumber: 1, Status: types.VisitStatusRejected}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.InTx(ctx, func(tx store.Tx) error { return tx.CreateVisit(tc.visit) })
			require.ErrorIs(t, err, store.ErrDuplicate)
		})
	}

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		n, err := tx.MaxVisitNumber("s1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return tx.CreateVisit(&models.Visit{ID: "v4", SubscriptionID: "other", VisitNumber: 1, Status: types.VisitStatusInProgress})
	}))
}

func TestEvents_SeqPerEntityAndDispatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		for i, id := range []string{"e1", "e2", "e3"} {
			entity := "sub-a"
			if i == 1 {
				entity = "sub-b"
			}
			require.NoError(t, tx.AppendEvent(&models.Event{ID: id, EntityType: types.EntityTypeSubscription, EntityID: entity, ToStatus: "active", OccurredAt: now}))
		}
		return nil
	}))

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		evs, err := tx.ListEvents(store.EventQuery{EntityID: "sub-a"})
		require.NoError(t, err)
		require.Len(t, evs, 2)
		assert.Equal(t, []int64{1, 2}, []int64{evs[0].Seq, evs[1].Seq})

		after, err := tx.ListEvents(store.EventQuery{EntityID: "sub-a", AfterSeq: 1})
		require.NoError(t, err)
		require.Len(t, after, 1)
		assert.Equal(t, "e3", after[0].ID)

		pending, err := tx.ListUndispatchedEvents(now.Add(time.Second), 10)
		require.NoError(t, err)
		assert.Len(t, pending, 3)
		return tx.MarkEventsDispatched([]string{"e1", "e2"}, now)
	}))

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		pending, err := tx.ListUndispatchedEvents(now.Add(time.Second), 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "e3", pending[0].ID)
		return nil
	}))
}

func TestScanSubscriptions_Filters(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateSubscription(newSub("s1", "c1", types.SubscriptionStatusActive)))
		require.NoError(t, tx.CreateSubscription(newSub("s2", "c2", types.SubscriptionStatusPendingPayment)))
		big := newSub("s3", "c3", types.SubscriptionStatusActive)
		big.VehicleCount = 4
		return tx.CreateSubscription(big)
	}))

	cases := []struct {
		name    string
		filters []*types.CommonFilter
		want    []string
	}{
		{"eq status", []*types.CommonFilter{{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{"active"}}}, []string{"s1", "s3"}},
		{"in customer", []*types.CommonFilter{{Field: "customer_id", Operator: types.CommonFilterOperatorIn, Values: []any{"c2", "c3"}}}, []string{"s2", "s3"}},
		{"gt vehicles", []*types.CommonFilter{{Field: "vehicle_count", Operator: types.CommonFilterOperatorGt, Values: []any{float64(1)}}}, []string{"s3"}},
		{"not eq", []*types.CommonFilter{{Field: "status", Operator: types.CommonFilterOperatorNotEq, Values: []any{"active"}}}, []string{"s2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
				rows, total, err := tx.ScanSubscriptions(&store.ScanRequest{Filters: tc.filters, SortBy: "id", SortOrder: "asc"})
				require.NoError(t, err)
				assert.Equal(t, int64(len(tc.want)), total)
				var ids []string
				for _, r := range rows {
					ids = append(ids, r.ID)
				}
				assert.Equal(t, tc.want, ids)
				return nil
			}))
		})
	}
}

func TestInTx_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := New().InTx(ctx, func(tx store.Tx) error { called = true; return nil })
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestNotifications_DedupAndRead(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateNotification(&models.Notification{ID: "n1", EventID: "e1", RecipientID: "c1", Title: "a"}))
		require.NoError(t, tx.CreateNotification(&models.Notification{ID: "n2", EventID: "e1", RecipientID: models.RecipientAdmins, Title: "b"}))
		assert.ErrorIs(t, tx.CreateNotification(&models.Notification{ID: "n3", EventID: "e1", RecipientID: "c1"}), store.ErrDuplicate)
		return nil
	}))

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		mine, err := tx.ListNotifications(store.NotificationQuery{RecipientIDs: []string{"c1"}})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "n1", mine[0].ID)

		_, err = tx.MarkNotificationRead("n2", []string{"c1"}, at)
		assert.ErrorIs(t, err, store.ErrNotFound)

		n, err := tx.MarkNotificationRead("n1", []string{"c1"}, at)
		require.NoError(t, err)
		require.NotNil(t, n.ReadAt)
		assert.True(t, n.ReadAt.Equal(at))

		unread, err := tx.ListNotifications(store.NotificationQuery{RecipientIDs: []string{"c1"}, UnreadOnly: true})
		require.NoError(t, err)
		assert.Empty(t, unread)
		return nil
	}))
}
