package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/platform/broker"
	"github.com/fatflowers/autoinspect/internal/store/memstore"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/types"
)

var (
	customer   = identity.Identity{UserID: "cust-1", Role: identity.RoleCustomer}
	technician = identity.Identity{UserID: "tech-1", Role: identity.RoleTechnician}
	admin      = identity.Identity{UserID: "admin-1", Role: identity.RoleAdmin}
)

func newTestService() *Service {
	s := NewService(memstore.New(), zap.NewNop().Sugar())
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func visitEvent(id string, to types.VisitStatus, actor string) *models.Event {
	return &models.Event{
		ID:             id,
		EntityType:     types.EntityTypeVisit,
		EntityID:       "visit-1",
		SubscriptionID: "sub-1",
		ToStatus:       string(to),
		ActorID:        actor,
		Detail: map[string]interface{}{
			"customer_id":   customer.UserID,
			"technician_id": technician.UserID,
			"visit_number":  float64(2),
			"reason":        "photos missing",
		},
	}
}

func TestCompose(t *testing.T) {
	cases := []struct {
		name  string
		event *models.Event
		want  map[string]models.NotificationKind
	}{
		{
			name:  "visit submitted goes to admins",
			event: visitEvent("e1", types.VisitStatusPendingConfirmation, technician.UserID),
			want:  map[string]models.NotificationKind{models.RecipientAdmins: models.NotificationKindVisitSubmitted},
		},
		{
			name:  "visit confirmed goes to customer and technician",
			event: visitEvent("e2", types.VisitStatusConfirmed, admin.UserID),
			want: map[string]models.NotificationKind{
				customer.UserID:   models.NotificationKindVisitConfirmed,
				technician.UserID: models.NotificationKindVisitConfirmed,
			},
		},
		{
			name:  "visit rejected goes to technician",
			event: visitEvent("e3", types.VisitStatusRejected, admin.UserID),
			want:  map[string]models.NotificationKind{technician.UserID: models.NotificationKindVisitRejected},
		},
		{
			name:  "visit started is silent",
			event: visitEvent("e4", types.VisitStatusInProgress, technician.UserID),
			want:  map[string]models.NotificationKind{},
		},
		{
			name: "cancellation by the customer is not echoed",
			event: &models.Event{
				ID: "e5", EntityType: types.EntityTypeSubscription, EntityID: "sub-1", ToStatus: "cancelled", ActorID: customer.UserID,
				Detail: map[string]interface{}{"customer_id": customer.UserID, "reason": string(types.SubscriptionChangeReasonCancel)},
			},
			want: map[string]models.NotificationKind{},
		},
		{
			name: "evidence submitted goes to admins",
			event: &models.Event{
				ID: "e6", EntityType: types.EntityTypeSubscription, EntityID: "sub-1", ToStatus: "pending_payment", ActorID: customer.UserID,
				Detail: map[string]interface{}{"customer_id": customer.UserID, "reason": string(types.SubscriptionChangeReasonPaymentEvidence), "method": "cash"},
			},
			want: map[string]models.NotificationKind{models.RecipientAdmins: models.NotificationKindPaymentEvidence},
		},
		{
			name: "assignment notifies technician and customer",
			event: &models.Event{
				ID: "e7", EntityType: types.EntityTypeAssignment, EntityID: "asg-1", SubscriptionID: "sub-1", ToStatus: "active", ActorID: admin.UserID,
				Detail: map[string]interface{}{"customer_id": customer.UserID, "technician_id": technician.UserID},
			},
			want: map[string]models.NotificationKind{
				technician.UserID: models.NotificationKindAssigned,
				customer.UserID:   models.NotificationKindAssigned,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := map[string]models.NotificationKind{}
			for _, n := range compose(tc.event) {
				got[n.recipient] = n.kind
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompose_PaymentConfirmedOnActivation(t *testing.T) {
	activation := func(amount any) *models.Event {
		return &models.Event{
			ID: "e1", EntityType: types.EntityTypeSubscription, EntityID: "sub-1", SubscriptionID: "sub-1",
			FromStatus: "pending_payment", ToStatus: "active", ActorID: admin.UserID,
			Detail: map[string]interface{}{
				"customer_id": customer.UserID, "reason": string(types.SubscriptionChangeReasonActivate),
				"amount": amount, "currency": "KES",
			},
		}
	}

	notices := compose(activation(float64(250000)))
	require.Len(t, notices, 1)
	assert.Equal(t, customer.UserID, notices[0].recipient)
	assert.Equal(t, models.NotificationKindPaymentConfirmed, notices[0].kind)
	assert.Equal(t, "We received your payment of 2500.00 KES. Subscription sub-1 is now active.", notices[0].body)

	free := compose(activation(float64(0)))
	require.Len(t, free, 1)
	assert.Equal(t, models.NotificationKindPaymentConfirmed, free[0].kind)
	assert.Equal(t, "Subscription sub-1 is now active.", free[0].body)

	// Payment records do not notify on their own; activation already did.
	assert.Empty(t, compose(&models.Event{
		ID: "e2", EntityType: types.EntityTypePayment, EntityID: "pay-1", ToStatus: "completed", ActorID: admin.UserID,
		Detail: map[string]interface{}{"customer_id": customer.UserID, "amount": float64(250000), "currency": "KES"},
	}))
}

func TestHandle_IdempotentAndScoped(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	e := visitEvent("e1", types.VisitStatusConfirmed, admin.UserID)

	require.NoError(t, s.Handle(ctx, e))
	require.NoError(t, s.Handle(ctx, e))

	mine, err := s.List(ctx, customer, ListRequest{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "e1", mine[0].EventID)
	assert.Equal(t, "sub-1", mine[0].SubscriptionID)

	theirs, err := s.List(ctx, technician, ListRequest{})
	require.NoError(t, err)
	require.Len(t, theirs, 1)

	_, err = s.MarkRead(ctx, technician, mine[0].ID)
	assert.ErrorIs(t, err, apperr.NotFound)

	read, err := s.MarkRead(ctx, customer, mine[0].ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)

	unread, err := s.List(ctx, customer, ListRequest{UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)

	_, err = s.List(ctx, identity.Identity{}, ListRequest{})
	assert.ErrorIs(t, err, apperr.Unauthenticated)
}

func TestHandle_AdminInbox(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	require.NoError(t, s.Handle(ctx, visitEvent("e1", types.VisitStatusPendingConfirmation, technician.UserID)))

	got, err := s.List(ctx, admin, ListRequest{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.NotificationKindVisitSubmitted, got[0].Kind)

	other, err := s.List(ctx, identity.Identity{UserID: "admin-2", Role: identity.RoleAdmin}, ListRequest{})
	require.NoError(t, err)
	assert.Len(t, other, 1)

	none, err := s.List(ctx, customer, ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHandle_ThroughBroker(t *testing.T) {
	s := newTestService()
	b := broker.NewGoChannel(zap.NewNop().Sugar())
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.Subscribe(ctx, consumerName, s.Handle))

	require.NoError(t, b.Publish(ctx, visitEvent("e9", types.VisitStatusRejected, admin.UserID)))

	require.Eventually(t, func() bool {
		got, err := s.List(context.Background(), technician, ListRequest{})
		return err == nil && len(got) == 1 && got[0].Kind == models.NotificationKindVisitRejected
	}, 2*time.Second, 10*time.Millisecond)
}
