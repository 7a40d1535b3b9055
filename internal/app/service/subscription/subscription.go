package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/autoinspect/internal/app/service/access"
	"github.com/fatflowers/autoinspect/internal/app/service/event"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/platform/tracing"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/config"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/logctx"
	"github.com/fatflowers/autoinspect/pkg/tool"
	"github.com/fatflowers/autoinspect/pkg/types"
)

type Service struct {
	cfg    *config.Config
	store  store.Store
	events *event.Recorder
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewService(cfg *config.Config, st store.Store, events *event.Recorder, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, store: st, events: events, log: log, now: time.Now}
}

type CreateRequest struct {
	// CustomerID is taken from the caller unless an admin creates on a customer's behalf.
	CustomerID   string `json:"customer_id"`
	PlanID       string `json:"plan_id" binding:"required"`
	VehicleCount int    `json:"vehicle_count"`
}

// Create opens a subscription in pending_payment.
func (s *Service) Create(ctx context.Context, caller identity.Identity, req *CreateRequest) (*models.Subscription, error) {
	ctx, span := tracing.Start(ctx, "subscription.Create")
	defer span.End()

	customerID := caller.UserID
	switch {
	case caller.IsAdmin() && req.CustomerID != "":
		customerID = req.CustomerID
	case !caller.IsCustomer() && !caller.IsAdmin():
		return nil, apperr.Forbidden
	}
	plan := s.cfg.GetPlanByID(req.PlanID)
	if plan == nil {
		return nil, apperr.InvalidPlan.Withf("unknown plan %q", req.PlanID)
	}
	if req.VehicleCount < 1 {
		return nil, apperr.InvalidVehicleCount
	}

	sub := &models.Subscription{
		ID:           tool.GenerateUUIDV7(),
		CustomerID:   customerID,
		PlanID:       plan.ID,
		Status:       types.SubscriptionStatusPendingPayment,
		VehicleCount: req.VehicleCount,
	}
	err := s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		pending, err := tx.ListSubscriptions(store.SubscriptionQuery{
			CustomerID: customerID,
			Statuses:   []types.SubscriptionStatus{types.SubscriptionStatusPendingPayment},
			Limit:      1,
		})
		if err != nil {
			return fmt.Errorf("failed to list pending subscriptions: %w", err)
		}
		if len(pending) > 0 {
			return apperr.DuplicatePendingSubscription
		}
		if err := tx.CreateSubscription(sub); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.DuplicatePendingSubscription
			}
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		return s.record(tx, em, nil, sub, types.SubscriptionChangeReasonCreate, nil)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription created", "subscription_id", sub.ID, "customer_id", customerID, "plan_id", plan.ID)
	return sub, nil
}

func (s *Service) Get(ctx context.Context, caller identity.Identity, id string) (*models.Subscription, error) {
	var sub *models.Subscription
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		sub, err = access.SubscriptionByID(tx, caller, id)
		return err
	})
	return sub, err
}

// ListForCustomer returns the caller's subscriptions, newest first. Admins may
// name any customer.
func (s *Service) ListForCustomer(ctx context.Context, caller identity.Identity, customerID string) ([]*models.Subscription, error) {
	if !caller.IsAdmin() || customerID == "" {
		customerID = caller.UserID
	}
	var out []*models.Subscription
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		rows, err := tx.ListSubscriptions(store.SubscriptionQuery{CustomerID: customerID})
		if err != nil {
			return fmt.Errorf("failed to list subscriptions: %w", err)
		}
		out = rows
		return nil
	})
	return out, err
}

type ScanResponse struct {
	Items []*models.Subscription `json:"items"`
	Total int64                  `json:"total"`
}

// Scan implements paginated admin listing with filters.
var scanColumns = types.NewColumns(
	"id", "customer_id", "plan_id", "status", "vehicle_count", "start_date", "end_date",
	"auto_renew", "payment_method", "payment_confirmed", "last_payment_date", "created_at", "updated_at",
)

func (s *Service) Scan(ctx context.Context, req *store.ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, apperr.InvalidArgument.Withf("nil request")
	}
	if err := req.Validate(scanColumns); err != nil {
		return nil, apperr.InvalidArgument.Withf("%v", err)
	}
	var resp ScanResponse
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		items, total, err := tx.ScanSubscriptions(req)
		if err != nil {
			return fmt.Errorf("failed to scan subscriptions: %w", err)
		}
		resp.Items, resp.Total = items, total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Activate confirms payment out of band. It reports whether this call moved
// the subscription out of pending_payment.
func (s *Service) Activate(ctx context.Context, caller identity.Identity, id string) (bool, error) {
	if !caller.IsAdmin() {
		return false, apperr.Forbidden
	}
	var activated bool
	err := s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		sub, err := Load(tx, id)
		if err != nil {
			return err
		}
		activated, err = s.ActivateTx(tx, em, sub, caller.UserID)
		return err
	})
	return activated, err
}

// ActivateTx performs pending_payment -> active inside the caller's
// transaction. An already active subscription is left alone and reported as
// not activated, which makes repeated confirmations harmless.
func (s *Service) ActivateTx(tx store.Tx, em *event.Emitter, sub *models.Subscription, confirmedBy string) (bool, error) {
	switch sub.Status {
	case types.SubscriptionStatusActive:
		return false, nil
	case types.SubscriptionStatusPendingPayment:
	default:
		return false, transitionError(sub, "activate")
	}
	before := sub.Clone()
	now := s.now().UTC()
	sub.Status = types.SubscriptionStatusActive
	sub.PaymentConfirmed = true
	sub.PaymentConfirmedBy = confirmedBy
	sub.LastPaymentDate = &now
	plan := s.cfg.GetPlanByID(sub.PlanID)
	if sub.EndDate == nil {
		end := cycleEnd(plan, now)
		sub.StartDate, sub.EndDate = &now, &end
	}
	extra := datatypes.JSONMap{"method": string(sub.PaymentMethod)}
	if plan != nil {
		extra["amount"] = plan.Price * int64(sub.VehicleCount)
		extra["currency"] = plan.Currency
	}
	if err := s.save(tx, em, before, sub, types.SubscriptionChangeReasonActivate, extra); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) Cancel(ctx context.Context, caller identity.Identity, id string) (*models.Subscription, error) {
	return s.mutate(ctx, caller, id, types.SubscriptionChangeReasonCancel, func(sub *models.Subscription) (datatypes.JSONMap, error) {
		if sub.Status != types.SubscriptionStatusActive {
			return nil, transitionError(sub, "cancel")
		}
		sub.Status = types.SubscriptionStatusCancelled
		return nil, nil
	})
}

// Reactivate restores a cancelled or expired subscription without touching its dates.
func (s *Service) Reactivate(ctx context.Context, caller identity.Identity, id string) (*models.Subscription, error) {
	return s.mutate(ctx, caller, id, types.SubscriptionChangeReasonReactivate, func(sub *models.Subscription) (datatypes.JSONMap, error) {
		if sub.Status != types.SubscriptionStatusCancelled && sub.Status != types.SubscriptionStatusExpired {
			return nil, transitionError(sub, "reactivate")
		}
		sub.Status = types.SubscriptionStatusActive
		return nil, nil
	})
}

// MaxExtendMonths bounds a single extension to a century.
const MaxExtendMonths = 1200

// Extend pushes the end date forward by months and leaves the subscription active.
func (s *Service) Extend(ctx context.Context, caller identity.Identity, id string, months int) (*models.Subscription, error) {
	if months < 1 {
		return nil, apperr.InvalidMonths
	}
	if months > MaxExtendMonths {
		return nil, apperr.InvalidMonths.Withf("months must be at most %d", MaxExtendMonths)
	}
	return s.mutate(ctx, caller, id, types.SubscriptionChangeReasonExtend, func(sub *models.Subscription) (datatypes.JSONMap, error) {
		if sub.Status == types.SubscriptionStatusPendingPayment {
			return nil, transitionError(sub, "extend")
		}
		plan := s.cfg.GetPlanByID(sub.PlanID)
		years, rest := splitMonths(plan, months)
		now := s.now().UTC()
		end := addMonthsClamped(extendFrom(sub, now), years, rest)
		if sub.StartDate == nil {
			sub.StartDate = &now
		}
		sub.EndDate = &end
		sub.Status = types.SubscriptionStatusActive
		return datatypes.JSONMap{"months": months, "years": years, "extra_months": rest}, nil
	})
}

// Renew starts a fresh billing cycle from now.
func (s *Service) Renew(ctx context.Context, caller identity.Identity, id string) (*models.Subscription, error) {
	return s.mutate(ctx, caller, id, types.SubscriptionChangeReasonRenew, func(sub *models.Subscription) (datatypes.JSONMap, error) {
		if sub.Status == types.SubscriptionStatusPendingPayment {
			return nil, transitionError(sub, "renew")
		}
		now := s.now().UTC()
		end := cycleEnd(s.cfg.GetPlanByID(sub.PlanID), now)
		sub.StartDate, sub.EndDate = &now, &end
		sub.Status = types.SubscriptionStatusActive
		return nil, nil
	})
}

// SetAutoRenew may be called by the owning customer or an admin.
func (s *Service) SetAutoRenew(ctx context.Context, caller identity.Identity, id string, on bool) (*models.Subscription, error) {
	var out *models.Subscription
	err := s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		sub, err := Load(tx, id)
		if err != nil {
			return err
		}
		if !caller.IsAdmin() && !(caller.IsCustomer() && sub.CustomerID == caller.UserID) {
			return apperr.Forbidden
		}
		out = sub
		if sub.AutoRenew == on {
			return nil
		}
		before := sub.Clone()
		sub.AutoRenew = on
		return s.save(tx, em, before, sub, types.SubscriptionChangeReasonAutoRenew, datatypes.JSONMap{"auto_renew": on})
	})
	return out, err
}

// RecordPaymentEvidenceTx stores customer evidence on a pending subscription.
// Preconditions are checked by the payment service.
func (s *Service) RecordPaymentEvidenceTx(tx store.Tx, em *event.Emitter, sub *models.Subscription, method types.PaymentMethod, reference string) error {
	before := sub.Clone()
	now := s.now().UTC()
	sub.PaymentMethod = method
	sub.PaymentReference = reference
	sub.LastPaymentDate = &now
	return s.save(tx, em, before, sub, types.SubscriptionChangeReasonPaymentEvidence, datatypes.JSONMap{"method": string(method)})
}

// ClearPaymentEvidenceTx drops unverified evidence so the customer may resubmit.
func (s *Service) ClearPaymentEvidenceTx(tx store.Tx, em *event.Emitter, sub *models.Subscription, reason string) error {
	before := sub.Clone()
	sub.PaymentMethod = ""
	sub.PaymentReference = ""
	sub.LastPaymentDate = nil
	return s.save(tx, em, before, sub, types.SubscriptionChangeReasonEvidenceRejected, datatypes.JSONMap{"rejection_reason": reason})
}

// Load reads a subscription inside tx, mapping a missing row to apperr.NotFound.
func Load(tx store.Tx, id string) (*models.Subscription, error) {
	sub, err := tx.GetSubscription(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound.Withf("subscription %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// mutate runs an admin status change in one transaction.
func (s *Service) mutate(ctx context.Context, caller identity.Identity, id string, reason types.SubscriptionChangeReason, apply func(sub *models.Subscription) (datatypes.JSONMap, error)) (*models.Subscription, error) {
	ctx, span := tracing.Start(ctx, "subscription."+string(reason))
	var err error
	defer func() { tracing.EndWithError(span, err) }()

	if !caller.IsAdmin() {
		err = apperr.Forbidden
		return nil, err
	}
	var out *models.Subscription
	err = s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		sub, err := Load(tx, id)
		if err != nil {
			return err
		}
		before := sub.Clone()
		extra, err := apply(sub)
		if err != nil {
			return err
		}
		out = sub
		return s.save(tx, em, before, sub, reason, extra)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription changed", "subscription_id", id, "reason", reason, "status", out.Status)
	return out, nil
}

// save writes sub with a version check, then its audit log and event.
func (s *Service) save(tx store.Tx, em *event.Emitter, before, sub *models.Subscription, reason types.SubscriptionChangeReason, extra datatypes.JSONMap) error {
	if err := tx.UpdateSubscription(sub); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return apperr.ConcurrentUpdate
		}
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return s.record(tx, em, before, sub, reason, extra)
}

func (s *Service) record(tx store.Tx, em *event.Emitter, before, after *models.Subscription, reason types.SubscriptionChangeReason, extra datatypes.JSONMap) error {
	if extra == nil {
		extra = datatypes.JSONMap{}
	}
	log := &models.SubscriptionLog{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: after.ID,
		ActorID:        em.Actor().UserID,
		Reason:         reason,
		Before:         datatypes.NewJSONType(before),
		After:          datatypes.NewJSONType(after.Clone()),
		Extra:          extra,
	}
	if err := tx.CreateSubscriptionLog(log); err != nil {
		return fmt.Errorf("failed to save subscription log: %w", err)
	}

	from := ""
	if before != nil {
		from = string(before.Status)
	}
	detail := map[string]interface{}{"customer_id": after.CustomerID, "reason": string(reason)}
	for k, v := range extra {
		detail[k] = v
	}
	return em.Emit(event.Transition{
		EntityType:     types.EntityTypeSubscription,
		EntityID:       after.ID,
		SubscriptionID: after.ID,
		From:           from,
		To:             string(after.Status),
		Detail:         detail,
	})
}
