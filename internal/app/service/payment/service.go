// Package payment verifies customer payment evidence, activates subscriptions
// and keeps the immutable payment and invoice trail.
package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/service/event"
	"github.com/fatflowers/autoinspect/internal/app/service/subscription"
	"github.com/fatflowers/autoinspect/internal/app/service/vehicle"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/platform/tracing"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/config"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/logctx"
	"github.com/fatflowers/autoinspect/pkg/metrics"
	"github.com/fatflowers/autoinspect/pkg/types"
)

type Service struct {
	cfg           *config.Config
	store         store.Store
	events        *event.Recorder
	subscriptions *subscription.Service
	vehicles      *vehicle.Service
	log           *zap.SugaredLogger
	now           func() time.Time
}

func NewService(cfg *config.Config, st store.Store, events *event.Recorder, subs *subscription.Service, vehicles *vehicle.Service, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, store: st, events: events, subscriptions: subs, vehicles: vehicles, log: log, now: time.Now}
}

var Module = fx.Options(
	fx.Provide(NewService),
)

type EvidenceRequest struct {
	Method    types.PaymentMethod `json:"method" binding:"required"`
	Reference string              `json:"reference"`
}

// SubmitEvidence puts a pending subscription into awaiting verification.
func (s *Service) SubmitEvidence(ctx context.Context, caller identity.Identity, subscriptionID string, req *EvidenceRequest) (*models.Subscription, error) {
	if !caller.IsCustomer() && !caller.IsAdmin() {
		return nil, apperr.Forbidden
	}
	if !s.cfg.PaymentMethodAllowed(req.Method) {
		return nil, apperr.InvalidPaymentMethod.Withf("unsupported payment method %q", req.Method)
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" && req.Method.RequiresReference() {
		return nil, apperr.PaymentReferenceRequired.Withf("%s payments need a reference", req.Method)
	}

	var sub *models.Subscription
	err := s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		var err error
		if sub, err = subscription.Load(tx, subscriptionID); err != nil {
			return err
		}
		if caller.IsCustomer() && sub.CustomerID != caller.UserID {
			return apperr.Forbidden
		}
		if sub.AwaitingVerification() {
			return apperr.EvidenceAlreadySubmitted
		}
		if sub.Status != types.SubscriptionStatusPendingPayment {
			return apperr.InvalidTransition.Withf("cannot submit payment evidence for subscription in status %s", sub.Status)
		}
		return s.subscriptions.RecordPaymentEvidenceTx(tx, em, sub, req.Method, reference)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("payment evidence submitted", "subscription_id", sub.ID, "method", req.Method)
	return sub, nil
}

// RejectEvidence clears evidence under review so the customer can resubmit.
func (s *Service) RejectEvidence(ctx context.Context, caller identity.Identity, subscriptionID, reason string) (*models.Subscription, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.RejectionReasonRequired
	}
	var sub *models.Subscription
	err := s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		var err error
		if sub, err = subscription.Load(tx, subscriptionID); err != nil {
			return err
		}
		if !sub.AwaitingVerification() {
			return apperr.EvidenceMissing
		}
		return s.subscriptions.ClearPaymentEvidenceTx(tx, em, sub, reason)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ConfirmPaymentResult reports the activation and, separately, the
// bookkeeping that follows it. A non-nil BookkeepingErr does not undo the
// activation; Reconcile creates whatever is missing later.
type ConfirmPaymentResult struct {
	Subscription      *models.Subscription  `json:"subscription"`
	Activated         bool                  `json:"activated"`
	VehiclesActivated int                   `json:"vehicles_activated"`
	PaymentRecord     *models.PaymentRecord `json:"payment_record,omitempty"`
	Invoice           *models.Invoice       `json:"invoice,omitempty"`
	BookkeepingErr    error                 `json:"-"`
}

func (r *ConfirmPaymentResult) Warning() string {
	if r == nil || r.BookkeepingErr == nil {
		return ""
	}
	return "subscription activated but bookkeeping failed: " + r.BookkeepingErr.Error()
}

// ConfirmPayment activates the subscription and its vehicles in one
// transaction, then records the payment and invoice. Only the call that
// performed the activation writes bookkeeping, so repeated or concurrent
// confirmations produce one payment record and one invoice.
func (s *Service) ConfirmPayment(ctx context.Context, caller identity.Identity, subscriptionID string) (*ConfirmPaymentResult, error) {
	ctx, span := tracing.Start(ctx, "payment.ConfirmPayment")
	var err error
	defer func() { tracing.EndWithError(span, err) }()
	defer metrics.ObserveSince("payment", "confirm", time.Now())

	if !caller.IsAdmin() {
		err = apperr.Forbidden
		return nil, err
	}
	res := &ConfirmPaymentResult{}
	err = s.events.InTx(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		sub, err := subscription.Load(tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status == types.SubscriptionStatusPendingPayment && !sub.AwaitingVerification() {
			return apperr.EvidenceMissing
		}
		activated, err := s.subscriptions.ActivateTx(tx, em, sub, caller.UserID)
		if err != nil {
			return err
		}
		res.Subscription, res.Activated = sub, activated
		if !activated {
			return nil
		}
		res.VehiclesActivated, err = s.vehicles.ActivateForSubscriptionTx(tx, em, sub)
		return err
	})
	if err != nil {
		return nil, err
	}
	log := logctx.FromCtx(ctx, s.log)
	if !res.Activated {
		log.Infow("payment already confirmed", "subscription_id", subscriptionID)
		return res, nil
	}

	res.PaymentRecord, res.Invoice, res.BookkeepingErr = s.bookkeep(ctx, caller, res.Subscription)
	if res.BookkeepingErr != nil {
		log.Errorw("bookkeeping failed after activation", "subscription_id", subscriptionID, "err", res.BookkeepingErr)
	}
	log.Infow("payment confirmed", "subscription_id", subscriptionID, "vehicles", res.VehiclesActivated)
	return res, nil
}

// Reconcile creates the payment record and invoice a confirmed subscription
// is missing. It is a no-op once both exist.
func (s *Service) Reconcile(ctx context.Context, caller identity.Identity, subscriptionID string) (*ConfirmPaymentResult, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden
	}
	var sub *models.Subscription
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		sub, err = subscription.Load(tx, subscriptionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !sub.PaymentConfirmed {
		return nil, apperr.SubscriptionNotPayable
	}
	rec, inv, err := s.bookkeep(ctx, caller, sub)
	if err != nil {
		return nil, err
	}
	return &ConfirmPaymentResult{Subscription: sub, PaymentRecord: rec, Invoice: inv}, nil
}

// ListPayments returns a subscription's payment records to its owner or an admin.
func (s *Service) ListPayments(ctx context.Context, caller identity.Identity, subscriptionID string) ([]*models.PaymentRecord, error) {
	var out []*models.PaymentRecord
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := s.authorizeBilling(tx, caller, subscriptionID); err != nil {
			return err
		}
		rows, err := tx.ListPaymentRecords(subscriptionID)
		if err != nil {
			return fmt.Errorf("failed to list payment records: %w", err)
		}
		out = rows
		return nil
	})
	return out, err
}

func (s *Service) ListInvoices(ctx context.Context, caller identity.Identity, subscriptionID string) ([]*models.Invoice, error) {
	var out []*models.Invoice
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := s.authorizeBilling(tx, caller, subscriptionID); err != nil {
			return err
		}
		rows, err := tx.ListInvoices(subscriptionID)
		if err != nil {
			return fmt.Errorf("failed to list invoices: %w", err)
		}
		out = rows
		return nil
	})
	return out, err
}

type InvoiceScanResponse struct {
	Items []*models.Invoice `json:"items"`
	Total int64             `json:"total"`
}

var invoiceColumns = types.NewColumns(
	"id", "invoice_number", "subscription_id", "customer_id", "amount", "currency", "method",
	"reference", "status", "payment_record_id", "issued_at", "created_at",
)

func (s *Service) ScanInvoices(ctx context.Context, req *store.ScanRequest) (*InvoiceScanResponse, error) {
	if req == nil {
		req = &store.ScanRequest{}
	}
	if err := req.Validate(invoiceColumns); err != nil {
		return nil, apperr.InvalidArgument.Withf("%v", err)
	}
	resp := &InvoiceScanResponse{}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		items, total, err := tx.ScanInvoices(req)
		if err != nil {
			return fmt.Errorf("failed to scan invoices: %w", err)
		}
		resp.Items, resp.Total = items, total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// authorizeBilling allows admins and the owning customer. Technicians never see billing.
func (s *Service) authorizeBilling(tx store.Tx, caller identity.Identity, subscriptionID string) error {
	sub, err := subscription.Load(tx, subscriptionID)
	if err != nil {
		return err
	}
	if caller.IsAdmin() || (caller.IsCustomer() && sub.CustomerID == caller.UserID) {
		return nil
	}
	return apperr.Forbidden
}
