package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/autoinspect/internal/app/service/event"
	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/metrics"
	"github.com/fatflowers/autoinspect/pkg/tool"
	"github.com/fatflowers/autoinspect/pkg/types"
)

const invoiceDateLayout = "2006-01-02"

// EventKey identifies one confirmed payment event. Payment records and
// invoices are unique on it.
func EventKey(sub *models.Subscription) string {
	ref := sub.PaymentReference
	if ref == "" {
		ref = "manual"
	}
	return sub.ID + ":" + ref
}

// InvoiceNumber formats prefix-YYYYMM-NNNNN.
func InvoiceNumber(prefix string, at time.Time, seq int64) string {
	if prefix == "" {
		prefix = "INV"
	}
	return fmt.Sprintf("%s-%s-%05d", prefix, at.Format("200601"), seq)
}

// bookkeep creates whichever of the payment record and invoice is missing for
// the subscription's current payment event. Each is written in its own
// transaction, so a failed invoice leaves the committed record in place for
// Reconcile. A concurrent writer that won the unique key is detected and its
// rows are returned instead.
func (s *Service) bookkeep(ctx context.Context, caller identity.Identity, sub *models.Subscription) (*models.PaymentRecord, *models.Invoice, error) {
	plan := s.cfg.GetPlanByID(sub.PlanID)
	if plan == nil {
		metrics.IncCounter(metrics.MetricsBookkeepingFailures, "plan")
		return nil, nil, apperr.InvalidPlan.Withf("plan %q of subscription %s is no longer configured", sub.PlanID, sub.ID)
	}
	var (
		rec *models.PaymentRecord
		inv *models.Invoice
	)
	err := s.bookkeepStep(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		var err error
		rec, err = s.ensurePaymentRecord(tx, em, sub, plan)
		return err
	})
	if err != nil {
		metrics.IncCounter(metrics.MetricsBookkeepingFailures, "payment_record")
		return nil, nil, err
	}
	err = s.bookkeepStep(ctx, caller, func(tx store.Tx, em *event.Emitter) error {
		var err error
		inv, err = s.ensureInvoice(tx, em, sub, plan, rec)
		return err
	})
	if err != nil {
		metrics.IncCounter(metrics.MetricsBookkeepingFailures, "invoice")
		return rec, nil, err
	}
	return rec, inv, nil
}

// bookkeepStep retries fn once when a concurrent writer took the unique key.
func (s *Service) bookkeepStep(ctx context.Context, caller identity.Identity, fn func(tx store.Tx, em *event.Emitter) error) error {
	return tool.Retry(ctx, 2, 10*time.Millisecond, func(err error) bool {
		return errors.Is(err, store.ErrDuplicate)
	}, func() error {
		return s.events.InTx(ctx, caller, fn)
	})
}

func description(plan *types.Plan, sub *models.Subscription) string {
	d := fmt.Sprintf("%s plan, %d vehicle(s)", plan.Name, sub.VehicleCount)
	if sub.StartDate != nil && sub.EndDate != nil {
		d += fmt.Sprintf(", %s to %s", sub.StartDate.Format(invoiceDateLayout), sub.EndDate.Format(invoiceDateLayout))
	}
	return d
}

// ensurePaymentRecord returns nil without error for free plans.
func (s *Service) ensurePaymentRecord(tx store.Tx, em *event.Emitter, sub *models.Subscription, plan *types.Plan) (*models.PaymentRecord, error) {
	key := EventKey(sub)
	existing, err := tx.FindPaymentRecord(key)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to find payment record: %w", err)
	}
	amount := plan.Price * int64(sub.VehicleCount)
	if amount <= 0 {
		return nil, nil
	}
	paidAt := em.Now()
	if sub.LastPaymentDate != nil {
		paidAt = *sub.LastPaymentDate
	}
	rec := &models.PaymentRecord{
		ID:             tool.GenerateUUIDV7(),
		EventKey:       key,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		Amount:         amount,
		Currency:       plan.Currency,
		Method:         sub.PaymentMethod,
		Reference:      sub.PaymentReference,
		Status:         types.PaymentStatusCompleted,
		Description:    description(plan, sub),
		ConfirmedBy:    em.Actor().UserID,
		PaidAt:         paidAt,
	}
	if err := tx.CreatePaymentRecord(rec); err != nil {
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}
	return rec, em.Emit(event.Transition{
		EntityType:     types.EntityTypePayment,
		EntityID:       rec.ID,
		SubscriptionID: sub.ID,
		To:             string(rec.Status),
		Detail:         map[string]interface{}{"customer_id": sub.CustomerID, "amount": amount, "currency": plan.Currency},
	})
}

func (s *Service) ensureInvoice(tx store.Tx, em *event.Emitter, sub *models.Subscription, plan *types.Plan, rec *models.PaymentRecord) (*models.Invoice, error) {
	key := EventKey(sub)
	existing, err := tx.FindInvoice(key)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}
	now := em.Now()
	period := now.Format("200601")
	seq, err := tx.NextInvoiceSequence(period)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate invoice number: %w", err)
	}
	inv := &models.Invoice{
		ID:             tool.GenerateUUIDV7(),
		InvoiceNumber:  InvoiceNumber(s.cfg.Payment.InvoicePrefix, now, seq),
		EventKey:       key,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		Amount:         plan.Price * int64(sub.VehicleCount),
		Currency:       plan.Currency,
		Method:         sub.PaymentMethod,
		Reference:      sub.PaymentReference,
		Status:         types.InvoiceStatusPaid,
		Description:    description(plan, sub),
		IssuedAt:       now,
	}
	if rec != nil {
		inv.PaymentRecordID = rec.ID
	}
	if err := tx.CreateInvoice(inv); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return inv, em.Emit(event.Transition{
		EntityType:     types.EntityTypeInvoice,
		EntityID:       inv.ID,
		SubscriptionID: sub.ID,
		To:             string(inv.Status),
		Detail:         map[string]interface{}{"customer_id": sub.CustomerID, "invoice_number": inv.InvoiceNumber},
	})
}
