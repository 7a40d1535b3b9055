package notification

import (
	"fmt"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/pkg/types"
)

type notice struct {
	recipient string
	kind      models.NotificationKind
	title     string
	body      string
}

// compose derives the inbox entries of one event. Actors are not told about
// their own actions.
func compose(e *models.Event) []notice {
	var out []notice
	add := func(recipient string, kind models.NotificationKind, title, body string) {
		if recipient == "" || recipient == e.ActorID {
			return
		}
		out = append(out, notice{recipient: recipient, kind: kind, title: title, body: body})
	}
	customer := detailString(e, "customer_id")
	technician := detailString(e, "technician_id")

	switch e.EntityType {
	case types.EntityTypeSubscription:
		switch types.SubscriptionChangeReason(detailString(e, "reason")) {
		case types.SubscriptionChangeReasonPaymentEvidence:
			add(models.RecipientAdmins, models.NotificationKindPaymentEvidence,
				"Payment evidence submitted",
				fmt.Sprintf("Subscription %s is waiting for payment verification (%s).", e.EntityID, detailString(e, "method")))
		case types.SubscriptionChangeReasonActivate:
			body := fmt.Sprintf("Subscription %s is now active.", e.EntityID)
			if amount := minorUnits(e.Detail["amount"]); amount != "0.00" {
				body = fmt.Sprintf("We received your payment of %s %s. Subscription %s is now active.", amount, detailString(e, "currency"), e.EntityID)
			}
			add(customer, models.NotificationKindPaymentConfirmed, "Payment confirmed", body)
		case types.SubscriptionChangeReasonEvidenceRejected:
			add(customer, models.NotificationKindEvidenceRejected,
				"Payment evidence rejected",
				fmt.Sprintf("Your payment evidence was not accepted: %s", detailString(e, "rejection_reason")))
		case types.SubscriptionChangeReasonExpire, types.SubscriptionChangeReasonCancel:
			add(customer, models.NotificationKindSubscriptionEnded,
				"Subscription "+e.ToStatus,
				fmt.Sprintf("Subscription %s is now %s.", e.EntityID, e.ToStatus))
		}
	case types.EntityTypeAssignment:
		switch types.AssignmentStatus(e.ToStatus) {
		case types.AssignmentStatusActive:
			add(technician, models.NotificationKindAssigned,
				"New assignment",
				fmt.Sprintf("You are now the technician of subscription %s.", e.SubscriptionID))
			add(customer, models.NotificationKindAssigned,
				"Technician assigned",
				"A technician has been assigned to your subscription.")
		case types.AssignmentStatusEnded:
			add(technician, models.NotificationKindUnassigned,
				"Assignment ended",
				fmt.Sprintf("You are no longer assigned to subscription %s.", e.SubscriptionID))
		}
	case types.EntityTypeVisit:
		number := detailString(e, "visit_number")
		switch types.VisitStatus(e.ToStatus) {
		case types.VisitStatusPendingConfirmation:
			add(models.RecipientAdmins, models.NotificationKindVisitSubmitted,
				"Visit report submitted",
				fmt.Sprintf("Visit #%s of subscription %s awaits confirmation.", number, e.SubscriptionID))
		case types.VisitStatusConfirmed:
			add(customer, models.NotificationKindVisitConfirmed,
				"Inspection report ready",
				fmt.Sprintf("The report of visit #%s is available.", number))
			add(technician, models.NotificationKindVisitConfirmed,
				"Visit confirmed",
				fmt.Sprintf("Visit #%s was confirmed.", number))
		case types.VisitStatusRejected:
			add(technician, models.NotificationKindVisitRejected,
				"Visit rejected",
				fmt.Sprintf("Visit #%s was rejected: %s", number, detailString(e, "reason")))
		}
	}
	return out
}

// detailString reads a detail value as text. Numbers arrive as float64 once
// the event crossed the broker.
func detailString(e *models.Event, key string) string {
	switch v := e.Detail[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}

func minorUnits(v any) string {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case int64:
		n = float64(x)
	case int:
		n = float64(x)
	}
	return fmt.Sprintf("%.2f", n/100)
}
