package types

type SubscriptionStatus string

const (
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusCancelled      SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired        SubscriptionStatus = "expired"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonCreate           SubscriptionChangeReason = "create"
	SubscriptionChangeReasonPaymentEvidence  SubscriptionChangeReason = "paymentEvidence"
	SubscriptionChangeReasonEvidenceRejected SubscriptionChangeReason = "evidenceRejected"
	SubscriptionChangeReasonActivate         SubscriptionChangeReason = "activate"
	SubscriptionChangeReasonCancel           SubscriptionChangeReason = "cancel"
	SubscriptionChangeReasonReactivate       SubscriptionChangeReason = "reactivate"
	SubscriptionChangeReasonExtend           SubscriptionChangeReason = "extend"
	SubscriptionChangeReasonRenew            SubscriptionChangeReason = "renew"
	SubscriptionChangeReasonExpire           SubscriptionChangeReason = "expire"
	SubscriptionChangeReasonAutoRenew        SubscriptionChangeReason = "autoRenew"
)

type BillingCycle string

const (
	BillingCycleMonth BillingCycle = "month"
	BillingCycleYear  BillingCycle = "year"
)

// Plan is a purchasable inspection plan loaded from configuration.
type Plan struct {
	ID          string `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description" mapstructure:"description"`
	// Price in minor currency units. Zero means the plan is free.
	Price          int64        `json:"price" mapstructure:"price"`
	Currency       string       `json:"currency" mapstructure:"currency"`
	BillingCycle   BillingCycle `json:"billing_cycle" mapstructure:"billing_cycle"`
	VisitsPerCycle int          `json:"visits_per_cycle" mapstructure:"visits_per_cycle"`
}

func (p *Plan) Yearly() bool {
	return p != nil && p.BillingCycle == BillingCycleYear
}

// CycleMonths returns the length of one billing cycle in months.
func (p *Plan) CycleMonths() int {
	if p.Yearly() {
		return 12
	}
	return 1
}

type VehicleStatus string

const (
	VehicleStatusPending VehicleStatus = "pending"
	VehicleStatusActive  VehicleStatus = "active"
)

type AssignmentStatus string

const (
	AssignmentStatusActive AssignmentStatus = "active"
	AssignmentStatusEnded  AssignmentStatus = "ended"
)
