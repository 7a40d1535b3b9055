package models

import (
	"time"

	"github.com/fatflowers/autoinspect/pkg/types"
)

// Subscription is a customer's commitment to a plan. It is never deleted;
// cancelled and expired are terminal markers that an admin may revert.
type Subscription struct {
	ID           string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CustomerID   string                   `gorm:"column:customer_id;type:varchar(64);not null;index" json:"customer_id"`
	PlanID       string                   `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	Status       types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	VehicleCount int                      `gorm:"column:vehicle_count;not null;default:1" json:"vehicle_count"`
	StartDate    *time.Time               `gorm:"column:start_date;default:null" json:"start_date"`
	EndDate      *time.Time               `gorm:"column:end_date;default:null;index" json:"end_date"`
	AutoRenew    bool                     `gorm:"column:auto_renew;not null;default:false" json:"auto_renew"`
	// Payment evidence. A pending_payment subscription with a method set is awaiting verification.
	PaymentMethod      types.PaymentMethod `gorm:"column:payment_method;type:varchar(32);default:null" json:"payment_method,omitempty"`
	PaymentReference   string              `gorm:"column:payment_reference;type:varchar(128);default:null" json:"payment_reference,omitempty"`
	PaymentConfirmed   bool                `gorm:"column:payment_confirmed;not null;default:false" json:"payment_confirmed"`
	PaymentConfirmedBy string              `gorm:"column:payment_confirmed_by;type:varchar(64);default:null" json:"payment_confirmed_by,omitempty"`
	LastPaymentDate    *time.Time          `gorm:"column:last_payment_date;default:null" json:"last_payment_date"`
	// Version guards conditional updates.
	Version   int64     `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// AwaitingVerification reports whether customer evidence is under admin review.
func (s *Subscription) AwaitingVerification() bool {
	return s != nil && s.Status == types.SubscriptionStatusPendingPayment && s.PaymentMethod != ""
}

// Clone returns a deep copy suitable for before/after snapshots.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	cp := *s
	cp.StartDate = cloneTime(s.StartDate)
	cp.EndDate = cloneTime(s.EndDate)
	cp.LastPaymentDate = cloneTime(s.LastPaymentDate)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
