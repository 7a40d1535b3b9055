package models

import (
	"time"

	"github.com/fatflowers/autoinspect/pkg/types"
)

// PaymentRecord is an immutable fact created once per confirmed payment event.
// EventKey is unique so a repeated confirmation cannot produce a second row.
type PaymentRecord struct {
	ID             string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventKey       string              `gorm:"column:event_key;type:varchar(255);not null;uniqueIndex" json:"event_key"`
	SubscriptionID string              `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	CustomerID     string              `gorm:"column:customer_id;type:varchar(64);not null;index" json:"customer_id"`
	Amount         int64               `gorm:"column:amount;not null" json:"amount"`
	Currency       string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Method         types.PaymentMethod `gorm:"column:method;type:varchar(32);not null" json:"method"`
	Reference      string              `gorm:"column:reference;type:varchar(128)" json:"reference"`
	Status         types.PaymentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Description    string              `gorm:"column:description;type:text" json:"description"`
	ConfirmedBy    string              `gorm:"column:confirmed_by;type:varchar(64)" json:"confirmed_by"`
	PaidAt         time.Time           `gorm:"column:paid_at;not null" json:"paid_at"`
	CreatedAt      time.Time           `json:"created_at"`
}

func (PaymentRecord) TableName() string {
	return "payment_record"
}

// Invoice is the immutable billing document for a confirmed payment event.
type Invoice struct {
	ID              string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	InvoiceNumber   string              `gorm:"column:invoice_number;type:varchar(64);not null;uniqueIndex" json:"invoice_number"`
	EventKey        string              `gorm:"column:event_key;type:varchar(255);not null;uniqueIndex" json:"event_key"`
	SubscriptionID  string              `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	CustomerID      string              `gorm:"column:customer_id;type:varchar(64);not null;index" json:"customer_id"`
	PaymentRecordID string              `gorm:"column:payment_record_id;type:uuid;default:null" json:"payment_record_id,omitempty"`
	Amount          int64               `gorm:"column:amount;not null" json:"amount"`
	Currency        string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Method          types.PaymentMethod `gorm:"column:method;type:varchar(32)" json:"method"`
	Reference       string              `gorm:"column:reference;type:varchar(128)" json:"reference"`
	Status          types.InvoiceStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Description     string              `gorm:"column:description;type:text" json:"description"`
	IssuedAt        time.Time           `gorm:"column:issued_at;not null;index" json:"issued_at"`
	CreatedAt       time.Time           `json:"created_at"`
}

func (Invoice) TableName() string {
	return "invoice"
}

// InvoiceSequence hands out gap-free invoice numbers per period (YYYYMM).
type InvoiceSequence struct {
	Period    string    `gorm:"column:period;type:varchar(8);primary_key" json:"period"`
	LastValue int64     `gorm:"column:last_value;not null" json:"last_value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (InvoiceSequence) TableName() string {
	return "invoice_sequence"
}
