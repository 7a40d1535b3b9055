package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationKind string

const (
	NotificationKindPaymentEvidence   NotificationKind = "payment_evidence_submitted"
	NotificationKindEvidenceRejected  NotificationKind = "payment_evidence_rejected"
	NotificationKindPaymentConfirmed  NotificationKind = "payment_confirmed"
	NotificationKindAssigned          NotificationKind = "technician_assigned"
	NotificationKindUnassigned        NotificationKind = "technician_unassigned"
	NotificationKindVisitSubmitted    NotificationKind = "visit_submitted"
	NotificationKindVisitConfirmed    NotificationKind = "visit_confirmed"
	NotificationKindVisitRejected     NotificationKind = "visit_rejected"
	NotificationKindSubscriptionEnded NotificationKind = "subscription_ended"
)

// RecipientAdmins addresses every administrator.
const RecipientAdmins = "role:admin"

// Notification is an inbox entry derived from one event for one recipient.
// (EventID, RecipientID) is unique so redelivered events are absorbed.
type Notification struct {
	ID             string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventID        string            `gorm:"column:event_id;type:uuid;not null;uniqueIndex:idx_notification_event_recipient,priority:1" json:"event_id"`
	RecipientID    string            `gorm:"column:recipient_id;type:varchar(64);not null;uniqueIndex:idx_notification_event_recipient,priority:2;index" json:"recipient_id"`
	Kind           NotificationKind  `gorm:"column:kind;type:varchar(64);not null" json:"kind"`
	Title          string            `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Body           string            `gorm:"column:body;type:text" json:"body"`
	EntityType     string            `gorm:"column:entity_type;type:varchar(32)" json:"entity_type"`
	EntityID       string            `gorm:"column:entity_id;type:uuid" json:"entity_id"`
	SubscriptionID string            `gorm:"column:subscription_id;type:uuid;index" json:"subscription_id"`
	Data           datatypes.JSONMap `gorm:"column:data;type:jsonb;default:'{}'" json:"data,omitempty"`
	ReadAt         *time.Time        `gorm:"column:read_at;default:null" json:"read_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

func (Notification) TableName() string { return "notification" }
