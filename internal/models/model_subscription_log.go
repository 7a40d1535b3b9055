package models

import (
	"time"

	"github.com/fatflowers/autoinspect/pkg/types"
	"gorm.io/datatypes"
)

// SubscriptionLog records changes to subscriptions.
// Use case: troubleshooting and audit.
type SubscriptionLog struct {
	ID             string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string `gorm:"column:subscription_id;type:uuid;index:idx_subscription_id_id,priority:1;not null" json:"subscription_id"`
	ActorID        string `gorm:"column:actor_id;type:varchar(64)" json:"actor_id"`
	// Reason is the change reason.
	Reason types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	// Before stores subscription data before the change in JSON format.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'" json:"before"`
	// After stores subscription data after the change in JSON format.
	After datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'" json:"after"`
	// Extra stores additional context such as the months added by an extension.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time         `json:"created_at"`
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
