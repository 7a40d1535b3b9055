package models

import (
	"time"

	"github.com/fatflowers/autoinspect/pkg/types"
	"gorm.io/datatypes"
)

// Event is one entry of the append-only transition log. Seq is monotonic per
// (EntityType, EntityID). DispatchedAt is set once the broker accepted it.
type Event struct {
	ID             string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EntityType     types.EntityType  `gorm:"column:entity_type;type:varchar(32);not null;uniqueIndex:idx_event_entity_seq,priority:1" json:"entity_type"`
	EntityID       string            `gorm:"column:entity_id;type:uuid;not null;uniqueIndex:idx_event_entity_seq,priority:2" json:"entity_id"`
	Seq            int64             `gorm:"column:seq;not null;uniqueIndex:idx_event_entity_seq,priority:3" json:"seq"`
	SubscriptionID string            `gorm:"column:subscription_id;type:uuid;index" json:"subscription_id"`
	FromStatus     string            `gorm:"column:from_status;type:varchar(32)" json:"from_status"`
	ToStatus       string            `gorm:"column:to_status;type:varchar(32);not null" json:"to_status"`
	ActorID        string            `gorm:"column:actor_id;type:varchar(64);index" json:"actor_id"`
	ActorRole      string            `gorm:"column:actor_role;type:varchar(32)" json:"actor_role"`
	Detail         datatypes.JSONMap `gorm:"column:detail;type:jsonb;default:'{}'" json:"detail,omitempty"`
	OccurredAt     time.Time         `gorm:"column:occurred_at;not null;index" json:"occurred_at"`
	DispatchedAt   *time.Time        `gorm:"column:dispatched_at;default:null;index" json:"-"`
}

func (Event) TableName() string {
	return "event"
}

// Subject is the broker subject suffix for the event, e.g. "visit.confirmed".
func (e *Event) Subject() string {
	return string(e.EntityType) + "." + e.ToStatus
}
