package models

import (
	"time"

	"github.com/fatflowers/autoinspect/pkg/types"
)

// Assignment binds a technician to a subscription. At most one row per
// subscription is active; the postgres schema backs that with a partial unique index.
type Assignment struct {
	ID             string                 `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string                 `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	TechnicianID   string                 `gorm:"column:technician_id;type:varchar(64);not null;index" json:"technician_id"`
	AssignedBy     string                 `gorm:"column:assigned_by;type:varchar(64);not null" json:"assigned_by"`
	Notes          string                 `gorm:"column:notes;type:text" json:"notes"`
	Status         types.AssignmentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	AssignedAt     time.Time              `gorm:"column:assigned_at;not null" json:"assigned_at"`
	EndedAt        *time.Time             `gorm:"column:ended_at;default:null" json:"ended_at"`
	EndedBy        string                 `gorm:"column:ended_by;type:varchar(64);default:null" json:"ended_by,omitempty"`
	Version        int64                  `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func (Assignment) TableName() string {
	return "assignment"
}
