package models

import (
	"time"

	"github.com/fatflowers/autoinspect/pkg/types"
	"gorm.io/datatypes"
)

// Visit is one physical inspection. VisitNumber is allocated once at start
// and is unique per subscription.
type Visit struct {
	ID             string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string            `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:idx_visit_subscription_number,priority:1" json:"subscription_id"`
	VisitNumber    int               `gorm:"column:visit_number;not null;uniqueIndex:idx_visit_subscription_number,priority:2" json:"visit_number"`
	AssignmentID   string            `gorm:"column:assignment_id;type:uuid;not null" json:"assignment_id"`
	TechnicianID   string            `gorm:"column:technician_id;type:varchar(64);not null;index" json:"technician_id"`
	Status         types.VisitStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	StartedAt      time.Time         `gorm:"column:started_at;not null" json:"started_at"`
	CompletedAt    *time.Time        `gorm:"column:completed_at;default:null" json:"completed_at"`
	ConfirmedAt    *time.Time        `gorm:"column:confirmed_at;default:null" json:"confirmed_at"`
	ConfirmedBy    string            `gorm:"column:confirmed_by;type:varchar(64);default:null" json:"confirmed_by,omitempty"`
	RejectedAt     *time.Time        `gorm:"column:rejected_at;default:null" json:"rejected_at"`
	RejectedBy     string            `gorm:"column:rejected_by;type:varchar(64);default:null" json:"rejected_by,omitempty"`
	// Free-form technician narrative.
	Findings        string `gorm:"column:findings;type:text" json:"findings"`
	Recommendations string `gorm:"column:recommendations;type:text" json:"recommendations"`
	WorkPerformed   string `gorm:"column:work_performed;type:text" json:"work_performed"`
	// Structured per-system status matrix; display text is derived from it.
	SystemFindings  datatypes.JSONType[[]types.SystemFinding]  `gorm:"column:system_findings;type:jsonb;default:'[]'" json:"system_findings"`
	PartsUsed       datatypes.JSONType[[]types.PartUsed]       `gorm:"column:parts_used;type:jsonb;default:'[]'" json:"parts_used"`
	Inspections     datatypes.JSONType[[]types.InspectionItem] `gorm:"column:inspections;type:jsonb;default:'[]'" json:"inspections"`
	Media           datatypes.JSONType[[]types.MediaRef]       `gorm:"column:media;type:jsonb;default:'[]'" json:"media"`
	DurationMinutes int                                        `gorm:"column:duration_minutes" json:"duration_minutes"`
	Location        string                                     `gorm:"column:location;type:varchar(255)" json:"location"`
	RejectionReason string                                     `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	Version         int64                                      `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt       time.Time                                  `json:"created_at"`
	UpdatedAt       time.Time                                  `json:"updated_at"`
}

func (Visit) TableName() string {
	return "visit"
}
