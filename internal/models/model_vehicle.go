package models

import (
	"time"

	"github.com/fatflowers/autoinspect/pkg/types"
)

// Vehicle is a car covered by a subscription.
type Vehicle struct {
	ID             string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string              `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	CustomerID     string              `gorm:"column:customer_id;type:varchar(64);not null;index" json:"customer_id"`
	Make           string              `gorm:"column:make;type:varchar(64)" json:"make"`
	Model          string              `gorm:"column:model;type:varchar(64)" json:"model"`
	Year           int                 `gorm:"column:year" json:"year"`
	PlateNumber    string              `gorm:"column:plate_number;type:varchar(32);not null" json:"plate_number"`
	VIN            string              `gorm:"column:vin;type:varchar(32)" json:"vin,omitempty"`
	Status         types.VehicleStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Version        int64               `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (Vehicle) TableName() string {
	return "vehicle"
}
