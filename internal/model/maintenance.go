package model

import (
	"time"

	"github.com/google/uuid"
)

// Maintenance types
const (
	MaintenanceTypePreventive   = "preventive"
	MaintenanceTypeCorrective   = "corrective"
	MaintenanceTypeInspection   = "inspection"
	MaintenanceTypeTireChange   = "tire_change"
	MaintenanceTypeOilChange    = "oil_change"
	MaintenanceTypeBrakeService = "brake_service"
	MaintenanceTypeOther        = "other"
)

// Maintenance statuses
const (
	MaintenanceStatusScheduled  = "scheduled"
	MaintenanceStatusInProgress = "in_progress"
	MaintenanceStatusCompleted  = "completed"
	MaintenanceStatusCancelled  = "cancelled"
)

// MaintenanceRecord is a tenant-scoped maintenance entry for a vehicle.
type MaintenanceRecord struct {
	TenantModel

	VehicleID uuid.UUID `json:"vehicle_id" gorm:"type:uuid;not null;index:idx_maintenance_vehicle_status"`

	MaintenanceType string `json:"maintenance_type" gorm:"type:varchar(30);not null"`
	Status          string `json:"status" gorm:"type:varchar(30);default:'scheduled';index:idx_maintenance_vehicle_status"`

	ScheduledDate time.Time  `json:"scheduled_date" gorm:"index"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`

	OdometerReading   uint  `json:"odometer_reading"`
	NextMaintenanceKm *uint `json:"next_maintenance_km,omitempty"`

	Description     string `json:"description" gorm:"type:text"`
	ServiceProvider string `json:"service_provider,omitempty" gorm:"type:varchar(250)"`
	Cost            *int64 `json:"cost_cents,omitempty"` // stored in cents
	PartsReplaced   string `json:"parts_replaced,omitempty" gorm:"type:text"`
	Notes           string `json:"notes,omitempty" gorm:"type:text"`

	// Relations
	Vehicle Vehicle `json:"vehicle,omitempty" gorm:"foreignKey:VehicleID"`
}
