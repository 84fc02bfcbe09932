package model

import (
	"github.com/google/uuid"
)

// Vehicle statuses
const (
	VehicleStatusAvailable   = "available"
	VehicleStatusAssigned    = "assigned"
	VehicleStatusMaintenance = "maintenance"
	VehicleStatusRetired     = "retired"
)

// Vehicle is a tenant-scoped fleet vehicle.
type Vehicle struct {
	TenantModel

	Plate string `json:"plate" gorm:"type:varchar(20);not null;index"`
	Brand string `json:"brand" gorm:"type:varchar(50)"`
	Model string `json:"model" gorm:"type:varchar(100)"`
	Year  int    `json:"year"`
	Color string `json:"color,omitempty" gorm:"type:varchar(30)"`

	Status   string `json:"status" gorm:"type:varchar(20);default:'available';index"`
	Odometer uint   `json:"odometer" gorm:"default:0"`

	LastMaintenanceKm uint  `json:"last_maintenance_km" gorm:"default:0"`
	NextMaintenanceKm *uint `json:"next_maintenance_km,omitempty"`
}

// IsAvailable reports whether the vehicle can take a new assignment.
func (v *Vehicle) IsAvailable() bool {
	return v.Status == VehicleStatusAvailable
}

// NeedsMaintenance reports whether the odometer passed the next maintenance mark.
func (v *Vehicle) NeedsMaintenance() bool {
	return v.NextMaintenanceKm != nil && v.Odometer >= *v.NextMaintenanceKm
}

// VehicleAssignment links a vehicle to a driver employee for a period.
type VehicleAssignment struct {
	TenantModel

	VehicleID  uuid.UUID `json:"vehicle_id" gorm:"type:uuid;not null;index"`
	EmployeeID uuid.UUID `json:"employee_id" gorm:"type:uuid;not null;index"`

	StartDate string  `json:"start_date" gorm:"type:date;not null"`
	EndDate   *string `json:"end_date,omitempty" gorm:"type:date"`

	Notes string `json:"notes,omitempty" gorm:"type:text"`

	// Relations
	Vehicle  Vehicle  `json:"vehicle,omitempty" gorm:"foreignKey:VehicleID"`
	Employee Employee `json:"employee,omitempty" gorm:"foreignKey:EmployeeID"`
}

// IsActive reports whether the assignment has not ended yet.
func (a *VehicleAssignment) IsActive() bool {
	return a.EndDate == nil
}
