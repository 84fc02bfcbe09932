package model

import (
	"time"

	"github.com/google/uuid"
)

// Employee types. The discriminant tells which extension profiles can exist
// for the employee; a driver's license details live in DriverProfile.
const (
	EmployeeTypeDriver   = "driver"
	EmployeeTypeSecurity = "security"
	EmployeeTypeMechanic = "mechanic"
	EmployeeTypeAdmin    = "admin"
	EmployeeTypeHelper   = "helper"
	EmployeeTypeOther    = "other"
)

// Employee statuses
const (
	EmployeeStatusActive     = "active"
	EmployeeStatusOnLeave    = "on_leave"
	EmployeeStatusVacation   = "vacation"
	EmployeeStatusSuspended  = "suspended"
	EmployeeStatusTerminated = "terminated"
)

// Employee is a tenant-scoped personnel record.
type Employee struct {
	TenantModel

	EmployeeType string `json:"employee_type" gorm:"type:varchar(20);not null;index"`
	Status       string `json:"status" gorm:"type:varchar(20);default:'active';index"`

	FullName  string     `json:"full_name" gorm:"type:varchar(200);not null"`
	Document  string     `json:"document" gorm:"type:varchar(20);index"`
	BirthDate *time.Time `json:"birth_date,omitempty" gorm:"type:date"`

	Phone   string `json:"phone" gorm:"type:varchar(20)"`
	Email   string `json:"email,omitempty" gorm:"type:varchar(100)"`
	Address string `json:"address,omitempty" gorm:"type:text"`

	HireDate        *time.Time `json:"hire_date,omitempty" gorm:"type:date"`
	TerminationDate *time.Time `json:"termination_date,omitempty" gorm:"type:date"`

	// Optional one-to-one extension row, present only for drivers.
	// Presence is queried by row existence, never by reflection.
	DriverProfile *DriverProfile `json:"driver_profile,omitempty" gorm:"foreignKey:EmployeeID"`
}

// IsActive reports whether the employee is currently working.
func (e *Employee) IsActive() bool {
	return e.Status == EmployeeStatusActive
}

// HasDriverProfile reports whether the driver extension row was loaded.
func (e *Employee) HasDriverProfile() bool {
	return e.DriverProfile != nil
}

// DriverProfile holds driver-specific license information, keyed one-to-one
// to an Employee of type driver.
type DriverProfile struct {
	TenantModel

	EmployeeID uuid.UUID `json:"employee_id" gorm:"type:uuid;not null;uniqueIndex"`

	LicenseNumber     string     `json:"license_number" gorm:"type:varchar(20);not null"`
	LicenseCategory   string     `json:"license_category" gorm:"type:varchar(5)"`
	LicenseIssueDate  *time.Time `json:"license_issue_date,omitempty" gorm:"type:date"`
	LicenseExpiryDate *time.Time `json:"license_expiry_date,omitempty" gorm:"type:date"`

	TotalTrips      uint `json:"total_trips" gorm:"default:0"`
	TotalKmDriven   uint `json:"total_km_driven" gorm:"default:0"`
	AccidentsCount  uint `json:"accidents_count" gorm:"default:0"`
	ViolationsCount uint `json:"violations_count" gorm:"default:0"`
}

// LicenseValid reports whether the license has not expired.
func (p *DriverProfile) LicenseValid() bool {
	return p.LicenseExpiryDate == nil || time.Now().Before(*p.LicenseExpiryDate)
}
