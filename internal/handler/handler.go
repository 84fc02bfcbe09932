// Package handler holds the HTTP surface. Handlers stay thin over the
// tenancy core and the tenant-scoped models; wiring happens once in Init.
package handler

import (
	"fleetdesk/internal/audit"
	"fleetdesk/internal/session"
	"fleetdesk/internal/tenant"

	"gorm.io/gorm"
)

var (
	db          *gorm.DB
	registry    *tenant.Registry
	memberships *tenant.Memberships
	invitations *tenant.Invitations
	sessions    *session.Store
	recorder    *audit.Recorder
)

// Deps are the collaborators the handlers call into.
type Deps struct {
	DB          *gorm.DB
	Registry    *tenant.Registry
	Memberships *tenant.Memberships
	Invitations *tenant.Invitations
	Sessions    *session.Store
	Recorder    *audit.Recorder
}

// Init wires the handler package. Called once from main before routes are
// registered.
func Init(d Deps) {
	db = d.DB
	registry = d.Registry
	memberships = d.Memberships
	invitations = d.Invitations
	sessions = d.Sessions
	recorder = d.Recorder
}
