package tenant

import "errors"

// Tenant and membership errors
var (
	ErrNotFound  = errors.New("tenant not found")
	ErrConflict  = errors.New("duplicate value violates a uniqueness constraint")
	ErrForbidden = errors.New("no access to this tenant")
	ErrLastOwner = errors.New("cannot remove the last owner of a tenant")
)

// Invitation errors
var (
	ErrValidation         = errors.New("invitation validation failed")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrExpired            = errors.New("invitation expired")
	ErrAlreadyUsed        = errors.New("invitation already accepted")
	ErrEmailMismatch      = errors.New("invitation e-mail does not match user e-mail")
	ErrMembershipNotFound = errors.New("membership not found")
)
